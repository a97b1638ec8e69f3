package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTrend_Classes(t *testing.T) {
	for _, trend := range []Trend{TrendDown, TrendRange, TrendUp} {
		assert.True(t, trend.Valid())

		back, err := TrendFromClass(trend.Class())
		require.NoError(t, err)
		assert.Equal(t, trend, back)

		oneHot := trend.OneHot()
		decoded, err := TrendFromOneHot(oneHot[:])
		require.NoError(t, err)
		assert.Equal(t, trend, decoded)
	}

	assert.False(t, Trend(2).Valid())
	assert.Equal(t, "trend(2)", Trend(2).String())
	assert.Equal(t, [3]float64{1, 0, 0}, TrendDown.OneHot())

	_, err := TrendFromClass(3)
	assert.Error(t, err)
}

func TestTrendFromOneHot_Invalid(t *testing.T) {
	for _, v := range [][]float64{
		{1, 0},
		{0, 0, 0},
		{1, 1, 0},
		{0.5, 0.5, 0},
	} {
		_, err := TrendFromOneHot(v)
		assert.Error(t, err, "%v", v)
	}
}

func TestCandles_Columns(t *testing.T) {
	open := time.UnixMilli(1698796800000).UTC()
	c := Candles{
		{OpenTime: open, Open: 1, High: 3, Low: 0.5, Close: 2, Volume: 10},
		{OpenTime: open.Add(time.Minute), Open: 2, High: 4, Low: 1, Close: 3, Volume: 20},
	}

	assert.Equal(t, []float64{2, 3}, c.Closings())
	assert.Equal(t, [][]float64{
		{1698796800000, 1, 3, 0.5, 2, 10},
		{1698796860000, 2, 4, 1, 3, 20},
	}, c.OHLCV())
}

func TestUserStats_Validate(t *testing.T) {
	stats := &UserStats{Attempts: 1, Matches: 1, History: []AnswerRecord{{ExerciseID: "a"}}}
	require.NoError(t, stats.Validate())

	clone := stats.Clone()
	clone.History[0].ExerciseID = "b"
	assert.Equal(t, "a", stats.History[0].ExerciseID)

	assert.Error(t, (&UserStats{Attempts: 2, History: []AnswerRecord{{}}}).Validate())
	assert.Error(t, (&UserStats{Attempts: 1, Matches: 2, History: []AnswerRecord{{}}}).Validate())
}

func TestIntervalDuration(t *testing.T) {
	assert.Equal(t, 15*time.Minute, IntervalDuration("15m"))
	assert.Equal(t, 7*24*time.Hour, IntervalDuration("1w"))
	assert.True(t, ValidInterval("4h"))
	assert.False(t, ValidInterval("7m"))
	assert.Panics(t, func() { IntervalDuration("7m") })
}
