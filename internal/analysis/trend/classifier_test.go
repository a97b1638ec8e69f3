package trend

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skalibog/trendgym/pkg/models"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name     string
		closings []float64
		want     models.Trend
	}{
		{"increasing", []float64{1, 2, 3, 4, 5}, models.TrendUp},
		{"decreasing", []float64{5, 4, 3, 2, 1}, models.TrendDown},
		{"constant", []float64{5, 5, 5, 5, 5}, models.TrendRange},
		{"constant fractional", []float64{0.1, 0.1, 0.1, 0.1}, models.TrendRange},
		{"single point", []float64{42}, models.TrendRange},
		{"empty", nil, models.TrendRange},
		{"oscillating", []float64{1, 3, 1, 3, 1, 3, 1, 3}, models.TrendRange},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.closings))
		})
	}
}

func TestStandardizedSlope_PerfectLine(t *testing.T) {
	slope, ok := StandardizedSlope([]float64{10, 20, 30, 40})
	require.True(t, ok)
	assert.InDelta(t, 1.0, slope, 1e-12)

	slope, ok = StandardizedSlope([]float64{3, 2, 1})
	require.True(t, ok)
	assert.InDelta(t, -1.0, slope, 1e-12)
}

func TestStandardizedSlope_Flat(t *testing.T) {
	_, ok := StandardizedSlope([]float64{7, 7, 7})
	assert.False(t, ok)
}

func TestClassify_ScaleInvariant(t *testing.T) {
	series := [][]float64{
		{1, 2, 3, 4, 5},
		{5, 4.5, 4.8, 3, 2.9, 1},
		{100, 101, 99, 100.5, 100, 99.8},
		{0.0001, 0.00012, 0.00011, 0.00013},
	}
	factors := []float64{0.001, 0.5, 3, 1e6}

	for _, closings := range series {
		want := Classify(closings)
		base, _ := StandardizedSlope(closings)
		for _, k := range factors {
			scaled := make([]float64, len(closings))
			for i, v := range closings {
				scaled[i] = v * k
			}
			assert.Equal(t, want, Classify(scaled), "k=%v closings=%v", k, closings)

			got, _ := StandardizedSlope(scaled)
			assert.InDelta(t, base, got, 1e-9)
		}
	}
}

func TestStandardizedSlope_Bounded(t *testing.T) {
	closings := make([]float64, 200)
	for i := range closings {
		closings[i] = 100 + 10*math.Sin(float64(i)/7) + float64(i)*0.05
	}
	slope, ok := StandardizedSlope(closings)
	require.True(t, ok)
	assert.LessOrEqual(t, math.Abs(slope), 1.0+1e-12)
}
