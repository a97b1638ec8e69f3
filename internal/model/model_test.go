package model

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skalibog/trendgym/pkg/models"
)

func rising(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = 100 + float64(i) + math.Sin(float64(i))
	}
	return out
}

func falling(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = 200 - float64(i) + math.Cos(float64(i))
	}
	return out
}

func TestFeatures_Size(t *testing.T) {
	for _, n := range []int{1, 5, 30, 500} {
		f := Features(Input{Closings: rising(n), Trend: models.TrendUp}, 16)
		assert.Len(t, f, FeatureSize(16))
		for _, v := range f {
			assert.False(t, math.IsNaN(v))
		}
	}
}

func TestFeatures_ScaleInvariantWindow(t *testing.T) {
	base := rising(40)
	scaled := make([]float64, len(base))
	for i, v := range base {
		scaled[i] = v * 1000
	}

	a := Features(Input{Closings: base}, 8)
	b := Features(Input{Closings: scaled}, 8)
	for i := 0; i < 8; i++ {
		assert.InDelta(t, a[i], b[i], 1e-9)
	}
}

func TestFeatures_FlatSeries(t *testing.T) {
	f := Features(Input{Closings: []float64{5, 5, 5, 5}, Trend: models.TrendRange}, 4)
	assert.Equal(t, []float64{0, 0, 0, 0}, f[:4])
	assert.Equal(t, 1.0, f[len(f)-2], "one-hot класса range")
}

func TestResample(t *testing.T) {
	assert.Equal(t, []float64{0, 0.5, 1}, resample([]float64{0, 1}, 3))
	assert.Equal(t, []float64{0, 2}, resample([]float64{0, 1, 2}, 2))
	assert.Equal(t, []float64{7, 7}, resample([]float64{7}, 2))
}

func TestNetwork_TrainStepAccuracyIsBinary(t *testing.T) {
	n := NewNetwork(8, 8, 0.05, rand.New(rand.NewSource(1)))
	in := Input{Closings: rising(50), Trend: models.TrendUp}

	m := n.TrainStep(in, models.TrendUp.OneHot())
	assert.Contains(t, []float64{0, 1}, m.Accuracy)
	assert.Greater(t, m.Loss, 0.0)
	assert.Equal(t, 1, n.Steps)
}

func TestNetwork_LearnsUserAnswers(t *testing.T) {
	n := NewNetwork(16, 16, 0.05, rand.New(rand.NewSource(7)))

	// пользователь всегда отвечает противоположно тренду
	ins := []Input{
		{Closings: rising(60), Trend: models.TrendUp},
		{Closings: falling(60), Trend: models.TrendDown},
	}
	targets := [][models.TrendClasses]float64{
		models.TrendDown.OneHot(),
		models.TrendUp.OneHot(),
	}

	before := n.Evaluate(ins, targets)
	for epoch := 0; epoch < 200; epoch++ {
		for i := range ins {
			n.TrainStep(ins[i], targets[i])
		}
	}
	after := n.Evaluate(ins, targets)

	assert.Less(t, after.Loss, before.Loss)
	assert.Equal(t, 1.0, after.Accuracy)

	trend, probs := n.Predict(ins[0])
	assert.Equal(t, models.TrendDown, trend)
	assert.Len(t, probs, models.TrendClasses)
}

func TestNetwork_EvaluateEmpty(t *testing.T) {
	n := NewNetwork(4, 4, 0.01, rand.New(rand.NewSource(1)))
	assert.Equal(t, Metrics{}, n.Evaluate(nil, nil))
}

func TestNetworkCodec_RoundTrip(t *testing.T) {
	codec := NewNetworkCodec(8, 4, 0.01, 42)
	m := codec.New()
	m.TrainStep(Input{Closings: rising(20), Trend: models.TrendUp}, models.TrendRange.OneHot())

	data, err := codec.Encode(m)
	require.NoError(t, err)

	decoded, err := codec.Decode(data)
	require.NoError(t, err)
	assert.Equal(t, m, decoded)
}

func TestNetworkCodec_DecodeRejectsIncompatible(t *testing.T) {
	data, err := NewNetworkCodec(8, 4, 0.01, 1).Encode(NewNetwork(8, 4, 0.01, rand.New(rand.NewSource(1))))
	require.NoError(t, err)

	_, err = NewNetworkCodec(16, 4, 0.01, 1).Decode(data)
	assert.ErrorIs(t, err, ErrInvalidModel)

	_, err = NewNetworkCodec(8, 4, 0.01, 1).Decode([]byte(`{"points": 8}`))
	assert.ErrorIs(t, err, ErrInvalidModel)

	_, err = NewNetworkCodec(8, 4, 0.01, 1).Decode([]byte(`not json`))
	assert.ErrorIs(t, err, ErrInvalidModel)
}
