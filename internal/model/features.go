package model

import (
	"math"

	"github.com/markcheno/go-talib"
)

const (
	rsiPeriod   = 14
	rocPeriod   = 10
	anglePeriod = 14

	// indicatorFeatures RSI, ROC и угол регрессии
	indicatorFeatures = 3
)

// FeatureSize размер вектора признаков для points точек окна
func FeatureSize(points int) int {
	return points + indicatorFeatures + 3
}

// Features строит вектор признаков: нормированные цены, приведенные к points
// точкам, индикаторы по последней свече и one-hot тренда
func Features(in Input, points int) []float64 {
	features := make([]float64, 0, FeatureSize(points))

	normalized := zscore(in.Closings)
	features = append(features, resample(normalized, points)...)

	features = append(features,
		lastIndicator(in.Closings, rsiPeriod, talib.Rsi, 50)/100,
		math.Tanh(lastIndicator(in.Closings, rocPeriod, talib.Roc, 0)/10),
		lastIndicator(normalized, anglePeriod, talib.LinearRegAngle, 0)/90,
	)

	oneHot := in.Trend.OneHot()
	features = append(features, oneHot[:]...)
	return features
}

// lastIndicator последнее значение индикатора или fallback, если данных мало
func lastIndicator(values []float64, period int, fn func([]float64, int) []float64, fallback float64) float64 {
	if len(values) <= period {
		return fallback
	}
	out := fn(values, period)
	v := out[len(out)-1]
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return fallback
	}
	return v
}

func zscore(values []float64) []float64 {
	out := make([]float64, len(values))
	if len(values) == 0 {
		return out
	}

	mean := 0.0
	for _, v := range values {
		mean += v
	}
	mean /= float64(len(values))

	variance := 0.0
	for _, v := range values {
		variance += (v - mean) * (v - mean)
	}
	std := math.Sqrt(variance / float64(len(values)))
	if std == 0 || math.IsNaN(std) {
		return out
	}

	for i, v := range values {
		out[i] = (v - mean) / std
	}
	return out
}

// resample линейная интерполяция ряда в points равноотстоящих точек
func resample(values []float64, points int) []float64 {
	out := make([]float64, points)
	switch {
	case len(values) == 0 || points == 0:
		return out
	case len(values) == 1 || points == 1:
		for i := range out {
			out[i] = values[len(values)-1]
		}
		return out
	}

	scale := float64(len(values)-1) / float64(points-1)
	for i := range out {
		pos := float64(i) * scale
		lo := int(math.Floor(pos))
		if lo >= len(values)-1 {
			out[i] = values[len(values)-1]
			continue
		}
		frac := pos - float64(lo)
		out[i] = values[lo]*(1-frac) + values[lo+1]*frac
	}
	return out
}
