// Package trend разметка окна свечей по наклону линейной регрессии
package trend

import (
	"math"

	"github.com/skalibog/trendgym/pkg/models"
)

// Пороги стандартизированного наклона
const (
	UpThreshold   = 0.5
	DownThreshold = -0.5
)

// flatTolerance относительный разброс цен, ниже которого ряд считается плоским
const flatTolerance = 1e-12

// StandardizedSlope вычисляет наклон МНК регрессии цен по индексу,
// умноженный на std(index)/std(closings). Второе значение false для
// рядов короче двух точек и плоских рядов.
func StandardizedSlope(closings []float64) (float64, bool) {
	n := len(closings)
	if n < 2 {
		return 0, false
	}

	meanX := float64(n-1) / 2
	meanY := 0.0
	maxAbs := 0.0
	for _, y := range closings {
		meanY += y
		maxAbs = math.Max(maxAbs, math.Abs(y))
	}
	meanY /= float64(n)

	var sxx, syy, sxy float64
	for i, y := range closings {
		dx := float64(i) - meanX
		dy := y - meanY
		sxx += dx * dx
		syy += dy * dy
		sxy += dx * dy
	}

	stdX := math.Sqrt(sxx / float64(n))
	stdY := math.Sqrt(syy / float64(n))
	if stdY == 0 || stdY <= flatTolerance*maxAbs || math.IsNaN(stdY) {
		return 0, false
	}

	slope := sxy / sxx
	return slope * stdX / stdY, true
}

// Classify относит ряд цен закрытия к одному из трех классов
func Classify(closings []float64) models.Trend {
	slope, ok := StandardizedSlope(closings)
	if !ok {
		return models.TrendRange
	}

	switch {
	case slope >= UpThreshold:
		return models.TrendUp
	case slope <= DownThreshold:
		return models.TrendDown
	default:
		return models.TrendRange
	}
}
