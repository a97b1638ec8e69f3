// Package model пользовательская модель, которая учится угадывать ответы пользователя
package model

import "github.com/skalibog/trendgym/pkg/models"

// Input вход модели: окно цен закрытия и вычисленный тренд
type Input struct {
	Closings []float64
	Trend    models.Trend
}

// Metrics результат шага обучения или оценки
type Metrics struct {
	Loss     float64 `json:"loss"`
	Accuracy float64 `json:"accuracy"`
}

// Model контракт обучаемой модели
type Model interface {
	// TrainStep один шаг SGD; Accuracy 1, если прогноз до обновления совпал с целью
	TrainStep(in Input, target [models.TrendClasses]float64) Metrics
	// Evaluate средние loss и точность без обновления весов
	Evaluate(ins []Input, targets [][models.TrendClasses]float64) Metrics
}

// Codec создает и сериализует модели
type Codec interface {
	New() Model
	Decode(data []byte) (Model, error)
	Encode(m Model) ([]byte, error)
}
