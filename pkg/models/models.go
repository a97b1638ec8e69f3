package models

import (
	"errors"
	"fmt"
	"time"
)

// Candle представляет свечу OHLCV
type Candle struct {
	Symbol    string    `json:"symbol"`
	Interval  string    `json:"interval"`
	OpenTime  time.Time `json:"open_time"`
	Open      float64   `json:"open"`
	High      float64   `json:"high"`
	Low       float64   `json:"low"`
	Close     float64   `json:"close"`
	Volume    float64   `json:"volume"`
	CloseTime time.Time `json:"close_time"`
}

// Candles упорядоченная (от старых к новым) последовательность свечей
type Candles []Candle

// Closings возвращает столбец цен закрытия
func (c Candles) Closings() []float64 {
	closings := make([]float64, len(c))
	for i, candle := range c {
		closings[i] = candle.Close
	}
	return closings
}

// OHLCV возвращает первые шесть столбцов: время открытия (мс), open, high, low, close, volume
func (c Candles) OHLCV() [][]float64 {
	rows := make([][]float64, len(c))
	for i, candle := range c {
		rows[i] = []float64{
			float64(candle.OpenTime.UnixMilli()),
			candle.Open,
			candle.High,
			candle.Low,
			candle.Close,
			candle.Volume,
		}
	}
	return rows
}

// Trend направление рынка: -1 нисходящий, 0 боковик, 1 восходящий
type Trend int8

const (
	TrendDown  Trend = -1
	TrendRange Trend = 0
	TrendUp    Trend = 1
)

// TrendClasses количество классов тренда
const TrendClasses = 3

// Valid проверяет, что значение входит в {-1, 0, 1}
func (t Trend) Valid() bool {
	return t >= TrendDown && t <= TrendUp
}

// Class возвращает индекс класса 0..2
func (t Trend) Class() int {
	return int(t) + 1
}

// OneHot кодирует тренд вектором из трех элементов
func (t Trend) OneHot() [TrendClasses]float64 {
	var v [TrendClasses]float64
	v[t.Class()] = 1
	return v
}

func (t Trend) String() string {
	switch t {
	case TrendDown:
		return "down"
	case TrendRange:
		return "range"
	case TrendUp:
		return "up"
	default:
		return fmt.Sprintf("trend(%d)", int8(t))
	}
}

// TrendFromClass обратное преобразование к Class
func TrendFromClass(class int) (Trend, error) {
	if class < 0 || class >= TrendClasses {
		return 0, fmt.Errorf("класс тренда вне диапазона: %d", class)
	}
	return Trend(class - 1), nil
}

// TrendFromOneHot декодирует вектор из трех элементов с единственной единицей
func TrendFromOneHot(v []float64) (Trend, error) {
	if len(v) != TrendClasses {
		return 0, fmt.Errorf("ожидалось %d элемента, получено %d", TrendClasses, len(v))
	}
	class := -1
	for i, x := range v {
		switch x {
		case 0:
		case 1:
			if class != -1 {
				return 0, errors.New("в one-hot векторе несколько единиц")
			}
			class = i
		default:
			return 0, fmt.Errorf("недопустимое значение one-hot: %v", x)
		}
	}
	if class == -1 {
		return 0, errors.New("в one-hot векторе нет единицы")
	}
	return TrendFromClass(class)
}

// Exercise размеченное окно свечей одного инструмента
type Exercise struct {
	ID       string    `json:"id"`
	Symbol   string    `json:"symbol"`
	Interval string    `json:"interval"`
	Start    time.Time `json:"start"`
	Candles  Candles   `json:"candles"`
	Trend    Trend     `json:"trend"`
}

// AnswerRecord один ответ пользователя из истории
type AnswerRecord struct {
	ExerciseID string    `json:"exercise_id"`
	Index      int       `json:"index"`
	Choice     Trend     `json:"choice"`
	AnsweredAt time.Time `json:"answered_at"`
}

// UserStats накопленная статистика пользователя
type UserStats struct {
	Attempts int            `json:"attempts"`
	Matches  int            `json:"matches"`
	History  []AnswerRecord `json:"history"`
}

// Validate проверяет инварианты статистики
func (s *UserStats) Validate() error {
	if s.Attempts != len(s.History) {
		return fmt.Errorf("attempts=%d не совпадает с длиной истории %d", s.Attempts, len(s.History))
	}
	if s.Matches < 0 || s.Matches > s.Attempts {
		return fmt.Errorf("matches=%d вне диапазона [0, %d]", s.Matches, s.Attempts)
	}
	return nil
}

// Clone возвращает глубокую копию
func (s *UserStats) Clone() *UserStats {
	c := &UserStats{Attempts: s.Attempts, Matches: s.Matches}
	c.History = append([]AnswerRecord(nil), s.History...)
	return c
}

// FeedbackResult ответ на отправку решения упражнения
type FeedbackResult struct {
	Match            bool    `json:"match"`
	TrueTrend        Trend   `json:"true_trend"`
	UserTrend        Trend   `json:"user_trend"`
	Matches          int     `json:"matches"`
	Attempts         int     `json:"attempts"`
	MatchPercentage  float64 `json:"match_percentage"`
	Loss             float64 `json:"loss"`
	HistoricAccuracy float64 `json:"historic_accuracy"`
}
