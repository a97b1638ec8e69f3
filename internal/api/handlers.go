package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/skalibog/trendgym/internal/feedback"
	"github.com/skalibog/trendgym/pkg/models"
)

// exerciseResponse упражнение в формате клиента
type exerciseResponse struct {
	XTraining    [][]float64  `json:"x_training"`
	YTraining    int          `json:"y_training"`
	Trend        models.Trend `json:"trend"`
	ExerciseHash int          `json:"exercise_hash"`
	ExerciseID   string       `json:"exercise_id"`
	Symbol       string       `json:"symbol"`
	Interval     string       `json:"interval"`
}

// respondRequest ответ пользователя; user_trending_response число или one-hot массив
type respondRequest struct {
	UserHash             string          `json:"user_hash"`
	UserTrendingResponse json.RawMessage `json:"user_trending_response"`
	ExerciseHash         *int            `json:"exercise_hash"`
	ExerciseID           string          `json:"exercise_id"`
}

func (s *Server) getExercise(c *gin.Context) {
	if c.Query("user_hash") == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "user_hash обязателен"})
		return
	}

	ex, index, err := s.randomExercise()
	if err != nil {
		_ = c.Error(err)
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, exerciseResponse{
		XTraining:    ex.Candles.OHLCV(),
		YTraining:    ex.Trend.Class(),
		Trend:        ex.Trend,
		ExerciseHash: index,
		ExerciseID:   ex.ID,
		Symbol:       ex.Symbol,
		Interval:     ex.Interval,
	})
}

func (s *Server) respond(c *gin.Context) {
	var req respondRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "некорректное тело запроса: " + err.Error()})
		return
	}

	answer := feedback.Answer{
		UserID:        req.UserHash,
		ExerciseID:    req.ExerciseID,
		ExerciseIndex: req.ExerciseHash,
	}
	if len(req.UserTrendingResponse) > 0 {
		choice, err := parseChoice(req.UserTrendingResponse)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "user_trending_response: " + err.Error()})
			return
		}
		answer.Choice = &choice
	}

	result, err := s.submitter.SubmitAnswer(c.Request.Context(), answer)
	if err != nil {
		_ = c.Error(err)
		status := http.StatusInternalServerError
		if errors.Is(err, feedback.ErrMalformedAnswer) {
			status = http.StatusBadRequest
		}
		c.JSON(status, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, result)
}

// parseChoice принимает -1/0/1 или one-hot массив из трех элементов
func parseChoice(raw json.RawMessage) (int, error) {
	raw = bytes.TrimSpace(raw)
	if bytes.Equal(raw, []byte("null")) {
		return 0, errors.New("отсутствует")
	}

	if len(raw) > 0 && raw[0] == '[' {
		var vec []float64
		if err := json.Unmarshal(raw, &vec); err != nil {
			return 0, err
		}
		trend, err := models.TrendFromOneHot(vec)
		if err != nil {
			return 0, err
		}
		return int(trend), nil
	}

	var v int
	if err := json.Unmarshal(raw, &v); err != nil {
		return 0, fmt.Errorf("ожидалось целое число или массив: %w", err)
	}
	return v, nil
}
