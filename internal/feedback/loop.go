// Package feedback обучение пользовательской модели на ответах пользователя
package feedback

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"go.uber.org/zap"

	"github.com/skalibog/trendgym/internal/exercise"
	"github.com/skalibog/trendgym/internal/model"
	"github.com/skalibog/trendgym/internal/observability"
	"github.com/skalibog/trendgym/internal/storage"
	"github.com/skalibog/trendgym/pkg/logger"
	"github.com/skalibog/trendgym/pkg/models"
)

// Answer ответ пользователя. Упражнение задается ExerciseID или ExerciseIndex.
type Answer struct {
	UserID        string
	ExerciseID    string
	ExerciseIndex *int
	Choice        *int
}

// Loop обрабатывает ответы пользователей
type Loop struct {
	pool    *exercise.Pool
	users   storage.UserStore
	codec   model.Codec
	archive storage.CandleArchive
	locks   *userLocks
	now     func() time.Time
}

// NewLoop archive == nil отключает архив ответов
func NewLoop(pool *exercise.Pool, users storage.UserStore, codec model.Codec, archive storage.CandleArchive) *Loop {
	if archive == nil {
		archive = storage.NoopArchive{}
	}
	return &Loop{
		pool:    pool,
		users:   users,
		codec:   codec,
		archive: archive,
		locks:   newUserLocks(),
		now:     time.Now,
	}
}

// resolved проверенный ответ
type resolved struct {
	exercise models.Exercise
	index    int
	choice   models.Trend
}

// SubmitAnswer обучает модель пользователя на одном ответе и сохраняет
// модель и статистику одной записью. При ошибке ничего не сохраняется.
func (l *Loop) SubmitAnswer(ctx context.Context, answer Answer) (*models.FeedbackResult, error) {
	started := time.Now()

	result, err := l.submit(ctx, answer)

	status := "error"
	switch {
	case err == nil && result.Match:
		status = "match"
	case err == nil:
		status = "miss"
	case errors.Is(err, ErrMalformedAnswer):
		status = "malformed"
	}
	observability.RecordAnswer(status, time.Since(started).Seconds())

	return result, err
}

func (l *Loop) submit(ctx context.Context, answer Answer) (*models.FeedbackResult, error) {
	r, err := l.resolve(answer)
	if err != nil {
		return nil, err
	}

	unlock := l.locks.lock(answer.UserID)
	defer unlock()

	m, err := l.loadModel(ctx, answer.UserID)
	if err != nil {
		return nil, err
	}

	step := m.TrainStep(
		model.Input{Closings: r.exercise.Candles.Closings(), Trend: r.exercise.Trend},
		r.choice.OneHot(),
	)

	stats, err := l.loadStats(ctx, answer.UserID)
	if err != nil {
		return nil, err
	}
	stats.History = append(stats.History, models.AnswerRecord{
		ExerciseID: r.exercise.ID,
		Index:      r.index,
		Choice:     r.choice,
		AnsweredAt: l.now().UTC(),
	})
	stats.Attempts++
	if step.Accuracy >= 1 {
		stats.Matches++
	}
	if err := stats.Validate(); err != nil {
		return nil, fmt.Errorf("статистика пользователя %s: %w", answer.UserID, err)
	}

	historic := l.evaluateHistory(m, stats.History)

	blob, err := l.codec.Encode(m)
	if err != nil {
		return nil, err
	}
	if err := l.users.SaveUserState(ctx, answer.UserID, blob, stats); err != nil {
		return nil, fmt.Errorf("ошибка сохранения состояния пользователя: %w", err)
	}

	match := r.choice == r.exercise.Trend
	if err := l.archive.RecordAnswer(ctx, answer.UserID, r.exercise, r.choice, match); err != nil {
		logger.Warn("Не удалось записать ответ в архив", zap.String("user", answer.UserID), zap.Error(err))
	}

	logger.Debug("Ответ обработан",
		zap.String("user", answer.UserID),
		zap.String("exercise", r.exercise.ID),
		zap.Bool("match", match),
		zap.Int("attempts", stats.Attempts),
		zap.Float64("loss", step.Loss))

	return &models.FeedbackResult{
		Match:            match,
		TrueTrend:        r.exercise.Trend,
		UserTrend:        r.choice,
		Matches:          stats.Matches,
		Attempts:         stats.Attempts,
		MatchPercentage:  percentage(float64(stats.Matches) / float64(stats.Attempts)),
		Loss:             step.Loss,
		HistoricAccuracy: percentage(historic.Accuracy),
	}, nil
}

// resolve проверяет поля ответа до обращения к хранилищу
func (l *Loop) resolve(answer Answer) (resolved, error) {
	if answer.UserID == "" {
		return resolved{}, malformed("user_id", "отсутствует")
	}
	if answer.Choice == nil {
		return resolved{}, malformed("choice", "отсутствует")
	}
	if *answer.Choice < int(models.TrendDown) || *answer.Choice > int(models.TrendUp) {
		return resolved{}, malformed("choice", fmt.Sprintf("значение %d вне {-1, 0, 1}", *answer.Choice))
	}
	choice := models.Trend(*answer.Choice)

	switch {
	case answer.ExerciseID != "":
		ex, index, err := l.pool.ByID(answer.ExerciseID)
		if err != nil {
			return resolved{}, malformed("exercise_id", "неизвестное упражнение")
		}
		if answer.ExerciseIndex != nil && *answer.ExerciseIndex != index {
			return resolved{}, malformed("exercise_index", "не соответствует exercise_id")
		}
		return resolved{exercise: ex, index: index, choice: choice}, nil
	case answer.ExerciseIndex != nil:
		ex, err := l.pool.At(*answer.ExerciseIndex)
		if err != nil {
			return resolved{}, malformed("exercise_index", "вне пула")
		}
		return resolved{exercise: ex, index: *answer.ExerciseIndex, choice: choice}, nil
	default:
		return resolved{}, malformed("exercise", "отсутствует")
	}
}

func (l *Loop) loadModel(ctx context.Context, userID string) (model.Model, error) {
	blob, err := l.users.LoadModel(ctx, userID)
	if errors.Is(err, storage.ErrNotFound) {
		return l.codec.New(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("ошибка загрузки модели %s: %w", userID, err)
	}

	m, err := l.codec.Decode(blob)
	if err != nil {
		return nil, fmt.Errorf("модель пользователя %s: %w", userID, err)
	}
	return m, nil
}

func (l *Loop) loadStats(ctx context.Context, userID string) (*models.UserStats, error) {
	stats, err := l.users.LoadStats(ctx, userID)
	if errors.Is(err, storage.ErrNotFound) {
		return &models.UserStats{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("ошибка загрузки статистики %s: %w", userID, err)
	}
	return stats.Clone(), nil
}

// evaluateHistory оценивает модель на всей истории ответов.
// Записи об упражнениях, которых нет в текущем пуле, пропускаются.
func (l *Loop) evaluateHistory(m model.Model, history []models.AnswerRecord) model.Metrics {
	ins := make([]model.Input, 0, len(history))
	targets := make([][models.TrendClasses]float64, 0, len(history))

	for _, rec := range history {
		ex, ok := l.lookup(rec)
		if !ok || !rec.Choice.Valid() {
			continue
		}
		ins = append(ins, model.Input{Closings: ex.Candles.Closings(), Trend: ex.Trend})
		targets = append(targets, rec.Choice.OneHot())
	}

	if skipped := len(history) - len(ins); skipped > 0 {
		logger.Debug("Часть истории вне текущего пула", zap.Int("skipped", skipped))
	}
	return m.Evaluate(ins, targets)
}

func (l *Loop) lookup(rec models.AnswerRecord) (models.Exercise, bool) {
	if rec.ExerciseID != "" {
		ex, _, err := l.pool.ByID(rec.ExerciseID)
		return ex, err == nil
	}
	ex, err := l.pool.At(rec.Index)
	return ex, err == nil
}

// percentage доля в процентах с точностью до сотых
func percentage(ratio float64) float64 {
	if math.IsNaN(ratio) {
		return 0
	}
	return math.Round(ratio*10000) / 100
}
