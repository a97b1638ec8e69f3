package storage

import (
	"context"
	"time"

	"github.com/skalibog/trendgym/pkg/models"
)

// ListingStore кэш дат листинга инструментов
type ListingStore interface {
	// LoadListings возвращает ErrNotFound при первом запуске
	LoadListings(ctx context.Context) (map[string]time.Time, error)
	SaveListings(ctx context.Context, listings map[string]time.Time) error
}

// PoolStore хранилище пула упражнений; порядок сохраняется
type PoolStore interface {
	// LoadPool возвращает ErrNotFound, если пул еще не сохранялся
	LoadPool(ctx context.Context) ([]models.Exercise, error)
	SavePool(ctx context.Context, exercises []models.Exercise) error
}

// UserStore модели и статистика пользователей.
// SaveUserState записывает модель и статистику атомарно: либо обе, либо ничего.
type UserStore interface {
	// LoadModel возвращает ErrNotFound для нового пользователя
	LoadModel(ctx context.Context, userID string) ([]byte, error)
	// LoadStats возвращает ErrNotFound для нового пользователя
	LoadStats(ctx context.Context, userID string) (*models.UserStats, error)
	SaveUserState(ctx context.Context, userID string, model []byte, stats *models.UserStats) error
}

// CandleArchive архив окон свечей и ответов (аналитика, не влияет на логику)
type CandleArchive interface {
	ArchiveExercise(ctx context.Context, exercise models.Exercise) error
	RecordAnswer(ctx context.Context, userID string, exercise models.Exercise, choice models.Trend, match bool) error
	Close()
}

// NoopArchive архив-заглушка
type NoopArchive struct{}

func (NoopArchive) ArchiveExercise(context.Context, models.Exercise) error { return nil }

func (NoopArchive) RecordAnswer(context.Context, string, models.Exercise, models.Trend, bool) error {
	return nil
}

func (NoopArchive) Close() {}
