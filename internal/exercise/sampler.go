// Package exercise генерация и хранение пула упражнений
package exercise

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/skalibog/trendgym/internal/analysis/trend"
	"github.com/skalibog/trendgym/internal/candles"
	"github.com/skalibog/trendgym/internal/observability"
	"github.com/skalibog/trendgym/internal/storage"
	"github.com/skalibog/trendgym/pkg/logger"
	"github.com/skalibog/trendgym/pkg/models"
)

var (
	ErrNoInstruments     = errors.New("в реестре нет инструментов")
	ErrTooManyRejections = errors.New("превышено число попыток выборки")
)

// Причины отклонения окна
const (
	rejectTooYoung  = "too_young"
	rejectShortfall = "shortfall"
	rejectRange     = "insufficient_range"
	rejectListing   = "before_listing"
)

// Registry реестр листингов, из которого выбираются инструменты
type Registry interface {
	Symbols() []string
	GetListing(symbol string) (time.Time, error)
}

// Fetcher загрузчик окна свечей
type Fetcher interface {
	Fetch(ctx context.Context, symbol string, start time.Time, count int, interval string) (models.Candles, error)
}

// Progress получает уведомления о ходе генерации
type Progress interface {
	Step(done, total int, label string)
	Done()
}

// SamplerOptions параметры выборки
type SamplerOptions struct {
	Rand        *rand.Rand
	Now         func() time.Time
	MaxAttempts int
	Archive     storage.CandleArchive
	Progress    Progress
}

// Sampler выбирает случайные окна свечей и размечает их трендом
type Sampler struct {
	registry Registry
	fetcher  Fetcher
	opts     SamplerOptions
}

// NewSampler создает Sampler; MaxAttempts == 0 снимает ограничение
func NewSampler(registry Registry, fetcher Fetcher, opts SamplerOptions) *Sampler {
	if opts.Rand == nil {
		opts.Rand = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Archive == nil {
		opts.Archive = storage.NoopArchive{}
	}
	return &Sampler{registry: registry, fetcher: fetcher, opts: opts}
}

// GeneratePool формирует пул из size упражнений по windowLength свечей
func (s *Sampler) GeneratePool(ctx context.Context, size, windowLength int, interval string) (*Pool, error) {
	if size <= 0 || windowLength <= 0 {
		return nil, fmt.Errorf("некорректные параметры пула: size=%d window=%d", size, windowLength)
	}

	symbols := s.registry.Symbols()
	if len(symbols) == 0 {
		return nil, ErrNoInstruments
	}

	span := time.Duration(windowLength) * models.IntervalDuration(interval)
	exercises := make([]models.Exercise, 0, size)

	logger.Info("Генерация пула упражнений",
		zap.Int("size", size),
		zap.Int("window", windowLength),
		zap.String("interval", interval),
		zap.Int("symbols", len(symbols)))

	attempts := 0
	for len(exercises) < size {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if s.opts.MaxAttempts > 0 && attempts >= s.opts.MaxAttempts {
			return nil, fmt.Errorf("%w: %d попыток, получено %d из %d",
				ErrTooManyRejections, attempts, len(exercises), size)
		}
		attempts++

		ex, reason, err := s.sample(ctx, symbols, span, windowLength, interval)
		if err != nil {
			return nil, err
		}
		if reason != "" {
			observability.RecordExerciseRejection(reason)
			continue
		}

		exercises = append(exercises, ex)
		observability.RecordExerciseGenerated()
		if s.opts.Progress != nil {
			s.opts.Progress.Step(len(exercises), size, ex.Symbol)
		}

		if err := s.opts.Archive.ArchiveExercise(ctx, ex); err != nil {
			logger.Warn("Не удалось записать окно в архив", zap.String("id", ex.ID), zap.Error(err))
		}
	}
	if s.opts.Progress != nil {
		s.opts.Progress.Done()
	}

	logger.Info("Пул упражнений сгенерирован",
		zap.Int("size", len(exercises)),
		zap.Int("attempts", attempts))

	return NewPool(exercises)
}

// sample одна попытка. Непустая причина означает отклонение окна.
func (s *Sampler) sample(ctx context.Context, symbols []string, span time.Duration, windowLength int, interval string) (models.Exercise, string, error) {
	symbol := symbols[s.opts.Rand.Intn(len(symbols))]

	listing, err := s.registry.GetListing(symbol)
	if err != nil {
		return models.Exercise{}, "", err
	}

	latest := s.opts.Now().Add(-span)
	if latest.Before(listing) {
		logger.Debug("Инструмент слишком молод для окна",
			zap.String("symbol", symbol),
			zap.Time("listing", listing))
		return models.Exercise{}, rejectTooYoung, nil
	}

	minutes := int64(latest.Sub(listing) / time.Minute)
	start := listing.Add(time.Duration(s.opts.Rand.Int63n(minutes+1)) * time.Minute)

	window, err := s.fetcher.Fetch(ctx, symbol, start, windowLength, interval)
	if err != nil {
		var shortfall *candles.ShortfallFromSourceError
		switch {
		case errors.As(err, &shortfall):
			logger.Warn("Пропуск в данных источника, повторная выборка",
				zap.String("symbol", symbol),
				zap.Time("start", start),
				zap.Int("got", shortfall.Got),
				zap.Int("wanted", shortfall.Wanted))
			return models.Exercise{}, rejectShortfall, nil
		case errors.Is(err, candles.ErrInsufficientRange):
			return models.Exercise{}, rejectRange, nil
		case errors.Is(err, candles.ErrBeforeListing):
			return models.Exercise{}, rejectListing, nil
		default:
			return models.Exercise{}, "", fmt.Errorf("ошибка выборки окна %s: %w", symbol, err)
		}
	}

	return models.Exercise{
		ID:       uuid.NewString(),
		Symbol:   symbol,
		Interval: interval,
		Start:    start,
		Candles:  window,
		Trend:    trend.Classify(window.Closings()),
	}, "", nil
}
