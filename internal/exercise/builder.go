package exercise

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/skalibog/trendgym/internal/observability"
	"github.com/skalibog/trendgym/internal/storage"
	"github.com/skalibog/trendgym/pkg/logger"
)

// InstrumentLister список торгуемых инструментов
type InstrumentLister interface {
	ListInstruments(ctx context.Context) ([]string, error)
}

// Discoverer реестр, умеющий находить даты листинга
type Discoverer interface {
	Load(ctx context.Context) error
	EnsureAllDiscovered(ctx context.Context, symbols []string) error
}

// BuildOptions параметры пула
type BuildOptions struct {
	Size         int
	WindowLength int
	Interval     string
	Rebuild      bool
}

// Builder загружает сохраненный пул или генерирует и сохраняет новый
type Builder struct {
	instruments InstrumentLister
	registry    Discoverer
	sampler     *Sampler
	store       storage.PoolStore
	opts        BuildOptions
}

func NewBuilder(instruments InstrumentLister, registry Discoverer, sampler *Sampler, store storage.PoolStore, opts BuildOptions) *Builder {
	return &Builder{
		instruments: instruments,
		registry:    registry,
		sampler:     sampler,
		store:       store,
		opts:        opts,
	}
}

// Build возвращает пул, готовый к обслуживанию
func (b *Builder) Build(ctx context.Context) (*Pool, error) {
	if !b.opts.Rebuild {
		exercises, err := b.store.LoadPool(ctx)
		switch {
		case err == nil && len(exercises) > 0:
			pool, err := NewPool(exercises)
			if err != nil {
				return nil, fmt.Errorf("сохраненный пул поврежден: %w", err)
			}
			logger.Info("Загружен сохраненный пул", zap.Int("size", pool.Len()))
			observability.SetPoolSize(pool.Len())
			return pool, nil
		case err != nil && !errors.Is(err, storage.ErrNotFound):
			return nil, fmt.Errorf("ошибка загрузки пула: %w", err)
		}
	}

	if err := b.registry.Load(ctx); err != nil {
		return nil, err
	}

	symbols, err := b.instruments.ListInstruments(ctx)
	if err != nil {
		return nil, err
	}
	if err := b.registry.EnsureAllDiscovered(ctx, symbols); err != nil {
		return nil, err
	}

	pool, err := b.sampler.GeneratePool(ctx, b.opts.Size, b.opts.WindowLength, b.opts.Interval)
	if err != nil {
		return nil, err
	}

	if err := b.store.SavePool(ctx, pool.Exercises()); err != nil {
		return nil, fmt.Errorf("ошибка сохранения пула: %w", err)
	}

	observability.SetPoolSize(pool.Len())
	return pool, nil
}
