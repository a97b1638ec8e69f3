// Package listing реестр дат листинга инструментов
package listing

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/skalibog/trendgym/internal/observability"
	"github.com/skalibog/trendgym/internal/storage"
	"github.com/skalibog/trendgym/pkg/logger"
	"github.com/skalibog/trendgym/pkg/models"
)

var (
	// ErrUnknownSymbol инструмент отсутствует в реестре
	ErrUnknownSymbol = errors.New("инструмент не найден в реестре листингов")
	// ErrNoHistoryFound поиск не нашел ни одной свечи
	ErrNoHistoryFound = errors.New("история инструмента не найдена")
)

// NoHistoryFoundError поиск даты листинга исчерпал пробы
type NoHistoryFoundError struct {
	Symbol string
	Probes int
}

func (e *NoHistoryFoundError) Error() string {
	return fmt.Sprintf("%s: свечей не найдено за %d проб", e.Symbol, e.Probes)
}

func (e *NoHistoryFoundError) Unwrap() error { return ErrNoHistoryFound }

// CandleSource источник свечей для проб
type CandleSource interface {
	GetCandles(ctx context.Context, symbol, interval string, start time.Time, limit int) (models.Candles, error)
}

// Progress получает уведомления о ходе поиска
type Progress interface {
	Step(done, total int, label string)
	Done()
}

// Options параметры поиска
type Options struct {
	Epoch         time.Time
	ProbeInterval string
	BatchSize     int
	MaxProbes     int
	Now           func() time.Time
	Progress      Progress
}

// Registry отображение инструмент -> время первой свечи
type Registry struct {
	source CandleSource
	store  storage.ListingStore
	opts   Options

	mu       sync.RWMutex
	listings map[string]time.Time

	group singleflight.Group
}

// NewRegistry создает пустой реестр
func NewRegistry(source CandleSource, store storage.ListingStore, opts Options) *Registry {
	if opts.ProbeInterval == "" {
		opts.ProbeInterval = "1d"
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = 1000
	}
	if opts.MaxProbes <= 0 {
		opts.MaxProbes = 16
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	return &Registry{
		source:   source,
		store:    store,
		opts:     opts,
		listings: make(map[string]time.Time),
	}
}

// Load подгружает сохраненный кэш. Отсутствие кэша не ошибка.
func (r *Registry) Load(ctx context.Context) error {
	cached, err := r.store.LoadListings(ctx)
	if errors.Is(err, storage.ErrNotFound) {
		logger.Info("Кэш листингов пуст")
		return nil
	}
	if err != nil {
		return fmt.Errorf("ошибка загрузки кэша листингов: %w", err)
	}

	r.mu.Lock()
	for symbol, ts := range cached {
		r.listings[symbol] = ts
	}
	r.mu.Unlock()

	logger.Info("Загружен кэш листингов", zap.Int("symbols", len(cached)))
	return nil
}

// GetListing возвращает время листинга инструмента
func (r *Registry) GetListing(symbol string) (time.Time, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ts, ok := r.listings[symbol]
	if !ok {
		return time.Time{}, fmt.Errorf("%s: %w", symbol, ErrUnknownSymbol)
	}
	return ts, nil
}

// Symbols возвращает отсортированный список известных инструментов
func (r *Registry) Symbols() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	symbols := make([]string, 0, len(r.listings))
	for symbol := range r.listings {
		symbols = append(symbols, symbol)
	}
	sort.Strings(symbols)
	return symbols
}

// Len количество известных инструментов
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.listings)
}

// EnsureAllDiscovered находит дату листинга для всех инструментов, которых нет в кэше,
// и один раз сохраняет кэш целиком. Инструменты без истории пропускаются.
func (r *Registry) EnsureAllDiscovered(ctx context.Context, symbols []string) error {
	_, err, _ := r.group.Do("discover", func() (interface{}, error) {
		return nil, r.discoverAll(ctx, symbols)
	})
	return err
}

func (r *Registry) discoverAll(ctx context.Context, symbols []string) error {
	missing := r.missing(symbols)
	if len(missing) == 0 {
		return nil
	}

	logger.Info("Поиск дат листинга", zap.Int("symbols", len(missing)))

	found := 0
	for i, symbol := range missing {
		if r.opts.Progress != nil {
			r.opts.Progress.Step(i, len(missing), symbol)
		}

		ts, err := r.discover(ctx, symbol)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if errors.Is(err, ErrNoHistoryFound) {
				observability.RecordListingDiscovery("no_history")
				logger.Warn("Нет истории свечей", zap.String("symbol", symbol), zap.Error(err))
			} else {
				observability.RecordListingDiscovery("error")
				logger.Error("Ошибка поиска даты листинга", zap.String("symbol", symbol), zap.Error(err))
			}
			continue
		}

		observability.RecordListingDiscovery("found")
		r.mu.Lock()
		r.listings[symbol] = ts
		r.mu.Unlock()
		found++

		logger.Debug("Найдена дата листинга", zap.String("symbol", symbol), zap.Time("listing", ts))
	}
	if r.opts.Progress != nil {
		r.opts.Progress.Done()
	}

	if found == 0 {
		return nil
	}

	r.mu.RLock()
	snapshot := make(map[string]time.Time, len(r.listings))
	for symbol, ts := range r.listings {
		snapshot[symbol] = ts
	}
	r.mu.RUnlock()

	if err := r.store.SaveListings(ctx, snapshot); err != nil {
		return fmt.Errorf("ошибка сохранения кэша листингов: %w", err)
	}

	logger.Info("Кэш листингов обновлен", zap.Int("found", found), zap.Int("total", len(snapshot)))
	return nil
}

func (r *Registry) missing(symbols []string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	seen := make(map[string]bool, len(symbols))
	missing := make([]string, 0)
	for _, symbol := range symbols {
		if _, ok := r.listings[symbol]; ok || seen[symbol] {
			continue
		}
		seen[symbol] = true
		missing = append(missing, symbol)
	}
	return missing
}

// discover двигает пробу от эпохи вперед пачками, пока не встретит первую свечу
func (r *Registry) discover(ctx context.Context, symbol string) (time.Time, error) {
	step := time.Duration(r.opts.BatchSize) * models.IntervalDuration(r.opts.ProbeInterval)
	now := r.opts.Now()

	probe := r.opts.Epoch
	for probes := 1; probes <= r.opts.MaxProbes; probes++ {
		batch, err := r.source.GetCandles(ctx, symbol, r.opts.ProbeInterval, probe, r.opts.BatchSize)
		if err != nil {
			return time.Time{}, err
		}
		if len(batch) > 0 {
			return batch[0].OpenTime, nil
		}

		probe = probe.Add(step)
		if probe.After(now) {
			return time.Time{}, &NoHistoryFoundError{Symbol: symbol, Probes: probes}
		}
	}

	return time.Time{}, &NoHistoryFoundError{Symbol: symbol, Probes: r.opts.MaxProbes}
}
