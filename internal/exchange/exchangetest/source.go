// Package exchangetest детерминированный источник свечей для тестов
package exchangetest

import (
	"context"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/skalibog/trendgym/pkg/models"
)

// Source выдает свечи на сетке интервала от даты листинга до Now.
// Цена закрытия растет или падает в зависимости от Slopes.
type Source struct {
	mu sync.Mutex

	Now      time.Time
	Listings map[string]time.Time
	// Delisted время, после которого свечей нет
	Delisted map[string]time.Time
	// Slopes изменение цены за свечу, по умолчанию +1
	Slopes map[string]float64
	// Err возвращается из всех вызовов, если задан
	Err error
	// Limit ограничение ответа источника, по умолчанию 1000
	Limit int

	calls      []Call
	instrCalls int
}

// Call параметры одного вызова GetCandles
type Call struct {
	Symbol   string
	Interval string
	Start    time.Time
	Limit    int
}

// NewSource создает источник с заданными датами листинга
func NewSource(now time.Time, listings map[string]time.Time) *Source {
	return &Source{
		Now:      now,
		Listings: listings,
		Delisted: make(map[string]time.Time),
		Slopes:   make(map[string]float64),
	}
}

func (s *Source) ListInstruments(_ context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.instrCalls++
	if s.Err != nil {
		return nil, s.Err
	}

	symbols := make([]string, 0, len(s.Listings))
	for symbol := range s.Listings {
		symbols = append(symbols, symbol)
	}
	sort.Strings(symbols)
	return symbols, nil
}

func (s *Source) GetCandles(ctx context.Context, symbol, interval string, start time.Time, limit int) (models.Candles, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.calls = append(s.calls, Call{Symbol: symbol, Interval: interval, Start: start, Limit: limit})
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s.Err != nil {
		return nil, s.Err
	}

	maxLimit := s.Limit
	if maxLimit <= 0 {
		maxLimit = 1000
	}
	if limit > maxLimit {
		limit = maxLimit
	}

	listing, ok := s.Listings[symbol]
	if !ok {
		return models.Candles{}, nil
	}

	step := models.IntervalDuration(interval)
	t := listing
	if start.After(listing) {
		t = listing.Add(start.Sub(listing) / step * step)
		if t.Before(start) {
			t = t.Add(step)
		}
	}

	end := s.Now
	if d, ok := s.Delisted[symbol]; ok && d.Before(end) {
		end = d
	}

	slope, ok := s.Slopes[symbol]
	if !ok {
		slope = 1
	}

	out := make(models.Candles, 0, limit)
	for len(out) < limit && !t.Add(step).After(end) {
		n := float64(t.Sub(listing) / step)
		price := 1000 + slope*n + math.Sin(n)
		out = append(out, models.Candle{
			Symbol:    symbol,
			Interval:  interval,
			OpenTime:  t,
			Open:      price - slope/2,
			High:      price + 1,
			Low:       price - 1,
			Close:     price,
			Volume:    10 + n,
			CloseTime: t.Add(step - time.Millisecond),
		})
		t = t.Add(step)
	}
	return out, nil
}

// Calls копия истории вызовов GetCandles
func (s *Source) Calls() []Call {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Call(nil), s.calls...)
}

// CallCount число вызовов GetCandles
func (s *Source) CallCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.calls)
}

// InstrumentCalls число вызовов ListInstruments
func (s *Source) InstrumentCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.instrCalls
}

// Listings поиск даты листинга по карте
type Listings map[string]time.Time

func (l Listings) GetListing(symbol string) (time.Time, error) {
	ts, ok := l[symbol]
	if !ok {
		return time.Time{}, ErrUnknown
	}
	return ts, nil
}
