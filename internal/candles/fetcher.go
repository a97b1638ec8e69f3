// Package candles постраничная загрузка окна свечей с проверками
package candles

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/skalibog/trendgym/pkg/logger"
	"github.com/skalibog/trendgym/pkg/models"
)

// MaxPerRequest лимит свечей за один запрос к источнику
const MaxPerRequest = 1000

// Source источник свечей
type Source interface {
	GetCandles(ctx context.Context, symbol, interval string, start time.Time, limit int) (models.Candles, error)
}

// ListingLookup время листинга инструмента
type ListingLookup interface {
	GetListing(symbol string) (time.Time, error)
}

// Fetcher загружает ровно count свечей начиная со start
type Fetcher struct {
	source   Source
	listings ListingLookup
	now      func() time.Time
}

// NewFetcher создает Fetcher; now == nil означает time.Now
func NewFetcher(source Source, listings ListingLookup, now func() time.Time) *Fetcher {
	if now == nil {
		now = time.Now
	}
	return &Fetcher{source: source, listings: listings, now: now}
}

// Fetch возвращает count свечей от старых к новым, каждая открыта не раньше start
func (f *Fetcher) Fetch(ctx context.Context, symbol string, start time.Time, count int, interval string) (models.Candles, error) {
	if count <= 0 {
		return nil, ErrInvalidCount
	}

	listing, err := f.listings.GetListing(symbol)
	if err != nil {
		return nil, err
	}
	if start.Before(listing) {
		return nil, &BeforeListingError{Symbol: symbol, Start: start, Listing: listing}
	}

	step := models.IntervalDuration(interval)
	possible := int(f.now().Sub(start) / step)
	if possible < count {
		return nil, &InsufficientRangeError{Symbol: symbol, Interval: interval, Wanted: count, Possible: possible}
	}

	result := make(models.Candles, 0, count)
	cursor := start
	for len(result) < count {
		limit := count - len(result)
		if limit > MaxPerRequest {
			limit = MaxPerRequest
		}

		page, err := f.source.GetCandles(ctx, symbol, interval, cursor, limit)
		if err != nil {
			return nil, fmt.Errorf("ошибка загрузки свечей %s: %w", symbol, err)
		}
		if len(page) == 0 {
			break
		}

		added := 0
		for _, candle := range page {
			if candle.OpenTime.Before(cursor) {
				continue
			}
			if n := len(result); n > 0 && !candle.OpenTime.After(result[n-1].OpenTime) {
				continue
			}
			result = append(result, candle)
			added++
		}
		// источник повторяет уже полученные свечи
		if added == 0 {
			break
		}
		cursor = result[len(result)-1].OpenTime.Add(time.Millisecond)
	}

	if len(result) > count {
		result = result[:count]
	}
	if len(result) < count {
		logger.Debug("Недостаточно свечей от источника",
			zap.String("symbol", symbol),
			zap.String("interval", interval),
			zap.Int("wanted", count),
			zap.Int("got", len(result)))
		return nil, &ShortfallFromSourceError{Symbol: symbol, Interval: interval, Wanted: count, Got: len(result)}
	}

	return result, nil
}
