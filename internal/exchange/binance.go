package exchange

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"time"

	"github.com/adshao/go-binance/v2"
	"github.com/adshao/go-binance/v2/common"
	"github.com/shopspring/decimal"

	"github.com/skalibog/trendgym/internal/config"
	"github.com/skalibog/trendgym/internal/observability"
	"github.com/skalibog/trendgym/pkg/models"
)

// MaxCandlesPerRequest лимит свечей в одном ответе Binance
const MaxCandlesPerRequest = 1000

// MarketSource источник рыночных данных
type MarketSource interface {
	ListInstruments(ctx context.Context) ([]string, error)
	GetCandles(ctx context.Context, symbol, interval string, start time.Time, limit int) (models.Candles, error)
}

// Коды ошибок Binance, после которых имеет смысл повторить запрос
var retryableAPICodes = map[int64]bool{
	-1000: true, // UNKNOWN
	-1001: true, // DISCONNECTED
	-1003: true, // TOO_MANY_REQUESTS
	-1007: true, // TIMEOUT
	-1015: true, // TOO_MANY_ORDERS
}

// BinanceClient клиент для взаимодействия с Binance
type BinanceClient struct {
	spot       *binance.Client
	quoteAsset string
	timeout    time.Duration
	retrier    *Retrier
}

// NewBinanceClient создает новый клиент Binance
func NewBinanceClient(cfg config.BinanceConfig) (*BinanceClient, error) {
	spotClient := binance.NewClient(cfg.APIKey, cfg.APISecret)
	spotClient.HTTPClient = &http.Client{}

	switch {
	case cfg.BaseURL != "":
		spotClient.BaseURL = cfg.BaseURL
	case cfg.Testnet:
		spotClient.BaseURL = "https://testnet.binance.vision"
	}

	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &BinanceClient{
		spot:       spotClient,
		quoteAsset: cfg.QuoteAsset,
		timeout:    timeout,
		retrier:    NewRetrier(cfg.MaxRetries, cfg.BackoffMin, cfg.BackoffMax),
	}, nil
}

// ListInstruments возвращает торгуемые пары с заданной котируемой валютой
func (c *BinanceClient) ListInstruments(ctx context.Context) ([]string, error) {
	var info *binance.ExchangeInfo
	err := c.call(ctx, "exchange_info", func(ctx context.Context) error {
		var err error
		info, err = c.spot.NewExchangeInfoService().Do(ctx)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("ошибка получения списка инструментов: %w", err)
	}

	symbols := make([]string, 0, len(info.Symbols))
	for _, s := range info.Symbols {
		if s.Status != "TRADING" {
			continue
		}
		if c.quoteAsset != "" && s.QuoteAsset != c.quoteAsset {
			continue
		}
		symbols = append(symbols, s.Symbol)
	}
	sort.Strings(symbols)

	return symbols, nil
}

// GetCandles получает до limit свечей начиная со start (от старых к новым)
func (c *BinanceClient) GetCandles(ctx context.Context, symbol, interval string, start time.Time, limit int) (models.Candles, error) {
	if limit > MaxCandlesPerRequest {
		limit = MaxCandlesPerRequest
	}

	var klines []*binance.Kline
	err := c.call(ctx, "klines", func(ctx context.Context) error {
		var err error
		klines, err = c.spot.NewKlinesService().
			Symbol(symbol).
			Interval(interval).
			StartTime(start.UnixMilli()).
			Limit(limit).
			Do(ctx)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("ошибка получения свечей %s: %w", symbol, err)
	}

	candles := make(models.Candles, 0, len(klines))
	for _, k := range klines {
		candle, err := convertKline(symbol, interval, k)
		if err != nil {
			return nil, err
		}
		candles = append(candles, candle)
	}

	return candles, nil
}

// call выполняет запрос с таймаутом, повторами и метриками
func (c *BinanceClient) call(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	return c.retrier.Do(ctx, op, func(ctx context.Context) error {
		reqCtx, cancel := context.WithTimeout(ctx, c.timeout)
		defer cancel()

		started := time.Now()
		err := fn(reqCtx)
		status := "ok"
		if err != nil {
			status = "error"
		}
		observability.RecordSourceRequest(op, status, time.Since(started).Seconds())

		// ответы 5xx приходят без кода и повторяются
		var apiErr *common.APIError
		if errors.As(err, &apiErr) && apiErr.Code != 0 && !retryableAPICodes[apiErr.Code] {
			return Permanent(err)
		}
		return err
	})
}

func convertKline(symbol, interval string, k *binance.Kline) (models.Candle, error) {
	values := [...]string{k.Open, k.High, k.Low, k.Close, k.Volume}
	var parsed [len(values)]float64
	for i, v := range values {
		d, err := decimal.NewFromString(v)
		if err != nil {
			return models.Candle{}, fmt.Errorf("ошибка разбора свечи %s: %w", symbol, err)
		}
		parsed[i] = d.InexactFloat64()
	}

	return models.Candle{
		Symbol:    symbol,
		Interval:  interval,
		OpenTime:  time.UnixMilli(k.OpenTime).UTC(),
		Open:      parsed[0],
		High:      parsed[1],
		Low:       parsed[2],
		Close:     parsed[3],
		Volume:    parsed[4],
		CloseTime: time.UnixMilli(k.CloseTime).UTC(),
	}, nil
}
