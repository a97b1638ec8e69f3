package models

import (
	"fmt"
	"time"
)

// intervals длительности свечей Binance
var intervals = map[string]time.Duration{
	"1m":  time.Minute,
	"3m":  3 * time.Minute,
	"5m":  5 * time.Minute,
	"15m": 15 * time.Minute,
	"30m": 30 * time.Minute,
	"1h":  time.Hour,
	"2h":  2 * time.Hour,
	"4h":  4 * time.Hour,
	"6h":  6 * time.Hour,
	"8h":  8 * time.Hour,
	"12h": 12 * time.Hour,
	"1d":  24 * time.Hour,
	"3d":  72 * time.Hour,
	"1w":  7 * 24 * time.Hour,
}

// ValidInterval сообщает, известен ли интервал
func ValidInterval(interval string) bool {
	_, ok := intervals[interval]
	return ok
}

// IntervalDuration конвертирует строковый интервал в duration.
// Неизвестный интервал - ошибка программиста, поэтому panic.
func IntervalDuration(interval string) time.Duration {
	d, ok := intervals[interval]
	if !ok {
		panic(fmt.Sprintf("неизвестный интервал свечей %q", interval))
	}
	return d
}
