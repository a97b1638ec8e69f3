package exchange

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jpillora/backoff"
	"go.uber.org/zap"

	"github.com/skalibog/trendgym/pkg/logger"
)

// permanentError ошибка, которую бессмысленно повторять
type permanentError struct {
	err error
}

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Permanent помечает ошибку как неповторяемую
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// IsPermanent проверяет пометку Permanent
func IsPermanent(err error) bool {
	var p *permanentError
	return errors.As(err, &p)
}

// Retrier повторяет операцию с экспоненциальной задержкой
type Retrier struct {
	Attempts int
	Min      time.Duration
	Max      time.Duration
	Factor   float64
	Jitter   bool
}

// NewRetrier создает Retrier с ограниченным числом попыток
func NewRetrier(attempts int, min, max time.Duration) *Retrier {
	if attempts < 1 {
		attempts = 1
	}
	return &Retrier{
		Attempts: attempts,
		Min:      min,
		Max:      max,
		Factor:   2,
		Jitter:   true,
	}
}

// Do вызывает fn, пока она не вернет nil, Permanent ошибку или не кончатся попытки
func (r *Retrier) Do(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	b := &backoff.Backoff{
		Min:    r.Min,
		Max:    r.Max,
		Factor: r.Factor,
		Jitter: r.Jitter,
	}

	var err error
	for attempt := 1; attempt <= r.Attempts; attempt++ {
		if err = fn(ctx); err == nil {
			return nil
		}
		if IsPermanent(err) || ctx.Err() != nil {
			return err
		}
		if attempt == r.Attempts {
			break
		}

		delay := b.Duration()
		logger.Warn("Повтор запроса к источнику",
			zap.String("op", op),
			zap.Int("attempt", attempt),
			zap.Duration("delay", delay),
			zap.Error(err))

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}

	return fmt.Errorf("%s: исчерпаны попытки (%d): %w", op, r.Attempts, err)
}
