package candles

import (
	"errors"
	"fmt"
	"time"
)

var (
	ErrBeforeListing       = errors.New("начало окна раньше листинга")
	ErrInsufficientRange   = errors.New("до текущего момента не помещается нужное число свечей")
	ErrShortfallFromSource = errors.New("источник вернул меньше свечей, чем запрошено")
	ErrInvalidCount        = errors.New("количество свечей должно быть положительным")
)

// BeforeListingError запрос раньше первой свечи инструмента
type BeforeListingError struct {
	Symbol  string
	Start   time.Time
	Listing time.Time
}

func (e *BeforeListingError) Error() string {
	return fmt.Sprintf("%s: начало %s раньше листинга %s",
		e.Symbol, e.Start.Format(time.RFC3339), e.Listing.Format(time.RFC3339))
}

func (e *BeforeListingError) Unwrap() error { return ErrBeforeListing }

// InsufficientRangeError окно не помещается между start и now
type InsufficientRangeError struct {
	Symbol   string
	Interval string
	Wanted   int
	Possible int
}

func (e *InsufficientRangeError) Error() string {
	return fmt.Sprintf("%s %s: запрошено %d свечей, возможно не более %d",
		e.Symbol, e.Interval, e.Wanted, e.Possible)
}

func (e *InsufficientRangeError) Unwrap() error { return ErrInsufficientRange }

// ShortfallFromSourceError в данных источника пропуск
type ShortfallFromSourceError struct {
	Symbol   string
	Interval string
	Wanted   int
	Got      int
}

func (e *ShortfallFromSourceError) Error() string {
	return fmt.Sprintf("%s %s: получено %d свечей из %d", e.Symbol, e.Interval, e.Got, e.Wanted)
}

func (e *ShortfallFromSourceError) Unwrap() error { return ErrShortfallFromSource }
