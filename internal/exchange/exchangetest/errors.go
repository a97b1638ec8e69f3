package exchangetest

import "errors"

// ErrUnknown инструмент отсутствует в Listings
var ErrUnknown = errors.New("exchangetest: неизвестный инструмент")
