package market

import (
	"errors"
	"fmt"
)

var (
	// ErrRateLimited is returned when the upstream answers HTTP 429.
	ErrRateLimited = errors.New("rate limited")

	// ErrEmptyPayload is returned when a 2xx response carries no usable data.
	ErrEmptyPayload = errors.New("empty or malformed payload")

	// ErrUnsupportedCurrency is returned for currencies outside the
	// configured set.
	ErrUnsupportedCurrency = errors.New("unsupported currency")
)

// StatusError is returned for non-2xx responses other than 429.
type StatusError struct {
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("API Error: %d", e.StatusCode)
}
