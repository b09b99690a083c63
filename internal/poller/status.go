package poller

import (
	"errors"

	"github.com/jpalmerr/coinwatch/internal/market"
)

// StatusKind is the tag of a [Status].
type StatusKind string

const (
	StatusIdle        StatusKind = "idle"
	StatusLoading     StatusKind = "loading"
	StatusSuccess     StatusKind = "success"
	StatusRateLimited StatusKind = "rate_limited"
	StatusError       StatusKind = "error"
)

// Messages shown for each failure class.
const (
	RateLimitedMessage  = "Rate limit reached (429). Wait 1 min before retrying."
	EmptyPayloadMessage = "No data available."
	NetworkMessage      = "Could not load crypto data. Please try again later."
)

// Status is the poll status. Message is set for RateLimited and Error.
type Status struct {
	Kind    StatusKind
	Message string
}

// Sticky reports whether the status suppresses timer-driven fetches.
func (s Status) Sticky() bool {
	return s.Kind == StatusRateLimited || s.Kind == StatusError
}

// String returns the kind, followed by the message when one is set.
func (s Status) String() string {
	if s.Message == "" {
		return string(s.Kind)
	}
	return string(s.Kind) + ": " + s.Message
}

// classify maps a fetch error to the sticky status it produces.
func classify(err error) Status {
	var se *market.StatusError
	switch {
	case errors.Is(err, market.ErrRateLimited):
		return Status{Kind: StatusRateLimited, Message: RateLimitedMessage}
	case errors.Is(err, market.ErrEmptyPayload):
		return Status{Kind: StatusError, Message: EmptyPayloadMessage}
	case errors.As(err, &se):
		return Status{Kind: StatusError, Message: se.Error()}
	default:
		return Status{Kind: StatusError, Message: NetworkMessage}
	}
}
