package coinwatch

import (
	"time"

	"github.com/jpalmerr/coinwatch/internal/poller"
)

// Status is the state of the price poller.
//
// [StatusRateLimited] and [StatusError] are sticky: periodic polling pauses
// until the watch list changes or the user retries.
type Status string

const (
	// StatusIdle means no fetch has happened yet, or the watch list is empty.
	StatusIdle Status = "idle"

	// StatusLoading means a fetch is in flight.
	StatusLoading Status = "loading"

	// StatusSuccess means the last fetch was applied.
	StatusSuccess Status = "success"

	// StatusRateLimited means the upstream answered HTTP 429.
	StatusRateLimited Status = "rate_limited"

	// StatusError means the last fetch failed for another reason.
	StatusError Status = "error"
)

// String returns the string representation of the status.
func (s Status) String() string {
	return string(s)
}

// Sticky reports whether s pauses periodic polling.
func (s Status) Sticky() bool {
	return s == StatusRateLimited || s == StatusError
}

// Quote is the latest known values of one watched coin.
type Quote struct {
	// ID is the upstream coin identifier.
	ID string

	// Prices maps currency code to price.
	Prices map[string]float64

	// MarketCaps maps currency code to market capitalisation.
	MarketCaps map[string]float64

	// Change24h is the 24h percent change in the primary currency, or nil.
	Change24h *float64

	// FetchedAt is when the values arrived.
	FetchedAt time.Time
}

// Update is delivered to [WithUpdateCallback] functions after every poller
// transition.
type Update struct {
	Status  Status
	Message string

	// WatchList is the tracked coins in display order.
	WatchList []string

	// Quotes holds one entry per watched coin that has been priced, in
	// watch list order.
	Quotes []Quote

	// Version increases with every update.
	Version uint64
}

func toUpdate(st poller.State) Update {
	u := Update{
		Status:    Status(st.Status.Kind),
		Message:   st.Status.Message,
		WatchList: append([]string(nil), st.WatchList...),
		Quotes:    make([]Quote, 0, len(st.Snapshot)),
		Version:   st.Version,
	}
	for _, id := range st.WatchList {
		item, ok := st.Snapshot[id]
		if !ok {
			continue
		}
		q := Quote{
			ID:         id,
			Prices:     copyFloats(item.Values),
			MarketCaps: copyFloats(item.MarketCaps),
			FetchedAt:  item.FetchedAt,
		}
		if item.Change24h != nil {
			change := *item.Change24h
			q.Change24h = &change
		}
		u.Quotes = append(u.Quotes, q)
	}
	return u
}

func copyFloats(m map[string]float64) map[string]float64 {
	if m == nil {
		return nil
	}
	out := make(map[string]float64, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
