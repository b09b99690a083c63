package store

import "time"

// CoinResult is one watch-list row of the board.
//
// Price fields are nil until the first successful fetch for the coin.
type CoinResult struct {
	// ID is the normalized coin identifier.
	ID string `json:"id"`

	// Prices maps currency code to current price.
	Prices map[string]float64 `json:"prices"`

	// MarketCaps maps currency code to market capitalisation.
	MarketCaps map[string]float64 `json:"market_caps"`

	// Changes maps currency code to 24h percent change.
	Changes map[string]float64 `json:"changes"`

	// Change24h is the 24h percent change in the primary currency.
	Change24h *float64 `json:"change_24h"`

	// Holding is the amount held as a decimal string, empty if none.
	Holding string `json:"holding,omitempty"`

	// Value is the holding's worth in the selected currency, formatted.
	Value string `json:"value,omitempty"`

	// FetchedAt is when the prices were fetched.
	FetchedAt *time.Time `json:"fetched_at"`
}

// Board is the complete state rendered by the dashboard.
type Board struct {
	// Status is the poll status kind ("idle", "loading", "success",
	// "rate_limited", "error").
	Status string `json:"status"`

	// Message is the human-readable failure message for sticky statuses.
	Message string `json:"message,omitempty"`

	// Currency is the selected display currency.
	Currency string `json:"currency"`

	// Currencies lists every currency being fetched.
	Currencies []string `json:"currencies"`

	// Coins holds one row per watched coin, in watch-list order.
	Coins []CoinResult `json:"coins"`

	// Equity is the total value of holdings in the selected currency, formatted.
	Equity string `json:"equity"`

	// Version increases with every published board.
	Version uint64 `json:"version"`

	// UpdatedAt is when the board was built.
	UpdatedAt time.Time `json:"updated_at"`
}

// Store defines the interface for storing and subscribing to boards.
//
// Store implementations must be safe for concurrent access.
type Store interface {
	// Set stores b and notifies subscribers. Boards older than the
	// stored one are ignored; Set reports whether b was accepted.
	Set(b Board) bool

	// Get returns the current board.
	Get() Board

	// Subscribe returns a channel that receives boards.
	// The returned channel has a buffer; slow consumers may miss updates.
	// Caller must call Unsubscribe when done to prevent resource leaks.
	Subscribe() <-chan Board

	// Unsubscribe removes a subscription and closes the channel.
	// Safe to call with a channel that was already unsubscribed.
	Unsubscribe(ch <-chan Board)
}
