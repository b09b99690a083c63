package market

import "time"

// Quote holds the live values of one coin, keyed by lowercase currency code.
//
// Maps only contain currencies the upstream returned a non-null value for.
type Quote struct {
	// Values maps currency code to current price.
	Values map[string]float64

	// MarketCaps maps currency code to market capitalisation.
	MarketCaps map[string]float64

	// Changes maps currency code to the 24h percent change.
	Changes map[string]float64
}

// PricePoint is a single sample of a historical price series.
type PricePoint struct {
	Time  time.Time `json:"time"`
	Price float64   `json:"price"`
}

// Coin is one row of the markets listing, ordered by market cap.
type Coin struct {
	ID                       string   `json:"id"`
	Symbol                   string   `json:"symbol"`
	Name                     string   `json:"name"`
	Image                    string   `json:"image"`
	CurrentPrice             *float64 `json:"current_price"`
	MarketCap                *float64 `json:"market_cap"`
	PriceChangePercentage24h *float64 `json:"price_change_percentage_24h"`
}
