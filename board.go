package coinwatch

import (
	"time"

	"github.com/jpalmerr/coinwatch/internal/market"
	"github.com/jpalmerr/coinwatch/internal/poller"
	"github.com/jpalmerr/coinwatch/internal/portfolio"
	"github.com/jpalmerr/coinwatch/internal/store"
)

type boardInput struct {
	state      poller.State
	watchList  market.WatchList
	currencies []string
	currency   string
	holdings   portfolio.Holdings
	version    uint64
	now        time.Time
}

// buildBoard renders the dashboard view. Coins follow the watch list order;
// snapshot entries for coins no longer watched are never shown.
func buildBoard(in boardInput) store.Board {
	b := store.Board{
		Status:     string(in.state.Status.Kind),
		Message:    in.state.Status.Message,
		Currency:   in.currency,
		Currencies: append([]string(nil), in.currencies...),
		Coins:      make([]store.CoinResult, 0, len(in.watchList)),
		Version:    in.version,
		UpdatedAt:  in.now,
	}

	prices := make(map[string]float64, len(in.watchList))
	for _, id := range in.watchList {
		coin := store.CoinResult{ID: id}
		if item, ok := in.state.Snapshot[id]; ok {
			coin.Prices = item.Values
			coin.MarketCaps = item.MarketCaps
			coin.Changes = item.Changes
			coin.Change24h = item.Change24h
			fetchedAt := item.FetchedAt
			coin.FetchedAt = &fetchedAt
			if p, ok := item.Values[in.currency]; ok {
				prices[id] = p
			}
		}
		if amount, ok := in.holdings[id]; ok {
			coin.Holding = amount.String()
			if p, ok := prices[id]; ok {
				coin.Value = portfolio.Format(portfolio.Value(amount, p), in.currency)
			}
		}
		b.Coins = append(b.Coins, coin)
	}

	if len(in.holdings) > 0 {
		b.Equity = portfolio.Format(portfolio.Equity(in.holdings, prices), in.currency)
	}
	return b
}
