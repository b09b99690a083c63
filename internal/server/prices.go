package server

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/jpalmerr/coinwatch/internal/market"
	"golang.org/x/sync/singleflight"
)

const (
	pricesTTL          = 60 * time.Second
	pricesPerPage      = 50
	pricesFetchTimeout = 15 * time.Second

	// pricesCacheControl lets shared caches serve the listing for a minute
	// and revalidate in the background for 30s after that.
	pricesCacheControl = "s-maxage=60, stale-while-revalidate=30"

	defaultPricesCurrency = "usd"
)

type cachedPrices struct {
	coins     []market.Coin
	body      []byte
	fetchedAt time.Time
}

// priceCache holds encoded markets listings per currency. Concurrent misses
// for the same currency share one upstream request.
type priceCache struct {
	market MarketData
	ttl    time.Duration
	now    func() time.Time

	group singleflight.Group

	mu      sync.Mutex
	entries map[string]cachedPrices
}

func newPriceCache(m MarketData, ttl time.Duration) *priceCache {
	return &priceCache{
		market:  m,
		ttl:     ttl,
		now:     time.Now,
		entries: make(map[string]cachedPrices),
	}
}

func (c *priceCache) lookup(currency string) (cachedPrices, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[currency]
	if !ok || c.now().Sub(e.fetchedAt) >= c.ttl {
		return cachedPrices{}, false
	}
	return e, true
}

// get returns the listing for currency, fetching it on a miss.
func (c *priceCache) get(currency string) (cachedPrices, error) {
	if e, ok := c.lookup(currency); ok {
		return e, nil
	}

	v, err, _ := c.group.Do(currency, func() (any, error) {
		if e, ok := c.lookup(currency); ok {
			return e, nil
		}
		// detached from any single request so one caller leaving does not
		// fail the others sharing this fetch
		ctx, cancel := context.WithTimeout(context.Background(), pricesFetchTimeout)
		defer cancel()

		coins, err := c.market.Markets(ctx, currency, pricesPerPage)
		if err != nil {
			return nil, err
		}
		body, err := json.Marshal(coins)
		if err != nil {
			return nil, err
		}

		e := cachedPrices{coins: coins, body: body, fetchedAt: c.now()}
		c.mu.Lock()
		c.entries[currency] = e
		c.mu.Unlock()
		return e, nil
	})
	if err != nil {
		return cachedPrices{}, err
	}
	return v.(cachedPrices), nil
}

// filterCoins keeps coins whose name, symbol or id contains search,
// ignoring case.
func filterCoins(coins []market.Coin, search string) []market.Coin {
	search = strings.ToLower(search)
	out := make([]market.Coin, 0, len(coins))
	for _, c := range coins {
		if strings.Contains(strings.ToLower(c.Name), search) ||
			strings.Contains(strings.ToLower(c.Symbol), search) ||
			strings.Contains(c.ID, search) {
			out = append(out, c)
		}
	}
	return out
}

// handlePrices serves the top coins by market cap. The optional search
// parameter filters the cached listing by name, symbol or id.
func (s *Server) handlePrices(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	currency := strings.ToLower(strings.TrimSpace(query.Get("currency")))
	if currency == "" {
		currency = defaultPricesCurrency
	}
	search := strings.TrimSpace(query.Get("search"))

	e, err := s.prices.get(currency)
	if err != nil {
		s.logger.Error("markets fetch failed", "currency", currency, "error", err)
		s.writeError(w, http.StatusInternalServerError, "Failed to fetch prices")
		return
	}

	body := e.body
	if search != "" {
		body, err = json.Marshal(filterCoins(e.coins, search))
		if err != nil {
			s.logger.Error("failed to encode prices", "error", err)
			s.writeError(w, http.StatusInternalServerError, "Failed to fetch prices")
			return
		}
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", pricesCacheControl)
	if _, err := w.Write(body); err != nil {
		s.logger.Error("failed to write prices response", "error", err)
	}
}
