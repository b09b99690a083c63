package main

import (
	"encoding/json"
	"log/slog"
	"math/rand"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// rateLimitEvery makes every Nth price request fail with 429 so the
// dashboard's sticky rate-limit banner and retry button can be tried out.
const rateLimitEvery = 7

// mockCoin is the random-walk state of one coin in usd.
type mockCoin struct {
	name   string
	symbol string
	price  float64
	supply float64
	open   float64
}

// fxRates converts usd prices into the other quote currencies.
var fxRates = map[string]float64{
	"usd": 1,
	"eur": 0.92,
	"gbp": 0.79,
	"jpy": 151.3,
}

// StartMockMarketServer runs a small CoinGecko look-alike serving
// /simple/price, /coins/{id}/market_chart and /coins/markets.
// Call this in a goroutine before creating Coinwatch.
func StartMockMarketServer(addr string) {
	var (
		mu    sync.Mutex
		calls atomic.Int64
	)
	coins := map[string]*mockCoin{
		"bitcoin":  {name: "Bitcoin", symbol: "btc", price: 65000, supply: 19.7e6},
		"ethereum": {name: "Ethereum", symbol: "eth", price: 3200, supply: 120e6},
		"solana":   {name: "Solana", symbol: "sol", price: 150, supply: 460e6},
		"dogecoin": {name: "Dogecoin", symbol: "doge", price: 0.15, supply: 145e9},
	}
	for _, c := range coins {
		c.open = c.price
	}

	// step moves every price by up to ±1%
	step := func() {
		for _, c := range coins {
			c.price *= 1 + (rand.Float64()-0.5)/50
		}
	}

	mux := http.NewServeMux()

	mux.HandleFunc("GET /simple/price", func(w http.ResponseWriter, r *http.Request) {
		if n := calls.Add(1); n%rateLimitEvery == 0 {
			slog.Info("mock rate limit", "request", n)
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}

		ids := strings.Split(r.URL.Query().Get("ids"), ",")
		currencies := strings.Split(r.URL.Query().Get("vs_currencies"), ",")

		mu.Lock()
		step()
		resp := make(map[string]map[string]float64)
		for _, id := range ids {
			c, ok := coins[id]
			if !ok {
				continue
			}
			fields := make(map[string]float64)
			for _, cur := range currencies {
				rate, ok := fxRates[cur]
				if !ok {
					continue
				}
				fields[cur] = c.price * rate
				fields[cur+"_market_cap"] = c.price * rate * c.supply
				fields[cur+"_24h_change"] = (c.price/c.open - 1) * 100
			}
			resp[id] = fields
		}
		mu.Unlock()

		writeMockJSON(w, resp)
	})

	mux.HandleFunc("GET /coins/{id}/market_chart", func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		c, ok := coins[r.PathValue("id")]
		var price float64
		if ok {
			price = c.price
		}
		mu.Unlock()
		if !ok {
			http.NotFound(w, r)
			return
		}

		rate := fxRates[r.URL.Query().Get("vs_currency")]
		if rate == 0 {
			rate = 1
		}
		days := 7
		switch r.URL.Query().Get("days") {
		case "1":
			days = 1
		case "30":
			days = 30
		}

		// walk backwards from the current price, one point per hour
		now := time.Now()
		n := days * 24
		prices := make([][2]float64, n)
		p := price * rate
		for i := n - 1; i >= 0; i-- {
			ts := now.Add(-time.Duration(n-1-i) * time.Hour)
			prices[i] = [2]float64{float64(ts.UnixMilli()), p}
			p *= 1 + (rand.Float64()-0.5)/100
		}
		writeMockJSON(w, map[string]any{"prices": prices})
	})

	mux.HandleFunc("GET /coins/markets", func(w http.ResponseWriter, r *http.Request) {
		rate := fxRates[r.URL.Query().Get("vs_currency")]
		if rate == 0 {
			rate = 1
		}

		mu.Lock()
		rows := make([]map[string]any, 0, len(coins))
		for id, c := range coins {
			rows = append(rows, map[string]any{
				"id":                          id,
				"symbol":                      c.symbol,
				"name":                        c.name,
				"current_price":               c.price * rate,
				"market_cap":                  c.price * rate * c.supply,
				"price_change_percentage_24h": (c.price/c.open - 1) * 100,
			})
		}
		mu.Unlock()

		writeMockJSON(w, rows)
	})

	if err := http.ListenAndServe(addr, mux); err != nil {
		slog.Error("mock server error", "error", err)
	}
}

func writeMockJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to write response", "error", err)
	}
}
