package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/jpalmerr/coinwatch/internal/market"
	"github.com/jpalmerr/coinwatch/internal/poller"
	"github.com/jpalmerr/coinwatch/internal/portfolio"
	"github.com/jpalmerr/coinwatch/internal/store"
)

// fakeController records calls and publishes a board for each change.
type fakeController struct {
	mu         sync.Mutex
	store      *store.MemoryStore
	watchList  market.WatchList
	currencies []string
	currency   string
	holdings   map[string]string
	retries    int
	resetErr   error
	version    uint64
}

func newFakeController(st *store.MemoryStore) *fakeController {
	return &fakeController{
		store:      st,
		currencies: []string{"usd", "eur"},
		currency:   "usd",
		holdings:   map[string]string{},
	}
}

func (c *fakeController) publishLocked() {
	c.version++
	coins := make([]store.CoinResult, 0, len(c.watchList))
	for _, id := range c.watchList {
		coins = append(coins, store.CoinResult{ID: id, Holding: c.holdings[id]})
	}
	c.store.Set(store.Board{
		Status:     "idle",
		Currency:   c.currency,
		Currencies: c.currencies,
		Coins:      coins,
		Version:    c.version,
	})
}

func (c *fakeController) AddCoin(input string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	id := market.Normalize(input)
	next, err := c.watchList.Add(id)
	if err != nil {
		return "", err
	}
	c.watchList = next
	c.publishLocked()
	return id, nil
}

func (c *fakeController) RemoveCoin(id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	next, err := c.watchList.Remove(id)
	if err != nil {
		return err
	}
	c.watchList = next
	c.publishLocked()
	return nil
}

func (c *fakeController) Retry() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.retries++
}

func (c *fakeController) SetCurrency(currency string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, cur := range c.currencies {
		if cur == currency {
			c.currency = currency
			c.publishLocked()
			return nil
		}
	}
	return fmt.Errorf("%w: %q", market.ErrUnsupportedCurrency, currency)
}

func (c *fakeController) SetHolding(id, amount string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.watchList.Contains(id) {
		return fmt.Errorf("%w: %q", market.ErrNotFound, id)
	}
	d, err := portfolio.ParseAmount(amount)
	if err != nil {
		return err
	}
	if d.IsZero() {
		delete(c.holdings, id)
	} else {
		c.holdings[id] = d.String()
	}
	c.publishLocked()
	return nil
}

func (c *fakeController) ResetAccount(context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.resetErr != nil {
		return c.resetErr
	}
	c.watchList = nil
	c.holdings = map[string]string{}
	c.publishLocked()
	return nil
}

// fakeMarket serves canned history and listings.
type fakeMarket struct {
	mu          sync.Mutex
	points      []market.PricePoint
	chartErr    error
	coins       []market.Coin
	marketsErr  error
	chartCalls  []string
	marketCalls int
	gate        chan struct{}
}

func (m *fakeMarket) MarketChart(_ context.Context, id, currency string, days int) ([]market.PricePoint, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.chartCalls = append(m.chartCalls, fmt.Sprintf("%s/%s/%d", id, currency, days))
	return m.points, m.chartErr
}

func (m *fakeMarket) Markets(_ context.Context, _ string, _ int) ([]market.Coin, error) {
	m.mu.Lock()
	m.marketCalls++
	gate := m.gate
	m.mu.Unlock()
	if gate != nil {
		<-gate
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.coins, m.marketsErr
}

func (m *fakeMarket) calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.marketCalls
}

func newAPIServer() (*Server, *fakeController, *fakeMarket) {
	st := store.NewMemoryStore()
	ctrl := newFakeController(st)
	fm := &fakeMarket{}
	srv := NewServer(Config{Store: st, Controller: ctrl, Market: fm, Logger: testLogger()})
	return srv, ctrl, fm
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeBoard(t *testing.T, rec *httptest.ResponseRecorder) store.Board {
	t.Helper()
	var b store.Board
	if err := json.NewDecoder(rec.Body).Decode(&b); err != nil {
		t.Fatalf("decode board: %v", err)
	}
	return b
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var e errorResponse
	if err := json.NewDecoder(rec.Body).Decode(&e); err != nil {
		t.Fatalf("decode error: %v", err)
	}
	return e.Error
}

func TestAddCoin(t *testing.T) {
	srv, _, _ := newAPIServer()
	h := srv.Handler()

	rec := do(t, h, http.MethodPost, "/api/watchlist", `{"id":"BTC"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201: %s", rec.Code, rec.Body.String())
	}
	b := decodeBoard(t, rec)
	if len(b.Coins) != 1 || b.Coins[0].ID != "bitcoin" {
		t.Errorf("coins = %+v, want [bitcoin]", b.Coins)
	}

	rec = do(t, h, http.MethodPost, "/api/watchlist", `{"id":"bitcoin"}`)
	if rec.Code != http.StatusConflict {
		t.Errorf("duplicate status = %d, want 409", rec.Code)
	}
}

func TestAddCoin_BadRequests(t *testing.T) {
	srv, _, _ := newAPIServer()
	h := srv.Handler()

	tests := []struct {
		name string
		body string
	}{
		{"malformed", `{"id":`},
		{"empty id", `{"id":"  "}`},
		{"invalid id", `{"id":"not/a/coin"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, h, http.MethodPost, "/api/watchlist", tt.body)
			if rec.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want 400", rec.Code)
			}
			if msg := decodeError(t, rec); msg == "" {
				t.Error("error message is empty")
			}
		})
	}
}

func TestRemoveCoin(t *testing.T) {
	srv, ctrl, _ := newAPIServer()
	h := srv.Handler()
	if _, err := ctrl.AddCoin("ethereum"); err != nil {
		t.Fatal(err)
	}

	rec := do(t, h, http.MethodDelete, "/api/watchlist/ethereum", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if b := decodeBoard(t, rec); len(b.Coins) != 0 {
		t.Errorf("coins = %+v, want none", b.Coins)
	}

	rec = do(t, h, http.MethodDelete, "/api/watchlist/ethereum", "")
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}

func TestRetry(t *testing.T) {
	srv, ctrl, _ := newAPIServer()

	rec := do(t, srv.Handler(), http.MethodPost, "/api/retry", "")
	if rec.Code != http.StatusAccepted {
		t.Errorf("status = %d, want 202", rec.Code)
	}
	if ctrl.retries != 1 {
		t.Errorf("retries = %d, want 1", ctrl.retries)
	}
}

func TestSetCurrency(t *testing.T) {
	srv, _, _ := newAPIServer()
	h := srv.Handler()

	rec := do(t, h, http.MethodPut, "/api/currency", `{"currency":"eur"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if b := decodeBoard(t, rec); b.Currency != "eur" {
		t.Errorf("Currency = %q, want eur", b.Currency)
	}

	rec = do(t, h, http.MethodPut, "/api/currency", `{"currency":"doge"}`)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("unsupported currency status = %d, want 400", rec.Code)
	}
}

func TestSetHolding(t *testing.T) {
	srv, ctrl, _ := newAPIServer()
	h := srv.Handler()
	if _, err := ctrl.AddCoin("bitcoin"); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name   string
		path   string
		body   string
		status int
		want   string
	}{
		{"number", "/api/holdings/bitcoin", `{"amount":0.25}`, http.StatusOK, "0.25"},
		{"string", "/api/holdings/bitcoin", `{"amount":"1.5"}`, http.StatusOK, "1.5"},
		{"zero removes", "/api/holdings/bitcoin", `{"amount":0}`, http.StatusOK, ""},
		{"negative", "/api/holdings/bitcoin", `{"amount":-1}`, http.StatusBadRequest, ""},
		{"unknown coin", "/api/holdings/solana", `{"amount":1}`, http.StatusNotFound, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, h, http.MethodPut, tt.path, tt.body)
			if rec.Code != tt.status {
				t.Fatalf("status = %d, want %d: %s", rec.Code, tt.status, rec.Body.String())
			}
			if tt.status != http.StatusOK {
				return
			}
			b := decodeBoard(t, rec)
			if got := b.Coins[0].Holding; got != tt.want {
				t.Errorf("Holding = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestResetAccount(t *testing.T) {
	srv, ctrl, _ := newAPIServer()
	h := srv.Handler()
	if _, err := ctrl.AddCoin("bitcoin"); err != nil {
		t.Fatal(err)
	}

	rec := do(t, h, http.MethodDelete, "/api/account", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if b := decodeBoard(t, rec); len(b.Coins) != 0 {
		t.Errorf("coins = %+v, want none", b.Coins)
	}

	ctrl.resetErr = errors.New("db down")
	rec = do(t, h, http.MethodDelete, "/api/account", "")
	if rec.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", rec.Code)
	}
	if msg := decodeError(t, rec); strings.Contains(msg, "db down") {
		t.Errorf("internal error leaked: %q", msg)
	}
}

func TestMutationRoutesAbsentWithoutController(t *testing.T) {
	srv := newTestServer(store.NewMemoryStore())

	rec := do(t, srv.Handler(), http.MethodPost, "/api/watchlist", `{"id":"bitcoin"}`)
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}

func TestHistory(t *testing.T) {
	srv, ctrl, fm := newAPIServer()
	if err := ctrl.SetCurrency("eur"); err != nil {
		t.Fatal(err)
	}
	t0 := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	fm.points = []market.PricePoint{
		{Time: t0, Price: 100},
		{Time: t0.Add(time.Hour), Price: 120},
	}

	rec := do(t, srv.Handler(), http.MethodGet, "/api/history/bitcoin", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body.String())
	}

	var resp historyResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatal(err)
	}
	if resp.Trend != "up" || resp.Days != 7 || resp.Currency != "eur" || len(resp.Points) != 2 {
		t.Errorf("response = %+v", resp)
	}
	if got := fm.chartCalls[0]; got != "bitcoin/eur/7" {
		t.Errorf("chart call = %q, want bitcoin/eur/7", got)
	}
}

func TestHistory_Params(t *testing.T) {
	srv, _, fm := newAPIServer()
	fm.points = []market.PricePoint{{Price: 5}, {Price: 4}}

	rec := do(t, srv.Handler(), http.MethodGet, "/api/history/ethereum?days=30&currency=GBP", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var resp historyResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatal(err)
	}
	if resp.Trend != "down" {
		t.Errorf("Trend = %q, want down", resp.Trend)
	}
	if got := fm.chartCalls[0]; got != "ethereum/gbp/30" {
		t.Errorf("chart call = %q", got)
	}

	for _, path := range []string{"/api/history/bitcoin?days=2", "/api/history/bitcoin?days=x", "/api/history/BAD_ID"} {
		if rec := do(t, srv.Handler(), http.MethodGet, path, ""); rec.Code != http.StatusBadRequest {
			t.Errorf("GET %s status = %d, want 400", path, rec.Code)
		}
	}
}

func TestHistory_UpstreamErrors(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		msg    string
	}{
		{"rate limited", market.ErrRateLimited, http.StatusTooManyRequests, poller.RateLimitedMessage},
		{"empty", market.ErrEmptyPayload, http.StatusNotFound, poller.EmptyPayloadMessage},
		{"http status", &market.StatusError{StatusCode: 503}, http.StatusBadGateway, "API Error: 503"},
		{"wrapped http status", fmt.Errorf("history: %w", &market.StatusError{StatusCode: 500}), http.StatusBadGateway, "API Error: 500"},
		{"network", errors.New("request failed: dial tcp"), http.StatusBadGateway, poller.NetworkMessage},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv, _, fm := newAPIServer()
			fm.chartErr = tt.err

			rec := do(t, srv.Handler(), http.MethodGet, "/api/history/bitcoin", "")
			if rec.Code != tt.status {
				t.Fatalf("status = %d, want %d", rec.Code, tt.status)
			}
			if msg := decodeError(t, rec); msg != tt.msg {
				t.Errorf("error = %q, want %q", msg, tt.msg)
			}
		})
	}
}
