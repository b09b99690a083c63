package coinwatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jpalmerr/coinwatch/dashboard"
	"github.com/jpalmerr/coinwatch/internal/market"
	"github.com/jpalmerr/coinwatch/internal/poller"
	"github.com/jpalmerr/coinwatch/internal/portfolio"
	"github.com/jpalmerr/coinwatch/internal/server"
	"github.com/jpalmerr/coinwatch/internal/store"
	"github.com/jpalmerr/coinwatch/prefs"
)

const (
	defaultPollingInterval = poller.DefaultInterval
	defaultPort            = 8080
	defaultCurrency        = "usd"

	prefsTimeout = 5 * time.Second
)

// Coinwatch is the main orchestrator for price polling and dashboard
// serving.
//
// Coinwatch keeps a watch list of coins priced in one or more currencies,
// publishes every change to the dashboard, and optionally persists the
// user's watch list, holdings and display currency. It is created using
// [New] with functional options and started with [Coinwatch.Start].
//
// The typical lifecycle is:
//
//	cw, err := coinwatch.New(coinwatch.WithCoins("btc", "eth"))
//	if err != nil {
//	    slog.Error("failed to create coinwatch", "error", err)
//	    os.Exit(1)
//	}
//
//	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
//	defer cancel()
//
//	cw.Start(ctx) // blocks until context cancelled
//
// The mutation methods ([Coinwatch.AddCoin], [Coinwatch.RemoveCoin] and
// friends) are safe for concurrent use and may be called before Start.
type Coinwatch struct {
	title           string
	defaults        market.WatchList
	currencies      []string
	aliases         market.Aliases
	pollingInterval time.Duration
	port            int
	logger          *slog.Logger
	prefStore       prefs.Store
	userID          string
	callbacks       []func(Update)

	client *market.Client
	poller *poller.Poller
	board  *store.MemoryStore
	writer *prefs.Writer

	// editMu serializes mutations end to end, including the poller call
	editMu  sync.Mutex
	started bool

	mu        sync.Mutex
	watchList market.WatchList
	holdings  portfolio.Holdings
	currency  string
	state     poller.State
	version   uint64
}

// New creates a new [Coinwatch] instance with the given options.
//
// Defaults:
//   - Currencies: usd
//   - Polling interval: 60 seconds
//   - Port: 8080
//   - No persistence
//
// An empty watch list is valid; coins can be added from the dashboard.
// Returns an error if any option or default coin is invalid.
func New(opts ...Option) (*Coinwatch, error) {
	cfg := &cwConfig{
		currencies:      []string{defaultCurrency},
		pollingInterval: defaultPollingInterval,
		port:            defaultPort,
	}

	for _, opt := range opts {
		if err := opt(cfg); err != nil {
			return nil, err
		}
	}

	aliases := market.DefaultAliases().With(cfg.aliases)
	defaults, err := market.NewWatchList(aliases, cfg.coins...)
	if err != nil {
		return nil, fmt.Errorf("invalid coin list: %w", err)
	}

	logger := cfg.logger
	if logger == nil {
		logger = slog.Default()
	}

	clientOpts := []market.ClientOption{market.WithAPIKey(cfg.apiKey)}
	if cfg.apiTimeout > 0 {
		clientOpts = append(clientOpts, market.WithTimeout(cfg.apiTimeout))
	}
	if cfg.httpClient != nil {
		clientOpts = append(clientOpts, market.WithHTTPClient(cfg.httpClient))
	}
	client := market.NewClient(cfg.baseURL, clientOpts...)

	cw := &Coinwatch{
		title:           cfg.title,
		defaults:        defaults,
		currencies:      cfg.currencies,
		aliases:         aliases,
		pollingInterval: cfg.pollingInterval,
		port:            cfg.port,
		logger:          logger,
		prefStore:       cfg.prefStore,
		userID:          cfg.userID,
		callbacks:       cfg.updateCallbacks,
		client:          client,
		poller:          poller.New(client, cfg.currencies, logger),
		board:           store.NewMemoryStore(),
		watchList:       defaults.Clone(),
		holdings:        portfolio.Holdings{},
		currency:        cfg.currencies[0],
	}
	if cfg.prefStore != nil {
		cw.writer = prefs.NewWriter(cfg.prefStore, cfg.userID, cfg.debounce, logger)
	}
	cw.state = cw.poller.State()
	cw.poller.OnChange(cw.onPollerState)

	cw.mu.Lock()
	cw.publishLocked()
	cw.mu.Unlock()

	return cw, nil
}

// Start loads saved preferences, begins polling and serves the dashboard.
//
// Start is a blocking call that runs until the provided context is
// cancelled. Prices are fetched immediately, then at the configured
// interval. On return the poller has stopped and pending preference edits
// have been saved.
//
// Returns nil on graceful shutdown. Returns an error if the HTTP server
// fails to start or Start was already called.
func (c *Coinwatch) Start(ctx context.Context) error {
	if ctx.Err() != nil {
		return nil
	}

	c.editMu.Lock()
	if c.started {
		c.editMu.Unlock()
		return errors.New("coinwatch already started")
	}
	c.started = true
	c.loadPreferences(ctx)
	watchList := c.WatchList()
	c.poller.Start(ctx, watchList, c.pollingInterval)
	c.editMu.Unlock()

	c.logger.Info("coinwatch starting",
		"coins", len(watchList),
		"currencies", c.currencies,
		"interval", c.pollingInterval.String(),
	)

	httpServer := server.NewServer(server.Config{
		Store:      c.board,
		Controller: c,
		Market:     c.client,
		Port:       c.port,
		Assets:     dashboard.Assets,
		Title:      c.title,
		Logger:     c.logger,
	})
	if err := httpServer.Start(ctx); err != nil {
		c.shutdown()
		return fmt.Errorf("failed to start HTTP server: %w", err)
	}
	c.logger.Info("dashboard available", "url", fmt.Sprintf("http://localhost:%d", c.port))

	<-ctx.Done()
	c.shutdown()
	c.logger.Info("coinwatch stopped")
	return nil
}

// shutdown stops polling and flushes preferences.
func (c *Coinwatch) shutdown() {
	c.poller.Stop()
	if c.writer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), prefsTimeout)
		defer cancel()
		// failures are already logged by the writer
		_ = c.writer.Close(ctx)
	}
	c.client.Close()
}

// loadPreferences replaces the defaults with saved preferences. Missing or
// unreadable preferences keep the defaults.
func (c *Coinwatch) loadPreferences(ctx context.Context) {
	if c.prefStore == nil {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, prefsTimeout)
	defer cancel()

	p, err := c.prefStore.Load(ctx, c.userID)
	if errors.Is(err, prefs.ErrNotFound) {
		c.logger.Info("no saved preferences", "user_id", c.userID)
		return
	}
	if err != nil {
		c.logger.Warn("failed to load preferences", "user_id", c.userID, "error", err)
		return
	}

	watchList, err := market.NewWatchList(c.aliases, p.WatchList...)
	if err != nil {
		c.logger.Warn("ignoring saved watch list", "user_id", c.userID, "error", err)
		watchList = c.defaults.Clone()
	}
	holdings, err := portfolio.FromStrings(p.Holdings)
	if err != nil {
		c.logger.Warn("ignoring saved holdings", "user_id", c.userID, "error", err)
		holdings = portfolio.Holdings{}
	}

	c.mu.Lock()
	c.watchList = watchList
	c.holdings = holdings
	if c.supportsCurrency(p.Currency) {
		c.currency = p.Currency
	}
	c.publishLocked()
	c.mu.Unlock()

	c.logger.Info("preferences loaded", "user_id", c.userID, "coins", len(watchList))
}

// onPollerState publishes a board for every poller transition, then runs
// the update callbacks.
func (c *Coinwatch) onPollerState(st poller.State) {
	c.mu.Lock()
	if st.Version < c.state.Version {
		c.mu.Unlock()
		return
	}
	c.state = st
	c.publishLocked()
	c.mu.Unlock()

	if len(c.callbacks) == 0 {
		return
	}
	u := toUpdate(st)
	for _, cb := range c.callbacks {
		c.invokeCallbackSafe(cb, u)
	}
}

// publishLocked builds the board from the current state and stores it.
func (c *Coinwatch) publishLocked() {
	c.version++
	c.board.Set(buildBoard(boardInput{
		state:      c.state,
		watchList:  c.watchList,
		currencies: c.currencies,
		currency:   c.currency,
		holdings:   c.holdings,
		version:    c.version,
		now:        time.Now().UTC(),
	}))
}

// invokeCallbackSafe calls an update callback with panic recovery.
// The stack trace is logged with a correlation id.
func (c *Coinwatch) invokeCallbackSafe(cb func(Update), u Update) {
	defer func() {
		if r := recover(); r != nil {
			c.logger.Error("update callback panicked",
				"correlation_id", uuid.NewString(),
				"panic", fmt.Sprintf("%v", r),
				"stack", string(debug.Stack()),
				"version", u.Version,
			)
		}
	}()
	cb(u)
}

func (c *Coinwatch) supportsCurrency(currency string) bool {
	for _, cur := range c.currencies {
		if cur == currency {
			return true
		}
	}
	return false
}

// WatchList returns a copy of the current watch list.
func (c *Coinwatch) WatchList() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.watchList.Clone()
}

// Currency returns the selected display currency.
func (c *Coinwatch) Currency() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.currency
}

// Currencies returns a copy of the configured quote currencies.
func (c *Coinwatch) Currencies() []string {
	return append([]string(nil), c.currencies...)
}

// Status returns the current poller status.
func (c *Coinwatch) Status() Status {
	return Status(c.poller.Status().Kind)
}

// Holdings returns the current holdings as decimal strings.
func (c *Coinwatch) Holdings() map[string]string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.holdings.Strings()
}

// Port returns the configured HTTP port for the dashboard server.
func (c *Coinwatch) Port() int {
	return c.port
}

// PollingInterval returns the configured interval between fetches.
func (c *Coinwatch) PollingInterval() time.Duration {
	return c.pollingInterval
}
