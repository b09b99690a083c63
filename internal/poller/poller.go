package poller

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jpalmerr/coinwatch/internal/market"
)

// DefaultInterval is used when Start is given a non-positive interval.
const DefaultInterval = 60 * time.Second

// Fetcher issues one batched quote request. [*market.Client] satisfies it.
type Fetcher interface {
	SimplePrice(ctx context.Context, ids, currencies []string) (map[string]market.Quote, error)
}

// Item is the snapshot record for one coin.
type Item struct {
	// Values maps currency code to price.
	Values map[string]float64

	// MarketCaps maps currency code to market capitalisation.
	MarketCaps map[string]float64

	// Changes maps currency code to the 24h percent change.
	Changes map[string]float64

	// Change24h is the 24h percent change in the primary currency,
	// nil when the upstream did not report it.
	Change24h *float64

	// FetchedAt is when the response carrying these values arrived.
	FetchedAt time.Time
}

// State is a consistent copy of the poller's observable state.
type State struct {
	Status    Status
	WatchList market.WatchList
	Snapshot  map[string]Item

	// Version increases with every transition. Consumers receiving states
	// from several goroutines keep the highest version.
	Version uint64
}

// Poller keeps a [State] current for a mutable watch list.
//
// Create one with [New], begin polling with [Poller.Start] and release it
// with [Poller.Stop]. All methods are safe for concurrent use.
type Poller struct {
	fetcher    Fetcher
	currencies []string
	logger     *slog.Logger
	now        func() time.Time

	// fetchMu is held for the whole of a fetch cycle
	fetchMu sync.Mutex

	mu        sync.Mutex
	watchList market.WatchList
	snapshot  map[string]Item
	status    Status
	version   uint64
	listeners []func(State)
	interval  time.Duration
	started   bool
	stopped   bool
	cancel    context.CancelFunc

	trigger chan struct{}
	wg      sync.WaitGroup
}

// New creates a [Poller] that requests quotes in currencies. The first
// currency is the primary one used for [Item.Change24h].
//
// If logger is nil, [slog.Default] is used.
func New(fetcher Fetcher, currencies []string, logger *slog.Logger) *Poller {
	if logger == nil {
		logger = slog.Default()
	}
	return &Poller{
		fetcher:    fetcher,
		currencies: append([]string(nil), currencies...),
		logger:     logger,
		now:        time.Now,
		snapshot:   make(map[string]Item),
		status:     Status{Kind: StatusIdle},
		interval:   DefaultInterval,
		trigger:    make(chan struct{}, 1),
	}
}

// OnChange registers fn to receive a copy of the state after every
// transition. Callbacks run synchronously on the goroutine that caused the
// transition and must not block. Panics are recovered and logged.
func (p *Poller) OnChange(fn func(State)) {
	if fn == nil {
		return
	}
	p.mu.Lock()
	p.listeners = append(p.listeners, fn)
	p.mu.Unlock()
}

// Start replaces the watch list and begins polling in a background
// goroutine: one fetch immediately, then one every interval.
//
// Start is idempotent; calls after the first, or after Stop, are no-ops.
// Cancelling ctx has the same effect as Stop, except that Stop also waits.
func (p *Poller) Start(ctx context.Context, watchList []string, interval time.Duration) {
	if ctx == nil {
		ctx = context.Background()
	}
	if interval <= 0 {
		interval = DefaultInterval
	}

	p.mu.Lock()
	if p.started || p.stopped {
		p.mu.Unlock()
		return
	}
	p.started = true
	p.interval = interval
	p.watchList = market.WatchList(watchList).Clone()
	p.pruneLocked()
	loopCtx, cancel := context.WithCancel(ctx)
	p.cancel = cancel
	p.wg.Add(1)
	p.mu.Unlock()

	// requests queued before Start are covered by the immediate fetch
	select {
	case <-p.trigger:
	default:
	}

	p.logger.Info("poller started",
		"coins", len(watchList),
		"currencies", p.currencies,
		"interval", interval.String(),
	)

	go p.run(loopCtx, interval)
}

// Stop cancels the periodic timer and waits for the polling goroutine,
// including any fetch it has in flight, to return.
//
// Stop is idempotent and safe to call before Start.
func (p *Poller) Stop() {
	p.mu.Lock()
	wasRunning := p.started && !p.stopped
	p.stopped = true
	if p.cancel != nil {
		p.cancel()
	}
	p.mu.Unlock()

	p.wg.Wait()
	if wasRunning {
		p.logger.Info("poller stopped")
	}
}

// SetWatchList replaces the tracked coins.
//
// Snapshot entries for coins no longer present are dropped before
// SetWatchList returns. A sticky status is reset to Idle, an immediate
// fetch is queued and the periodic timer restarts from that fetch.
func (p *Poller) SetWatchList(watchList []string) {
	p.mu.Lock()
	p.watchList = market.WatchList(watchList).Clone()
	p.pruneLocked()
	if p.status.Sticky() {
		p.status = Status{Kind: StatusIdle}
	}
	st := p.commitLocked()
	p.requestFetchLocked()
	p.mu.Unlock()

	p.notify(st)
}

// ClearError resets a sticky status to Idle and queues one immediate
// fetch. On any other status it only queues the fetch.
func (p *Poller) ClearError() {
	p.mu.Lock()
	if !p.status.Sticky() {
		p.requestFetchLocked()
		p.mu.Unlock()
		return
	}
	p.status = Status{Kind: StatusIdle}
	st := p.commitLocked()
	p.requestFetchLocked()
	p.mu.Unlock()

	p.notify(st)
}

// State returns a copy of the current state.
func (p *Poller) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.stateLocked()
}

// Status returns the current status.
func (p *Poller) Status() Status {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.status
}

// FetchOnce performs one fetch cycle and returns the resulting status.
//
// An empty watch list makes no request and empties the snapshot. Status
// moves to Loading unless a sticky status is active, in which case the
// sticky status stays visible until the outcome replaces it. Calls are
// serialized; after Stop, FetchOnce returns the current status without
// fetching.
func (p *Poller) FetchOnce(ctx context.Context) Status {
	p.fetchMu.Lock()
	defer p.fetchMu.Unlock()

	p.mu.Lock()
	if p.stopped {
		defer p.mu.Unlock()
		return p.status
	}
	ids := []string(p.watchList.Clone())
	if len(ids) == 0 {
		p.snapshot = make(map[string]Item)
		if !p.status.Sticky() {
			p.status = Status{Kind: StatusIdle}
		}
		st := p.commitLocked()
		p.mu.Unlock()
		p.notify(st)
		return st.Status
	}
	if !p.status.Sticky() {
		p.status = Status{Kind: StatusLoading}
	}
	st := p.commitLocked()
	p.mu.Unlock()
	p.notify(st)

	start := p.now()
	quotes, err := p.fetcher.SimplePrice(ctx, ids, p.currencies)
	fetchedAt := p.now()

	p.mu.Lock()
	switch {
	case err != nil && ctx.Err() != nil && errors.Is(err, ctx.Err()):
		// shutdown, not an upstream failure
		if p.status.Kind == StatusLoading {
			p.status = Status{Kind: StatusIdle}
		}
	case err != nil:
		p.status = classify(err)
		p.logger.Warn("price fetch failed",
			"coins", len(ids),
			"status", string(p.status.Kind),
			"error", err.Error(),
		)
	default:
		applied := p.reconcileLocked(quotes, fetchedAt)
		p.status = Status{Kind: StatusSuccess}
		p.logger.Debug("price fetch completed",
			"coins", len(ids),
			"applied", applied,
			"latency_ms", fetchedAt.Sub(start).Milliseconds(),
		)
	}
	st = p.commitLocked()
	p.mu.Unlock()

	p.notify(st)
	return st.Status
}

// run is the polling loop. Timer ticks are skipped while a sticky status
// is active; explicit requests always fetch.
func (p *Poller) run(ctx context.Context, interval time.Duration) {
	defer p.wg.Done()

	p.FetchOnce(ctx)

	timer := time.NewTimer(interval)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
			if p.claimTick() {
				p.FetchOnce(ctx)
			}
			timer.Reset(interval)
		case <-p.trigger:
			p.FetchOnce(ctx)
			resetTimer(timer, interval)
		}
	}
}

// claimTick decides whether a timer tick fetches. A tick that fetches
// absorbs any queued request, since both would fetch the same list.
func (p *Poller) claimTick() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.status.Sticky() {
		p.logger.Debug("skipping scheduled fetch", "status", p.status.String())
		return false
	}
	select {
	case <-p.trigger:
	default:
	}
	return true
}

// requestFetchLocked queues an immediate fetch. Requests made while one is
// already queued coalesce.
func (p *Poller) requestFetchLocked() {
	select {
	case p.trigger <- struct{}{}:
	default:
	}
}

// reconcileLocked merges quotes into the snapshot, discarding coins that
// left the watch list while the request was in flight. It returns the
// number of entries written.
func (p *Poller) reconcileLocked(quotes map[string]market.Quote, fetchedAt time.Time) int {
	current := p.watchList.Set()
	applied := 0
	for id, q := range quotes {
		if _, ok := current[id]; !ok {
			continue
		}
		p.snapshot[id] = p.toItem(q, fetchedAt)
		applied++
	}
	p.pruneLocked()
	return applied
}

// pruneLocked removes snapshot entries for coins not in the watch list.
func (p *Poller) pruneLocked() {
	current := p.watchList.Set()
	for id := range p.snapshot {
		if _, ok := current[id]; !ok {
			delete(p.snapshot, id)
		}
	}
}

func (p *Poller) toItem(q market.Quote, fetchedAt time.Time) Item {
	item := Item{
		Values:     copyFloats(q.Values),
		MarketCaps: copyFloats(q.MarketCaps),
		Changes:    copyFloats(q.Changes),
		FetchedAt:  fetchedAt,
	}
	if len(p.currencies) > 0 {
		if change, ok := q.Changes[p.currencies[0]]; ok {
			item.Change24h = &change
		}
	}
	return item
}

// commitLocked bumps the version and returns the state to publish.
func (p *Poller) commitLocked() State {
	p.version++
	return p.stateLocked()
}

func (p *Poller) stateLocked() State {
	snap := make(map[string]Item, len(p.snapshot))
	for id, item := range p.snapshot {
		snap[id] = item
	}
	return State{
		Status:    p.status,
		WatchList: p.watchList.Clone(),
		Snapshot:  snap,
		Version:   p.version,
	}
}

// notify delivers st to every listener outside the state lock.
func (p *Poller) notify(st State) {
	p.mu.Lock()
	listeners := p.listeners
	p.mu.Unlock()

	for _, fn := range listeners {
		p.invokeSafe(fn, st)
	}
}

// invokeSafe calls a listener with panic recovery. The stack trace is
// logged with a correlation ID.
func (p *Poller) invokeSafe(fn func(State), st State) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("state listener panicked",
				"correlation_id", uuid.NewString(),
				"panic", fmt.Sprintf("%v", r),
				"stack", string(debug.Stack()),
			)
		}
	}()
	fn(st)
}

// resetTimer stops, drains and re-arms t.
func resetTimer(t *time.Timer, d time.Duration) {
	if !t.Stop() {
		select {
		case <-t.C:
		default:
		}
	}
	t.Reset(d)
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
