package coinwatch

import (
	"context"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/jpalmerr/coinwatch/internal/market"
	"github.com/jpalmerr/coinwatch/internal/portfolio"
	"github.com/jpalmerr/coinwatch/prefs"
)

// AddCoin normalizes input through the alias table and appends it to the
// watch list. The new coin is fetched immediately.
//
// Returns the stored id, or an error wrapping market.ErrDuplicate or
// market.ErrInvalidID.
func (c *Coinwatch) AddCoin(input string) (string, error) {
	c.editMu.Lock()
	defer c.editMu.Unlock()

	id := c.aliases.Normalize(input)
	c.mu.Lock()
	next, err := c.watchList.Add(id)
	if err != nil {
		c.mu.Unlock()
		return "", err
	}
	c.watchList = next
	c.mu.Unlock()

	c.poller.SetWatchList(next)
	c.persist()
	return id, nil
}

// RemoveCoin drops id and its holding. Its quote disappears from the
// board before RemoveCoin returns, even if a fetch is in flight.
//
// Returns an error wrapping market.ErrNotFound if id is not watched.
func (c *Coinwatch) RemoveCoin(id string) error {
	c.editMu.Lock()
	defer c.editMu.Unlock()

	c.mu.Lock()
	next, err := c.watchList.Remove(id)
	if err != nil {
		c.mu.Unlock()
		return err
	}
	c.watchList = next
	c.holdings = c.holdings.Set(id, decimal.Zero)
	c.mu.Unlock()

	c.poller.SetWatchList(next)
	c.persist()
	return nil
}

// Retry clears a rate-limit or error status and fetches immediately.
func (c *Coinwatch) Retry() {
	c.poller.ClearError()
}

// SetCurrency selects the display currency. It must be one of the
// configured currencies.
func (c *Coinwatch) SetCurrency(currency string) error {
	currency = strings.ToLower(strings.TrimSpace(currency))

	c.editMu.Lock()
	defer c.editMu.Unlock()

	if !c.supportsCurrency(currency) {
		return fmt.Errorf("%w: %q", market.ErrUnsupportedCurrency, currency)
	}

	c.mu.Lock()
	c.currency = currency
	c.publishLocked()
	c.mu.Unlock()

	c.persist()
	return nil
}

// SetHolding records the amount held of a watched coin. An empty or zero
// amount removes the holding.
func (c *Coinwatch) SetHolding(id, amount string) error {
	d, err := portfolio.ParseAmount(amount)
	if err != nil {
		return err
	}

	c.editMu.Lock()
	defer c.editMu.Unlock()

	c.mu.Lock()
	if !c.watchList.Contains(id) {
		c.mu.Unlock()
		return fmt.Errorf("%w: %q", market.ErrNotFound, id)
	}
	c.holdings = c.holdings.Set(id, d)
	c.publishLocked()
	c.mu.Unlock()

	c.persist()
	return nil
}

// ResetAccount deletes the saved preferences and restores the configured
// watch list, currency and empty holdings.
func (c *Coinwatch) ResetAccount(ctx context.Context) error {
	c.editMu.Lock()
	defer c.editMu.Unlock()

	if c.writer != nil {
		c.writer.Discard()
	}
	if c.prefStore != nil {
		ctx, cancel := context.WithTimeout(ctx, prefsTimeout)
		defer cancel()
		if err := c.prefStore.Delete(ctx, c.userID); err != nil {
			return fmt.Errorf("delete preferences: %w", err)
		}
	}

	defaults := c.defaults.Clone()
	c.mu.Lock()
	c.watchList = defaults
	c.holdings = portfolio.Holdings{}
	c.currency = c.currencies[0]
	c.publishLocked()
	c.mu.Unlock()

	c.poller.SetWatchList(defaults)
	return nil
}

// persist queues the current preferences for a debounced save.
// Callers hold editMu.
func (c *Coinwatch) persist() {
	if c.writer == nil {
		return
	}
	c.mu.Lock()
	p := prefs.Preferences{
		WatchList: c.watchList.Clone(),
		Holdings:  c.holdings.Strings(),
		Currency:  c.currency,
	}
	c.mu.Unlock()
	c.writer.Queue(p)
}
