package prefs

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// DefaultDebounce is the quiet period used when NewWriter is given a
// non-positive delay.
const DefaultDebounce = 2 * time.Second

const saveTimeout = 10 * time.Second

// Writer debounces saves for one user. Each Queue restarts the quiet
// period; only the most recent document is saved once it elapses.
//
// Save failures are logged and the document is dropped; the next Queue
// retries with fresh state.
type Writer struct {
	store  Store
	userID string
	delay  time.Duration
	logger *slog.Logger
	now    func() time.Time

	// saveMu orders saves so an older document never lands after a newer one
	saveMu sync.Mutex

	mu      sync.Mutex
	pending *Preferences
	timer   *time.Timer
	gen     uint64
	closed  bool
}

// NewWriter returns a Writer saving to store under userID.
// If logger is nil, [slog.Default] is used.
func NewWriter(store Store, userID string, delay time.Duration, logger *slog.Logger) *Writer {
	if delay <= 0 {
		delay = DefaultDebounce
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Writer{
		store:  store,
		userID: userID,
		delay:  delay,
		logger: logger,
		now:    time.Now,
	}
}

// Queue schedules p to be saved after the quiet period. UpdatedAt is
// stamped with the current time. Calls after Close are ignored.
func (w *Writer) Queue(p Preferences) {
	p.UpdatedAt = w.now().UTC()

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return
	}
	w.pending = &p
	w.gen++
	gen := w.gen
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.delay, func() { w.fire(gen) })
}

// Pending reports whether a save is waiting for its quiet period.
func (w *Writer) Pending() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.pending != nil
}

// Discard drops any queued document without saving it. A save already in
// progress completes before Discard returns, so a Delete issued afterwards
// is not overwritten.
func (w *Writer) Discard() {
	w.saveMu.Lock()
	defer w.saveMu.Unlock()

	w.mu.Lock()
	defer w.mu.Unlock()
	w.pending = nil
	w.gen++
	if w.timer != nil {
		w.timer.Stop()
		w.timer = nil
	}
}

// Flush saves the queued document, if any, immediately.
func (w *Writer) Flush(ctx context.Context) error {
	w.saveMu.Lock()
	defer w.saveMu.Unlock()

	p := w.take(0)
	if p == nil {
		return nil
	}
	return w.save(ctx, *p)
}

// Close flushes the queued document and stops accepting new ones.
func (w *Writer) Close(ctx context.Context) error {
	w.mu.Lock()
	w.closed = true
	w.mu.Unlock()
	return w.Flush(ctx)
}

func (w *Writer) fire(gen uint64) {
	w.saveMu.Lock()
	defer w.saveMu.Unlock()

	p := w.take(gen)
	if p == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), saveTimeout)
	defer cancel()
	_ = w.save(ctx, *p)
}

// take removes and returns the pending document. A non-zero gen must match
// the latest Queue, so superseded timers return nil.
func (w *Writer) take(gen uint64) *Preferences {
	w.mu.Lock()
	defer w.mu.Unlock()
	if gen != 0 && gen != w.gen {
		return nil
	}
	p := w.pending
	w.pending = nil
	if w.timer != nil {
		w.timer.Stop()
		w.timer = nil
	}
	return p
}

func (w *Writer) save(ctx context.Context, p Preferences) error {
	start := time.Now()
	if err := w.store.Save(ctx, w.userID, p); err != nil {
		w.logger.Error("preferences save failed",
			"user_id", w.userID,
			"error", err.Error(),
		)
		return err
	}
	w.logger.Debug("preferences saved",
		"user_id", w.userID,
		"coins", len(p.WatchList),
		"latency_ms", time.Since(start).Milliseconds(),
	)
	return nil
}
