package prefs

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// recordingStore counts saves and keeps the last document.
type recordingStore struct {
	mu    sync.Mutex
	saves []Preferences
	err   error
}

func (s *recordingStore) Load(context.Context, string) (Preferences, error) {
	return Preferences{}, ErrNotFound
}

func (s *recordingStore) Save(_ context.Context, _ string, p Preferences) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.saves = append(s.saves, p)
	return s.err
}

func (s *recordingStore) Delete(context.Context, string) error { return nil }

func (s *recordingStore) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.saves)
}

func (s *recordingStore) last() Preferences {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saves[len(s.saves)-1]
}

func waitForSaves(t *testing.T, s *recordingStore, n int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if s.count() >= n {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("saves = %d, want %d", s.count(), n)
}

func TestWriter_CoalescesBurst(t *testing.T) {
	s := &recordingStore{}
	w := NewWriter(s, "alice", 50*time.Millisecond, testLogger())

	for _, c := range []string{"usd", "eur", "gbp", "jpy"} {
		w.Queue(Preferences{Currency: c})
		time.Sleep(5 * time.Millisecond)
	}
	if !w.Pending() {
		t.Error("Pending() = false during quiet period")
	}

	waitForSaves(t, s, 1)
	time.Sleep(100 * time.Millisecond)

	if n := s.count(); n != 1 {
		t.Errorf("saves = %d, want 1", n)
	}
	if got := s.last().Currency; got != "jpy" {
		t.Errorf("saved Currency = %q, want jpy", got)
	}
	if w.Pending() {
		t.Error("Pending() = true after save")
	}
}

func TestWriter_StampsUpdatedAt(t *testing.T) {
	s := &recordingStore{}
	w := NewWriter(s, "alice", time.Hour, testLogger())
	fixed := time.Date(2024, 5, 6, 7, 8, 9, 0, time.UTC)
	w.now = func() time.Time { return fixed }

	w.Queue(Preferences{})
	if err := w.Flush(context.Background()); err != nil {
		t.Fatal(err)
	}
	if got := s.last().UpdatedAt; !got.Equal(fixed) {
		t.Errorf("UpdatedAt = %v, want %v", got, fixed)
	}
}

func TestWriter_Flush(t *testing.T) {
	s := &recordingStore{}
	w := NewWriter(s, "alice", time.Hour, testLogger())

	if err := w.Flush(context.Background()); err != nil {
		t.Errorf("Flush() with nothing queued error = %v", err)
	}
	if s.count() != 0 {
		t.Error("Flush() saved without a queued document")
	}

	w.Queue(Preferences{Currency: "eur"})
	if err := w.Flush(context.Background()); err != nil {
		t.Fatalf("Flush() error = %v", err)
	}
	if s.count() != 1 {
		t.Fatalf("saves = %d, want 1", s.count())
	}
	if w.Pending() {
		t.Error("Pending() = true after Flush")
	}
}

func TestWriter_Discard(t *testing.T) {
	s := &recordingStore{}
	w := NewWriter(s, "alice", 20*time.Millisecond, testLogger())

	w.Queue(Preferences{Currency: "eur"})
	w.Discard()
	time.Sleep(80 * time.Millisecond)

	if n := s.count(); n != 0 {
		t.Errorf("saves = %d, want 0", n)
	}
}

// blockingStore holds each Save until release is closed.
type blockingStore struct {
	entered chan struct{}
	release chan struct{}

	mu   sync.Mutex
	docs map[string]Preferences
}

func newBlockingStore() *blockingStore {
	return &blockingStore{
		entered: make(chan struct{}, 1),
		release: make(chan struct{}),
		docs:    make(map[string]Preferences),
	}
}

func (s *blockingStore) Load(_ context.Context, userID string) (Preferences, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.docs[userID]
	if !ok {
		return Preferences{}, ErrNotFound
	}
	return p, nil
}

func (s *blockingStore) Save(_ context.Context, userID string, p Preferences) error {
	select {
	case s.entered <- struct{}{}:
	default:
	}
	<-s.release
	s.mu.Lock()
	defer s.mu.Unlock()
	s.docs[userID] = p
	return nil
}

func (s *blockingStore) Delete(_ context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.docs, userID)
	return nil
}

func TestWriter_DiscardWaitsForInFlightSave(t *testing.T) {
	s := newBlockingStore()
	w := NewWriter(s, "alice", 10*time.Millisecond, testLogger())

	w.Queue(Preferences{WatchList: []string{"bitcoin"}})
	select {
	case <-s.entered:
	case <-time.After(2 * time.Second):
		t.Fatal("Save was not called")
	}

	done := make(chan error, 1)
	go func() {
		w.Discard()
		done <- s.Delete(context.Background(), "alice")
	}()

	select {
	case <-done:
		t.Fatal("Discard returned while a save was in progress")
	case <-time.After(50 * time.Millisecond):
	}

	close(s.release)
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Delete() error = %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Discard did not return after the save finished")
	}

	if p, err := s.Load(context.Background(), "alice"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Load() = %+v, %v; want ErrNotFound after Discard and Delete", p, err)
	}
}

func TestWriter_Close(t *testing.T) {
	s := &recordingStore{}
	w := NewWriter(s, "alice", time.Hour, testLogger())

	w.Queue(Preferences{Currency: "eur"})
	if err := w.Close(context.Background()); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if s.count() != 1 {
		t.Fatalf("saves = %d, want 1", s.count())
	}

	w.Queue(Preferences{Currency: "gbp"})
	if w.Pending() {
		t.Error("Queue() after Close should be ignored")
	}
}

func TestWriter_SaveErrorLogged(t *testing.T) {
	s := &recordingStore{err: errors.New("disk full")}
	w := NewWriter(s, "alice", time.Hour, testLogger())

	w.Queue(Preferences{})
	if err := w.Flush(context.Background()); err == nil {
		t.Error("Flush() expected error")
	}
	if w.Pending() {
		t.Error("failed document should be dropped")
	}
}

func TestWriter_DefaultDelay(t *testing.T) {
	w := NewWriter(&recordingStore{}, "alice", 0, nil)
	if w.delay != DefaultDebounce {
		t.Errorf("delay = %v, want %v", w.delay, DefaultDebounce)
	}
}
