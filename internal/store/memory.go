package store

import (
	"sync"
)

const subscriberBuffer = 16

// MemoryStore is an in-memory implementation of [Store].
//
// Subscribers receive boards via buffered channels. Sends are non-blocking;
// if a subscriber's buffer is full the board is dropped for that subscriber.
type MemoryStore struct {
	mu    sync.RWMutex
	board Board

	subMu       sync.RWMutex
	subscribers map[chan Board]struct{}
}

// NewMemoryStore creates a new in-memory [Store] holding an empty idle board.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		board:       Board{Status: "idle", Coins: []CoinResult{}},
		subscribers: make(map[chan Board]struct{}),
	}
}

// Set stores b and notifies all subscribers.
//
// A board whose Version is lower than the stored one is discarded, so
// boards published from different goroutines cannot move the store back.
func (m *MemoryStore) Set(b Board) bool {
	m.mu.Lock()
	if b.Version < m.board.Version {
		m.mu.Unlock()
		return false
	}
	m.board = b
	m.mu.Unlock()

	m.notifySubscribers(b)
	return true
}

// Get returns the current board.
func (m *MemoryStore) Get() Board {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.board
}

// Subscribe creates a new subscription and returns a channel for receiving boards.
//
// Caller must call [MemoryStore.Unsubscribe] when done to prevent resource leaks.
func (m *MemoryStore) Subscribe() <-chan Board {
	ch := make(chan Board, subscriberBuffer)
	m.subMu.Lock()
	m.subscribers[ch] = struct{}{}
	m.subMu.Unlock()
	return ch
}

// Unsubscribe removes a subscription and closes its channel.
// Safe to call multiple times or with an unknown channel.
func (m *MemoryStore) Unsubscribe(ch <-chan Board) {
	m.subMu.Lock()
	defer m.subMu.Unlock()

	for subCh := range m.subscribers {
		if subCh == ch {
			delete(m.subscribers, subCh)
			close(subCh)
			break
		}
	}
}

// SubscriberCount returns the number of active subscriptions.
func (m *MemoryStore) SubscriberCount() int {
	m.subMu.RLock()
	defer m.subMu.RUnlock()
	return len(m.subscribers)
}

func (m *MemoryStore) notifySubscribers(b Board) {
	m.subMu.RLock()
	defer m.subMu.RUnlock()

	for ch := range m.subscribers {
		select {
		case ch <- b:
		default:
			// subscriber is slow, drop the board
		}
	}
}
