package store

import (
	"sync"
	"testing"
	"time"
)

func TestNewMemoryStore(t *testing.T) {
	s := NewMemoryStore()
	if s == nil {
		t.Fatal("NewMemoryStore() = nil")
	}

	b := s.Get()
	if b.Status != "idle" {
		t.Errorf("Get().Status = %q, want idle", b.Status)
	}
	if b.Coins == nil || len(b.Coins) != 0 {
		t.Errorf("Get().Coins = %v, want empty non-nil slice", b.Coins)
	}
}

func TestMemoryStore_Set(t *testing.T) {
	s := NewMemoryStore()

	ok := s.Set(Board{Status: "success", Currency: "usd", Version: 1, Coins: []CoinResult{{ID: "bitcoin"}}})
	if !ok {
		t.Fatal("Set() = false, want true")
	}

	b := s.Get()
	if b.Status != "success" || len(b.Coins) != 1 || b.Coins[0].ID != "bitcoin" {
		t.Errorf("Get() = %+v", b)
	}
}

func TestMemoryStore_SetIgnoresOlderVersion(t *testing.T) {
	s := NewMemoryStore()
	s.Set(Board{Status: "success", Version: 5})

	if s.Set(Board{Status: "loading", Version: 4}) {
		t.Error("Set() accepted an older board")
	}
	if got := s.Get().Status; got != "success" {
		t.Errorf("Get().Status = %q, want success", got)
	}

	// equal version replaces
	if !s.Set(Board{Status: "error", Version: 5}) {
		t.Error("Set() rejected an equal version")
	}
}

func TestMemoryStore_Subscribe(t *testing.T) {
	s := NewMemoryStore()
	ch := s.Subscribe()

	go func() {
		s.Set(Board{Status: "success", Version: 1})
	}()

	select {
	case b := <-ch:
		if b.Status != "success" {
			t.Errorf("received Status = %q, want success", b.Status)
		}
	case <-time.After(time.Second):
		t.Error("Subscribe() channel did not receive update")
	}
}

func TestMemoryStore_StaleBoardNotBroadcast(t *testing.T) {
	s := NewMemoryStore()
	s.Set(Board{Version: 3})
	ch := s.Subscribe()

	s.Set(Board{Version: 2})

	select {
	case b := <-ch:
		t.Errorf("stale board broadcast: %+v", b)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestMemoryStore_MultipleSubscribers(t *testing.T) {
	s := NewMemoryStore()
	ch1 := s.Subscribe()
	ch2 := s.Subscribe()
	ch3 := s.Subscribe()

	go func() {
		s.Set(Board{Status: "success", Version: 1})
	}()

	received := 0
	timeout := time.After(time.Second)
	for received < 3 {
		select {
		case <-ch1:
			received++
		case <-ch2:
			received++
		case <-ch3:
			received++
		case <-timeout:
			t.Fatalf("Only received %d/3 updates", received)
		}
	}
}

func TestMemoryStore_Unsubscribe(t *testing.T) {
	s := NewMemoryStore()
	ch := s.Subscribe()
	if n := s.SubscriberCount(); n != 1 {
		t.Fatalf("SubscriberCount() = %d, want 1", n)
	}

	s.Unsubscribe(ch)
	s.Unsubscribe(ch)

	select {
	case _, ok := <-ch:
		if ok {
			t.Error("Unsubscribe() channel should be closed")
		}
	case <-time.After(100 * time.Millisecond):
		t.Error("Unsubscribe() channel should be closed immediately")
	}
	if n := s.SubscriberCount(); n != 0 {
		t.Errorf("SubscriberCount() = %d, want 0", n)
	}
}

func TestMemoryStore_SlowSubscriberDoesNotBlock(t *testing.T) {
	s := NewMemoryStore()

	// never read
	_ = s.Subscribe()

	done := make(chan struct{})
	go func() {
		for i := 0; i < 200; i++ {
			s.Set(Board{Version: uint64(i)})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Error("Set() blocked on slow subscriber")
	}
}

func TestMemoryStore_ConcurrentAccess(t *testing.T) {
	s := NewMemoryStore()
	var wg sync.WaitGroup

	for i := 0; i < 10; i++ {
		wg.Add(3)
		go func(id int) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				s.Set(Board{Version: uint64(id*100 + j)})
			}
		}(i)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				_ = s.Get()
			}
		}()
		go func() {
			defer wg.Done()
			ch := s.Subscribe()
			time.Sleep(10 * time.Millisecond)
			s.Unsubscribe(ch)
		}()
	}

	wg.Wait()
}
