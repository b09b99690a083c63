package server

import (
	"context"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/jpalmerr/coinwatch/internal/store"
)

func dialBoard(t *testing.T, ts *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/api/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	return conn
}

func readBoard(t *testing.T, conn *websocket.Conn) store.Board {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var b store.Board
	if err := conn.ReadJSON(&b); err != nil {
		t.Fatalf("ReadJSON: %v", err)
	}
	return b
}

func TestHandleWS_StreamsBoards(t *testing.T) {
	ms := store.NewMemoryStore()
	ms.Set(boardWith(1, "bitcoin"))
	srv := newTestServer(ms)

	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	conn := dialBoard(t, ts)
	defer func() { _ = conn.Close() }()

	first := readBoard(t, conn)
	if first.Version != 1 || len(first.Coins) != 1 || first.Coins[0].ID != "bitcoin" {
		t.Errorf("initial board = %+v", first)
	}

	// wait for the handler to subscribe
	deadline := time.Now().Add(time.Second)
	for ms.SubscriberCount() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}

	ms.Set(boardWith(2, "bitcoin", "solana"))
	next := readBoard(t, conn)
	if next.Version != 2 || len(next.Coins) != 2 {
		t.Errorf("streamed board = %+v", next)
	}
}

func TestHandleWS_UnsubscribesOnClose(t *testing.T) {
	ms := store.NewMemoryStore()
	srv := newTestServer(ms)

	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	conn := dialBoard(t, ts)
	readBoard(t, conn)
	_ = conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	_ = conn.Close()

	deadline := time.Now().Add(2 * time.Second)
	for ms.SubscriberCount() != 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if n := ms.SubscriberCount(); n != 0 {
		t.Errorf("SubscriberCount() = %d after close, want 0", n)
	}
}

func TestHandleWS_ServerShutdown(t *testing.T) {
	ms := store.NewMemoryStore()
	srv := newTestServer(ms)

	serverCtx, serverCancel := context.WithCancel(context.Background())
	ts := httptest.NewUnstartedServer(srv.Handler())
	ts.Config.BaseContext = func(_ net.Listener) context.Context { return serverCtx }
	ts.Start()
	defer ts.Close()

	conn := dialBoard(t, ts)
	defer func() { _ = conn.Close() }()
	readBoard(t, conn)

	serverCancel()

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, _, err := conn.ReadMessage()
	if !websocket.IsCloseError(err, websocket.CloseGoingAway) {
		t.Errorf("ReadMessage() error = %v, want going away close", err)
	}
}

func TestHandleWS_RejectsPlainHTTP(t *testing.T) {
	srv := newTestServer(store.NewMemoryStore())

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/ws", nil))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}
