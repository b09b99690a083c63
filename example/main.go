package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/jpalmerr/coinwatch"
	"github.com/jpalmerr/coinwatch/prefs"
)

func main() {
	// start mock market API (see mock_server.go)
	go StartMockMarketServer(":9999")
	time.Sleep(100 * time.Millisecond)

	// preferences survive restarts in a temp directory
	store := prefs.NewFileStore(filepath.Join(os.TempDir(), "coinwatch-demo"))

	cw, err := coinwatch.New(
		coinwatch.WithBaseURL("http://localhost:9999"),
		coinwatch.WithCoins("btc", "eth", "sol"),
		coinwatch.WithCurrencies("usd", "eur", "gbp", "jpy"),
		coinwatch.WithPollingInterval(10*time.Second),
		coinwatch.WithPreferences(store, "demo"),
		coinwatch.WithPort(8080),
		coinwatch.WithUpdateCallback(func(u coinwatch.Update) {
			if u.Status.Sticky() {
				slog.Warn("poller paused", "status", u.Status.String(), "message", u.Message)
			}
		}),
	)
	if err != nil {
		slog.Error("failed to create coinwatch", "error", err)
		os.Exit(1)
	}

	fmt.Println()
	fmt.Println("  Coinwatch Demo")
	fmt.Println()
	fmt.Println("  Open http://localhost:8080 in your browser")
	fmt.Println()
	fmt.Println("  Mock market API on :9999, every 7th price request")
	fmt.Println("  is rate limited so the retry flow can be tried.")
	fmt.Println("  Try adding doge from the dashboard.")
	fmt.Println()
	fmt.Println("  Press Ctrl+C to stop")
	fmt.Println()

	// set up context with signal handling for graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := cw.Start(ctx); err != nil {
		slog.Error("coinwatch error", "error", err)
		os.Exit(1)
	}
}
