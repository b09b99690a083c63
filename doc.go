// Package coinwatch provides an embeddable crypto watch-list dashboard.
//
// A [Coinwatch] polls live prices for a user-editable list of coins with a
// single batched request per cycle, and streams the result to a browser
// dashboard. Coins can be added and removed while a request is in flight;
// responses for coins that were removed meanwhile are discarded on arrival.
//
// # Quick Start
//
//	cw, _ := coinwatch.New(coinwatch.WithCoins("btc", "eth", "solana"))
//
//	// Set up graceful shutdown on SIGINT/SIGTERM
//	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
//	defer stop()
//
//	cw.Start(ctx) // blocks until context is cancelled
//
// # Configuration
//
// Coinwatch uses the functional options pattern for configuration:
//
//	cw, err := coinwatch.New(
//	    coinwatch.WithCoins("btc", "eth"),
//	    coinwatch.WithCurrencies("usd", "eur"),
//	    coinwatch.WithPollingInterval(30 * time.Second),
//	    coinwatch.WithPort(9090),
//	    coinwatch.WithAPIKey(os.Getenv("COINGECKO_API_KEY")),
//	)
//
// # Failure States
//
// A rate-limit answer or any other failed fetch produces a sticky status
// ([StatusRateLimited] or [StatusError]). While a sticky status is active,
// periodic polling is paused and the last good prices stay on screen.
// Calling [Coinwatch.Retry], or changing the watch list, clears it and
// fetches immediately.
//
// # Persistence
//
// With [WithPreferences], the watch list, holdings and display currency
// are loaded once at start and saved after a quiet period (see
// [WithDebounce]). The prefs package provides file, Redis and Postgres
// stores.
//
// # Callbacks
//
// [WithUpdateCallback] registers functions that receive every poller
// update, for logging or forwarding to other systems.
package coinwatch
