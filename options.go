package coinwatch

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/jpalmerr/coinwatch/prefs"
)

// cwConfig holds mutable state during Coinwatch construction.
type cwConfig struct {
	title           string
	coins           []string
	currencies      []string
	aliases         map[string]string
	pollingInterval time.Duration
	port            int
	logger          *slog.Logger
	baseURL         string
	apiKey          string
	apiTimeout      time.Duration
	httpClient      *http.Client
	prefStore       prefs.Store
	userID          string
	debounce        time.Duration
	updateCallbacks []func(Update)
}

// Option is a function that configures a [Coinwatch] instance during
// construction. Options return an error if validation fails.
type Option func(*cwConfig) error

// WithCoins sets the default watch list. Inputs are normalized through the
// alias table, so "BTC" and "bitcoin" name the same coin.
//
// Can be called multiple times; coins accumulate. Saved preferences, when
// configured, replace the defaults at start.
//
// Example:
//
//	cw, err := coinwatch.New(
//	    coinwatch.WithCoins("btc", "eth", "solana"),
//	)
func WithCoins(coins ...string) Option {
	return func(cfg *cwConfig) error {
		cfg.coins = append(cfg.coins, coins...)
		return nil
	}
}

// WithCurrencies sets the quote currencies. The first is the default
// display currency and the one 24h change is reported in.
// Defaults to usd.
func WithCurrencies(currencies ...string) Option {
	return func(cfg *cwConfig) error {
		if len(currencies) == 0 {
			return errors.New("at least one currency is required")
		}
		seen := make(map[string]bool, len(currencies))
		out := make([]string, 0, len(currencies))
		for _, c := range currencies {
			c = strings.ToLower(strings.TrimSpace(c))
			if c == "" {
				return errors.New("currency cannot be empty")
			}
			if seen[c] {
				return fmt.Errorf("duplicate currency: %q", c)
			}
			seen[c] = true
			out = append(out, c)
		}
		cfg.currencies = out
		return nil
	}
}

// WithAliases adds entries to the coin alias table, for example
// {"pepe": "pepe"} or {"wbtc": "wrapped-bitcoin"}.
func WithAliases(aliases map[string]string) Option {
	return func(cfg *cwConfig) error {
		if cfg.aliases == nil {
			cfg.aliases = make(map[string]string, len(aliases))
		}
		for k, v := range aliases {
			cfg.aliases[k] = v
		}
		return nil
	}
}

// WithPollingInterval sets how often prices are refreshed.
// Defaults to 60 seconds.
//
// Returns an error if the duration is zero or negative.
func WithPollingInterval(d time.Duration) Option {
	return func(cfg *cwConfig) error {
		if d <= 0 {
			return errors.New("polling interval must be positive")
		}
		cfg.pollingInterval = d
		return nil
	}
}

// WithPort sets the HTTP port for the dashboard. Defaults to 8080.
func WithPort(port int) Option {
	return func(cfg *cwConfig) error {
		if port < 1 || port > 65535 {
			return errors.New("port must be between 1 and 65535")
		}
		cfg.port = port
		return nil
	}
}

// WithLogger sets the logger. Defaults to [slog.Default].
func WithLogger(logger *slog.Logger) Option {
	return func(cfg *cwConfig) error {
		if logger == nil {
			return errors.New("logger cannot be nil")
		}
		cfg.logger = logger
		return nil
	}
}

// WithTitle sets the dashboard title. Defaults to "Coinwatch".
func WithTitle(title string) Option {
	return func(cfg *cwConfig) error {
		cfg.title = title
		return nil
	}
}

// WithBaseURL overrides the market data API base URL.
func WithBaseURL(url string) Option {
	return func(cfg *cwConfig) error {
		if !strings.HasPrefix(url, "http://") && !strings.HasPrefix(url, "https://") {
			return fmt.Errorf("base URL must use http or https: %q", url)
		}
		cfg.baseURL = url
		return nil
	}
}

// WithAPIKey sets the market data API key.
func WithAPIKey(key string) Option {
	return func(cfg *cwConfig) error {
		cfg.apiKey = key
		return nil
	}
}

// WithAPITimeout sets the per-request timeout for market data calls.
// Defaults to 10 seconds.
func WithAPITimeout(d time.Duration) Option {
	return func(cfg *cwConfig) error {
		if d <= 0 {
			return errors.New("API timeout must be positive")
		}
		cfg.apiTimeout = d
		return nil
	}
}

// WithHTTPClient replaces the HTTP client used for market data calls.
func WithHTTPClient(hc *http.Client) Option {
	return func(cfg *cwConfig) error {
		if hc == nil {
			return errors.New("http client cannot be nil")
		}
		cfg.httpClient = hc
		return nil
	}
}

// WithPreferences persists the watch list, holdings and currency for userID
// in store. Saved preferences are loaded once at start.
func WithPreferences(store prefs.Store, userID string) Option {
	return func(cfg *cwConfig) error {
		if store == nil {
			return errors.New("preference store cannot be nil")
		}
		if err := prefs.ValidateUser(userID); err != nil {
			return err
		}
		cfg.prefStore = store
		cfg.userID = userID
		return nil
	}
}

// WithDebounce sets the quiet period before preference edits are saved.
// Defaults to 2 seconds.
func WithDebounce(d time.Duration) Option {
	return func(cfg *cwConfig) error {
		if d <= 0 {
			return errors.New("debounce must be positive")
		}
		cfg.debounce = d
		return nil
	}
}

// WithUpdateCallback registers fn to receive every poller update.
//
// Callbacks run synchronously after the dashboard board is published and
// must not block. Panics are recovered and logged with a correlation id.
// A nil fn is ignored.
func WithUpdateCallback(fn func(Update)) Option {
	return func(cfg *cwConfig) error {
		if fn != nil {
			cfg.updateCallbacks = append(cfg.updateCallbacks, fn)
		}
		return nil
	}
}
