package config

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jpalmerr/coinwatch"
	"github.com/jpalmerr/coinwatch/prefs"
)

// BuildOptions converts parsed configuration into SDK options.
//
// The preference store is not included; open it with [OpenStore] and pass
// it through [coinwatch.WithPreferences].
func BuildOptions(cfg *Config, logger *slog.Logger) ([]coinwatch.Option, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}

	opts := []coinwatch.Option{
		coinwatch.WithPort(cfg.Port),
		coinwatch.WithPollingInterval(cfg.PollInterval.Duration()),
		coinwatch.WithCurrencies(cfg.Currencies...),
	}
	if logger != nil {
		opts = append(opts, coinwatch.WithLogger(logger))
	}
	if cfg.Title != "" {
		opts = append(opts, coinwatch.WithTitle(cfg.Title))
	}
	if len(cfg.Coins) > 0 {
		opts = append(opts, coinwatch.WithCoins(cfg.Coins...))
	}
	if len(cfg.Aliases) > 0 {
		opts = append(opts, coinwatch.WithAliases(cfg.Aliases))
	}
	if cfg.API.BaseURL != "" {
		opts = append(opts, coinwatch.WithBaseURL(cfg.API.BaseURL))
	}
	if cfg.API.APIKey != "" {
		opts = append(opts, coinwatch.WithAPIKey(cfg.API.APIKey))
	}
	if cfg.API.Timeout != 0 {
		opts = append(opts, coinwatch.WithAPITimeout(cfg.API.Timeout.Duration()))
	}
	if cfg.Persistence.Debounce != 0 {
		opts = append(opts, coinwatch.WithDebounce(cfg.Persistence.Debounce.Duration()))
	}

	return opts, nil
}

// OpenStore connects the configured preference backend.
//
// It returns a nil store when persistence is disabled. The returned close
// function releases the backend's connections and is never nil.
func OpenStore(ctx context.Context, cfg PersistenceConfig) (prefs.Store, func(), error) {
	noop := func() {}

	switch cfg.Driver {
	case DriverNone:
		return nil, noop, nil

	case DriverFile:
		return prefs.NewFileStore(cfg.File.Path), noop, nil

	case DriverRedis:
		client := prefs.NewRedisClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err := client.Ping(ctx).Err(); err != nil {
			_ = client.Close()
			return nil, noop, fmt.Errorf("failed to connect to redis: %w", err)
		}
		closeFn := func() { _ = client.Close() }
		return prefs.NewRedisStore(client, cfg.Redis.TTL.Duration()), closeFn, nil

	case DriverPostgres:
		pool, err := prefs.OpenPostgres(ctx, cfg.Postgres.DSN)
		if err != nil {
			return nil, noop, err
		}
		store := prefs.NewPostgresStore(pool)
		if err := store.Migrate(ctx); err != nil {
			pool.Close()
			return nil, noop, err
		}
		return store, pool.Close, nil

	default:
		return nil, noop, fmt.Errorf("unknown persistence driver %q", cfg.Driver)
	}
}
