// Package config provides YAML configuration parsing for coinwatch.
//
// This package enables running coinwatch as a standalone binary with a
// configuration file, as an alternative to the programmatic SDK approach.
//
// Example configuration:
//
//	title: Desk Watch
//	port: 8080
//	poll_interval: 60s
//	currencies: [usd, eur]
//	coins: [btc, eth, solana]
//
//	api:
//	  api_key: ${COINGECKO_API_KEY:-}
//
//	persistence:
//	  driver: file
//	  user_id: me
//	  file:
//	    path: ./data
package config

import (
	"fmt"
	"net/url"
	"os"
	"regexp"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// minPollInterval keeps configs inside the public API's rate limits.
const minPollInterval = 10 * time.Second

const (
	defaultPort         = 8080
	defaultPollInterval = 60 * time.Second
	defaultUserID       = "default"
)

// Persistence drivers.
const (
	DriverNone     = ""
	DriverFile     = "file"
	DriverRedis    = "redis"
	DriverPostgres = "postgres"
)

// Config is the root configuration structure for coinwatch.
//
// It maps directly to the YAML configuration file structure.
// Use [Load] or [Parse] to create a Config from YAML.
type Config struct {
	// Title is the dashboard title. Defaults to "Coinwatch" if not set.
	Title string `yaml:"title"`

	// Port is the HTTP server port. Defaults to 8080.
	Port int `yaml:"port"`

	// PollInterval is the time between price refreshes.
	// Accepts duration strings like "30s" or "2m". Defaults to 60s.
	PollInterval Duration `yaml:"poll_interval"`

	// Currencies are the quote currencies; the first is the default
	// display currency. Defaults to [usd].
	Currencies []string `yaml:"currencies"`

	// Coins is the default watch list. Tickers are resolved through the
	// alias table.
	Coins []string `yaml:"coins"`

	// Aliases extends the built-in ticker table.
	Aliases map[string]string `yaml:"aliases"`

	API APIConfig `yaml:"api"`

	Persistence PersistenceConfig `yaml:"persistence"`
}

// APIConfig configures the market data API.
type APIConfig struct {
	// BaseURL overrides the public CoinGecko endpoint.
	// Supports environment variable substitution.
	BaseURL string `yaml:"base_url"`

	// APIKey is sent with every request when set.
	// Supports environment variable substitution.
	APIKey string `yaml:"api_key"`

	// Timeout is the per-request timeout. Defaults to 10s.
	Timeout Duration `yaml:"timeout"`
}

// PersistenceConfig selects where preferences are stored.
type PersistenceConfig struct {
	// Driver is "file", "redis", "postgres", or empty for none.
	Driver string `yaml:"driver"`

	// UserID keys the stored preferences. Defaults to "default".
	UserID string `yaml:"user_id"`

	// Debounce is the quiet period before edits are saved. Defaults to 2s.
	Debounce Duration `yaml:"debounce"`

	File     FileConfig     `yaml:"file"`
	Redis    RedisConfig    `yaml:"redis"`
	Postgres PostgresConfig `yaml:"postgres"`
}

// FileConfig configures the file driver.
type FileConfig struct {
	// Path is the directory holding one JSON file per user.
	Path string `yaml:"path"`
}

// RedisConfig configures the redis driver.
type RedisConfig struct {
	Addr     string   `yaml:"addr"`
	Password string   `yaml:"password"`
	DB       int      `yaml:"db"`
	TTL      Duration `yaml:"ttl"`
}

// PostgresConfig configures the postgres driver.
type PostgresConfig struct {
	// DSN is a libpq connection string or URL.
	DSN string `yaml:"dsn"`
}

// Duration wraps time.Duration for YAML unmarshalling.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler for Duration.
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var s string
	if err := node.Decode(&s); err != nil {
		return err
	}

	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}

	*d = Duration(parsed)
	return nil
}

// Duration returns the underlying time.Duration value.
func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}

// envVarPattern matches ${VAR} and ${VAR:-default} patterns.
// Group 1: variable name
// Group 2: the ":-default" part (if present, indicates a default was specified)
// Group 3: the default value (may be empty for ${VAR:-})
var envVarPattern = regexp.MustCompile(`\$\{([^}:]+)(:-([^}]*))?\}`)

// expandEnvVars replaces ${VAR} and ${VAR:-default} patterns with environment values.
func expandEnvVars(s string) (string, error) {
	var firstErr error

	result := envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		if firstErr != nil {
			return match
		}

		submatches := envVarPattern.FindStringSubmatch(match)
		if len(submatches) < 2 {
			return match
		}

		varName := submatches[1]
		hasDefault := len(submatches) > 2 && submatches[2] != ""
		defaultVal := ""
		if hasDefault && len(submatches) > 3 {
			defaultVal = submatches[3]
		}

		value, exists := os.LookupEnv(varName)
		if !exists {
			if hasDefault {
				return defaultVal
			}
			firstErr = fmt.Errorf("environment variable %q is not set", varName)
			return match
		}
		return value
	})

	if firstErr != nil {
		return "", firstErr
	}
	return result, nil
}

// Load reads and parses a YAML configuration file.
//
// Environment variables in the file are expanded before parsing.
// Returns an error if the file cannot be read or parsed.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return Parse(data)
}

// Parse parses YAML configuration data.
//
// Environment variables are expanded in the API and persistence settings.
// Defaults are applied for Port (8080), PollInterval (60s), Currencies
// ([usd]) and the persistence user id.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	cfg.applyDefaults()

	if err := cfg.expand(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Port == 0 {
		c.Port = defaultPort
	}
	if c.PollInterval == 0 {
		c.PollInterval = Duration(defaultPollInterval)
	}
	if len(c.Currencies) == 0 {
		c.Currencies = []string{"usd"}
	}
	if c.Persistence.UserID == "" {
		c.Persistence.UserID = defaultUserID
	}
}

// expand substitutes environment variables in the fields that carry
// secrets or locations.
func (c *Config) expand() error {
	fields := []struct {
		name string
		ptr  *string
	}{
		{"api.base_url", &c.API.BaseURL},
		{"api.api_key", &c.API.APIKey},
		{"persistence.user_id", &c.Persistence.UserID},
		{"persistence.file.path", &c.Persistence.File.Path},
		{"persistence.redis.addr", &c.Persistence.Redis.Addr},
		{"persistence.redis.password", &c.Persistence.Redis.Password},
		{"persistence.postgres.dsn", &c.Persistence.Postgres.DSN},
	}
	for _, f := range fields {
		expanded, err := expandEnvVars(*f.ptr)
		if err != nil {
			return fmt.Errorf("%s: %w", f.name, err)
		}
		*f.ptr = expanded
	}
	return nil
}

// Validate checks the configuration for errors. [Parse] calls it; call it
// again after applying overrides.
func (c *Config) Validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("port must be between 1 and 65535, got %d", c.Port)
	}
	if c.PollInterval.Duration() < minPollInterval {
		return fmt.Errorf("poll_interval must be at least %s, got %s", minPollInterval, c.PollInterval.Duration())
	}

	seen := make(map[string]struct{}, len(c.Currencies))
	for i, cur := range c.Currencies {
		cur = strings.ToLower(strings.TrimSpace(cur))
		if cur == "" {
			return fmt.Errorf("currencies[%d]: currency is empty", i)
		}
		if _, dup := seen[cur]; dup {
			return fmt.Errorf("currencies[%d]: duplicate currency %q", i, cur)
		}
		seen[cur] = struct{}{}
		c.Currencies[i] = cur
	}

	for i, coin := range c.Coins {
		if strings.TrimSpace(coin) == "" {
			return fmt.Errorf("coins[%d]: coin is empty", i)
		}
	}

	if c.API.BaseURL != "" {
		u, err := url.Parse(c.API.BaseURL)
		if err != nil {
			return fmt.Errorf("api.base_url: invalid url: %w", err)
		}
		if u.Scheme != "http" && u.Scheme != "https" {
			return fmt.Errorf("api.base_url: scheme must be http or https, got %q", u.Scheme)
		}
	}
	if c.API.Timeout != 0 && c.API.Timeout.Duration() < time.Second {
		return fmt.Errorf("api.timeout must be at least 1s if specified, got %s", c.API.Timeout.Duration())
	}

	return c.Persistence.validate()
}

func (p *PersistenceConfig) validate() error {
	if p.Debounce < 0 {
		return fmt.Errorf("persistence.debounce cannot be negative, got %s", p.Debounce.Duration())
	}

	switch p.Driver {
	case DriverNone:
	case DriverFile:
		if p.File.Path == "" {
			return fmt.Errorf("persistence.file.path is required for driver %q", p.Driver)
		}
	case DriverRedis:
		if p.Redis.Addr == "" {
			return fmt.Errorf("persistence.redis.addr is required for driver %q", p.Driver)
		}
		if p.Redis.DB < 0 {
			return fmt.Errorf("persistence.redis.db cannot be negative, got %d", p.Redis.DB)
		}
	case DriverPostgres:
		if p.Postgres.DSN == "" {
			return fmt.Errorf("persistence.postgres.dsn is required for driver %q", p.Driver)
		}
	default:
		return fmt.Errorf("persistence.driver must be file, redis or postgres, got %q", p.Driver)
	}
	return nil
}
