package config

import (
	"fmt"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override, e.g. COINWATCH_PORT.
const EnvPrefix = "COINWATCH"

// Override keys. Nested keys map to environment variables with dots
// replaced by underscores, so persistence.redis.addr is read from
// COINWATCH_PERSISTENCE_REDIS_ADDR.
const (
	KeyPort          = "port"
	KeyPollInterval  = "poll_interval"
	KeyTitle         = "title"
	KeyBaseURL       = "base_url"
	KeyAPIKey        = "api_key"
	KeyUserID        = "user_id"
	KeyDriver        = "persistence.driver"
	KeyFilePath      = "persistence.file.path"
	KeyRedisAddr     = "persistence.redis.addr"
	KeyRedisPassword = "persistence.redis.password"
	KeyPostgresDSN   = "persistence.postgres.dsn"
)

// flagKeys maps CLI flag names to override keys.
var flagKeys = map[string]string{
	"port":          KeyPort,
	"poll-interval": KeyPollInterval,
	"title":         KeyTitle,
	"base-url":      KeyBaseURL,
	"user-id":       KeyUserID,
	"driver":        KeyDriver,
}

// NewViper returns a viper instance reading COINWATCH_* environment
// variables.
func NewViper() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// BindFlags binds the known flags present in fs to v. Flags take
// precedence over environment variables, but only when set explicitly.
func BindFlags(v *viper.Viper, fs *pflag.FlagSet) error {
	for name, key := range flagKeys {
		flag := fs.Lookup(name)
		if flag == nil {
			continue
		}
		if err := v.BindPFlag(key, flag); err != nil {
			return fmt.Errorf("bind flag %q: %w", name, err)
		}
	}
	return nil
}

// ApplyOverrides copies every override set in v onto cfg and validates the
// result. Values from the config file stay in place for unset keys.
func ApplyOverrides(cfg *Config, v *viper.Viper) error {
	if v.IsSet(KeyPort) {
		cfg.Port = v.GetInt(KeyPort)
	}
	if v.IsSet(KeyPollInterval) {
		d := v.GetDuration(KeyPollInterval)
		if d == 0 {
			return fmt.Errorf("%s: invalid duration %q", KeyPollInterval, v.GetString(KeyPollInterval))
		}
		cfg.PollInterval = Duration(d)
	}

	fields := []struct {
		key string
		ptr *string
	}{
		{KeyTitle, &cfg.Title},
		{KeyBaseURL, &cfg.API.BaseURL},
		{KeyAPIKey, &cfg.API.APIKey},
		{KeyUserID, &cfg.Persistence.UserID},
		{KeyDriver, &cfg.Persistence.Driver},
		{KeyFilePath, &cfg.Persistence.File.Path},
		{KeyRedisAddr, &cfg.Persistence.Redis.Addr},
		{KeyRedisPassword, &cfg.Persistence.Redis.Password},
		{KeyPostgresDSN, &cfg.Persistence.Postgres.DSN},
	}
	for _, f := range fields {
		if v.IsSet(f.key) {
			*f.ptr = v.GetString(f.key)
		}
	}

	return cfg.Validate()
}
