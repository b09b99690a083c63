package config

import (
	"strings"
	"testing"
	"time"

	"github.com/spf13/pflag"
)

func baseConfig(t *testing.T) *Config {
	t.Helper()
	cfg, err := Parse([]byte(`
port: 8080
title: From File
persistence:
  user_id: file-user
`))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	return cfg
}

func TestApplyOverrides_Env(t *testing.T) {
	t.Setenv("COINWATCH_PORT", "9090")
	t.Setenv("COINWATCH_POLL_INTERVAL", "45s")
	t.Setenv("COINWATCH_API_KEY", "env-key")
	t.Setenv("COINWATCH_USER_ID", "bob")
	t.Setenv("COINWATCH_PERSISTENCE_DRIVER", "file")
	t.Setenv("COINWATCH_PERSISTENCE_FILE_PATH", "/tmp/coinwatch")

	cfg := baseConfig(t)
	if err := ApplyOverrides(cfg, NewViper()); err != nil {
		t.Fatalf("ApplyOverrides() error = %v", err)
	}

	if cfg.Port != 9090 {
		t.Errorf("Port = %d, want 9090", cfg.Port)
	}
	if cfg.PollInterval.Duration() != 45*time.Second {
		t.Errorf("PollInterval = %v, want 45s", cfg.PollInterval.Duration())
	}
	if cfg.API.APIKey != "env-key" {
		t.Errorf("APIKey = %q, want env-key", cfg.API.APIKey)
	}
	if cfg.Persistence.UserID != "bob" {
		t.Errorf("UserID = %q, want bob", cfg.Persistence.UserID)
	}
	if cfg.Persistence.Driver != DriverFile || cfg.Persistence.File.Path != "/tmp/coinwatch" {
		t.Errorf("Persistence = %+v", cfg.Persistence)
	}
	// untouched keys keep file values
	if cfg.Title != "From File" {
		t.Errorf("Title = %q, want From File", cfg.Title)
	}
}

func TestApplyOverrides_NoneSet(t *testing.T) {
	cfg := baseConfig(t)
	if err := ApplyOverrides(cfg, NewViper()); err != nil {
		t.Fatalf("ApplyOverrides() error = %v", err)
	}
	if cfg.Port != 8080 || cfg.Persistence.UserID != "file-user" {
		t.Errorf("cfg changed without overrides: %+v", cfg)
	}
}

func TestApplyOverrides_Flags(t *testing.T) {
	t.Setenv("COINWATCH_PORT", "9090")

	fs := pflag.NewFlagSet("serve", pflag.ContinueOnError)
	fs.Int("port", 0, "")
	fs.String("title", "", "")
	fs.String("user-id", "", "")
	if err := fs.Parse([]string{"--port", "7070", "--title", "Flagged"}); err != nil {
		t.Fatal(err)
	}

	v := NewViper()
	if err := BindFlags(v, fs); err != nil {
		t.Fatalf("BindFlags() error = %v", err)
	}

	cfg := baseConfig(t)
	if err := ApplyOverrides(cfg, v); err != nil {
		t.Fatalf("ApplyOverrides() error = %v", err)
	}

	// explicit flag beats env
	if cfg.Port != 7070 {
		t.Errorf("Port = %d, want 7070", cfg.Port)
	}
	if cfg.Title != "Flagged" {
		t.Errorf("Title = %q, want Flagged", cfg.Title)
	}
	// unset flag does not clobber the file value
	if cfg.Persistence.UserID != "file-user" {
		t.Errorf("UserID = %q, want file-user", cfg.Persistence.UserID)
	}
}

func TestApplyOverrides_Revalidates(t *testing.T) {
	tests := []struct {
		name    string
		env     string
		value   string
		wantErr string
	}{
		{"bad port", "COINWATCH_PORT", "99999", "port must be between"},
		{"short interval", "COINWATCH_POLL_INTERVAL", "1s", "poll_interval must be at least"},
		{"bad interval", "COINWATCH_POLL_INTERVAL", "soon", "invalid duration"},
		{"bad driver", "COINWATCH_PERSISTENCE_DRIVER", "mongo", "persistence.driver must be"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.env, tt.value)

			err := ApplyOverrides(baseConfig(t), NewViper())
			if err == nil {
				t.Fatal("ApplyOverrides() expected error, got nil")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error = %q, want to contain %q", err.Error(), tt.wantErr)
			}
		})
	}
}
