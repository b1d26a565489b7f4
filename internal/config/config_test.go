package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadCreatesTemplates(t *testing.T) {
	dir := t.TempDir()

	cfg, err := Load(dir)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	for _, name := range []string{"config.toml", "credentials.toml"} {
		if _, err := os.Stat(filepath.Join(dir, name)); err != nil {
			t.Errorf("expected %s to be created: %v", name, err)
		}
	}

	info, err := os.Stat(filepath.Join(dir, "credentials.toml"))
	if err == nil && info.Mode().Perm() != 0600 {
		t.Errorf("credentials.toml perm = %v, want 0600", info.Mode().Perm())
	}

	if cfg.Alerts.CheckInterval != 30*time.Second {
		t.Errorf("CheckInterval = %v, want 30s", cfg.Alerts.CheckInterval)
	}
	if cfg.Alerts.VibrateDuration != 500*time.Millisecond {
		t.Errorf("VibrateDuration = %v, want 500ms", cfg.Alerts.VibrateDuration)
	}
	if cfg.Market.PerPage != 20 || cfg.Market.VsCurrency != "usd" {
		t.Errorf("unexpected market defaults: %+v", cfg.Market)
	}
	if cfg.Store.Path != filepath.Join(dir, "tracker.db") {
		t.Errorf("Store.Path = %q", cfg.Store.Path)
	}
}

func TestLoadReadsTemplateBack(t *testing.T) {
	dir := t.TempDir()
	if _, err := Load(dir); err != nil {
		t.Fatalf("first Load() error = %v", err)
	}

	// Second load parses the generated template files.
	cfg, err := Load(dir)
	if err != nil {
		t.Fatalf("second Load() error = %v", err)
	}
	if cfg.Market.RefreshInterval != time.Minute {
		t.Errorf("RefreshInterval = %v, want 1m", cfg.Market.RefreshInterval)
	}
	if !cfg.Notifications.Terminal.Enabled {
		t.Error("terminal notifications should be enabled by default")
	}
}

func TestLoadOverrides(t *testing.T) {
	dir := t.TempDir()
	content := `
[alerts]
check_interval = "5s"

[store]
path = "/tmp/other.db"
`
	if err := os.WriteFile(filepath.Join(dir, "config.toml"), []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("TRACKER_LOG_LEVEL", "debug")

	cfg, err := Load(dir)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Alerts.CheckInterval != 5*time.Second {
		t.Errorf("CheckInterval = %v, want 5s", cfg.Alerts.CheckInterval)
	}
	if cfg.Store.Path != "/tmp/other.db" {
		t.Errorf("Store.Path = %q", cfg.Store.Path)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("Logging.Level = %q, want debug", cfg.Logging.Level)
	}
	// Unset keys keep defaults
	if cfg.Market.PerPage != 20 {
		t.Errorf("PerPage = %d, want 20", cfg.Market.PerPage)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"defaults", func(*Config) {}, false},
		{"zero interval", func(c *Config) { c.Alerts.CheckInterval = 0 }, true},
		{"bad driver", func(c *Config) { c.Store.Driver = "mongo" }, true},
		{"postgres without dsn", func(c *Config) { c.Store.Driver = "postgres" }, true},
		{"postgres with dsn", func(c *Config) {
			c.Store.Driver = "postgres"
			c.Credentials.Postgres.DSN = "postgres://localhost/tracker"
		}, false},
		{"webhook without url", func(c *Config) { c.Notifications.Webhook.Enabled = true }, true},
		{"telegram without token", func(c *Config) {
			c.Notifications.Telegram.Enabled = true
			c.Notifications.Telegram.ChatID = "42"
		}, true},
		{"bad base url", func(c *Config) { c.Market.BaseURL = "not a url" }, true},
		{"per page too large", func(c *Config) { c.Market.PerPage = 1000 }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default(t.TempDir())
			tt.mutate(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
