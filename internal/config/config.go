// Package config provides configuration management for the tracker.
package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	Market        MarketConfig       `mapstructure:"market"`
	Alerts        AlertsConfig       `mapstructure:"alerts"`
	Store         StoreConfig        `mapstructure:"store"`
	Notifications NotificationConfig `mapstructure:"notifications"`
	Logging       LoggingConfig      `mapstructure:"logging"`
	Metrics       MetricsConfig      `mapstructure:"metrics"`
	UI            UIConfig           `mapstructure:"ui"`
	Credentials   Credentials        `mapstructure:"-" json:"-"` // Loaded separately

	// Dir is the directory the configuration was loaded from.
	Dir string `mapstructure:"-"`
}

// MarketConfig holds quote source configuration.
type MarketConfig struct {
	BaseURL         string        `mapstructure:"base_url"`
	VsCurrency      string        `mapstructure:"vs_currency"`
	PerPage         int           `mapstructure:"per_page"`
	RefreshInterval time.Duration `mapstructure:"refresh_interval"` // 0 disables background refresh
	RequestTimeout  time.Duration `mapstructure:"request_timeout"`
	MaxRetries      int           `mapstructure:"max_retries"`
}

// AlertsConfig holds alert loop configuration.
type AlertsConfig struct {
	CheckInterval   time.Duration `mapstructure:"check_interval"`
	VibrateDuration time.Duration `mapstructure:"vibrate_duration"`
}

// StoreConfig holds persistence configuration.
type StoreConfig struct {
	Driver string `mapstructure:"driver"` // sqlite, postgres
	Path   string `mapstructure:"path"`
}

// NotificationConfig holds notification configuration.
type NotificationConfig struct {
	Terminal TerminalConfig `mapstructure:"terminal"`
	Desktop  DesktopConfig  `mapstructure:"desktop"`
	Webhook  WebhookConfig  `mapstructure:"webhook"`
	Telegram TelegramConfig `mapstructure:"telegram"`
	Email    EmailConfig    `mapstructure:"email"`
}

// TerminalConfig holds terminal notification configuration.
type TerminalConfig struct {
	Enabled bool `mapstructure:"enabled"`
	Bell    bool `mapstructure:"bell"`
}

// DesktopConfig holds desktop notification configuration.
type DesktopConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

// WebhookConfig holds webhook notification configuration.
type WebhookConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	URL     string `mapstructure:"url"`
}

// TelegramConfig holds Telegram notification configuration.
type TelegramConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	ChatID  string `mapstructure:"chat_id"`
}

// EmailConfig holds email notification configuration.
type EmailConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	SMTPHost string `mapstructure:"smtp_host"`
	SMTPPort int    `mapstructure:"smtp_port"`
	Username string `mapstructure:"username"`
	From     string `mapstructure:"from"`
	To       string `mapstructure:"to"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level      string `mapstructure:"level"`
	File       bool   `mapstructure:"file"`
	MaxSize    int    `mapstructure:"max_size"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAge     int    `mapstructure:"max_age"`
}

// MetricsConfig holds the Prometheus endpoint configuration.
type MetricsConfig struct {
	Addr string `mapstructure:"addr"` // empty disables the endpoint
}

// UIConfig holds CLI output configuration.
type UIConfig struct {
	ColorEnabled bool `mapstructure:"color_enabled"`
}

// Credentials holds secrets kept out of config.toml.
type Credentials struct {
	Telegram TelegramCredentials `mapstructure:"telegram"`
	Email    EmailCredentials    `mapstructure:"email"`
	Postgres PostgresCredentials `mapstructure:"postgres"`
}

// TelegramCredentials holds the Telegram bot token.
type TelegramCredentials struct {
	BotToken string `mapstructure:"bot_token"`
}

// EmailCredentials holds the SMTP password.
type EmailCredentials struct {
	Password string `mapstructure:"password"`
}

// PostgresCredentials holds the Postgres connection string.
type PostgresCredentials struct {
	DSN string `mapstructure:"dsn"`
}

// DefaultConfigDir returns the default configuration directory.
func DefaultConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".config/cryptotracker"
	}
	return filepath.Join(home, ".config", "cryptotracker")
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("market.base_url", "https://api.coingecko.com/api/v3/")
	v.SetDefault("market.vs_currency", "usd")
	v.SetDefault("market.per_page", 20)
	v.SetDefault("market.refresh_interval", "60s")
	v.SetDefault("market.request_timeout", "10s")
	v.SetDefault("market.max_retries", 3)

	v.SetDefault("alerts.check_interval", "30s")
	v.SetDefault("alerts.vibrate_duration", "500ms")

	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.path", "")

	v.SetDefault("notifications.terminal.enabled", true)
	v.SetDefault("notifications.terminal.bell", true)
	v.SetDefault("notifications.desktop.enabled", false)
	v.SetDefault("notifications.email.smtp_port", 587)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.file", true)
	v.SetDefault("logging.max_size", 50)
	v.SetDefault("logging.max_backups", 5)
	v.SetDefault("logging.max_age", 30)

	v.SetDefault("metrics.addr", "")
	v.SetDefault("ui.color_enabled", true)
}

// Default returns the built-in configuration rooted at configDir.
func Default(configDir string) *Config {
	if configDir == "" {
		configDir = DefaultConfigDir()
	}
	v := viper.New()
	setDefaults(v)

	cfg := &Config{Dir: configDir}
	// Defaults always decode.
	_ = v.Unmarshal(cfg)
	cfg.resolvePaths()
	return cfg
}

// Load loads configuration from the specified directory.
// If configDir is empty, uses the default config directory.
// Missing files are created from templates and the defaults are used.
func Load(configDir string) (*Config, error) {
	if configDir == "" {
		configDir = DefaultConfigDir()
	}

	cfg := &Config{Dir: configDir}

	if err := loadConfigFile(configDir, cfg); err != nil {
		return nil, fmt.Errorf("loading config.toml: %w", err)
	}

	if err := loadCredentials(configDir, &cfg.Credentials); err != nil {
		return nil, fmt.Errorf("loading credentials.toml: %w", err)
	}

	applyEnvOverrides(cfg)
	cfg.resolvePaths()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

func loadConfigFile(configDir string, cfg *Config) error {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("toml")
	v.AddConfigPath(configDir)
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return err
		}
		if err := createTemplate(configDir, "config.toml", configTemplate, 0644); err != nil {
			return err
		}
	}

	return v.Unmarshal(cfg)
}

func loadCredentials(configDir string, creds *Credentials) error {
	v := viper.New()
	v.SetConfigName("credentials")
	v.SetConfigType("toml")
	v.AddConfigPath(configDir)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return err
		}
		// Use restricted permissions for credentials file
		return createTemplate(configDir, "credentials.toml", credentialsTemplate, 0600)
	}

	return v.Unmarshal(creds)
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("TRACKER_MARKET_BASE_URL"); v != "" {
		cfg.Market.BaseURL = v
	}
	if v := os.Getenv("TRACKER_CHECK_INTERVAL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Alerts.CheckInterval = d
		}
	}
	if v := os.Getenv("TRACKER_STORE_DRIVER"); v != "" {
		cfg.Store.Driver = v
	}
	if v := os.Getenv("TRACKER_STORE_PATH"); v != "" {
		cfg.Store.Path = v
	}
	if v := os.Getenv("TRACKER_POSTGRES_DSN"); v != "" {
		cfg.Credentials.Postgres.DSN = v
	}
	if v := os.Getenv("TRACKER_TELEGRAM_BOT_TOKEN"); v != "" {
		cfg.Credentials.Telegram.BotToken = v
	}
	if v := os.Getenv("TRACKER_SMTP_PASSWORD"); v != "" {
		cfg.Credentials.Email.Password = v
	}
	if v := os.Getenv("TRACKER_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("TRACKER_METRICS_ADDR"); v != "" {
		cfg.Metrics.Addr = v
	}
}

func (c *Config) resolvePaths() {
	if c.Store.Path == "" {
		c.Store.Path = filepath.Join(c.Dir, "tracker.db")
	}
}

// LogFilePath returns the rotating log file location.
func (c *Config) LogFilePath() string {
	return filepath.Join(c.Dir, "logs", "tracker.log")
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if _, err := url.ParseRequestURI(c.Market.BaseURL); err != nil {
		return fmt.Errorf("invalid market.base_url %q: %w", c.Market.BaseURL, err)
	}
	if c.Market.PerPage < 1 || c.Market.PerPage > 250 {
		return fmt.Errorf("market.per_page must be between 1 and 250")
	}
	if c.Market.RefreshInterval < 0 {
		return fmt.Errorf("market.refresh_interval must be non-negative")
	}
	if c.Alerts.CheckInterval <= 0 {
		return fmt.Errorf("alerts.check_interval must be positive")
	}
	if c.Alerts.VibrateDuration < 0 {
		return fmt.Errorf("alerts.vibrate_duration must be non-negative")
	}

	switch c.Store.Driver {
	case "sqlite":
	case "postgres":
		if c.Credentials.Postgres.DSN == "" {
			return fmt.Errorf("store.driver is postgres but no dsn is configured")
		}
	default:
		return fmt.Errorf("invalid store driver: %s (must be 'sqlite' or 'postgres')", c.Store.Driver)
	}

	if c.Notifications.Webhook.Enabled && c.Notifications.Webhook.URL == "" {
		return fmt.Errorf("webhook notifications enabled without url")
	}
	if c.Notifications.Telegram.Enabled && (c.Credentials.Telegram.BotToken == "" || c.Notifications.Telegram.ChatID == "") {
		return fmt.Errorf("telegram notifications need bot_token and chat_id")
	}
	if c.Notifications.Email.Enabled && (c.Notifications.Email.SMTPHost == "" || c.Notifications.Email.To == "") {
		return fmt.Errorf("email notifications need smtp_host and to")
	}

	return nil
}
