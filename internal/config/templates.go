package config

import (
	"fmt"
	"os"
	"path/filepath"
)

const configTemplate = `# Crypto Tracker Configuration

[market]
# CoinGecko API root
base_url = "https://api.coingecko.com/api/v3/"
# Quote currency
vs_currency = "usd"
# Number of coins fetched, ordered by market cap
per_page = 20
# Background quote refresh interval ("0s" disables)
refresh_interval = "60s"
request_timeout = "10s"
max_retries = 3

[alerts]
# How often alerts are checked against the latest quotes
check_interval = "30s"
# Haptic/bell duration when an alert fires
vibrate_duration = "500ms"

[store]
# Storage driver: "sqlite" or "postgres" (dsn in credentials.toml)
driver = "sqlite"
# SQLite database file, defaults to tracker.db next to this file
path = ""

[notifications.terminal]
enabled = true
bell = true

[notifications.desktop]
# notify-send on Linux, osascript on macOS
enabled = false

[notifications.webhook]
enabled = false
url = ""

[notifications.telegram]
enabled = false
chat_id = ""

[notifications.email]
enabled = false
smtp_host = ""
smtp_port = 587
username = ""
from = ""
to = ""

[logging]
# debug, info, warn, error
level = "info"
file = true
max_size = 50
max_backups = 5
max_age = 30

[metrics]
# Prometheus listen address, e.g. ":9090" (empty disables)
addr = ""

[ui]
color_enabled = true
`

const credentialsTemplate = `# Crypto Tracker Credentials
# WARNING: Keep this file secure! Do not commit to version control.

[telegram]
bot_token = ""

[email]
password = ""

[postgres]
dsn = ""
`

func createTemplate(configDir, name, content string, perm os.FileMode) error {
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	path := filepath.Join(configDir, name)
	if err := os.WriteFile(path, []byte(content), perm); err != nil {
		return fmt.Errorf("writing %s template: %w", name, err)
	}

	return nil
}
