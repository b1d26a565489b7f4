package security

import (
	"regexp"
	"strings"

	"cryptotracker/internal/errors"
)

// CoinGecko ids are lower-case slugs such as "bitcoin" or "usd-coin".
var coinIDPattern = regexp.MustCompile(`^[a-z0-9][a-z0-9._-]{0,99}$`)

// NormalizeCoinID trims and lower-cases a user-supplied coin id and rejects
// anything that cannot be a CoinGecko id.
func NormalizeCoinID(raw string) (string, error) {
	id := strings.ToLower(strings.TrimSpace(raw))
	if id == "" {
		return "", errors.NewValidationError("coin_id", raw, "must not be empty")
	}
	if !coinIDPattern.MatchString(id) {
		return "", errors.NewValidationError("coin_id", raw, "must be a coin id like 'bitcoin' or 'usd-coin'")
	}
	return id, nil
}
