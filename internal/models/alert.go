package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"cryptotracker/internal/errors"
)

// AlertDirection is the side of the threshold that fires an alert.
type AlertDirection string

const (
	DirectionAbove AlertDirection = "ABOVE"
	DirectionBelow AlertDirection = "BELOW"
)

// ParseDirection accepts ABOVE/BELOW in any case.
func ParseDirection(s string) (AlertDirection, error) {
	switch AlertDirection(strings.ToUpper(strings.TrimSpace(s))) {
	case DirectionAbove:
		return DirectionAbove, nil
	case DirectionBelow:
		return DirectionBelow, nil
	}
	return "", errors.Wrapf(errors.ErrInvalidDirection, "%q", s)
}

// Valid reports whether d is a known direction.
func (d AlertDirection) Valid() bool {
	return d == DirectionAbove || d == DirectionBelow
}

// Word is the lower-case form used in notification text.
func (d AlertDirection) Word() string {
	return strings.ToLower(string(d))
}

// Alert is a one-shot price threshold on a favorite coin.
// At most one alert exists per CoinID.
type Alert struct {
	ID          int64           `json:"id"`
	CoinID      string          `json:"coin_id"`
	CoinName    string          `json:"coin_name"`
	TargetPrice decimal.Decimal `json:"target_price"`
	Direction   AlertDirection  `json:"direction"`
	Revision    int64           `json:"revision"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// IsTriggeredBy reports whether price satisfies the alert.
// Both thresholds are inclusive; an unknown direction never fires.
func (a Alert) IsTriggeredBy(price decimal.Decimal) bool {
	switch a.Direction {
	case DirectionAbove:
		return price.GreaterThanOrEqual(a.TargetPrice)
	case DirectionBelow:
		return price.LessThanOrEqual(a.TargetPrice)
	default:
		return false
	}
}

// Message renders the notification body, e.g. "Bitcoin is above 50000.00".
func (a Alert) Message() string {
	return fmt.Sprintf("%s is %s %s", a.CoinName, a.Direction.Word(), a.TargetPrice.StringFixed(2))
}

// Validate checks the fields the store relies on.
func (a Alert) Validate() error {
	if strings.TrimSpace(a.CoinID) == "" {
		return errors.NewValidationError("coin_id", a.CoinID, "must not be empty")
	}
	if !a.Direction.Valid() {
		return errors.NewValidationError("direction", a.Direction, "must be ABOVE or BELOW")
	}
	if !a.TargetPrice.IsPositive() {
		return errors.NewValidationError("target_price", a.TargetPrice.String(), "must be greater than zero")
	}
	return nil
}

// ParseTargetPrice parses user input into a positive price.
func ParseTargetPrice(raw string) (decimal.Decimal, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return decimal.Zero, errors.NewValidationError("target_price", raw, "must not be empty")
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, errors.NewValidationError("target_price", raw, "not a number")
	}
	if !d.IsPositive() {
		return decimal.Zero, errors.NewValidationError("target_price", raw, "must be greater than zero")
	}
	return d, nil
}
