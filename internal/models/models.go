// Package models provides domain models for the crypto tracker.
package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Quote is the latest market data for one coin.
type Quote struct {
	ID        string          `json:"id"`
	Symbol    string          `json:"symbol"`
	Name      string          `json:"name"`
	Image     string          `json:"image"`
	Price     decimal.Decimal `json:"current_price"`
	MarketCap float64         `json:"market_cap"`
	Change24h float64         `json:"price_change_percentage_24h"`
}

// Favorite is a coin the user bookmarked.
type Favorite struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Symbol    string          `json:"symbol"`
	Price     decimal.Decimal `json:"price"` // last known
	Image     string          `json:"image"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// FavoriteFromQuote builds a favorite record from a market quote.
func FavoriteFromQuote(q Quote) Favorite {
	return Favorite{
		ID:     q.ID,
		Name:   q.Name,
		Symbol: q.Symbol,
		Price:  q.Price,
		Image:  q.Image,
	}
}
