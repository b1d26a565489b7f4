package market

import (
	"time"

	"cryptotracker/internal/models"
)

// Snapshot is an immutable view of the latest quotes. The zero value is an
// empty snapshot.
type Snapshot struct {
	quotes    []models.Quote
	byID      map[string]int
	fetchedAt time.Time
}

// NewSnapshot copies quotes into a snapshot. Later duplicates of an id win.
func NewSnapshot(quotes []models.Quote, fetchedAt time.Time) Snapshot {
	s := Snapshot{
		quotes:    make([]models.Quote, len(quotes)),
		byID:      make(map[string]int, len(quotes)),
		fetchedAt: fetchedAt,
	}
	copy(s.quotes, quotes)
	for i, q := range s.quotes {
		s.byID[q.ID] = i
	}
	return s
}

// Lookup returns the quote for a coin id.
func (s Snapshot) Lookup(coinID string) (models.Quote, bool) {
	i, ok := s.byID[coinID]
	if !ok {
		return models.Quote{}, false
	}
	return s.quotes[i], true
}

// Quotes returns a copy of the quotes in source order.
func (s Snapshot) Quotes() []models.Quote {
	out := make([]models.Quote, len(s.quotes))
	copy(out, s.quotes)
	return out
}

// Len returns the number of quotes.
func (s Snapshot) Len() int { return len(s.quotes) }

// FetchedAt is when the quotes were retrieved; zero for an empty snapshot.
func (s Snapshot) FetchedAt() time.Time { return s.fetchedAt }
