package market

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"cryptotracker/internal/errors"
	"cryptotracker/internal/models"
	"cryptotracker/pkg/utils"
)

const marketsBody = `[
  {"id":"bitcoin","symbol":"btc","name":"Bitcoin","image":"https://img/btc.png","current_price":50000.00,"market_cap":980000000000,"price_change_percentage_24h":2.5},
  {"id":"ethereum","symbol":"eth","name":"Ethereum","image":"https://img/eth.png","current_price":2000.01,"market_cap":240000000000,"price_change_percentage_24h":-1.25},
  {"id":"","symbol":"bad","name":"Broken","current_price":1},
  {"id":"tether","symbol":"usdt","name":"Tether","image":"","current_price":null,"market_cap":null,"price_change_percentage_24h":null}
]`

func testClient(url string) *Client {
	cfg := DefaultClientConfig()
	cfg.BaseURL = url
	cfg.Retry = utils.RetryConfig{
		MaxAttempts:     3,
		InitialDelay:    time.Millisecond,
		MaxDelay:        2 * time.Millisecond,
		BackoffFactor:   2,
		RetryableErrors: []error{errors.ErrRateLimited, errors.ErrUpstreamUnavailable, errors.ErrConnectionFailed},
	}
	return NewClient(cfg, zerolog.Nop())
}

func TestFetchMarkets(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v3/coins/markets" {
			t.Errorf("path = %s", r.URL.Path)
		}
		q := r.URL.Query()
		want := map[string]string{
			"vs_currency": "usd",
			"order":       "market_cap_desc",
			"per_page":    "20",
			"page":        "1",
			"sparkline":   "false",
		}
		for k, v := range want {
			if q.Get(k) != v {
				t.Errorf("query %s = %q, want %q", k, q.Get(k), v)
			}
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(marketsBody))
	}))
	defer srv.Close()

	quotes, err := testClient(srv.URL + "/api/v3/").FetchMarkets(context.Background())
	if err != nil {
		t.Fatalf("FetchMarkets: %v", err)
	}
	if len(quotes) != 3 {
		t.Fatalf("expected 3 quotes (blank id dropped), got %d", len(quotes))
	}

	btc := quotes[0]
	if btc.ID != "bitcoin" || btc.Name != "Bitcoin" || btc.Symbol != "btc" {
		t.Errorf("unexpected bitcoin quote: %+v", btc)
	}
	if !btc.Price.Equal(decimal.NewFromInt(50000)) {
		t.Errorf("bitcoin price = %s", btc.Price)
	}
	if btc.Change24h != 2.5 || btc.MarketCap != 980000000000 {
		t.Errorf("bitcoin market fields = %+v", btc)
	}
	if !quotes[1].Price.Equal(decimal.RequireFromString("2000.01")) {
		t.Errorf("ethereum price = %s", quotes[1].Price)
	}
	if !quotes[2].Price.IsZero() {
		t.Errorf("null price should decode as zero, got %s", quotes[2].Price)
	}
}

func TestFetchMarketsRetriesTransientErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch calls.Add(1) {
		case 1:
			w.WriteHeader(http.StatusTooManyRequests)
		case 2:
			w.WriteHeader(http.StatusBadGateway)
		default:
			w.Write([]byte(marketsBody))
		}
	}))
	defer srv.Close()

	quotes, err := testClient(srv.URL).FetchMarkets(context.Background())
	if err != nil {
		t.Fatalf("FetchMarkets: %v", err)
	}
	if len(quotes) != 3 || calls.Load() != 3 {
		t.Errorf("quotes=%d calls=%d", len(quotes), calls.Load())
	}
}

func TestFetchMarketsRateLimitedExhausted(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	_, err := testClient(srv.URL).FetchMarkets(context.Background())
	if !errors.Is(err, errors.ErrRateLimited) {
		t.Fatalf("expected ErrRateLimited, got %v", err)
	}
	var se *errors.SourceError
	if !errors.As(err, &se) || se.StatusCode != http.StatusTooManyRequests {
		t.Errorf("expected SourceError with 429, got %v", err)
	}
}

func TestFetchMarketsClientErrorNotRetried(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "bad vs_currency", http.StatusBadRequest)
	}))
	defer srv.Close()

	_, err := testClient(srv.URL).FetchMarkets(context.Background())
	if !errors.Is(err, errors.ErrUpstream) {
		t.Fatalf("expected ErrUpstream, got %v", err)
	}
	if errors.Is(err, errors.ErrUpstreamUnavailable) {
		t.Error("a 4xx should not be reported as retryable")
	}
	var se *errors.SourceError
	if !errors.As(err, &se) || se.StatusCode != http.StatusBadRequest {
		t.Errorf("expected SourceError with 400, got %v", err)
	}
	if calls.Load() != 1 {
		t.Errorf("calls = %d, want 1", calls.Load())
	}
}

func TestFetchMarketsMalformedBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"status":"oops"}`))
	}))
	defer srv.Close()

	if _, err := testClient(srv.URL).FetchMarkets(context.Background()); err == nil {
		t.Fatal("expected decode error")
	}
}

func TestSnapshot(t *testing.T) {
	var empty Snapshot
	if _, ok := empty.Lookup("bitcoin"); ok {
		t.Error("empty snapshot should not find anything")
	}
	if empty.Len() != 0 {
		t.Error("empty snapshot should have zero length")
	}

	src := []models.Quote{
		{ID: "bitcoin", Price: decimal.NewFromInt(1)},
		{ID: "ethereum", Price: decimal.NewFromInt(2)},
	}
	snap := NewSnapshot(src, time.Now())
	src[0].Price = decimal.NewFromInt(99) // mutation after construction

	q, ok := snap.Lookup("bitcoin")
	if !ok || !q.Price.Equal(decimal.NewFromInt(1)) {
		t.Errorf("Lookup(bitcoin) = %+v, %v", q, ok)
	}
	if _, ok := snap.Lookup("dogecoin"); ok {
		t.Error("dogecoin should be missing")
	}

	out := snap.Quotes()
	out[1].ID = "changed"
	if _, ok := snap.Lookup("ethereum"); !ok {
		t.Error("Quotes() must return a copy")
	}
}
