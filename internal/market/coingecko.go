// Package market fetches coin quotes from CoinGecko.
package market

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"cryptotracker/internal/errors"
	"cryptotracker/internal/logging"
	"cryptotracker/internal/models"
	"cryptotracker/pkg/utils"
)

// DefaultBaseURL is the public CoinGecko API root.
const DefaultBaseURL = "https://api.coingecko.com/api/v3/"

// QuoteSource returns the current market snapshot.
type QuoteSource interface {
	FetchMarkets(ctx context.Context) ([]models.Quote, error)
}

// ClientConfig configures a CoinGecko client.
type ClientConfig struct {
	BaseURL    string
	VsCurrency string
	PerPage    int
	Timeout    time.Duration
	Retry      utils.RetryConfig
}

// DefaultClientConfig returns the settings the app ships with.
func DefaultClientConfig() ClientConfig {
	retry := utils.DefaultRetryConfig()
	retry.RetryableErrors = []error{errors.ErrRateLimited, errors.ErrUpstreamUnavailable, errors.ErrConnectionFailed}
	return ClientConfig{
		BaseURL:    DefaultBaseURL,
		VsCurrency: "usd",
		PerPage:    20,
		Timeout:    10 * time.Second,
		Retry:      retry,
	}
}

// Client is a CoinGecko REST client.
type Client struct {
	cfg        ClientConfig
	httpClient *http.Client
	logger     zerolog.Logger
}

// NewClient creates a CoinGecko client.
func NewClient(cfg ClientConfig, logger zerolog.Logger) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.VsCurrency == "" {
		cfg.VsCurrency = "usd"
	}
	if cfg.PerPage <= 0 {
		cfg.PerPage = 20
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		logger:     logging.WithComponent(logger, "market"),
	}
}

func (c *Client) marketsURL() (string, error) {
	base, err := url.Parse(strings.TrimRight(c.cfg.BaseURL, "/") + "/coins/markets")
	if err != nil {
		return "", fmt.Errorf("invalid base url: %w", err)
	}
	q := base.Query()
	q.Set("vs_currency", c.cfg.VsCurrency)
	q.Set("order", "market_cap_desc")
	q.Set("per_page", strconv.Itoa(c.cfg.PerPage))
	q.Set("page", "1")
	q.Set("sparkline", "false")
	base.RawQuery = q.Encode()
	return base.String(), nil
}

// FetchMarkets returns the top coins by market cap. Transient failures
// (rate limiting, 5xx, network) are retried with backoff.
func (c *Client) FetchMarkets(ctx context.Context) ([]models.Quote, error) {
	endpoint, err := c.marketsURL()
	if err != nil {
		return nil, err
	}

	start := time.Now()
	quotes, err := utils.RetryWithResult(ctx, c.cfg.Retry, func() ([]models.Quote, error) {
		return c.fetchOnce(ctx, endpoint)
	})
	logging.LogAPICall(c.logger, http.MethodGet, "coins/markets", time.Since(start), err)
	if err != nil {
		return nil, err
	}
	return quotes, nil
}

func (c *Client) fetchOnce(ctx context.Context, endpoint string) ([]models.Quote, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, errors.NewSourceError("coins/markets", 0, fmt.Errorf("%w: %v", errors.ErrConnectionFailed, err))
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, errors.NewSourceError("coins/markets", resp.StatusCode, errors.ErrRateLimited)
	case resp.StatusCode >= 500:
		return nil, errors.NewSourceError("coins/markets", resp.StatusCode, errors.ErrUpstreamUnavailable)
	case resp.StatusCode != http.StatusOK:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, errors.NewSourceError("coins/markets", resp.StatusCode,
			fmt.Errorf("%w: unexpected response: %s", errors.ErrUpstream, strings.TrimSpace(string(body))))
	}

	var quotes []models.Quote
	if err := json.NewDecoder(resp.Body).Decode(&quotes); err != nil {
		return nil, errors.NewSourceError("coins/markets", resp.StatusCode, fmt.Errorf("decode: %w", err))
	}

	// Entries without an id cannot be matched to alerts.
	valid := quotes[:0]
	for _, q := range quotes {
		if q.ID != "" {
			valid = append(valid, q)
		}
	}
	return valid, nil
}
