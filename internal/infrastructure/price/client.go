// Package price fetches fiat quotes for display. Every failure collapses to
// an unavailable price; nothing here is allowed to fail a balance query.
package price

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"chainbal/internal/domain"
)

const DefaultTimeout = 3 * time.Second

type Config struct {
	// URL answers GET ?ids=<id>&vs_currencies=usd with {"<id>":{"usd":n}}.
	URL     string
	Timeout time.Duration
	// IDs maps token symbols to the quote service's ids. Unmapped symbols
	// are looked up by their lowercase name.
	IDs map[string]string
}

type Client struct {
	url        string
	timeout    time.Duration
	ids        map[string]string
	httpClient *http.Client
}

// NewClient returns nil when no URL is configured; a nil *Client reports
// every price as unavailable.
func NewClient(cfg Config) *Client {
	if strings.TrimSpace(cfg.URL) == "" {
		return nil
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	return &Client{
		url:        cfg.URL,
		timeout:    cfg.Timeout,
		ids:        cfg.IDs,
		httpClient: &http.Client{},
	}
}

func (c *Client) Lookup(ctx context.Context, symbol string) domain.Price {
	if c == nil || symbol == "" {
		return domain.PriceUnavailable(symbol)
	}
	usd, err := c.fetch(ctx, c.idFor(symbol))
	if err != nil {
		slog.Debug("price unavailable", "symbol", symbol, "err", err)
		return domain.PriceUnavailable(symbol)
	}
	return domain.Price{Symbol: symbol, USD: usd, Available: true}
}

func (c *Client) idFor(symbol string) string {
	if id, ok := c.ids[symbol]; ok && id != "" {
		return id
	}
	return strings.ToLower(symbol)
}

type quoteError string

func (e quoteError) Error() string { return string(e) }

const (
	errStatus  = quoteError("unexpected status")
	errMissing = quoteError("quote missing")
)

func (c *Client) fetch(ctx context.Context, id string) (float64, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	endpoint, err := url.Parse(c.url)
	if err != nil {
		return 0, err
	}
	query := endpoint.Query()
	query.Set("ids", id)
	query.Set("vs_currencies", "usd")
	endpoint.RawQuery = query.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint.String(), nil)
	if err != nil {
		return 0, err
	}
	req.Header.Set("Accept", "application/json")
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return 0, errStatus
	}

	var payload map[string]map[string]float64
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return 0, err
	}
	usd, ok := payload[id]["usd"]
	if !ok {
		return 0, errMissing
	}
	return usd, nil
}
