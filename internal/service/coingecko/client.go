package coingecko

import (
	"context"
	"fmt"
	"strings"
	"time"

	"PaperPulse/internal/domain/models"
	"PaperPulse/internal/service/ratelimit"
	xhttp "PaperPulse/pkg/http"
)

// Client is the secondary REST backup in the source chain. CoinGecko keys
// prices by coin id rather than exchange symbol, so the client carries a
// symbol mapping.
type Client struct {
	baseURL string
	client  *xhttp.Client
	limiter *ratelimit.Limiter
	ids     map[string]string // exchange symbol -> coingecko id
}

// Option configures the client.
type Option func(*Client)

// WithSymbolID adds or overrides a symbol mapping.
func WithSymbolID(symbol, id string) Option {
	return func(c *Client) {
		c.ids[strings.ToUpper(symbol)] = id
	}
}

// New creates a backup price client. baseURL defaults to the public API.
func New(baseURL string, timeout time.Duration, opts ...Option) *Client {
	if baseURL == "" {
		baseURL = "https://api.coingecko.com"
	}
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	c := &Client{
		baseURL: baseURL,
		client:  xhttp.NewClient(xhttp.WithTimeout(timeout)),
		limiter: ratelimit.New(),
		ids: map[string]string{
			"BTCUSDT":  "bitcoin",
			"ETHUSDT":  "ethereum",
			"BNBUSDT":  "binancecoin",
			"SOLUSDT":  "solana",
			"XRPUSDT":  "ripple",
			"ADAUSDT":  "cardano",
			"DOGEUSDT": "dogecoin",
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// FetchPrice implements repository.PricePoller.
func (c *Client) FetchPrice(ctx context.Context, symbol string) (models.PricePoint, error) {
	id, ok := c.ids[strings.ToUpper(symbol)]
	if !ok {
		return models.PricePoint{}, fmt.Errorf("coingecko: no id mapping for %s", symbol)
	}

	// The public API allows roughly 30 calls/minute; shed load here instead
	// of burning the budget on requests that would 429 anyway.
	if !c.limiter.Allow("simple_price", 30, 0.5) {
		return models.PricePoint{}, fmt.Errorf("coingecko: rate limited for %s", symbol)
	}

	var resp map[string]map[string]float64
	err := c.client.SendAndParse(ctx, &xhttp.RequestOptions{
		Method: xhttp.MethodGet,
		URL:    c.baseURL + "/api/v3/simple/price",
		QueryParams: map[string][]string{
			"ids":           {id},
			"vs_currencies": {"usd"},
		},
	}, &resp)
	if err != nil {
		return models.PricePoint{}, fmt.Errorf("simple price %s: %w", symbol, err)
	}

	usd, ok := resp[id]["usd"]
	if !ok || usd <= 0 {
		return models.PricePoint{}, fmt.Errorf("simple price %s: empty response", symbol)
	}
	return models.PricePoint{
		Symbol:     symbol,
		Price:      usd,
		ObservedAt: time.Now(),
		Source:     models.SourceRestBackup,
	}, nil
}

// Source implements repository.PricePoller.
func (c *Client) Source() models.PriceSource { return models.SourceRestBackup }
