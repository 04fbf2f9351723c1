package binance

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"PaperPulse/internal/domain/models"
	drepo "PaperPulse/internal/domain/repository"
	xhttp "PaperPulse/pkg/http"
)

// RestClient polls spot prices and candle history from the Binance REST API.
// It serves as the primary REST fallback behind the streaming subscription
// and as the candle source for signal generation.
type RestClient struct {
	baseURL string
	client  *xhttp.Client
}

// NewRestClient creates a REST client. baseURL defaults to the public spot
// API.
func NewRestClient(baseURL string, timeout time.Duration) *RestClient {
	if baseURL == "" {
		baseURL = "https://api.binance.com"
	}
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	return &RestClient{
		baseURL: baseURL,
		client:  xhttp.NewClient(xhttp.WithTimeout(timeout)),
	}
}

type tickerResponse struct {
	Symbol string `json:"symbol"`
	Price  string `json:"price"`
}

// FetchPrice implements repository.PricePoller.
func (c *RestClient) FetchPrice(ctx context.Context, symbol string) (models.PricePoint, error) {
	var tr tickerResponse
	err := c.client.SendAndParse(ctx, &xhttp.RequestOptions{
		Method:      xhttp.MethodGet,
		URL:         c.baseURL + "/api/v3/ticker/price",
		QueryParams: map[string][]string{"symbol": {symbol}},
	}, &tr)
	if err != nil {
		return models.PricePoint{}, fmt.Errorf("ticker %s: %w", symbol, err)
	}
	price, err := strconv.ParseFloat(tr.Price, 64)
	if err != nil || price <= 0 {
		return models.PricePoint{}, fmt.Errorf("ticker %s: bad price %q", symbol, tr.Price)
	}
	return models.PricePoint{
		Symbol:     symbol,
		Price:      price,
		ObservedAt: time.Now(),
		Source:     models.SourceRestPrimary,
	}, nil
}

// Source implements repository.PricePoller.
func (c *RestClient) Source() models.PriceSource { return models.SourceRestPrimary }

// GetLatestNCandles implements repository.CandleSource using the klines
// endpoint. Binance returns newest-last, which is the order indicators
// expect.
func (c *RestClient) GetLatestNCandles(ctx context.Context, symbol string, n int, tf drepo.Timeframe) ([]models.Candle, error) {
	if n <= 0 {
		n = 200
	}
	var raw [][]json.RawMessage
	err := c.client.SendAndParse(ctx, &xhttp.RequestOptions{
		Method: xhttp.MethodGet,
		URL:    c.baseURL + "/api/v3/klines",
		QueryParams: map[string][]string{
			"symbol":   {symbol},
			"interval": {string(tf)},
			"limit":    {strconv.Itoa(n)},
		},
	}, &raw)
	if err != nil {
		return nil, fmt.Errorf("klines %s %s: %w", symbol, tf, err)
	}

	candles := make([]models.Candle, 0, len(raw))
	for _, row := range raw {
		// kline rows: [openTime, open, high, low, close, volume, ...]
		if len(row) < 6 {
			continue
		}
		var openMS int64
		if err := json.Unmarshal(row[0], &openMS); err != nil {
			continue
		}
		c := models.Candle{
			Bucket: time.UnixMilli(openMS),
			Symbol: symbol,
		}
		fields := []*float64{&c.Open, &c.High, &c.Low, &c.Close, &c.Volume}
		ok := true
		for i, dst := range fields {
			var s string
			if err := json.Unmarshal(row[i+1], &s); err != nil {
				ok = false
				break
			}
			v, err := strconv.ParseFloat(s, 64)
			if err != nil {
				ok = false
				break
			}
			*dst = v
		}
		if ok {
			candles = append(candles, c)
		}
	}
	return candles, nil
}
