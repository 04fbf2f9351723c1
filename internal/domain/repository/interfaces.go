package repository

import (
	"context"
	"time"

	"PaperPulse/internal/domain/models"
)

// MarketStream is a persistent streaming price subscription.
type MarketStream interface {
	Connect(ctx context.Context) error
	Subscribe(ctx context.Context, symbols []string) error
	Read(ctx context.Context) (<-chan models.PricePoint, <-chan error)
	Reconnect(ctx context.Context, symbols []string) error
	Close() error
}

// PricePoller fetches a spot price over REST. Implementations must honor the
// context deadline; the chain never blocks on a provider outage.
type PricePoller interface {
	FetchPrice(ctx context.Context, symbol string) (models.PricePoint, error)
	Source() models.PriceSource
}

// CandleSource provides OHLCV history for indicator computation.
type CandleSource interface {
	GetLatestNCandles(ctx context.Context, symbol string, n int, tf Timeframe) ([]models.Candle, error)
}

// EventPublisher delivers price updates and trade lifecycle events to
// external consumers. Implementations must not block the feed.
type EventPublisher interface {
	PublishPrice(ctx context.Context, ev models.PriceUpdateEvent) error
	PublishTrade(ctx context.Context, ev models.TradeEvent) error
	Close() error
}

// HistoryStore persists accepted ticks and closed trades for offline
// analysis. Soft dependency: callers log and continue on error.
type HistoryStore interface {
	Init(ctx context.Context) error
	StoreTick(ctx context.Context, p models.PricePoint) error
	StoreTickBatch(ctx context.Context, points []models.PricePoint) error
	StoreClosedTrade(ctx context.Context, t models.Trade) error
	QueryTicks(ctx context.Context, symbol string, from, to time.Time, limit int) ([]models.PricePoint, error)
	Health(ctx context.Context) error
	Close() error
}

// Metrics abstracts the Prometheus recorder for the domain layers.
type Metrics interface {
	RecordPriceUpdate(source, symbol string, price float64)
	RecordPriceDiscard(symbol string)
	RecordError(kind string)
	SetOpenTrades(n int)
	RecordTradeClosed(reason string)
	RecordSignal(action, timeframe string)
	RecordLatency(op string, seconds float64)
}
