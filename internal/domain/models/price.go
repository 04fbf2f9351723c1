package models

import "time"

// PriceSource identifies which provider produced a price observation.
type PriceSource string

const (
	SourceStream      PriceSource = "stream"
	SourceRestPrimary PriceSource = "rest_primary"
	SourceRestBackup  PriceSource = "rest_backup"
)

// PricePoint is one timestamped price observation for a symbol.
// Immutable once created; newer points supersede older ones per symbol.
type PricePoint struct {
	Symbol     string
	Price      float64
	Volume     float64
	ObservedAt time.Time
	Source     PriceSource
}

// Age returns how old the observation is relative to now.
func (p PricePoint) Age(now time.Time) time.Duration {
	return now.Sub(p.ObservedAt)
}

// PriceUpdateEvent is the wire form of an accepted price update for
// broadcast consumers.
type PriceUpdateEvent struct {
	Symbol    string  `json:"symbol"`
	Price     float64 `json:"price"`
	Timestamp string  `json:"timestamp"`
	Source    string  `json:"source"`
}

// ToEvent converts a PricePoint into its broadcast representation.
func (p PricePoint) ToEvent() PriceUpdateEvent {
	return PriceUpdateEvent{
		Symbol:    p.Symbol,
		Price:     p.Price,
		Timestamp: p.ObservedAt.UTC().Format(time.RFC3339),
		Source:    string(p.Source),
	}
}

// Candle represents an OHLCV record used for indicator computation.
type Candle struct {
	Bucket time.Time
	Symbol string
	Open   float64
	High   float64
	Low    float64
	Close  float64
	Volume float64
}
