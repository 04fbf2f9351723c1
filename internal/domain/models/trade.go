package models

import (
	"time"

	"github.com/google/uuid"
)

// Side is the direction of a paper trade.
type Side string

const (
	SideLong  Side = "long"
	SideShort Side = "short"
)

// Sign returns +1 for long and -1 for short.
func (s Side) Sign() float64 {
	if s == SideShort {
		return -1
	}
	return 1
}

// TradeStatus is the externally visible lifecycle state of a trade.
type TradeStatus string

const (
	StatusOpen   TradeStatus = "open"
	StatusClosed TradeStatus = "closed"
)

// ExitReason records why a trade left the open state.
type ExitReason string

const (
	ExitNone       ExitReason = "none"
	ExitTakeProfit ExitReason = "take_profit"
	ExitStopLoss   ExitReason = "stop_loss"
	ExitManual     ExitReason = "manual"
)

// Trade is a simulated position. The ledger is the only component allowed
// to mutate one; a closed trade is immutable thereafter.
type Trade struct {
	ID          uuid.UUID   `json:"id"`
	Symbol      string      `json:"symbol"`
	Side        Side        `json:"side"`
	EntryPrice  float64     `json:"entry_price"`
	StopLoss    float64     `json:"stop_loss"`
	TakeProfit  float64     `json:"take_profit"`
	Quantity    float64     `json:"quantity"`
	OpenedAt    time.Time   `json:"opened_at"`
	Status      TradeStatus `json:"status"`
	ExitReason  ExitReason  `json:"exit_reason"`
	ExitPrice   float64     `json:"exit_price,omitempty"`
	RealizedPnL float64     `json:"realized_pnl,omitempty"`
	ClosedAt    time.Time   `json:"closed_at,omitempty"`
}

// IsOpen reports whether the trade can still be closed.
func (t *Trade) IsOpen() bool { return t.Status == StatusOpen }

// Duration returns how long the trade was (or has been) open.
func (t *Trade) Duration(now time.Time) time.Duration {
	if t.Status == StatusClosed {
		return t.ClosedAt.Sub(t.OpenedAt)
	}
	return now.Sub(t.OpenedAt)
}

// TradeEvent is the broadcast form of a trade lifecycle transition.
type TradeEvent struct {
	Type            string  `json:"type"` // trade_opened | trade_closed
	ID              string  `json:"id"`
	Symbol          string  `json:"symbol"`
	Side            string  `json:"side"`
	EntryPrice      float64 `json:"entry_price"`
	ExitReason      string  `json:"exit_reason,omitempty"`
	ExitPrice       float64 `json:"exit_price,omitempty"`
	RealizedPnL     float64 `json:"realized_pnl,omitempty"`
	DurationSeconds float64 `json:"duration_seconds,omitempty"`
}

// OpenedEvent builds the trade_opened broadcast payload.
func (t *Trade) OpenedEvent() TradeEvent {
	return TradeEvent{
		Type:       "trade_opened",
		ID:         t.ID.String(),
		Symbol:     t.Symbol,
		Side:       string(t.Side),
		EntryPrice: t.EntryPrice,
	}
}

// ClosedEvent builds the trade_closed broadcast payload.
func (t *Trade) ClosedEvent() TradeEvent {
	return TradeEvent{
		Type:            "trade_closed",
		ID:              t.ID.String(),
		Symbol:          t.Symbol,
		Side:            string(t.Side),
		EntryPrice:      t.EntryPrice,
		ExitReason:      string(t.ExitReason),
		ExitPrice:       t.ExitPrice,
		RealizedPnL:     t.RealizedPnL,
		DurationSeconds: t.ClosedAt.Sub(t.OpenedAt).Seconds(),
	}
}

// AccountSnapshot aggregates ledger state into a paper-account view.
type AccountSnapshot struct {
	StartingCash  float64 `json:"starting_cash"`
	RealizedPnL   float64 `json:"realized_pnl"`
	UnrealizedPnL float64 `json:"unrealized_pnl"`
	Equity        float64 `json:"equity"`
	OpenTrades    int     `json:"open_trades"`
	ClosedTrades  int     `json:"closed_trades"`
	Wins          int     `json:"wins"`
	Losses        int     `json:"losses"`
}
