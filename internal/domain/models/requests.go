package models

// Requests for the trading HTTP endpoints. Defined in domain for consistency and reuse.

type SignalRequest struct {
	Symbol    string `query:"symbol" json:"symbol" validate:"required"`
	Timeframe string `query:"timeframe" json:"timeframe" default:"1m" validate:"oneof=1m 5m 15m 1h 4h 1d"`
}

type OpenTradeRequest struct {
	Symbol     string  `json:"symbol" validate:"required"`
	Side       string  `json:"side" validate:"oneof=long short"`
	EntryPrice float64 `json:"entry_price" validate:"gt=0"`
	StopLoss   float64 `json:"stop_loss" validate:"gt=0"`
	TakeProfit float64 `json:"take_profit" validate:"gt=0"`
	Notional   float64 `json:"notional" validate:"gte=0"`
}

type CloseTradeRequest struct {
	ID string `param:"id" json:"id" validate:"required,uuid"`
}

type PriceRequest struct {
	Symbol    string `param:"symbol" json:"symbol" validate:"required"`
	MaxAgeSec int    `query:"max_age" json:"max_age" default:"10" validate:"gte=1,lte=300"`
}

type HistoryRequest struct {
	Symbol string `query:"symbol" json:"symbol"`
	Limit  int    `query:"limit" json:"limit" default:"100" validate:"gte=1,lte=1000"`
}
