package models

import "time"

// SignalAction is the final decision emitted for a signal request.
type SignalAction string

const (
	ActionBuy  SignalAction = "buy"
	ActionSell SignalAction = "sell"
	ActionHold SignalAction = "hold"
)

// Signal is the read-only result of one signal generation request.
type Signal struct {
	Symbol     string              `json:"symbol"`
	Timeframe  string              `json:"timeframe"`
	Action     SignalAction        `json:"action"`
	Confidence float64             `json:"confidence"`
	EntryPrice float64             `json:"entry_price,omitempty"`
	StopLoss   float64             `json:"stop_loss,omitempty"`
	TakeProfit float64             `json:"take_profit,omitempty"`
	Breakdown  ConfidenceBreakdown `json:"breakdown"`
	Reasons    []string            `json:"reasons"`
	CreatedAt  time.Time           `json:"created_at"`
}

// ConfidenceBreakdown carries the six sub-scores, each in [0,1], that are
// combined into the enhanced confidence.
type ConfidenceBreakdown struct {
	TechnicalConsensus float64 `json:"technical_consensus"`
	MarketRegime       float64 `json:"market_regime"`
	VolatilityFilter   float64 `json:"volatility_filter"`
	VolumeConfirmation float64 `json:"volume_confirmation"`
	TimeframeAlignment float64 `json:"timeframe_alignment"`
	RiskReward         float64 `json:"risk_reward"`
}

// RegimeState classifies the prevailing market trend.
type RegimeState string

const (
	RegimeBull     RegimeState = "bull"
	RegimeBear     RegimeState = "bear"
	RegimeSideways RegimeState = "sideways"
)

// MarketContext is a derived, read-only snapshot of market conditions for a
// (symbol, timeframe) pair. Cached with a freshness window to bound
// recomputation cost.
type MarketContext struct {
	Symbol           string      `json:"symbol"`
	Timeframe        string      `json:"timeframe"`
	Regime           RegimeState `json:"regime"`
	VolatilityScore  float64     `json:"volatility_score"`
	VolumeScore      float64     `json:"volume_score"`
	MomentumScore    float64     `json:"momentum_score"`
	CorrelationScore float64     `json:"correlation_score"`
	PatternScore     float64     `json:"pattern_score"`
	MarketScore      float64     `json:"market_score"`
	ComputedAt       time.Time   `json:"computed_at"`
}
