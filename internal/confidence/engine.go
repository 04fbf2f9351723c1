package confidence

import (
	"PaperPulse/internal/domain/models"
	"PaperPulse/pkg/config"
)

// Weights are the fixed sub-score weights. They must sum to 1.0.
type Weights struct {
	Technical  float64
	Regime     float64
	Volatility float64
	Volume     float64
	Timeframe  float64
	RiskReward float64
}

// DefaultWeights favor indicator agreement and regime fit.
func DefaultWeights() Weights {
	return Weights{
		Technical:  0.25,
		Regime:     0.20,
		Volatility: 0.15,
		Volume:     0.15,
		Timeframe:  0.10,
		RiskReward: 0.15,
	}
}

// timeframeBase is the intrinsic suitability of each timeframe for acting on
// a signal; very short frames are noisier.
var timeframeBase = map[string]float64{
	"1m":  0.40,
	"5m":  0.50,
	"15m": 0.60,
	"1h":  0.70,
	"4h":  0.75,
	"1d":  0.70,
}

// Input carries everything the engine needs for one scoring pass.
type Input struct {
	Symbol        string
	Timeframe     string
	Direction     models.SignalAction
	RawConfidence float64
	Indicators    Indicators
	Context       models.MarketContext
	EntryPrice    float64
	StopLoss      float64
	TakeProfit    float64
}

// Engine combines six sub-scores into one calibrated confidence. Pure and
// deterministic: no state is carried between calls beyond the configured
// weights and correction table.
type Engine struct {
	weights Weights
	bias    map[string]config.BiasCorrection
}

// NewEngine builds an engine. A nil bias table falls back to the defaults.
func NewEngine(weights Weights, bias map[string]config.BiasCorrection) *Engine {
	if bias == nil {
		bias = config.DefaultBiasCorrection()
	}
	return &Engine{weights: weights, bias: bias}
}

// Score produces the sub-score breakdown and the corrected confidence.
// The blend is 60% weighted sub-scores, 40% raw model confidence, clamped to
// [0.10, 0.95]; the per-timeframe direction factor is applied after the
// blend and the result re-clamped.
func (e *Engine) Score(in Input) (models.ConfidenceBreakdown, float64) {
	b := models.ConfidenceBreakdown{
		TechnicalConsensus: in.Indicators.Consensus(in.Direction),
		MarketRegime:       regimeFit(in.Direction, in.Context.Regime),
		VolatilityFilter:   clamp(in.Context.VolatilityScore, 0, 1),
		VolumeConfirmation: clamp(in.Context.VolumeScore, 0, 1),
		TimeframeAlignment: e.timeframeAlignment(in.Timeframe),
		RiskReward:         riskReward(in.Direction, in.EntryPrice, in.StopLoss, in.TakeProfit),
	}

	weighted := b.TechnicalConsensus*e.weights.Technical +
		b.MarketRegime*e.weights.Regime +
		b.VolatilityFilter*e.weights.Volatility +
		b.VolumeConfirmation*e.weights.Volume +
		b.TimeframeAlignment*e.weights.Timeframe +
		b.RiskReward*e.weights.RiskReward

	blended := clamp(0.6*weighted+0.4*clamp(in.RawConfidence, 0, 1), 0.10, 0.95)
	corrected := clamp(blended*e.DirectionFactor(in.Timeframe, in.Direction), 0.10, 0.95)
	return b, corrected
}

// DirectionFactor returns the multiplicative correction for a direction on a
// timeframe; 1.0 when the table has no entry.
func (e *Engine) DirectionFactor(timeframe string, dir models.SignalAction) float64 {
	bc, ok := e.bias[timeframe]
	if !ok {
		return 1.0
	}
	switch dir {
	case models.ActionBuy:
		return bc.BuyFactor
	case models.ActionSell:
		return bc.SellFactor
	default:
		return bc.HoldBoost
	}
}

// timeframeAlignment is the base suitability for the timeframe. The
// directional skew itself is handled by the post-blend correction factor, so
// the alignment sub-score stays direction-neutral.
func (e *Engine) timeframeAlignment(timeframe string) float64 {
	if base, ok := timeframeBase[timeframe]; ok {
		return base
	}
	return 0.5
}

// regimeFit scores how well the proposed direction fits the prevailing
// regime.
func regimeFit(dir models.SignalAction, regime models.RegimeState) float64 {
	switch dir {
	case models.ActionBuy:
		switch regime {
		case models.RegimeBull:
			return 0.9
		case models.RegimeBear:
			return 0.2
		default:
			return 0.5
		}
	case models.ActionSell:
		switch regime {
		case models.RegimeBear:
			return 0.9
		case models.RegimeBull:
			return 0.2
		default:
			return 0.5
		}
	default:
		if regime == models.RegimeSideways {
			return 0.7
		}
		return 0.5
	}
}

// riskReward scores the reward:risk ratio implied by the proposed levels; a
// 3:1 ratio saturates the score. Missing levels score neutral.
func riskReward(dir models.SignalAction, entry, stop, target float64) float64 {
	if entry <= 0 || stop <= 0 || target <= 0 {
		return 0.5
	}
	var risk, reward float64
	if dir == models.ActionSell {
		risk = stop - entry
		reward = entry - target
	} else {
		risk = entry - stop
		reward = target - entry
	}
	if risk <= 0 || reward <= 0 {
		return 0.1
	}
	return clamp(reward/risk/3, 0, 1)
}
