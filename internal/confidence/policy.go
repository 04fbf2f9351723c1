package confidence

import (
	"fmt"
	"time"

	"PaperPulse/internal/domain/models"
)

// Policy turns a scored signal into the final buy/sell/hold decision using
// an adaptive threshold.
type Policy struct {
	baseThreshold float64
}

// NewPolicy builds a policy around the configured base threshold.
func NewPolicy(baseThreshold float64) *Policy {
	if baseThreshold <= 0 || baseThreshold >= 1 {
		baseThreshold = 0.45
	}
	return &Policy{baseThreshold: baseThreshold}
}

// Threshold computes the adaptive threshold for one breakdown: raised when
// either the technical or regime sub-score is weak, lowered slightly under
// unusually high confluence.
func (p *Policy) Threshold(b models.ConfidenceBreakdown) float64 {
	t := p.baseThreshold
	if b.TechnicalConsensus < 0.5 || b.MarketRegime < 0.5 {
		t += 0.10
	} else if b.TechnicalConsensus > 0.8 && b.MarketRegime > 0.8 {
		t -= 0.05
	}
	return t
}

// Decide produces the final Signal. The weak-signal veto fires before the
// threshold check: when both technical consensus and regime fit are below
// 0.5 the decision is hold regardless of the corrected confidence.
func (p *Policy) Decide(in Input, b models.ConfidenceBreakdown, corrected, correctionFactor float64) models.Signal {
	sig := models.Signal{
		Symbol:     in.Symbol,
		Timeframe:  in.Timeframe,
		Action:     in.Direction,
		Confidence: corrected,
		EntryPrice: in.EntryPrice,
		StopLoss:   in.StopLoss,
		TakeProfit: in.TakeProfit,
		Breakdown:  b,
		CreatedAt:  time.Now(),
	}
	sig.Reasons = append(sig.Reasons,
		fmt.Sprintf("technical consensus %.2f (%s majority)", b.TechnicalConsensus, in.Direction),
		fmt.Sprintf("market regime %s, fit %.2f", in.Context.Regime, b.MarketRegime),
		fmt.Sprintf("volatility filter %.2f", b.VolatilityFilter),
		fmt.Sprintf("volume confirmation %.2f", b.VolumeConfirmation),
		fmt.Sprintf("timeframe alignment %.2f, %s correction x%.2f", b.TimeframeAlignment, in.Timeframe, correctionFactor),
		fmt.Sprintf("risk/reward %.2f", b.RiskReward),
	)

	if in.Direction == models.ActionHold {
		sig.Reasons = append(sig.Reasons, "indicators undecided, holding")
		return hold(sig)
	}

	if b.TechnicalConsensus < 0.5 && b.MarketRegime < 0.5 {
		sig.Reasons = append(sig.Reasons,
			fmt.Sprintf("weak-signal veto: technical %.2f and regime %.2f both below 0.50",
				b.TechnicalConsensus, b.MarketRegime))
		return hold(sig)
	}

	threshold := p.Threshold(b)
	if corrected < threshold {
		sig.Reasons = append(sig.Reasons,
			fmt.Sprintf("confidence %.2f below adaptive threshold %.2f", corrected, threshold))
		return hold(sig)
	}

	sig.Reasons = append(sig.Reasons,
		fmt.Sprintf("confidence %.2f clears adaptive threshold %.2f", corrected, threshold))
	return sig
}

func hold(sig models.Signal) models.Signal {
	sig.Action = models.ActionHold
	sig.EntryPrice = 0
	sig.StopLoss = 0
	sig.TakeProfit = 0
	return sig
}
