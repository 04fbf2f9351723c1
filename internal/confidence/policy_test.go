package confidence

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"PaperPulse/internal/domain/models"
)

func breakdown(technical, regime float64) models.ConfidenceBreakdown {
	return models.ConfidenceBreakdown{
		TechnicalConsensus: technical,
		MarketRegime:       regime,
		VolatilityFilter:   0.6,
		VolumeConfirmation: 0.6,
		TimeframeAlignment: 0.7,
		RiskReward:         0.6,
	}
}

func TestPolicyThresholdAdaptation(t *testing.T) {
	p := NewPolicy(0.45)

	// Healthy sub-scores keep the base threshold.
	assert.InDelta(t, 0.45, p.Threshold(breakdown(0.7, 0.7)), 1e-9)
	// A weak technical or regime leg raises it.
	assert.InDelta(t, 0.55, p.Threshold(breakdown(0.4, 0.7)), 1e-9)
	assert.InDelta(t, 0.55, p.Threshold(breakdown(0.7, 0.4)), 1e-9)
	// High confluence on both lowers it slightly.
	assert.InDelta(t, 0.40, p.Threshold(breakdown(0.85, 0.9)), 1e-9)
}

func TestPolicyDefaultThreshold(t *testing.T) {
	for _, bad := range []float64{0, -1, 1, 2} {
		p := NewPolicy(bad)
		assert.InDelta(t, 0.45, p.Threshold(breakdown(0.7, 0.7)), 1e-9)
	}
}

func TestPolicyEmitsWhenConfidenceClears(t *testing.T) {
	p := NewPolicy(0.45)
	in := Input{
		Symbol:     "BTCUSDT",
		Timeframe:  "1h",
		Direction:  models.ActionBuy,
		EntryPrice: 100,
		StopLoss:   95,
		TakeProfit: 110,
	}

	sig := p.Decide(in, breakdown(0.8, 0.9), 0.72, 1.0)
	assert.Equal(t, models.ActionBuy, sig.Action)
	assert.InDelta(t, 0.72, sig.Confidence, 1e-9)
	assert.InDelta(t, 100.0, sig.EntryPrice, 1e-9)
	require.NotEmpty(t, sig.Reasons)
	assert.True(t, hasReason(sig, "clears adaptive threshold"))
}

func TestPolicyHoldsBelowThreshold(t *testing.T) {
	p := NewPolicy(0.45)
	in := Input{
		Symbol:     "BTCUSDT",
		Timeframe:  "1h",
		Direction:  models.ActionBuy,
		EntryPrice: 100,
		StopLoss:   95,
		TakeProfit: 110,
	}

	sig := p.Decide(in, breakdown(0.7, 0.7), 0.40, 1.0)
	assert.Equal(t, models.ActionHold, sig.Action)
	// A hold carries no trade levels.
	assert.Zero(t, sig.EntryPrice)
	assert.Zero(t, sig.StopLoss)
	assert.Zero(t, sig.TakeProfit)
	assert.True(t, hasReason(sig, "below adaptive threshold"))
}

func TestPolicyWeakSignalVeto(t *testing.T) {
	p := NewPolicy(0.45)
	in := Input{
		Symbol:     "BTCUSDT",
		Timeframe:  "1h",
		Direction:  models.ActionSell,
		EntryPrice: 100,
		StopLoss:   105,
		TakeProfit: 90,
	}

	// Confidence would clear any threshold, but both gating legs are weak.
	sig := p.Decide(in, breakdown(0.45, 0.45), 0.90, 1.0)
	assert.Equal(t, models.ActionHold, sig.Action)
	assert.True(t, hasReason(sig, "weak-signal veto"))

	// One weak leg alone does not veto; it only raises the threshold.
	sig = p.Decide(in, breakdown(0.45, 0.9), 0.90, 1.0)
	assert.Equal(t, models.ActionSell, sig.Action)
}

func TestPolicyUndecidedIndicatorsHold(t *testing.T) {
	p := NewPolicy(0.45)
	in := Input{Symbol: "BTCUSDT", Timeframe: "1h", Direction: models.ActionHold}

	sig := p.Decide(in, breakdown(0.6, 0.7), 0.80, 1.05)
	assert.Equal(t, models.ActionHold, sig.Action)
	assert.True(t, hasReason(sig, "indicators undecided"))
}

func TestPolicyReasonsExplainEveryLeg(t *testing.T) {
	p := NewPolicy(0.45)
	in := Input{
		Symbol:     "BTCUSDT",
		Timeframe:  "5m",
		Direction:  models.ActionBuy,
		EntryPrice: 100,
		StopLoss:   95,
		TakeProfit: 110,
	}

	sig := p.Decide(in, breakdown(0.8, 0.9), 0.70, 0.90)
	for _, want := range []string{
		"technical consensus",
		"market regime",
		"volatility filter",
		"volume confirmation",
		"timeframe alignment",
		"risk/reward",
		"correction x0.90",
	} {
		assert.True(t, hasReason(sig, want), "missing reason %q in %v", want, sig.Reasons)
	}
}

func hasReason(sig models.Signal, substr string) bool {
	for _, r := range sig.Reasons {
		if strings.Contains(r, substr) {
			return true
		}
	}
	return false
}
