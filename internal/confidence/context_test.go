package confidence

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"PaperPulse/internal/domain/models"
	"PaperPulse/internal/domain/repository"
	"PaperPulse/pkg/cache"
	"PaperPulse/pkg/logger"
)

func testLogger(t *testing.T) *logger.Logger {
	t.Helper()
	l, err := logger.New(&logger.Config{Level: "error", Format: "json", Output: "stderr"})
	if err != nil {
		t.Fatalf("logger: %v", err)
	}
	return l
}

func TestComputeRegimeClassification(t *testing.T) {
	up, err := Compute("BTCUSDT", repository.TF1m, trendCandles(120, 100, 1))
	require.NoError(t, err)
	assert.Equal(t, models.RegimeBull, up.Regime)

	down, err := Compute("BTCUSDT", repository.TF1m, trendCandles(120, 300, -1))
	require.NoError(t, err)
	assert.Equal(t, models.RegimeBear, down.Regime)

	flat, err := Compute("BTCUSDT", repository.TF1m, trendCandles(120, 100, 0))
	require.NoError(t, err)
	assert.Equal(t, models.RegimeSideways, flat.Regime)
}

func TestComputeScoresStayInRange(t *testing.T) {
	for _, step := range []float64{-2, -0.1, 0, 0.1, 2} {
		mc, err := Compute("BTCUSDT", repository.TF5m, trendCandles(150, 500, step))
		require.NoError(t, err)
		for name, score := range map[string]float64{
			"volatility":  mc.VolatilityScore,
			"volume":      mc.VolumeScore,
			"momentum":    mc.MomentumScore,
			"correlation": mc.CorrelationScore,
			"pattern":     mc.PatternScore,
			"market":      mc.MarketScore,
		} {
			assert.GreaterOrEqual(t, score, 0.0, "%s step=%v", name, step)
			assert.LessOrEqual(t, score, 1.0, "%s step=%v", name, step)
		}
	}
}

func TestComputeInsufficientHistory(t *testing.T) {
	_, err := Compute("BTCUSDT", repository.TF1m, trendCandles(10, 100, 1))
	require.ErrorIs(t, err, models.ErrInsufficientHistory)
}

func TestContextBuilderCaches(t *testing.T) {
	mem := cache.NewMemoryCache()
	defer mem.Close()
	b := NewContextBuilder(mem, testLogger(t), time.Minute, time.Hour)
	ctx := context.Background()

	first, err := b.Build(ctx, "BTCUSDT", repository.TF1m, trendCandles(120, 100, 1))
	require.NoError(t, err)
	assert.Equal(t, models.RegimeBull, first.Regime)

	// Different candles, same key: the cached snapshot wins inside the TTL.
	second, err := b.Build(ctx, "BTCUSDT", repository.TF1m, trendCandles(120, 300, -1))
	require.NoError(t, err)
	assert.Equal(t, models.RegimeBull, second.Regime)

	// Invalidation forces a recompute.
	b.Invalidate(ctx, "BTCUSDT", repository.TF1m)
	third, err := b.Build(ctx, "BTCUSDT", repository.TF1m, trendCandles(120, 300, -1))
	require.NoError(t, err)
	assert.Equal(t, models.RegimeBear, third.Regime)
}

func TestContextBuilderNilCacheRecomputes(t *testing.T) {
	b := NewContextBuilder(nil, testLogger(t), time.Minute, time.Hour)
	ctx := context.Background()

	first, err := b.Build(ctx, "BTCUSDT", repository.TF1m, trendCandles(120, 100, 1))
	require.NoError(t, err)
	assert.Equal(t, models.RegimeBull, first.Regime)

	second, err := b.Build(ctx, "BTCUSDT", repository.TF1m, trendCandles(120, 300, -1))
	require.NoError(t, err)
	assert.Equal(t, models.RegimeBear, second.Regime)
}
