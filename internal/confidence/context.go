package confidence

import (
	"context"
	"fmt"
	"time"

	"PaperPulse/internal/domain/models"
	"PaperPulse/internal/domain/repository"
	"PaperPulse/pkg/cache"
	"PaperPulse/pkg/logger"
)

// ContextBuilder derives MarketContext snapshots from candle history and
// caches them per (symbol, timeframe) so repeated signal requests inside the
// freshness window skip the recomputation.
type ContextBuilder struct {
	cache   cache.Service
	log     *logger.Logger
	ttl     time.Duration // intraday timeframes
	ttlLong time.Duration // 1h and above
}

// NewContextBuilder wires the builder to a cache backend. A nil cache
// disables caching and every Build recomputes.
func NewContextBuilder(c cache.Service, log *logger.Logger, ttl, ttlLong time.Duration) *ContextBuilder {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	if ttlLong <= 0 {
		ttlLong = 15 * time.Minute
	}
	return &ContextBuilder{
		cache:   c,
		log:     log.With(logger.String("component", "context_builder")),
		ttl:     ttl,
		ttlLong: ttlLong,
	}
}

// Build returns the MarketContext for (symbol, timeframe), computing it from
// the supplied candles on a cache miss. Candles must be oldest first.
func (b *ContextBuilder) Build(ctx context.Context, symbol string, tf repository.Timeframe, candles []models.Candle) (models.MarketContext, error) {
	key := contextKey(symbol, tf)
	if b.cache != nil {
		var cached models.MarketContext
		if err := b.cache.Get(ctx, key, &cached); err == nil {
			return cached, nil
		}
	}

	mc, err := Compute(symbol, tf, candles)
	if err != nil {
		return models.MarketContext{}, err
	}

	if b.cache != nil {
		ttl := b.ttl
		if !tf.IsIntraday() {
			ttl = b.ttlLong
		}
		if err := b.cache.Set(ctx, key, mc, ttl); err != nil {
			b.log.Warn("failed to cache market context", logger.Error(err), logger.String("key", key))
		}
	}
	return mc, nil
}

// Invalidate drops the cached snapshot for one (symbol, timeframe).
func (b *ContextBuilder) Invalidate(ctx context.Context, symbol string, tf repository.Timeframe) {
	if b.cache == nil {
		return
	}
	if err := b.cache.Delete(ctx, contextKey(symbol, tf)); err != nil {
		b.log.Warn("failed to invalidate market context", logger.Error(err))
	}
}

func contextKey(symbol string, tf repository.Timeframe) string {
	return cache.Key("context", symbol, string(tf))
}

// Compute derives a MarketContext from candle history with no caching. Pure
// and deterministic; exposed for tests and for callers that manage their own
// freshness.
func Compute(symbol string, tf repository.Timeframe, candles []models.Candle) (models.MarketContext, error) {
	if len(candles) < MinCandles {
		return models.MarketContext{}, fmt.Errorf("%w: have %d candles, need %d",
			models.ErrInsufficientHistory, len(candles), MinCandles)
	}
	cl := closes(candles)
	last := cl[len(cl)-1]
	sma20 := SMA(cl, 20)
	sma50 := SMA(cl, 50)

	mc := models.MarketContext{
		Symbol:     symbol,
		Timeframe:  string(tf),
		ComputedAt: time.Now(),
	}

	switch {
	case last > sma50 && sma20 > sma50:
		mc.Regime = models.RegimeBull
	case last < sma50 && sma20 < sma50:
		mc.Regime = models.RegimeBear
	default:
		mc.Regime = models.RegimeSideways
	}

	// Recent volatility against the long-run level. A ratio of 1 scores a
	// neutral 0.5; a regime twice as volatile as usual scores 0.
	rets := LogReturns(candles)
	bpy := BarsPerYear(tf)
	recent := RealizedVolatility(rets, 20, bpy)
	longRun := RealizedVolatility(rets, len(rets), bpy)
	if longRun > 0 {
		mc.VolatilityScore = clamp(1.5-recent/longRun, 0, 1)
	} else {
		mc.VolatilityScore = 0.5
	}

	// Last five bars' volume against the full-history average; twice the
	// average volume saturates the score.
	avgVol := 0.0
	for _, c := range candles {
		avgVol += c.Volume
	}
	avgVol /= float64(len(candles))
	recentVol := 0.0
	for _, c := range candles[len(candles)-5:] {
		recentVol += c.Volume
	}
	recentVol /= 5
	if avgVol > 0 {
		mc.VolumeScore = clamp(recentVol/avgVol/2, 0, 1)
	} else {
		mc.VolumeScore = 0.5
	}

	// 10-bar rate of change mapped onto [0,1] around a neutral 0.5. A 5%
	// move over the window saturates.
	base := cl[len(cl)-11]
	if base > 0 {
		roc := (last - base) / base
		mc.MomentumScore = clamp(0.5+roc*10, 0, 1)
	} else {
		mc.MomentumScore = 0.5
	}

	// No reference series configured; correlation stays neutral.
	mc.CorrelationScore = 0.5

	mc.PatternScore = patternScore(candles)

	mc.MarketScore = (mc.VolatilityScore + mc.VolumeScore + mc.MomentumScore +
		mc.CorrelationScore + mc.PatternScore) / 5
	return mc, nil
}

// patternScore counts higher highs and higher lows over the last ten bars:
// a clean staircase either way scores high, chop scores low.
func patternScore(candles []models.Candle) float64 {
	window := candles[len(candles)-10:]
	hh, hl := 0, 0
	for i := 1; i < len(window); i++ {
		if window[i].High > window[i-1].High {
			hh++
		}
		if window[i].Low > window[i-1].Low {
			hl++
		}
	}
	up := float64(hh+hl) / 18.0
	down := 1 - up
	if up > down {
		return clamp(up, 0, 1)
	}
	return clamp(down, 0, 1)
}
