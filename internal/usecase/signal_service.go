package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"PaperPulse/internal/confidence"
	"PaperPulse/internal/domain/models"
	domrepo "PaperPulse/internal/domain/repository"
	"PaperPulse/pkg/logger"
)

// SignalService generates trade signals: candle history → indicator votes →
// confidence scoring → decision policy.
type SignalService struct {
	candles       domrepo.CandleSource
	builder       *confidence.ContextBuilder
	engine        *confidence.Engine
	policy        *confidence.Policy
	metrics       domrepo.Metrics
	log           *logger.Logger
	candleHistory int
}

func NewSignalService(
	candles domrepo.CandleSource,
	builder *confidence.ContextBuilder,
	engine *confidence.Engine,
	policy *confidence.Policy,
	metrics domrepo.Metrics,
	log *logger.Logger,
	candleHistory int,
) *SignalService {
	if candleHistory < confidence.MinCandles {
		candleHistory = 200
	}
	return &SignalService{
		candles:       candles,
		builder:       builder,
		engine:        engine,
		policy:        policy,
		metrics:       metrics,
		log:           log.With(logger.String("component", "signal_service")),
		candleHistory: candleHistory,
	}
}

// Generate produces one signal for (symbol, timeframe). Insufficient history
// degrades to a hold signal with the reason attached rather than failing the
// request; only transport-level failures surface as errors.
func (s *SignalService) Generate(ctx context.Context, symbol, timeframe string) (*models.Signal, error) {
	start := time.Now()
	if timeframe != "" && !domrepo.IsValidTimeframe(domrepo.Timeframe(timeframe)) {
		return nil, fmt.Errorf("unsupported timeframe %q", timeframe)
	}
	tf := domrepo.NormalizeTimeframe(timeframe)

	candles, err := s.candles.GetLatestNCandles(ctx, symbol, s.candleHistory, tf)
	if err != nil {
		return nil, fmt.Errorf("fetch candles: %w", err)
	}

	ind, err := confidence.Evaluate(candles)
	if err != nil {
		if errors.Is(err, models.ErrInsufficientHistory) {
			s.log.Warn("holding on insufficient history",
				logger.String("symbol", symbol),
				logger.String("timeframe", string(tf)),
				logger.Int("candles", len(candles)),
			)
			return s.degradedHold(symbol, tf, err), nil
		}
		return nil, err
	}

	mctx, err := s.builder.Build(ctx, symbol, tf, candles)
	if err != nil {
		if errors.Is(err, models.ErrInsufficientHistory) {
			return s.degradedHold(symbol, tf, err), nil
		}
		return nil, fmt.Errorf("build market context: %w", err)
	}

	in := confidence.Input{
		Symbol:        symbol,
		Timeframe:     string(tf),
		Direction:     ind.Direction(),
		RawConfidence: ind.Strength(),
		Indicators:    ind,
		Context:       mctx,
	}
	in.EntryPrice, in.StopLoss, in.TakeProfit = proposeLevels(in.Direction, candles)

	breakdown, corrected := s.engine.Score(in)
	factor := s.engine.DirectionFactor(in.Timeframe, in.Direction)
	sig := s.policy.Decide(in, breakdown, corrected, factor)

	s.metrics.RecordSignal(string(sig.Action), sig.Timeframe)
	s.metrics.RecordLatency("signal_generate", time.Since(start).Seconds())
	s.log.Info("signal generated",
		logger.String("symbol", symbol),
		logger.String("timeframe", string(tf)),
		logger.String("action", string(sig.Action)),
		logger.Float64("confidence", sig.Confidence),
	)
	return &sig, nil
}

func (s *SignalService) degradedHold(symbol string, tf domrepo.Timeframe, cause error) *models.Signal {
	s.metrics.RecordSignal(string(models.ActionHold), string(tf))
	return &models.Signal{
		Symbol:     symbol,
		Timeframe:  string(tf),
		Action:     models.ActionHold,
		Confidence: 0.10,
		Reasons:    []string{cause.Error()},
		CreatedAt:  time.Now(),
	}
}

// proposeLevels derives entry/stop/target from recent structure: the stop
// sits beyond the 20-bar extreme against the direction, the target at twice
// the risk.
func proposeLevels(dir models.SignalAction, candles []models.Candle) (entry, stop, target float64) {
	if dir == models.ActionHold || len(candles) < 20 {
		return 0, 0, 0
	}
	entry = candles[len(candles)-1].Close
	lo, hi := candles[len(candles)-20].Low, candles[len(candles)-20].High
	for _, c := range candles[len(candles)-20:] {
		if c.Low < lo {
			lo = c.Low
		}
		if c.High > hi {
			hi = c.High
		}
	}
	if dir == models.ActionBuy {
		stop = lo
		target = entry + 2*(entry-stop)
	} else {
		stop = hi
		target = entry - 2*(stop-entry)
	}
	if stop <= 0 || target <= 0 || stop == entry {
		return 0, 0, 0
	}
	return entry, stop, target
}
