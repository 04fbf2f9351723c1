package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"PaperPulse/internal/domain/models"
	domrepo "PaperPulse/internal/domain/repository"
	"PaperPulse/internal/trading"
	"PaperPulse/pkg/logger"
)

// TradeService orchestrates trade control operations: open, manual close,
// listings, and the account snapshot. Every closure funnels through the
// monitor so monitor-triggered and manual closes share one exactly-once
// path.
type TradeService struct {
	ledger    *trading.Ledger
	monitor   *trading.Monitor
	prices    trading.PriceSource
	publisher domrepo.EventPublisher
	log       *logger.Logger
}

func NewTradeService(
	ledger *trading.Ledger,
	monitor *trading.Monitor,
	prices trading.PriceSource,
	publisher domrepo.EventPublisher,
	log *logger.Logger,
) *TradeService {
	return &TradeService{
		ledger:    ledger,
		monitor:   monitor,
		prices:    prices,
		publisher: publisher,
		log:       log.With(logger.String("component", "trade_service")),
	}
}

// Open validates and records a new paper trade, then emits the trade_opened
// event.
func (s *TradeService) Open(ctx context.Context, req models.OpenTradeRequest) (models.Trade, error) {
	t, err := s.ledger.Open(
		req.Symbol,
		models.Side(req.Side),
		req.EntryPrice,
		req.StopLoss,
		req.TakeProfit,
		req.Notional,
	)
	if err != nil {
		return models.Trade{}, err
	}

	s.log.Info("trade opened",
		logger.String("trade_id", t.ID.String()),
		logger.String("symbol", t.Symbol),
		logger.String("side", string(t.Side)),
		logger.Float64("entry", t.EntryPrice),
	)

	if s.publisher != nil {
		pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 3*time.Second)
		defer cancel()
		if err := s.publisher.PublishTrade(pubCtx, t.OpenedEvent()); err != nil {
			s.log.Warn("failed to publish trade_opened event", logger.Error(err))
		}
	}
	return t, nil
}

// Close manually closes a trade at the current feed price. Closing an
// already-closed trade returns its terminal record unchanged.
func (s *TradeService) Close(ctx context.Context, id string) (models.Trade, error) {
	tradeID, err := uuid.Parse(id)
	if err != nil {
		return models.Trade{}, fmt.Errorf("%w: bad trade id %q", models.ErrTradeNotFound, id)
	}

	t, _, err := s.monitor.CloseManual(ctx, tradeID, 0)
	if err != nil {
		return models.Trade{}, err
	}
	return t, nil
}

// Get returns one trade by id.
func (s *TradeService) Get(id string) (models.Trade, error) {
	tradeID, err := uuid.Parse(id)
	if err != nil {
		return models.Trade{}, fmt.Errorf("%w: bad trade id %q", models.ErrTradeNotFound, id)
	}
	return s.ledger.Get(tradeID)
}

// Active returns snapshots of all open trades.
func (s *TradeService) Active() []models.Trade { return s.ledger.ActiveTrades() }

// History returns snapshots of all closed trades.
func (s *TradeService) History() []models.Trade { return s.ledger.History() }

// Account marks open trades to the freshest feed prices and aggregates the
// paper account view. Symbols with stale prices stay unmarked.
func (s *TradeService) Account() models.AccountSnapshot {
	marks := make(map[string]float64)
	for _, sym := range s.ledger.OpenSymbols() {
		if p, ok := s.prices.GetPrice(sym); ok {
			marks[sym] = p.Price
		}
	}
	return s.ledger.Snapshot(marks)
}
