package trading

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"PaperPulse/internal/domain/models"
	"PaperPulse/internal/domain/repository"
)

// Ledger is the single source of truth for paper trade state. All mutations
// go through Open and Close; everything handed out is a copy.
type Ledger struct {
	mu           sync.RWMutex
	trades       map[uuid.UUID]*models.Trade
	order        []uuid.UUID // insertion order for stable listings
	startingCash float64
	feeRate      float64
	metrics      repository.Metrics
}

// NewLedger creates an empty ledger. feeRate is charged per side on the
// traded notional; zero disables fees.
func NewLedger(startingCash, feeRate float64, metrics repository.Metrics) *Ledger {
	if startingCash <= 0 {
		startingCash = 10000
	}
	return &Ledger{
		trades:       make(map[uuid.UUID]*models.Trade),
		startingCash: startingCash,
		feeRate:      feeRate,
		metrics:      metrics,
	}
}

// Open validates and records a new trade. Stop and target must sit on the
// correct side of the entry for the requested direction; otherwise
// models.ErrInvalidOrder.
func (l *Ledger) Open(symbol string, side models.Side, entry, stop, target, notional float64) (models.Trade, error) {
	if symbol == "" || entry <= 0 || stop <= 0 || target <= 0 {
		return models.Trade{}, fmt.Errorf("%w: non-positive prices", models.ErrInvalidOrder)
	}
	switch side {
	case models.SideLong:
		if !(stop < entry && entry < target) {
			return models.Trade{}, fmt.Errorf("%w: long requires stop < entry < target", models.ErrInvalidOrder)
		}
	case models.SideShort:
		if !(target < entry && entry < stop) {
			return models.Trade{}, fmt.Errorf("%w: short requires target < entry < stop", models.ErrInvalidOrder)
		}
	default:
		return models.Trade{}, fmt.Errorf("%w: unknown side %q", models.ErrInvalidOrder, side)
	}

	qty := 1.0
	if notional > 0 {
		qty = notional / entry
	}

	t := &models.Trade{
		ID:         uuid.New(),
		Symbol:     symbol,
		Side:       side,
		EntryPrice: entry,
		StopLoss:   stop,
		TakeProfit: target,
		Quantity:   qty,
		OpenedAt:   time.Now(),
		Status:     models.StatusOpen,
		ExitReason: models.ExitNone,
	}

	l.mu.Lock()
	l.trades[t.ID] = t
	l.order = append(l.order, t.ID)
	open := l.countOpenLocked()
	l.mu.Unlock()

	l.metrics.SetOpenTrades(open)
	return *t, nil
}

// Close is the single mutation path into terminal state. Exactly-once: if
// the trade is already closed the existing terminal record is returned with
// closedNow=false and no error, so racing callers never double-count P&L.
func (l *Ledger) Close(id uuid.UUID, exitPrice float64, reason models.ExitReason) (models.Trade, bool, error) {
	l.mu.Lock()
	t, ok := l.trades[id]
	if !ok {
		l.mu.Unlock()
		return models.Trade{}, false, models.ErrTradeNotFound
	}
	if t.Status == models.StatusClosed {
		out := *t
		l.mu.Unlock()
		return out, false, nil
	}

	pnl := (exitPrice - t.EntryPrice) * t.Side.Sign() * t.Quantity
	if l.feeRate > 0 {
		pnl -= l.feeRate * (t.EntryPrice + exitPrice) * t.Quantity
	}
	t.Status = models.StatusClosed
	t.ExitReason = reason
	t.ExitPrice = exitPrice
	t.RealizedPnL = pnl
	t.ClosedAt = time.Now()
	out := *t
	open := l.countOpenLocked()
	l.mu.Unlock()

	l.metrics.SetOpenTrades(open)
	l.metrics.RecordTradeClosed(string(reason))
	return out, true, nil
}

// Get returns a copy of one trade.
func (l *Ledger) Get(id uuid.UUID) (models.Trade, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	t, ok := l.trades[id]
	if !ok {
		return models.Trade{}, models.ErrTradeNotFound
	}
	return *t, nil
}

// ActiveTrades returns copies of all open trades in open order.
func (l *Ledger) ActiveTrades() []models.Trade {
	return l.collect(func(t *models.Trade) bool { return t.Status == models.StatusOpen })
}

// History returns copies of all closed trades, most recent close last.
func (l *Ledger) History() []models.Trade {
	out := l.collect(func(t *models.Trade) bool { return t.Status == models.StatusClosed })
	sort.Slice(out, func(i, j int) bool { return out[i].ClosedAt.Before(out[j].ClosedAt) })
	return out
}

// OpenBySymbol returns copies of open trades for one symbol; used by the
// monitor's event-driven fast path.
func (l *Ledger) OpenBySymbol(symbol string) []models.Trade {
	return l.collect(func(t *models.Trade) bool {
		return t.Status == models.StatusOpen && t.Symbol == symbol
	})
}

// OpenSymbols returns the distinct symbols that have open trades.
func (l *Ledger) OpenSymbols() []string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	seen := make(map[string]struct{})
	var out []string
	for _, id := range l.order {
		t := l.trades[id]
		if t.Status != models.StatusOpen {
			continue
		}
		if _, dup := seen[t.Symbol]; dup {
			continue
		}
		seen[t.Symbol] = struct{}{}
		out = append(out, t.Symbol)
	}
	return out
}

// Snapshot aggregates ledger state into an account view, marking open
// trades to the supplied prices (zero price leaves a trade unmarked).
func (l *Ledger) Snapshot(prices map[string]float64) models.AccountSnapshot {
	l.mu.RLock()
	defer l.mu.RUnlock()

	snap := models.AccountSnapshot{StartingCash: l.startingCash}
	for _, t := range l.trades {
		if t.Status == models.StatusClosed {
			snap.ClosedTrades++
			snap.RealizedPnL += t.RealizedPnL
			if t.RealizedPnL >= 0 {
				snap.Wins++
			} else {
				snap.Losses++
			}
			continue
		}
		snap.OpenTrades++
		if mark := prices[t.Symbol]; mark > 0 {
			snap.UnrealizedPnL += (mark - t.EntryPrice) * t.Side.Sign() * t.Quantity
		}
	}
	snap.Equity = snap.StartingCash + snap.RealizedPnL + snap.UnrealizedPnL
	return snap
}

func (l *Ledger) collect(keep func(*models.Trade) bool) []models.Trade {
	l.mu.RLock()
	defer l.mu.RUnlock()
	var out []models.Trade
	for _, id := range l.order {
		if t := l.trades[id]; keep(t) {
			out = append(out, *t)
		}
	}
	return out
}

func (l *Ledger) countOpenLocked() int {
	n := 0
	for _, t := range l.trades {
		if t.Status == models.StatusOpen {
			n++
		}
	}
	return n
}
