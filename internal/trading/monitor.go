package trading

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"PaperPulse/internal/domain/models"
	"PaperPulse/internal/domain/repository"
	"PaperPulse/pkg/logger"
)

// PriceSource is the slice of the feed the monitor needs: a freshness-bound
// read of the latest price for one symbol.
type PriceSource interface {
	GetPrice(symbol string) (models.PricePoint, bool)
}

// Monitor watches open trades and closes them when price crosses a stop or
// target. It combines a periodic sweep with an event-driven fast path fed
// by the price registry; both funnel into the same closure routine so each
// trade closes at most once.
type Monitor struct {
	ledger    *Ledger
	prices    PriceSource
	publisher repository.EventPublisher
	history   repository.HistoryStore
	metrics   repository.Metrics
	log       *logger.Logger
	interval  time.Duration

	mu      sync.Mutex
	pending map[string][]float64 // prices observed since last sweep, per symbol
	closing map[uuid.UUID]struct{}
	running bool
	kick    chan struct{}
	cancel  context.CancelFunc
	done    chan struct{}
}

// NewMonitor builds a monitor sweeping open trades every interval.
func NewMonitor(ledger *Ledger, prices PriceSource, publisher repository.EventPublisher, history repository.HistoryStore, metrics repository.Metrics, log *logger.Logger, interval time.Duration) *Monitor {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	return &Monitor{
		ledger:    ledger,
		prices:    prices,
		publisher: publisher,
		history:   history,
		metrics:   metrics,
		log:       log.With(logger.String("component", "trade_monitor")),
		interval:  interval,
		pending:   make(map[string][]float64),
		closing:   make(map[uuid.UUID]struct{}),
		kick:      make(chan struct{}, 1),
	}
}

// Start launches the sweep loop. Safe to call more than once.
func (m *Monitor) Start(ctx context.Context) {
	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		return
	}
	m.running = true
	ctx, m.cancel = context.WithCancel(ctx)
	m.done = make(chan struct{})
	m.mu.Unlock()

	go m.loop(ctx)
	m.log.Info("trade monitor started", logger.Duration("interval", m.interval))
}

// Stop halts the sweep loop and waits for it to drain. Idempotent.
func (m *Monitor) Stop() {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}
	m.running = false
	cancel, done := m.cancel, m.done
	m.mu.Unlock()

	cancel()
	<-done
	m.log.Info("trade monitor stopped")
}

// OnPrice is the registry callback. It never blocks the feed: the point is
// queued and the sweep goroutine is nudged.
func (m *Monitor) OnPrice(p models.PricePoint) {
	m.mu.Lock()
	m.pending[p.Symbol] = append(m.pending[p.Symbol], p.Price)
	m.mu.Unlock()

	select {
	case m.kick <- struct{}{}:
	default:
	}
}

// CloseManual closes a trade on request at the supplied price, or at the
// freshest feed price when exitPrice is zero. Falls back to the entry price
// if the feed has nothing, so a manual close always succeeds.
func (m *Monitor) CloseManual(ctx context.Context, id uuid.UUID, exitPrice float64) (models.Trade, bool, error) {
	if exitPrice <= 0 {
		t, err := m.ledger.Get(id)
		if err != nil {
			return models.Trade{}, false, err
		}
		if p, ok := m.prices.GetPrice(t.Symbol); ok {
			exitPrice = p.Price
		} else {
			exitPrice = t.EntryPrice
		}
	}
	return m.close(ctx, id, exitPrice, models.ExitManual)
}

func (m *Monitor) loop(ctx context.Context) {
	defer close(m.done)
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-m.kick:
			m.sweep(ctx, false)
		case <-ticker.C:
			m.sweep(ctx, true)
		}
	}
}

// sweep evaluates queued observations against open trades. On a periodic
// pass it also pulls the current feed price for every symbol with an open
// trade, so trades progress even when the fast path is quiet.
func (m *Monitor) sweep(ctx context.Context, periodic bool) {
	start := time.Now()

	m.mu.Lock()
	batch := m.pending
	m.pending = make(map[string][]float64)
	m.mu.Unlock()

	if periodic {
		for _, sym := range m.ledger.OpenSymbols() {
			if len(batch[sym]) > 0 {
				continue
			}
			p, ok := m.prices.GetPrice(sym)
			if !ok {
				// Stale or missing price: skip the symbol this cycle
				// rather than act on old data.
				m.log.Debug("skipping symbol with stale price", logger.String("symbol", sym))
				continue
			}
			batch[sym] = append(batch[sym], p.Price)
		}
	}

	for sym, prices := range batch {
		for _, t := range m.ledger.OpenBySymbol(sym) {
			m.evaluate(ctx, t, prices)
		}
	}
	m.metrics.RecordLatency("monitor_sweep", time.Since(start).Seconds())
}

// evaluate applies the exit rules to one trade over a batch of observed
// prices. When both levels were touched within the batch the stop loss
// wins: risk control outranks profit taking. The trade is closed at the
// trigger level itself, not the observed price that crossed it.
func (m *Monitor) evaluate(ctx context.Context, t models.Trade, prices []float64) {
	lo, hi := prices[0], prices[0]
	for _, p := range prices[1:] {
		if p < lo {
			lo = p
		}
		if p > hi {
			hi = p
		}
	}

	var stopHit, targetHit bool
	if t.Side == models.SideLong {
		stopHit = lo <= t.StopLoss
		targetHit = hi >= t.TakeProfit
	} else {
		stopHit = hi >= t.StopLoss
		targetHit = lo <= t.TakeProfit
	}

	switch {
	case stopHit:
		m.close(ctx, t.ID, t.StopLoss, models.ExitStopLoss)
	case targetHit:
		m.close(ctx, t.ID, t.TakeProfit, models.ExitTakeProfit)
	}
}

// close funnels every exit through the ledger's exactly-once gate and emits
// the lifecycle event only for the call that actually flipped the state.
// The in-flight set keeps concurrent sweeps from racing on the same trade.
func (m *Monitor) close(ctx context.Context, id uuid.UUID, exitPrice float64, reason models.ExitReason) (models.Trade, bool, error) {
	m.mu.Lock()
	if _, busy := m.closing[id]; busy {
		m.mu.Unlock()
		t, err := m.ledger.Get(id)
		return t, false, err
	}
	m.closing[id] = struct{}{}
	m.mu.Unlock()

	defer func() {
		m.mu.Lock()
		delete(m.closing, id)
		m.mu.Unlock()
	}()

	t, closedNow, err := m.ledger.Close(id, exitPrice, reason)
	if err != nil {
		return models.Trade{}, false, err
	}
	if !closedNow {
		return t, false, nil
	}

	m.log.Info("trade closed",
		logger.String("trade_id", t.ID.String()),
		logger.String("symbol", t.Symbol),
		logger.String("reason", string(reason)),
		logger.Float64("exit_price", exitPrice),
		logger.Float64("pnl", t.RealizedPnL),
	)

	sideCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 3*time.Second)
	defer cancel()
	if m.publisher != nil {
		if err := m.publisher.PublishTrade(sideCtx, t.ClosedEvent()); err != nil {
			m.metrics.RecordError("trade_event_publish")
			m.log.Warn("failed to publish trade_closed event", logger.Error(err))
		}
	}
	if m.history != nil {
		if err := m.history.StoreClosedTrade(sideCtx, t); err != nil {
			m.metrics.RecordError("trade_history_store")
			m.log.Warn("failed to store closed trade", logger.Error(err))
		}
	}
	return t, true, nil
}
