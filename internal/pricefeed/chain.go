package pricefeed

import (
	"context"
	"fmt"
	"sync"
	"time"

	"PaperPulse/internal/domain/models"
	"PaperPulse/internal/domain/repository"
	"PaperPulse/pkg/logger"
)

// ChainConfig tunes the source chain.
type ChainConfig struct {
	StalenessWindow time.Duration // stream silence before REST promotion
	PollInterval    time.Duration // REST fallback cadence
	RequestTimeout  time.Duration // per provider call
	MaxAge          time.Duration // GetPrice freshness contract
	Backoff         BackoffPolicy
}

func (c *ChainConfig) applyDefaults() {
	if c.StalenessWindow <= 0 {
		c.StalenessWindow = 10 * time.Second
	}
	if c.PollInterval <= 0 {
		c.PollInterval = 5 * time.Second
	}
	if c.RequestTimeout <= 0 {
		c.RequestTimeout = 3 * time.Second
	}
	if c.MaxAge <= 0 {
		c.MaxAge = c.StalenessWindow
	}
	if c.Backoff.Base <= 0 {
		c.Backoff = DefaultBackoff()
	}
}

// SourceChain keeps a continuously fresh price per tracked symbol despite
// any single provider's failure. A streaming subscription is preferred; an
// ordered list of REST pollers takes over per symbol while the stream is
// silent past the staleness window.
type SourceChain struct {
	stream  repository.MarketStream
	pollers []repository.PricePoller
	cache   *PriceCache
	reg     *Registry
	metrics repository.Metrics
	log     *logger.Logger
	cfg     ChainConfig

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	symbols []string

	// pollerState is touched only by the poll goroutine.
	pollerState map[models.PriceSource]*pollerBackoff
}

// pollerBackoff holds a provider's consecutive failure count and the time
// before which it is skipped.
type pollerBackoff struct {
	failures int
	retryAt  time.Time
}

// NewSourceChain builds the chain. stream may be nil (REST-only operation);
// pollers are tried in order on each fallback cycle.
func NewSourceChain(
	stream repository.MarketStream,
	pollers []repository.PricePoller,
	cache *PriceCache,
	reg *Registry,
	metrics repository.Metrics,
	log *logger.Logger,
	cfg ChainConfig,
) *SourceChain {
	cfg.applyDefaults()
	ps := make(map[models.PriceSource]*pollerBackoff, len(pollers))
	for _, p := range pollers {
		ps[p.Source()] = &pollerBackoff{}
	}
	return &SourceChain{
		stream:      stream,
		pollers:     pollers,
		cache:       cache,
		reg:         reg,
		metrics:     metrics,
		log:         log,
		cfg:         cfg,
		pollerState: ps,
	}
}

// Cache exposes the chain's price cache for read-side consumers.
func (sc *SourceChain) Cache() *PriceCache { return sc.cache }

// Start begins the streaming subscription and the polling fallback.
// Idempotent: calling Start on a running chain is a no-op.
func (sc *SourceChain) Start(ctx context.Context, symbols []string) error {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	if sc.running {
		return nil
	}
	if len(symbols) == 0 {
		return fmt.Errorf("no symbols to track")
	}

	runCtx, cancel := context.WithCancel(ctx)
	sc.cancel = cancel
	sc.symbols = append([]string(nil), symbols...)
	sc.running = true

	if sc.stream != nil {
		sc.wg.Add(1)
		go sc.runStream(runCtx)
	}
	if len(sc.pollers) > 0 {
		sc.wg.Add(1)
		go sc.runPollLoop(runCtx)
	}
	sc.log.Info("price source chain started", logger.Strings("symbols", symbols))
	return nil
}

// Stop cancels all provider goroutines and returns after they terminate.
// Safe to call twice or on a chain that never started.
func (sc *SourceChain) Stop() {
	sc.mu.Lock()
	if !sc.running {
		sc.mu.Unlock()
		return
	}
	sc.running = false
	cancel := sc.cancel
	sc.mu.Unlock()

	cancel()
	sc.wg.Wait()
	if sc.stream != nil {
		_ = sc.stream.Close()
	}
	sc.log.Info("price source chain stopped")
}

// GetPrice returns the freshest cached point under the chain's max-age
// contract.
func (sc *SourceChain) GetPrice(symbol string) (models.PricePoint, bool) {
	return sc.cache.Get(symbol, sc.cfg.MaxAge)
}

// GetPriceMaxAge is GetPrice with a caller-specified freshness bound.
func (sc *SourceChain) GetPriceMaxAge(symbol string, maxAge time.Duration) (models.PricePoint, bool) {
	if maxAge <= 0 {
		maxAge = sc.cfg.MaxAge
	}
	return sc.cache.Get(symbol, maxAge)
}

// accept runs every provider delivery through the out-of-order guard before
// fanning it out.
func (sc *SourceChain) accept(p models.PricePoint) {
	if !sc.cache.Put(p) {
		sc.metrics.RecordPriceDiscard(p.Symbol)
		return
	}
	sc.metrics.RecordPriceUpdate(string(p.Source), p.Symbol, p.Price)
	sc.reg.Publish(p)
}

func (sc *SourceChain) runStream(ctx context.Context) {
	defer sc.wg.Done()

	attempt := 0
	dial := sc.connectStream
	for {
		if ctx.Err() != nil {
			return
		}
		if err := dial(ctx); err != nil {
			sc.metrics.RecordError("stream_connect")
			sc.log.Warn("stream connect failed",
				logger.Error(err), logger.Int("attempt", attempt))
			if !sc.cfg.Backoff.Sleep(ctx, attempt) {
				return
			}
			attempt++
			continue
		}
		attempt = 0
		dial = sc.redialStream

		if !sc.consumeStream(ctx) {
			return
		}
		// read loop ended on error; redial with backoff
		if !sc.cfg.Backoff.Sleep(ctx, attempt) {
			return
		}
		attempt++
	}
}

// redialStream tears down the failed connection and resubscribes in one
// step; used for every dial after the first successful connect.
func (sc *SourceChain) redialStream(ctx context.Context) error {
	return sc.stream.Reconnect(ctx, sc.symbols)
}

func (sc *SourceChain) connectStream(ctx context.Context) error {
	if err := sc.stream.Connect(ctx); err != nil {
		return err
	}
	if err := sc.stream.Subscribe(ctx, sc.symbols); err != nil {
		_ = sc.stream.Close()
		return err
	}
	return nil
}

// consumeStream drains the stream until ctx ends (returns false) or the
// stream errors out (returns true, caller reconnects).
func (sc *SourceChain) consumeStream(ctx context.Context) bool {
	points, errs := sc.stream.Read(ctx)
	for {
		select {
		case <-ctx.Done():
			return false
		case err, ok := <-errs:
			if !ok {
				return true
			}
			if err != nil {
				sc.metrics.RecordError("stream_read")
				sc.log.Warn("stream read error", logger.Error(err))
				return true
			}
		case p, ok := <-points:
			if !ok {
				return true
			}
			sc.accept(p)
		}
	}
}

// runPollLoop is the REST fallback: each tick it polls only symbols whose
// cached point is older than the staleness window, so REST stays quiet while
// the stream is healthy.
func (sc *SourceChain) runPollLoop(ctx context.Context) {
	defer sc.wg.Done()

	ticker := time.NewTicker(sc.cfg.PollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			for _, sym := range sc.symbols {
				if _, fresh := sc.cache.Get(sym, sc.cfg.StalenessWindow); fresh {
					continue
				}
				sc.pollSymbol(ctx, sym)
			}
		}
	}
}

// pollSymbol walks the ordered poller list until one succeeds. A failing
// provider is skipped on subsequent cycles until its backoff delay elapses,
// so a dead REST endpoint is not hammered at the poll cadence. All providers
// failing marks the cycle lost for the symbol; the cached point ages out.
func (sc *SourceChain) pollSymbol(ctx context.Context, symbol string) {
	now := time.Now()
	tried := false
	for _, poller := range sc.pollers {
		st := sc.pollerState[poller.Source()]
		if now.Before(st.retryAt) {
			continue
		}
		tried = true
		callCtx, cancel := context.WithTimeout(ctx, sc.cfg.RequestTimeout)
		p, err := poller.FetchPrice(callCtx, symbol)
		cancel()
		if err != nil {
			st.failures++
			st.retryAt = now.Add(sc.cfg.Backoff.Delay(st.failures - 1))
			sc.metrics.RecordError("poll_" + string(poller.Source()))
			sc.log.Debug("poller failed",
				logger.String("symbol", symbol),
				logger.String("source", string(poller.Source())),
				logger.Error(err),
			)
			continue
		}
		st.failures = 0
		st.retryAt = time.Time{}
		sc.accept(p)
		return
	}
	if !tried {
		return
	}
	sc.metrics.RecordError("provider_unavailable")
	sc.log.Warn("all providers failed for symbol",
		logger.String("symbol", symbol),
		logger.Error(models.ErrProviderUnavailable),
	)
}
