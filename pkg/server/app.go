package server

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"PaperPulse/internal/domain/models"
	domrepo "PaperPulse/internal/domain/repository"
	"PaperPulse/internal/handler/ws"
	"PaperPulse/internal/pricefeed"
	"PaperPulse/internal/trading"
	"PaperPulse/pkg/config"
	xhttp "PaperPulse/pkg/http"
	applogger "PaperPulse/pkg/logger"
)

// App encapsulates the entire application lifecycle: the price feed
// pipeline, the trade monitor, the broadcast hub, and the HTTP server.
type App struct {
	cfg       *config.Config
	log       *applogger.Logger
	chain     *pricefeed.SourceChain
	registry  *pricefeed.Registry
	monitor   *trading.Monitor
	recorder  *pricefeed.TickRecorder
	hub       *ws.Hub
	handler   xhttp.Handler
	publisher domrepo.EventPublisher
	history   domrepo.HistoryStore

	httpServer *xhttp.Server
}

// New creates an App instance with all dependencies. recorder and history
// may be nil when tick persistence is disabled.
func New(
	cfg *config.Config,
	log *applogger.Logger,
	chain *pricefeed.SourceChain,
	registry *pricefeed.Registry,
	monitor *trading.Monitor,
	recorder *pricefeed.TickRecorder,
	hub *ws.Hub,
	handler xhttp.Handler,
	publisher domrepo.EventPublisher,
	history domrepo.HistoryStore,
) *App {
	return &App{
		cfg:       cfg,
		log:       log,
		chain:     chain,
		registry:  registry,
		monitor:   monitor,
		recorder:  recorder,
		hub:       hub,
		handler:   handler,
		publisher: publisher,
		history:   history,
	}
}

// Run starts every background task and blocks until interrupted.
func (a *App) Run() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Feed consumers subscribe before the chain starts so the first accepted
	// update already fans out.
	a.registry.Subscribe("trade_monitor", a.monitor.OnPrice)
	a.registry.Subscribe("ws_hub", a.hub.OnPrice)
	if a.recorder != nil {
		a.registry.Subscribe("tick_recorder", a.recorder.OnPrice)
	}
	if a.publisher != nil {
		a.registry.Subscribe("event_publisher", func(p models.PricePoint) {
			pubCtx, pubCancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer pubCancel()
			if err := a.publisher.PublishPrice(pubCtx, p.ToEvent()); err != nil {
				a.log.Warn("price event publish failed", applogger.Error(err))
			}
		})
	}

	a.hub.Run(ctx)
	if a.recorder != nil {
		a.recorder.Start(ctx)
	}
	if err := a.chain.Start(ctx, a.cfg.Feed.Symbols); err != nil {
		return err
	}
	a.monitor.Start(ctx)

	a.httpServer = xhttp.NewServer(a.handler,
		xhttp.WithPort(a.cfg.Server.Port),
		xhttp.WithTimeouts(a.cfg.Server.ReadTimeout, a.cfg.Server.WriteTimeout, a.cfg.Server.ShutdownTimeout),
		xhttp.WithRequestMetrics(a.log, time.Second),
	)
	a.hub.RegisterRoutes(a.httpServer.Echo())
	if err := a.httpServer.Start(); err != nil {
		a.log.Error("http server start error", applogger.Error(err))
		return err
	}

	a.log.Info("paperpulse started",
		applogger.Strings("symbols", a.cfg.Feed.Symbols),
		applogger.Int("port", a.cfg.Server.Port),
	)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	a.log.Info("shutdown signal received")
	return a.shutdown()
}

// shutdown stops everything in reverse dependency order: stop producing
// prices, drain consumers, then close infrastructure.
func (a *App) shutdown() error {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.Server.ShutdownTimeout)
	defer cancel()
	if a.httpServer != nil {
		if err := a.httpServer.Stop(shutdownCtx); err != nil {
			a.log.Warn("http shutdown error", applogger.Error(err))
		}
	}

	a.chain.Stop()
	a.monitor.Stop()
	a.registry.Close()
	if a.recorder != nil {
		a.recorder.Stop()
	}
	a.hub.Stop()

	if a.publisher != nil {
		if err := a.publisher.Close(); err != nil {
			a.log.Warn("publisher close error", applogger.Error(err))
		}
	}
	if a.history != nil {
		if err := a.history.Close(); err != nil {
			a.log.Warn("history store close error", applogger.Error(err))
		}
	}

	a.log.Info("shutdown complete")
	return nil
}
