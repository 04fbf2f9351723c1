//go:build wireinject
// +build wireinject

package di

import (
	"PaperPulse/pkg/config"
	"PaperPulse/pkg/server"

	"github.com/google/wire"
)

// InitializeApp wires up all dependencies and returns the application.
// Wire will generate the implementation of this function.
func InitializeApp(cfg *config.Config) (*server.App, error) {
	wire.Build(
		// Ambient
		ProvideLogger,
		ProvideMetrics,
		ProvideCache,

		// Infrastructure clients
		ProvideHistoryStore,
		ProvidePublisher,

		// Price providers
		ProvideMarketStream,
		ProvideBinanceRest,
		ProvideCandleSource,
		ProvidePollers,

		// Price feed pipeline
		ProvidePriceCache,
		ProvideRegistry,
		ProvideSourceChain,
		ProvideTickRecorder,

		// Trading
		ProvideLedger,
		ProvideMonitor,

		// Confidence
		ProvideContextBuilder,
		ProvideEngine,
		ProvidePolicy,

		// Use cases
		ProvideSignalService,
		ProvideTradeService,

		// Transport
		ProvideHub,
		ProvideHTTPHandler,

		// Application server
		ProvideApp,
	)
	return &server.App{}, nil
}
