package di

import (
	"context"
	"fmt"
	"time"

	"PaperPulse/internal/confidence"
	domrepo "PaperPulse/internal/domain/repository"
	"PaperPulse/internal/handler/api"
	"PaperPulse/internal/handler/ws"
	"PaperPulse/internal/pricefeed"
	internalrepo "PaperPulse/internal/repository"
	"PaperPulse/internal/service/binance"
	"PaperPulse/internal/service/coingecko"
	"PaperPulse/internal/trading"
	"PaperPulse/internal/usecase"
	"PaperPulse/pkg/cache"
	pkgch "PaperPulse/pkg/clickhouse"
	"PaperPulse/pkg/config"
	xhttp "PaperPulse/pkg/http"
	pkgkafka "PaperPulse/pkg/kafka"
	applogger "PaperPulse/pkg/logger"
	"PaperPulse/pkg/metrics"
	"PaperPulse/pkg/server"
)

// ProvideLogger creates the application logger from config.
func ProvideLogger(cfg *config.Config) (*applogger.Logger, error) {
	l, err := applogger.New(&applogger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: cfg.Log.Output,
	})
	if err != nil {
		return nil, fmt.Errorf("logger: %w", err)
	}
	return l, nil
}

// ProvideMetrics creates the Prometheus metrics recorder.
func ProvideMetrics() domrepo.Metrics {
	return metrics.New()
}

// ProvideCache picks the MarketContext cache backend: Redis when enabled,
// in-process memory otherwise.
func ProvideCache(cfg *config.Config) (cache.Service, error) {
	if !cfg.Redis.Enabled {
		return cache.NewMemoryCache(), nil
	}
	rc, err := cache.NewRedisCache(
		cache.WithRedisHost(cfg.Redis.Host),
		cache.WithRedisPort(cfg.Redis.Port),
		cache.WithRedisPassword(cfg.Redis.Password),
		cache.WithRedisDB(cfg.Redis.DB),
	)
	if err != nil {
		return nil, fmt.Errorf("redis cache: %w", err)
	}
	// Layer a small in-process cache in front of Redis; context snapshots
	// are read far more often than they are recomputed.
	return cache.NewLayeredCache(rc), nil
}

// ProvideHistoryStore creates the ClickHouse history store, or nil when
// persistence is disabled.
func ProvideHistoryStore(cfg *config.Config, l *applogger.Logger) (domrepo.HistoryStore, error) {
	if !cfg.ClickHouse.Enabled {
		return nil, nil
	}
	client, err := pkgch.NewClient(
		pkgch.WithHost(cfg.ClickHouse.Host),
		pkgch.WithPort(cfg.ClickHouse.Port),
		pkgch.WithDatabase(cfg.ClickHouse.Database),
		pkgch.WithCredentials(cfg.ClickHouse.User, cfg.ClickHouse.Password),
		pkgch.WithMaxConnections(10, 5),
		pkgch.WithHTTP(cfg.ClickHouse.UseHTTP),
		pkgch.WithAsyncInsert(cfg.ClickHouse.AsyncInsert, cfg.ClickHouse.WaitForAsync),
		pkgch.WithTimeouts(cfg.ClickHouse.DialTimeout, cfg.ClickHouse.ReadTimeout, cfg.ClickHouse.WriteTimeout),
		pkgch.WithMaxExecutionTime(cfg.ClickHouse.MaxExecutionTime),
	)
	if err != nil {
		return nil, fmt.Errorf("clickhouse client: %w", err)
	}

	store := internalrepo.NewCHHistoryStore(client)
	store.SetLogger(l)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := store.Init(ctx); err != nil {
		_ = store.Close()
		return nil, err
	}
	return store, nil
}

// ProvidePublisher creates the event publisher: Kafka (or a no-op when
// disabled) behind the websocket tee, so trade events reach dashboard
// clients on the same path as external consumers.
func ProvidePublisher(cfg *config.Config, hub *ws.Hub) (domrepo.EventPublisher, error) {
	if !cfg.Kafka.Enabled {
		return ws.NewEventTee(hub, internalrepo.NopPublisher{}), nil
	}
	producer, err := pkgkafka.NewProducer(
		pkgkafka.WithBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithCompression(cfg.Kafka.Compression),
		pkgkafka.WithRequiredAcks(cfg.Kafka.RequiredAcks),
		pkgkafka.WithBatchSize(cfg.Kafka.Producer.BatchSize),
		pkgkafka.WithBatchBytes(cfg.Kafka.Producer.BatchBytes),
		pkgkafka.WithBatchTimeout(cfg.Kafka.Producer.Linger),
		pkgkafka.WithTimeouts(cfg.Kafka.Producer.WriteTimeout, cfg.Kafka.Producer.ReadTimeout),
		pkgkafka.WithMaxAttempts(cfg.Kafka.Producer.MaxAttempts),
		pkgkafka.WithAsync(cfg.Kafka.Producer.Async),
		pkgkafka.WithHashByKey(true),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka producer: %w", err)
	}
	return ws.NewEventTee(hub, internalrepo.NewKafkaPublisher(producer, cfg.Kafka.Topic)), nil
}

// ProvideMarketStream creates the Binance websocket stream.
func ProvideMarketStream(cfg *config.Config) domrepo.MarketStream {
	return binance.NewStream(cfg.Feed.WebSocketURL, cfg.Feed.PingInterval)
}

// ProvideBinanceRest creates the Binance REST client, used both as the
// primary polling fallback and as the candle source.
func ProvideBinanceRest(cfg *config.Config) *binance.RestClient {
	return binance.NewRestClient(cfg.Feed.RestURL, cfg.Feed.RequestTimeout)
}

// ProvideCandleSource exposes the REST client as the indicator candle feed.
func ProvideCandleSource(rc *binance.RestClient) domrepo.CandleSource {
	return rc
}

// ProvidePollers assembles the ordered REST fallback list: Binance primary,
// CoinGecko backup.
func ProvidePollers(rc *binance.RestClient, cfg *config.Config) []domrepo.PricePoller {
	return []domrepo.PricePoller{
		rc,
		coingecko.New(cfg.Feed.BackupRestURL, cfg.Feed.RequestTimeout),
	}
}

// ProvidePriceCache creates the shared price cache.
func ProvidePriceCache() *pricefeed.PriceCache {
	return pricefeed.NewPriceCache()
}

// ProvideRegistry creates the price fan-out registry.
func ProvideRegistry(l *applogger.Logger, m domrepo.Metrics, cfg *config.Config) *pricefeed.Registry {
	return pricefeed.NewRegistry(l, m,
		pricefeed.WithBufferSize(cfg.Feed.SubscriberBuffer),
		pricefeed.WithCallbackBudget(cfg.Feed.CallbackBudget),
	)
}

// ProvideSourceChain creates the multi-source price chain.
func ProvideSourceChain(
	stream domrepo.MarketStream,
	pollers []domrepo.PricePoller,
	pc *pricefeed.PriceCache,
	reg *pricefeed.Registry,
	m domrepo.Metrics,
	l *applogger.Logger,
	cfg *config.Config,
) *pricefeed.SourceChain {
	return pricefeed.NewSourceChain(stream, pollers, pc, reg, m, l, pricefeed.ChainConfig{
		StalenessWindow: cfg.Feed.StalenessWindow,
		PollInterval:    cfg.Feed.PollInterval,
		RequestTimeout:  cfg.Feed.RequestTimeout,
		Backoff: pricefeed.BackoffPolicy{
			Base: cfg.Feed.BackoffBase,
			Cap:  cfg.Feed.BackoffCap,
		},
	})
}

// ProvideTickRecorder creates the tick persistence pipeline, or nil when no
// history store is configured.
func ProvideTickRecorder(store domrepo.HistoryStore, m domrepo.Metrics, l *applogger.Logger, cfg *config.Config) *pricefeed.TickRecorder {
	if store == nil {
		return nil
	}
	return pricefeed.NewTickRecorder(store, m, l,
		pricefeed.WithBatchSize(cfg.ClickHouse.BatchSize),
		pricefeed.WithFlushTimeout(cfg.ClickHouse.BatchTimeout),
	)
}

// ProvideLedger creates the trade ledger.
func ProvideLedger(cfg *config.Config, m domrepo.Metrics) *trading.Ledger {
	return trading.NewLedger(cfg.Account.StartingCash, cfg.Account.FeeRate, m)
}

// ProvideMonitor creates the trade monitor on top of the chain's price view.
func ProvideMonitor(
	ledger *trading.Ledger,
	chain *pricefeed.SourceChain,
	publisher domrepo.EventPublisher,
	history domrepo.HistoryStore,
	m domrepo.Metrics,
	l *applogger.Logger,
	cfg *config.Config,
) *trading.Monitor {
	return trading.NewMonitor(ledger, chain, publisher, history, m, l, cfg.Monitor.Interval)
}

// ProvideContextBuilder creates the cached MarketContext builder.
func ProvideContextBuilder(c cache.Service, l *applogger.Logger, cfg *config.Config) *confidence.ContextBuilder {
	return confidence.NewContextBuilder(c, l, cfg.Confidence.ContextTTL, cfg.Confidence.ContextTTLLong)
}

// ProvideEngine creates the confidence engine with the configured bias table.
func ProvideEngine(cfg *config.Config) *confidence.Engine {
	return confidence.NewEngine(confidence.DefaultWeights(), cfg.Confidence.BiasCorrection)
}

// ProvidePolicy creates the decision policy.
func ProvidePolicy(cfg *config.Config) *confidence.Policy {
	return confidence.NewPolicy(cfg.Confidence.BaseThreshold)
}

// ProvideSignalService wires the signal generation pipeline.
func ProvideSignalService(
	candles domrepo.CandleSource,
	builder *confidence.ContextBuilder,
	engine *confidence.Engine,
	policy *confidence.Policy,
	m domrepo.Metrics,
	l *applogger.Logger,
	cfg *config.Config,
) *usecase.SignalService {
	return usecase.NewSignalService(candles, builder, engine, policy, m, l, cfg.Confidence.CandleHistory)
}

// ProvideTradeService wires the trade control operations.
func ProvideTradeService(
	ledger *trading.Ledger,
	monitor *trading.Monitor,
	chain *pricefeed.SourceChain,
	publisher domrepo.EventPublisher,
	l *applogger.Logger,
) *usecase.TradeService {
	return usecase.NewTradeService(ledger, monitor, chain, publisher, l)
}

// ProvideHub creates the websocket broadcast hub.
func ProvideHub(l *applogger.Logger) *ws.Hub {
	return ws.NewHub(l)
}

// ProvideHTTPHandler builds the API handler.
func ProvideHTTPHandler(
	l *applogger.Logger,
	signals *usecase.SignalService,
	trades *usecase.TradeService,
	chain *pricefeed.SourceChain,
	history domrepo.HistoryStore,
) xhttp.Handler {
	return api.NewTradingEchoHandler(l, signals, trades, chain, history)
}

// ProvideApp assembles the application.
func ProvideApp(
	cfg *config.Config,
	l *applogger.Logger,
	chain *pricefeed.SourceChain,
	reg *pricefeed.Registry,
	monitor *trading.Monitor,
	recorder *pricefeed.TickRecorder,
	hub *ws.Hub,
	handler xhttp.Handler,
	publisher domrepo.EventPublisher,
	history domrepo.HistoryStore,
) *server.App {
	return server.New(cfg, l, chain, reg, monitor, recorder, hub, handler, publisher, history)
}
