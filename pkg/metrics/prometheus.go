package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder implements domain.repository.Metrics using Prometheus.
type Recorder struct {
	priceUpdates   *prometheus.CounterVec
	staleDiscards  *prometheus.CounterVec
	providerErrors *prometheus.CounterVec
	lastPrice      *prometheus.GaugeVec
	openTrades     prometheus.Gauge
	closedTrades   *prometheus.CounterVec
	signals        *prometheus.CounterVec
	latency        *prometheus.HistogramVec
}

// New creates a new Prometheus metrics recorder.
func New() *Recorder {
	return &Recorder{
		priceUpdates: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "paperpulse_price_updates_total",
				Help: "Accepted price updates by source",
			},
			[]string{"source", "symbol"},
		),
		staleDiscards: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "paperpulse_price_discards_total",
				Help: "Price points discarded by the out-of-order guard",
			},
			[]string{"symbol"},
		),
		providerErrors: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "paperpulse_provider_errors_total",
				Help: "Provider and pipeline errors by kind",
			},
			[]string{"kind"},
		),
		lastPrice: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "paperpulse_last_price",
				Help: "Last accepted price for a symbol",
			},
			[]string{"symbol"},
		),
		openTrades: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "paperpulse_open_trades",
				Help: "Number of open paper trades",
			},
		),
		closedTrades: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "paperpulse_closed_trades_total",
				Help: "Closed paper trades by exit reason",
			},
			[]string{"reason"},
		),
		signals: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "paperpulse_signals_total",
				Help: "Generated signals by action",
			},
			[]string{"action", "timeframe"},
		),
		latency: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "paperpulse_operation_duration_seconds",
				Help:    "Duration of operations in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
	}
}

// RecordPriceUpdate records an accepted price update.
func (r *Recorder) RecordPriceUpdate(source, symbol string, price float64) {
	r.priceUpdates.WithLabelValues(source, symbol).Inc()
	r.lastPrice.WithLabelValues(symbol).Set(price)
}

// RecordPriceDiscard records a point rejected by the out-of-order guard.
func (r *Recorder) RecordPriceDiscard(symbol string) {
	r.staleDiscards.WithLabelValues(symbol).Inc()
}

// RecordError records an error occurrence.
func (r *Recorder) RecordError(kind string) {
	r.providerErrors.WithLabelValues(kind).Inc()
}

// SetOpenTrades records the current number of open trades.
func (r *Recorder) SetOpenTrades(n int) {
	r.openTrades.Set(float64(n))
}

// RecordTradeClosed records a trade closure by reason.
func (r *Recorder) RecordTradeClosed(reason string) {
	r.closedTrades.WithLabelValues(reason).Inc()
}

// RecordSignal records a generated signal decision.
func (r *Recorder) RecordSignal(action, timeframe string) {
	r.signals.WithLabelValues(action, timeframe).Inc()
}

// RecordLatency records operation latency in seconds.
func (r *Recorder) RecordLatency(op string, seconds float64) {
	r.latency.WithLabelValues(op).Observe(seconds)
}
