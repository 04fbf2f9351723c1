package pricefeed

import (
	"context"
	"sync"
	"time"

	"PaperPulse/internal/domain/models"
	"PaperPulse/internal/domain/repository"
	"PaperPulse/pkg/logger"
)

// TickRecorder buffers accepted price points and flushes them to the history
// store in batches. The feed side never blocks: a full buffer drops ticks
// and counts the drop.
type TickRecorder struct {
	store     repository.HistoryStore
	metrics   repository.Metrics
	log       *logger.Logger
	buf       chan models.PricePoint
	batchSize int
	flushTO   time.Duration

	mu      sync.Mutex
	started bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

// RecorderOption configures a TickRecorder.
type RecorderOption func(*TickRecorder)

// WithBatchSize sets the flush batch size (default 500).
func WithBatchSize(n int) RecorderOption {
	return func(r *TickRecorder) {
		if n > 0 {
			r.batchSize = n
		}
	}
}

// WithFlushTimeout sets the max time a partial batch may wait (default 2s).
func WithFlushTimeout(d time.Duration) RecorderOption {
	return func(r *TickRecorder) {
		if d > 0 {
			r.flushTO = d
		}
	}
}

// NewTickRecorder creates a recorder writing to store.
func NewTickRecorder(store repository.HistoryStore, metrics repository.Metrics, log *logger.Logger, opts ...RecorderOption) *TickRecorder {
	r := &TickRecorder{
		store:     store,
		metrics:   metrics,
		log:       log,
		buf:       make(chan models.PricePoint, 4096),
		batchSize: 500,
		flushTO:   2 * time.Second,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// OnPrice queues a tick for persistence; registered with the registry.
func (r *TickRecorder) OnPrice(p models.PricePoint) {
	select {
	case r.buf <- p:
	default:
		r.metrics.RecordError("recorder_buffer_full")
	}
}

// Start launches the background flusher. Idempotent.
func (r *TickRecorder) Start(ctx context.Context) {
	r.mu.Lock()
	if r.started {
		r.mu.Unlock()
		return
	}
	r.started = true
	r.stopCh = make(chan struct{})
	r.doneCh = make(chan struct{})
	r.mu.Unlock()

	go r.flushLoop(ctx)
}

// Stop drains what it can and stops the flusher.
func (r *TickRecorder) Stop() {
	r.mu.Lock()
	if !r.started {
		r.mu.Unlock()
		return
	}
	r.started = false
	close(r.stopCh)
	done := r.doneCh
	r.mu.Unlock()
	<-done
}

func (r *TickRecorder) flushLoop(ctx context.Context) {
	defer close(r.doneCh)

	batch := make([]models.PricePoint, 0, r.batchSize)
	timer := time.NewTimer(r.flushTO)
	defer timer.Stop()

	flush := func() {
		if len(batch) == 0 {
			return
		}
		start := time.Now()
		if err := r.store.StoreTickBatch(ctx, batch); err != nil {
			r.metrics.RecordError("recorder_flush")
			r.log.Warn("tick batch flush failed",
				logger.Int("batch", len(batch)), logger.Error(err))
		} else {
			r.metrics.RecordLatency("tick_flush", time.Since(start).Seconds())
		}
		batch = batch[:0]
	}

	for {
		select {
		case <-ctx.Done():
			flush()
			return
		case <-r.stopCh:
			flush()
			return
		case p := <-r.buf:
			batch = append(batch, p)
			if len(batch) >= r.batchSize {
				flush()
				if !timer.Stop() {
					select {
					case <-timer.C:
					default:
					}
				}
				timer.Reset(r.flushTO)
			}
		case <-timer.C:
			flush()
			timer.Reset(r.flushTO)
		}
	}
}
