package pricefeed

import (
	"sync"
	"time"

	"PaperPulse/internal/domain/models"
	"PaperPulse/internal/domain/repository"
	"PaperPulse/pkg/logger"
)

// Handle identifies a registered subscriber.
type Handle int64

// Callback receives accepted price updates.
type Callback func(models.PricePoint)

type subscriber struct {
	handle Handle
	name   string
	fn     Callback
	ch     chan models.PricePoint
	done   chan struct{}
}

// Registry fans accepted price updates out to subscribers. Each subscriber
// gets its own worker goroutine and bounded buffer so a slow consumer can
// neither block the feed nor other consumers. Delivery is strictly ordered
// per subscriber; there is no ordering guarantee across subscribers. One
// exception: a callback that exceeds its budget is abandoned, keeps running
// in the background, and may briefly overlap the next delivery to the same
// subscriber.
type Registry struct {
	mu      sync.Mutex
	subs    map[Handle]*subscriber
	next    Handle
	bufSize int
	budget  time.Duration
	closed  bool

	log     *logger.Logger
	metrics repository.Metrics
}

// RegistryOption configures a Registry.
type RegistryOption func(*Registry)

// WithBufferSize sets the per-subscriber buffer (default 64).
func WithBufferSize(n int) RegistryOption {
	return func(r *Registry) {
		if n > 0 {
			r.bufSize = n
		}
	}
}

// WithCallbackBudget sets the per-delivery time budget (default 500ms).
func WithCallbackBudget(d time.Duration) RegistryOption {
	return func(r *Registry) {
		if d > 0 {
			r.budget = d
		}
	}
}

// NewRegistry creates a subscriber registry.
func NewRegistry(log *logger.Logger, metrics repository.Metrics, opts ...RegistryOption) *Registry {
	r := &Registry{
		subs:    make(map[Handle]*subscriber),
		bufSize: 64,
		budget:  500 * time.Millisecond,
		log:     log,
		metrics: metrics,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Subscribe registers fn and starts its delivery worker.
func (r *Registry) Subscribe(name string, fn Callback) Handle {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return 0
	}
	r.next++
	s := &subscriber{
		handle: r.next,
		name:   name,
		fn:     fn,
		ch:     make(chan models.PricePoint, r.bufSize),
		done:   make(chan struct{}),
	}
	r.subs[s.handle] = s
	go r.run(s)
	return s.handle
}

// Unsubscribe removes a subscriber and stops its worker.
func (r *Registry) Unsubscribe(h Handle) {
	r.mu.Lock()
	s, ok := r.subs[h]
	if ok {
		delete(r.subs, h)
	}
	r.mu.Unlock()
	if ok {
		close(s.ch)
		<-s.done
	}
}

// Publish delivers p to every subscriber's buffer without blocking. A full
// buffer drops the update for that subscriber only.
func (r *Registry) Publish(p models.PricePoint) {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	targets := make([]*subscriber, 0, len(r.subs))
	for _, s := range r.subs {
		targets = append(targets, s)
	}
	r.mu.Unlock()

	for _, s := range targets {
		select {
		case s.ch <- p:
		default:
			r.metrics.RecordError("subscriber_buffer_full_" + s.name)
		}
	}
}

// Close stops all workers. The registry cannot be reused afterwards.
func (r *Registry) Close() {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	r.closed = true
	subs := make([]*subscriber, 0, len(r.subs))
	for _, s := range r.subs {
		subs = append(subs, s)
	}
	r.subs = make(map[Handle]*subscriber)
	r.mu.Unlock()

	for _, s := range subs {
		close(s.ch)
		<-s.done
	}
}

func (r *Registry) run(s *subscriber) {
	defer close(s.done)
	for p := range s.ch {
		r.deliver(s, p)
	}
}

// deliver invokes the callback in isolation: a panic is contained and a call
// exceeding the budget is abandoned so one bad consumer cannot stall its own
// queue indefinitely. An abandoned call is not cancelled, so the callback
// may still be running when the next delivery for this subscriber starts.
func (r *Registry) deliver(s *subscriber, p models.PricePoint) {
	finished := make(chan struct{})
	go func() {
		defer close(finished)
		defer func() {
			if rec := recover(); rec != nil {
				r.metrics.RecordError("subscriber_panic")
				r.log.Error("subscriber panicked",
					logger.String("subscriber", s.name),
					logger.Any("panic", rec),
				)
			}
		}()
		s.fn(p)
	}()

	timer := time.NewTimer(r.budget)
	defer timer.Stop()
	select {
	case <-finished:
	case <-timer.C:
		r.metrics.RecordError("subscriber_budget_exceeded")
		r.log.Warn("subscriber exceeded delivery budget, skipping update",
			logger.String("subscriber", s.name),
			logger.String("symbol", p.Symbol),
			logger.Duration("budget", r.budget),
		)
	}
}
