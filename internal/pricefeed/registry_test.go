package pricefeed

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"PaperPulse/internal/domain/models"
	"PaperPulse/pkg/logger"
)

type stubMetrics struct {
	mu       sync.Mutex
	errors   map[string]int
	discards map[string]int
}

func newStubMetrics() *stubMetrics {
	return &stubMetrics{errors: make(map[string]int), discards: make(map[string]int)}
}

func (m *stubMetrics) RecordPriceUpdate(source, symbol string, price float64) {}
func (m *stubMetrics) SetOpenTrades(n int)                                    {}
func (m *stubMetrics) RecordTradeClosed(reason string)                        {}
func (m *stubMetrics) RecordSignal(action, timeframe string)                  {}
func (m *stubMetrics) RecordLatency(op string, seconds float64)               {}

func (m *stubMetrics) RecordError(kind string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errors[kind]++
}

func (m *stubMetrics) RecordPriceDiscard(symbol string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.discards[symbol]++
}

func (m *stubMetrics) errorCount(kind string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.errors[kind]
}

func (m *stubMetrics) discardCount(symbol string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.discards[symbol]
}

func testLogger(t *testing.T) *logger.Logger {
	t.Helper()
	l, err := logger.New(&logger.Config{Level: "error", Format: "json", Output: "stderr"})
	if err != nil {
		t.Fatalf("logger: %v", err)
	}
	return l
}

func TestRegistryFanOut(t *testing.T) {
	r := NewRegistry(testLogger(t), newStubMetrics())
	defer r.Close()

	var a, b atomic.Int64
	wg := sync.WaitGroup{}
	wg.Add(2)
	r.Subscribe("a", func(p models.PricePoint) {
		a.Add(1)
		wg.Done()
	})
	r.Subscribe("b", func(p models.PricePoint) {
		b.Add(1)
		wg.Done()
	})

	r.Publish(point("BTCUSDT", 50000, time.Now()))

	waitDone(t, &wg)
	if a.Load() != 1 || b.Load() != 1 {
		t.Fatalf("expected both subscribers to see the update, got %d/%d", a.Load(), b.Load())
	}
}

func TestRegistryUnsubscribeStopsDelivery(t *testing.T) {
	r := NewRegistry(testLogger(t), newStubMetrics())
	defer r.Close()

	var n atomic.Int64
	h := r.Subscribe("a", func(p models.PricePoint) { n.Add(1) })
	r.Unsubscribe(h)

	r.Publish(point("BTCUSDT", 50000, time.Now()))
	time.Sleep(50 * time.Millisecond)
	if n.Load() != 0 {
		t.Fatalf("expected no deliveries after unsubscribe, got %d", n.Load())
	}
}

func TestRegistryPanicIsolation(t *testing.T) {
	m := newStubMetrics()
	r := NewRegistry(testLogger(t), m)
	defer r.Close()

	var survived atomic.Int64
	wg := sync.WaitGroup{}
	wg.Add(2)
	r.Subscribe("panicky", func(p models.PricePoint) {
		defer wg.Done()
		panic("boom")
	})
	r.Subscribe("healthy", func(p models.PricePoint) {
		survived.Add(1)
		wg.Done()
	})

	r.Publish(point("BTCUSDT", 50000, time.Now()))

	waitDone(t, &wg)
	if survived.Load() != 1 {
		t.Fatalf("healthy subscriber must still receive the update")
	}
	if m.errorCount("subscriber_panic") != 1 {
		t.Fatalf("expected one recorded panic, got %d", m.errorCount("subscriber_panic"))
	}
}

func TestRegistrySlowSubscriberDoesNotBlockOthers(t *testing.T) {
	m := newStubMetrics()
	r := NewRegistry(testLogger(t), m, WithCallbackBudget(20*time.Millisecond))
	defer r.Close()

	block := make(chan struct{})
	defer close(block)
	r.Subscribe("slow", func(p models.PricePoint) { <-block })

	var fast atomic.Int64
	wg := sync.WaitGroup{}
	wg.Add(1)
	r.Subscribe("fast", func(p models.PricePoint) {
		fast.Add(1)
		wg.Done()
	})

	r.Publish(point("BTCUSDT", 50000, time.Now()))

	waitDone(t, &wg)
	if fast.Load() != 1 {
		t.Fatalf("fast subscriber must not wait on the slow one")
	}

	deadline := time.After(2 * time.Second)
	for m.errorCount("subscriber_budget_exceeded") == 0 {
		select {
		case <-deadline:
			t.Fatalf("expected budget-exceeded error to be recorded")
		case <-time.After(10 * time.Millisecond):
		}
	}
}

func TestRegistryDropsWhenBufferFull(t *testing.T) {
	m := newStubMetrics()
	r := NewRegistry(testLogger(t), m, WithBufferSize(1), WithCallbackBudget(10*time.Millisecond))
	defer r.Close()

	block := make(chan struct{})
	defer close(block)
	started := make(chan struct{}, 1)
	r.Subscribe("stuck", func(p models.PricePoint) {
		select {
		case started <- struct{}{}:
		default:
		}
		<-block
	})

	// First update occupies the worker, second fills the buffer, third drops.
	now := time.Now()
	r.Publish(point("BTCUSDT", 1, now))
	<-started
	r.Publish(point("BTCUSDT", 2, now.Add(time.Millisecond)))
	r.Publish(point("BTCUSDT", 3, now.Add(2*time.Millisecond)))

	if m.errorCount("subscriber_buffer_full_stuck") == 0 {
		t.Fatalf("expected a drop to be recorded for the full buffer")
	}
}

func TestRegistryCloseIsIdempotent(t *testing.T) {
	r := NewRegistry(testLogger(t), newStubMetrics())
	r.Subscribe("a", func(p models.PricePoint) {})
	r.Close()
	r.Close()

	if h := r.Subscribe("late", func(p models.PricePoint) {}); h != 0 {
		t.Fatalf("subscribe after close must be refused")
	}
	// Publish after close must be a no-op, not a panic.
	r.Publish(point("BTCUSDT", 50000, time.Now()))
}

func waitDone(t *testing.T, wg *sync.WaitGroup) {
	t.Helper()
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for deliveries")
	}
}
