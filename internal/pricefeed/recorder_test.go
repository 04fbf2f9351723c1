package pricefeed

import (
	"context"
	"sync"
	"testing"
	"time"

	"PaperPulse/internal/domain/models"
)

type fakeHistoryStore struct {
	mu      sync.Mutex
	batches [][]models.PricePoint
}

func (f *fakeHistoryStore) Init(ctx context.Context) error { return nil }

func (f *fakeHistoryStore) StoreTick(ctx context.Context, p models.PricePoint) error {
	return f.StoreTickBatch(ctx, []models.PricePoint{p})
}

func (f *fakeHistoryStore) StoreTickBatch(ctx context.Context, points []models.PricePoint) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := make([]models.PricePoint, len(points))
	copy(cp, points)
	f.batches = append(f.batches, cp)
	return nil
}

func (f *fakeHistoryStore) StoreClosedTrade(ctx context.Context, t models.Trade) error { return nil }

func (f *fakeHistoryStore) QueryTicks(ctx context.Context, symbol string, from, to time.Time, limit int) ([]models.PricePoint, error) {
	return nil, nil
}

func (f *fakeHistoryStore) Health(ctx context.Context) error { return nil }
func (f *fakeHistoryStore) Close() error                     { return nil }

func (f *fakeHistoryStore) total() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, b := range f.batches {
		n += len(b)
	}
	return n
}

func (f *fakeHistoryStore) batchCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.batches)
}

func TestRecorderFlushesFullBatch(t *testing.T) {
	store := &fakeHistoryStore{}
	r := NewTickRecorder(store, newStubMetrics(), testLogger(t),
		WithBatchSize(3), WithFlushTimeout(time.Hour))

	r.Start(context.Background())
	defer r.Stop()

	now := time.Now()
	for i := 0; i < 3; i++ {
		r.OnPrice(point("BTCUSDT", float64(50000+i), now.Add(time.Duration(i)*time.Millisecond)))
	}

	deadline := time.After(2 * time.Second)
	for store.batchCount() == 0 {
		select {
		case <-deadline:
			t.Fatalf("batch never flushed")
		case <-time.After(5 * time.Millisecond):
		}
	}
	if got := store.total(); got != 3 {
		t.Fatalf("expected 3 ticks stored, got %d", got)
	}
}

func TestRecorderFlushesPartialBatchOnTimeout(t *testing.T) {
	store := &fakeHistoryStore{}
	r := NewTickRecorder(store, newStubMetrics(), testLogger(t),
		WithBatchSize(100), WithFlushTimeout(20*time.Millisecond))

	r.Start(context.Background())
	defer r.Stop()

	r.OnPrice(point("BTCUSDT", 50000, time.Now()))

	deadline := time.After(2 * time.Second)
	for store.total() == 0 {
		select {
		case <-deadline:
			t.Fatalf("partial batch never flushed on timeout")
		case <-time.After(5 * time.Millisecond):
		}
	}
}

func TestRecorderStopDrainsPendingBatch(t *testing.T) {
	store := &fakeHistoryStore{}
	r := NewTickRecorder(store, newStubMetrics(), testLogger(t),
		WithBatchSize(100), WithFlushTimeout(time.Hour))

	r.Start(context.Background())
	r.OnPrice(point("BTCUSDT", 50000, time.Now()))

	// Give the flusher a moment to move the tick into its batch.
	time.Sleep(20 * time.Millisecond)
	r.Stop()

	if store.total() != 1 {
		t.Fatalf("expected the pending tick to be flushed on stop, got %d", store.total())
	}
}

func TestRecorderStartStopIdempotent(t *testing.T) {
	r := NewTickRecorder(&fakeHistoryStore{}, newStubMetrics(), testLogger(t))
	ctx := context.Background()
	r.Start(ctx)
	r.Start(ctx)
	r.Stop()
	r.Stop()
}
