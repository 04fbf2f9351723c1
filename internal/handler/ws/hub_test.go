package ws

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"PaperPulse/internal/domain/models"
	domrepo "PaperPulse/internal/domain/repository"
	"PaperPulse/pkg/logger"
)

func testLogger(t *testing.T) *logger.Logger {
	t.Helper()
	l, err := logger.New(&logger.Config{Level: "error", Format: "json", Output: "stderr"})
	if err != nil {
		t.Fatalf("logger: %v", err)
	}
	return l
}

func dialHub(t *testing.T, h *Hub) (*websocket.Conn, func()) {
	t.Helper()
	e := echo.New()
	h.RegisterRoutes(e)
	srv := httptest.NewServer(e)

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	return conn, func() {
		conn.Close()
		srv.Close()
	}
}

func TestHubBroadcastsPriceUpdates(t *testing.T) {
	h := NewHub(testLogger(t))
	h.Run(context.Background())
	defer h.Stop()

	conn, cleanup := dialHub(t, h)
	defer cleanup()

	require.Eventually(t, func() bool { return h.ClientCount() == 1 },
		2*time.Second, 10*time.Millisecond)

	h.OnPrice(models.PricePoint{
		Symbol:     "BTCUSDT",
		Price:      50000,
		ObservedAt: time.Now(),
		Source:     models.SourceStream,
	})

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, msg, err := conn.ReadMessage()
	require.NoError(t, err)

	var ev models.PriceUpdateEvent
	require.NoError(t, json.Unmarshal(msg, &ev))
	assert.Equal(t, "BTCUSDT", ev.Symbol)
	assert.Equal(t, 50000.0, ev.Price)
	assert.Equal(t, "stream", ev.Source)
}

func TestHubBroadcastsTradeEvents(t *testing.T) {
	h := NewHub(testLogger(t))
	h.Run(context.Background())
	defer h.Stop()

	conn, cleanup := dialHub(t, h)
	defer cleanup()

	require.Eventually(t, func() bool { return h.ClientCount() == 1 },
		2*time.Second, 10*time.Millisecond)

	h.OnTrade(models.TradeEvent{Type: "trade_closed", Symbol: "BTCUSDT", ExitReason: "take_profit"})

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, msg, err := conn.ReadMessage()
	require.NoError(t, err)

	var ev models.TradeEvent
	require.NoError(t, json.Unmarshal(msg, &ev))
	assert.Equal(t, "trade_closed", ev.Type)
	assert.Equal(t, "take_profit", ev.ExitReason)
}

func TestHubDisconnectPrunesClient(t *testing.T) {
	h := NewHub(testLogger(t))
	h.Run(context.Background())
	defer h.Stop()

	conn, cleanup := dialHub(t, h)
	defer cleanup()

	require.Eventually(t, func() bool { return h.ClientCount() == 1 },
		2*time.Second, 10*time.Millisecond)

	conn.Close()
	require.Eventually(t, func() bool { return h.ClientCount() == 0 },
		2*time.Second, 10*time.Millisecond)
}

func TestHubRunStopIdempotent(t *testing.T) {
	h := NewHub(testLogger(t))
	ctx := context.Background()
	h.Run(ctx)
	h.Run(ctx)
	h.Stop()
	h.Stop()
}

type recordingPublisher struct {
	prices []models.PriceUpdateEvent
	trades []models.TradeEvent
	closed bool
}

func (r *recordingPublisher) PublishPrice(ctx context.Context, ev models.PriceUpdateEvent) error {
	r.prices = append(r.prices, ev)
	return nil
}

func (r *recordingPublisher) PublishTrade(ctx context.Context, ev models.TradeEvent) error {
	r.trades = append(r.trades, ev)
	return nil
}

func (r *recordingPublisher) Close() error {
	r.closed = true
	return nil
}

var _ domrepo.EventPublisher = (*recordingPublisher)(nil)

func TestEventTee(t *testing.T) {
	h := NewHub(testLogger(t))
	next := &recordingPublisher{}
	tee := NewEventTee(h, next)
	ctx := context.Background()

	require.NoError(t, tee.PublishTrade(ctx, models.TradeEvent{Type: "trade_opened"}))
	require.Len(t, next.trades, 1)
	// The trade event also lands in the hub's broadcast backlog.
	assert.Len(t, h.broadcast, 1)

	require.NoError(t, tee.PublishPrice(ctx, models.PriceUpdateEvent{Symbol: "BTCUSDT"}))
	require.Len(t, next.prices, 1)
	// Prices reach the hub via the registry, not the tee.
	assert.Len(t, h.broadcast, 1)

	require.NoError(t, tee.Close())
	assert.True(t, next.closed)
}
