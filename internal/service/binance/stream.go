package binance

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"PaperPulse/internal/domain/models"
	drepo "PaperPulse/internal/domain/repository"

	"github.com/gorilla/websocket"
)

// Stream implements a MarketStream backed by the Binance combined trade
// stream over WebSocket.
type Stream struct {
	baseURL      string
	pingInterval time.Duration

	// mu guards conn and serializes all writes on it; gorilla/websocket
	// allows at most one concurrent writer per connection.
	mu    sync.Mutex
	conn  *websocket.Conn
	subID atomic.Int64
}

// NewStream creates a Binance market stream. baseURL defaults to the public
// spot endpoint.
func NewStream(baseURL string, pingInterval time.Duration) drepo.MarketStream {
	if baseURL == "" {
		baseURL = "wss://stream.binance.com:9443/ws"
	}
	if pingInterval <= 0 {
		pingInterval = 20 * time.Second
	}
	return &Stream{baseURL: baseURL, pingInterval: pingInterval}
}

// Connect establishes the WebSocket connection.
func (s *Stream) Connect(ctx context.Context) error {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, s.baseURL, nil)
	if err != nil {
		return fmt.Errorf("binance connect: %w", err)
	}
	s.mu.Lock()
	s.conn = conn
	s.mu.Unlock()
	return nil
}

// Subscribe subscribes to the trade stream of each symbol.
func (s *Stream) Subscribe(ctx context.Context, symbols []string) error {
	params := make([]string, 0, len(symbols))
	for _, sym := range symbols {
		params = append(params, strings.ToLower(sym)+"@trade")
	}
	msg := map[string]interface{}{
		"method": "SUBSCRIBE",
		"params": params,
		"id":     s.subID.Add(1),
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn == nil {
		return fmt.Errorf("binance not connected")
	}
	if err := s.conn.WriteJSON(msg); err != nil {
		return fmt.Errorf("subscribe: %w", err)
	}
	return nil
}

func (s *Stream) ping(conn *websocket.Conn) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn != conn {
		return fmt.Errorf("binance conn replaced")
	}
	return conn.WriteMessage(websocket.PingMessage, nil)
}

type wsTrade struct {
	Event    string `json:"e"`
	Symbol   string `json:"s"`
	Price    string `json:"p"`
	Quantity string `json:"q"`
	TradeTS  int64  `json:"T"` // ms
}

// Read streams PricePoints and errors until ctx ends or the socket fails.
// Both channels are closed when the read loop exits, and the ping loop is
// tied to the same lifetime so a redial never stacks keepalive writers.
func (s *Stream) Read(ctx context.Context) (<-chan models.PricePoint, <-chan error) {
	points := make(chan models.PricePoint, 1024)
	errs := make(chan error, 1)

	s.mu.Lock()
	conn := s.conn
	s.mu.Unlock()
	if conn == nil {
		errs <- fmt.Errorf("binance conn nil")
		close(points)
		close(errs)
		return points, errs
	}

	done := make(chan struct{})

	// ping loop, scoped to this Read's connection
	go func() {
		ticker := time.NewTicker(s.pingInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-done:
				return
			case <-ticker.C:
				if err := s.ping(conn); err != nil {
					return
				}
			}
		}
	}()

	// read loop
	go func() {
		defer close(points)
		defer close(errs)
		defer close(done)
		for {
			select {
			case <-ctx.Done():
				return
			default:
				_, b, err := conn.ReadMessage()
				if err != nil {
					errs <- fmt.Errorf("binance read: %w", err)
					return
				}
				var t wsTrade
				if err := json.Unmarshal(b, &t); err != nil {
					// ignore non-trade frames (subscribe acks etc.)
					continue
				}
				if t.Event != "trade" || t.Symbol == "" {
					continue
				}
				price, err := strconv.ParseFloat(t.Price, 64)
				if err != nil || price <= 0 {
					continue
				}
				qty, _ := strconv.ParseFloat(t.Quantity, 64)
				p := models.PricePoint{
					Symbol:     t.Symbol,
					Price:      price,
					Volume:     qty,
					ObservedAt: time.UnixMilli(t.TradeTS),
					Source:     models.SourceStream,
				}
				select {
				case points <- p:
				default:
					// drop on backpressure
				}
			}
		}
	}()

	return points, errs
}

// Reconnect closes and reconnects, then resubscribes.
func (s *Stream) Reconnect(ctx context.Context, symbols []string) error {
	_ = s.Close()
	if err := s.Connect(ctx); err != nil {
		return err
	}
	return s.Subscribe(ctx, symbols)
}

// Close closes the WS connection.
func (s *Stream) Close() error {
	s.mu.Lock()
	conn := s.conn
	s.conn = nil
	s.mu.Unlock()
	if conn != nil {
		return conn.Close()
	}
	return nil
}
