package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"PaperPulse/internal/domain/models"
	"PaperPulse/pkg/logger"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Hub fans accepted price updates and trade lifecycle events out to
// connected dashboard clients. It subscribes to the price registry like any
// other consumer; a slow websocket never backs up into the feed because the
// broadcast channel drops when full.
type Hub struct {
	log       *logger.Logger
	clients   map[*websocket.Conn]bool
	broadcast chan []byte

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	done    chan struct{}
}

func NewHub(log *logger.Logger) *Hub {
	return &Hub{
		log:       log.With(logger.String("component", "ws_hub")),
		clients:   make(map[*websocket.Conn]bool),
		broadcast: make(chan []byte, 256),
	}
}

// Run starts the broadcast pump. Idempotent.
func (h *Hub) Run(ctx context.Context) {
	h.mu.Lock()
	if h.running {
		h.mu.Unlock()
		return
	}
	h.running = true
	ctx, h.cancel = context.WithCancel(ctx)
	h.done = make(chan struct{})
	h.mu.Unlock()

	go h.pump(ctx)
}

// Stop closes all client connections and halts the pump. Idempotent.
func (h *Hub) Stop() {
	h.mu.Lock()
	if !h.running {
		h.mu.Unlock()
		return
	}
	h.running = false
	cancel, done := h.cancel, h.done
	for c := range h.clients {
		c.Close()
		delete(h.clients, c)
	}
	h.mu.Unlock()

	cancel()
	<-done
}

func (h *Hub) pump(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			return
		case msg := <-h.broadcast:
			h.mu.Lock()
			for client := range h.clients {
				client.SetWriteDeadline(time.Now().Add(5 * time.Second))
				if err := client.WriteMessage(websocket.TextMessage, msg); err != nil {
					client.Close()
					delete(h.clients, client)
				}
			}
			h.mu.Unlock()
		}
	}
}

// OnPrice is registered as a price registry subscriber.
func (h *Hub) OnPrice(p models.PricePoint) {
	h.send(p.ToEvent())
}

// OnTrade broadcasts a trade lifecycle event.
func (h *Hub) OnTrade(ev models.TradeEvent) {
	h.send(ev)
}

func (h *Hub) send(v interface{}) {
	msg, err := json.Marshal(v)
	if err != nil {
		h.log.Warn("failed to marshal broadcast payload", logger.Error(err))
		return
	}
	select {
	case h.broadcast <- msg:
	default:
		// Broadcast backlog full; drop rather than stall the feed.
	}
}

// ClientCount reports the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// RegisterRoutes attaches the /ws endpoint.
func (h *Hub) RegisterRoutes(e *echo.Echo) {
	e.GET("/ws", h.handleWS)
}

func (h *Hub) handleWS(c echo.Context) error {
	conn, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		h.log.Warn("websocket upgrade failed", logger.Error(err))
		return nil
	}
	h.mu.Lock()
	h.clients[conn] = true
	n := len(h.clients)
	h.mu.Unlock()
	h.log.Info("websocket client connected", logger.Int("clients", n))

	// Reader loop only discards pings and detects disconnects; the hub is
	// broadcast-only.
	go func() {
		defer func() {
			h.mu.Lock()
			delete(h.clients, conn)
			h.mu.Unlock()
			conn.Close()
		}()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
	return nil
}
