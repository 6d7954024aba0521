package events

import (
	"log/slog"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
)

const (
	wsWriteWait  = 10 * time.Second
	wsPongWait   = 60 * time.Second
	wsPingPeriod = (wsPongWait * 9) / 10
	wsReadLimit  = 512
)

// Hub streams bus events to dashboard clients over WebSocket. Each
// connection is an independent bus subscriber.
type Hub struct {
	bus      *Bus
	upgrader websocket.Upgrader
	clients  atomic.Int64
	logger   *slog.Logger
}

// NewHub creates a hub that forwards events from bus. allowedOrigin, when
// non-empty, is the only Origin accepted on upgrade.
func NewHub(bus *Bus, allowedOrigin string, logger *slog.Logger) *Hub {
	return &Hub{
		bus: bus,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				if allowedOrigin == "" {
					return true
				}
				return r.Header.Get("Origin") == allowedOrigin
			},
		},
		logger: logger.With("component", "ws-hub"),
	}
}

// Clients returns the number of connected clients.
func (h *Hub) Clients() int {
	return int(h.clients.Load())
}

// ServeHTTP upgrades the request and streams events until the client goes
// away.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written an error response.
		h.logger.Warn("websocket upgrade failed", "error", err)
		return
	}

	events, cancel := h.bus.Subscribe(DefaultBufferSize)
	h.clients.Add(1)
	h.logger.Info("client connected", "clients", h.Clients())

	done := make(chan struct{})
	go h.readPump(conn, done)
	h.writePump(conn, events, done)

	cancel()
	h.clients.Add(-1)
	h.logger.Info("client disconnected", "clients", h.Clients())
}

// readPump drains client frames so pongs and close frames are processed.
func (h *Hub) readPump(conn *websocket.Conn, done chan<- struct{}) {
	defer close(done)

	conn.SetReadLimit(wsReadLimit)
	_ = conn.SetReadDeadline(time.Now().Add(wsPongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(wsPongWait))
	})

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				h.logger.Warn("websocket read error", "error", err)
			}
			return
		}
	}
}

func (h *Hub) writePump(conn *websocket.Conn, events <-chan Event, done <-chan struct{}) {
	ticker := time.NewTicker(wsPingPeriod)
	defer func() {
		ticker.Stop()
		conn.Close()
	}()

	for {
		select {
		case <-done:
			return
		case event, ok := <-events:
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if !ok {
				_ = conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := conn.WriteJSON(event); err != nil {
				h.logger.Debug("websocket write failed", "error", err)
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
