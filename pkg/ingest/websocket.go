package ingest

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"homegraph/pkg/config"
	"homegraph/pkg/downsample"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		// Allow same-origin requests, or requests with no Origin header
		// (non-browser clients like curl and test tools).
		return origin == "" || origin == "http://"+r.Host || origin == "https://"+r.Host
	},
	ReadBufferSize:  config.WSReadBufferSize,
	WriteBufferSize: config.WSWriteBufferSize,
}

// client is one connected dashboard
type client struct {
	id   string
	conn *websocket.Conn
}

// SeriesHub manages WebSocket connections for pushing refreshed history
// series to connected dashboards.
type SeriesHub struct {
	// Registered clients
	clients map[*client]bool

	// Register requests from clients
	register chan *client

	// Unregister requests from clients
	unregister chan *client

	// Broadcast channel for series updates
	broadcast chan []byte

	mu sync.RWMutex
}

// SeriesUpdate is the message pushed to dashboards after a refresh cycle.
type SeriesUpdate struct {
	Type      string              `json:"type"`
	EntityID  string              `json:"entity_id"`
	Timestamp int64               `json:"timestamp"`
	Series    []downsample.Sample `json:"series"`
}

// NewSeriesHub creates a new WebSocket hub
func NewSeriesHub() *SeriesHub {
	return &SeriesHub{
		clients:    make(map[*client]bool),
		register:   make(chan *client, config.WSChannelBuffer),
		unregister: make(chan *client, config.WSChannelBuffer),
		broadcast:  make(chan []byte, config.WSBroadcastBuffer),
	}
}

// Run starts the hub's main loop
func (h *SeriesHub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			// Close all client connections on shutdown
			h.mu.Lock()
			for c := range h.clients {
				c.conn.Close()
			}
			h.mu.Unlock()
			return
		case c := <-h.register:
			h.mu.Lock()
			h.clients[c] = true
			count := len(h.clients)
			h.mu.Unlock()
			log.Printf("Dashboard %s connected (total: %d)", c.id, count)
		case c := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[c]; ok {
				delete(h.clients, c)
				c.conn.Close()
			}
			count := len(h.clients)
			h.mu.Unlock()
			log.Printf("Dashboard %s disconnected (total: %d)", c.id, count)
		case message := <-h.broadcast:
			h.mu.RLock()
			// Collect failed connections to unregister after releasing lock
			var failed []*client
			for c := range h.clients {
				c.conn.SetWriteDeadline(time.Now().Add(config.WSWriteDeadline))
				if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
					log.Printf("WebSocket write to %s failed: %v", c.id, err)
					failed = append(failed, c)
				}
			}
			h.mu.RUnlock()

			for _, c := range failed {
				h.unregister <- c
			}
		}
	}
}

// Broadcast sends a series update to all connected dashboards
func (h *SeriesHub) Broadcast(update SeriesUpdate) error {
	message, err := json.Marshal(update)
	if err != nil {
		return err
	}

	select {
	case h.broadcast <- message:
		return nil
	default:
		// Channel full, drop rather than block the refresh loop; the next
		// cycle re-sends the whole series anyway.
		log.Printf("Broadcast channel full, dropping series update for %s", update.EntityID)
		return nil
	}
}

// HasClients returns true if any dashboard is connected
func (h *SeriesHub) HasClients() bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients) > 0
}

// HandleWebSocket handles WebSocket upgrade requests
func (h *SeriesHub) HandleWebSocket() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Printf("WebSocket upgrade failed: %v", err)
			return
		}

		c := &client{id: uuid.NewString(), conn: conn}
		h.register <- c

		ctx, cancel := context.WithCancel(r.Context())
		defer cancel()

		// Ping sender keeps the connection alive through proxies
		go func() {
			ticker := time.NewTicker(config.WSPingInterval)
			defer ticker.Stop()

			for {
				select {
				case <-ctx.Done():
					return
				case <-ticker.C:
					conn.SetWriteDeadline(time.Now().Add(config.WSWriteDeadline))
					if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
						return
					}
				}
			}
		}()

		defer func() {
			cancel()
			h.unregister <- c
		}()

		conn.SetReadDeadline(time.Now().Add(config.WSReadDeadline))
		conn.SetPongHandler(func(string) error {
			conn.SetReadDeadline(time.Now().Add(config.WSReadDeadline))
			return nil
		})

		// Read loop handles control frames and detects connection close
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
					log.Printf("WebSocket error from %s: %v", c.id, err)
				}
				break
			}
		}
	}
}
