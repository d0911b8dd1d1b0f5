// Package ws pushes table status changes to the staff screens of a cafe.
package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"cafemanager/access"
	"cafemanager/apperr"
	"cafemanager/logger"
	"cafemanager/model"
)

const (
	EventTableCreated = "table.created"
	EventTableUpdated = "table.updated"
	EventTableDeleted = "table.deleted"

	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10
	sendBuffer = 16
)

type Event struct {
	Type  string      `json:"type"`
	Table model.Table `json:"table"`
}

type client struct {
	conn   *websocket.Conn
	cafeID string
	send   chan []byte
}

type message struct {
	cafeID string
	data   []byte
}

// TableHub fans table events out to every subscriber of the same cafe.
type TableHub struct {
	clients    map[string]map[*client]bool // cafeID -> subscribers
	broadcast  chan message
	register   chan *client
	unregister chan *client
	done       chan struct{}
	mu         sync.RWMutex
	upgrader   websocket.Upgrader
}

func NewTableHub(allowedOrigins []string) *TableHub {
	origins := make(map[string]bool, len(allowedOrigins))
	for _, o := range allowedOrigins {
		origins[o] = true
	}
	return &TableHub{
		clients:    make(map[string]map[*client]bool),
		broadcast:  make(chan message, 64),
		register:   make(chan *client),
		unregister: make(chan *client),
		done:       make(chan struct{}),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				return origin == "" || origins[origin]
			},
		},
	}
}

// Run serves register, unregister and broadcast until ctx is done.
func (h *TableHub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case c := <-h.register:
			h.mu.Lock()
			if h.clients[c.cafeID] == nil {
				h.clients[c.cafeID] = make(map[*client]bool)
			}
			h.clients[c.cafeID][c] = true
			h.mu.Unlock()

		case c := <-h.unregister:
			h.mu.Lock()
			h.remove(c)
			h.mu.Unlock()

		case msg := <-h.broadcast:
			h.mu.Lock()
			for c := range h.clients[msg.cafeID] {
				select {
				case c.send <- msg.data:
				default:
					// too slow; drop the subscriber
					h.remove(c)
				}
			}
			h.mu.Unlock()

		case <-ctx.Done():
			h.mu.Lock()
			for _, set := range h.clients {
				for c := range set {
					h.remove(c)
				}
			}
			h.mu.Unlock()
			return
		}
	}
}

// remove must be called with mu held.
func (h *TableHub) remove(c *client) {
	set := h.clients[c.cafeID]
	if _, ok := set[c]; !ok {
		return
	}
	delete(set, c)
	if len(set) == 0 {
		delete(h.clients, c.cafeID)
	}
	close(c.send)
}

// Subscribers reports how many connections are listening on cafeID.
func (h *TableHub) Subscribers(cafeID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[cafeID])
}

// Publish queues ev for the cafe's subscribers without blocking the caller.
func (h *TableHub) Publish(cafeID string, eventType string, table model.Table) {
	if h == nil {
		return
	}
	data, err := json.Marshal(Event{Type: eventType, Table: table})
	if err != nil {
		log.Error().Err(err).Msg("ws: marshal table event")
		return
	}
	select {
	case h.broadcast <- message{cafeID: cafeID, data: data}:
	default:
		log.Warn().Str(logger.CafeID, cafeID).Str("event", eventType).Msg("ws: broadcast queue full, event dropped")
	}
}

// HandleWebSocket upgrades a request already admitted by access.Guard.
func (h *TableHub) HandleWebSocket(c *gin.Context) {
	cafe := access.CurrentCafe(c)
	if cafe == nil {
		apperr.Respond(c, apperr.NotFound("Cafe not found"))
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logger.Ctx(c.Request.Context()).Warn().Err(err).Msg("ws upgrade failed")
		return
	}

	cl := &client{conn: conn, cafeID: cafe.ID, send: make(chan []byte, sendBuffer)}
	select {
	case h.register <- cl:
	case <-h.done:
		conn.Close()
		return
	}

	go h.writePump(cl)
	go h.readPump(cl)
}

// readPump only watches for the peer going away; clients never send events.
func (h *TableHub) readPump(c *client) {
	defer func() {
		select {
		case h.unregister <- c:
		case <-h.done:
		}
		c.conn.Close()
	}()

	c.conn.SetReadLimit(512)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *TableHub) writePump(c *client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case data, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
