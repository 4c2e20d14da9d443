package events

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 30 * time.Second
	sendBuffer = 64
)

type client struct {
	id   string
	conn *websocket.Conn
	send chan []byte
}

// Hub fans space status changes out to every connected websocket client.
type Hub struct {
	mu        sync.RWMutex
	clients   map[string]*client
	upgrader  websocket.Upgrader
	origins   map[string]struct{}
	anyOrigin bool
}

// NewHub accepts browser connections from the listed origins; "*" allows any.
// Requests without an Origin header are not browsers and are accepted.
func NewHub(allowedOrigins ...string) *Hub {
	h := &Hub{clients: make(map[string]*client), origins: make(map[string]struct{})}
	for _, o := range allowedOrigins {
		o = strings.TrimSpace(o)
		if o == "*" {
			h.anyOrigin = true
			continue
		}
		if o != "" {
			h.origins[strings.ToLower(o)] = struct{}{}
		}
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     h.checkOrigin,
	}
	return h
}

func (h *Hub) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" || h.anyOrigin {
		return true
	}
	_, ok := h.origins[strings.ToLower(origin)]
	return ok
}

func (h *Hub) add(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[c.id] = c
}

func (h *Hub) remove(id string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if c, ok := h.clients[id]; ok {
		close(c.send)
		delete(h.clients, id)
	}
}

// Count returns the number of connected clients.
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Broadcast queues message for every client. Clients whose buffer is full are dropped.
func (h *Hub) Broadcast(message []byte) {
	var slow []string
	h.mu.RLock()
	for id, c := range h.clients {
		select {
		case c.send <- message:
		default:
			slow = append(slow, id)
		}
	}
	h.mu.RUnlock()

	for _, id := range slow {
		h.remove(id)
	}
}

func (h *Hub) SpaceChanged(_ context.Context, change SpaceChange) error {
	msg, err := json.Marshal(change)
	if err != nil {
		return err
	}
	h.Broadcast(msg)
	return nil
}

// BookingChanged forwards the space side of a booking change.
func (h *Hub) BookingChanged(ctx context.Context, change BookingChange) error {
	if change.SpaceStatus == "" {
		return nil
	}
	sc := SpaceChange{
		Type:       change.Type,
		SpaceID:    change.SpaceID,
		Status:     change.SpaceStatus,
		OccurredAt: change.OccurredAt,
	}
	if change.Booking != nil {
		sc.SpaceNumber = change.Booking.SpaceNumber
	}
	return h.SpaceChanged(ctx, sc)
}

// ServeWS upgrades the request and subscribes the connection to the feed.
// Incoming messages are discarded.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn().Err(err).Msg("ws_upgrade_failed")
		return
	}
	c := &client{id: uuid.NewString(), conn: conn, send: make(chan []byte, sendBuffer)}
	h.add(c)
	log.Debug().Str("client_id", c.id).Msg("ws_client_connected")

	go h.writePump(c)
	h.readPump(c)
}

func (h *Hub) readPump(c *client) {
	defer func() {
		h.remove(c.id)
		_ = c.conn.Close()
		log.Debug().Str("client_id", c.id).Msg("ws_client_disconnected")
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

func (h *Hub) writePump(c *client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			if err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}
		}
	}
}
