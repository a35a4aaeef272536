package server

import (
	"encoding/json"
	"net/http"
	"slices"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/dokzlo13/huedash/internal/eventbus"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingInterval   = pongWait * 9 / 10
	maxMessageSize = 4096
	sendBufferSize = 64
)

// Message is a bus event as sent to WebSocket clients.
type Message struct {
	Type      eventbus.EventType `json:"type"`
	Seq       uint64             `json:"seq,omitempty"`
	Timestamp time.Time          `json:"timestamp"`
	Data      map[string]any     `json:"data"`
}

// ClientObserver is notified when clients come and go.
type ClientObserver interface {
	ClientConnected()
	ClientDisconnected()
}

// HubOption configures a Hub.
type HubOption func(*Hub)

// WithAllowedOrigins restricts the Origin header of upgrades. An empty list
// allows any origin.
func WithAllowedOrigins(origins []string) HubOption {
	return func(h *Hub) { h.origins = origins }
}

// WithSnapshot sets the events sent to a client right after it connects.
func WithSnapshot(fn func() []eventbus.Event) HubOption {
	return func(h *Hub) { h.snapshot = fn }
}

// WithClientObserver sets the connection observer.
func WithClientObserver(o ClientObserver) HubOption {
	return func(h *Hub) { h.observer = o }
}

// Hub fans bus events out to WebSocket clients.
type Hub struct {
	origins  []string
	snapshot func() []eventbus.Event
	observer ClientObserver
	upgrader websocket.Upgrader

	// sendMu serializes sends so clients see snapshots in Seq order.
	sendMu sync.Mutex
	latest map[eventbus.EventType]eventbus.Event

	mu      sync.RWMutex
	clients map[*wsClient]struct{}
	closed  bool
}

type wsClient struct {
	hub  *Hub
	conn *websocket.Conn
	send chan []byte
}

// NewHub creates a hub.
func NewHub(opts ...HubOption) *Hub {
	h := &Hub{
		snapshot: func() []eventbus.Event { return nil },
		observer: nopObserver{},
		latest:   make(map[eventbus.EventType]eventbus.Event),
		clients:  make(map[*wsClient]struct{}),
	}
	for _, opt := range opts {
		opt(h)
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     h.checkOrigin,
	}
	return h
}

// Subscribe forwards every event type of bus to the hub.
func (h *Hub) Subscribe(bus *eventbus.Bus) {
	for _, t := range eventbus.AllTypes {
		bus.Subscribe(t, h.Broadcast)
	}
}

func (h *Hub) checkOrigin(r *http.Request) bool {
	if len(h.origins) == 0 {
		return true
	}
	origin := r.Header.Get("Origin")
	return origin == "" || slices.Contains(h.origins, origin)
}

// Broadcast sends event to every client. Slow clients drop messages
// instead of blocking the bus. Bus workers may deliver snapshots out of
// order; a snapshot older than the last one sent for its type is dropped.
func (h *Hub) Broadcast(event eventbus.Event) {
	h.sendMu.Lock()
	defer h.sendMu.Unlock()

	if event.Seq != 0 {
		if last, ok := h.latest[event.Type]; ok && event.Seq <= last.Seq {
			log.Debug().
				Str("event_type", string(event.Type)).
				Uint64("seq", event.Seq).
				Uint64("last_seq", last.Seq).
				Msg("Dropping stale snapshot")
			return
		}
		h.latest[event.Type] = event
	}

	data, err := encode(event)
	if err != nil {
		log.Error().Err(err).Str("event_type", string(event.Type)).Msg("Failed to encode WebSocket message")
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.clients {
		c.trySend(data)
	}
}

func encode(event eventbus.Event) ([]byte, error) {
	return json.Marshal(Message{Type: event.Type, Seq: event.Seq, Timestamp: time.Now().UTC(), Data: event.Data})
}

// initialEvents returns the snapshot for a new client, preferring the
// latest broadcast of each type. Caller holds sendMu.
func (h *Hub) initialEvents() []eventbus.Event {
	events := h.snapshot()
	for i, event := range events {
		if latest, ok := h.latest[event.Type]; ok {
			events[i] = latest
		}
	}
	return events
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// ServeHTTP upgrades the request and registers the client.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn().Err(err).Msg("WebSocket upgrade failed")
		return
	}

	c := &wsClient{hub: h, conn: conn, send: make(chan []byte, sendBufferSize)}

	// No broadcast may slip between the snapshot and registration.
	h.sendMu.Lock()
	for _, event := range h.initialEvents() {
		if data, err := encode(event); err == nil {
			c.trySend(data)
		}
	}
	registered := h.register(c)
	h.sendMu.Unlock()

	if !registered {
		conn.Close()
		return
	}

	go c.writePump()
	go c.readPump()
}

func (h *Hub) register(c *wsClient) bool {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return false
	}
	h.clients[c] = struct{}{}
	n := len(h.clients)
	h.mu.Unlock()

	h.observer.ClientConnected()
	log.Debug().Int("clients", n).Msg("WebSocket client connected")
	return true
}

// unregister removes c. Only the caller that removes it closes the send
// channel.
func (h *Hub) unregister(c *wsClient) {
	h.mu.Lock()
	_, existed := h.clients[c]
	delete(h.clients, c)
	n := len(h.clients)
	h.mu.Unlock()

	if existed {
		close(c.send)
		h.observer.ClientDisconnected()
		log.Debug().Int("clients", n).Msg("WebSocket client disconnected")
	}
}

// Close disconnects every client and rejects new ones.
func (h *Hub) Close() {
	h.mu.Lock()
	h.closed = true
	clients := make([]*wsClient, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.Unlock()

	for _, c := range clients {
		h.unregister(c)
	}
}

func (c *wsClient) trySend(data []byte) {
	select {
	case c.send <- data:
	default:
		log.Debug().Msg("WebSocket client too slow, dropping message")
	}
}

// readPump discards client input and handles pongs and close frames.
func (c *wsClient) readPump() {
	defer func() {
		c.hub.unregister(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Debug().Err(err).Msg("WebSocket read error")
			}
			return
		}
	}
}

func (c *wsClient) writePump() {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// Hub closed the channel
				_ = c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, ""))
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
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

type nopObserver struct{}

func (nopObserver) ClientConnected()    {}
func (nopObserver) ClientDisconnected() {}
