// Package live pushes stock, weather and in-stock notifications to browser
// clients over WebSocket and applies their subscription commands.
package live

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"golang.org/x/net/websocket"

	"github.com/hazyhaar/gagstock/idgen"
	"github.com/hazyhaar/gagstock/notify"
	"github.com/hazyhaar/gagstock/relay"
	"github.com/hazyhaar/gagstock/stock/inventory"
	"github.com/hazyhaar/gagstock/weather"
)

// State supplies the greeting sent to new clients.
type State interface {
	Stock() inventory.Snapshot
	Weather() weather.Snapshot
}

// Option configures a Hub.
type Option func(*Hub)

// WithLogger sets a custom logger.
func WithLogger(l *slog.Logger) Option {
	return func(h *Hub) { h.logger = l }
}

// WithIDGenerator overrides idgen.ClientID.
func WithIDGenerator(g idgen.Generator) Option {
	return func(h *Hub) { h.newID = g }
}

// WithBuffer sets the per-client outbound queue length. Default: 16.
func WithBuffer(n int) Option {
	return func(h *Hub) { h.buffer = n }
}

// WithWriteTimeout bounds a single frame write. Default: 10s.
func WithWriteTimeout(d time.Duration) Option {
	return func(h *Hub) { h.writeTimeout = d }
}

// Hub tracks connected clients. It implements relay.Sink.
type Hub struct {
	registry     *notify.Registry
	state        State
	newID        idgen.Generator
	buffer       int
	writeTimeout time.Duration
	logger       *slog.Logger

	mu      sync.RWMutex
	clients map[string]*client
}

var _ relay.Sink = (*Hub)(nil)

type client struct {
	id   string
	conn *websocket.Conn
	send chan message
	done chan struct{}
	once sync.Once
}

// enqueue never blocks: a client that cannot keep up loses the message.
func (c *client) enqueue(m message) bool {
	select {
	case <-c.done:
		return false
	default:
	}
	select {
	case c.send <- m:
		return true
	default:
		return false
	}
}

func (c *client) close() {
	c.once.Do(func() {
		close(c.done)
		c.conn.Close()
	})
}

// New creates a Hub. state may be nil, in which case new clients get no
// greeting.
func New(registry *notify.Registry, state State, opts ...Option) *Hub {
	h := &Hub{
		registry:     registry,
		state:        state,
		newID:        idgen.ClientID,
		buffer:       16,
		writeTimeout: 10 * time.Second,
		logger:       slog.Default(),
		clients:      make(map[string]*client),
	}
	for _, o := range opts {
		o(h)
	}
	if h.logger == nil {
		h.logger = slog.Default()
	}
	return h
}

// Handler returns the WebSocket endpoint. Any origin is accepted, matching
// the API's permissive CORS.
func (h *Hub) Handler() http.Handler {
	return websocket.Server{
		Handshake: func(*websocket.Config, *http.Request) error { return nil },
		Handler:   h.serve,
	}
}

func (h *Hub) serve(ws *websocket.Conn) {
	c := &client{
		id:   h.newID(),
		conn: ws,
		send: make(chan message, h.buffer),
		done: make(chan struct{}),
	}
	h.add(c)
	defer h.remove(c)

	go h.writeLoop(c)

	if h.state != nil {
		c.enqueue(message{Event: relay.EventStock, Data: h.state.Stock()})
		c.enqueue(message{Event: relay.EventWeather, Data: h.state.Weather()})
	}

	for {
		var cmd command
		if err := websocket.JSON.Receive(ws, &cmd); err != nil {
			h.logger.Debug("live: receive ended", "client", c.id, "error", err)
			return
		}
		h.handle(c, cmd)
	}
}

func (h *Hub) writeLoop(c *client) {
	for {
		select {
		case <-c.done:
			return
		case m := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(h.writeTimeout))
			if err := websocket.JSON.Send(c.conn, m); err != nil {
				h.logger.Debug("live: send failed", "client", c.id, "error", err)
				c.close()
				return
			}
		}
	}
}

func (h *Hub) add(c *client) {
	h.mu.Lock()
	h.clients[c.id] = c
	n := len(h.clients)
	h.mu.Unlock()
	h.logger.Info("live: client connected", "client", c.id, "clients", n)
}

func (h *Hub) remove(c *client) {
	h.mu.Lock()
	delete(h.clients, c.id)
	n := len(h.clients)
	h.mu.Unlock()
	c.close()
	if h.registry != nil {
		h.registry.Delete(c.id)
	}
	h.logger.Info("live: client disconnected", "client", c.id, "clients", n)
}

// Count returns the number of connected clients.
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Clients returns the connected client IDs.
func (h *Hub) Clients() []string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	ids := make([]string, 0, len(h.clients))
	for id := range h.clients {
		ids = append(ids, id)
	}
	return ids
}

func (h *Hub) broadcast(m message) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, c := range h.clients {
		if !c.enqueue(m) {
			h.logger.Warn("live: client queue full, dropping", "client", c.id, "event", m.Event)
		}
	}
}

func (h *Hub) SendStock(_ context.Context, snap inventory.Snapshot) error {
	h.broadcast(message{Event: relay.EventStock, Data: snap})
	return nil
}

func (h *Hub) SendWeather(_ context.Context, w weather.Snapshot) error {
	h.broadcast(message{Event: relay.EventWeather, Data: w})
	return nil
}

// SendNotification delivers n to its addressee only. A client that has
// gone away is not an error.
func (h *Hub) SendNotification(_ context.Context, n notify.Notification) error {
	h.mu.RLock()
	c, ok := h.clients[n.ClientID]
	h.mu.RUnlock()
	if !ok {
		return nil
	}
	c.enqueue(message{Event: relay.EventNotification, Data: n})
	return nil
}

// Close disconnects every client.
func (h *Hub) Close() error {
	h.mu.RLock()
	clients := make([]*client, 0, len(h.clients))
	for _, c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.RUnlock()
	for _, c := range clients {
		c.close()
	}
	return nil
}

// message is a server-to-client frame.
type message struct {
	Event string `json:"event"`
	Data  any    `json:"data"`
}

// command is a client-to-server frame.
type command struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}
