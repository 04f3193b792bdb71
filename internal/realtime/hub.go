// Package realtime is the WebSocket transport: clients connect to a single
// endpoint, authenticate with a bearer token, join rooms and receive
// broadcasts. Feature modules register handlers for their own event types.
package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/sirosfoundation/mealbuddy-backend/internal/auth"
	"github.com/sirosfoundation/mealbuddy-backend/pkg/config"
	"github.com/sirosfoundation/mealbuddy-backend/pkg/middleware"
)

const (
	defaultPingInterval    = 25 * time.Second
	defaultPongWait        = 60 * time.Second
	defaultMaxMessageBytes = 64 << 10
	defaultSendBuffer      = 64
	writeWait              = 10 * time.Second
)

// TokenParser validates bearer tokens presented by clients.
type TokenParser interface {
	ParseToken(token string) (*auth.Claims, error)
}

// Handler processes an inbound frame of a module-registered type.
type Handler func(ctx context.Context, c *Client, f Frame) error

// Option customises a Hub.
type Option func(*Hub)

// WithBroker replaces the broker chosen from configuration.
func WithBroker(b Broker) Option {
	return func(h *Hub) { h.broker = b }
}

// WithConnectionGauge tracks the number of connected clients.
func WithConnectionGauge(g prometheus.Gauge) Option {
	return func(h *Hub) { h.gauge = g }
}

// Hub owns every client connection of the process.
type Hub struct {
	cfg      config.RealtimeConfig
	mode     Mode
	logger   *zap.Logger
	tokens   TokenParser
	upgrader websocket.Upgrader
	broker   Broker
	gauge    prometheus.Gauge
	exec     executor

	pingInterval time.Duration
	pongWait     time.Duration
	maxMessage   int64
	sendBuffer   int

	handlersMu sync.RWMutex
	handlers   map[string]Handler

	// Guarded by exec.
	clients map[*Client]struct{}
	rooms   map[string]map[*Client]struct{}

	closeOnce sync.Once
}

// New creates a hub. An unknown async mode, or a configured message queue
// that cannot be reached, is an error.
func New(ctx context.Context, cfg config.RealtimeConfig, cors config.CORSConfig, tokens TokenParser, logger *zap.Logger, opts ...Option) (*Hub, error) {
	mode, err := ParseMode(cfg.AsyncMode)
	if err != nil {
		return nil, err
	}
	if tokens == nil {
		return nil, fmt.Errorf("realtime requires a token parser")
	}

	allowOrigin := middleware.OriginChecker(cors)
	h := &Hub{
		cfg:    cfg,
		mode:   mode,
		logger: logger.Named("realtime"),
		tokens: tokens,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return allowOrigin(r.Header.Get("Origin"))
			},
		},
		pingInterval: seconds(cfg.PingSeconds, defaultPingInterval),
		pongWait:     seconds(cfg.PongWaitSeconds, defaultPongWait),
		maxMessage:   cfg.MaxMessageBytes,
		sendBuffer:   cfg.SendBuffer,
		handlers:     make(map[string]Handler),
		clients:      make(map[*Client]struct{}),
		rooms:        make(map[string]map[*Client]struct{}),
	}
	if h.maxMessage <= 0 {
		h.maxMessage = defaultMaxMessageBytes
	}
	if h.sendBuffer <= 0 {
		h.sendBuffer = defaultSendBuffer
	}
	if h.pingInterval >= h.pongWait {
		h.pingInterval = h.pongWait * 9 / 10
	}

	for _, opt := range opts {
		opt(h)
	}

	if h.broker == nil {
		if cfg.MessageQueue != "" {
			rb, err := NewRedisBroker(ctx, cfg.MessageQueue, cfg.Channel, h.logger)
			if err != nil {
				return nil, err
			}
			h.broker = rb
		} else {
			h.broker = &localBroker{}
		}
	}

	h.exec = newExecutor(mode)
	if err := h.broker.Start(h.deliver); err != nil {
		h.exec.stop()
		_ = h.broker.Close()
		return nil, err
	}

	h.logger.Info("Realtime hub ready",
		zap.String("mode", string(mode)),
		zap.String("path", cfg.Path),
		zap.Bool("message_queue", cfg.MessageQueue != ""),
	)
	return h, nil
}

func seconds(n int, fallback time.Duration) time.Duration {
	if n <= 0 {
		return fallback
	}
	return time.Duration(n) * time.Second
}

// Mode reports the dispatch model in use.
func (h *Hub) Mode() Mode { return h.mode }

// Path is the route the hub is served on.
func (h *Hub) Path() string { return h.cfg.Path }

// On registers fn for inbound frames of type event. Registering the same
// event twice replaces the previous handler.
func (h *Hub) On(event string, fn Handler) {
	h.handlersMu.Lock()
	defer h.handlersMu.Unlock()
	h.handlers[event] = fn
}

func (h *Hub) handler(event string) (Handler, bool) {
	h.handlersMu.RLock()
	defer h.handlersMu.RUnlock()
	fn, ok := h.handlers[event]
	return fn, ok
}

// Broadcast sends an event to every client in room. An empty room reaches
// every connected client.
func (h *Hub) Broadcast(ctx context.Context, room, event string, data interface{}) error {
	f, err := NewFrame(event, room, data)
	if err != nil {
		return fmt.Errorf("failed to encode broadcast: %w", err)
	}
	payload, err := json.Marshal(f)
	if err != nil {
		return fmt.Errorf("failed to encode broadcast: %w", err)
	}
	return h.broker.Publish(ctx, room, payload)
}

// Handler returns the gin handler that upgrades connections.
func (h *Hub) Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		h.ServeHTTP(c.Writer, c.Request)
	}
}

// ServeHTTP upgrades the request to a WebSocket connection. A token may be
// passed as the "token" query parameter instead of an authenticate frame.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Debug("Failed to upgrade connection", zap.Error(err))
		return
	}

	client := newClient(h, conn)
	if !h.register(client) {
		_ = conn.Close()
		return
	}

	go client.writePump()

	if token := r.URL.Query().Get("token"); token != "" {
		client.authenticate(token)
	}
	go client.readPump()
}

func (h *Hub) register(c *Client) bool {
	ok := h.exec.exec(func() {
		h.clients[c] = struct{}{}
	})
	if ok {
		if h.gauge != nil {
			h.gauge.Inc()
		}
		h.logger.Debug("Client connected", zap.String("client_id", c.id))
	}
	return ok
}

func (h *Hub) unregister(c *Client) {
	h.exec.exec(func() { h.removeLocked(c) })
}

// removeLocked drops c from the hub and closes its send queue, which makes
// its writer close the connection.
func (h *Hub) removeLocked(c *Client) {
	if _, ok := h.clients[c]; !ok {
		return
	}
	delete(h.clients, c)
	for room := range c.rooms {
		if members, ok := h.rooms[room]; ok {
			delete(members, c)
			if len(members) == 0 {
				delete(h.rooms, room)
			}
		}
	}
	close(c.send)
	if h.gauge != nil {
		h.gauge.Dec()
	}
	h.logger.Debug("Client disconnected", zap.String("client_id", c.id), zap.String("user_id", c.userID))
}

// trySendLocked queues payload for c, dropping the client when its buffer
// is full.
func (h *Hub) trySendLocked(c *Client, payload []byte) {
	select {
	case c.send <- payload:
	default:
		h.logger.Warn("Dropping slow client", zap.String("client_id", c.id))
		h.removeLocked(c)
	}
}

func (h *Hub) sendTo(c *Client, payload []byte) bool {
	delivered := false
	h.exec.exec(func() {
		if _, ok := h.clients[c]; ok {
			h.trySendLocked(c, payload)
			_, delivered = h.clients[c]
		}
	})
	return delivered
}

func (h *Hub) deliver(room string, payload []byte) {
	h.exec.exec(func() {
		targets := h.clients
		if room != "" {
			targets = h.rooms[room]
		}
		for c := range targets {
			h.trySendLocked(c, payload)
		}
	})
}

func (h *Hub) join(c *Client, room string) bool {
	joined := false
	h.exec.exec(func() {
		if _, ok := h.clients[c]; !ok {
			return
		}
		members, ok := h.rooms[room]
		if !ok {
			members = make(map[*Client]struct{})
			h.rooms[room] = members
		}
		members[c] = struct{}{}
		c.rooms[room] = struct{}{}
		joined = true
	})
	return joined
}

func (h *Hub) leave(c *Client, room string) {
	h.exec.exec(func() {
		delete(c.rooms, room)
		if members, ok := h.rooms[room]; ok {
			delete(members, c)
			if len(members) == 0 {
				delete(h.rooms, room)
			}
		}
	})
}

// Clients returns the number of connected clients.
func (h *Hub) Clients() int {
	n := 0
	h.exec.exec(func() { n = len(h.clients) })
	return n
}

// RoomSize returns the number of clients in room.
func (h *Hub) RoomSize(room string) int {
	n := 0
	h.exec.exec(func() { n = len(h.rooms[room]) })
	return n
}

// Close disconnects every client and releases the broker.
func (h *Hub) Close() error {
	var err error
	h.closeOnce.Do(func() {
		h.exec.exec(func() {
			for c := range h.clients {
				h.removeLocked(c)
			}
		})
		h.exec.stop()
		err = h.broker.Close()
	})
	return err
}
