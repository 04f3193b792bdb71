package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/sirosfoundation/mealbuddy-backend/internal/domain"
)

// ErrNotAuthenticated is returned by handlers that need a signed-in client.
var ErrNotAuthenticated = errors.New("authentication required")

// Client is one WebSocket connection.
type Client struct {
	id   string
	hub  *Hub
	conn *websocket.Conn
	send chan []byte

	// Only touched by the reader goroutine.
	userID string
	// Guarded by the hub executor.
	rooms map[string]struct{}
}

func newClient(h *Hub, conn *websocket.Conn) *Client {
	return &Client{
		id:    uuid.New().String(),
		hub:   h,
		conn:  conn,
		send:  make(chan []byte, h.sendBuffer),
		rooms: make(map[string]struct{}),
	}
}

// ID identifies the connection.
func (c *Client) ID() string { return c.id }

// UserID is the authenticated user, or "" before authentication.
func (c *Client) UserID() string { return c.userID }

// Send queues a frame for this client only.
func (c *Client) Send(f Frame) error {
	payload, err := json.Marshal(f)
	if err != nil {
		return err
	}
	if !c.hub.sendTo(c, payload) {
		return errors.New("client disconnected")
	}
	return nil
}

func (c *Client) reply(typ, room string, data interface{}) {
	f, err := NewFrame(typ, room, data)
	if err != nil {
		c.hub.logger.Error("Failed to encode reply", zap.Error(err))
		return
	}
	_ = c.Send(f)
}

func (c *Client) fail(message string) {
	c.hub.sendTo(c, errorFrame(message))
}

func (c *Client) authenticate(token string) {
	claims, err := c.hub.tokens.ParseToken(token)
	if err != nil {
		c.fail("invalid token")
		return
	}
	c.userID = claims.UserID
	c.reply(TypeAuthenticated, "", map[string]string{"user_id": claims.UserID})
}

func (c *Client) readPump() {
	defer func() {
		c.hub.unregister(c)
	}()

	c.conn.SetReadLimit(c.hub.maxMessage)
	_ = c.conn.SetReadDeadline(time.Now().Add(c.hub.pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(c.hub.pongWait))
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				c.hub.logger.Debug("WebSocket read error", zap.String("client_id", c.id), zap.Error(err))
			}
			return
		}

		var f Frame
		if err := json.Unmarshal(message, &f); err != nil || f.Type == "" {
			c.fail("malformed frame")
			continue
		}
		c.dispatch(f)
	}
}

func (c *Client) dispatch(f Frame) {
	switch f.Type {
	case TypeAuthenticate:
		var data struct {
			Token string `json:"token"`
		}
		if err := f.Decode(&data); err != nil || data.Token == "" {
			c.fail("token required")
			return
		}
		c.authenticate(data.Token)

	case TypeJoin:
		if !domain.ValidRoom(f.Room) {
			c.fail("invalid room")
			return
		}
		// Only signed-in clients join rooms.
		if c.userID == "" {
			c.fail(ErrNotAuthenticated.Error())
			return
		}
		if c.hub.join(c, f.Room) {
			c.reply(TypeJoined, f.Room, nil)
		}

	case TypeLeave:
		c.hub.leave(c, f.Room)
		c.reply(TypeLeft, f.Room, nil)

	default:
		fn, ok := c.hub.handler(f.Type)
		if !ok {
			c.fail("unknown event: " + f.Type)
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := fn(ctx, c, f); err != nil {
			c.fail(err.Error())
		}
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(c.hub.pingInterval)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
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
