// Package chat stores room messages and relays them over the realtime hub.
// Messages can be posted over HTTP or with a "chat:send" frame.
package chat

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/sirosfoundation/mealbuddy-backend/internal/domain"
	"github.com/sirosfoundation/mealbuddy-backend/internal/modules/httpx"
	"github.com/sirosfoundation/mealbuddy-backend/internal/realtime"
	"github.com/sirosfoundation/mealbuddy-backend/internal/server"
	"github.com/sirosfoundation/mealbuddy-backend/internal/storage"
	"github.com/sirosfoundation/mealbuddy-backend/pkg/middleware"
)

// Realtime event names.
const (
	SendEvent    = "chat:send"
	MessageEvent = "chat:message"
)

// DefaultHistory is the number of messages returned when no limit is given.
const DefaultHistory = 50

// Module returns the chat module descriptor.
func Module() server.Module {
	return server.Module{Name: "chat", Prefix: "/api/chat", Register: Register}
}

type service struct {
	deps   *server.Deps
	logger *zap.Logger
}

// Register adds the chat routes to r and the chat:send handler to the hub.
func Register(r *gin.RouterGroup, deps *server.Deps) error {
	if deps.Realtime == nil {
		return errors.New("chat requires the realtime hub")
	}
	s := &service{deps: deps, logger: deps.Logger.Named("chat-module")}
	protected := middleware.AuthMiddleware(deps.Auth, deps.Logger)

	r.GET("", s.info)
	r.GET("/:room/messages", protected, s.history)
	r.POST("/:room/messages", protected, s.postHTTP)

	deps.Realtime.On(SendEvent, s.postRealtime)
	return nil
}

func (s *service) info(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"realtime_path": s.deps.Config.Realtime.Path,
		"send_event":    SendEvent,
		"message_event": MessageEvent,
	})
}

func (s *service) history(c *gin.Context) {
	room := c.Param("room")
	if !domain.ValidRoom(room) {
		httpx.Error(c, http.StatusBadRequest, domain.ErrInvalidRoomName.Error())
		return
	}
	limit := DefaultHistory
	if n, err := strconv.Atoi(c.Query("limit")); err == nil && n > 0 {
		limit = min(n, storage.MaxPageSize)
	}

	msgs, err := s.deps.Store.Messages().ListByRoom(c.Request.Context(), room, limit)
	if err != nil {
		httpx.StoreError(c, s.logger, err, "Message")
		return
	}
	if msgs == nil {
		msgs = []*domain.Message{}
	}
	c.JSON(http.StatusOK, gin.H{"room": room, "messages": msgs})
}

func (s *service) postHTTP(c *gin.Context) {
	var req domain.MessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpx.Error(c, http.StatusBadRequest, "Invalid request body")
		return
	}
	msg, err := s.post(c.Request.Context(), c.Param("room"), middleware.UserID(c), req.Body)
	switch {
	case err == nil:
		c.JSON(http.StatusCreated, msg)
	case isValidation(err):
		httpx.Error(c, http.StatusBadRequest, err.Error())
	default:
		httpx.StoreError(c, s.logger, err, "Message")
	}
}

func (s *service) postRealtime(ctx context.Context, c *realtime.Client, f realtime.Frame) error {
	if c.UserID() == "" {
		return realtime.ErrNotAuthenticated
	}
	var req domain.MessageRequest
	if err := f.Decode(&req); err != nil {
		return errors.New("invalid message")
	}
	_, err := s.post(ctx, f.Room, c.UserID(), req.Body)
	if err != nil && !isValidation(err) {
		s.logger.Error("Failed to store realtime message", zap.Error(err))
		return errors.New("failed to send message")
	}
	return err
}

// post validates, stores and broadcasts a message.
func (s *service) post(ctx context.Context, room, senderID, body string) (*domain.Message, error) {
	if !domain.ValidRoom(room) {
		return nil, domain.ErrInvalidRoomName
	}
	body = httpx.Text(body)
	if err := domain.ValidateMessageBody(body); err != nil {
		return nil, err
	}

	msg := &domain.Message{
		ID:        domain.NewID(),
		Room:      room,
		SenderID:  senderID,
		Body:      body,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.deps.Store.Messages().Create(ctx, msg); err != nil {
		return nil, err
	}
	if err := s.deps.Realtime.Broadcast(ctx, room, MessageEvent, msg); err != nil {
		s.logger.Warn("Failed to broadcast chat message", zap.String("room", room), zap.Error(err))
	}
	return msg, nil
}

func isValidation(err error) bool {
	return errors.Is(err, domain.ErrInvalidRoomName) ||
		errors.Is(err, domain.ErrEmptyMessage) ||
		errors.Is(err, domain.ErrMessageTooLong)
}
