// Package events manages meal events and announces changes to the realtime
// room "events".
package events

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/sirosfoundation/mealbuddy-backend/internal/domain"
	"github.com/sirosfoundation/mealbuddy-backend/internal/modules/httpx"
	"github.com/sirosfoundation/mealbuddy-backend/internal/server"
	"github.com/sirosfoundation/mealbuddy-backend/pkg/middleware"
)

// Room is the realtime room receiving event changes.
const Room = "events"

// Realtime event names.
const (
	Created = "event:created"
	Updated = "event:updated"
	Deleted = "event:deleted"
)

// Module returns the events module descriptor.
func Module() server.Module {
	return server.Module{Name: "events", Prefix: "/api/events", Register: Register}
}

type handlers struct {
	deps   *server.Deps
	logger *zap.Logger
}

// Register adds the event routes to r. Reads are public, writes need a token.
func Register(r *gin.RouterGroup, deps *server.Deps) error {
	h := &handlers{deps: deps, logger: deps.Logger.Named("events-module")}
	protected := middleware.AuthMiddleware(deps.Auth, deps.Logger)

	r.GET("", h.list)
	r.GET("/:id", h.get)
	r.POST("", protected, h.create)
	r.PUT("/:id", protected, h.update)
	r.DELETE("/:id", protected, h.remove)
	return nil
}

func (h *handlers) list(c *gin.Context) {
	events, err := h.deps.Store.Events().List(c.Request.Context(), httpx.Page(c))
	if err != nil {
		httpx.StoreError(c, h.logger, err, "Event")
		return
	}
	if events == nil {
		events = []*domain.Event{}
	}
	c.JSON(http.StatusOK, gin.H{"events": events})
}

func (h *handlers) get(c *gin.Context) {
	event, err := h.deps.Store.Events().GetByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		httpx.StoreError(c, h.logger, err, "Event")
		return
	}
	c.JSON(http.StatusOK, event)
}

func (h *handlers) create(c *gin.Context) {
	req, ok := bindEvent(c)
	if !ok {
		return
	}

	now := time.Now().UTC()
	event := &domain.Event{
		ID:        domain.NewID(),
		OwnerID:   middleware.UserID(c),
		CreatedAt: now,
		UpdatedAt: now,
	}
	req.Apply(event)

	if err := h.deps.Store.Events().Create(c.Request.Context(), event); err != nil {
		httpx.StoreError(c, h.logger, err, "Event")
		return
	}
	h.announce(c.Request.Context(), Created, event)
	c.JSON(http.StatusCreated, event)
}

func (h *handlers) update(c *gin.Context) {
	event, ok := h.owned(c)
	if !ok {
		return
	}
	req, ok := bindEvent(c)
	if !ok {
		return
	}
	req.Apply(event)
	event.UpdatedAt = time.Now().UTC()

	if err := h.deps.Store.Events().Update(c.Request.Context(), event); err != nil {
		httpx.StoreError(c, h.logger, err, "Event")
		return
	}
	h.announce(c.Request.Context(), Updated, event)
	c.JSON(http.StatusOK, event)
}

func (h *handlers) remove(c *gin.Context) {
	event, ok := h.owned(c)
	if !ok {
		return
	}
	if err := h.deps.Store.Events().Delete(c.Request.Context(), event.ID); err != nil {
		httpx.StoreError(c, h.logger, err, "Event")
		return
	}
	h.announce(c.Request.Context(), Deleted, gin.H{"id": event.ID})
	c.Status(http.StatusNoContent)
}

// owned loads the event named in the path and checks the caller owns it.
func (h *handlers) owned(c *gin.Context) (*domain.Event, bool) {
	event, err := h.deps.Store.Events().GetByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		httpx.StoreError(c, h.logger, err, "Event")
		return nil, false
	}
	if event.OwnerID != middleware.UserID(c) {
		httpx.Error(c, http.StatusForbidden, "Only the owner can change this event")
		return nil, false
	}
	return event, true
}

func bindEvent(c *gin.Context) (*domain.EventRequest, bool) {
	var req domain.EventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpx.Error(c, http.StatusBadRequest, "Invalid request body")
		return nil, false
	}
	req.Title = httpx.Text(req.Title)
	req.Description = httpx.Text(req.Description)
	req.Location = httpx.Text(req.Location)
	if err := req.Validate(); err != nil {
		httpx.Error(c, http.StatusBadRequest, err.Error())
		return nil, false
	}
	return &req, true
}

// announce is best effort; the write already succeeded.
func (h *handlers) announce(ctx context.Context, name string, data interface{}) {
	if h.deps.Realtime == nil {
		return
	}
	if err := h.deps.Realtime.Broadcast(ctx, Room, name, data); err != nil {
		h.logger.Warn("Failed to broadcast event change", zap.String("event", name), zap.Error(err))
	}
}
