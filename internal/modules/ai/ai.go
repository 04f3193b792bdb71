// Package ai serves the meal-planning assistant. The assistant itself is
// supplied at boot; without one every call answers 503.
package ai

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/sirosfoundation/mealbuddy-backend/internal/assistant"
	"github.com/sirosfoundation/mealbuddy-backend/internal/modules/httpx"
	"github.com/sirosfoundation/mealbuddy-backend/internal/server"
	"github.com/sirosfoundation/mealbuddy-backend/pkg/middleware"
)

// MaxHistory bounds the number of turns forwarded to the assistant.
const MaxHistory = 50

// Module returns the ai module descriptor.
func Module() server.Module {
	return server.Module{Name: "ai", Prefix: "/api/ai", Register: Register}
}

// ChatRequest carries either a single message or a conversation.
type ChatRequest struct {
	Message  string              `json:"message"`
	Messages []assistant.Message `json:"messages"`
}

type handlers struct {
	assistant assistant.Assistant
	logger    *zap.Logger
}

// Register adds the assistant routes to r.
func Register(r *gin.RouterGroup, deps *server.Deps) error {
	a := deps.Assistant
	if a == nil {
		a = assistant.Unavailable{}
	}
	h := &handlers{assistant: a, logger: deps.Logger.Named("ai-module")}

	r.GET("", h.status)
	r.POST("/chat", middleware.AuthMiddleware(deps.Auth, deps.Logger), h.chat)
	return nil
}

func (h *handlers) status(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"available": h.assistant.Available()})
}

func (h *handlers) chat(c *gin.Context) {
	if !h.assistant.Available() {
		httpx.Error(c, http.StatusServiceUnavailable, "Assistant not available")
		return
	}

	var req ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpx.Error(c, http.StatusBadRequest, "Invalid request body")
		return
	}
	history := conversation(req)
	if len(history) == 0 {
		httpx.Error(c, http.StatusBadRequest, "message is required")
		return
	}

	reply, err := h.assistant.Reply(c.Request.Context(), middleware.UserID(c), history)
	if err != nil {
		if errors.Is(err, assistant.ErrUnavailable) {
			httpx.Error(c, http.StatusServiceUnavailable, "Assistant not available")
			return
		}
		h.logger.Error("Assistant failed", zap.Error(err))
		httpx.Error(c, http.StatusBadGateway, "Assistant failed to answer")
		return
	}
	c.JSON(http.StatusOK, gin.H{"reply": reply})
}

// conversation normalizes the request into a bounded list of user-visible
// turns. Only user and assistant roles are accepted from clients.
func conversation(req ChatRequest) []assistant.Message {
	var out []assistant.Message
	for _, m := range req.Messages {
		content := strings.TrimSpace(m.Content)
		if content == "" {
			continue
		}
		role := m.Role
		if role != "assistant" {
			role = "user"
		}
		out = append(out, assistant.Message{Role: role, Content: content})
	}
	if msg := strings.TrimSpace(req.Message); msg != "" {
		out = append(out, assistant.Message{Role: "user", Content: msg})
	}
	if len(out) > MaxHistory {
		out = out[len(out)-MaxHistory:]
	}
	return out
}
