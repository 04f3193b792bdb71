// Package users exposes user profiles.
package users

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/sirosfoundation/mealbuddy-backend/internal/domain"
	"github.com/sirosfoundation/mealbuddy-backend/internal/modules/httpx"
	"github.com/sirosfoundation/mealbuddy-backend/internal/server"
	"github.com/sirosfoundation/mealbuddy-backend/pkg/middleware"
)

// MaxBioLength bounds the profile bio.
const MaxBioLength = 1000

// Module returns the users module descriptor.
func Module() server.Module {
	return server.Module{Name: "users", Prefix: "/api/users", Register: Register}
}

type handlers struct {
	deps   *server.Deps
	logger *zap.Logger
}

// Register adds the user routes to r. Every route needs a token.
func Register(r *gin.RouterGroup, deps *server.Deps) error {
	h := &handlers{deps: deps, logger: deps.Logger.Named("users-module")}

	r.Use(middleware.AuthMiddleware(deps.Auth, deps.Logger))
	r.GET("", h.list)
	r.GET("/:id", h.get)
	r.PUT("/me", h.updateMe)
	r.DELETE("/me", h.deleteMe)
	return nil
}

func (h *handlers) list(c *gin.Context) {
	users, err := h.deps.Store.Users().List(c.Request.Context(), httpx.Page(c))
	if err != nil {
		httpx.StoreError(c, h.logger, err, "User")
		return
	}
	out := make([]domain.PublicUser, 0, len(users))
	for _, u := range users {
		out = append(out, u.Public())
	}
	c.JSON(http.StatusOK, gin.H{"users": out})
}

func (h *handlers) get(c *gin.Context) {
	id := c.Param("id")
	if id == "me" {
		id = middleware.UserID(c)
	}
	user, err := h.deps.Store.Users().GetByID(c.Request.Context(), id)
	if err != nil {
		httpx.StoreError(c, h.logger, err, "User")
		return
	}
	c.JSON(http.StatusOK, user.Public())
}

func (h *handlers) updateMe(c *gin.Context) {
	var req domain.UpdateProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpx.Error(c, http.StatusBadRequest, "Invalid request body")
		return
	}

	ctx := c.Request.Context()
	user, err := h.deps.Store.Users().GetByID(ctx, middleware.UserID(c))
	if err != nil {
		httpx.StoreError(c, h.logger, err, "User")
		return
	}
	if req.DisplayName != nil {
		name := httpx.Text(*req.DisplayName)
		if name == "" {
			httpx.Error(c, http.StatusBadRequest, "display_name must not be empty")
			return
		}
		user.DisplayName = name
	}
	if req.Bio != nil {
		bio := httpx.Text(*req.Bio)
		if len(bio) > MaxBioLength {
			httpx.Error(c, http.StatusBadRequest, "bio is too long")
			return
		}
		user.Bio = bio
	}
	user.UpdatedAt = time.Now().UTC()

	if err := h.deps.Store.Users().Update(ctx, user); err != nil {
		httpx.StoreError(c, h.logger, err, "User")
		return
	}
	c.JSON(http.StatusOK, user.Public())
}

func (h *handlers) deleteMe(c *gin.Context) {
	userID := middleware.UserID(c)
	if err := h.deps.Store.Users().Delete(c.Request.Context(), userID); err != nil {
		httpx.StoreError(c, h.logger, err, "User")
		return
	}
	if claims := middleware.Claims(c); claims != nil {
		h.deps.Auth.Revoke(claims)
	}
	h.logger.Info("User deleted", zap.String("user_id", userID))
	c.Status(http.StatusNoContent)
}
