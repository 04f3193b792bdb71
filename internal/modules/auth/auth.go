// Package auth is the account module: registration, login, logout and the
// current-user lookup.
package auth

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	authn "github.com/sirosfoundation/mealbuddy-backend/internal/auth"
	"github.com/sirosfoundation/mealbuddy-backend/internal/domain"
	"github.com/sirosfoundation/mealbuddy-backend/internal/modules/httpx"
	"github.com/sirosfoundation/mealbuddy-backend/internal/server"
	"github.com/sirosfoundation/mealbuddy-backend/internal/storage"
	"github.com/sirosfoundation/mealbuddy-backend/pkg/middleware"
)

// Module returns the auth module descriptor.
func Module() server.Module {
	return server.Module{Name: "auth", Prefix: "/api/auth", Register: Register}
}

type handlers struct {
	deps   *server.Deps
	logger *zap.Logger
}

// Register adds the auth routes to r.
func Register(r *gin.RouterGroup, deps *server.Deps) error {
	h := &handlers{deps: deps, logger: deps.Logger.Named("auth-module")}

	limiter := middleware.NewAuthRateLimiter(deps.Config.RateLimit, deps.Logger)
	throttle := middleware.AuthRateLimitMiddleware(limiter)
	protected := middleware.AuthMiddleware(deps.Auth, deps.Logger)

	r.GET("", protected, h.me)
	r.POST("/register", throttle, h.register)
	r.POST("/login", throttle, h.login)
	r.POST("/logout", protected, h.logout)
	return nil
}

func (h *handlers) register(c *gin.Context) {
	var req domain.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpx.Error(c, http.StatusBadRequest, "Invalid request body")
		return
	}
	req.Normalize()
	req.Username = httpx.Text(req.Username)
	req.DisplayName = httpx.Text(req.DisplayName)
	if err := req.Validate(); err != nil {
		httpx.Error(c, http.StatusBadRequest, err.Error())
		return
	}

	hash, err := authn.HashPassword(req.Password)
	if err != nil {
		h.logger.Error("Failed to hash password", zap.Error(err))
		httpx.Error(c, http.StatusInternalServerError, "Internal server error")
		return
	}

	now := time.Now().UTC()
	user := &domain.User{
		ID:           domain.NewID(),
		Username:     req.Username,
		Email:        req.Email,
		PasswordHash: hash,
		DisplayName:  req.DisplayName,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if user.DisplayName == "" {
		user.DisplayName = user.Username
	}
	if err := h.deps.Store.Users().Create(c.Request.Context(), user); err != nil {
		if errors.Is(err, storage.ErrAlreadyExists) {
			httpx.Error(c, http.StatusConflict, "Username or email already registered")
			return
		}
		httpx.StoreError(c, h.logger, err, "User")
		return
	}

	h.logger.Info("User registered", zap.String("user_id", user.ID))
	h.respondWithToken(c, http.StatusCreated, user)
}

func (h *handlers) login(c *gin.Context) {
	var req domain.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpx.Error(c, http.StatusBadRequest, "Invalid request body")
		return
	}
	login := req.Login()
	if login == "" {
		httpx.Error(c, http.StatusBadRequest, "Username or email is required")
		return
	}

	user, err := h.deps.Store.Users().GetByLogin(c.Request.Context(), login)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			httpx.Error(c, http.StatusUnauthorized, "Invalid credentials")
			return
		}
		httpx.StoreError(c, h.logger, err, "User")
		return
	}
	if err := authn.CheckPassword(user.PasswordHash, req.Password); err != nil {
		httpx.Error(c, http.StatusUnauthorized, "Invalid credentials")
		return
	}

	h.respondWithToken(c, http.StatusOK, user)
}

func (h *handlers) logout(c *gin.Context) {
	if claims := middleware.Claims(c); claims != nil {
		h.deps.Auth.Revoke(claims)
	}
	c.JSON(http.StatusOK, gin.H{"message": "Logged out"})
}

func (h *handlers) me(c *gin.Context) {
	user, err := h.deps.Store.Users().GetByID(c.Request.Context(), middleware.UserID(c))
	if err != nil {
		httpx.StoreError(c, h.logger, err, "User")
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"user":  user.Public(),
		"email": user.Email,
	})
}

func (h *handlers) respondWithToken(c *gin.Context, status int, user *domain.User) {
	token, expiresAt, err := h.deps.Auth.IssueToken(user)
	if err != nil {
		h.logger.Error("Failed to issue token", zap.Error(err))
		httpx.Error(c, http.StatusInternalServerError, "Internal server error")
		return
	}
	c.JSON(status, domain.TokenResponse{
		Token:     token,
		ExpiresAt: expiresAt,
		User:      user.Public(),
	})
}
