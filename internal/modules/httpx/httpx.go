// Package httpx holds request helpers shared by the feature modules.
package httpx

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/microcosm-cc/bluemonday"
	"go.uber.org/zap"

	"github.com/sirosfoundation/mealbuddy-backend/internal/storage"
)

// strict strips every tag. Policies are safe for concurrent use.
var strict = bluemonday.StrictPolicy()

// Text sanitizes user supplied plain text and trims surrounding whitespace.
func Text(s string) string {
	return strings.TrimSpace(strict.Sanitize(s))
}

// Page reads limit and offset query parameters. Invalid values fall back to
// the defaults.
func Page(c *gin.Context) storage.Page {
	var p storage.Page
	if n, err := strconv.Atoi(c.Query("limit")); err == nil {
		p.Limit = n
	}
	if n, err := strconv.Atoi(c.Query("offset")); err == nil {
		p.Offset = n
	}
	return p.Normalize()
}

// Error writes {"error": msg} with status.
func Error(c *gin.Context, status int, msg string) {
	c.AbortWithStatusJSON(status, gin.H{"error": msg})
}

// StoreError maps storage errors to HTTP responses. what names the resource
// in messages, e.g. "Event".
func StoreError(c *gin.Context, logger *zap.Logger, err error, what string) {
	switch {
	case errors.Is(err, storage.ErrNotFound):
		Error(c, http.StatusNotFound, what+" not found")
	case errors.Is(err, storage.ErrAlreadyExists):
		Error(c, http.StatusConflict, what+" already exists")
	case errors.Is(err, storage.ErrInvalidInput):
		Error(c, http.StatusBadRequest, "Invalid "+strings.ToLower(what))
	default:
		logger.Error("Storage operation failed", zap.String("resource", what), zap.Error(err))
		Error(c, http.StatusInternalServerError, "Internal server error")
	}
}
