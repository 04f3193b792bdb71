// Package upload stores user files in the upload directory and serves them
// back by their generated name.
package upload

import (
	"errors"
	"net/http"
	"os"
	"slices"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/sirosfoundation/mealbuddy-backend/internal/modules/httpx"
	"github.com/sirosfoundation/mealbuddy-backend/internal/server"
	"github.com/sirosfoundation/mealbuddy-backend/internal/uploads"
	"github.com/sirosfoundation/mealbuddy-backend/pkg/middleware"
)

// FormField is the multipart field holding the file.
const FormField = "file"

// multipartOverhead is allowed on top of the size cap for headers and
// boundaries.
const multipartOverhead = 1 << 20

// Module returns the upload module descriptor.
func Module() server.Module {
	return server.Module{Name: "upload", Prefix: "/api/upload", Register: Register}
}

type handlers struct {
	dir      string
	prefix   string
	maxBytes int64
	allowed  []string
	logger   *zap.Logger
}

// Register adds the upload routes to r.
func Register(r *gin.RouterGroup, deps *server.Deps) error {
	if deps.UploadDir == "" {
		return errors.New("upload directory is not configured")
	}
	cfg := deps.Config.Upload
	allowed := make([]string, 0, len(cfg.AllowedExtensions))
	for _, ext := range cfg.AllowedExtensions {
		ext = strings.TrimPrefix(strings.ToLower(strings.TrimSpace(ext)), ".")
		if ext == "" {
			continue
		}
		allowed = append(allowed, "."+ext)
	}

	h := &handlers{
		dir:      deps.UploadDir,
		prefix:   r.BasePath(),
		maxBytes: int64(cfg.MaxSizeMB) << 20,
		allowed:  allowed,
		logger:   deps.Logger.Named("upload-module"),
	}

	r.GET("", h.limits)
	r.POST("", middleware.AuthMiddleware(deps.Auth, deps.Logger), h.upload)
	r.GET("/:name", h.serve)
	return nil
}

func (h *handlers) limits(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"max_size_bytes":     h.maxBytes,
		"allowed_extensions": h.allowed,
		"field":              FormField,
	})
}

func (h *handlers) upload(c *gin.Context) {
	if h.maxBytes > 0 {
		if c.Request.ContentLength > h.maxBytes+multipartOverhead {
			httpx.Error(c, http.StatusRequestEntityTooLarge, "File too large")
			return
		}
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxBytes+multipartOverhead)
	}

	file, err := c.FormFile(FormField)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			httpx.Error(c, http.StatusRequestEntityTooLarge, "File too large")
			return
		}
		httpx.Error(c, http.StatusBadRequest, "A file is required in the \""+FormField+"\" field")
		return
	}
	if h.maxBytes > 0 && file.Size > h.maxBytes {
		httpx.Error(c, http.StatusRequestEntityTooLarge, "File too large")
		return
	}
	ext := uploads.Ext(file.Filename)
	if !slices.Contains(h.allowed, ext) {
		httpx.Error(c, http.StatusBadRequest, "File type not allowed")
		return
	}

	name := uploads.NewName(file.Filename)
	path, err := uploads.Resolve(h.dir, name)
	if err != nil {
		httpx.Error(c, http.StatusInternalServerError, "Internal server error")
		return
	}
	if err := c.SaveUploadedFile(file, path); err != nil {
		h.logger.Error("Failed to store upload", zap.String("path", path), zap.Error(err))
		httpx.Error(c, http.StatusInternalServerError, "Failed to store file")
		return
	}

	h.logger.Info("File uploaded",
		zap.String("user_id", middleware.UserID(c)),
		zap.String("name", name),
		zap.Int64("size", file.Size),
	)
	c.JSON(http.StatusCreated, gin.H{
		"filename": name,
		"url":      h.prefix + "/" + name,
		"size":     file.Size,
	})
}

func (h *handlers) serve(c *gin.Context) {
	path, err := uploads.Resolve(h.dir, c.Param("name"))
	if err != nil {
		httpx.Error(c, http.StatusBadRequest, "Invalid file name")
		return
	}
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		httpx.Error(c, http.StatusNotFound, "File not found")
		return
	}
	c.File(path)
}
