package server

import (
	"errors"
	"fmt"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/sirosfoundation/mealbuddy-backend/internal/assistant"
	"github.com/sirosfoundation/mealbuddy-backend/internal/auth"
	"github.com/sirosfoundation/mealbuddy-backend/internal/realtime"
	"github.com/sirosfoundation/mealbuddy-backend/internal/storage"
	"github.com/sirosfoundation/mealbuddy-backend/pkg/config"
)

// Deps are the handles every module may use.
type Deps struct {
	Config    *config.Config
	Logger    *zap.Logger
	Store     storage.Store
	Auth      *auth.Service
	Realtime  *realtime.Hub
	UploadDir string
	Assistant assistant.Assistant
}

// Module is a feature bundle mounted under a URL prefix.
type Module struct {
	Name     string
	Prefix   string
	Register func(r *gin.RouterGroup, deps *Deps) error
}

// ErrPrefixConflict is returned when two modules claim overlapping prefixes.
var ErrPrefixConflict = errors.New("module prefix conflict")

func (m Module) validate() error {
	if m.Name == "" {
		return errors.New("module name is required")
	}
	if m.Register == nil {
		return fmt.Errorf("module %s has no Register func", m.Name)
	}
	if !strings.HasPrefix(m.Prefix, "/") || len(m.Prefix) < 2 || strings.HasSuffix(m.Prefix, "/") {
		return fmt.Errorf("module %s: invalid prefix %q", m.Name, m.Prefix)
	}
	return nil
}

// overlaps reports whether one prefix equals or nests inside the other.
func overlaps(a, b string) bool {
	return a == b || strings.HasPrefix(a, b+"/") || strings.HasPrefix(b, a+"/")
}
