// Package app exposes the process-wide server for process managers and
// embedders that drive an http.Handler themselves instead of running
// cmd/server.
//
// The first call boots the application; later calls return the same
// instance, or the same boot error.
package app

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"sync"

	"github.com/gin-gonic/gin"

	"github.com/sirosfoundation/mealbuddy-backend/internal/bootstrap"
	"github.com/sirosfoundation/mealbuddy-backend/internal/server"
	"github.com/sirosfoundation/mealbuddy-backend/pkg/config"
)

// ConfigEnv names the environment variable holding the configuration file
// path.
const ConfigEnv = "MEALBUDDY_CONFIG"

// DefaultConfigFile is read when ConfigEnv is unset. A missing file is fine.
const DefaultConfigFile = "configs/config.yaml"

var (
	once     sync.Once
	instance *server.Server
	bootErr  error
)

// Instance boots the application once per process and returns it.
func Instance() (*server.Server, error) {
	once.Do(func() {
		path := os.Getenv(ConfigEnv)
		if path == "" {
			path = DefaultConfigFile
		}
		cfg, err := config.Load(path)
		if err != nil {
			bootErr = err
			return
		}
		SetGinMode(cfg)
		instance, bootErr = bootstrap.Boot(context.Background(), cfg)
	})
	return instance, bootErr
}

// SetGinMode puts gin in release mode unless the configuration asks for debug.
func SetGinMode(cfg *config.Config) {
	if cfg.Server.Debug {
		gin.SetMode(gin.DebugMode)
		return
	}
	gin.SetMode(gin.ReleaseMode)
}

// Handler returns the process-wide server as an http.Handler.
func Handler() (http.Handler, error) {
	srv, err := Instance()
	if err != nil {
		return nil, err
	}
	return srv, nil
}

// MustHandler is Handler for package-level initialisation. It panics if
// boot fails, so the process never serves without its dependencies.
func MustHandler() http.Handler {
	h, err := Handler()
	if err != nil {
		panic(fmt.Sprintf("mealbuddy: %s: %v", bootstrap.Describe(err), err))
	}
	return h
}
