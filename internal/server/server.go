package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/sirosfoundation/mealbuddy-backend/internal/metrics"
	"github.com/sirosfoundation/mealbuddy-backend/pkg/config"
	"github.com/sirosfoundation/mealbuddy-backend/pkg/middleware"
)

// Server is the composed application.
type Server struct {
	cfg     *config.Config
	logger  *zap.Logger
	engine  *gin.Engine
	metrics *metrics.Metrics

	streaming bool
	mounted   map[string]string // module name -> prefix

	mu         sync.Mutex
	httpServer *http.Server
	closers    []func() error
	closed     bool
}

// New creates a server with recovery, request logging and, when enabled,
// request metrics and the metrics endpoint.
func New(cfg *config.Config, logger *zap.Logger) *Server {
	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(middleware.Logger(logger.Named("http")))

	s := &Server{
		cfg:     cfg,
		logger:  logger,
		engine:  engine,
		mounted: make(map[string]string),
	}

	if cfg.Metrics.Enabled {
		s.metrics = metrics.New()
		engine.Use(s.metrics.Middleware(cfg.Metrics.Path))
		engine.GET(cfg.Metrics.Path, gin.WrapH(s.metrics.Handler()))
	}
	return s
}

// Config returns the resolved configuration the server was built with.
func (s *Server) Config() *config.Config { return s.cfg }

// Engine exposes the gin engine.
func (s *Server) Engine() *gin.Engine { return s.engine }

// Metrics returns the collectors, or nil when metrics are disabled.
func (s *Server) Metrics() *metrics.Metrics { return s.metrics }

// ServeHTTP makes the server a plain http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.engine.ServeHTTP(w, r)
}

// Use installs middleware. gin applies it only to routes registered after
// the call.
func (s *Server) Use(mw ...gin.HandlerFunc) {
	s.engine.Use(mw...)
}

// EnableStreaming prepares the server for long-lived connections. It must be
// called before the listener starts.
func (s *Server) EnableStreaming() {
	s.streaming = true
}

// Streaming reports whether EnableStreaming was called.
func (s *Server) Streaming() bool { return s.streaming }

// Handle registers a single route on the engine. gin panics on conflicting
// routes; Handle reports that as an error.
func (s *Server) Handle(method, path string, handlers ...gin.HandlerFunc) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("route %s %s: %v", method, path, r)
		}
	}()
	s.engine.Handle(method, path, handlers...)
	return nil
}

// Mount registers a module under its prefix. Mounting a module that is
// already mounted under the same prefix is a no-op and returns false.
func (s *Server) Mount(m Module, deps *Deps) (mounted bool, err error) {
	if err := m.validate(); err != nil {
		return false, err
	}
	if prefix, ok := s.mounted[m.Name]; ok {
		if prefix == m.Prefix {
			s.logger.Debug("Module already mounted", zap.String("module", m.Name), zap.String("prefix", prefix))
			return false, nil
		}
		return false, fmt.Errorf("%w: module %s already mounted at %s", ErrPrefixConflict, m.Name, prefix)
	}
	for name, prefix := range s.mounted {
		if overlaps(prefix, m.Prefix) {
			return false, fmt.Errorf("%w: %s (%s) overlaps %s (%s)", ErrPrefixConflict, m.Name, m.Prefix, name, prefix)
		}
	}

	defer func() {
		if r := recover(); r != nil {
			mounted, err = false, fmt.Errorf("module %s: %v", m.Name, r)
		}
	}()
	if err := m.Register(s.engine.Group(m.Prefix), deps); err != nil {
		return false, err
	}
	s.mounted[m.Name] = m.Prefix
	s.logger.Info("Mounted module", zap.String("module", m.Name), zap.String("prefix", m.Prefix))
	return true, nil
}

// Mounted returns the mounted prefixes, sorted.
func (s *Server) Mounted() []string {
	prefixes := make([]string, 0, len(s.mounted))
	for _, p := range s.mounted {
		prefixes = append(prefixes, p)
	}
	sort.Strings(prefixes)
	return prefixes
}

// OnClose registers fn to run during Shutdown. Functions run in reverse
// registration order.
func (s *Server) OnClose(fn func() error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closers = append(s.closers, fn)
}

// HTTPServer returns the http.Server for the configured address, creating
// it on first use.
func (s *Server) HTTPServer() *http.Server {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.httpServer != nil {
		return s.httpServer
	}

	srv := &http.Server{
		Addr:              s.cfg.Server.Address(),
		Handler:           s.engine,
		ReadHeaderTimeout: 15 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	if s.streaming {
		// Upgraded connections outlive any per-request deadline.
		srv.ReadTimeout = 0
		srv.WriteTimeout = 0
		srv.IdleTimeout = 120 * time.Second
	}
	s.httpServer = srv
	return srv
}

// ListenAndServe blocks serving HTTP until Shutdown.
func (s *Server) ListenAndServe() error {
	srv := s.HTTPServer()
	s.logger.Info("HTTP server listening",
		zap.String("address", srv.Addr),
		zap.Bool("streaming", s.streaming),
		zap.Strings("modules", s.Mounted()),
	)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops the listener, if any, and releases every bound handle.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	srv := s.httpServer
	closers := s.closers
	s.mu.Unlock()

	var errs []error
	if srv != nil {
		if err := srv.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("HTTP server shutdown: %w", err))
		}
	}
	for i := len(closers) - 1; i >= 0; i-- {
		if err := closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
