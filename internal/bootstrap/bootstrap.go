// Package bootstrap composes the application. Boot resolves configuration,
// binds the shared handles, mounts the feature modules and returns a server
// ready to listen.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/sirosfoundation/mealbuddy-backend/internal/assistant"
	"github.com/sirosfoundation/mealbuddy-backend/internal/auth"
	"github.com/sirosfoundation/mealbuddy-backend/internal/backend"
	"github.com/sirosfoundation/mealbuddy-backend/internal/modules"
	"github.com/sirosfoundation/mealbuddy-backend/internal/realtime"
	"github.com/sirosfoundation/mealbuddy-backend/internal/schema"
	"github.com/sirosfoundation/mealbuddy-backend/internal/server"
	"github.com/sirosfoundation/mealbuddy-backend/internal/uploads"
	"github.com/sirosfoundation/mealbuddy-backend/pkg/config"
	"github.com/sirosfoundation/mealbuddy-backend/pkg/logging"
	"github.com/sirosfoundation/mealbuddy-backend/pkg/middleware"
)

const defaultMaterializeTimeout = 30 * time.Second

// Option customises Boot.
type Option func(*options)

type options struct {
	logger    *zap.Logger
	modules   []server.Module
	assistant assistant.Assistant
}

// WithLogger uses logger instead of one built from the logging configuration.
func WithLogger(logger *zap.Logger) Option {
	return func(o *options) { o.logger = logger }
}

// WithModules replaces the bundled feature modules.
func WithModules(mods ...server.Module) Option {
	return func(o *options) { o.modules = mods }
}

// WithAssistant plugs in the assistant served by the ai module.
func WithAssistant(a assistant.Assistant) Option {
	return func(o *options) { o.assistant = a }
}

// state is threaded through the boot steps.
type state struct {
	ctx  context.Context
	base *config.Config
	opts options

	cfg      *config.Config
	logger   *zap.Logger
	srv      *server.Server
	store    backend.Backend
	auth     *auth.Service
	hub      *realtime.Hub
	migrator *schema.Migrator

	// cleanups release bound handles, in binding order.
	cleanups []func() error
}

type step struct {
	name string
	run  func(*state) error
}

// steps is the boot sequence. Realtime binds before the modules so that the
// server is in streaming mode before anything can serve traffic.
var steps = []step{
	{"configuration", resolveConfiguration},
	{"persistence", bindPersistence},
	{"auth", bindAuth},
	{"realtime", bindRealtime},
	{"migration", bindMigration},
	{"cors", applyCORS},
	{"modules", mountModules},
	{"uploads", provisionUploads},
	{"schema", materializeSchema},
	{"diagnostics", registerDiagnostics},
}

// Boot builds the application from a base configuration. On error every
// handle bound so far is released and no server is returned.
func Boot(ctx context.Context, base *config.Config, opts ...Option) (*server.Server, error) {
	st := &state{ctx: ctx, base: base}
	for _, opt := range opts {
		opt(&st.opts)
	}

	for _, s := range steps {
		if err := s.run(st); err != nil {
			st.release()
			return nil, err
		}
		if st.logger != nil {
			st.logger.Debug("Boot step complete", zap.String("step", s.name))
		}
	}

	for _, fn := range st.cleanups {
		st.srv.OnClose(fn)
	}
	st.logger.Info("Boot complete",
		zap.String("database", string(st.store.Kind())),
		zap.String("realtime_mode", string(st.hub.Mode())),
		zap.Strings("prefixes", st.srv.Mounted()),
	)
	return st.srv, nil
}

func (st *state) release() {
	for i := len(st.cleanups) - 1; i >= 0; i-- {
		if err := st.cleanups[i](); err != nil && st.logger != nil {
			st.logger.Warn("Failed to release handle", zap.Error(err))
		}
	}
	st.cleanups = nil
}

func (st *state) onRelease(fn func() error) {
	st.cleanups = append(st.cleanups, fn)
}

func resolveConfiguration(st *state) error {
	cfg, err := config.Resolve(st.base)
	if err != nil {
		return err
	}
	st.cfg = cfg

	st.logger = st.opts.logger
	if st.logger == nil {
		logger, err := logging.NewLogger(cfg.Logging)
		if err != nil {
			return &config.ConfigurationError{Source: "logging", Err: err}
		}
		st.logger = logger
	}

	st.srv = server.New(cfg, st.logger)
	st.logger.Info("Configuration resolved",
		zap.String("instance_path", cfg.Server.InstancePath),
		zap.Bool("fallback_database", cfg.Database.URL == config.FallbackDatabaseURL(cfg.Server.InstancePath)),
	)
	return nil
}

func bindPersistence(st *state) error {
	store, err := backend.Open(st.ctx, st.cfg.Database, st.logger)
	if err != nil {
		return &HandleBindingError{Handle: "persistence", Err: err}
	}
	st.store = store
	st.onRelease(store.Close)
	return nil
}

func bindAuth(st *state) error {
	svc, err := auth.New(st.cfg.JWT, st.logger)
	if err != nil {
		return &HandleBindingError{Handle: "auth", Err: err}
	}
	st.auth = svc
	st.onRelease(svc.Close)
	return nil
}

func bindRealtime(st *state) error {
	var opts []realtime.Option
	if m := st.srv.Metrics(); m != nil {
		opts = append(opts, realtime.WithConnectionGauge(m.RealtimeConnections))
	}
	hub, err := realtime.New(st.ctx, st.cfg.Realtime, st.cfg.CORS, st.auth, st.logger, opts...)
	if err != nil {
		return &HandleBindingError{Handle: "realtime", Err: err}
	}
	st.onRelease(hub.Close)

	if err := st.srv.Handle("GET", st.cfg.Realtime.Path, hub.Handler()); err != nil {
		return &HandleBindingError{Handle: "realtime", Err: err}
	}
	st.srv.EnableStreaming()
	st.hub = hub
	return nil
}

func bindMigration(st *state) error {
	m, err := schema.New(st.store)
	if err != nil {
		return &HandleBindingError{Handle: "migration", Err: err}
	}
	st.migrator = m
	return nil
}

func applyCORS(st *state) error {
	filter, err := middleware.CORS(st.cfg.CORS)
	if err != nil {
		return &HandleBindingError{Handle: "cors", Err: err}
	}
	st.srv.Use(filter)
	return nil
}

func mountModules(st *state) error {
	mods := st.opts.modules
	if mods == nil {
		mods = modules.Default()
	}
	a := st.opts.assistant
	if a == nil {
		a = assistant.Unavailable{}
	}

	deps := &server.Deps{
		Config:    st.cfg,
		Logger:    st.logger,
		Store:     st.store,
		Auth:      st.auth,
		Realtime:  st.hub,
		UploadDir: st.cfg.UploadPath(),
		Assistant: a,
	}
	for _, m := range mods {
		if _, err := st.srv.Mount(m, deps); err != nil {
			return &HandleBindingError{Handle: "module:" + m.Name, Err: err}
		}
	}
	return nil
}

func provisionUploads(st *state) error {
	dir := st.cfg.UploadPath()
	if err := uploads.Provision(dir); err != nil {
		return &StorageProvisioningError{Path: dir, Err: err}
	}
	return nil
}

func materializeSchema(st *state) error {
	timeout := defaultMaterializeTimeout
	if st.cfg.Database.Timeout > 0 {
		timeout = time.Duration(st.cfg.Database.Timeout) * time.Second
	}
	ctx, cancel := context.WithTimeout(st.ctx, timeout)
	defer cancel()

	if err := st.migrator.Materialize(ctx); err != nil {
		warning := &SchemaMaterializationWarning{Err: err}
		st.logger.Warn("Continuing without schema materialization",
			zap.String("target", st.migrator.String()),
			zap.Error(warning),
		)
		return nil
	}
	st.logger.Info("Schema materialized", zap.String("target", st.migrator.String()))
	return nil
}

func registerDiagnostics(st *state) error {
	st.srv.RegisterDiagnostics()
	return nil
}

// IsFatal reports whether err came out of Boot as one of its fatal error
// types.
func IsFatal(err error) bool {
	var cfgErr *config.ConfigurationError
	var bindErr *HandleBindingError
	var provErr *StorageProvisioningError
	return errors.As(err, &cfgErr) || errors.As(err, &bindErr) || errors.As(err, &provErr)
}

// Describe renders err for a one-line fatal log message.
func Describe(err error) string {
	var bindErr *HandleBindingError
	if errors.As(err, &bindErr) {
		return fmt.Sprintf("could not bind %s", bindErr.Handle)
	}
	var provErr *StorageProvisioningError
	if errors.As(err, &provErr) {
		return "could not provision upload storage"
	}
	var cfgErr *config.ConfigurationError
	if errors.As(err, &cfgErr) {
		return "invalid configuration"
	}
	return "boot failed"
}
