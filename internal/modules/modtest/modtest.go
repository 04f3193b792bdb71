// Package modtest is a harness for feature module tests. It wires a module
// against a real SQLite store, auth service and realtime hub, the way boot
// does, without the rest of the boot sequence.
package modtest

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/sirosfoundation/mealbuddy-backend/internal/assistant"
	"github.com/sirosfoundation/mealbuddy-backend/internal/auth"
	"github.com/sirosfoundation/mealbuddy-backend/internal/backend"
	"github.com/sirosfoundation/mealbuddy-backend/internal/domain"
	"github.com/sirosfoundation/mealbuddy-backend/internal/realtime"
	"github.com/sirosfoundation/mealbuddy-backend/internal/schema"
	"github.com/sirosfoundation/mealbuddy-backend/internal/server"
	"github.com/sirosfoundation/mealbuddy-backend/internal/uploads"
	"github.com/sirosfoundation/mealbuddy-backend/pkg/config"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// Env is a module mounted on a test server.
type Env struct {
	Server *server.Server
	Deps   *server.Deps
}

// Option adjusts the configuration or dependencies before mounting.
type Option func(cfg *config.Config, deps *server.Deps)

// WithAssistant sets the assistant handed to the module.
func WithAssistant(a assistant.Assistant) Option {
	return func(_ *config.Config, deps *server.Deps) { deps.Assistant = a }
}

// WithConfig edits the configuration before handles are bound.
func WithConfig(fn func(cfg *config.Config)) Option {
	return func(cfg *config.Config, _ *server.Deps) { fn(cfg) }
}

// New mounts m on a fresh server. Everything is released when the test ends.
func New(t *testing.T, m server.Module, opts ...Option) *Env {
	t.Helper()
	ctx := context.Background()
	logger := zap.NewNop()

	base := config.Default()
	base.Server.InstancePath = filepath.Join(t.TempDir(), "instance")
	base.JWT.Secret = "modtest-secret"
	base.Metrics.Enabled = false
	deps := &server.Deps{Logger: logger, Assistant: assistant.Unavailable{}}
	for _, opt := range opts {
		opt(base, deps)
	}

	cfg, err := config.Resolve(base)
	require.NoError(t, err)
	deps.Config = cfg

	store, err := backend.Open(ctx, cfg.Database, logger)
	require.NoError(t, err)
	migrator, err := schema.New(store)
	require.NoError(t, err)
	require.NoError(t, migrator.Materialize(ctx))

	authSvc, err := auth.New(cfg.JWT, logger)
	require.NoError(t, err)
	hub, err := realtime.New(ctx, cfg.Realtime, cfg.CORS, authSvc, logger)
	require.NoError(t, err)

	deps.Store = store
	deps.Auth = authSvc
	deps.Realtime = hub
	deps.UploadDir = cfg.UploadPath()
	require.NoError(t, uploads.Provision(deps.UploadDir))

	srv := server.New(cfg, logger)
	require.NoError(t, srv.Handle(http.MethodGet, cfg.Realtime.Path, hub.Handler()))
	srv.OnClose(store.Close)
	srv.OnClose(authSvc.Close)
	srv.OnClose(hub.Close)
	t.Cleanup(func() { _ = srv.Shutdown(context.Background()) })

	mounted, err := srv.Mount(m, deps)
	require.NoError(t, err)
	require.True(t, mounted)

	return &Env{Server: srv, Deps: deps}
}

// CreateUser stores a user with password "password123" and returns it with
// a valid token.
func (e *Env) CreateUser(t *testing.T, username string) (*domain.User, string) {
	t.Helper()
	hash, err := auth.HashPassword("password123")
	require.NoError(t, err)

	now := time.Now().UTC()
	user := &domain.User{
		ID:           domain.NewID(),
		Username:     username,
		Email:        strings.ToLower(username) + "@example.com",
		PasswordHash: hash,
		DisplayName:  username,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	require.NoError(t, e.Deps.Store.Users().Create(context.Background(), user))

	token, _, err := e.Deps.Auth.IssueToken(user)
	require.NoError(t, err)
	return user, token
}

// Do sends a request with an optional JSON body and bearer token.
func (e *Env) Do(t *testing.T, method, path string, body interface{}, token string) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		r = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, r)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return e.Send(req, token)
}

// Send serves a prepared request, adding the bearer token when set.
func (e *Env) Send(req *http.Request, token string) *httptest.ResponseRecorder {
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	e.Server.ServeHTTP(w, req)
	return w
}

// Decode unmarshals a JSON response body.
func Decode(t *testing.T, w *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), v), w.Body.String())
}

// Dial opens a realtime connection authenticated with token and joins room.
func (e *Env) Dial(t *testing.T, token, room string) *websocket.Conn {
	t.Helper()
	ts := httptest.NewServer(e.Server)
	t.Cleanup(ts.Close)

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + e.Deps.Config.Realtime.Path
	if token != "" {
		url += "?token=" + token
	}
	ws, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = ws.Close() })

	if token != "" {
		f := ReadFrame(t, ws)
		require.Equal(t, realtime.TypeAuthenticated, f.Type, string(f.Data))
	}
	if room != "" {
		require.NoError(t, ws.WriteJSON(realtime.Frame{Type: realtime.TypeJoin, Room: room}))
		f := ReadFrame(t, ws)
		require.Equal(t, realtime.TypeJoined, f.Type, string(f.Data))
	}
	return ws
}

// ReadFrame reads the next frame, failing after five seconds.
func ReadFrame(t *testing.T, ws *websocket.Conn) realtime.Frame {
	t.Helper()
	require.NoError(t, ws.SetReadDeadline(time.Now().Add(5*time.Second)))
	var f realtime.Frame
	require.NoError(t, ws.ReadJSON(&f))
	return f
}
