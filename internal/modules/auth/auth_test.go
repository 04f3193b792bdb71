package auth

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sirosfoundation/mealbuddy-backend/internal/domain"
	"github.com/sirosfoundation/mealbuddy-backend/internal/modules/modtest"
	"github.com/sirosfoundation/mealbuddy-backend/pkg/config"
)

func register(t *testing.T, env *modtest.Env, username, email string) domain.TokenResponse {
	t.Helper()
	w := env.Do(t, http.MethodPost, "/api/auth/register", map[string]string{
		"username": username,
		"email":    email,
		"password": "supersecret",
	}, "")
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var resp domain.TokenResponse
	modtest.Decode(t, w, &resp)
	return resp
}

func TestRegisterLoginMe(t *testing.T) {
	env := modtest.New(t, Module())

	reg := register(t, env, "alice", "Alice@Example.com")
	assert.NotEmpty(t, reg.Token)
	assert.Equal(t, "alice", reg.User.Username)
	assert.Equal(t, "alice", reg.User.DisplayName)

	w := env.Do(t, http.MethodPost, "/api/auth/login", map[string]string{
		"email":    "alice@example.com",
		"password": "supersecret",
	}, "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var login domain.TokenResponse
	modtest.Decode(t, w, &login)
	assert.Equal(t, reg.User.ID, login.User.ID)

	w = env.Do(t, http.MethodGet, "/api/auth", nil, login.Token)
	require.Equal(t, http.StatusOK, w.Code)
	var me struct {
		User  domain.PublicUser `json:"user"`
		Email string            `json:"email"`
	}
	modtest.Decode(t, w, &me)
	assert.Equal(t, "alice", me.User.Username)
	assert.Equal(t, "alice@example.com", me.Email)
}

func TestRegister_Validation(t *testing.T) {
	env := modtest.New(t, Module())

	tests := []struct {
		name string
		body map[string]string
		want string
	}{
		{"missing username", map[string]string{"email": "a@example.com", "password": "supersecret"}, domain.ErrUsernameRequired.Error()},
		{"markup only username", map[string]string{"username": "<script>x</script>", "email": "a@example.com", "password": "supersecret"}, domain.ErrUsernameRequired.Error()},
		{"bad email", map[string]string{"username": "bob", "email": "nope", "password": "supersecret"}, domain.ErrInvalidEmail.Error()},
		{"short password", map[string]string{"username": "bob", "email": "b@example.com", "password": "short"}, domain.ErrPasswordTooShort.Error()},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := env.Do(t, http.MethodPost, "/api/auth/register", tt.body, "")
			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Contains(t, w.Body.String(), tt.want)
		})
	}
}

func TestRegister_Duplicate(t *testing.T) {
	env := modtest.New(t, Module())
	register(t, env, "alice", "alice@example.com")

	w := env.Do(t, http.MethodPost, "/api/auth/register", map[string]string{
		"username": "alice",
		"email":    "other@example.com",
		"password": "supersecret",
	}, "")
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestLogin_Failures(t *testing.T) {
	env := modtest.New(t, Module(), modtest.WithConfig(func(cfg *config.Config) {
		cfg.RateLimit.Enabled = false
	}))
	register(t, env, "alice", "alice@example.com")

	w := env.Do(t, http.MethodPost, "/api/auth/login", map[string]string{"username": "alice", "password": "wrong-password"}, "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = env.Do(t, http.MethodPost, "/api/auth/login", map[string]string{"username": "nobody", "password": "supersecret"}, "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = env.Do(t, http.MethodPost, "/api/auth/login", map[string]string{"username": "alice"}, "")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = env.Do(t, http.MethodPost, "/api/auth/login", map[string]string{"password": "supersecret"}, "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestLogin_MistypedPasswordWithinDefaultBudget(t *testing.T) {
	env := modtest.New(t, Module())
	register(t, env, "alice", "alice@example.com")

	for i := 0; i < 2; i++ {
		w := env.Do(t, http.MethodPost, "/api/auth/login", map[string]string{"username": "alice", "password": "supersecrte"}, "")
		require.Equal(t, http.StatusUnauthorized, w.Code, "attempt %d", i)
	}

	w := env.Do(t, http.MethodPost, "/api/auth/login", map[string]string{"username": "alice", "password": "supersecret"}, "")
	assert.Equal(t, http.StatusOK, w.Code, w.Body.String())
}

func TestLogin_RateLimited(t *testing.T) {
	env := modtest.New(t, Module(), modtest.WithConfig(func(cfg *config.Config) {
		cfg.RateLimit = config.AuthRateLimitConfig{Enabled: true, MaxAttempts: 2, WindowSeconds: 3600, LockoutSeconds: 3600}
	}))

	var last int
	for i := 0; i < 5; i++ {
		w := env.Do(t, http.MethodPost, "/api/auth/login", map[string]string{"username": "ghost", "password": "supersecret"}, "")
		last = w.Code
	}
	assert.Equal(t, http.StatusTooManyRequests, last)
}

func TestLogout_RevokesToken(t *testing.T) {
	env := modtest.New(t, Module())
	reg := register(t, env, "alice", "alice@example.com")

	w := env.Do(t, http.MethodPost, "/api/auth/logout", nil, reg.Token)
	require.Equal(t, http.StatusOK, w.Code)

	w = env.Do(t, http.MethodGet, "/api/auth", nil, reg.Token)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestMe_RequiresToken(t *testing.T) {
	env := modtest.New(t, Module())
	assert.Equal(t, http.StatusUnauthorized, env.Do(t, http.MethodGet, "/api/auth", nil, "").Code)
	assert.Equal(t, http.StatusUnauthorized, env.Do(t, http.MethodPost, "/api/auth/logout", nil, "").Code)
}

func TestMe_DeletedUser(t *testing.T) {
	env := modtest.New(t, Module())
	user, token := env.CreateUser(t, "carol")
	require.NoError(t, env.Deps.Store.Users().Delete(context.Background(), user.ID))

	assert.Equal(t, http.StatusNotFound, env.Do(t, http.MethodGet, "/api/auth", nil, token).Code)
}
