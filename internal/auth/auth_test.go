package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/sirosfoundation/mealbuddy-backend/internal/domain"
	"github.com/sirosfoundation/mealbuddy-backend/pkg/config"
)

func newTestService(t *testing.T) *Service {
	t.Helper()
	s, err := New(config.JWTConfig{Secret: "test-secret", ExpiryHours: 1, Issuer: "mealbuddy-test"}, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestNew_Validation(t *testing.T) {
	_, err := New(config.JWTConfig{ExpiryHours: 1}, zap.NewNop())
	assert.Error(t, err)

	_, err = New(config.JWTConfig{Secret: "x"}, zap.NewNop())
	assert.Error(t, err)
}

func TestIssueAndParseToken(t *testing.T) {
	s := newTestService(t)
	user := &domain.User{ID: domain.NewID(), Username: "alice"}

	token, expiresAt, err := s.IssueToken(user)
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(time.Hour), expiresAt, 5*time.Second)

	claims, err := s.ParseToken(token)
	require.NoError(t, err)
	assert.Equal(t, user.ID, claims.UserID)
	assert.Equal(t, "alice", claims.Username)
	assert.NotEmpty(t, claims.ID)
}

func TestParseToken_Rejects(t *testing.T) {
	s := newTestService(t)
	user := &domain.User{ID: "u1", Username: "alice"}

	t.Run("garbage", func(t *testing.T) {
		_, err := s.ParseToken("not-a-token")
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("wrong secret", func(t *testing.T) {
		other, err := New(config.JWTConfig{Secret: "other", ExpiryHours: 1, Issuer: "mealbuddy-test"}, zap.NewNop())
		require.NoError(t, err)
		defer other.Close()

		token, _, err := other.IssueToken(user)
		require.NoError(t, err)
		_, err = s.ParseToken(token)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("wrong issuer", func(t *testing.T) {
		other, err := New(config.JWTConfig{Secret: "test-secret", ExpiryHours: 1, Issuer: "someone-else"}, zap.NewNop())
		require.NoError(t, err)
		defer other.Close()

		token, _, err := other.IssueToken(user)
		require.NoError(t, err)
		_, err = s.ParseToken(token)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("expired", func(t *testing.T) {
		claims := Claims{
			UserID: "u1",
			RegisteredClaims: jwt.RegisteredClaims{
				Issuer:    "mealbuddy-test",
				ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute)),
			},
		}
		token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-secret"))
		require.NoError(t, err)
		_, err = s.ParseToken(token)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("none algorithm", func(t *testing.T) {
		claims := Claims{UserID: "u1", RegisteredClaims: jwt.RegisteredClaims{Issuer: "mealbuddy-test"}}
		token, err := jwt.NewWithClaims(jwt.SigningMethodNone, claims).SignedString(jwt.UnsafeAllowNoneSignatureType)
		require.NoError(t, err)
		_, err = s.ParseToken(token)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("missing user id", func(t *testing.T) {
		claims := Claims{RegisteredClaims: jwt.RegisteredClaims{Issuer: "mealbuddy-test"}}
		token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-secret"))
		require.NoError(t, err)
		_, err = s.ParseToken(token)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})
}

func TestRevoke(t *testing.T) {
	s := newTestService(t)
	token, _, err := s.IssueToken(&domain.User{ID: "u1"})
	require.NoError(t, err)

	claims, err := s.ParseToken(token)
	require.NoError(t, err)

	s.Revoke(claims)
	_, err = s.ParseToken(token)
	assert.ErrorIs(t, err, ErrRevokedToken)

	// Fresh tokens for the same user stay valid.
	fresh, _, err := s.IssueToken(&domain.User{ID: "u1"})
	require.NoError(t, err)
	_, err = s.ParseToken(fresh)
	assert.NoError(t, err)
}

func TestPasswords(t *testing.T) {
	hash, err := HashPassword("correct horse")
	require.NoError(t, err)
	assert.NotEqual(t, "correct horse", hash)

	assert.NoError(t, CheckPassword(hash, "correct horse"))
	assert.ErrorIs(t, CheckPassword(hash, "wrong"), ErrInvalidCredentials)
	assert.ErrorIs(t, CheckPassword("", "anything"), ErrInvalidCredentials)
}

func TestTokenBlacklist(t *testing.T) {
	b := NewTokenBlacklist(time.Hour, zap.NewNop())

	b.Add("", time.Now().Add(time.Hour))
	assert.Equal(t, 0, b.Count())

	b.Add("live", time.Now().Add(time.Hour))
	b.Add("stale", time.Now().Add(-time.Second))
	assert.True(t, b.IsBlacklisted("live"))
	assert.False(t, b.IsBlacklisted("stale"))
	assert.False(t, b.IsBlacklisted("unknown"))
	assert.False(t, b.IsBlacklisted(""))

	b.cleanup(time.Now())
	assert.Equal(t, 1, b.Count())

	b.Start()
	b.Stop()
	b.Stop()
}
