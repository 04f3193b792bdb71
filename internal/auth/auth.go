// Package auth issues and validates bearer tokens and hashes passwords.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/sirosfoundation/mealbuddy-backend/internal/domain"
	"github.com/sirosfoundation/mealbuddy-backend/pkg/config"
)

var (
	ErrInvalidToken       = errors.New("invalid token")
	ErrRevokedToken       = errors.New("token has been revoked")
	ErrInvalidCredentials = errors.New("invalid credentials")
)

// Claims are the JWT claims carried by MealBuddy access tokens.
type Claims struct {
	UserID   string `json:"user_id"`
	Username string `json:"username,omitempty"`
	jwt.RegisteredClaims
}

// Service is the authentication handle shared by all modules.
type Service struct {
	secret    []byte
	issuer    string
	expiry    time.Duration
	logger    *zap.Logger
	blacklist *TokenBlacklist
}

// New creates the auth service and starts its revocation worker.
func New(cfg config.JWTConfig, logger *zap.Logger) (*Service, error) {
	if cfg.Secret == "" {
		return nil, errors.New("jwt secret must not be empty")
	}
	if cfg.ExpiryHours <= 0 {
		return nil, fmt.Errorf("jwt expiry must be positive, got %d hours", cfg.ExpiryHours)
	}
	logger = logger.Named("auth")
	if cfg.Secret == config.DefaultSecret {
		logger.Warn("Using the built-in JWT secret; set JWT_SECRET_KEY in production")
	}

	s := &Service{
		secret:    []byte(cfg.Secret),
		issuer:    cfg.Issuer,
		expiry:    time.Duration(cfg.ExpiryHours) * time.Hour,
		logger:    logger,
		blacklist: NewTokenBlacklist(time.Duration(cfg.BlacklistCleanupSeconds)*time.Second, logger),
	}
	s.blacklist.Start()
	return s, nil
}

// Close stops background work.
func (s *Service) Close() error {
	s.blacklist.Stop()
	return nil
}

// IssueToken signs an access token for user.
func (s *Service) IssueToken(user *domain.User) (string, time.Time, error) {
	now := time.Now()
	expiresAt := now.Add(s.expiry)
	claims := Claims{
		UserID:   user.ID,
		Username: user.Username,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        domain.NewID(),
			Subject:   user.ID,
			Issuer:    s.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, expiresAt, nil
}

// ParseToken validates a token and returns its claims.
func (s *Service) ParseToken(tokenString string) (*Claims, error) {
	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})}
	if s.issuer != "" {
		opts = append(opts, jwt.WithIssuer(s.issuer))
	}

	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.secret, nil
	}, opts...)
	if err != nil || !token.Valid {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if claims.UserID == "" {
		return nil, fmt.Errorf("%w: missing user_id", ErrInvalidToken)
	}
	if s.blacklist.IsBlacklisted(claims.ID) {
		return nil, ErrRevokedToken
	}
	return claims, nil
}

// Revoke blacklists the token until it expires.
func (s *Service) Revoke(claims *Claims) {
	expiry := time.Now().Add(s.expiry)
	if claims.ExpiresAt != nil {
		expiry = claims.ExpiresAt.Time
	}
	s.blacklist.Add(claims.ID, expiry)
	s.logger.Debug("Token revoked", zap.String("user_id", claims.UserID), zap.String("jti", claims.ID))
}

// HashPassword hashes a password with bcrypt.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hash), nil
}

// CheckPassword compares a bcrypt hash with a candidate password.
func CheckPassword(hash, password string) error {
	if hash == "" {
		return ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)); err != nil {
		return ErrInvalidCredentials
	}
	return nil
}
