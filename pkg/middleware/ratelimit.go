package middleware

import (
	"math"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/sirosfoundation/mealbuddy-backend/pkg/config"
)

const failurePenalty = 1

// AuthRateLimiter throttles login and registration attempts per client and
// locks a client out for a while once it exceeds the budget.
type AuthRateLimiter struct {
	config config.AuthRateLimitConfig
	logger *zap.Logger

	mu       sync.Mutex
	limiters map[string]*authLimiter

	cleanupInterval time.Duration
	lastCleanup     time.Time
	now             func() time.Time
}

type authLimiter struct {
	limiter    *rate.Limiter
	lastSeen   time.Time
	lockoutEnd time.Time
}

// NewAuthRateLimiter creates a new rate limiter for auth endpoints
func NewAuthRateLimiter(cfg config.AuthRateLimitConfig, logger *zap.Logger) *AuthRateLimiter {
	cfg.SetDefaults()
	return &AuthRateLimiter{
		config:          cfg,
		logger:          logger.Named("auth-ratelimit"),
		limiters:        make(map[string]*authLimiter),
		cleanupInterval: 10 * time.Minute,
		lastCleanup:     time.Now(),
		now:             time.Now,
	}
}

// getLimiter must be called with r.mu held.
func (r *AuthRateLimiter) getLimiter(identifier string, now time.Time) *authLimiter {
	if now.Sub(r.lastCleanup) > r.cleanupInterval {
		r.cleanup(now)
	}

	if l, ok := r.limiters[identifier]; ok {
		l.lastSeen = now
		return l
	}

	// MaxAttempts per WindowSeconds, all of it available as a burst.
	limit := rate.Limit(float64(r.config.MaxAttempts) / float64(r.config.WindowSeconds))
	burst := r.config.MaxAttempts
	if burst < 1 {
		burst = 1
	}
	l := &authLimiter{limiter: rate.NewLimiter(limit, burst), lastSeen: now}
	r.limiters[identifier] = l
	return l
}

func (r *AuthRateLimiter) cleanup(now time.Time) {
	cutoff := now.Add(-30 * time.Minute)
	for key, l := range r.limiters {
		if l.lastSeen.Before(cutoff) && now.After(l.lockoutEnd) {
			delete(r.limiters, key)
		}
	}
	r.lastCleanup = now
}

// Allow reports whether identifier may attempt to authenticate now.
func (r *AuthRateLimiter) Allow(identifier string) bool {
	if !r.config.Enabled {
		return true
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	l := r.getLimiter(identifier, now)
	if now.Before(l.lockoutEnd) {
		return false
	}
	if l.limiter.AllowN(now, 1) {
		return true
	}

	lockout := time.Duration(r.config.LockoutSeconds) * time.Second
	l.lockoutEnd = now.Add(lockout)
	r.logger.Warn("Auth rate limit exceeded, applying lockout",
		zap.String("identifier", identifier),
		zap.Duration("lockout_duration", lockout),
	)
	return false
}

// RecordFailure makes a failed attempt cost one extra token. The charge never
// takes the bucket below empty, so a failure cannot push the client into debt.
func (r *AuthRateLimiter) RecordFailure(identifier string) {
	if !r.config.Enabled {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	l := r.getLimiter(identifier, now).limiter
	if math.Floor(l.TokensAt(now)) >= failurePenalty {
		l.AllowN(now, failurePenalty)
	}
}

// Tracked returns the number of identifiers with limiter state.
func (r *AuthRateLimiter) Tracked() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.limiters)
}

// AuthRateLimitMiddleware rate limits by client IP.
func AuthRateLimitMiddleware(rl *AuthRateLimiter) gin.HandlerFunc {
	return AuthRateLimitMiddlewareWithIdentifier(rl, func(c *gin.Context) string { return c.ClientIP() })
}

// AuthRateLimitMiddlewareWithIdentifier rate limits using a custom identifier extractor.
func AuthRateLimitMiddlewareWithIdentifier(rl *AuthRateLimiter, extractID func(*gin.Context) string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !rl.config.Enabled {
			c.Next()
			return
		}

		identifier := extractID(c)
		if identifier == "" {
			identifier = "_anonymous"
		}

		if !rl.Allow(identifier) {
			c.JSON(http.StatusTooManyRequests, gin.H{
				"error":   "rate_limit_exceeded",
				"message": "Too many authentication attempts. Please try again later.",
			})
			c.Abort()
			return
		}

		c.Next()

		if c.Writer.Status() == http.StatusUnauthorized {
			rl.RecordFailure(identifier)
		}
	}
}
