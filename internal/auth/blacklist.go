package auth

import (
	"sync"
	"time"

	"go.uber.org/zap"
)

// TokenBlacklist tracks revoked token IDs until the tokens would have
// expired anyway. A background worker purges stale entries.
type TokenBlacklist struct {
	interval time.Duration
	logger   *zap.Logger

	mu       sync.RWMutex
	tokens   map[string]time.Time // jti -> expiry time
	stopChan chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// NewTokenBlacklist creates a blacklist purged every interval.
func NewTokenBlacklist(interval time.Duration, logger *zap.Logger) *TokenBlacklist {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	return &TokenBlacklist{
		interval: interval,
		logger:   logger.Named("token-blacklist"),
		tokens:   make(map[string]time.Time),
		stopChan: make(chan struct{}),
	}
}

// Start begins the cleanup worker
func (b *TokenBlacklist) Start() {
	b.wg.Add(1)
	go b.cleanupLoop()
	b.logger.Debug("Token blacklist started", zap.Duration("cleanup_interval", b.interval))
}

// Stop stops the cleanup worker. It is safe to call more than once.
func (b *TokenBlacklist) Stop() {
	b.stopOnce.Do(func() {
		close(b.stopChan)
		b.wg.Wait()
	})
}

func (b *TokenBlacklist) cleanupLoop() {
	defer b.wg.Done()

	ticker := time.NewTicker(b.interval)
	defer ticker.Stop()

	for {
		select {
		case <-b.stopChan:
			return
		case <-ticker.C:
			b.cleanup(time.Now())
		}
	}
}

func (b *TokenBlacklist) cleanup(now time.Time) {
	b.mu.Lock()
	defer b.mu.Unlock()

	removed := 0
	for jti, expiry := range b.tokens {
		if now.After(expiry) {
			delete(b.tokens, jti)
			removed++
		}
	}
	if removed > 0 {
		b.logger.Debug("Cleaned up expired blacklist entries",
			zap.Int("removed", removed),
			zap.Int("remaining", len(b.tokens)),
		)
	}
}

// Add revokes jti until expiry. Empty IDs are ignored.
func (b *TokenBlacklist) Add(jti string, expiry time.Time) {
	if jti == "" {
		return
	}
	b.mu.Lock()
	b.tokens[jti] = expiry
	b.mu.Unlock()
}

// IsBlacklisted reports whether jti was revoked and has not yet expired.
func (b *TokenBlacklist) IsBlacklisted(jti string) bool {
	if jti == "" {
		return false
	}
	b.mu.RLock()
	defer b.mu.RUnlock()

	expiry, exists := b.tokens[jti]
	return exists && !time.Now().After(expiry)
}

// Count returns the number of entries currently held
func (b *TokenBlacklist) Count() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.tokens)
}
