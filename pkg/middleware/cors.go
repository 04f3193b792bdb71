package middleware

import (
	"fmt"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/sirosfoundation/mealbuddy-backend/pkg/config"
)

// CORSConfig translates the configured policy into a gin-contrib/cors config.
// A "*" entry allows every origin.
func CORSConfig(cfg config.CORSConfig) cors.Config {
	c := cors.Config{
		AllowMethods:     cfg.AllowedMethods,
		AllowHeaders:     cfg.AllowedHeaders,
		ExposeHeaders:    cfg.ExposedHeaders,
		AllowCredentials: cfg.AllowCredentials,
		AllowWebSockets:  true,
		MaxAge:           time.Duration(cfg.MaxAge) * time.Second,
	}
	if allowsAll(cfg.AllowedOrigins) {
		c.AllowAllOrigins = true
	} else {
		c.AllowOrigins = cfg.AllowedOrigins
	}
	return c
}

// CORS builds the cross-origin filter. Unlike cors.New it reports an invalid
// policy as an error instead of panicking.
func CORS(cfg config.CORSConfig) (gin.HandlerFunc, error) {
	c := CORSConfig(cfg)
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("invalid CORS policy: %w", err)
	}
	return cors.New(c), nil
}

// OriginChecker returns a predicate over Origin header values matching the
// same allow-list as the HTTP filter. Requests without an Origin header are
// not browser cross-origin requests and are accepted.
func OriginChecker(cfg config.CORSConfig) func(origin string) bool {
	if allowsAll(cfg.AllowedOrigins) {
		return func(string) bool { return true }
	}
	allowed := make(map[string]struct{}, len(cfg.AllowedOrigins))
	for _, o := range cfg.AllowedOrigins {
		allowed[strings.ToLower(strings.TrimRight(o, "/"))] = struct{}{}
	}
	return func(origin string) bool {
		if origin == "" {
			return true
		}
		_, ok := allowed[strings.ToLower(strings.TrimRight(origin, "/"))]
		return ok
	}
}

func allowsAll(origins []string) bool {
	for _, o := range origins {
		if strings.TrimSpace(o) == "*" {
			return true
		}
	}
	return false
}
