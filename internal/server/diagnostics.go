package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// HealthPath is the API liveness endpoint.
const HealthPath = "/api/health"

// RegisterDiagnostics adds the root endpoint and the API health endpoint. Both
// answer without touching persistence or auth.
func (s *Server) RegisterDiagnostics() {
	s.engine.GET("/", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"ok": true})
	})

	name := s.cfg.Server.ServiceName
	if name == "" {
		name = "MealBuddy API"
	}
	message := name + " is running"
	s.engine.GET(HealthPath, func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "healthy",
			"message": message,
		})
	})
}
