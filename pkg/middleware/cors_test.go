package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sirosfoundation/mealbuddy-backend/pkg/config"
)

func TestCORS_AllowAll(t *testing.T) {
	filter, err := CORS(config.Default().CORS)
	require.NoError(t, err)

	router := gin.New()
	router.Use(filter)
	router.GET("/x", func(c *gin.Context) { c.Status(http.StatusOK) })

	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set("Origin", "https://anywhere.example")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
}

func TestCORS_AllowList(t *testing.T) {
	cfg := config.Default().CORS
	cfg.AllowedOrigins = []string{"https://app.example"}
	filter, err := CORS(cfg)
	require.NoError(t, err)

	router := gin.New()
	router.Use(filter)
	router.GET("/x", func(c *gin.Context) { c.Status(http.StatusOK) })

	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set("Origin", "https://app.example")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, "https://app.example", w.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set("Origin", "https://evil.example")
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestCORS_Invalid(t *testing.T) {
	_, err := CORS(config.CORSConfig{})
	assert.Error(t, err)

	_, err = CORS(config.CORSConfig{AllowedOrigins: []string{"ftp://files.example"}})
	assert.Error(t, err)
}

func TestOriginChecker(t *testing.T) {
	all := OriginChecker(config.CORSConfig{AllowedOrigins: []string{"*"}})
	assert.True(t, all("https://whatever.example"))

	check := OriginChecker(config.CORSConfig{AllowedOrigins: []string{"https://App.example/"}})
	assert.True(t, check("https://app.example"))
	assert.True(t, check(""))
	assert.False(t, check("https://other.example"))
}
