package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"goride-payments/pkg/logger"
	"goride-payments/pkg/metrics"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/tidwall/gjson"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func TestRequestIDMiddleware(t *testing.T) {
	router := gin.New()
	router.Use(RequestIDMiddleware())
	router.GET("/ping", func(c *gin.Context) {
		fromCtx, _ := c.Request.Context().Value(logger.RequestIDKey).(string)
		c.String(http.StatusOK, fromCtx)
	})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.Header.Set(RequestIDHeader, "req-123")
	router.ServeHTTP(w, req)
	assert.Equal(t, "req-123", w.Header().Get(RequestIDHeader))
	assert.Equal(t, "req-123", w.Body.String())

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ping", nil))
	assert.Len(t, w.Header().Get(RequestIDHeader), 36)
	assert.Equal(t, w.Header().Get(RequestIDHeader), w.Body.String())
}

func TestCORSMiddleware(t *testing.T) {
	router := gin.New()
	router.Use(CORSMiddleware([]string{"https://app.goride.example"}))
	router.GET("/x", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodOptions, "/x", nil)
	req.Header.Set("Origin", "https://app.goride.example")
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "https://app.goride.example", w.Header().Get("Access-Control-Allow-Origin"))

	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set("Origin", "https://evil.example")
	router.ServeHTTP(w, req)
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
}

func TestRecoveryAndLogging(t *testing.T) {
	m := metrics.New()
	router := gin.New()
	router.Use(RequestIDMiddleware(), LoggingMiddleware(logger.NewNop(), m), RecoveryMiddleware(logger.NewNop()))
	router.GET("/boom", func(c *gin.Context) { panic("boom") })

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/boom", nil))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, "INTERNAL_ERROR", gjson.Get(w.Body.String(), "error.code").String())
	assert.Equal(t, float64(1), testutil.ToFloat64(m.HTTPRequestsTotal.WithLabelValues("GET", "/boom", "500")))
}

func TestCallbackSourceRequired(t *testing.T) {
	router := gin.New()
	router.POST("/cb", CallbackSourceRequired([]string{"196.201.214.0/24", "10.0.0.7", "bogus"}, logger.NewNop()), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	tests := []struct {
		remote string
		want   int
	}{
		{"196.201.214.200:4000", http.StatusOK},
		{"10.0.0.7:80", http.StatusOK},
		{"10.0.0.8:80", http.StatusForbidden},
		{"8.8.8.8:53", http.StatusForbidden},
	}
	for _, tt := range tests {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/cb", nil)
		req.RemoteAddr = tt.remote
		router.ServeHTTP(w, req)
		assert.Equal(t, tt.want, w.Code, tt.remote)
	}
}

func TestCallbackSourceRequiredEmptyAllowsAll(t *testing.T) {
	router := gin.New()
	router.POST("/cb", CallbackSourceRequired(nil, logger.NewNop()), func(c *gin.Context) { c.Status(http.StatusOK) })

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/cb", nil)
	req.RemoteAddr = "8.8.8.8:53"
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
}
