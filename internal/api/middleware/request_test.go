package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"

	"github.com/qs3c/qrcode_go_server/internal/pkg/metrics"
	"github.com/qs3c/qrcode_go_server/internal/pkg/response"
)

func TestRequestID(t *testing.T) {
	router := gin.New()
	router.Use(RequestID())
	router.GET("/test", func(c *gin.Context) {
		c.String(http.StatusOK, GetRequestID(c))
	})

	req := httptest.NewRequest("GET", "/test", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	generated := w.Header().Get(RequestIDHeader)
	assert.Len(t, generated, 36)
	assert.Equal(t, generated, w.Body.String())

	req = httptest.NewRequest("GET", "/test", nil)
	req.Header.Set(RequestIDHeader, "client-id-1")
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, "client-id-1", w.Header().Get(RequestIDHeader))

	req = httptest.NewRequest("GET", "/test", nil)
	req.Header.Set(RequestIDHeader, strings.Repeat("x", 65))
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Len(t, w.Header().Get(RequestIDHeader), 36)
}

func TestRequestLogger_RecordsMetrics(t *testing.T) {
	m := metrics.New()
	router := gin.New()
	router.Use(RequestID(), RequestLogger(m))
	router.GET("/qr/:public_id", func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	for _, id := range []string{"a", "b"} {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest("GET", "/qr/"+id, nil))
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest("GET", "/nope", nil))

	assert.Equal(t, float64(2), testutil.ToFloat64(m.HTTPRequestsTotal.WithLabelValues("GET", "/qr/:public_id", "200")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.HTTPRequestsTotal.WithLabelValues("GET", "unmatched", "404")))
}

func TestRecovery(t *testing.T) {
	router := gin.New()
	router.Use(RequestID(), Recovery())
	router.GET("/panic", func(c *gin.Context) {
		panic("boom")
	})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest("GET", "/panic", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	resp := parseResponse(t, w)
	assert.Equal(t, response.CodeServerError, resp.Code)
}
