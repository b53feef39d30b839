package middleware

import (
	"net/http"
	"runtime/debug"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/qs3c/qrcode_go_server/internal/pkg/metrics"
	"github.com/qs3c/qrcode_go_server/internal/pkg/response"
)

const (
	RequestIDHeader = "X-Request-ID"
	RequestIDKey    = "requestID"
)

// RequestID 透传或生成请求 ID
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(RequestIDHeader)
		if id == "" || len(id) > 64 {
			id = uuid.NewString()
		}
		c.Set(RequestIDKey, id)
		c.Header(RequestIDHeader, id)
		c.Next()
	}
}

// GetRequestID 当前请求 ID
func GetRequestID(c *gin.Context) string {
	return c.GetString(RequestIDKey)
}

// RequestLogger 记录访问日志和 HTTP 指标
func RequestLogger(m *metrics.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		duration := time.Since(start)

		// 使用路由模板作为标签，避免 public id 导致标签膨胀
		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		status := c.Writer.Status()

		if m != nil {
			m.HTTPRequestsTotal.WithLabelValues(c.Request.Method, path, strconv.Itoa(status)).Inc()
			m.HTTPRequestDuration.WithLabelValues(c.Request.Method, path).Observe(duration.Seconds())
		}

		entry := log.WithFields(log.Fields{
			"request_id": GetRequestID(c),
			"method":     c.Request.Method,
			"path":       c.Request.URL.Path,
			"status":     status,
			"duration":   duration.String(),
			"client_ip":  c.ClientIP(),
		})
		if userID, ok := GetUserID(c); ok {
			entry = entry.WithField("user_id", userID)
		}
		switch {
		case status >= http.StatusInternalServerError:
			entry.Error("Request failed")
		case len(c.Errors) > 0:
			entry.WithField("errors", c.Errors.String()).Warn("Request completed with errors")
		default:
			entry.Debug("Request completed")
		}
	}
}

// Recovery 捕获 panic，返回统一的服务器错误
func Recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if err := recover(); err != nil {
				log.WithFields(log.Fields{
					"request_id": GetRequestID(c),
					"path":       c.Request.URL.Path,
					"panic":      err,
				}).Errorf("Panic recovered\n%s", debug.Stack())
				response.AbortWithError(c, response.CodeServerError, "")
			}
		}()
		c.Next()
	}
}
