// Package middleware provides the ambient HTTP concerns the wfkernel API
// surface shares with every endpoint: request logging, panic recovery, and
// body-size limiting.
package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/smilemakc/wfkernel/internal/infrastructure/logger"
)

const (
	RequestIDHeader     = "X-Request-ID"
	ContextKeyRequestID = "request_id"
)

// LoggingMiddleware logs request start/completion with a stable request id.
type LoggingMiddleware struct {
	logger *logger.Logger
}

// NewLoggingMiddleware builds a LoggingMiddleware writing through log.
func NewLoggingMiddleware(log *logger.Logger) *LoggingMiddleware {
	return &LoggingMiddleware{logger: log}
}

// RequestLogger is the gin.HandlerFunc that logs each request.
func (m *LoggingMiddleware) RequestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		requestID := c.GetHeader(RequestIDHeader)
		if requestID == "" {
			requestID = uuid.New().String()
		}
		c.Set(ContextKeyRequestID, requestID)
		c.Header(RequestIDHeader, requestID)

		path := c.Request.URL.Path
		query := c.Request.URL.RawQuery
		method := c.Request.Method
		clientIP := c.ClientIP()

		m.logger.Info("request started",
			"request_id", requestID,
			"method", method,
			"path", path,
			"query", query,
			"client_ip", clientIP,
		)

		c.Next()

		duration := time.Since(start)
		statusCode := c.Writer.Status()

		logArgs := []any{
			"request_id", requestID,
			"method", method,
			"path", path,
			"status", statusCode,
			"duration_ms", duration.Milliseconds(),
			"response_size", c.Writer.Size(),
			"client_ip", clientIP,
		}
		if len(c.Errors) > 0 {
			logArgs = append(logArgs, "errors", c.Errors.String())
		}

		switch {
		case statusCode >= 500:
			m.logger.Error("request completed", logArgs...)
		case statusCode >= 400:
			m.logger.Warn("request completed", logArgs...)
		default:
			m.logger.Info("request completed", logArgs...)
		}
	}
}

// GetRequestID reads the request id stashed by RequestLogger.
func GetRequestID(c *gin.Context) string {
	v, exists := c.Get(ContextKeyRequestID)
	if !exists {
		return ""
	}
	return v.(string)
}
