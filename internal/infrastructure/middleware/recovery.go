package middleware

import (
	"fmt"
	"net/http"
	"runtime/debug"

	"github.com/gin-gonic/gin"

	"github.com/smilemakc/wfkernel/internal/infrastructure/logger"
)

// RecoveryMiddleware converts a panic in a handler into a logged 500
// response instead of crashing the process.
type RecoveryMiddleware struct {
	logger *logger.Logger
}

// NewRecoveryMiddleware builds a RecoveryMiddleware writing through log.
func NewRecoveryMiddleware(log *logger.Logger) *RecoveryMiddleware {
	return &RecoveryMiddleware{logger: log}
}

// Recovery is the gin.HandlerFunc that recovers panics.
func (m *RecoveryMiddleware) Recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				requestID := GetRequestID(c)

				m.logger.Error("panic recovered",
					"request_id", requestID,
					"method", c.Request.Method,
					"path", c.Request.URL.Path,
					"error", r,
					"stack", string(debug.Stack()),
				)

				apiErr := NewAPIError(
					"INTERNAL_ERROR",
					fmt.Sprintf("internal server error (request_id: %s)", requestID),
					http.StatusInternalServerError,
				)
				c.AbortWithStatusJSON(apiErr.HTTPStatus, apiErr)
			}
		}()
		c.Next()
	}
}
