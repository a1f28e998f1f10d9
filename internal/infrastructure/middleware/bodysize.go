package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// BodySizeMiddleware rejects request bodies larger than maxBodySize.
type BodySizeMiddleware struct {
	maxBodySize int64
}

// NewBodySizeMiddleware builds a BodySizeMiddleware with the given cap.
func NewBodySizeMiddleware(maxBodySize int64) *BodySizeMiddleware {
	return &BodySizeMiddleware{maxBodySize: maxBodySize}
}

// LimitBodySize is the gin.HandlerFunc enforcing the cap.
func (m *BodySizeMiddleware) LimitBodySize() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, m.maxBodySize)
		c.Next()
	}
}
