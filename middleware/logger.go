package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ContextLogger holds the request-scoped *zap.Logger read by handlers.
const ContextLogger = "logger"

const requestIDHeader = "X-Request-ID"

// RequestLogger attaches a logger tagged with the request id, method and route, and logs the
// outcome of every request once it has been served.
func RequestLogger(base *zap.Logger) gin.HandlerFunc {
	if base == nil {
		base = zap.NewNop()
	}
	return func(c *gin.Context) {
		requestID := c.GetHeader(requestIDHeader)
		if requestID == "" {
			requestID = uuid.New().String()
		}
		c.Header(requestIDHeader, requestID)

		route := c.FullPath()
		if route == "" {
			route = c.Request.URL.Path
		}
		logger := base.With(
			zap.String("requestID", requestID),
			zap.String("method", c.Request.Method),
			zap.String("route", route))
		c.Set(ContextLogger, logger)

		start := time.Now()
		c.Next()
		logger.Info("request served",
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
			zap.String("clientIP", getClientIP(c)))
	}
}
