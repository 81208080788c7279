package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/nitrodl/nitro-downloader/pkg/logger"
	"go.uber.org/zap"
)

// Logger returns a gin middleware for logging
func Logger(log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		query := c.Request.URL.RawQuery

		c.Next()

		log.Info("HTTP request",
			zap.String("method", c.Request.Method),
			zap.String("path", path),
			zap.String("query", query),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
			zap.String("client_ip", c.ClientIP()),
			zap.String("request_id", c.GetString(RequestIDKey)),
		)
	}
}

// LoggerWithAdapter logs requests to the general logger and server-side
// failures to the error log as well
func LoggerWithAdapter(logAdapter *logger.LoggerAdapter) gin.HandlerFunc {
	base := Logger(logAdapter.General())
	return func(c *gin.Context) {
		base(c)

		if status := c.Writer.Status(); status >= 500 {
			logAdapter.Error().Error("HTTP error response",
				zap.String("method", c.Request.Method),
				zap.String("path", c.Request.URL.Path),
				zap.Int("status", status),
				zap.String("request_id", c.GetString(RequestIDKey)),
				zap.Strings("errors", c.Errors.Errors()),
			)
		}
	}
}
