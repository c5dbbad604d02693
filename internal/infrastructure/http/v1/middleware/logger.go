package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"metaschema/pkg/logger"
)

// Logger logs every request with its status and latency. Health probes are
// logged at debug level.
func Logger(log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		query := c.Request.URL.RawQuery

		c.Next()

		l := log.WithContext(c.Request.Context())
		fields := []any{
			"method", c.Request.Method,
			"path", path,
			"query", query,
			"status", c.Writer.Status(),
			"latency_ms", time.Since(start).Milliseconds(),
			"client_ip", c.ClientIP(),
		}
		if errs := c.Errors.ByType(gin.ErrorTypePrivate).String(); errs != "" {
			fields = append(fields, "error", errs)
		}
		if c.FullPath() == "/health/live" || c.FullPath() == "/health/ready" {
			l.Debugw("http request", fields...)
			return
		}
		l.Infow("http request", fields...)
	}
}
