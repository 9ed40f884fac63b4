package middleware

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"saintplus-client/internal/shared/telemetry"
)

// FileKeyContextKey lets handlers attach the transcript storage key to the request log.
const FileKeyContextKey = "fileKey"

// Logging emits a structured log per request.
func Logging() gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Method == http.MethodOptions {
			c.Next()
			return
		}

		start := time.Now()
		c.Next()

		fields := map[string]any{
			"request_id":  RequestIDFromContext(c),
			"method":      c.Request.Method,
			"path":        c.Request.URL.Path,
			"status":      c.Writer.Status(),
			"duration_ms": float64(time.Since(start).Microseconds()) / 1000.0,
			"user_id":     UserIDFromContext(c),
			"client_ip":   c.ClientIP(),
		}
		if key := c.GetString(FileKeyContextKey); key != "" {
			fields["file_key"] = key
		}
		telemetry.Info("request.complete", fields)
	}
}
