package middleware

import (
	"net/http"
	"runtime/debug"

	"github.com/gin-gonic/gin"

	"saintplus-client/internal/shared/server/respond"
	"saintplus-client/internal/shared/telemetry"
)

// Recovery turns a handler panic into a 500 envelope. Nothing is written if
// the handler already started the response.
func Recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			fields := map[string]any{
				"request_id": RequestIDFromContext(c),
				"route":      c.FullPath(),
				"panic":      rec,
				"stack":      string(debug.Stack()),
			}
			if uid := UserIDFromContext(c); uid != "" {
				fields["user_id"] = uid
			}
			telemetry.Error("http.panic", fields)
			if c.Writer.Written() {
				c.Abort()
				return
			}
			respond.Error(c, http.StatusInternalServerError, "internal", "서버 오류가 발생했습니다.", nil)
		}()
		c.Next()
	}
}
