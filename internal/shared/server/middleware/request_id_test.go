package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
)

func TestRequestIDReplacesMalformedHeader(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(RequestID())
	router.GET("/health", func(c *gin.Context) {
		c.String(http.StatusOK, RequestIDFromContext(c))
	})

	for _, in := range []string{"", "bad id\nforged=1", strings.Repeat("a", maxRequestIDLen+1)} {
		req := httptest.NewRequest(http.MethodGet, "/health", nil)
		if in != "" {
			req.Header.Set(RequestIDHeader, in)
		}
		resp := httptest.NewRecorder()
		router.ServeHTTP(resp, req)

		got := resp.Header().Get(RequestIDHeader)
		if got == "" || got == in || resp.Body.String() != got {
			t.Fatalf("%q: expected a fresh id echoed in body and header, got %q / %q", in, got, resp.Body.String())
		}
	}
}
