package server

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"saintplus-client/internal/shared/metrics"
	"saintplus-client/internal/shared/server/middleware"
	"saintplus-client/internal/shared/server/respond"
	"saintplus-client/internal/stubserver"
)

var (
	loginRule = middleware.RateLimitRule{Rate: 1, Burst: 5}
	apiRule   = middleware.RateLimitRule{Rate: 20, Burst: 40}
)

// NewRouter constructs the stand-in backend's gin engine.
func NewRouter(app *stubserver.App) *gin.Engine {
	if app.Config.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	limiter := middleware.NewRateLimiter(time.Now)

	r.Use(
		middleware.RequestID(),
		middleware.Logging(),
		middleware.Recovery(),
		middleware.CORS([]string{app.Config.CORSOrigin}),
	)

	r.GET("/health", func(c *gin.Context) {
		respond.JSON(c, http.StatusOK, gin.H{"ok": true})
	})
	r.GET("/metrics", metrics.Handler())
	app.Uploads.RegisterStorageRoutes(r)

	authPublic := r.Group("/api/auth", middleware.RateLimit("auth", loginRule, limiter))
	app.Auth.RegisterPublicRoutes(authPublic)

	requireAuth := middleware.Auth(app.Signer)
	apiLimit := middleware.RateLimit("api", apiRule, limiter)

	authPrivate := r.Group("/api/auth", requireAuth, apiLimit)
	app.Auth.RegisterRoutes(authPrivate)

	transcripts := r.Group("/api/v1/transcripts", requireAuth, apiLimit)
	app.Transcripts.RegisterRoutes(transcripts)
	app.Uploads.RegisterRoutes(transcripts)

	recommendations := r.Group("/api/recommendations", requireAuth, apiLimit)
	app.Recommend.RegisterRoutes(recommendations)

	app.Courses.RegisterSavedRoutes(r.Group("/api/saved-courses", requireAuth, apiLimit))
	app.Courses.RegisterStatsRoutes(r.Group("/api/course-stats", requireAuth, apiLimit))

	return r
}

// Addr normalizes the listen address.
func Addr(port string) string {
	if port == "" {
		return ":8080"
	}
	if port[0] == ':' {
		return port
	}
	return fmt.Sprintf(":%s", port)
}
