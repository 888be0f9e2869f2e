package handler

import (
	"log/slog"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"

	"github.com/duolog/duolog-server/internal/config"
	"github.com/duolog/duolog-server/internal/metrics"
	"github.com/duolog/duolog-server/internal/middleware"
	"github.com/duolog/duolog-server/internal/ratelimit"
)

// NewRouter builds the HTTP router.
func NewRouter(
	cfg *config.Config,
	logger *slog.Logger,
	collaborateHandler *CollaborateHandler,
	usageHandler *UsageHandler,
	adminHandler *AdminHandler,
	rateLimitStore ratelimit.Store,
	metricsStore *metrics.Store,
) *gin.Engine {
	setGinMode(cfg.Logging.Level)

	router := gin.New()
	router.Use(
		middleware.RequestID(),
		middleware.RequestLogger(logger),
		gin.Recovery(),
		corsMiddleware(cfg),
		gzip.Gzip(gzip.DefaultCompression, gzip.WithExcludedPaths([]string{CollaboratePath})),
		middleware.AdminKeyAuth(cfg),
		middleware.RateLimit(cfg, rateLimitStore),
	)

	RegisterHealthRoutes(router, cfg, metricsStore)
	collaborateHandler.RegisterRoutes(router)
	usageHandler.RegisterRoutes(router)
	adminHandler.RegisterRoutes(router)

	return router
}

func corsMiddleware(cfg *config.Config) gin.HandlerFunc {
	corsConfig := cors.Config{
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", "X-API-Key", middleware.RequestIDHeader},
		ExposeHeaders:    []string{middleware.RequestIDHeader},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	if len(cfg.HTTP.CORSOrigins) == 0 {
		corsConfig.AllowAllOrigins = true
		corsConfig.AllowCredentials = false
	} else {
		corsConfig.AllowOrigins = cfg.HTTP.CORSOrigins
	}
	return cors.New(corsConfig)
}

func setGinMode(level string) {
	if strings.EqualFold(strings.TrimSpace(level), "debug") {
		gin.SetMode(gin.DebugMode)
		return
	}
	gin.SetMode(gin.ReleaseMode)
}
