package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/duolog/duolog-server/internal/config"
	"github.com/duolog/duolog-server/internal/metrics"
)

// ModelConfigResponse reports the configured provider models.
type ModelConfigResponse struct {
	ModelA         string `json:"model_a"`
	ModelB         string `json:"model_b"`
	MaxRounds      int    `json:"max_rounds"`
	TimeoutSeconds int    `json:"timeout_seconds"`
	HTTP2Enabled   bool   `json:"http2_enabled"`
	TransportMode  string `json:"transport_mode"`
}

// RegisterHealthRoutes registers health, model info and metrics routes.
func RegisterHealthRoutes(router *gin.Engine, cfg *config.Config, metricsStore *metrics.Store) {
	router.GET("/health", func(c *gin.Context) {
		// Liveness stays shallow: a provider or store outage must not
		// mark the process down.
		c.JSON(http.StatusOK, gin.H{"status": "ok", "service": "duolog-server"})
	})

	router.GET("/health/models", func(c *gin.Context) {
		transportMode := "h1"
		if cfg.HTTP.HTTP2Enabled {
			transportMode = "h2c"
		}
		c.JSON(http.StatusOK, ModelConfigResponse{
			ModelA:         cfg.OpenAI.Model,
			ModelB:         cfg.Anthropic.Model,
			MaxRounds:      cfg.Collab.MaxRounds,
			TimeoutSeconds: cfg.Collab.TurnTimeoutSeconds,
			HTTP2Enabled:   cfg.HTTP.HTTP2Enabled,
			TransportMode:  transportMode,
		})
	})

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	router.GET("/api/metrics", func(c *gin.Context) {
		c.JSON(http.StatusOK, metricsStore.Snapshot())
	})
}
