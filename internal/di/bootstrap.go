package di

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/duolog/duolog-server/internal/collab"
	"github.com/duolog/duolog-server/internal/config"
	"github.com/duolog/duolog-server/internal/handler"
	"github.com/duolog/duolog-server/internal/ledger"
	"github.com/duolog/duolog-server/internal/logging"
	"github.com/duolog/duolog-server/internal/metrics"
	anthropicprovider "github.com/duolog/duolog-server/internal/provider/anthropic"
	openaiprovider "github.com/duolog/duolog-server/internal/provider/openai"
	"github.com/duolog/duolog-server/internal/quota"
	"github.com/duolog/duolog-server/internal/ratelimit"
	"github.com/duolog/duolog-server/internal/server"
)

// InitializeApp wires the application dependencies and returns an App.
func InitializeApp() (*App, error) {
	cfg, err := config.ProvideConfig()
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	logger, err := ProvideLogger(cfg)
	if err != nil {
		return nil, fmt.Errorf("logger: %w", err)
	}

	metricsStore := metrics.NewStore()

	providerA, err := openaiprovider.NewClient(cfg, metricsStore)
	if err != nil {
		return nil, fmt.Errorf("openai client: %w", err)
	}
	providerB, err := anthropicprovider.NewClient(cfg, metricsStore)
	if err != nil {
		return nil, fmt.Errorf("anthropic client: %w", err)
	}

	quotaRepository := quota.NewRepository(cfg, logger)
	gate := quota.NewGate(cfg, quotaRepository, logger)
	resolver := quota.NewResolver()
	suspicious := quota.NewSuspiciousTracker(
		time.Duration(cfg.Quota.SuspiciousWindowMinutes) * time.Minute)

	ledgerStore := ledger.NewStore(cfg.Ledger)
	rateLimitStore, err := ProvideRateLimitStore(cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("rate limit store: %w", err)
	}

	orchestrator := collab.NewOrchestrator(
		cfg, providerA, providerB, collab.NewPhraseDetector(), gate, ledgerStore, logger)

	collaborateHandler := handler.NewCollaborateHandler(cfg, orchestrator, gate, resolver, suspicious, logger)
	usageHandler := handler.NewUsageHandler(cfg, gate, resolver, ledgerStore, logger)
	adminHandler := handler.NewAdminHandler(gate, resolver, suspicious, logger)

	router := handler.NewRouter(cfg, logger,
		collaborateHandler, usageHandler, adminHandler, rateLimitStore, metricsStore)
	httpServer := server.NewHTTPServer(cfg, router)

	return NewApp(httpServer, logger, cfg, quotaRepository, rateLimitStore), nil
}

// ProvideLogger builds the application logger.
func ProvideLogger(cfg *config.Config) (*slog.Logger, error) {
	logger, err := logging.NewLogger(cfg.Logging)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}
	return logger, nil
}

// ProvideRateLimitStore selects the valkey-backed store when configured,
// falling back to the in-process store otherwise.
func ProvideRateLimitStore(cfg *config.Config, logger *slog.Logger) (ratelimit.Store, error) {
	if cfg.RateLimitStore.Enabled && cfg.RateLimitStore.URL != "" {
		store, err := ratelimit.NewValkeyStore(cfg.RateLimitStore)
		if err != nil {
			return nil, fmt.Errorf("valkey store: %w", err)
		}
		logger.Info("rate_limit_store", "backend", "valkey")
		return store, nil
	}

	ttl := time.Duration(cfg.HTTPRateLimit.CacheTTLSeconds) * time.Second
	logger.Info("rate_limit_store", "backend", "memory")
	return ratelimit.NewMemoryStore(cfg.HTTPRateLimit.CacheSize, ttl), nil
}
