package di

import (
	"log/slog"
	"net/http"

	"github.com/duolog/duolog-server/internal/config"
	"github.com/duolog/duolog-server/internal/quota"
	"github.com/duolog/duolog-server/internal/ratelimit"
)

// App bundles the application components.
type App struct {
	Server          *http.Server
	Logger          *slog.Logger
	Config          *config.Config
	QuotaRepository *quota.Repository
	RateLimitStore  ratelimit.Store
}

// NewApp creates an App instance.
func NewApp(
	server *http.Server,
	logger *slog.Logger,
	cfg *config.Config,
	quotaRepository *quota.Repository,
	rateLimitStore ratelimit.Store,
) *App {
	return &App{
		Server:          server,
		Logger:          logger,
		Config:          cfg,
		QuotaRepository: quotaRepository,
		RateLimitStore:  rateLimitStore,
	}
}

// Close releases app resources.
func (a *App) Close() {
	if a.RateLimitStore != nil {
		a.RateLimitStore.Close()
	}
	if a.QuotaRepository != nil {
		a.QuotaRepository.Close()
	}
}
