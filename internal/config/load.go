package config

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/joho/godotenv"
)

var (
	configOnce  sync.Once
	configValue *Config
)

// Load reads the environment-based configuration once.
func Load() *Config {
	configOnce.Do(func() {
		_ = godotenv.Load()
		configValue = buildConfig()
	})
	return configValue
}

// ProvideConfig loads and validates the configuration.
func ProvideConfig() (*Config, error) {
	cfg := Load()
	if cfg == nil {
		return nil, errors.New("config not initialized")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks configuration consistency.
func (c *Config) Validate() error {
	if c == nil {
		return errors.New("config is nil")
	}
	if c.OpenAI.Model == "" {
		return errors.New("openai model is empty")
	}
	if c.Anthropic.Model == "" {
		return errors.New("anthropic model is empty")
	}
	if c.Collab.MaxRounds <= 0 {
		return fmt.Errorf("collab max rounds must be positive: %d", c.Collab.MaxRounds)
	}
	if c.Quota.MaxConversations <= 0 {
		return fmt.Errorf("quota max conversations must be positive: %d", c.Quota.MaxConversations)
	}
	return nil
}

// LogEnvStatus reports the effective environment configuration.
func LogEnvStatus(cfg *Config, logger *slog.Logger) {
	if logger == nil || cfg == nil {
		return
	}

	envFilePresent := fileExists(".env")
	logger.Debug(
		"env_status",
		"env_file", envFilePresent,
		"openai_key", maskSecret(cfg.OpenAI.APIKey),
		"openai_model", cfg.OpenAI.Model,
		"anthropic_key", maskSecret(cfg.Anthropic.APIKey),
		"anthropic_model", cfg.Anthropic.Model,
		"max_rounds", cfg.Collab.MaxRounds,
		"turn_timeout", cfg.Collab.TurnTimeoutSeconds,
		"quota_limit", cfg.Quota.MaxConversations,
		"rate_limit_rpm", cfg.HTTPRateLimit.RequestsPerMinute,
		"rate_limit_store_url", cfg.RateLimitStore.URL,
		"db_host", cfg.Database.Host,
		"db_name", cfg.Database.Name,
	)

	if cfg.OpenAI.APIKey == "" && cfg.Anthropic.APIKey == "" {
		logger.Warn("env_missing_provider_keys")
	}
}

func buildConfig() *Config {
	return &Config{
		OpenAI: ProviderConfig{
			APIKey:         getEnvString("OPENAI_API_KEY", ""),
			Model:          getEnvString("OPENAI_MODEL", "gpt-4o"),
			MaxTokens:      getEnvInt("OPENAI_MAX_TOKENS", 4096),
			TimeoutSeconds: getEnvInt("OPENAI_TIMEOUT", 120),
		},
		Anthropic: ProviderConfig{
			APIKey:         getEnvString("ANTHROPIC_API_KEY", ""),
			Model:          getEnvString("ANTHROPIC_MODEL", "claude-sonnet-4-20250514"),
			MaxTokens:      getEnvInt("ANTHROPIC_MAX_TOKENS", 4096),
			TimeoutSeconds: getEnvInt("ANTHROPIC_TIMEOUT", 120),
		},
		Collab: CollabConfig{
			MaxRounds:          getEnvInt("COLLAB_MAX_ROUNDS", 5),
			TurnTimeoutSeconds: getEnvInt("COLLAB_TURN_TIMEOUT_SECONDS", 120),
			SynthesisMaxTokens: getEnvInt("COLLAB_SYNTHESIS_MAX_TOKENS", 4096),
			MaxPromptChars:     getEnvInt("COLLAB_MAX_PROMPT_CHARS", 8000),
		},
		Quota: QuotaConfig{
			MaxConversations:        getEnvInt("QUOTA_MAX_CONVERSATIONS", 3),
			FallbackLimit:           getEnvInt("QUOTA_FALLBACK_LIMIT", 1),
			SuspiciousWindowMinutes: max(1, getEnvNonNegativeInt("QUOTA_SUSPICIOUS_WINDOW_MINUTES", 60)),
		},
		Ledger: LedgerConfig{
			TTLMinutes:       max(1, getEnvNonNegativeInt("LEDGER_TTL_MINUTES", 60)),
			MaxConversations: max(1, getEnvNonNegativeInt("LEDGER_MAX_CONVERSATIONS", 10000)),
		},
		Logging: LoggingConfig{
			Level:      getEnvString("LOG_LEVEL", "info"),
			LogDir:     getEnvString("LOG_DIR", ""),
			MaxSizeMB:  getEnvInt("LOG_FILE_MAX_SIZE_MB", 1),
			MaxBackups: getEnvInt("LOG_FILE_MAX_BACKUPS", 30),
			MaxAgeDays: getEnvInt("LOG_FILE_MAX_AGE_DAYS", 7),
			Compress:   getEnvBool("LOG_FILE_COMPRESS", true),
		},
		HTTP: HTTPConfig{
			Host:         getEnvString("HTTP_HOST", "127.0.0.1"),
			Port:         getEnvInt("HTTP_PORT", 40310),
			HTTP2Enabled: getEnvBool("HTTP2_ENABLED", true),
			CORSOrigins:  splitList(getEnvString("CORS_ORIGINS", "")),
		},
		HTTPAuth: HTTPAuthConfig{
			AdminAPIKey: getEnvString("ADMIN_API_KEY", ""),
		},
		HTTPRateLimit: HTTPRateLimitConfig{
			RequestsPerMinute: getEnvNonNegativeInt("HTTP_RATE_LIMIT_RPM", 20),
			CacheSize:         max(1, getEnvNonNegativeInt("HTTP_RATE_LIMIT_CACHE_SIZE", 10000)),
			CacheTTLSeconds:   max(1, getEnvNonNegativeInt("HTTP_RATE_LIMIT_CACHE_TTL_SECONDS", 120)),
		},
		RateLimitStore: RateLimitStoreConfig{
			URL:          getEnvString("RATE_LIMIT_STORE_URL", "redis://localhost:6379"),
			Enabled:      getEnvBool("RATE_LIMIT_STORE_ENABLED", false),
			DisableCache: getEnvBool("RATE_LIMIT_STORE_DISABLE_CACHE", false),
		},
		Database: DatabaseConfig{
			Host:     getEnvString("DB_HOST", "localhost"),
			Port:     getEnvInt("DB_PORT", 5432),
			Name:     getEnvString("DB_NAME", "duolog"),
			User:     getEnvString("DB_USER", "duolog"),
			Password: getEnvString("DB_PASSWORD", ""),
			MinPool:  getEnvInt("DB_MIN_POOL", 1),
			MaxPool:  getEnvInt("DB_MAX_POOL", 5),
		},
	}
}
