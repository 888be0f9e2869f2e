package config

import (
	"net"
	"net/url"
	"strconv"
)

// ProviderConfig holds settings for one hosted model backend.
type ProviderConfig struct {
	APIKey         string
	Model          string
	MaxTokens      int
	TimeoutSeconds int
}

// CollabConfig holds the turn-orchestration settings.
type CollabConfig struct {
	MaxRounds          int
	TurnTimeoutSeconds int
	SynthesisMaxTokens int
	MaxPromptChars     int
}

// QuotaConfig holds the usage-gate settings.
type QuotaConfig struct {
	MaxConversations int
	// FallbackLimit is granted when the quota store is unreachable.
	FallbackLimit           int
	SuspiciousWindowMinutes int
}

// LedgerConfig holds the in-memory cost ledger settings.
type LedgerConfig struct {
	TTLMinutes       int
	MaxConversations int
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level      string
	LogDir     string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	Compress   bool
}

// HTTPConfig holds HTTP server settings.
type HTTPConfig struct {
	Host         string
	Port         int
	HTTP2Enabled bool
	CORSOrigins  []string
}

// HTTPAuthConfig holds the admin API key settings.
type HTTPAuthConfig struct {
	AdminAPIKey string
}

// HTTPRateLimitConfig holds request-rate limiting settings.
type HTTPRateLimitConfig struct {
	RequestsPerMinute int
	CacheSize         int
	CacheTTLSeconds   int
}

// RateLimitStoreConfig holds the optional shared window-store connection.
type RateLimitStoreConfig struct {
	URL          string
	Enabled      bool
	DisableCache bool
}

// DatabaseConfig holds quota DB connection settings.
type DatabaseConfig struct {
	Host     string
	Port     int
	Name     string
	User     string
	Password string
	MinPool  int
	MaxPool  int
}

// DSN returns the postgres connection string.
func (d DatabaseConfig) DSN() string {
	host := net.JoinHostPort(d.Host, strconv.Itoa(d.Port))
	u := &url.URL{
		Scheme: "postgresql",
		Host:   host,
		Path:   "/" + d.Name,
	}
	if d.Password == "" {
		u.User = url.User(d.User)
	} else {
		u.User = url.UserPassword(d.User, d.Password)
	}
	return u.String()
}

// Config is the whole application configuration.
type Config struct {
	OpenAI         ProviderConfig
	Anthropic      ProviderConfig
	Collab         CollabConfig
	Quota          QuotaConfig
	Ledger         LedgerConfig
	Logging        LoggingConfig
	HTTP           HTTPConfig
	HTTPAuth       HTTPAuthConfig
	HTTPRateLimit  HTTPRateLimitConfig
	RateLimitStore RateLimitStoreConfig
	Database       DatabaseConfig
}
