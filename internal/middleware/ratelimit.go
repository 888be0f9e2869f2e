package middleware

import (
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/duolog/duolog-server/internal/config"
	"github.com/duolog/duolog-server/internal/httperror"
	"github.com/duolog/duolog-server/internal/ratelimit"
)

// RateLimit bounds per-identity request rates over a fixed one-minute
// window. A store outage lets the request through.
func RateLimit(cfg *config.Config, store ratelimit.Store) gin.HandlerFunc {
	limit := 0
	if cfg != nil {
		limit = cfg.HTTPRateLimit.RequestsPerMinute
	}

	return func(c *gin.Context) {
		if limit <= 0 || store == nil {
			c.Next()
			return
		}

		if c.Request.Method == http.MethodOptions || !shouldRateLimitPath(c.Request.URL.Path) {
			c.Next()
			return
		}

		identity := rateLimitIdentity(c)
		count, err := store.Incr(c.Request.Context(), identity)
		if err != nil {
			c.Next()
			return
		}

		if count > int64(limit) {
			details := map[string]any{
				"path":             c.Request.URL.Path,
				"limit_per_minute": limit,
			}
			resetTime := ratelimit.WindowReset(time.Now())
			status, payload := httperror.Response(
				httperror.NewRateLimitExceeded(0, resetTime, details), GetRequestID(c))
			c.AbortWithStatusJSON(status, payload)
			return
		}

		c.Next()
	}
}

func shouldRateLimitPath(path string) bool {
	return strings.HasPrefix(path, "/api/")
}

func rateLimitIdentity(c *gin.Context) string {
	if key := extractAPIKey(c); key != "" {
		return "key:" + hashKey(key)
	}

	forwarded := strings.TrimSpace(c.GetHeader("X-Forwarded-For"))
	if forwarded != "" {
		ip := strings.TrimSpace(strings.Split(forwarded, ",")[0])
		if ip != "" {
			return "ip:" + ip
		}
	}

	if c.ClientIP() != "" {
		return "ip:" + c.ClientIP()
	}

	return "ip:unknown"
}

func hashKey(value string) string {
	sum := sha256.Sum256([]byte(value))
	encoded := hex.EncodeToString(sum[:])
	return encoded[:16]
}
