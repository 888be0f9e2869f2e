package ratelimit

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"time"

	"github.com/valkey-io/valkey-go"

	"github.com/duolog/duolog-server/internal/config"
)

// ValkeyStore counts rate-limit windows in a shared valkey instance so
// multiple server instances see one window per identity.
type ValkeyStore struct {
	client valkey.Client
}

// NewValkeyStore connects to the configured valkey instance.
func NewValkeyStore(cfg config.RateLimitStoreConfig) (*ValkeyStore, error) {
	conn, err := parseStoreURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse rate limit store url: %w", err)
	}

	var tlsConfig *tls.Config
	if conn.useTLS {
		host, _, splitErr := net.SplitHostPort(conn.addr)
		if splitErr != nil {
			return nil, fmt.Errorf("parse rate limit store addr: %w", splitErr)
		}
		tlsConfig = &tls.Config{MinVersion: tls.VersionTLS12, ServerName: host}
	}

	client, err := valkey.NewClient(valkey.ClientOption{
		TLSConfig:    tlsConfig,
		Username:     conn.username,
		Password:     conn.password,
		InitAddress:  []string{conn.addr},
		SelectDB:     conn.selectDB,
		DisableCache: cfg.DisableCache,
	})
	if err != nil {
		return nil, fmt.Errorf("connect to valkey: %w", err)
	}

	return &ValkeyStore{client: client}, nil
}

// Incr bumps the window counter for identity. The key carries the window
// index, so the expiry only needs to outlive the window.
func (s *ValkeyStore) Incr(ctx context.Context, identity string) (int64, error) {
	window, _ := currentWindow(time.Now())
	key := fmt.Sprintf("ratelimit:%s:%d", identity, window)

	incrCmd := s.client.B().Incr().Key(key).Build()
	count, err := s.client.Do(ctx, incrCmd).AsInt64()
	if err != nil {
		return 0, fmt.Errorf("incr rate limit counter: %w", err)
	}

	if count == 1 {
		expireCmd := s.client.B().Expire().Key(key).Seconds(windowSeconds * 2).Build()
		if err := s.client.Do(ctx, expireCmd).Error(); err != nil {
			return count, fmt.Errorf("set rate limit expiry: %w", err)
		}
	}

	return count, nil
}

// Ping checks the valkey connection.
func (s *ValkeyStore) Ping(ctx context.Context) error {
	cmd := s.client.B().Ping().Build()
	return s.client.Do(ctx, cmd).Error()
}

// Close closes the valkey client.
func (s *ValkeyStore) Close() {
	s.client.Close()
}

var _ Store = (*ValkeyStore)(nil)
