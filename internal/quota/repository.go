package quota

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"

	"github.com/duolog/duolog-server/internal/config"
)

// ErrRecordNotFound is returned when no usage record exists for an identity.
var ErrRecordNotFound = errors.New("usage record not found")

// Store is the usage-record persistence interface.
// Tests inject mock implementations.
type Store interface {
	// GetOrCreate loads the record for identityKey, creating it with
	// defaultLimit on first sight.
	GetOrCreate(ctx context.Context, identityKey string, defaultLimit int64) (*UsageRecord, error)

	// Increment atomically bumps conversations_used by one.
	Increment(ctx context.Context, identityKey string) error

	// Reset sets conversations_used back to zero, leaving verification
	// and limit untouched.
	Reset(ctx context.Context, identityKey string) error

	// SetVerified flips the email_verified flag.
	SetVerified(ctx context.Context, identityKey string, verified bool) error

	// Close releases the DB connection.
	Close()
}

// Repository is the GORM-backed usage record store.
type Repository struct {
	cfg    *config.Config
	logger *slog.Logger
	mu     sync.Mutex
	db     *gorm.DB
	sqlDB  *sql.DB
}

// NewRepository creates a usage record repository. The connection is
// opened lazily on first use.
func NewRepository(cfg *config.Config, logger *slog.Logger) *Repository {
	return &Repository{
		cfg:    cfg,
		logger: logger,
	}
}

// GetOrCreate loads or lazily creates the record for identityKey.
func (r *Repository) GetOrCreate(ctx context.Context, identityKey string, defaultLimit int64) (*UsageRecord, error) {
	db, err := r.getDB(ctx)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	row := UsageRecord{
		IdentityKey:        identityKey,
		ConversationsUsed:  0,
		MaxConversations:   defaultLimit,
		CreatedAt:          now,
		LastConversationAt: now,
	}
	if err := db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "identity_key"}},
		DoNothing: true,
	}).Create(&row).Error; err != nil {
		return nil, fmt.Errorf("create usage record: %w", err)
	}

	var loaded UsageRecord
	if err := db.WithContext(ctx).Where("identity_key = ?", identityKey).First(&loaded).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrRecordNotFound
		}
		return nil, fmt.Errorf("load usage record: %w", err)
	}
	return &loaded, nil
}

// Increment bumps conversations_used by one inside the database, so
// concurrent conversations for the same identity never lose updates.
func (r *Repository) Increment(ctx context.Context, identityKey string) error {
	db, err := r.getDB(ctx)
	if err != nil {
		return err
	}

	result := db.WithContext(ctx).Model(&UsageRecord{}).
		Where("identity_key = ?", identityKey).
		Updates(map[string]any{
			"conversations_used":   gorm.Expr("conversations_used + 1"),
			"last_conversation_at": time.Now(),
		})
	if result.Error != nil {
		return fmt.Errorf("increment usage record: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrRecordNotFound
	}
	return nil
}

// Reset zeroes conversations_used for identityKey.
func (r *Repository) Reset(ctx context.Context, identityKey string) error {
	db, err := r.getDB(ctx)
	if err != nil {
		return err
	}

	result := db.WithContext(ctx).Model(&UsageRecord{}).
		Where("identity_key = ?", identityKey).
		Update("conversations_used", 0)
	if result.Error != nil {
		return fmt.Errorf("reset usage record: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrRecordNotFound
	}
	return nil
}

// SetVerified flips the email_verified flag for identityKey.
func (r *Repository) SetVerified(ctx context.Context, identityKey string, verified bool) error {
	db, err := r.getDB(ctx)
	if err != nil {
		return err
	}

	result := db.WithContext(ctx).Model(&UsageRecord{}).
		Where("identity_key = ?", identityKey).
		Update("email_verified", verified)
	if result.Error != nil {
		return fmt.Errorf("set usage record verified: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrRecordNotFound
	}
	return nil
}

// Close closes the DB connection.
func (r *Repository) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.sqlDB == nil {
		return
	}
	_ = r.sqlDB.Close()
	r.sqlDB = nil
	r.db = nil
}

func (r *Repository) getDB(ctx context.Context) (*gorm.DB, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.db != nil {
		return r.db, nil
	}
	if r.cfg == nil {
		return nil, errors.New("database config is nil")
	}

	dsn := r.cfg.Database.DSN()
	gormCfg := &gorm.Config{Logger: gormlogger.Default.LogMode(gormlogger.Silent)}
	db, err := gorm.Open(postgres.Open(dsn), gormCfg)
	if err != nil {
		return nil, fmt.Errorf("open quota db: %w", err)
	}

	if schemaErr := ensureQuotaSchema(db); schemaErr != nil {
		return nil, fmt.Errorf("prepare quota db: %w", schemaErr)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("get quota db handle: %w", err)
	}

	sqlDB.SetMaxIdleConns(r.cfg.Database.MinPool)
	sqlDB.SetMaxOpenConns(r.cfg.Database.MaxPool)

	if r.logger != nil {
		r.logger.Info("quota_db_connected", "host", r.cfg.Database.Host, "name", r.cfg.Database.Name)
	}

	r.db = db
	r.sqlDB = sqlDB
	return db, nil
}

func ensureQuotaSchema(db *gorm.DB) error {
	if db == nil {
		return errors.New("db is nil")
	}

	if err := db.Exec(`
			CREATE TABLE IF NOT EXISTS usage_records (
				identity_key TEXT PRIMARY KEY,
				conversations_used BIGINT NOT NULL DEFAULT 0,
				max_conversations BIGINT NOT NULL DEFAULT 3,
				has_own_credentials BOOLEAN NOT NULL DEFAULT FALSE,
				email_verified BOOLEAN NOT NULL DEFAULT FALSE,
				created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
				last_conversation_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
			)
		`).Error; err != nil {
		return fmt.Errorf("create usage_records table: %w", err)
	}

	return nil
}

var _ Store = (*Repository)(nil)
