package quota

import "time"

// UsageRecord is the persisted per-identity conversation counter.
// conversations_used only moves forward except through Reset.
type UsageRecord struct {
	IdentityKey        string    `gorm:"column:identity_key;primaryKey"`
	ConversationsUsed  int64     `gorm:"column:conversations_used"`
	MaxConversations   int64     `gorm:"column:max_conversations"`
	HasOwnCredentials  bool      `gorm:"column:has_own_credentials"`
	EmailVerified      bool      `gorm:"column:email_verified"`
	CreatedAt          time.Time `gorm:"column:created_at"`
	LastConversationAt time.Time `gorm:"column:last_conversation_at"`
}

// TableName returns the table used by GORM.
func (UsageRecord) TableName() string {
	return "usage_records"
}

// Remaining returns how many conversations are left for this record.
func (r UsageRecord) Remaining() int64 {
	remaining := r.MaxConversations - r.ConversationsUsed
	if remaining < 0 {
		return 0
	}
	return remaining
}

// Decision is the outcome of an admission check.
type Decision struct {
	Allowed       bool
	Used          int
	Limit         int
	HasOwnKeys    bool
	EmailVerified bool
	// Reason is set when Allowed is false: "verification_required" or
	// "limit_reached".
	Reason string
	// Degraded marks a fail-open decision taken while the store was
	// unreachable.
	Degraded bool
}
