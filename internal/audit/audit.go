// Package audit keeps an append-only log of moderation verdicts and
// block actions in a local SQLite database. Writes are best-effort: a
// failed audit write never blocks message handling.
package audit

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// Actions recorded in the audit log.
const (
	ActionModerationUnsafe = "moderation_unsafe"
	ActionModerationSafe   = "moderation_safe"
	ActionBlock            = "block"
	ActionUnblock          = "unblock"
	ActionAppealAccepted   = "appeal_accepted"
	ActionAppealRejected   = "appeal_rejected"
)

// Entry is one audit record.
type Entry struct {
	ID        string    `gorm:"primaryKey"`
	GuestID   string    `gorm:"index"`
	Action    string    `gorm:"index"`
	Reason    string    `gorm:"type:text"`
	CreatedAt time.Time `gorm:"autoCreateTime"`
}

// TableName implements the GORM tabler interface.
func (Entry) TableName() string { return "audit_entries" }

// Log writes audit records. A nil *Log is valid and drops all writes,
// which keeps the audit trail optional.
type Log struct {
	db *gorm.DB
}

// Open initializes the audit database at path and migrates the schema.
func Open(path string) (*Log, error) {
	if path == "" {
		return nil, fmt.Errorf("audit database path cannot be empty")
	}

	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open audit database: %w", err)
	}
	if err := db.AutoMigrate(&Entry{}); err != nil {
		return nil, fmt.Errorf("failed to migrate audit database: %w", err)
	}

	log.Info().Str("path", path).Msg("Audit log opened")
	return &Log{db: db}, nil
}

// Record appends an entry. Errors are logged, never returned.
func (l *Log) Record(guestID, action, reason string) {
	if l == nil || l.db == nil {
		return
	}
	entry := Entry{
		ID:      uuid.New().String(),
		GuestID: guestID,
		Action:  action,
		Reason:  reason,
	}
	if err := l.db.Create(&entry).Error; err != nil {
		log.Warn().Err(err).Str("guestID", guestID).Str("action", action).Msg("Failed to write audit entry")
	}
}

// CountByAction returns how many entries exist for one action.
func (l *Log) CountByAction(action string) int64 {
	if l == nil || l.db == nil {
		return 0
	}
	var count int64
	if err := l.db.Model(&Entry{}).Where("action = ?", action).Count(&count).Error; err != nil {
		log.Warn().Err(err).Str("action", action).Msg("Failed to count audit entries")
		return 0
	}
	return count
}
