// Package audit records session lifecycle events to the database.
//
// It gives the app a durable history of connection activity (opens,
// closes, binds, reconnections) for the activity view and for debugging
// field reports. Entries are retained for a configurable number of days
// and purged on a schedule.
package audit

import (
	"fmt"
	"log"
	"sync"
	"time"

	"gorm.io/gorm"

	"github.com/skiffterm/skiff/internal/logutil"
)

// DefaultRetentionDays is the default number of days to keep audit logs.
const DefaultRetentionDays = 90

// SessionAuditLog is one recorded lifecycle event.
type SessionAuditLog struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	SessionID string    `gorm:"index" json:"session_id"`
	ServerID  string    `gorm:"index" json:"server_id"`
	EventType string    `gorm:"index" json:"event_type"`
	Details   string    `json:"details"`
	CreatedAt time.Time `json:"created_at"`
}

// Auditor writes and queries session audit records.
type Auditor struct {
	mu            sync.RWMutex
	db            *gorm.DB
	retentionDays int
	nowFn         func() time.Time // injectable clock for testing
}

// NewAuditor creates an Auditor writing to the given database. If
// retentionDays is 0, DefaultRetentionDays is used.
func NewAuditor(db *gorm.DB, retentionDays int) (*Auditor, error) {
	if retentionDays <= 0 {
		retentionDays = DefaultRetentionDays
	}
	if err := db.AutoMigrate(&SessionAuditLog{}); err != nil {
		return nil, fmt.Errorf("auto-migrate audit log: %w", err)
	}
	return &Auditor{
		db:            db,
		retentionDays: retentionDays,
		nowFn:         time.Now,
	}, nil
}

// Log records an audit event to the database and standard logger.
func (a *Auditor) Log(sessionID, serverID, eventType, details string) error {
	record := SessionAuditLog{
		SessionID: sessionID,
		ServerID:  serverID,
		EventType: eventType,
		Details:   details,
		CreatedAt: a.now(),
	}
	if err := a.db.Create(&record).Error; err != nil {
		log.Printf("[audit] failed to write audit log: %v", err)
		return err
	}
	log.Printf("[audit] %s session=%s server=%s details=%s",
		eventType, sessionID, serverID, logutil.SanitizeForLog(details))
	return nil
}

// QueryOptions specifies filters for retrieving audit logs.
type QueryOptions struct {
	SessionID string
	ServerID  string
	EventType string
	Since     *time.Time
	Limit     int
}

// Query retrieves audit entries matching the options, newest first.
func (a *Auditor) Query(opts QueryOptions) ([]SessionAuditLog, error) {
	q := a.db.Model(&SessionAuditLog{}).Order("created_at DESC")
	if opts.SessionID != "" {
		q = q.Where("session_id = ?", opts.SessionID)
	}
	if opts.ServerID != "" {
		q = q.Where("server_id = ?", opts.ServerID)
	}
	if opts.EventType != "" {
		q = q.Where("event_type = ?", opts.EventType)
	}
	if opts.Since != nil {
		q = q.Where("created_at >= ?", *opts.Since)
	}
	if opts.Limit > 0 {
		q = q.Limit(opts.Limit)
	}

	var entries []SessionAuditLog
	if err := q.Find(&entries).Error; err != nil {
		return nil, fmt.Errorf("query audit logs: %w", err)
	}
	return entries, nil
}

// PurgeExpired removes entries older than the retention period. Returns
// the number of rows deleted. Meant to be run on a schedule.
func (a *Auditor) PurgeExpired() (int64, error) {
	cutoff := a.now().AddDate(0, 0, -a.retentionDays)
	res := a.db.Where("created_at < ?", cutoff).Delete(&SessionAuditLog{})
	if res.Error != nil {
		return 0, fmt.Errorf("purge audit logs: %w", res.Error)
	}
	if res.RowsAffected > 0 {
		log.Printf("[audit] purged %d entries older than %s", res.RowsAffected, cutoff.Format(time.RFC3339))
	}
	return res.RowsAffected, nil
}

func (a *Auditor) now() time.Time {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.nowFn()
}

// SetNowFunc overrides the clock, for tests.
func (a *Auditor) SetNowFunc(fn func() time.Time) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.nowFn = fn
}
