package specification

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type BySessionID struct {
	SessionID uuid.UUID
}

func (s BySessionID) Apply(db *gorm.DB) *gorm.DB {
	return db.Where("session_id = ?", s.SessionID)
}

type ByCustomerID struct {
	CustomerID uuid.UUID
}

func (s ByCustomerID) Apply(db *gorm.DB) *gorm.DB {
	return db.Where("customer_id = ?", s.CustomerID)
}

// StatusIn filters sessions by a set of lifecycle statuses.
type StatusIn struct {
	Statuses []string
}

func (s StatusIn) Apply(db *gorm.DB) *gorm.DB {
	return db.Where("status IN ?", s.Statuses)
}

// WaitingOrAssignedTo matches the agent queue view: sessions owned by the
// agent plus every session still sitting in the waiting queue.
type WaitingOrAssignedTo struct {
	AgentID uuid.UUID
}

func (s WaitingOrAssignedTo) Apply(db *gorm.DB) *gorm.DB {
	return db.Where("agent_id = ? OR status = 'waiting'", s.AgentID)
}

// NotSentBy matches messages a user did not author. Messages without a
// sender (system messages) always match.
type NotSentBy struct {
	UserID uuid.UUID
}

func (s NotSentBy) Apply(db *gorm.DB) *gorm.DB {
	return db.Where("sender_id IS NULL OR sender_id <> ?", s.UserID)
}

// ExpiresBefore matches typing rows past their expiry.
type ExpiresBefore struct {
	At time.Time
}

func (s ExpiresBefore) Apply(db *gorm.DB) *gorm.DB {
	return db.Where("expires_at <= ?", s.At)
}
