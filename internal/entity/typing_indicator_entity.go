package entity

import (
	"time"

	"github.com/google/uuid"
)

// TypingTTL is the forward expiry stamped on every typing ping.
const TypingTTL = 10 * time.Second

// TypingIndicator is an ephemeral row keyed by (session, user). It exists
// only while the user is composing and is removed on stop, send, disconnect
// or by the janitor sweep.
type TypingIndicator struct {
	SessionId uuid.UUID
	UserId    uuid.UUID
	StartedAt time.Time
	ExpiresAt time.Time
}

// Expired reports whether the indicator is past its expiry at the given time.
func (t *TypingIndicator) Expired(now time.Time) bool {
	return !t.ExpiresAt.After(now)
}
