package contract

import (
	"context"
	"time"

	"marketplace-be/internal/entity"

	"github.com/google/uuid"
)

type ChatSessionRepository interface {
	Create(ctx context.Context, session *entity.ChatSession) error
	Update(ctx context.Context, session *entity.ChatSession) error
	// FindByID returns (nil, nil) when no session exists.
	FindByID(ctx context.Context, id uuid.UUID) (*entity.ChatSession, error)
	// FindActive returns every session in {waiting, active}, newest-created first.
	FindActive(ctx context.Context) ([]*entity.ChatSession, error)
	// FindActiveForAgent returns sessions assigned to the agent plus every
	// still-waiting session, newest-created first.
	FindActiveForAgent(ctx context.Context, agentId uuid.UUID) ([]*entity.ChatSession, error)
	// FindByCustomer returns all sessions for a customer regardless of
	// status, ordered by last-message time descending with nulls last,
	// falling back to creation time.
	FindByCustomer(ctx context.Context, customerId uuid.UUID) ([]*entity.ChatSession, error)

	// AcceptWaiting performs the single conditional write that resolves the
	// accept race: set status=active and stamp the agent only if the session
	// is still waiting. Returns false when no row was affected.
	AcceptWaiting(ctx context.Context, sessionId, agentId uuid.UUID, acceptedAt time.Time) (bool, error)

	// UpdateStatusFrom is a compare-and-swap on status. closedAt is written
	// only when non-nil. Returns false when the session was not in the
	// expected `from` status.
	UpdateStatusFrom(ctx context.Context, sessionId uuid.UUID, from, to entity.SessionStatus, closedAt *time.Time) (bool, error)

	// TouchLastMessage bumps last_message_at after a message insert.
	TouchLastMessage(ctx context.Context, sessionId uuid.UUID, at time.Time) error
}
