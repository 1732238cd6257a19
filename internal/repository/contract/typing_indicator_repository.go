package contract

import (
	"context"
	"time"

	"marketplace-be/internal/entity"

	"github.com/google/uuid"
)

type TypingIndicatorRepository interface {
	// Upsert creates or refreshes the (session, user) typing row.
	Upsert(ctx context.Context, indicator *entity.TypingIndicator) error
	// Delete removes the row if it exists. Zero rows affected is not an error.
	Delete(ctx context.Context, sessionId, userId uuid.UUID) error
	// FindActiveBySession returns rows whose expiry is after `now`.
	FindActiveBySession(ctx context.Context, sessionId uuid.UUID, now time.Time) ([]*entity.TypingIndicator, error)
	// DeleteExpired removes every row past expiry and reports how many.
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}
