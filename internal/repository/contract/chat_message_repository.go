package contract

import (
	"context"

	"marketplace-be/internal/entity"

	"github.com/google/uuid"
)

type ChatMessageRepository interface {
	Create(ctx context.Context, message *entity.ChatMessage) error
	// FindByID returns (nil, nil) when no message exists.
	FindByID(ctx context.Context, id uuid.UUID) (*entity.ChatMessage, error)
	// FindBySession returns messages newest first, each carrying its
	// attachments and read receipts.
	FindBySession(ctx context.Context, sessionId uuid.UUID, limit, offset int) ([]*entity.ChatMessage, error)
	// LatestBySession returns the single most recent message, (nil, nil)
	// for an empty thread.
	LatestBySession(ctx context.Context, sessionId uuid.UUID) (*entity.ChatMessage, error)
	// UnreadCount counts messages in the session not sent by userId and
	// without a read receipt for userId.
	UnreadCount(ctx context.Context, sessionId, userId uuid.UUID) (int64, error)
	// IDsNotSentBy lists every message id in the session the user did not
	// author, for bulk mark-read.
	IDsNotSentBy(ctx context.Context, sessionId, userId uuid.UUID) ([]uuid.UUID, error)
}
