package contract

import (
	"context"

	"marketplace-be/internal/entity"

	"github.com/google/uuid"
)

type MessageAttachmentRepository interface {
	Create(ctx context.Context, attachment *entity.MessageAttachment) error
	FindByMessage(ctx context.Context, messageId uuid.UUID) ([]*entity.MessageAttachment, error)
}
