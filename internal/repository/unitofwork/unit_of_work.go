package unitofwork

import (
	"context"

	"marketplace-be/internal/repository/contract"
)

type UnitOfWork interface {
	Begin(ctx context.Context) error
	Commit() error
	Rollback() error

	ChatSessionRepository() contract.ChatSessionRepository
	ChatMessageRepository() contract.ChatMessageRepository
	MessageAttachmentRepository() contract.MessageAttachmentRepository
	MessageReadReceiptRepository() contract.MessageReadReceiptRepository
	TypingIndicatorRepository() contract.TypingIndicatorRepository
}
