package memory

import (
	"context"

	"marketplace-be/internal/repository/contract"
	"marketplace-be/internal/repository/unitofwork"
)

type repositoryFactory struct {
	store *ChatStore
}

// NewRepositoryFactory adapts a ChatStore to the unit-of-work contract.
// Begin/Commit/Rollback are no-ops; every repository write is already
// atomic under the store lock.
func NewRepositoryFactory(store *ChatStore) unitofwork.RepositoryFactory {
	return &repositoryFactory{store: store}
}

func (f *repositoryFactory) NewUnitOfWork(ctx context.Context) unitofwork.UnitOfWork {
	return &unitOfWork{store: f.store}
}

type unitOfWork struct {
	store *ChatStore
}

func (u *unitOfWork) Begin(ctx context.Context) error { return nil }
func (u *unitOfWork) Commit() error                   { return nil }
func (u *unitOfWork) Rollback() error                 { return nil }

func (u *unitOfWork) ChatSessionRepository() contract.ChatSessionRepository {
	return NewChatSessionRepository(u.store)
}

func (u *unitOfWork) ChatMessageRepository() contract.ChatMessageRepository {
	return NewChatMessageRepository(u.store)
}

func (u *unitOfWork) MessageAttachmentRepository() contract.MessageAttachmentRepository {
	return NewMessageAttachmentRepository(u.store)
}

func (u *unitOfWork) MessageReadReceiptRepository() contract.MessageReadReceiptRepository {
	return NewMessageReadReceiptRepository(u.store)
}

func (u *unitOfWork) TypingIndicatorRepository() contract.TypingIndicatorRepository {
	return NewTypingIndicatorRepository(u.store)
}
