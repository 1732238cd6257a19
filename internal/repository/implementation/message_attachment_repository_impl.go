package implementation

import (
	"context"

	"marketplace-be/internal/entity"
	"marketplace-be/internal/mapper"
	"marketplace-be/internal/model"
	"marketplace-be/internal/repository/contract"
	"marketplace-be/internal/repository/specification"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type MessageAttachmentRepositoryImpl struct {
	db     *gorm.DB
	mapper *mapper.ChatMapper
}

func NewMessageAttachmentRepository(db *gorm.DB) contract.MessageAttachmentRepository {
	return &MessageAttachmentRepositoryImpl{
		db:     db,
		mapper: mapper.NewChatMapper(),
	}
}

func (r *MessageAttachmentRepositoryImpl) Create(ctx context.Context, attachment *entity.MessageAttachment) error {
	m := r.mapper.AttachmentToModel(attachment)
	if err := r.db.WithContext(ctx).Create(m).Error; err != nil {
		return err
	}
	*attachment = *r.mapper.AttachmentToEntity(m)
	return nil
}

func (r *MessageAttachmentRepositoryImpl) FindByMessage(ctx context.Context, messageId uuid.UUID) ([]*entity.MessageAttachment, error) {
	var models []*model.MessageAttachment
	query := specification.Filter("message_id", messageId).Apply(r.db.WithContext(ctx))
	if err := query.Find(&models).Error; err != nil {
		return nil, err
	}
	entities := make([]*entity.MessageAttachment, len(models))
	for i, m := range models {
		entities[i] = r.mapper.AttachmentToEntity(m)
	}
	return entities, nil
}
