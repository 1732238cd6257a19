package implementation

import (
	"context"
	"errors"

	"marketplace-be/internal/entity"
	"marketplace-be/internal/mapper"
	"marketplace-be/internal/model"
	"marketplace-be/internal/repository/contract"
	"marketplace-be/internal/repository/specification"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type ChatMessageRepositoryImpl struct {
	db     *gorm.DB
	mapper *mapper.ChatMapper
}

func NewChatMessageRepository(db *gorm.DB) contract.ChatMessageRepository {
	return &ChatMessageRepositoryImpl{
		db:     db,
		mapper: mapper.NewChatMapper(),
	}
}

func (r *ChatMessageRepositoryImpl) applySpecifications(db *gorm.DB, specs ...specification.Specification) *gorm.DB {
	for _, spec := range specs {
		db = spec.Apply(db)
	}
	return db
}

func (r *ChatMessageRepositoryImpl) Create(ctx context.Context, message *entity.ChatMessage) error {
	m := r.mapper.MessageToModel(message)
	if err := r.db.WithContext(ctx).Create(m).Error; err != nil {
		return err
	}
	created := r.mapper.MessageToEntity(m)
	created.Attachments = message.Attachments
	created.ReadReceipts = message.ReadReceipts
	*message = *created
	return nil
}

func (r *ChatMessageRepositoryImpl) FindByID(ctx context.Context, id uuid.UUID) (*entity.ChatMessage, error) {
	var m model.ChatMessage
	query := r.applySpecifications(r.db.WithContext(ctx).Preload("Attachments").Preload("ReadReceipts"), specification.ByID{ID: id})
	if err := query.First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return r.mapper.MessageToEntity(&m), nil
}

func (r *ChatMessageRepositoryImpl) FindBySession(ctx context.Context, sessionId uuid.UUID, limit, offset int) ([]*entity.ChatMessage, error) {
	var models []*model.ChatMessage
	query := r.applySpecifications(
		r.db.WithContext(ctx).Preload("Attachments").Preload("ReadReceipts"),
		specification.BySessionID{SessionID: sessionId},
		specification.OrderBy{Field: "created_at", Desc: true},
		specification.Pagination{Limit: limit, Offset: offset},
	)
	if err := query.Find(&models).Error; err != nil {
		return nil, err
	}
	entities := make([]*entity.ChatMessage, len(models))
	for i, m := range models {
		entities[i] = r.mapper.MessageToEntity(m)
	}
	return entities, nil
}

func (r *ChatMessageRepositoryImpl) LatestBySession(ctx context.Context, sessionId uuid.UUID) (*entity.ChatMessage, error) {
	var m model.ChatMessage
	query := r.applySpecifications(r.db.WithContext(ctx),
		specification.BySessionID{SessionID: sessionId},
		specification.OrderBy{Field: "created_at", Desc: true},
	)
	if err := query.First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return r.mapper.MessageToEntity(&m), nil
}

func (r *ChatMessageRepositoryImpl) UnreadCount(ctx context.Context, sessionId, userId uuid.UUID) (int64, error) {
	var count int64
	query := r.applySpecifications(r.db.WithContext(ctx).Model(&model.ChatMessage{}),
		specification.BySessionID{SessionID: sessionId},
		specification.NotSentBy{UserID: userId},
	)
	query = query.Where("id NOT IN (?)",
		r.db.Model(&model.MessageReadReceipt{}).Select("message_id").Where("user_id = ?", userId),
	)
	if err := query.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

func (r *ChatMessageRepositoryImpl) IDsNotSentBy(ctx context.Context, sessionId, userId uuid.UUID) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	query := r.applySpecifications(r.db.WithContext(ctx).Model(&model.ChatMessage{}),
		specification.BySessionID{SessionID: sessionId},
		specification.NotSentBy{UserID: userId},
	)
	if err := query.Pluck("id", &ids).Error; err != nil {
		return nil, err
	}
	return ids, nil
}
