package implementation

import (
	"context"

	"marketplace-be/internal/entity"
	"marketplace-be/internal/mapper"
	"marketplace-be/internal/repository/contract"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type MessageReadReceiptRepositoryImpl struct {
	db     *gorm.DB
	mapper *mapper.ChatMapper
}

func NewMessageReadReceiptRepository(db *gorm.DB) contract.MessageReadReceiptRepository {
	return &MessageReadReceiptRepositoryImpl{
		db:     db,
		mapper: mapper.NewChatMapper(),
	}
}

func (r *MessageReadReceiptRepositoryImpl) Upsert(ctx context.Context, receipt *entity.MessageReadReceipt) error {
	m := r.mapper.ReceiptToModel(receipt)
	// Re-reading a message refreshes read_at instead of duplicating the row.
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "message_id"}, {Name: "user_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"read_at"}),
	}).Create(m).Error
	if err != nil {
		return err
	}
	*receipt = *r.mapper.ReceiptToEntity(m)
	return nil
}
