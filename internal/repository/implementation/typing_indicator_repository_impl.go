package implementation

import (
	"context"
	"time"

	"marketplace-be/internal/entity"
	"marketplace-be/internal/mapper"
	"marketplace-be/internal/model"
	"marketplace-be/internal/repository/contract"
	"marketplace-be/internal/repository/specification"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type TypingIndicatorRepositoryImpl struct {
	db     *gorm.DB
	mapper *mapper.ChatMapper
}

func NewTypingIndicatorRepository(db *gorm.DB) contract.TypingIndicatorRepository {
	return &TypingIndicatorRepositoryImpl{
		db:     db,
		mapper: mapper.NewChatMapper(),
	}
}

func (r *TypingIndicatorRepositoryImpl) Upsert(ctx context.Context, indicator *entity.TypingIndicator) error {
	m := r.mapper.TypingToModel(indicator)
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "session_id"}, {Name: "user_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"started_at", "expires_at"}),
	}).Create(m).Error
}

func (r *TypingIndicatorRepositoryImpl) Delete(ctx context.Context, sessionId, userId uuid.UUID) error {
	// Delete-if-exists: the per-connection timer and the janitor may race
	// for the same row, so zero rows affected is fine.
	return r.db.WithContext(ctx).
		Where("session_id = ? AND user_id = ?", sessionId, userId).
		Delete(&model.TypingIndicator{}).Error
}

func (r *TypingIndicatorRepositoryImpl) FindActiveBySession(ctx context.Context, sessionId uuid.UUID, now time.Time) ([]*entity.TypingIndicator, error) {
	var models []*model.TypingIndicator
	query := specification.BySessionID{SessionID: sessionId}.Apply(r.db.WithContext(ctx))
	query = query.Where("expires_at > ?", now)
	if err := query.Find(&models).Error; err != nil {
		return nil, err
	}
	entities := make([]*entity.TypingIndicator, len(models))
	for i, m := range models {
		entities[i] = r.mapper.TypingToEntity(m)
	}
	return entities, nil
}

func (r *TypingIndicatorRepositoryImpl) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	res := specification.ExpiresBefore{At: now}.Apply(r.db.WithContext(ctx)).Delete(&model.TypingIndicator{})
	return res.RowsAffected, res.Error
}
