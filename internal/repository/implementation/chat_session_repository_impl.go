package implementation

import (
	"context"
	"errors"
	"time"

	"marketplace-be/internal/entity"
	"marketplace-be/internal/mapper"
	"marketplace-be/internal/model"
	"marketplace-be/internal/repository/contract"
	"marketplace-be/internal/repository/specification"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type ChatSessionRepositoryImpl struct {
	db     *gorm.DB
	mapper *mapper.ChatMapper
}

func NewChatSessionRepository(db *gorm.DB) contract.ChatSessionRepository {
	return &ChatSessionRepositoryImpl{
		db:     db,
		mapper: mapper.NewChatMapper(),
	}
}

func (r *ChatSessionRepositoryImpl) applySpecifications(db *gorm.DB, specs ...specification.Specification) *gorm.DB {
	for _, spec := range specs {
		db = spec.Apply(db)
	}
	return db
}

func (r *ChatSessionRepositoryImpl) Create(ctx context.Context, session *entity.ChatSession) error {
	m := r.mapper.SessionToModel(session)
	if err := r.db.WithContext(ctx).Create(m).Error; err != nil {
		return err
	}
	*session = *r.mapper.SessionToEntity(m)
	return nil
}

func (r *ChatSessionRepositoryImpl) Update(ctx context.Context, session *entity.ChatSession) error {
	m := r.mapper.SessionToModel(session)
	if err := r.db.WithContext(ctx).Save(m).Error; err != nil {
		return err
	}
	*session = *r.mapper.SessionToEntity(m)
	return nil
}

func (r *ChatSessionRepositoryImpl) FindByID(ctx context.Context, id uuid.UUID) (*entity.ChatSession, error) {
	var m model.ChatSession
	query := r.applySpecifications(r.db.WithContext(ctx), specification.ByID{ID: id})
	if err := query.First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return r.mapper.SessionToEntity(&m), nil
}

func (r *ChatSessionRepositoryImpl) FindActive(ctx context.Context) ([]*entity.ChatSession, error) {
	return r.findAll(ctx,
		specification.StatusIn{Statuses: []string{string(entity.SessionWaiting), string(entity.SessionActive)}},
		specification.OrderBy{Field: "created_at", Desc: true},
	)
}

func (r *ChatSessionRepositoryImpl) FindActiveForAgent(ctx context.Context, agentId uuid.UUID) ([]*entity.ChatSession, error) {
	return r.findAll(ctx,
		specification.StatusIn{Statuses: []string{string(entity.SessionWaiting), string(entity.SessionActive)}},
		specification.WaitingOrAssignedTo{AgentID: agentId},
		specification.OrderBy{Field: "created_at", Desc: true},
	)
}

func (r *ChatSessionRepositoryImpl) FindByCustomer(ctx context.Context, customerId uuid.UUID) ([]*entity.ChatSession, error) {
	var models []*model.ChatSession
	query := r.applySpecifications(r.db.WithContext(ctx), specification.ByCustomerID{CustomerID: customerId})
	// Postgres sorts nulls first on DESC; push never-messaged sessions last.
	query = query.Order("last_message_at DESC NULLS LAST").Order("created_at DESC")
	if err := query.Find(&models).Error; err != nil {
		return nil, err
	}
	return r.toEntities(models), nil
}

func (r *ChatSessionRepositoryImpl) AcceptWaiting(ctx context.Context, sessionId, agentId uuid.UUID, acceptedAt time.Time) (bool, error) {
	res := r.db.WithContext(ctx).Model(&model.ChatSession{}).
		Where("id = ? AND status = ?", sessionId, string(entity.SessionWaiting)).
		Updates(map[string]interface{}{
			"status":            string(entity.SessionActive),
			"agent_id":          agentId,
			"agent_accepted_at": acceptedAt,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *ChatSessionRepositoryImpl) UpdateStatusFrom(ctx context.Context, sessionId uuid.UUID, from, to entity.SessionStatus, closedAt *time.Time) (bool, error) {
	values := map[string]interface{}{"status": string(to)}
	if closedAt != nil {
		values["closed_at"] = *closedAt
	}
	res := r.db.WithContext(ctx).Model(&model.ChatSession{}).
		Where("id = ? AND status = ?", sessionId, string(from)).
		Updates(values)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *ChatSessionRepositoryImpl) TouchLastMessage(ctx context.Context, sessionId uuid.UUID, at time.Time) error {
	return r.db.WithContext(ctx).Model(&model.ChatSession{}).
		Where("id = ?", sessionId).
		Update("last_message_at", at).Error
}

func (r *ChatSessionRepositoryImpl) findAll(ctx context.Context, specs ...specification.Specification) ([]*entity.ChatSession, error) {
	var models []*model.ChatSession
	query := r.applySpecifications(r.db.WithContext(ctx), specs...)
	if err := query.Find(&models).Error; err != nil {
		return nil, err
	}
	return r.toEntities(models), nil
}

func (r *ChatSessionRepositoryImpl) toEntities(models []*model.ChatSession) []*entity.ChatSession {
	entities := make([]*entity.ChatSession, len(models))
	for i, m := range models {
		entities[i] = r.mapper.SessionToEntity(m)
	}
	return entities
}
