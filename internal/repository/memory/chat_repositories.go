package memory

import (
	"context"
	"sort"
	"time"

	"marketplace-be/internal/entity"
	"marketplace-be/internal/repository/contract"

	"github.com/google/uuid"
)

// Session repository

type sessionRepository struct {
	store *ChatStore
}

func NewChatSessionRepository(store *ChatStore) contract.ChatSessionRepository {
	return &sessionRepository{store: store}
}

func (r *sessionRepository) Create(ctx context.Context, session *entity.ChatSession) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	if session.Id == uuid.Nil {
		session.Id = uuid.New()
	}
	session.CreatedAt = nowOr(session.CreatedAt)
	session.UpdatedAt = nowOr(session.UpdatedAt)
	r.store.sessions[session.Id] = cloneSession(session)
	return nil
}

func (r *sessionRepository) Update(ctx context.Context, session *entity.ChatSession) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	session.UpdatedAt = time.Now()
	r.store.sessions[session.Id] = cloneSession(session)
	return nil
}

func (r *sessionRepository) FindByID(ctx context.Context, id uuid.UUID) (*entity.ChatSession, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	return cloneSession(r.store.sessions[id]), nil
}

func (r *sessionRepository) FindActive(ctx context.Context) ([]*entity.ChatSession, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	var out []*entity.ChatSession
	for _, s := range r.store.sessions {
		if s.Status == entity.SessionWaiting || s.Status == entity.SessionActive {
			out = append(out, cloneSession(s))
		}
	}
	sortByCreatedDesc(out)
	return out, nil
}

func (r *sessionRepository) FindActiveForAgent(ctx context.Context, agentId uuid.UUID) ([]*entity.ChatSession, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	var out []*entity.ChatSession
	for _, s := range r.store.sessions {
		if s.Status != entity.SessionWaiting && s.Status != entity.SessionActive {
			continue
		}
		owned := s.AgentId != nil && *s.AgentId == agentId
		if owned || s.Status == entity.SessionWaiting {
			out = append(out, cloneSession(s))
		}
	}
	sortByCreatedDesc(out)
	return out, nil
}

func (r *sessionRepository) FindByCustomer(ctx context.Context, customerId uuid.UUID) ([]*entity.ChatSession, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	var out []*entity.ChatSession
	for _, s := range r.store.sessions {
		if s.CustomerId != nil && *s.CustomerId == customerId {
			out = append(out, cloneSession(s))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		li, lj := out[i].LastMessageAt, out[j].LastMessageAt
		switch {
		case li != nil && lj != nil:
			if !li.Equal(*lj) {
				return li.After(*lj)
			}
		case li != nil:
			return true
		case lj != nil:
			return false
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

func (r *sessionRepository) AcceptWaiting(ctx context.Context, sessionId, agentId uuid.UUID, acceptedAt time.Time) (bool, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	s, ok := r.store.sessions[sessionId]
	if !ok || s.Status != entity.SessionWaiting {
		return false, nil
	}
	agent := agentId
	at := acceptedAt
	s.Status = entity.SessionActive
	s.AgentId = &agent
	s.AgentAcceptedAt = &at
	s.UpdatedAt = time.Now()
	return true, nil
}

func (r *sessionRepository) UpdateStatusFrom(ctx context.Context, sessionId uuid.UUID, from, to entity.SessionStatus, closedAt *time.Time) (bool, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	s, ok := r.store.sessions[sessionId]
	if !ok || s.Status != from {
		return false, nil
	}
	s.Status = to
	if closedAt != nil {
		at := *closedAt
		s.ClosedAt = &at
	}
	s.UpdatedAt = time.Now()
	return true, nil
}

func (r *sessionRepository) TouchLastMessage(ctx context.Context, sessionId uuid.UUID, at time.Time) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	if s, ok := r.store.sessions[sessionId]; ok {
		t := at
		s.LastMessageAt = &t
	}
	return nil
}

func sortByCreatedDesc(sessions []*entity.ChatSession) {
	sort.Slice(sessions, func(i, j int) bool {
		return sessions[i].CreatedAt.After(sessions[j].CreatedAt)
	})
}

// Message repository

type messageRepository struct {
	store *ChatStore
}

func NewChatMessageRepository(store *ChatStore) contract.ChatMessageRepository {
	return &messageRepository{store: store}
}

func (r *messageRepository) Create(ctx context.Context, message *entity.ChatMessage) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	if message.Id == uuid.Nil {
		message.Id = uuid.New()
	}
	message.CreatedAt = nowOr(message.CreatedAt)
	c := *message
	c.Attachments = nil
	c.ReadReceipts = nil
	r.store.messages[message.Id] = &c
	return nil
}

func (r *messageRepository) FindByID(ctx context.Context, id uuid.UUID) (*entity.ChatMessage, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	m, ok := r.store.messages[id]
	if !ok {
		return nil, nil
	}
	return r.store.cloneMessage(m), nil
}

func (r *messageRepository) FindBySession(ctx context.Context, sessionId uuid.UUID, limit, offset int) ([]*entity.ChatMessage, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	msgs := r.store.sessionMessagesNewestFirst(sessionId)
	if offset >= len(msgs) {
		return []*entity.ChatMessage{}, nil
	}
	msgs = msgs[offset:]
	if limit > 0 && limit < len(msgs) {
		msgs = msgs[:limit]
	}
	out := make([]*entity.ChatMessage, len(msgs))
	for i, m := range msgs {
		out[i] = r.store.cloneMessage(m)
	}
	return out, nil
}

func (r *messageRepository) LatestBySession(ctx context.Context, sessionId uuid.UUID) (*entity.ChatMessage, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	msgs := r.store.sessionMessagesNewestFirst(sessionId)
	if len(msgs) == 0 {
		return nil, nil
	}
	return r.store.cloneMessage(msgs[0]), nil
}

func (r *messageRepository) UnreadCount(ctx context.Context, sessionId, userId uuid.UUID) (int64, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	var count int64
	for _, m := range r.store.messages {
		if m.SessionId != sessionId || m.SentBy(userId) {
			continue
		}
		if !r.store.hasReceipt(m.Id, userId) {
			count++
		}
	}
	return count, nil
}

func (r *messageRepository) IDsNotSentBy(ctx context.Context, sessionId, userId uuid.UUID) ([]uuid.UUID, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	var ids []uuid.UUID
	for _, m := range r.store.sessionMessagesNewestFirst(sessionId) {
		if !m.SentBy(userId) {
			ids = append(ids, m.Id)
		}
	}
	return ids, nil
}

// Attachment repository

type attachmentRepository struct {
	store *ChatStore
}

func NewMessageAttachmentRepository(store *ChatStore) contract.MessageAttachmentRepository {
	return &attachmentRepository{store: store}
}

func (r *attachmentRepository) Create(ctx context.Context, attachment *entity.MessageAttachment) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	if attachment.Id == uuid.Nil {
		attachment.Id = uuid.New()
	}
	c := *attachment
	r.store.attachments[attachment.MessageId] = append(r.store.attachments[attachment.MessageId], &c)
	return nil
}

func (r *attachmentRepository) FindByMessage(ctx context.Context, messageId uuid.UUID) ([]*entity.MessageAttachment, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	stored := r.store.attachments[messageId]
	out := make([]*entity.MessageAttachment, len(stored))
	for i, a := range stored {
		c := *a
		out[i] = &c
	}
	return out, nil
}

// Read receipt repository

type receiptRepository struct {
	store *ChatStore
}

func NewMessageReadReceiptRepository(store *ChatStore) contract.MessageReadReceiptRepository {
	return &receiptRepository{store: store}
}

func (r *receiptRepository) Upsert(ctx context.Context, receipt *entity.MessageReadReceipt) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	key := receiptKey{messageId: receipt.MessageId, userId: receipt.UserId}
	if existing, ok := r.store.receipts[key]; ok {
		existing.ReadAt = receipt.ReadAt
		*receipt = *existing
		return nil
	}
	if receipt.Id == uuid.Nil {
		receipt.Id = uuid.New()
	}
	c := *receipt
	r.store.receipts[key] = &c
	return nil
}

// Typing indicator repository

type typingRepository struct {
	store *ChatStore
}

func NewTypingIndicatorRepository(store *ChatStore) contract.TypingIndicatorRepository {
	return &typingRepository{store: store}
}

func (r *typingRepository) Upsert(ctx context.Context, indicator *entity.TypingIndicator) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	c := *indicator
	r.store.typing[typingKey{sessionId: indicator.SessionId, userId: indicator.UserId}] = &c
	return nil
}

func (r *typingRepository) Delete(ctx context.Context, sessionId, userId uuid.UUID) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	delete(r.store.typing, typingKey{sessionId: sessionId, userId: userId})
	return nil
}

func (r *typingRepository) FindActiveBySession(ctx context.Context, sessionId uuid.UUID, now time.Time) ([]*entity.TypingIndicator, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	var out []*entity.TypingIndicator
	for key, t := range r.store.typing {
		if key.sessionId == sessionId && !t.Expired(now) {
			c := *t
			out = append(out, &c)
		}
	}
	return out, nil
}

func (r *typingRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	var swept int64
	for key, t := range r.store.typing {
		if t.Expired(now) {
			delete(r.store.typing, key)
			swept++
		}
	}
	return swept, nil
}
