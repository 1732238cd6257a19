package service

import (
	"context"
	"time"

	"marketplace-be/internal/dto"
	"marketplace-be/internal/entity"
	"marketplace-be/internal/pkg/apperror"
	"marketplace-be/internal/pkg/logger"
	"marketplace-be/internal/repository/unitofwork"
	"marketplace-be/pkg/events"

	"github.com/google/uuid"
)

const (
	agentJoinedMessage   = "Support agent has joined the conversation"
	sessionClosedMessage = "Support session has been closed"
)

// IEventPublisher is the slice of the NATS publisher the chat core needs.
// Nil is a valid value; event publishing is auxiliary and never fails a request.
type IEventPublisher interface {
	Publish(ctx context.Context, event events.Event) error
}

type CreateSessionInput struct {
	CustomerId     uuid.UUID
	Subject        string
	Category       string
	Priority       string
	RestaurantId   *uuid.UUID
	TicketId       *uuid.UUID
	InitialMessage string
}

type SendMessageInput struct {
	SessionId   uuid.UUID
	SenderId    uuid.UUID
	SenderRole  entity.UserRole
	Content     string
	MessageType entity.MessageType
}

type IChatService interface {
	CreateSession(ctx context.Context, in *CreateSessionInput) (*entity.ChatSession, error)
	GetSession(ctx context.Context, sessionId, viewerId uuid.UUID) (*entity.SessionWithDetails, error)
	ListActiveSessions(ctx context.Context, agentId *uuid.UUID) ([]*entity.SessionWithDetails, error)
	ListCustomerSessions(ctx context.Context, customerId uuid.UUID) ([]*entity.SessionWithDetails, error)

	ListMessages(ctx context.Context, sessionId uuid.UUID, limit, offset int) ([]*entity.ChatMessage, error)
	SendMessage(ctx context.Context, in *SendMessageInput) (*entity.ChatMessage, error)
	AddAttachment(ctx context.Context, messageId uuid.UUID, req *dto.AddAttachmentRequest) (*entity.MessageAttachment, error)

	MarkMessageRead(ctx context.Context, messageId, userId uuid.UUID) (*entity.MessageReadReceipt, error)
	MarkSessionRead(ctx context.Context, sessionId, userId uuid.UUID) (int, error)

	// AssignAgent resolves the accept race: exactly one agent wins a waiting
	// session. The returned message is the system join notice.
	AssignAgent(ctx context.Context, sessionId, agentId uuid.UUID) (*entity.ChatSession, *entity.ChatMessage, error)
	// UpdateStatus advances the session lifecycle. The returned message is
	// the system close notice, nil for non-closing transitions.
	UpdateStatus(ctx context.Context, sessionId uuid.UUID, to entity.SessionStatus) (*entity.ChatSession, *entity.ChatMessage, error)

	SetTyping(ctx context.Context, sessionId, userId uuid.UUID) error
	RemoveTyping(ctx context.Context, sessionId, userId uuid.UUID) error
	ListTypingUsers(ctx context.Context, sessionId uuid.UUID) ([]uuid.UUID, error)
	SweepExpiredTyping(ctx context.Context) (int64, error)
}

type chatService struct {
	uowFactory     unitofwork.RepositoryFactory
	eventPublisher IEventPublisher
	log            logger.ILogger
}

func NewChatService(
	uowFactory unitofwork.RepositoryFactory,
	eventPublisher IEventPublisher,
	log logger.ILogger,
) IChatService {
	return &chatService{
		uowFactory:     uowFactory,
		eventPublisher: eventPublisher,
		log:            log,
	}
}

func (s *chatService) CreateSession(ctx context.Context, in *CreateSessionInput) (*entity.ChatSession, error) {
	if in.Subject == "" {
		return nil, apperror.NewValidation("Subject is required")
	}

	customerId := in.CustomerId
	now := time.Now()
	session := &entity.ChatSession{
		Id:           uuid.New(),
		Subject:      in.Subject,
		Category:     in.Category,
		Priority:     in.Priority,
		Status:       entity.SessionWaiting,
		CustomerId:   &customerId,
		RestaurantId: in.RestaurantId,
		TicketId:     in.TicketId,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if session.Category == "" {
		session.Category = entity.DefaultCategory
	}
	if session.Priority == "" {
		session.Priority = entity.DefaultPriority
	}

	uow := s.uowFactory.NewUnitOfWork(ctx)
	if in.InitialMessage == "" {
		if err := uow.ChatSessionRepository().Create(ctx, session); err != nil {
			return nil, err
		}
	} else {
		// Session and first message land together or not at all.
		if err := uow.Begin(ctx); err != nil {
			return nil, err
		}
		defer uow.Rollback()

		if err := uow.ChatSessionRepository().Create(ctx, session); err != nil {
			return nil, err
		}
		content := in.InitialMessage
		message := &entity.ChatMessage{
			Id:          uuid.New(),
			SessionId:   session.Id,
			SenderId:    &customerId,
			SenderRole:  entity.RoleCustomer,
			Content:     &content,
			MessageType: entity.MessageText,
			CreatedAt:   now,
		}
		if err := uow.ChatMessageRepository().Create(ctx, message); err != nil {
			return nil, err
		}
		if err := uow.ChatSessionRepository().TouchLastMessage(ctx, session.Id, now); err != nil {
			return nil, err
		}
		if err := uow.Commit(); err != nil {
			return nil, err
		}
		at := now
		session.LastMessageAt = &at
	}

	s.publishEvent(ctx, events.EventSessionWaiting, map[string]interface{}{
		"session_id": session.Id,
		"subject":    session.Subject,
		"category":   session.Category,
		"priority":   session.Priority,
	})

	return session, nil
}

func (s *chatService) GetSession(ctx context.Context, sessionId, viewerId uuid.UUID) (*entity.SessionWithDetails, error) {
	uow := s.uowFactory.NewUnitOfWork(ctx)
	session, err := uow.ChatSessionRepository().FindByID(ctx, sessionId)
	if err != nil {
		return nil, err
	}
	if session == nil {
		return nil, apperror.NewNotFound("Session not found")
	}
	return s.withDetails(ctx, uow, session, viewerId)
}

func (s *chatService) ListActiveSessions(ctx context.Context, agentId *uuid.UUID) ([]*entity.SessionWithDetails, error) {
	uow := s.uowFactory.NewUnitOfWork(ctx)

	var sessions []*entity.ChatSession
	var err error
	if agentId != nil {
		sessions, err = uow.ChatSessionRepository().FindActiveForAgent(ctx, *agentId)
	} else {
		sessions, err = uow.ChatSessionRepository().FindActive(ctx)
	}
	if err != nil {
		return nil, err
	}

	viewer := uuid.Nil
	if agentId != nil {
		viewer = *agentId
	}
	return s.withDetailsAll(ctx, uow, sessions, viewer)
}

func (s *chatService) ListCustomerSessions(ctx context.Context, customerId uuid.UUID) ([]*entity.SessionWithDetails, error) {
	uow := s.uowFactory.NewUnitOfWork(ctx)
	sessions, err := uow.ChatSessionRepository().FindByCustomer(ctx, customerId)
	if err != nil {
		return nil, err
	}
	return s.withDetailsAll(ctx, uow, sessions, customerId)
}

func (s *chatService) withDetailsAll(ctx context.Context, uow unitofwork.UnitOfWork, sessions []*entity.ChatSession, viewerId uuid.UUID) ([]*entity.SessionWithDetails, error) {
	out := make([]*entity.SessionWithDetails, 0, len(sessions))
	for _, session := range sessions {
		details, err := s.withDetails(ctx, uow, session, viewerId)
		if err != nil {
			return nil, err
		}
		out = append(out, details)
	}
	return out, nil
}

func (s *chatService) withDetails(ctx context.Context, uow unitofwork.UnitOfWork, session *entity.ChatSession, viewerId uuid.UUID) (*entity.SessionWithDetails, error) {
	details := &entity.SessionWithDetails{ChatSession: *session}

	if viewerId != uuid.Nil {
		unread, err := uow.ChatMessageRepository().UnreadCount(ctx, session.Id, viewerId)
		if err != nil {
			return nil, err
		}
		details.UnreadCount = unread
	}

	latest, err := uow.ChatMessageRepository().LatestBySession(ctx, session.Id)
	if err != nil {
		return nil, err
	}
	details.LastMessage = latest

	return details, nil
}

func (s *chatService) ListMessages(ctx context.Context, sessionId uuid.UUID, limit, offset int) ([]*entity.ChatMessage, error) {
	uow := s.uowFactory.NewUnitOfWork(ctx)
	session, err := uow.ChatSessionRepository().FindByID(ctx, sessionId)
	if err != nil {
		return nil, err
	}
	if session == nil {
		return nil, apperror.NewNotFound("Session not found")
	}
	if limit <= 0 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	return uow.ChatMessageRepository().FindBySession(ctx, sessionId, limit, offset)
}

func (s *chatService) SendMessage(ctx context.Context, in *SendMessageInput) (*entity.ChatMessage, error) {
	msgType := in.MessageType
	if msgType == "" {
		msgType = entity.MessageText
	}
	// File and image messages may arrive body-less; their payload is the
	// attachment added afterwards. Only plain text requires content.
	if msgType == entity.MessageText && in.Content == "" {
		return nil, apperror.NewValidation("Message content is required")
	}

	uow := s.uowFactory.NewUnitOfWork(ctx)
	session, err := uow.ChatSessionRepository().FindByID(ctx, in.SessionId)
	if err != nil {
		return nil, err
	}
	if session == nil {
		return nil, apperror.NewNotFound("Session not found")
	}

	senderId := in.SenderId
	var content *string
	if in.Content != "" {
		body := in.Content
		content = &body
	}
	now := time.Now()
	message := &entity.ChatMessage{
		Id:          uuid.New(),
		SessionId:   in.SessionId,
		SenderId:    &senderId,
		SenderRole:  in.SenderRole,
		Content:     content,
		MessageType: msgType,
		CreatedAt:   now,
	}

	if err := uow.ChatMessageRepository().Create(ctx, message); err != nil {
		return nil, err
	}
	// Activity bumps last_message_at only. Resolved and closed sessions
	// keep their status; there is no auto-reopen.
	if err := uow.ChatSessionRepository().TouchLastMessage(ctx, in.SessionId, now); err != nil {
		return nil, err
	}
	// Sending implies the author stopped typing.
	if err := uow.TypingIndicatorRepository().Delete(ctx, in.SessionId, in.SenderId); err != nil {
		s.log.Warn("chat", "failed to clear typing indicator after send", map[string]interface{}{
			"session_id": in.SessionId.String(),
			"user_id":    in.SenderId.String(),
			"error":      err.Error(),
		})
	}

	return message, nil
}

func (s *chatService) createSystemMessage(ctx context.Context, uow unitofwork.UnitOfWork, sessionId uuid.UUID, content string) (*entity.ChatMessage, error) {
	body := content
	message := &entity.ChatMessage{
		Id:              uuid.New(),
		SessionId:       sessionId,
		SenderRole:      entity.RoleSystem,
		Content:         &body,
		MessageType:     entity.MessageSystem,
		IsSystemMessage: true,
		CreatedAt:       time.Now(),
	}
	if err := uow.ChatMessageRepository().Create(ctx, message); err != nil {
		return nil, err
	}
	if err := uow.ChatSessionRepository().TouchLastMessage(ctx, sessionId, message.CreatedAt); err != nil {
		return nil, err
	}
	return message, nil
}

func (s *chatService) AddAttachment(ctx context.Context, messageId uuid.UUID, req *dto.AddAttachmentRequest) (*entity.MessageAttachment, error) {
	uow := s.uowFactory.NewUnitOfWork(ctx)
	message, err := uow.ChatMessageRepository().FindByID(ctx, messageId)
	if err != nil {
		return nil, err
	}
	if message == nil {
		return nil, apperror.NewNotFound("Message not found")
	}

	attachment := &entity.MessageAttachment{
		Id:           uuid.New(),
		MessageId:    messageId,
		FileName:     req.FileName,
		FileType:     req.FileType,
		FileSize:     req.FileSize,
		FileURL:      req.FileURL,
		ThumbnailURL: req.ThumbnailURL,
	}
	if err := uow.MessageAttachmentRepository().Create(ctx, attachment); err != nil {
		return nil, err
	}
	return attachment, nil
}

func (s *chatService) MarkMessageRead(ctx context.Context, messageId, userId uuid.UUID) (*entity.MessageReadReceipt, error) {
	uow := s.uowFactory.NewUnitOfWork(ctx)
	message, err := uow.ChatMessageRepository().FindByID(ctx, messageId)
	if err != nil {
		return nil, err
	}
	if message == nil {
		return nil, apperror.NewNotFound("Message not found")
	}
	// Reading your own message is a no-op, not an error.
	if message.SentBy(userId) {
		return nil, nil
	}

	receipt := &entity.MessageReadReceipt{
		Id:        uuid.New(),
		MessageId: messageId,
		UserId:    userId,
		ReadAt:    time.Now(),
	}
	if err := uow.MessageReadReceiptRepository().Upsert(ctx, receipt); err != nil {
		return nil, err
	}
	return receipt, nil
}

func (s *chatService) MarkSessionRead(ctx context.Context, sessionId, userId uuid.UUID) (int, error) {
	uow := s.uowFactory.NewUnitOfWork(ctx)
	session, err := uow.ChatSessionRepository().FindByID(ctx, sessionId)
	if err != nil {
		return 0, err
	}
	if session == nil {
		return 0, apperror.NewNotFound("Session not found")
	}

	ids, err := uow.ChatMessageRepository().IDsNotSentBy(ctx, sessionId, userId)
	if err != nil {
		return 0, err
	}

	readAt := time.Now()
	for _, messageId := range ids {
		receipt := &entity.MessageReadReceipt{
			Id:        uuid.New(),
			MessageId: messageId,
			UserId:    userId,
			ReadAt:    readAt,
		}
		if err := uow.MessageReadReceiptRepository().Upsert(ctx, receipt); err != nil {
			return 0, err
		}
	}
	return len(ids), nil
}

func (s *chatService) AssignAgent(ctx context.Context, sessionId, agentId uuid.UUID) (*entity.ChatSession, *entity.ChatMessage, error) {
	uow := s.uowFactory.NewUnitOfWork(ctx)

	acceptedAt := time.Now()
	won, err := uow.ChatSessionRepository().AcceptWaiting(ctx, sessionId, agentId, acceptedAt)
	if err != nil {
		return nil, nil, err
	}
	if !won {
		// Lost the conditional write. Distinguish missing from already taken.
		existing, err := uow.ChatSessionRepository().FindByID(ctx, sessionId)
		if err != nil {
			return nil, nil, err
		}
		if existing == nil {
			return nil, nil, apperror.NewNotFound("Session not found")
		}
		return nil, nil, apperror.NewStateConflict("Chat already accepted")
	}

	session, err := uow.ChatSessionRepository().FindByID(ctx, sessionId)
	if err != nil {
		return nil, nil, err
	}

	systemMessage, err := s.createSystemMessage(ctx, uow, sessionId, agentJoinedMessage)
	if err != nil {
		return nil, nil, err
	}

	s.publishEvent(ctx, events.EventSessionStatusChanged, map[string]interface{}{
		"session_id": sessionId,
		"status":     string(entity.SessionActive),
		"agent_id":   agentId,
	})

	return session, systemMessage, nil
}

func (s *chatService) UpdateStatus(ctx context.Context, sessionId uuid.UUID, to entity.SessionStatus) (*entity.ChatSession, *entity.ChatMessage, error) {
	uow := s.uowFactory.NewUnitOfWork(ctx)

	session, err := uow.ChatSessionRepository().FindByID(ctx, sessionId)
	if err != nil {
		return nil, nil, err
	}
	if session == nil {
		return nil, nil, apperror.NewNotFound("Session not found")
	}
	if !entity.CanTransition(session.Status, to) {
		return nil, nil, apperror.NewStateConflict("Cannot transition session from " + string(session.Status) + " to " + string(to))
	}

	var closedAt *time.Time
	if to == entity.SessionClosed {
		now := time.Now()
		closedAt = &now
	}

	swapped, err := uow.ChatSessionRepository().UpdateStatusFrom(ctx, sessionId, session.Status, to, closedAt)
	if err != nil {
		return nil, nil, err
	}
	if !swapped {
		return nil, nil, apperror.NewStateConflict("Session status changed concurrently")
	}

	session.Status = to
	session.ClosedAt = closedAt

	var systemMessage *entity.ChatMessage
	if to == entity.SessionClosed {
		systemMessage, err = s.createSystemMessage(ctx, uow, sessionId, sessionClosedMessage)
		if err != nil {
			return nil, nil, err
		}
	}

	s.publishEvent(ctx, events.EventSessionStatusChanged, map[string]interface{}{
		"session_id": sessionId,
		"status":     string(to),
	})

	return session, systemMessage, nil
}

func (s *chatService) SetTyping(ctx context.Context, sessionId, userId uuid.UUID) error {
	uow := s.uowFactory.NewUnitOfWork(ctx)
	now := time.Now()
	indicator := &entity.TypingIndicator{
		SessionId: sessionId,
		UserId:    userId,
		StartedAt: now,
		ExpiresAt: now.Add(entity.TypingTTL),
	}
	return uow.TypingIndicatorRepository().Upsert(ctx, indicator)
}

func (s *chatService) RemoveTyping(ctx context.Context, sessionId, userId uuid.UUID) error {
	uow := s.uowFactory.NewUnitOfWork(ctx)
	return uow.TypingIndicatorRepository().Delete(ctx, sessionId, userId)
}

func (s *chatService) ListTypingUsers(ctx context.Context, sessionId uuid.UUID) ([]uuid.UUID, error) {
	uow := s.uowFactory.NewUnitOfWork(ctx)
	indicators, err := uow.TypingIndicatorRepository().FindActiveBySession(ctx, sessionId, time.Now())
	if err != nil {
		return nil, err
	}
	users := make([]uuid.UUID, len(indicators))
	for i, indicator := range indicators {
		users[i] = indicator.UserId
	}
	return users, nil
}

func (s *chatService) SweepExpiredTyping(ctx context.Context) (int64, error) {
	uow := s.uowFactory.NewUnitOfWork(ctx)
	return uow.TypingIndicatorRepository().DeleteExpired(ctx, time.Now())
}

func (s *chatService) publishEvent(ctx context.Context, eventType string, data map[string]interface{}) {
	if s.eventPublisher == nil {
		return
	}
	evt := events.BaseEvent{
		Type:       eventType,
		Data:       data,
		OccurredAt: time.Now(),
	}
	// Log but never fail the request; the event bus is auxiliary.
	if err := s.eventPublisher.Publish(ctx, evt); err != nil {
		s.log.Warn("chat", "failed to publish event", map[string]interface{}{
			"event": eventType,
			"error": err.Error(),
		})
	}
}
