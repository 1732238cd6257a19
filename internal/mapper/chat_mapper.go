package mapper

import (
	"marketplace-be/internal/entity"
	"marketplace-be/internal/model"
)

type ChatMapper struct{}

func NewChatMapper() *ChatMapper {
	return &ChatMapper{}
}

// Session Mappers

func (m *ChatMapper) SessionToEntity(s *model.ChatSession) *entity.ChatSession {
	if s == nil {
		return nil
	}

	return &entity.ChatSession{
		Id:              s.Id,
		Subject:         s.Subject,
		Category:        s.Category,
		Priority:        s.Priority,
		Status:          entity.SessionStatus(s.Status),
		CustomerId:      s.CustomerId,
		AgentId:         s.AgentId,
		RestaurantId:    s.RestaurantId,
		TicketId:        s.TicketId,
		AgentAcceptedAt: s.AgentAcceptedAt,
		ClosedAt:        s.ClosedAt,
		LastMessageAt:   s.LastMessageAt,
		CreatedAt:       s.CreatedAt,
		UpdatedAt:       s.UpdatedAt,
	}
}

func (m *ChatMapper) SessionToModel(s *entity.ChatSession) *model.ChatSession {
	if s == nil {
		return nil
	}

	return &model.ChatSession{
		Id:              s.Id,
		Subject:         s.Subject,
		Category:        s.Category,
		Priority:        s.Priority,
		Status:          string(s.Status),
		CustomerId:      s.CustomerId,
		AgentId:         s.AgentId,
		RestaurantId:    s.RestaurantId,
		TicketId:        s.TicketId,
		AgentAcceptedAt: s.AgentAcceptedAt,
		ClosedAt:        s.ClosedAt,
		LastMessageAt:   s.LastMessageAt,
		CreatedAt:       s.CreatedAt,
		UpdatedAt:       s.UpdatedAt,
	}
}

// Message Mappers

func (m *ChatMapper) MessageToEntity(msg *model.ChatMessage) *entity.ChatMessage {
	if msg == nil {
		return nil
	}

	attachments := make([]*entity.MessageAttachment, len(msg.Attachments))
	for i := range msg.Attachments {
		attachments[i] = m.AttachmentToEntity(&msg.Attachments[i])
	}

	receipts := make([]*entity.MessageReadReceipt, len(msg.ReadReceipts))
	for i := range msg.ReadReceipts {
		receipts[i] = m.ReceiptToEntity(&msg.ReadReceipts[i])
	}

	return &entity.ChatMessage{
		Id:              msg.Id,
		SessionId:       msg.SessionId,
		SenderId:        msg.SenderId,
		SenderRole:      entity.UserRole(msg.SenderRole),
		Content:         msg.Content,
		MessageType:     entity.MessageType(msg.MessageType),
		IsSystemMessage: msg.IsSystemMessage,
		CreatedAt:       msg.CreatedAt,
		Attachments:     attachments,
		ReadReceipts:    receipts,
	}
}

func (m *ChatMapper) MessageToModel(msg *entity.ChatMessage) *model.ChatMessage {
	if msg == nil {
		return nil
	}

	return &model.ChatMessage{
		Id:              msg.Id,
		SessionId:       msg.SessionId,
		SenderId:        msg.SenderId,
		SenderRole:      string(msg.SenderRole),
		Content:         msg.Content,
		MessageType:     string(msg.MessageType),
		IsSystemMessage: msg.IsSystemMessage,
		CreatedAt:       msg.CreatedAt,
	}
}

// Attachment Mappers

func (m *ChatMapper) AttachmentToEntity(a *model.MessageAttachment) *entity.MessageAttachment {
	if a == nil {
		return nil
	}

	return &entity.MessageAttachment{
		Id:           a.Id,
		MessageId:    a.MessageId,
		FileName:     a.FileName,
		FileType:     a.FileType,
		FileSize:     a.FileSize,
		FileURL:      a.FileURL,
		ThumbnailURL: a.ThumbnailURL,
	}
}

func (m *ChatMapper) AttachmentToModel(a *entity.MessageAttachment) *model.MessageAttachment {
	if a == nil {
		return nil
	}

	return &model.MessageAttachment{
		Id:           a.Id,
		MessageId:    a.MessageId,
		FileName:     a.FileName,
		FileType:     a.FileType,
		FileSize:     a.FileSize,
		FileURL:      a.FileURL,
		ThumbnailURL: a.ThumbnailURL,
	}
}

// Receipt Mappers

func (m *ChatMapper) ReceiptToEntity(r *model.MessageReadReceipt) *entity.MessageReadReceipt {
	if r == nil {
		return nil
	}

	return &entity.MessageReadReceipt{
		Id:        r.Id,
		MessageId: r.MessageId,
		UserId:    r.UserId,
		ReadAt:    r.ReadAt,
	}
}

func (m *ChatMapper) ReceiptToModel(r *entity.MessageReadReceipt) *model.MessageReadReceipt {
	if r == nil {
		return nil
	}

	return &model.MessageReadReceipt{
		Id:        r.Id,
		MessageId: r.MessageId,
		UserId:    r.UserId,
		ReadAt:    r.ReadAt,
	}
}

// Typing Mappers

func (m *ChatMapper) TypingToEntity(t *model.TypingIndicator) *entity.TypingIndicator {
	if t == nil {
		return nil
	}

	return &entity.TypingIndicator{
		SessionId: t.SessionId,
		UserId:    t.UserId,
		StartedAt: t.StartedAt,
		ExpiresAt: t.ExpiresAt,
	}
}

func (m *ChatMapper) TypingToModel(t *entity.TypingIndicator) *model.TypingIndicator {
	if t == nil {
		return nil
	}

	return &model.TypingIndicator{
		SessionId: t.SessionId,
		UserId:    t.UserId,
		StartedAt: t.StartedAt,
		ExpiresAt: t.ExpiresAt,
	}
}
