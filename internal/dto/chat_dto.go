package dto

import (
	"time"

	"marketplace-be/internal/entity"

	"github.com/google/uuid"
)

// --- Requests ---

type CreateSessionRequest struct {
	Subject        string     `json:"subject" validate:"required"`
	Category       string     `json:"category,omitempty"`
	Priority       string     `json:"priority,omitempty" validate:"omitempty,oneof=low medium high urgent"`
	RestaurantId   *uuid.UUID `json:"restaurant_id,omitempty"`
	TicketId       *uuid.UUID `json:"ticket_id,omitempty"`
	InitialMessage string     `json:"initial_message,omitempty"`
}

// SendMessageRequest allows an empty content for file and image messages;
// the service rejects body-less text messages.
type SendMessageRequest struct {
	Content     string             `json:"content,omitempty"`
	MessageType entity.MessageType `json:"message_type,omitempty" validate:"omitempty,oneof=text image file"`
}

type AddAttachmentRequest struct {
	FileName     string  `json:"file_name" validate:"required"`
	FileType     string  `json:"file_type" validate:"required"`
	FileSize     int64   `json:"file_size" validate:"required,min=1"`
	FileURL      string  `json:"file_url" validate:"required,url"`
	ThumbnailURL *string `json:"thumbnail_url,omitempty" validate:"omitempty,url"`
}

type SessionHistoryRequest struct {
	Limit  int `query:"limit"`
	Offset int `query:"offset"`
}

// TicketConversionMessage is the payload carried on the ticket hand-off
// topic when an escalated support ticket is converted into a live chat.
type TicketConversionMessage struct {
	TicketId     uuid.UUID  `json:"ticket_id"`
	CustomerId   uuid.UUID  `json:"customer_id"`
	RestaurantId *uuid.UUID `json:"restaurant_id,omitempty"`
	Subject      string     `json:"subject"`
	Category     string     `json:"category,omitempty"`
	Priority     string     `json:"priority,omitempty"`
	Summary      string     `json:"summary,omitempty"`
}

// --- Responses ---

type SessionResponse struct {
	Id              uuid.UUID        `json:"id"`
	Subject         string           `json:"subject"`
	Category        string           `json:"category"`
	Priority        string           `json:"priority"`
	Status          string           `json:"status"`
	CustomerId      *uuid.UUID       `json:"customer_id,omitempty"`
	AgentId         *uuid.UUID       `json:"agent_id,omitempty"`
	RestaurantId    *uuid.UUID       `json:"restaurant_id,omitempty"`
	TicketId        *uuid.UUID       `json:"ticket_id,omitempty"`
	AgentAcceptedAt *time.Time       `json:"agent_accepted_at,omitempty"`
	ClosedAt        *time.Time       `json:"closed_at,omitempty"`
	LastMessageAt   *time.Time       `json:"last_message_at,omitempty"`
	CreatedAt       time.Time        `json:"created_at"`
	UpdatedAt       time.Time        `json:"updated_at"`
	UnreadCount     int64            `json:"unread_count"`
	LastMessage     *MessageResponse `json:"last_message,omitempty"`
}

type MessageResponse struct {
	Id              uuid.UUID             `json:"id"`
	SessionId       uuid.UUID             `json:"session_id"`
	SenderId        *uuid.UUID            `json:"sender_id,omitempty"`
	SenderRole      string                `json:"sender_role"`
	Content         *string               `json:"content,omitempty"`
	MessageType     string                `json:"message_type"`
	IsSystemMessage bool                  `json:"is_system_message"`
	CreatedAt       time.Time             `json:"created_at"`
	Attachments     []*AttachmentResponse `json:"attachments,omitempty"`
	ReadReceipts    []*ReceiptResponse    `json:"read_receipts,omitempty"`
}

type AttachmentResponse struct {
	Id           uuid.UUID `json:"id"`
	MessageId    uuid.UUID `json:"message_id"`
	FileName     string    `json:"file_name"`
	FileType     string    `json:"file_type"`
	FileSize     int64     `json:"file_size"`
	FileURL      string    `json:"file_url"`
	ThumbnailURL *string   `json:"thumbnail_url,omitempty"`
}

type ReceiptResponse struct {
	Id        uuid.UUID `json:"id"`
	MessageId uuid.UUID `json:"message_id"`
	UserId    uuid.UUID `json:"user_id"`
	ReadAt    time.Time `json:"read_at"`
}

// --- Mappers ---

func NewSessionResponse(details *entity.SessionWithDetails) *SessionResponse {
	if details == nil {
		return nil
	}
	resp := &SessionResponse{
		Id:              details.Id,
		Subject:         details.Subject,
		Category:        details.Category,
		Priority:        details.Priority,
		Status:          string(details.Status),
		CustomerId:      details.CustomerId,
		AgentId:         details.AgentId,
		RestaurantId:    details.RestaurantId,
		TicketId:        details.TicketId,
		AgentAcceptedAt: details.AgentAcceptedAt,
		ClosedAt:        details.ClosedAt,
		LastMessageAt:   details.LastMessageAt,
		CreatedAt:       details.CreatedAt,
		UpdatedAt:       details.UpdatedAt,
		UnreadCount:     details.UnreadCount,
	}
	if details.LastMessage != nil {
		resp.LastMessage = NewMessageResponse(details.LastMessage)
	}
	return resp
}

func NewSessionResponses(sessions []*entity.SessionWithDetails) []*SessionResponse {
	out := make([]*SessionResponse, len(sessions))
	for i, s := range sessions {
		out[i] = NewSessionResponse(s)
	}
	return out
}

func NewMessageResponse(message *entity.ChatMessage) *MessageResponse {
	if message == nil {
		return nil
	}
	resp := &MessageResponse{
		Id:              message.Id,
		SessionId:       message.SessionId,
		SenderId:        message.SenderId,
		SenderRole:      string(message.SenderRole),
		Content:         message.Content,
		MessageType:     string(message.MessageType),
		IsSystemMessage: message.IsSystemMessage,
		CreatedAt:       message.CreatedAt,
	}
	for _, a := range message.Attachments {
		resp.Attachments = append(resp.Attachments, NewAttachmentResponse(a))
	}
	for _, r := range message.ReadReceipts {
		resp.ReadReceipts = append(resp.ReadReceipts, NewReceiptResponse(r))
	}
	return resp
}

func NewMessageResponses(messages []*entity.ChatMessage) []*MessageResponse {
	out := make([]*MessageResponse, len(messages))
	for i, m := range messages {
		out[i] = NewMessageResponse(m)
	}
	return out
}

func NewAttachmentResponse(attachment *entity.MessageAttachment) *AttachmentResponse {
	return &AttachmentResponse{
		Id:           attachment.Id,
		MessageId:    attachment.MessageId,
		FileName:     attachment.FileName,
		FileType:     attachment.FileType,
		FileSize:     attachment.FileSize,
		FileURL:      attachment.FileURL,
		ThumbnailURL: attachment.ThumbnailURL,
	}
}

func NewReceiptResponse(receipt *entity.MessageReadReceipt) *ReceiptResponse {
	return &ReceiptResponse{
		Id:        receipt.Id,
		MessageId: receipt.MessageId,
		UserId:    receipt.UserId,
		ReadAt:    receipt.ReadAt,
	}
}
