package entity

import (
	"time"

	"github.com/google/uuid"
)

type MessageType string

const (
	MessageText   MessageType = "text"
	MessageImage  MessageType = "image"
	MessageFile   MessageType = "file"
	MessageSystem MessageType = "system"
)

type ChatMessage struct {
	Id              uuid.UUID
	SessionId       uuid.UUID
	SenderId        *uuid.UUID
	SenderRole      UserRole
	Content         *string
	MessageType     MessageType
	IsSystemMessage bool
	CreatedAt       time.Time

	Attachments  []*MessageAttachment
	ReadReceipts []*MessageReadReceipt
}

// SentBy reports whether the message was authored by the given user.
// System messages carry no sender and never match.
func (m *ChatMessage) SentBy(userId uuid.UUID) bool {
	return m.SenderId != nil && *m.SenderId == userId
}

type MessageAttachment struct {
	Id           uuid.UUID
	MessageId    uuid.UUID
	FileName     string
	FileType     string
	FileSize     int64
	FileURL      string
	ThumbnailURL *string
}

type MessageReadReceipt struct {
	Id        uuid.UUID
	MessageId uuid.UUID
	UserId    uuid.UUID
	ReadAt    time.Time
}
