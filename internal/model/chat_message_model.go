package model

import (
	"time"

	"github.com/google/uuid"
)

type ChatMessage struct {
	Id              uuid.UUID  `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	SessionId       uuid.UUID  `gorm:"type:uuid;not null;index"`
	SenderId        *uuid.UUID `gorm:"type:uuid;index"`
	SenderRole      string     `gorm:"type:varchar(20);not null"`
	Content         *string    `gorm:"type:text"`
	MessageType     string     `gorm:"type:varchar(20);not null;default:'text'"`
	IsSystemMessage bool       `gorm:"not null;default:false"`
	CreatedAt       time.Time  `gorm:"autoCreateTime;index"`

	Attachments  []MessageAttachment  `gorm:"foreignKey:MessageId"`
	ReadReceipts []MessageReadReceipt `gorm:"foreignKey:MessageId"`
}

func (ChatMessage) TableName() string {
	return "chat_messages"
}
