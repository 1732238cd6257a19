package model

import (
	"github.com/google/uuid"
)

type MessageAttachment struct {
	Id           uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	MessageId    uuid.UUID `gorm:"type:uuid;not null;index"`
	FileName     string    `gorm:"type:text;not null"`
	FileType     string    `gorm:"type:varchar(100);not null"`
	FileSize     int64     `gorm:"not null"`
	FileURL      string    `gorm:"type:text;not null"`
	ThumbnailURL *string   `gorm:"type:text"`
}

func (MessageAttachment) TableName() string {
	return "message_attachments"
}
