package model

import (
	"time"

	"github.com/google/uuid"
)

type MessageReadReceipt struct {
	Id        uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	MessageId uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_receipt_message_user"`
	UserId    uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_receipt_message_user"`
	ReadAt    time.Time `gorm:"not null"`
}

func (MessageReadReceipt) TableName() string {
	return "message_read_receipts"
}
