package model

import (
	"time"

	"github.com/google/uuid"
)

type TypingIndicator struct {
	SessionId uuid.UUID `gorm:"type:uuid;primaryKey"`
	UserId    uuid.UUID `gorm:"type:uuid;primaryKey"`
	StartedAt time.Time `gorm:"not null"`
	ExpiresAt time.Time `gorm:"not null;index"`
}

func (TypingIndicator) TableName() string {
	return "typing_indicators"
}
