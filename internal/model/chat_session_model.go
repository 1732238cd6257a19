package model

import (
	"time"

	"github.com/google/uuid"
)

type ChatSession struct {
	Id              uuid.UUID  `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	Subject         string     `gorm:"type:text;not null"`
	Category        string     `gorm:"type:varchar(50);not null;default:'general'"`
	Priority        string     `gorm:"type:varchar(20);not null;default:'medium'"`
	Status          string     `gorm:"type:varchar(20);not null;default:'waiting';index"`
	CustomerId      *uuid.UUID `gorm:"type:uuid;index"`
	AgentId         *uuid.UUID `gorm:"type:uuid;index"`
	RestaurantId    *uuid.UUID `gorm:"type:uuid"`
	TicketId        *uuid.UUID `gorm:"type:uuid"`
	AgentAcceptedAt *time.Time
	ClosedAt        *time.Time
	LastMessageAt   *time.Time `gorm:"index"`
	CreatedAt       time.Time  `gorm:"autoCreateTime"`
	UpdatedAt       time.Time  `gorm:"autoUpdateTime"`
}

func (ChatSession) TableName() string {
	return "chat_sessions"
}
