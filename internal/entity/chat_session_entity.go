package entity

import (
	"time"

	"github.com/google/uuid"
)

type SessionStatus string
type UserRole string

const (
	SessionWaiting  SessionStatus = "waiting"
	SessionActive   SessionStatus = "active"
	SessionResolved SessionStatus = "resolved"
	SessionClosed   SessionStatus = "closed"

	RoleCustomer UserRole = "customer"
	RoleSupport  UserRole = "support"
	RoleAdmin    UserRole = "admin"
	RoleSystem   UserRole = "system"

	DefaultCategory = "general"
	DefaultPriority = "medium"
)

// statusRank orders the session lifecycle. Transitions may only advance.
var statusRank = map[SessionStatus]int{
	SessionWaiting:  0,
	SessionActive:   1,
	SessionResolved: 2,
	SessionClosed:   3,
}

// CanTransition reports whether moving from -> to advances the lifecycle.
func CanTransition(from, to SessionStatus) bool {
	fromRank, okFrom := statusRank[from]
	toRank, okTo := statusRank[to]
	return okFrom && okTo && toRank > fromRank
}

// IsAgentRole reports whether the role may accept or manage support sessions.
func IsAgentRole(role UserRole) bool {
	return role == RoleSupport || role == RoleAdmin
}

type ChatSession struct {
	Id              uuid.UUID
	Subject         string
	Category        string
	Priority        string
	Status          SessionStatus
	CustomerId      *uuid.UUID
	AgentId         *uuid.UUID
	RestaurantId    *uuid.UUID
	TicketId        *uuid.UUID
	AgentAcceptedAt *time.Time
	ClosedAt        *time.Time
	LastMessageAt   *time.Time
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// SessionWithDetails augments a session row with the derived fields the
// client list views need: how many messages the customer has not read yet
// and the most recent message in the thread.
type SessionWithDetails struct {
	ChatSession
	UnreadCount int64
	LastMessage *ChatMessage
}
