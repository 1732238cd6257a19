package websocket

import (
	"encoding/json"
	"time"

	"marketplace-be/internal/dto"

	"github.com/google/uuid"
)

// Inbound event names (client -> server).
const (
	EventJoinSession  = "join_session"
	EventLeaveSession = "leave_session"
	EventSendMessage  = "send_message"
	EventTyping       = "typing"
	EventStopTyping   = "stop_typing"
	EventMarkAsRead   = "mark_as_read"
	EventAcceptChat   = "accept_chat"
	EventCloseChat    = "close_chat"
)

// Outbound event names (server -> client).
const (
	EventSessionJoined        = "session_joined"
	EventUserJoined           = "user_joined"
	EventUserLeft             = "user_left"
	EventNewMessage           = "new_message"
	EventMessageSent          = "message_sent"
	EventUserTyping           = "user_typing"
	EventTypingStopped        = "typing_stopped"
	EventMessagesRead         = "messages_read"
	EventChatAccepted         = "chat_accepted"
	EventSessionStatusChanged = "session_status_changed"
	EventChatClosed           = "chat_closed"
	EventError                = "error"
)

// Envelope is the wire frame for every event in either direction.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// --- Inbound payloads ---

type SessionRefPayload struct {
	SessionId uuid.UUID `json:"session_id"`
}

type SendMessagePayload struct {
	SessionId   uuid.UUID `json:"session_id"`
	Content     string    `json:"content,omitempty"`
	MessageType string    `json:"message_type,omitempty"`
	TempId      string    `json:"temp_id,omitempty"`
}

type MarkAsReadPayload struct {
	SessionId  uuid.UUID   `json:"session_id"`
	MessageIds []uuid.UUID `json:"message_ids,omitempty"`
}

// --- Outbound payloads ---

type Participant struct {
	UserId uuid.UUID `json:"user_id"`
	Role   string    `json:"role"`
	Name   string    `json:"name"`
	Online bool      `json:"online"`
}

type SessionJoinedPayload struct {
	Session      *dto.SessionResponse   `json:"session"`
	Messages     []*dto.MessageResponse `json:"messages"`
	Participants []Participant          `json:"participants"`
}

type UserJoinedPayload struct {
	UserId uuid.UUID `json:"user_id"`
	Role   string    `json:"role"`
	Name   string    `json:"name"`
}

type UserLeftPayload struct {
	UserId uuid.UUID `json:"user_id"`
	Role   string    `json:"role"`
}

type NewMessagePayload struct {
	Message    *dto.MessageResponse `json:"message"`
	SenderName string               `json:"sender_name"`
}

type MessageSentPayload struct {
	MessageId uuid.UUID `json:"message_id"`
	TempId    string    `json:"temp_id,omitempty"`
	SentAt    time.Time `json:"sent_at"`
}

type UserTypingPayload struct {
	SessionId uuid.UUID `json:"session_id"`
	UserId    uuid.UUID `json:"user_id"`
	UserName  string    `json:"user_name"`
}

type TypingStoppedPayload struct {
	SessionId uuid.UUID `json:"session_id"`
	UserId    uuid.UUID `json:"user_id"`
}

type MessagesReadPayload struct {
	SessionId  uuid.UUID   `json:"session_id"`
	UserId     uuid.UUID   `json:"user_id"`
	MessageIds []uuid.UUID `json:"message_ids,omitempty"`
}

type ChatAcceptedPayload struct {
	Session   *dto.SessionResponse `json:"session"`
	AgentId   uuid.UUID            `json:"agent_id"`
	AgentName string               `json:"agent_name"`
}

type SessionStatusChangedPayload struct {
	SessionId uuid.UUID  `json:"session_id"`
	Status    string     `json:"status"`
	AgentId   *uuid.UUID `json:"agent_id,omitempty"`
}

type ChatClosedPayload struct {
	Session  *dto.SessionResponse `json:"session"`
	ClosedBy uuid.UUID            `json:"closed_by"`
}

type ErrorPayload struct {
	Message string `json:"message"`
}

// MarshalEvent wraps an event payload in the wire envelope.
func MarshalEvent(event string, data interface{}) ([]byte, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Envelope{Event: event, Data: raw})
}
