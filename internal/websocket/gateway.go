package websocket

import (
	"context"
	"encoding/json"
	"time"

	"marketplace-be/internal/dto"
	"marketplace-be/internal/entity"
	"marketplace-be/internal/pkg/apperror"
	"marketplace-be/internal/pkg/identity"
	"marketplace-be/internal/pkg/logger"
	"marketplace-be/internal/service"

	"github.com/gofiber/websocket/v2"
	"github.com/google/uuid"
)

const joinHistoryLimit = 50

type handlerFunc func(ctx context.Context, c *Client, data json.RawMessage) error

// Gateway owns the realtime side of the chat core. It authenticates
// connections (upstream, at the handshake), validates inbound events,
// delegates every state change to the chat service, and fans results out
// through the hub.
type Gateway struct {
	hub       *Hub
	chat      service.IChatService
	log       logger.ILogger
	typingTTL time.Duration

	handlers map[string]handlerFunc
}

func NewGateway(hub *Hub, chat service.IChatService, log logger.ILogger) *Gateway {
	g := &Gateway{
		hub:       hub,
		chat:      chat,
		log:       log,
		typingTTL: entity.TypingTTL,
	}
	g.handlers = map[string]handlerFunc{
		EventJoinSession:  g.handleJoinSession,
		EventLeaveSession: g.handleLeaveSession,
		EventSendMessage:  g.handleSendMessage,
		EventTyping:       g.handleTyping,
		EventStopTyping:   g.handleStopTyping,
		EventMarkAsRead:   g.handleMarkAsRead,
		EventAcceptChat:   g.handleAcceptChat,
		EventCloseChat:    g.handleCloseChat,
	}
	return g
}

// Serve attaches an authenticated connection to the hub and blocks until
// the connection drops.
func (g *Gateway) Serve(conn *websocket.Conn, id *identity.Identity) {
	client := newClient(g.hub, conn, id.UserID, id.Role, id.Name)
	g.hub.Register(client)

	go client.writePump()
	client.readPump(g)
}

func (g *Gateway) dispatch(c *Client, raw []byte) {
	var envelope Envelope
	if err := json.Unmarshal(raw, &envelope); err != nil {
		c.SendEvent(EventError, ErrorPayload{Message: "Invalid event format"})
		return
	}

	handler, ok := g.handlers[envelope.Event]
	if !ok {
		c.SendEvent(EventError, ErrorPayload{Message: "Unknown event: " + envelope.Event})
		return
	}

	if err := handler(context.Background(), c, envelope.Data); err != nil {
		g.sendError(c, err)
	}
}

// sendError flattens any failure to the single error event the protocol
// defines. Typed errors keep their message; everything else is masked.
func (g *Gateway) sendError(c *Client, err error) {
	if appErr, ok := apperror.From(err); ok {
		c.SendEvent(EventError, ErrorPayload{Message: appErr.Message})
		return
	}
	g.log.Error("Gateway", "Event handler failed", map[string]interface{}{
		"user_id": c.UserID.String(),
		"error":   err.Error(),
	})
	c.SendEvent(EventError, ErrorPayload{Message: "Something went wrong"})
}

// canAccess reports whether the caller may participate in the session:
// its customer, its assigned agent, or any support/admin identity.
func canAccess(session *entity.ChatSession, c *Client) bool {
	if session.CustomerId != nil && *session.CustomerId == c.UserID {
		return true
	}
	if session.AgentId != nil && *session.AgentId == c.UserID {
		return true
	}
	return entity.IsAgentRole(c.Role)
}

// requireParticipant loads the session from the store and rejects callers
// that may not act on it. Every session-scoped event goes through this, so
// a connection can never touch a session it could not join.
func (g *Gateway) requireParticipant(ctx context.Context, sessionId uuid.UUID, c *Client) (*entity.SessionWithDetails, error) {
	details, err := g.chat.GetSession(ctx, sessionId, uuid.Nil)
	if err != nil {
		return nil, err
	}
	if !canAccess(&details.ChatSession, c) {
		return nil, apperror.NewUnauthorized("Unauthorized to join this session")
	}
	return details, nil
}

func (g *Gateway) handleJoinSession(ctx context.Context, c *Client, data json.RawMessage) error {
	var payload SessionRefPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return apperror.NewValidation("Invalid join_session payload")
	}

	details, err := g.chat.GetSession(ctx, payload.SessionId, c.UserID)
	if err != nil {
		return err
	}
	if !canAccess(&details.ChatSession, c) {
		return apperror.NewUnauthorized("Unauthorized to join this session")
	}

	g.hub.JoinSession(payload.SessionId, c)

	messages, err := g.chat.ListMessages(ctx, payload.SessionId, joinHistoryLimit, 0)
	if err != nil {
		return err
	}

	c.SendEvent(EventSessionJoined, SessionJoinedPayload{
		Session:      dto.NewSessionResponse(details),
		Messages:     dto.NewMessageResponses(messages),
		Participants: g.participants(&details.ChatSession),
	})

	// Joining implies catching up; mark everything from others as read.
	if _, err := g.chat.MarkSessionRead(ctx, payload.SessionId, c.UserID); err != nil {
		return err
	}
	c.SendEvent(EventMessagesRead, MessagesReadPayload{
		SessionId: payload.SessionId,
		UserId:    c.UserID,
	})

	g.broadcastToSession(payload.SessionId, EventUserJoined, UserJoinedPayload{
		UserId: c.UserID,
		Role:   string(c.Role),
		Name:   c.Name,
	}, c)

	return nil
}

func (g *Gateway) participants(session *entity.ChatSession) []Participant {
	var out []Participant
	if session.CustomerId != nil {
		out = append(out, g.participant(*session.CustomerId, entity.RoleCustomer))
	}
	if session.AgentId != nil {
		out = append(out, g.participant(*session.AgentId, entity.RoleSupport))
	}
	return out
}

func (g *Gateway) participant(userId uuid.UUID, fallbackRole entity.UserRole) Participant {
	p := Participant{
		UserId: userId,
		Role:   string(fallbackRole),
	}
	// The display name is only known for connected users.
	if name, role, online := g.hub.UserInfo(userId); online {
		p.Name = name
		p.Role = role
		p.Online = true
	}
	return p
}

func (g *Gateway) handleLeaveSession(ctx context.Context, c *Client, data json.RawMessage) error {
	var payload SessionRefPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return apperror.NewValidation("Invalid leave_session payload")
	}

	g.hub.LeaveSession(payload.SessionId, c)
	g.broadcastToSession(payload.SessionId, EventUserLeft, UserLeftPayload{
		UserId: c.UserID,
		Role:   string(c.Role),
	}, nil)
	return nil
}

func (g *Gateway) handleSendMessage(ctx context.Context, c *Client, data json.RawMessage) error {
	var payload SendMessagePayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return apperror.NewValidation("Invalid send_message payload")
	}

	// Re-validate against the store on every send, never the hub cache.
	details, err := g.chat.GetSession(ctx, payload.SessionId, c.UserID)
	if err != nil {
		return err
	}
	if !canAccess(&details.ChatSession, c) {
		return apperror.NewUnauthorized("Unauthorized to join this session")
	}

	hadTimer := c.stopTypingTimer(payload.SessionId)

	message, err := g.chat.SendMessage(ctx, &service.SendMessageInput{
		SessionId:   payload.SessionId,
		SenderId:    c.UserID,
		SenderRole:  c.Role,
		Content:     payload.Content,
		MessageType: entity.MessageType(payload.MessageType),
	})
	if err != nil {
		return err
	}

	if hadTimer {
		g.broadcastToSession(payload.SessionId, EventTypingStopped, TypingStoppedPayload{
			SessionId: payload.SessionId,
			UserId:    c.UserID,
		}, nil)
	}

	// Broadcast order follows persistence order: fan out right after the insert.
	g.broadcastToSession(payload.SessionId, EventNewMessage, NewMessagePayload{
		Message:    dto.NewMessageResponse(message),
		SenderName: c.Name,
	}, nil)

	c.SendEvent(EventMessageSent, MessageSentPayload{
		MessageId: message.Id,
		TempId:    payload.TempId,
		SentAt:    message.CreatedAt,
	})

	return nil
}

func (g *Gateway) handleTyping(ctx context.Context, c *Client, data json.RawMessage) error {
	var payload SessionRefPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return apperror.NewValidation("Invalid typing payload")
	}
	if _, err := g.requireParticipant(ctx, payload.SessionId, c); err != nil {
		return err
	}

	if err := g.chat.SetTyping(ctx, payload.SessionId, c.UserID); err != nil {
		return err
	}

	g.broadcastToSession(payload.SessionId, EventUserTyping, UserTypingPayload{
		SessionId: payload.SessionId,
		UserId:    c.UserID,
		UserName:  c.Name,
	}, c)

	sessionId := payload.SessionId
	c.startTypingTimer(sessionId, g.typingTTL, func() {
		if err := g.chat.RemoveTyping(context.Background(), sessionId, c.UserID); err != nil {
			g.log.Warn("Gateway", "Typing auto-stop cleanup failed", map[string]interface{}{
				"session_id": sessionId.String(),
				"user_id":    c.UserID.String(),
				"error":      err.Error(),
			})
		}
		g.broadcastToSession(sessionId, EventTypingStopped, TypingStoppedPayload{
			SessionId: sessionId,
			UserId:    c.UserID,
		}, nil)
	})

	return nil
}

func (g *Gateway) handleStopTyping(ctx context.Context, c *Client, data json.RawMessage) error {
	var payload SessionRefPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return apperror.NewValidation("Invalid stop_typing payload")
	}
	if _, err := g.requireParticipant(ctx, payload.SessionId, c); err != nil {
		return err
	}

	c.stopTypingTimer(payload.SessionId)
	if err := g.chat.RemoveTyping(ctx, payload.SessionId, c.UserID); err != nil {
		return err
	}

	g.broadcastToSession(payload.SessionId, EventTypingStopped, TypingStoppedPayload{
		SessionId: payload.SessionId,
		UserId:    c.UserID,
	}, nil)
	return nil
}

func (g *Gateway) handleMarkAsRead(ctx context.Context, c *Client, data json.RawMessage) error {
	var payload MarkAsReadPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return apperror.NewValidation("Invalid mark_as_read payload")
	}
	if _, err := g.requireParticipant(ctx, payload.SessionId, c); err != nil {
		return err
	}

	if len(payload.MessageIds) > 0 {
		for _, messageId := range payload.MessageIds {
			if _, err := g.chat.MarkMessageRead(ctx, messageId, c.UserID); err != nil {
				return err
			}
		}
	} else {
		if _, err := g.chat.MarkSessionRead(ctx, payload.SessionId, c.UserID); err != nil {
			return err
		}
	}

	g.broadcastToSession(payload.SessionId, EventMessagesRead, MessagesReadPayload{
		SessionId:  payload.SessionId,
		UserId:     c.UserID,
		MessageIds: payload.MessageIds,
	}, nil)
	return nil
}

func (g *Gateway) handleAcceptChat(ctx context.Context, c *Client, data json.RawMessage) error {
	var payload SessionRefPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return apperror.NewValidation("Invalid accept_chat payload")
	}

	if !entity.IsAgentRole(c.Role) {
		return apperror.NewUnauthorized("Only support agents can accept chats")
	}

	session, systemMessage, err := g.chat.AssignAgent(ctx, payload.SessionId, c.UserID)
	if err != nil {
		return err
	}

	g.hub.JoinSession(payload.SessionId, c)

	g.broadcastToSession(payload.SessionId, EventNewMessage, NewMessagePayload{
		Message: dto.NewMessageResponse(systemMessage),
	}, nil)

	g.broadcastToSession(payload.SessionId, EventChatAccepted, ChatAcceptedPayload{
		Session:   dto.NewSessionResponse(&entity.SessionWithDetails{ChatSession: *session}),
		AgentId:   c.UserID,
		AgentName: c.Name,
	}, nil)

	// Any connected client may learn the session left the open queue.
	agentId := c.UserID
	g.broadcastAll(EventSessionStatusChanged, SessionStatusChangedPayload{
		SessionId: payload.SessionId,
		Status:    string(entity.SessionActive),
		AgentId:   &agentId,
	})

	return nil
}

func (g *Gateway) handleCloseChat(ctx context.Context, c *Client, data json.RawMessage) error {
	var payload SessionRefPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return apperror.NewValidation("Invalid close_chat payload")
	}

	details, err := g.chat.GetSession(ctx, payload.SessionId, c.UserID)
	if err != nil {
		return err
	}

	isAssignedAgent := details.AgentId != nil && *details.AgentId == c.UserID
	if !isAssignedAgent && c.Role != entity.RoleAdmin {
		return apperror.NewUnauthorized("Unauthorized to close this chat")
	}

	session, systemMessage, err := g.chat.UpdateStatus(ctx, payload.SessionId, entity.SessionClosed)
	if err != nil {
		return err
	}

	if systemMessage != nil {
		g.broadcastToSession(payload.SessionId, EventNewMessage, NewMessagePayload{
			Message: dto.NewMessageResponse(systemMessage),
		}, nil)
	}

	g.broadcastToSession(payload.SessionId, EventChatClosed, ChatClosedPayload{
		Session:  dto.NewSessionResponse(&entity.SessionWithDetails{ChatSession: *session}),
		ClosedBy: c.UserID,
	}, nil)

	g.broadcastAll(EventSessionStatusChanged, SessionStatusChangedPayload{
		SessionId: payload.SessionId,
		Status:    string(entity.SessionClosed),
	})

	return nil
}

// Disconnect tears down everything tied to a dropped connection: session
// registrations, typing timers, and the typing rows behind them.
func (g *Gateway) Disconnect(c *Client) {
	c.stopAllTypingTimers()

	joined := g.hub.Unregister(c)
	for _, sessionId := range joined {
		if err := g.chat.RemoveTyping(context.Background(), sessionId, c.UserID); err != nil {
			g.log.Warn("Gateway", "Typing cleanup on disconnect failed", map[string]interface{}{
				"session_id": sessionId.String(),
				"user_id":    c.UserID.String(),
				"error":      err.Error(),
			})
		}
		g.broadcastToSession(sessionId, EventUserLeft, UserLeftPayload{
			UserId: c.UserID,
			Role:   string(c.Role),
		}, nil)
	}
}

func (g *Gateway) broadcastToSession(sessionId uuid.UUID, event string, data interface{}, except *Client) {
	frame, err := MarshalEvent(event, data)
	if err != nil {
		return
	}
	g.hub.BroadcastToSession(sessionId, frame, except)
}

func (g *Gateway) broadcastAll(event string, data interface{}) {
	frame, err := MarshalEvent(event, data)
	if err != nil {
		return
	}
	g.hub.BroadcastAll(frame)
}
