package websocket

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"marketplace-be/internal/entity"
	"marketplace-be/internal/repository/memory"
	"marketplace-be/internal/service"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// The gateway is exercised against the real chat service over the in-memory
// store; only the websocket connection itself is absent. Handlers never
// touch the raw connection, so a nil Conn is safe here.
type gatewayFixture struct {
	gateway *Gateway
	hub     *Hub
	chat    service.IChatService
}

func newGatewayFixture(t *testing.T) *gatewayFixture {
	t.Helper()
	store := memory.NewChatStore()
	chat := service.NewChatService(memory.NewRepositoryFactory(store), nil, silentLogger{})
	hub := NewHub(nil, silentLogger{})
	return &gatewayFixture{
		gateway: NewGateway(hub, chat, silentLogger{}),
		hub:     hub,
		chat:    chat,
	}
}

func (f *gatewayFixture) connect(role entity.UserRole, name string) *Client {
	c := newClient(f.hub, nil, uuid.New(), role, name)
	f.hub.Register(c)
	return c
}

func (f *gatewayFixture) connectAs(userId uuid.UUID, role entity.UserRole, name string) *Client {
	c := newClient(f.hub, nil, userId, role, name)
	f.hub.Register(c)
	return c
}

func (f *gatewayFixture) send(c *Client, event string, payload interface{}) {
	data, _ := json.Marshal(payload)
	frame, _ := json.Marshal(Envelope{Event: event, Data: data})
	f.gateway.dispatch(c, frame)
}

// nextEvent pops the next queued frame, failing the test when none arrives
// in time.
func nextEvent(t *testing.T, c *Client) Envelope {
	t.Helper()
	select {
	case frame := <-c.Send:
		var envelope Envelope
		require.NoError(t, json.Unmarshal(frame, &envelope))
		return envelope
	case <-time.After(time.Second):
		t.Fatal("no event received")
		return Envelope{}
	}
}

func errorMessage(t *testing.T, envelope Envelope) string {
	t.Helper()
	require.Equal(t, EventError, envelope.Event)
	var payload ErrorPayload
	require.NoError(t, json.Unmarshal(envelope.Data, &payload))
	return payload.Message
}

func (f *gatewayFixture) createSession(t *testing.T, customerId uuid.UUID) uuid.UUID {
	t.Helper()
	session, err := f.chat.CreateSession(context.Background(), &service.CreateSessionInput{
		CustomerId:     customerId,
		Subject:        "Order issue",
		InitialMessage: "Hello?",
	})
	require.NoError(t, err)
	return session.Id
}

func TestJoinSession(t *testing.T) {
	t.Run("unknown session", func(t *testing.T) {
		f := newGatewayFixture(t)
		c := f.connect(entity.RoleCustomer, "Dana")
		f.send(c, EventJoinSession, SessionRefPayload{SessionId: uuid.New()})
		assert.Equal(t, "Session not found", errorMessage(t, nextEvent(t, c)))
	})

	t.Run("foreign customer is rejected", func(t *testing.T) {
		f := newGatewayFixture(t)
		sessionId := f.createSession(t, uuid.New())

		intruder := f.connect(entity.RoleCustomer, "Mallory")
		f.send(intruder, EventJoinSession, SessionRefPayload{SessionId: sessionId})
		assert.Equal(t, "Unauthorized to join this session", errorMessage(t, nextEvent(t, intruder)))
		assert.False(t, f.hub.InSession(sessionId, intruder))
	})

	t.Run("owner receives history and peers see the join", func(t *testing.T) {
		f := newGatewayFixture(t)
		customerId := uuid.New()
		sessionId := f.createSession(t, customerId)

		agent := f.connect(entity.RoleSupport, "Agent")
		f.send(agent, EventJoinSession, SessionRefPayload{SessionId: sessionId})
		nextEvent(t, agent) // session_joined
		nextEvent(t, agent) // messages_read

		customer := f.connectAs(customerId, entity.RoleCustomer, "Dana")
		f.send(customer, EventJoinSession, SessionRefPayload{SessionId: sessionId})

		joined := nextEvent(t, customer)
		require.Equal(t, EventSessionJoined, joined.Event)
		var payload SessionJoinedPayload
		require.NoError(t, json.Unmarshal(joined.Data, &payload))
		assert.Equal(t, sessionId, payload.Session.Id)
		require.Len(t, payload.Messages, 1)
		assert.Equal(t, "Hello?", *payload.Messages[0].Content)

		read := nextEvent(t, customer)
		assert.Equal(t, EventMessagesRead, read.Event)

		peerEvent := nextEvent(t, agent)
		require.Equal(t, EventUserJoined, peerEvent.Event)
		var userJoined UserJoinedPayload
		require.NoError(t, json.Unmarshal(peerEvent.Data, &userJoined))
		assert.Equal(t, customerId, userJoined.UserId)
		assert.Equal(t, "Dana", userJoined.Name)
	})
}

func TestSendMessageEvent(t *testing.T) {
	f := newGatewayFixture(t)
	customerId := uuid.New()
	sessionId := f.createSession(t, customerId)

	customer := f.connectAs(customerId, entity.RoleCustomer, "Dana")
	agent := f.connect(entity.RoleSupport, "Agent")
	for _, c := range []*Client{customer, agent} {
		f.send(c, EventJoinSession, SessionRefPayload{SessionId: sessionId})
		drain(c)
	}

	f.send(customer, EventSendMessage, SendMessagePayload{
		SessionId: sessionId,
		Content:   "Where is my order?",
		TempId:    "tmp-1",
	})

	// Both participants get the broadcast; the sender also gets its ack.
	broadcast := nextEvent(t, agent)
	require.Equal(t, EventNewMessage, broadcast.Event)
	var newMsg NewMessagePayload
	require.NoError(t, json.Unmarshal(broadcast.Data, &newMsg))
	assert.Equal(t, "Where is my order?", *newMsg.Message.Content)
	assert.Equal(t, "Dana", newMsg.SenderName)

	senderBroadcast := nextEvent(t, customer)
	assert.Equal(t, EventNewMessage, senderBroadcast.Event)

	ack := nextEvent(t, customer)
	require.Equal(t, EventMessageSent, ack.Event)
	var sent MessageSentPayload
	require.NoError(t, json.Unmarshal(ack.Data, &sent))
	assert.Equal(t, "tmp-1", sent.TempId)
	assert.Equal(t, newMsg.Message.Id, sent.MessageId)
}

func TestTypingAutoStop(t *testing.T) {
	f := newGatewayFixture(t)
	f.gateway.typingTTL = 30 * time.Millisecond

	customerId := uuid.New()
	sessionId := f.createSession(t, customerId)

	customer := f.connectAs(customerId, entity.RoleCustomer, "Dana")
	agent := f.connect(entity.RoleSupport, "Agent")
	for _, c := range []*Client{customer, agent} {
		f.send(c, EventJoinSession, SessionRefPayload{SessionId: sessionId})
		drain(c)
	}

	f.send(customer, EventTyping, SessionRefPayload{SessionId: sessionId})

	typing := nextEvent(t, agent)
	require.Equal(t, EventUserTyping, typing.Event)
	assert.Empty(t, drain(customer), "typing is not echoed to its author")

	// Silence: the per-connection timer must fire exactly one synthetic stop.
	stopped := nextEvent(t, agent)
	assert.Equal(t, EventTypingStopped, stopped.Event)

	users, err := f.chat.ListTypingUsers(context.Background(), sessionId)
	require.NoError(t, err)
	assert.Empty(t, users)

	time.Sleep(60 * time.Millisecond)
	assert.Empty(t, drain(agent), "timer fires only once")
}

func TestTypingStoppedOnSend(t *testing.T) {
	f := newGatewayFixture(t)
	f.gateway.typingTTL = time.Minute

	customerId := uuid.New()
	sessionId := f.createSession(t, customerId)

	customer := f.connectAs(customerId, entity.RoleCustomer, "Dana")
	agent := f.connect(entity.RoleSupport, "Agent")
	for _, c := range []*Client{customer, agent} {
		f.send(c, EventJoinSession, SessionRefPayload{SessionId: sessionId})
		drain(c)
	}

	f.send(customer, EventTyping, SessionRefPayload{SessionId: sessionId})
	require.Equal(t, EventUserTyping, nextEvent(t, agent).Event)

	f.send(customer, EventSendMessage, SendMessagePayload{SessionId: sessionId, Content: "done"})

	assert.Equal(t, EventTypingStopped, nextEvent(t, agent).Event)
	assert.Equal(t, EventNewMessage, nextEvent(t, agent).Event)
	assert.False(t, customer.stopTypingTimer(sessionId), "auto-stop timer was already cancelled")
}

func TestAcceptChat(t *testing.T) {
	t.Run("customers cannot accept", func(t *testing.T) {
		f := newGatewayFixture(t)
		customerId := uuid.New()
		sessionId := f.createSession(t, customerId)

		customer := f.connectAs(customerId, entity.RoleCustomer, "Dana")
		f.send(customer, EventAcceptChat, SessionRefPayload{SessionId: sessionId})
		assert.Equal(t, "Only support agents can accept chats", errorMessage(t, nextEvent(t, customer)))
	})

	t.Run("winner and loser", func(t *testing.T) {
		f := newGatewayFixture(t)
		customerId := uuid.New()
		sessionId := f.createSession(t, customerId)

		customer := f.connectAs(customerId, entity.RoleCustomer, "Dana")
		f.send(customer, EventJoinSession, SessionRefPayload{SessionId: sessionId})
		drain(customer)

		winner := f.connect(entity.RoleSupport, "Avery")
		f.send(winner, EventAcceptChat, SessionRefPayload{SessionId: sessionId})

		// Session participants see the system notice and the acceptance.
		assert.Equal(t, EventNewMessage, nextEvent(t, customer).Event)
		accepted := nextEvent(t, customer)
		require.Equal(t, EventChatAccepted, accepted.Event)
		var payload ChatAcceptedPayload
		require.NoError(t, json.Unmarshal(accepted.Data, &payload))
		assert.Equal(t, winner.UserID, payload.AgentId)
		assert.Equal(t, "Avery", payload.AgentName)

		// The queue change is announced to everyone, session member or not.
		status := nextEvent(t, customer)
		require.Equal(t, EventSessionStatusChanged, status.Event)
		var change SessionStatusChangedPayload
		require.NoError(t, json.Unmarshal(status.Data, &change))
		assert.Equal(t, "active", change.Status)

		loser := f.connect(entity.RoleSupport, "Blake")
		drain(loser)
		f.send(loser, EventAcceptChat, SessionRefPayload{SessionId: sessionId})
		assert.Equal(t, "Chat already accepted", errorMessage(t, nextEvent(t, loser)))
	})

	t.Run("unknown session", func(t *testing.T) {
		f := newGatewayFixture(t)
		agent := f.connect(entity.RoleSupport, "Avery")
		f.send(agent, EventAcceptChat, SessionRefPayload{SessionId: uuid.New()})
		assert.Equal(t, "Session not found", errorMessage(t, nextEvent(t, agent)))
	})
}

func TestCloseChat(t *testing.T) {
	f := newGatewayFixture(t)
	customerId := uuid.New()
	sessionId := f.createSession(t, customerId)

	agent := f.connect(entity.RoleSupport, "Avery")
	f.send(agent, EventAcceptChat, SessionRefPayload{SessionId: sessionId})
	drain(agent)

	// The customer is neither the assigned agent nor an admin.
	customer := f.connectAs(customerId, entity.RoleCustomer, "Dana")
	f.send(customer, EventCloseChat, SessionRefPayload{SessionId: sessionId})
	assert.Equal(t, "Unauthorized to close this chat", errorMessage(t, nextEvent(t, customer)))

	// A different agent who never accepted cannot close either.
	bystander := f.connect(entity.RoleSupport, "Blake")
	f.send(bystander, EventCloseChat, SessionRefPayload{SessionId: sessionId})
	assert.Equal(t, "Unauthorized to close this chat", errorMessage(t, nextEvent(t, bystander)))

	f.send(agent, EventCloseChat, SessionRefPayload{SessionId: sessionId})
	assert.Equal(t, EventNewMessage, nextEvent(t, agent).Event)

	closed := nextEvent(t, agent)
	require.Equal(t, EventChatClosed, closed.Event)
	var payload ChatClosedPayload
	require.NoError(t, json.Unmarshal(closed.Data, &payload))
	assert.Equal(t, agent.UserID, payload.ClosedBy)
	assert.Equal(t, "closed", payload.Session.Status)

	status := nextEvent(t, agent)
	assert.Equal(t, EventSessionStatusChanged, status.Event)
}

func TestDisconnectCleanup(t *testing.T) {
	f := newGatewayFixture(t)
	f.gateway.typingTTL = time.Minute

	customerId := uuid.New()
	sessionId := f.createSession(t, customerId)

	customer := f.connectAs(customerId, entity.RoleCustomer, "Dana")
	agent := f.connect(entity.RoleSupport, "Agent")
	for _, c := range []*Client{customer, agent} {
		f.send(c, EventJoinSession, SessionRefPayload{SessionId: sessionId})
		drain(c)
	}

	f.send(customer, EventTyping, SessionRefPayload{SessionId: sessionId})
	require.Equal(t, EventUserTyping, nextEvent(t, agent).Event)

	f.gateway.Disconnect(customer)

	left := nextEvent(t, agent)
	require.Equal(t, EventUserLeft, left.Event)
	var payload UserLeftPayload
	require.NoError(t, json.Unmarshal(left.Data, &payload))
	assert.Equal(t, customerId, payload.UserId)

	assert.False(t, f.hub.IsUserOnline(customerId))
	users, err := f.chat.ListTypingUsers(context.Background(), sessionId)
	require.NoError(t, err)
	assert.Empty(t, users, "typing row is cleared on disconnect")
}

func TestUnknownEvent(t *testing.T) {
	f := newGatewayFixture(t)
	c := f.connect(entity.RoleCustomer, "Dana")

	f.gateway.dispatch(c, []byte(`{"event":"self_destruct","data":{}}`))
	assert.Equal(t, "Unknown event: self_destruct", errorMessage(t, nextEvent(t, c)))

	f.gateway.dispatch(c, []byte(`not json`))
	assert.Equal(t, "Invalid event format", errorMessage(t, nextEvent(t, c)))
}

func TestSessionEventAuthorization(t *testing.T) {
	f := newGatewayFixture(t)
	ctx := context.Background()
	customerId := uuid.New()
	sessionId := f.createSession(t, customerId)

	owner := f.connectAs(customerId, entity.RoleCustomer, "Dana")
	f.send(owner, EventJoinSession, SessionRefPayload{SessionId: sessionId})
	nextEvent(t, owner) // session_joined
	nextEvent(t, owner) // messages_read

	stranger := f.connect(entity.RoleCustomer, "Mallory")

	t.Run("typing", func(t *testing.T) {
		f.send(stranger, EventTyping, SessionRefPayload{SessionId: sessionId})
		assert.Equal(t, "Unauthorized to join this session", errorMessage(t, nextEvent(t, stranger)))

		typing, err := f.chat.ListTypingUsers(ctx, sessionId)
		require.NoError(t, err)
		assert.Empty(t, typing, "no typing row for a non-participant")
	})

	t.Run("stop_typing", func(t *testing.T) {
		f.send(stranger, EventStopTyping, SessionRefPayload{SessionId: sessionId})
		assert.Equal(t, "Unauthorized to join this session", errorMessage(t, nextEvent(t, stranger)))
	})

	t.Run("mark_as_read", func(t *testing.T) {
		f.send(stranger, EventMarkAsRead, MarkAsReadPayload{SessionId: sessionId})
		assert.Equal(t, "Unauthorized to join this session", errorMessage(t, nextEvent(t, stranger)))

		messages, err := f.chat.ListMessages(ctx, sessionId, 10, 0)
		require.NoError(t, err)
		require.NotEmpty(t, messages)
		for _, m := range messages {
			for _, r := range m.ReadReceipts {
				assert.NotEqual(t, stranger.UserID, r.UserId, "no receipt for a non-participant")
			}
		}
	})

	assert.Empty(t, drain(owner), "participants see none of the rejected events")
}
