package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"marketplace-be/internal/dto"
	"marketplace-be/internal/entity"
	"marketplace-be/internal/pkg/apperror"
	"marketplace-be/internal/repository/memory"
	"marketplace-be/pkg/events"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type nopLogger struct{}

func (nopLogger) Debug(module, message string, details map[string]interface{}) {}
func (nopLogger) Info(module, message string, details map[string]interface{})  {}
func (nopLogger) Warn(module, message string, details map[string]interface{})  {}
func (nopLogger) Error(module, message string, details map[string]interface{}) {}
func (nopLogger) Sync() error                                                  { return nil }

type capturingPublisher struct {
	mu     sync.Mutex
	events []events.Event
}

func (p *capturingPublisher) Publish(ctx context.Context, event events.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return nil
}

func (p *capturingPublisher) byType(eventType string) []events.Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []events.Event
	for _, e := range p.events {
		if e.EventType() == eventType {
			out = append(out, e)
		}
	}
	return out
}

func newTestService(t *testing.T) (IChatService, *memory.ChatStore, *capturingPublisher) {
	t.Helper()
	store := memory.NewChatStore()
	publisher := &capturingPublisher{}
	svc := NewChatService(memory.NewRepositoryFactory(store), publisher, nopLogger{})
	return svc, store, publisher
}

func TestCreateSession(t *testing.T) {
	ctx := context.Background()

	t.Run("defaults and waiting status", func(t *testing.T) {
		svc, _, publisher := newTestService(t)
		customerId := uuid.New()

		session, err := svc.CreateSession(ctx, &CreateSessionInput{
			CustomerId: customerId,
			Subject:    "Order never arrived",
		})
		require.NoError(t, err)

		assert.Equal(t, entity.SessionWaiting, session.Status)
		assert.Equal(t, "general", session.Category)
		assert.Equal(t, "medium", session.Priority)
		assert.Equal(t, customerId, *session.CustomerId)
		assert.Nil(t, session.AgentId)
		assert.Nil(t, session.LastMessageAt)

		waiting := publisher.byType(events.EventSessionWaiting)
		require.Len(t, waiting, 1)
		assert.Equal(t, "Order never arrived", waiting[0].Payload()["subject"])
	})

	t.Run("empty subject fails validation", func(t *testing.T) {
		svc, _, _ := newTestService(t)
		_, err := svc.CreateSession(ctx, &CreateSessionInput{CustomerId: uuid.New()})
		assert.True(t, apperror.IsValidation(err))
	})

	t.Run("initial message lands with the session", func(t *testing.T) {
		svc, _, _ := newTestService(t)
		customerId := uuid.New()

		session, err := svc.CreateSession(ctx, &CreateSessionInput{
			CustomerId:     customerId,
			Subject:        "Help",
			InitialMessage: "Hi",
		})
		require.NoError(t, err)
		require.NotNil(t, session.LastMessageAt)

		messages, err := svc.ListMessages(ctx, session.Id, 50, 0)
		require.NoError(t, err)
		require.Len(t, messages, 1)
		assert.Equal(t, "Hi", *messages[0].Content)
		assert.Equal(t, entity.RoleCustomer, messages[0].SenderRole)
		assert.Equal(t, customerId, *messages[0].SenderId)
	})
}

func TestSendMessage(t *testing.T) {
	ctx := context.Background()

	t.Run("unknown session", func(t *testing.T) {
		svc, _, _ := newTestService(t)
		_, err := svc.SendMessage(ctx, &SendMessageInput{
			SessionId:  uuid.New(),
			SenderId:   uuid.New(),
			SenderRole: entity.RoleCustomer,
			Content:    "hello",
		})
		require.Error(t, err)
		assert.True(t, apperror.IsNotFound(err))
		assert.Equal(t, "Session not found", err.Error())
	})

	t.Run("bumps last_message_at but never status", func(t *testing.T) {
		svc, _, _ := newTestService(t)
		customerId := uuid.New()
		session, err := svc.CreateSession(ctx, &CreateSessionInput{CustomerId: customerId, Subject: "s"})
		require.NoError(t, err)

		_, _, err = svc.UpdateStatus(ctx, session.Id, entity.SessionClosed)
		require.NoError(t, err)

		// Message insertion is always permitted, even on a closed session.
		_, err = svc.SendMessage(ctx, &SendMessageInput{
			SessionId:  session.Id,
			SenderId:   customerId,
			SenderRole: entity.RoleCustomer,
			Content:    "still there?",
		})
		require.NoError(t, err)

		details, err := svc.GetSession(ctx, session.Id, uuid.Nil)
		require.NoError(t, err)
		assert.Equal(t, entity.SessionClosed, details.Status)
		assert.NotNil(t, details.LastMessageAt)
	})

	t.Run("empty content rejected for text only", func(t *testing.T) {
		svc, _, _ := newTestService(t)
		customerId := uuid.New()
		session, err := svc.CreateSession(ctx, &CreateSessionInput{CustomerId: customerId, Subject: "s"})
		require.NoError(t, err)

		_, err = svc.SendMessage(ctx, &SendMessageInput{
			SessionId:  session.Id,
			SenderId:   customerId,
			SenderRole: entity.RoleCustomer,
		})
		require.Error(t, err)
		assert.True(t, apperror.IsValidation(err))
	})

	t.Run("file and image messages carry no body", func(t *testing.T) {
		svc, _, _ := newTestService(t)
		customerId := uuid.New()
		session, err := svc.CreateSession(ctx, &CreateSessionInput{CustomerId: customerId, Subject: "s"})
		require.NoError(t, err)

		// The attachment flow: a body-less message first, the file after.
		message, err := svc.SendMessage(ctx, &SendMessageInput{
			SessionId:   session.Id,
			SenderId:    customerId,
			SenderRole:  entity.RoleCustomer,
			MessageType: entity.MessageImage,
		})
		require.NoError(t, err)
		assert.Nil(t, message.Content)
		assert.Equal(t, entity.MessageImage, message.MessageType)

		attachment, err := svc.AddAttachment(ctx, message.Id, &dto.AddAttachmentRequest{
			FileName: "receipt.png",
			FileType: "image/png",
			FileSize: 2048,
			FileURL:  "https://cdn.example.com/receipt.png",
		})
		require.NoError(t, err)
		assert.Equal(t, message.Id, attachment.MessageId)
	})

	t.Run("clears the sender typing indicator", func(t *testing.T) {
		svc, _, _ := newTestService(t)
		customerId := uuid.New()
		session, err := svc.CreateSession(ctx, &CreateSessionInput{CustomerId: customerId, Subject: "s"})
		require.NoError(t, err)

		require.NoError(t, svc.SetTyping(ctx, session.Id, customerId))
		typing, err := svc.ListTypingUsers(ctx, session.Id)
		require.NoError(t, err)
		require.Len(t, typing, 1)

		_, err = svc.SendMessage(ctx, &SendMessageInput{
			SessionId:  session.Id,
			SenderId:   customerId,
			SenderRole: entity.RoleCustomer,
			Content:    "done typing",
		})
		require.NoError(t, err)

		typing, err = svc.ListTypingUsers(ctx, session.Id)
		require.NoError(t, err)
		assert.Empty(t, typing)
	})
}

func TestAssignAgent(t *testing.T) {
	ctx := context.Background()

	t.Run("accepts a waiting session and appends the join notice", func(t *testing.T) {
		svc, _, publisher := newTestService(t)
		session, err := svc.CreateSession(ctx, &CreateSessionInput{CustomerId: uuid.New(), Subject: "s"})
		require.NoError(t, err)

		agentId := uuid.New()
		updated, systemMessage, err := svc.AssignAgent(ctx, session.Id, agentId)
		require.NoError(t, err)

		assert.Equal(t, entity.SessionActive, updated.Status)
		assert.Equal(t, agentId, *updated.AgentId)
		assert.NotNil(t, updated.AgentAcceptedAt)

		require.NotNil(t, systemMessage)
		assert.True(t, systemMessage.IsSystemMessage)
		assert.Nil(t, systemMessage.SenderId)
		assert.Equal(t, "Support agent has joined the conversation", *systemMessage.Content)

		assert.Len(t, publisher.byType(events.EventSessionStatusChanged), 1)
	})

	t.Run("unknown session", func(t *testing.T) {
		svc, _, _ := newTestService(t)
		_, _, err := svc.AssignAgent(ctx, uuid.New(), uuid.New())
		assert.True(t, apperror.IsNotFound(err))
		assert.Equal(t, "Session not found", err.Error())
	})

	t.Run("second accept loses", func(t *testing.T) {
		svc, _, _ := newTestService(t)
		session, err := svc.CreateSession(ctx, &CreateSessionInput{CustomerId: uuid.New(), Subject: "s"})
		require.NoError(t, err)

		winner := uuid.New()
		_, _, err = svc.AssignAgent(ctx, session.Id, winner)
		require.NoError(t, err)

		_, _, err = svc.AssignAgent(ctx, session.Id, uuid.New())
		require.Error(t, err)
		assert.True(t, apperror.IsStateConflict(err))
		assert.Equal(t, "Chat already accepted", err.Error())

		details, err := svc.GetSession(ctx, session.Id, uuid.Nil)
		require.NoError(t, err)
		assert.Equal(t, winner, *details.AgentId)
	})

	t.Run("concurrent accepts produce exactly one winner", func(t *testing.T) {
		svc, _, _ := newTestService(t)
		session, err := svc.CreateSession(ctx, &CreateSessionInput{CustomerId: uuid.New(), Subject: "s"})
		require.NoError(t, err)

		const racers = 16
		var wg sync.WaitGroup
		var mu sync.Mutex
		var winners, losers int
		var winnerId uuid.UUID

		for i := 0; i < racers; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				agentId := uuid.New()
				_, _, err := svc.AssignAgent(ctx, session.Id, agentId)
				mu.Lock()
				defer mu.Unlock()
				if err == nil {
					winners++
					winnerId = agentId
					return
				}
				if apperror.IsStateConflict(err) {
					losers++
				}
			}()
		}
		wg.Wait()

		assert.Equal(t, 1, winners)
		assert.Equal(t, racers-1, losers)

		details, err := svc.GetSession(ctx, session.Id, uuid.Nil)
		require.NoError(t, err)
		assert.Equal(t, winnerId, *details.AgentId)
	})
}

func TestUpdateStatus(t *testing.T) {
	ctx := context.Background()

	t.Run("forward transitions only", func(t *testing.T) {
		svc, _, _ := newTestService(t)
		session, err := svc.CreateSession(ctx, &CreateSessionInput{CustomerId: uuid.New(), Subject: "s"})
		require.NoError(t, err)

		updated, systemMessage, err := svc.UpdateStatus(ctx, session.Id, entity.SessionResolved)
		require.NoError(t, err)
		assert.Equal(t, entity.SessionResolved, updated.Status)
		assert.Nil(t, updated.ClosedAt)
		assert.Nil(t, systemMessage)

		// Backward move is rejected.
		_, _, err = svc.UpdateStatus(ctx, session.Id, entity.SessionWaiting)
		assert.True(t, apperror.IsStateConflict(err))

		// Resolved can still advance to closed.
		updated, systemMessage, err = svc.UpdateStatus(ctx, session.Id, entity.SessionClosed)
		require.NoError(t, err)
		assert.Equal(t, entity.SessionClosed, updated.Status)
		assert.NotNil(t, updated.ClosedAt)
		require.NotNil(t, systemMessage)
		assert.Equal(t, "Support session has been closed", *systemMessage.Content)
	})

	t.Run("double close conflicts", func(t *testing.T) {
		svc, _, _ := newTestService(t)
		session, err := svc.CreateSession(ctx, &CreateSessionInput{CustomerId: uuid.New(), Subject: "s"})
		require.NoError(t, err)

		_, _, err = svc.UpdateStatus(ctx, session.Id, entity.SessionClosed)
		require.NoError(t, err)
		_, _, err = svc.UpdateStatus(ctx, session.Id, entity.SessionClosed)
		assert.True(t, apperror.IsStateConflict(err))
	})

	t.Run("unknown session", func(t *testing.T) {
		svc, _, _ := newTestService(t)
		_, _, err := svc.UpdateStatus(ctx, uuid.New(), entity.SessionClosed)
		assert.True(t, apperror.IsNotFound(err))
	})
}

func TestReadReceipts(t *testing.T) {
	ctx := context.Background()

	t.Run("marking your own message is a no-op", func(t *testing.T) {
		svc, _, _ := newTestService(t)
		customerId := uuid.New()
		session, err := svc.CreateSession(ctx, &CreateSessionInput{CustomerId: customerId, Subject: "s"})
		require.NoError(t, err)

		message, err := svc.SendMessage(ctx, &SendMessageInput{
			SessionId:  session.Id,
			SenderId:   customerId,
			SenderRole: entity.RoleCustomer,
			Content:    "mine",
		})
		require.NoError(t, err)

		receipt, err := svc.MarkMessageRead(ctx, message.Id, customerId)
		require.NoError(t, err)
		assert.Nil(t, receipt)
	})

	t.Run("re-marking updates the timestamp without erroring", func(t *testing.T) {
		svc, _, _ := newTestService(t)
		customerId, agentId := uuid.New(), uuid.New()
		session, err := svc.CreateSession(ctx, &CreateSessionInput{CustomerId: customerId, Subject: "s"})
		require.NoError(t, err)

		message, err := svc.SendMessage(ctx, &SendMessageInput{
			SessionId:  session.Id,
			SenderId:   customerId,
			SenderRole: entity.RoleCustomer,
			Content:    "hello",
		})
		require.NoError(t, err)

		first, err := svc.MarkMessageRead(ctx, message.Id, agentId)
		require.NoError(t, err)
		require.NotNil(t, first)

		second, err := svc.MarkMessageRead(ctx, message.Id, agentId)
		require.NoError(t, err)
		require.NotNil(t, second)
		assert.Equal(t, first.Id, second.Id)
		assert.False(t, second.ReadAt.Before(first.ReadAt))
	})

	t.Run("mark session read only covers others' messages", func(t *testing.T) {
		svc, _, _ := newTestService(t)
		customerId, agentId := uuid.New(), uuid.New()
		session, err := svc.CreateSession(ctx, &CreateSessionInput{
			CustomerId:     customerId,
			Subject:        "s",
			InitialMessage: "from customer",
		})
		require.NoError(t, err)

		_, err = svc.SendMessage(ctx, &SendMessageInput{
			SessionId:  session.Id,
			SenderId:   agentId,
			SenderRole: entity.RoleSupport,
			Content:    "from agent",
		})
		require.NoError(t, err)

		marked, err := svc.MarkSessionRead(ctx, session.Id, customerId)
		require.NoError(t, err)
		assert.Equal(t, 1, marked)

		details, err := svc.GetSession(ctx, session.Id, customerId)
		require.NoError(t, err)
		assert.Zero(t, details.UnreadCount)

		// The agent's view is untouched until the agent marks read.
		agentView, err := svc.GetSession(ctx, session.Id, agentId)
		require.NoError(t, err)
		assert.Equal(t, int64(1), agentView.UnreadCount)
	})
}

func TestAttachments(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newTestService(t)
	customerId := uuid.New()
	session, err := svc.CreateSession(ctx, &CreateSessionInput{CustomerId: customerId, Subject: "s"})
	require.NoError(t, err)

	message, err := svc.SendMessage(ctx, &SendMessageInput{
		SessionId:   session.Id,
		SenderId:    customerId,
		SenderRole:  entity.RoleCustomer,
		Content:     "see attached",
		MessageType: entity.MessageFile,
	})
	require.NoError(t, err)

	attachment, err := svc.AddAttachment(ctx, message.Id, &dto.AddAttachmentRequest{
		FileName: "receipt.pdf",
		FileType: "application/pdf",
		FileSize: 1024,
		FileURL:  "https://files.example.com/receipt.pdf",
	})
	require.NoError(t, err)
	assert.Equal(t, message.Id, attachment.MessageId)

	messages, err := svc.ListMessages(ctx, session.Id, 50, 0)
	require.NoError(t, err)
	require.Len(t, messages, 1)
	require.Len(t, messages[0].Attachments, 1)
	assert.Equal(t, "receipt.pdf", messages[0].Attachments[0].FileName)

	_, err = svc.AddAttachment(ctx, uuid.New(), &dto.AddAttachmentRequest{
		FileName: "x", FileType: "y", FileSize: 1, FileURL: "https://example.com/x",
	})
	assert.True(t, apperror.IsNotFound(err))
}

func TestTypingLifecycle(t *testing.T) {
	ctx := context.Background()

	t.Run("set, list, remove", func(t *testing.T) {
		svc, _, _ := newTestService(t)
		session, err := svc.CreateSession(ctx, &CreateSessionInput{CustomerId: uuid.New(), Subject: "s"})
		require.NoError(t, err)

		userId := uuid.New()
		require.NoError(t, svc.SetTyping(ctx, session.Id, userId))

		typing, err := svc.ListTypingUsers(ctx, session.Id)
		require.NoError(t, err)
		assert.Equal(t, []uuid.UUID{userId}, typing)

		// Removal is idempotent.
		require.NoError(t, svc.RemoveTyping(ctx, session.Id, userId))
		require.NoError(t, svc.RemoveTyping(ctx, session.Id, userId))

		typing, err = svc.ListTypingUsers(ctx, session.Id)
		require.NoError(t, err)
		assert.Empty(t, typing)
	})

	t.Run("sweep removes only expired rows", func(t *testing.T) {
		svc, store, _ := newTestService(t)
		session, err := svc.CreateSession(ctx, &CreateSessionInput{CustomerId: uuid.New(), Subject: "s"})
		require.NoError(t, err)

		fresh, stale := uuid.New(), uuid.New()
		require.NoError(t, svc.SetTyping(ctx, session.Id, fresh))

		uow := memory.NewRepositoryFactory(store).NewUnitOfWork(ctx)
		expired := &entity.TypingIndicator{
			SessionId: session.Id,
			UserId:    stale,
			StartedAt: time.Now().Add(-time.Minute),
			ExpiresAt: time.Now().Add(-50 * time.Second),
		}
		require.NoError(t, uow.TypingIndicatorRepository().Upsert(ctx, expired))

		swept, err := svc.SweepExpiredTyping(ctx)
		require.NoError(t, err)
		assert.Equal(t, int64(1), swept)

		typing, err := svc.ListTypingUsers(ctx, session.Id)
		require.NoError(t, err)
		assert.Equal(t, []uuid.UUID{fresh}, typing)
	})
}

func TestEndToEndScenario(t *testing.T) {
	ctx := context.Background()
	svc, _, publisher := newTestService(t)

	customerId, agentId := uuid.New(), uuid.New()

	session, err := svc.CreateSession(ctx, &CreateSessionInput{
		CustomerId:     customerId,
		Subject:        "Help",
		InitialMessage: "Hi",
	})
	require.NoError(t, err)
	assert.Equal(t, entity.SessionWaiting, session.Status)

	accepted, joinNotice, err := svc.AssignAgent(ctx, session.Id, agentId)
	require.NoError(t, err)
	assert.Equal(t, entity.SessionActive, accepted.Status)
	assert.Equal(t, agentId, *accepted.AgentId)
	assert.Equal(t, "Support agent has joined the conversation", *joinNotice.Content)

	_, err = svc.SendMessage(ctx, &SendMessageInput{
		SessionId:  session.Id,
		SenderId:   agentId,
		SenderRole: entity.RoleSupport,
		Content:    "How can I help?",
	})
	require.NoError(t, err)

	messages, err := svc.ListMessages(ctx, session.Id, 50, 0)
	require.NoError(t, err)
	require.Len(t, messages, 3)
	// Newest first: agent reply, system join notice, initial customer message.
	assert.Equal(t, "How can I help?", *messages[0].Content)
	assert.True(t, messages[1].IsSystemMessage)
	assert.Equal(t, "Hi", *messages[2].Content)

	_, err = svc.MarkSessionRead(ctx, session.Id, customerId)
	require.NoError(t, err)
	customerView, err := svc.GetSession(ctx, session.Id, customerId)
	require.NoError(t, err)
	assert.Zero(t, customerView.UnreadCount)

	// The agent still has the customer greeting and the system notice unread.
	agentView, err := svc.GetSession(ctx, session.Id, agentId)
	require.NoError(t, err)
	assert.Equal(t, int64(2), agentView.UnreadCount)

	closed, closeNotice, err := svc.UpdateStatus(ctx, session.Id, entity.SessionClosed)
	require.NoError(t, err)
	assert.Equal(t, entity.SessionClosed, closed.Status)
	assert.NotNil(t, closed.ClosedAt)
	assert.Equal(t, "Support session has been closed", *closeNotice.Content)

	statusEvents := publisher.byType(events.EventSessionStatusChanged)
	require.Len(t, statusEvents, 2)
	assert.Equal(t, "closed", statusEvents[1].Payload()["status"])
}

func TestListSessions(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newTestService(t)

	customerId, agentId := uuid.New(), uuid.New()

	first, err := svc.CreateSession(ctx, &CreateSessionInput{CustomerId: customerId, Subject: "first"})
	require.NoError(t, err)
	second, err := svc.CreateSession(ctx, &CreateSessionInput{CustomerId: customerId, Subject: "second"})
	require.NoError(t, err)

	// Accept the first session; it should still appear for its agent.
	_, _, err = svc.AssignAgent(ctx, first.Id, agentId)
	require.NoError(t, err)

	active, err := svc.ListActiveSessions(ctx, nil)
	require.NoError(t, err)
	assert.Len(t, active, 2)

	forAgent, err := svc.ListActiveSessions(ctx, &agentId)
	require.NoError(t, err)
	assert.Len(t, forAgent, 2) // own active session + the waiting one

	otherAgent := uuid.New()
	forOther, err := svc.ListActiveSessions(ctx, &otherAgent)
	require.NoError(t, err)
	require.Len(t, forOther, 1) // only the waiting session
	assert.Equal(t, second.Id, forOther[0].Id)

	mine, err := svc.ListCustomerSessions(ctx, customerId)
	require.NoError(t, err)
	assert.Len(t, mine, 2)

	// A recent message floats its session to the top of the customer list.
	_, err = svc.SendMessage(ctx, &SendMessageInput{
		SessionId:  first.Id,
		SenderId:   customerId,
		SenderRole: entity.RoleCustomer,
		Content:    "bump",
	})
	require.NoError(t, err)

	mine, err = svc.ListCustomerSessions(ctx, customerId)
	require.NoError(t, err)
	require.Len(t, mine, 2)
	assert.Equal(t, first.Id, mine[0].Id)
	require.NotNil(t, mine[0].LastMessage)
	assert.Equal(t, "bump", *mine[0].LastMessage.Content)
}
