// Package memory provides in-process implementations of the chat store
// contracts. They back the unit tests and local development without a
// Postgres instance; the conditional-update primitives behave exactly like
// their SQL counterparts (atomic under the store lock).
package memory

import (
	"sort"
	"sync"
	"time"

	"marketplace-be/internal/entity"

	"github.com/google/uuid"
)

type typingKey struct {
	sessionId uuid.UUID
	userId    uuid.UUID
}

type receiptKey struct {
	messageId uuid.UUID
	userId    uuid.UUID
}

// ChatStore holds every chat table behind one lock so that the
// compare-and-swap operations observe a consistent view.
type ChatStore struct {
	mu          sync.RWMutex
	sessions    map[uuid.UUID]*entity.ChatSession
	messages    map[uuid.UUID]*entity.ChatMessage
	attachments map[uuid.UUID][]*entity.MessageAttachment
	receipts    map[receiptKey]*entity.MessageReadReceipt
	typing      map[typingKey]*entity.TypingIndicator
}

func NewChatStore() *ChatStore {
	return &ChatStore{
		sessions:    make(map[uuid.UUID]*entity.ChatSession),
		messages:    make(map[uuid.UUID]*entity.ChatMessage),
		attachments: make(map[uuid.UUID][]*entity.MessageAttachment),
		receipts:    make(map[receiptKey]*entity.MessageReadReceipt),
		typing:      make(map[typingKey]*entity.TypingIndicator),
	}
}

func cloneSession(s *entity.ChatSession) *entity.ChatSession {
	if s == nil {
		return nil
	}
	c := *s
	return &c
}

func (st *ChatStore) cloneMessage(m *entity.ChatMessage) *entity.ChatMessage {
	if m == nil {
		return nil
	}
	c := *m
	c.Attachments = append([]*entity.MessageAttachment(nil), st.attachments[m.Id]...)
	c.ReadReceipts = nil
	for key, r := range st.receipts {
		if key.messageId == m.Id {
			rc := *r
			c.ReadReceipts = append(c.ReadReceipts, &rc)
		}
	}
	return &c
}

func (st *ChatStore) sessionMessagesNewestFirst(sessionId uuid.UUID) []*entity.ChatMessage {
	var msgs []*entity.ChatMessage
	for _, m := range st.messages {
		if m.SessionId == sessionId {
			msgs = append(msgs, m)
		}
	}
	sort.Slice(msgs, func(i, j int) bool {
		if msgs[i].CreatedAt.Equal(msgs[j].CreatedAt) {
			return msgs[i].Id.String() > msgs[j].Id.String()
		}
		return msgs[i].CreatedAt.After(msgs[j].CreatedAt)
	})
	return msgs
}

func (st *ChatStore) hasReceipt(messageId, userId uuid.UUID) bool {
	_, ok := st.receipts[receiptKey{messageId: messageId, userId: userId}]
	return ok
}

func nowOr(t time.Time) time.Time {
	if t.IsZero() {
		return time.Now()
	}
	return t
}
