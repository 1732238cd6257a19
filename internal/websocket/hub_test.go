package websocket

import (
	"testing"

	"marketplace-be/internal/entity"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type silentLogger struct{}

func (silentLogger) Debug(module, message string, details map[string]interface{}) {}
func (silentLogger) Info(module, message string, details map[string]interface{})  {}
func (silentLogger) Warn(module, message string, details map[string]interface{})  {}
func (silentLogger) Error(module, message string, details map[string]interface{}) {}
func (silentLogger) Sync() error                                                  { return nil }

func newTestClient(hub *Hub, role entity.UserRole, name string) *Client {
	return newClient(hub, nil, uuid.New(), role, name)
}

func drain(c *Client) [][]byte {
	var out [][]byte
	for {
		select {
		case frame := <-c.Send:
			out = append(out, frame)
		default:
			return out
		}
	}
}

func TestHubRegistry(t *testing.T) {
	hub := NewHub(nil, silentLogger{})

	client := newTestClient(hub, entity.RoleCustomer, "Dana")
	hub.Register(client)

	assert.True(t, hub.IsUserOnline(client.UserID))
	name, role, online := hub.UserInfo(client.UserID)
	assert.True(t, online)
	assert.Equal(t, "Dana", name)
	assert.Equal(t, "customer", role)

	sessionA, sessionB := uuid.New(), uuid.New()
	hub.JoinSession(sessionA, client)
	hub.JoinSession(sessionB, client)
	assert.True(t, hub.InSession(sessionA, client))
	assert.Len(t, hub.SessionClients(sessionA), 1)

	hub.LeaveSession(sessionA, client)
	assert.False(t, hub.InSession(sessionA, client))

	joined := hub.Unregister(client)
	require.Len(t, joined, 1)
	assert.Equal(t, sessionB, joined[0])
	assert.False(t, hub.IsUserOnline(client.UserID))
	_, _, online = hub.UserInfo(client.UserID)
	assert.False(t, online)
}

func TestHubMultiDevice(t *testing.T) {
	hub := NewHub(nil, silentLogger{})
	userId := uuid.New()

	first := newClient(hub, nil, userId, entity.RoleSupport, "Agent")
	second := newClient(hub, nil, userId, entity.RoleSupport, "Agent")
	hub.Register(first)
	hub.Register(second)

	hub.Unregister(first)
	assert.True(t, hub.IsUserOnline(userId), "user stays online while another device is connected")

	hub.Unregister(second)
	assert.False(t, hub.IsUserOnline(userId))
}

func TestBroadcastToSession(t *testing.T) {
	hub := NewHub(nil, silentLogger{})
	sessionId := uuid.New()

	sender := newTestClient(hub, entity.RoleCustomer, "Sender")
	peer := newTestClient(hub, entity.RoleSupport, "Peer")
	outsider := newTestClient(hub, entity.RoleCustomer, "Outsider")
	for _, c := range []*Client{sender, peer, outsider} {
		hub.Register(c)
	}
	hub.JoinSession(sessionId, sender)
	hub.JoinSession(sessionId, peer)

	hub.BroadcastToSession(sessionId, []byte(`{"event":"x"}`), sender)

	assert.Empty(t, drain(sender), "except client is skipped")
	assert.Len(t, drain(peer), 1)
	assert.Empty(t, drain(outsider), "non-members receive nothing")
}

func TestBroadcastAll(t *testing.T) {
	hub := NewHub(nil, silentLogger{})

	a := newTestClient(hub, entity.RoleCustomer, "A")
	b := newTestClient(hub, entity.RoleSupport, "B")
	hub.Register(a)
	hub.Register(b)

	hub.BroadcastAll([]byte(`{"event":"session_status_changed"}`))

	assert.Len(t, drain(a), 1)
	assert.Len(t, drain(b), 1)
}
