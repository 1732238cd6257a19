package websocket

import (
	"context"
	"encoding/json"
	"sync"

	"marketplace-be/internal/pkg/logger"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const clusterChannel = "chat_cluster_events"

// Hub tracks every live connection and which chat sessions each one has
// joined. It is the only writer of this registry; the chat service never
// touches it. With Redis configured, session broadcasts are relayed to the
// other instances of the process.
type Hub struct {
	mu sync.RWMutex

	// UserID -> connections (multi-device)
	users map[uuid.UUID][]*Client

	// SessionID -> joined connections
	sessions map[uuid.UUID]map[*Client]bool

	// Reverse index, for teardown on disconnect
	clientSessions map[*Client]map[uuid.UUID]bool

	// Redis connection for cross-instance relay, may be nil
	rdb *redis.Client

	// Distinguishes our own relayed messages from other instances'
	originId string

	logger logger.ILogger
}

func NewHub(rdb *redis.Client, log logger.ILogger) *Hub {
	return &Hub{
		users:          make(map[uuid.UUID][]*Client),
		sessions:       make(map[uuid.UUID]map[*Client]bool),
		clientSessions: make(map[*Client]map[uuid.UUID]bool),
		rdb:            rdb,
		originId:       uuid.NewString(),
		logger:         log,
	}
}

// Run starts the cross-instance relay. It returns immediately when no
// Redis client is configured.
func (h *Hub) Run() {
	if h.rdb != nil {
		go h.subscribeToRedis()
	}
}

func (h *Hub) Register(client *Client) {
	h.mu.Lock()
	h.users[client.UserID] = append(h.users[client.UserID], client)
	h.mu.Unlock()
	h.logger.Info("Hub", "Client registered", map[string]interface{}{"user_id": client.UserID})
}

// Unregister removes the client from every index and returns the sessions
// it had joined so the gateway can broadcast departures.
func (h *Hub) Unregister(client *Client) []uuid.UUID {
	h.mu.Lock()
	defer h.mu.Unlock()

	if clients, ok := h.users[client.UserID]; ok {
		for i, c := range clients {
			if c == client {
				h.users[client.UserID] = append(clients[:i], clients[i+1:]...)
				close(client.Send)
				break
			}
		}
		if len(h.users[client.UserID]) == 0 {
			delete(h.users, client.UserID)
			h.logger.Info("Hub", "Client completely unregistered", map[string]interface{}{"user_id": client.UserID})
		}
	}

	var joined []uuid.UUID
	for sessionId := range h.clientSessions[client] {
		joined = append(joined, sessionId)
		if members, ok := h.sessions[sessionId]; ok {
			delete(members, client)
			if len(members) == 0 {
				delete(h.sessions, sessionId)
			}
		}
	}
	delete(h.clientSessions, client)

	return joined
}

func (h *Hub) JoinSession(sessionId uuid.UUID, client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.sessions[sessionId] == nil {
		h.sessions[sessionId] = make(map[*Client]bool)
	}
	h.sessions[sessionId][client] = true

	if h.clientSessions[client] == nil {
		h.clientSessions[client] = make(map[uuid.UUID]bool)
	}
	h.clientSessions[client][sessionId] = true
}

func (h *Hub) LeaveSession(sessionId uuid.UUID, client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if members, ok := h.sessions[sessionId]; ok {
		delete(members, client)
		if len(members) == 0 {
			delete(h.sessions, sessionId)
		}
	}
	if joined, ok := h.clientSessions[client]; ok {
		delete(joined, sessionId)
	}
}

func (h *Hub) InSession(sessionId uuid.UUID, client *Client) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.sessions[sessionId][client]
}

// SessionClients returns a snapshot of the connections joined to a session.
func (h *Hub) SessionClients(sessionId uuid.UUID) []*Client {
	h.mu.RLock()
	defer h.mu.RUnlock()
	members := h.sessions[sessionId]
	out := make([]*Client, 0, len(members))
	for c := range members {
		out = append(out, c)
	}
	return out
}

func (h *Hub) IsUserOnline(userId uuid.UUID) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.users[userId]) > 0
}

// UserInfo returns the display name and role of a connected user. Offline
// users yield zero values; the registry only knows who is connected.
func (h *Hub) UserInfo(userId uuid.UUID) (name string, role string, online bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	clients := h.users[userId]
	if len(clients) == 0 {
		return "", "", false
	}
	return clients[0].Name, string(clients[0].Role), true
}

// BroadcastToSession sends data to every connection joined to the session,
// skipping except when non-nil. The frame is also relayed to the other
// instances via Redis.
func (h *Hub) BroadcastToSession(sessionId uuid.UUID, data []byte, except *Client) {
	h.deliverToSession(sessionId, data, except)
	h.relay(sessionId.String(), data)
}

// BroadcastAll sends data to every connected client regardless of session.
func (h *Hub) BroadcastAll(data []byte) {
	h.deliverToAll(data)
	h.relay("*", data)
}

func (h *Hub) deliverToSession(sessionId uuid.UUID, data []byte, except *Client) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for client := range h.sessions[sessionId] {
		if client == except {
			continue
		}
		h.trySend(client, data)
	}
}

func (h *Hub) deliverToAll(data []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	seen := make(map[*Client]bool)
	for _, clients := range h.users {
		for _, client := range clients {
			if seen[client] {
				continue
			}
			seen[client] = true
			h.trySend(client, data)
		}
	}
}

// trySend drops the frame when the client's buffer is full. A stalled
// socket is reaped by its own write pump, not here.
func (h *Hub) trySend(client *Client, data []byte) {
	select {
	case client.Send <- data:
	default:
		h.logger.Warn("Hub", "Client send buffer full, dropping frame", map[string]interface{}{"user_id": client.UserID})
	}
}

type clusterFrame struct {
	OriginId  string          `json:"origin_id"`
	SessionId string          `json:"session_id"` // "*" for global broadcast
	Message   json.RawMessage `json:"message"`
}

func (h *Hub) relay(sessionId string, data []byte) {
	if h.rdb == nil {
		return
	}
	payload, _ := json.Marshal(clusterFrame{
		OriginId:  h.originId,
		SessionId: sessionId,
		Message:   data,
	})
	h.rdb.Publish(context.Background(), clusterChannel, payload)
}

func (h *Hub) subscribeToRedis() {
	ctx := context.Background()
	pubsub := h.rdb.Subscribe(ctx, clusterChannel)
	defer pubsub.Close()

	for msg := range pubsub.Channel() {
		var frame clusterFrame
		if err := json.Unmarshal([]byte(msg.Payload), &frame); err != nil {
			h.logger.Warn("Hub", "Bad cluster frame", map[string]interface{}{"error": err.Error()})
			continue
		}
		// Our own relay echoes back; local clients already got it.
		if frame.OriginId == h.originId {
			continue
		}

		if frame.SessionId == "*" {
			h.deliverToAll(frame.Message)
			continue
		}

		sessionId, err := uuid.Parse(frame.SessionId)
		if err != nil {
			continue
		}
		h.deliverToSession(sessionId, frame.Message, nil)
	}
}
