package websocket

import (
	"sync"
	"time"

	"marketplace-be/internal/entity"

	"github.com/gofiber/websocket/v2"
	"github.com/google/uuid"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4096
)

// Client is a middleman between one websocket connection and the hub.
// Only the pumps touch Conn; event handlers go through Send.
type Client struct {
	Hub *Hub

	Conn *websocket.Conn

	UserID uuid.UUID
	Role   entity.UserRole
	Name   string

	// Buffered channel of outbound frames.
	Send chan []byte

	// Per-session typing auto-stop timers, local to this connection.
	timerMu      sync.Mutex
	typingTimers map[uuid.UUID]*time.Timer
}

func newClient(hub *Hub, conn *websocket.Conn, userId uuid.UUID, role entity.UserRole, name string) *Client {
	return &Client{
		Hub:          hub,
		Conn:         conn,
		UserID:       userId,
		Role:         role,
		Name:         name,
		Send:         make(chan []byte, 256),
		typingTimers: make(map[uuid.UUID]*time.Timer),
	}
}

// SendEvent marshals and queues an event for this connection only.
func (c *Client) SendEvent(event string, data interface{}) {
	frame, err := MarshalEvent(event, data)
	if err != nil {
		return
	}
	select {
	case c.Send <- frame:
	default:
		// Buffer full; the write pump will reap a dead socket.
	}
}

// startTypingTimer (re)arms the auto-stop timer for a session. The previous
// timer for the same session is always cancelled first.
func (c *Client) startTypingTimer(sessionId uuid.UUID, ttl time.Duration, fire func()) {
	c.timerMu.Lock()
	defer c.timerMu.Unlock()
	if t, ok := c.typingTimers[sessionId]; ok {
		t.Stop()
	}
	c.typingTimers[sessionId] = time.AfterFunc(ttl, func() {
		c.timerMu.Lock()
		delete(c.typingTimers, sessionId)
		c.timerMu.Unlock()
		fire()
	})
}

// stopTypingTimer cancels the auto-stop timer, reporting whether one was armed.
func (c *Client) stopTypingTimer(sessionId uuid.UUID) bool {
	c.timerMu.Lock()
	defer c.timerMu.Unlock()
	t, ok := c.typingTimers[sessionId]
	if ok {
		t.Stop()
		delete(c.typingTimers, sessionId)
	}
	return ok
}

func (c *Client) stopAllTypingTimers() {
	c.timerMu.Lock()
	defer c.timerMu.Unlock()
	for sessionId, t := range c.typingTimers {
		t.Stop()
		delete(c.typingTimers, sessionId)
	}
}

// readPump pumps inbound frames from the websocket into the gateway dispatcher.
func (c *Client) readPump(g *Gateway) {
	defer func() {
		g.Disconnect(c)
		c.Conn.Close()
	}()
	c.Conn.SetReadLimit(maxMessageSize)
	c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, raw, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				g.log.Warn("Gateway", "Unexpected close", map[string]interface{}{
					"user_id": c.UserID.String(),
					"error":   err.Error(),
				})
			}
			break
		}
		g.dispatch(c, raw)
	}
}

// writePump pumps frames from the Send channel to the websocket connection.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case frame, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// The hub closed the channel.
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			w, err := c.Conn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			w.Write(frame)

			if err := w.Close(); err != nil {
				return
			}
		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
