package handler

import (
	"marketplace-be/internal/pkg/apperror"
	"marketplace-be/internal/pkg/identity"
	"marketplace-be/internal/pkg/logger"
	internalWS "marketplace-be/internal/websocket"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
)

// ChatWsHandler upgrades authenticated HTTP requests into realtime chat
// connections. Authentication happens before the upgrade; a socket is never
// established for an anonymous caller.
type ChatWsHandler struct {
	gateway  *internalWS.Gateway
	verifier *identity.Verifier
	logger   logger.ILogger
}

func NewChatWsHandler(gateway *internalWS.Gateway, verifier *identity.Verifier, log logger.ILogger) *ChatWsHandler {
	return &ChatWsHandler{
		gateway:  gateway,
		verifier: verifier,
		logger:   log,
	}
}

func (h *ChatWsHandler) RegisterRoutes(r fiber.Router) {
	r.Get("/chat/v1/ws", h.ServeWs)
}

// ServeWs handles websocket requests from the peer.
func (h *ChatWsHandler) ServeWs(c *fiber.Ctx) error {
	// Token source priority: query param (browser standard), then
	// Authorization header (tooling standard).
	tokenStr := c.Query("token")
	if tokenStr == "" {
		authHeader := c.Get("Authorization")
		if len(authHeader) > 7 && authHeader[:7] == "Bearer " {
			tokenStr = authHeader[7:]
		}
	}

	id, err := h.verifier.Verify(tokenStr)
	if err != nil {
		if apperror.IsConfiguration(err) {
			// Missing signing secret is a server fault. Reject loudly,
			// never let the connection through.
			h.logger.Error("ChatWsHandler", "Rejecting handshake: signing secret not configured", nil)
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Server misconfigured"})
		}
		h.logger.Warn("ChatWsHandler", "Invalid token in WS handshake", map[string]interface{}{"error": err.Error()})
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": err.Error()})
	}

	if websocket.IsWebSocketUpgrade(c) {
		return websocket.New(func(conn *websocket.Conn) {
			h.logger.Info("ChatWsHandler", "Starting chat session", map[string]interface{}{"user_id": id.UserID})
			h.gateway.Serve(conn, id)
			h.logger.Info("ChatWsHandler", "Chat session ended", map[string]interface{}{"user_id": id.UserID})
		})(c)
	}
	return fiber.ErrUpgradeRequired
}
