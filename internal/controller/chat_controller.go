package controller

import (
	"marketplace-be/internal/dto"
	"marketplace-be/internal/entity"
	"marketplace-be/internal/pkg/apperror"
	"marketplace-be/internal/pkg/serverutils"
	"marketplace-be/internal/service"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

type IChatController interface {
	RegisterRoutes(r fiber.Router)
	CreateSession(ctx *fiber.Ctx) error
	ListActiveSessions(ctx *fiber.Ctx) error
	ListMySessions(ctx *fiber.Ctx) error
	ShowSession(ctx *fiber.Ctx) error
	ListMessages(ctx *fiber.Ctx) error
	SendMessage(ctx *fiber.Ctx) error
	MarkSessionRead(ctx *fiber.Ctx) error
	AddAttachment(ctx *fiber.Ctx) error
}

type chatController struct {
	chatService service.IChatService
}

func NewChatController(chatService service.IChatService) IChatController {
	return &chatController{
		chatService: chatService,
	}
}

func (c *chatController) RegisterRoutes(r fiber.Router) {
	h := r.Group("/chat/v1")
	h.Use(serverutils.JwtMiddleware)
	h.Post("sessions", c.CreateSession)
	h.Get("sessions", c.ListActiveSessions)
	h.Get("my-sessions", c.ListMySessions)
	h.Get("sessions/:id", c.ShowSession)
	h.Get("sessions/:id/messages", c.ListMessages)
	h.Post("sessions/:id/messages", c.SendMessage)
	h.Post("sessions/:id/read", c.MarkSessionRead)
	h.Post("messages/:id/attachments", c.AddAttachment)
}

func callerId(ctx *fiber.Ctx) (uuid.UUID, error) {
	userIdStr, ok := ctx.Locals("user_id").(string)
	if !ok {
		return uuid.Nil, apperror.NewAuthentication("Missing user identity")
	}
	userId, err := uuid.Parse(userIdStr)
	if err != nil {
		return uuid.Nil, apperror.NewAuthentication("Invalid user identity")
	}
	return userId, nil
}

func callerRole(ctx *fiber.Ctx) entity.UserRole {
	roleStr, _ := ctx.Locals("role").(string)
	return entity.UserRole(roleStr)
}

func (c *chatController) CreateSession(ctx *fiber.Ctx) error {
	userId, err := callerId(ctx)
	if err != nil {
		return err
	}

	var req dto.CreateSessionRequest
	if err := ctx.BodyParser(&req); err != nil {
		return apperror.NewValidation("Invalid request body")
	}
	if err := serverutils.ValidateRequest(req); err != nil {
		return err
	}

	session, err := c.chatService.CreateSession(ctx.Context(), &service.CreateSessionInput{
		CustomerId:     userId,
		Subject:        req.Subject,
		Category:       req.Category,
		Priority:       req.Priority,
		RestaurantId:   req.RestaurantId,
		TicketId:       req.TicketId,
		InitialMessage: req.InitialMessage,
	})
	if err != nil {
		return err
	}

	res := dto.NewSessionResponse(&entity.SessionWithDetails{ChatSession: *session})
	return ctx.Status(fiber.StatusCreated).JSON(serverutils.SuccessResponse("Success create chat session", res))
}

// ListActiveSessions serves the agent queue: sessions in waiting or active,
// scoped to the caller when ?mine=true.
func (c *chatController) ListActiveSessions(ctx *fiber.Ctx) error {
	userId, err := callerId(ctx)
	if err != nil {
		return err
	}
	if !entity.IsAgentRole(callerRole(ctx)) {
		return apperror.NewUnauthorized("Only support agents can list active sessions")
	}

	var agentId *uuid.UUID
	if ctx.QueryBool("mine", false) {
		agentId = &userId
	}

	sessions, err := c.chatService.ListActiveSessions(ctx.Context(), agentId)
	if err != nil {
		return err
	}
	return ctx.JSON(serverutils.SuccessResponse("Success list active sessions", dto.NewSessionResponses(sessions)))
}

func (c *chatController) ListMySessions(ctx *fiber.Ctx) error {
	userId, err := callerId(ctx)
	if err != nil {
		return err
	}

	sessions, err := c.chatService.ListCustomerSessions(ctx.Context(), userId)
	if err != nil {
		return err
	}
	return ctx.JSON(serverutils.SuccessResponse("Success list my sessions", dto.NewSessionResponses(sessions)))
}

func (c *chatController) ShowSession(ctx *fiber.Ctx) error {
	userId, err := callerId(ctx)
	if err != nil {
		return err
	}

	sessionId, err := uuid.Parse(ctx.Params("id"))
	if err != nil {
		return apperror.NewValidation("Invalid session id")
	}

	details, err := c.chatService.GetSession(ctx.Context(), sessionId, userId)
	if err != nil {
		return err
	}

	if !sessionVisibleTo(details, userId, callerRole(ctx)) {
		return apperror.NewUnauthorized("Unauthorized to view this session")
	}

	return ctx.JSON(serverutils.SuccessResponse("Success show session", dto.NewSessionResponse(details)))
}

func (c *chatController) ListMessages(ctx *fiber.Ctx) error {
	userId, err := callerId(ctx)
	if err != nil {
		return err
	}

	sessionId, err := uuid.Parse(ctx.Params("id"))
	if err != nil {
		return apperror.NewValidation("Invalid session id")
	}

	details, err := c.chatService.GetSession(ctx.Context(), sessionId, userId)
	if err != nil {
		return err
	}
	if !sessionVisibleTo(details, userId, callerRole(ctx)) {
		return apperror.NewUnauthorized("Unauthorized to view this session")
	}

	var page dto.SessionHistoryRequest
	if err := ctx.QueryParser(&page); err != nil {
		return apperror.NewValidation("Invalid pagination parameters")
	}
	if page.Limit <= 0 {
		page.Limit = 50
	}

	messages, err := c.chatService.ListMessages(ctx.Context(), sessionId, page.Limit, page.Offset)
	if err != nil {
		return err
	}
	return ctx.JSON(serverutils.SuccessResponse("Success list messages", dto.NewMessageResponses(messages)))
}

// SendMessage is the REST counterpart of the websocket send_message event,
// used by the ticketing console and by clients without a live socket.
func (c *chatController) SendMessage(ctx *fiber.Ctx) error {
	userId, err := callerId(ctx)
	if err != nil {
		return err
	}

	sessionId, err := uuid.Parse(ctx.Params("id"))
	if err != nil {
		return apperror.NewValidation("Invalid session id")
	}

	details, err := c.chatService.GetSession(ctx.Context(), sessionId, userId)
	if err != nil {
		return err
	}
	if !sessionVisibleTo(details, userId, callerRole(ctx)) {
		return apperror.NewUnauthorized("Unauthorized to view this session")
	}

	var req dto.SendMessageRequest
	if err := ctx.BodyParser(&req); err != nil {
		return apperror.NewValidation("Invalid request body")
	}
	if err := serverutils.ValidateRequest(req); err != nil {
		return err
	}

	message, err := c.chatService.SendMessage(ctx.Context(), &service.SendMessageInput{
		SessionId:   sessionId,
		SenderId:    userId,
		SenderRole:  callerRole(ctx),
		Content:     req.Content,
		MessageType: req.MessageType,
	})
	if err != nil {
		return err
	}
	return ctx.Status(fiber.StatusCreated).JSON(serverutils.SuccessResponse("Success send message", dto.NewMessageResponse(message)))
}

func (c *chatController) MarkSessionRead(ctx *fiber.Ctx) error {
	userId, err := callerId(ctx)
	if err != nil {
		return err
	}

	sessionId, err := uuid.Parse(ctx.Params("id"))
	if err != nil {
		return apperror.NewValidation("Invalid session id")
	}

	marked, err := c.chatService.MarkSessionRead(ctx.Context(), sessionId, userId)
	if err != nil {
		return err
	}
	return ctx.JSON(serverutils.SuccessResponse("Success mark session read", fiber.Map{"marked": marked}))
}

func (c *chatController) AddAttachment(ctx *fiber.Ctx) error {
	if _, err := callerId(ctx); err != nil {
		return err
	}

	messageId, err := uuid.Parse(ctx.Params("id"))
	if err != nil {
		return apperror.NewValidation("Invalid message id")
	}

	var req dto.AddAttachmentRequest
	if err := ctx.BodyParser(&req); err != nil {
		return apperror.NewValidation("Invalid request body")
	}
	if err := serverutils.ValidateRequest(req); err != nil {
		return err
	}

	attachment, err := c.chatService.AddAttachment(ctx.Context(), messageId, &req)
	if err != nil {
		return err
	}
	return ctx.Status(fiber.StatusCreated).JSON(serverutils.SuccessResponse("Success add attachment", dto.NewAttachmentResponse(attachment)))
}

func sessionVisibleTo(details *entity.SessionWithDetails, userId uuid.UUID, role entity.UserRole) bool {
	if details.CustomerId != nil && *details.CustomerId == userId {
		return true
	}
	if details.AgentId != nil && *details.AgentId == userId {
		return true
	}
	return entity.IsAgentRole(role)
}
