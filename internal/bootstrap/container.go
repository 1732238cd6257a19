package bootstrap

import (
	"log"

	"marketplace-be/internal/config"
	"marketplace-be/internal/controller"
	"marketplace-be/internal/handler"
	"marketplace-be/internal/pkg/identity"
	"marketplace-be/internal/pkg/logger"
	"marketplace-be/internal/pkg/mailer"
	"marketplace-be/internal/repository/unitofwork"
	"marketplace-be/internal/service"
	"marketplace-be/internal/websocket"

	pkgNats "marketplace-be/pkg/nats"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// TicketChatConversionTopic is the in-process hand-off topic between the
// ticketing module and the chat core.
const TicketChatConversionTopic = "TICKET_CHAT_CONVERSION"

type Container struct {
	// Controllers
	ChatController controller.IChatController

	// Background Services (Exposed for main.go to run)
	TicketConsumerService service.ITicketConsumerService
	TypingJanitor         *service.TypingJanitor
	AlertService          *service.AlertService

	// WebSockets
	ChatWsHandler *handler.ChatWsHandler
	WebSocketHub  *websocket.Hub

	// Shared facades
	ChatService     service.IChatService
	TicketPublisher service.IPublisherService
	Logger          logger.ILogger
}

func NewContainer(db *gorm.DB, cfg *config.Config) *Container {
	// 1. Core Facades
	uowFactory := unitofwork.NewRepositoryFactory(db)
	sysLogger := logger.NewZapLogger(cfg.App.LogFilePath, cfg.App.Environment == "production")

	emailService := mailer.NewEmailService(
		cfg.SMTP.Host,
		cfg.SMTP.Port,
		cfg.SMTP.Email,
		cfg.SMTP.Password,
		cfg.SMTP.SenderName,
		cfg.App.ClientURL,
	)

	// 2. Event Bus
	watermillLogger := watermill.NewStdLogger(false, false)
	pubSub := gochannel.NewGoChannel(
		gochannel.Config{},
		watermillLogger,
	)

	// 2.5 Infrastructure
	// NATS
	natsPub, err := pkgNats.NewPublisher(cfg.App.NatsURL)
	if err != nil {
		log.Printf("[WARN] Failed to connect to NATS Publisher: %v", err)
	}
	natsSub, err := pkgNats.NewSubscriber(cfg.App.NatsURL)
	if err != nil {
		log.Printf("[WARN] Failed to connect to NATS Subscriber: %v", err)
	}

	// Redis (for cross-instance websocket relay)
	var rdb *redis.Client
	if cfg.App.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.App.RedisURL)
		if err != nil {
			log.Printf("[WARN] Invalid REDIS_URL, running single-instance: %v", err)
		} else {
			rdb = redis.NewClient(opts)
		}
	}

	// 3. Services
	var eventPublisher service.IEventPublisher
	if natsPub != nil {
		eventPublisher = natsPub
	}
	chatService := service.NewChatService(uowFactory, eventPublisher, sysLogger)
	ticketPublisher := service.NewPublisherService(pubSub, TicketChatConversionTopic)
	ticketConsumer := service.NewTicketConsumerService(pubSub, TicketChatConversionTopic, chatService)
	typingJanitor := service.NewTypingJanitor(chatService, service.DefaultJanitorInterval, sysLogger)

	var alertService *service.AlertService
	if natsSub != nil {
		alertService = service.NewAlertService(natsSub, emailService, cfg.Chat.SupportInboxEmail, sysLogger)
	}

	// 4. Realtime Gateway
	hub := websocket.NewHub(rdb, sysLogger)
	gateway := websocket.NewGateway(hub, chatService, sysLogger)
	verifier := identity.NewVerifier(cfg.App.JWTSecret)
	wsHandler := handler.NewChatWsHandler(gateway, verifier, sysLogger)

	// 5. Controllers
	chatController := controller.NewChatController(chatService)

	return &Container{
		ChatController:        chatController,
		TicketConsumerService: ticketConsumer,
		TypingJanitor:         typingJanitor,
		AlertService:          alertService,
		ChatWsHandler:         wsHandler,
		WebSocketHub:          hub,
		ChatService:           chatService,
		TicketPublisher:       ticketPublisher,
		Logger:                sysLogger,
	}
}
