package service

import (
	"context"
	"fmt"

	"marketplace-be/internal/pkg/logger"
	"marketplace-be/internal/pkg/mailer"
	pkgEvents "marketplace-be/pkg/events"
	pkgNats "marketplace-be/pkg/nats"
)

// AlertService emails the support inbox whenever a new session enters the
// waiting queue, so agents notice even when no console is open.
type AlertService struct {
	subscriber   *pkgNats.Subscriber
	emailService mailer.IEmailService
	inboxEmail   string
	log          logger.ILogger
}

func NewAlertService(
	subscriber *pkgNats.Subscriber,
	emailService mailer.IEmailService,
	inboxEmail string,
	log logger.ILogger,
) *AlertService {
	return &AlertService{
		subscriber:   subscriber,
		emailService: emailService,
		inboxEmail:   inboxEmail,
		log:          log,
	}
}

// Start registers the durable consumer for waiting-session events.
func (s *AlertService) Start() error {
	if s.inboxEmail == "" {
		s.log.Warn("alert", "support inbox email not configured, waiting-session alerts disabled", nil)
		return nil
	}

	subject := fmt.Sprintf("events.%s", pkgEvents.EventSessionWaiting)
	return s.subscriber.Subscribe(subject, "support-alert-worker", s.handle)
}

func (s *AlertService) handle(ctx context.Context, event pkgEvents.Event) error {
	payload := event.Payload()
	sessionId, _ := payload["session_id"].(string)
	subject, _ := payload["subject"].(string)
	category, _ := payload["category"].(string)
	priority, _ := payload["priority"].(string)

	if err := s.emailService.SendWaitingSessionAlert(s.inboxEmail, subject, category, priority, sessionId); err != nil {
		s.log.Error("alert", "failed to send waiting-session alert", map[string]interface{}{
			"session_id": sessionId,
			"error":      err.Error(),
		})
		return err
	}

	s.log.Info("alert", "waiting-session alert sent", map[string]interface{}{
		"session_id": sessionId,
	})
	return nil
}
