package mailer

import (
	"fmt"

	"gopkg.in/gomail.v2"
)

type IEmailService interface {
	SendWaitingSessionAlert(toEmail, subject, category, priority, sessionId string) error
}

type emailService struct {
	dialer      *gomail.Dialer
	senderEmail string
	consoleURL  string // Support console base URL, for deep links
}

func NewEmailService(host string, port int, username, password, senderEmail, consoleURL string) IEmailService {
	d := gomail.NewDialer(host, port, username, password)

	return &emailService{
		dialer:      d,
		senderEmail: senderEmail,
		consoleURL:  consoleURL,
	}
}

func (s *emailService) SendWaitingSessionAlert(toEmail, subject, category, priority, sessionId string) error {
	m := gomail.NewMessage()
	m.SetHeader("From", s.senderEmail)
	m.SetHeader("To", toEmail)
	m.SetHeader("Subject", fmt.Sprintf("[Support] New chat waiting: %s", subject))

	chatLink := fmt.Sprintf("%s/support/chats/%s", s.consoleURL, sessionId)

	body := fmt.Sprintf(`
		<div style="font-family: Arial, sans-serif; padding: 20px; color: #333;">
			<h2>A customer is waiting for support</h2>
			<p><strong>Subject:</strong> %s</p>
			<p><strong>Category:</strong> %s</p>
			<p><strong>Priority:</strong> %s</p>
			<a href="%s" style="background-color: #007BFF; color: white; padding: 10px 20px; text-decoration: none; border-radius: 5px; display: inline-block;">Open Chat</a>
			<p>Or copy this link:</p>
			<p>%s</p>
		</div>
	`, subject, category, priority, chatLink, chatLink)

	m.SetBody("text/html", body)

	if err := s.dialer.DialAndSend(m); err != nil {
		fmt.Printf("[MAILER ERROR] Failed to send waiting-session alert to %s: %v\n", toEmail, err)
		return err
	}

	fmt.Printf("[MAILER] Waiting-session alert sent to %s\n", toEmail)
	return nil
}
