package service

import (
	"context"
	"encoding/json"
	"log"

	"marketplace-be/internal/dto"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
)

// ITicketConsumerService converts escalated support tickets into live chat
// sessions. The ticketing module publishes a conversion message on the
// hand-off topic; this consumer creates the waiting session with the ticket
// summary as the opening message.
type ITicketConsumerService interface {
	Consume(ctx context.Context) error
}

type ticketConsumerService struct {
	pubSub    *gochannel.GoChannel
	topicName string
	chat      IChatService
}

func NewTicketConsumerService(
	pubSub *gochannel.GoChannel,
	topicName string,
	chat IChatService,
) ITicketConsumerService {
	return &ticketConsumerService{
		pubSub:    pubSub,
		topicName: topicName,
		chat:      chat,
	}
}

func (cs *ticketConsumerService) Consume(ctx context.Context) error {
	messages, err := cs.pubSub.Subscribe(ctx, cs.topicName)
	if err != nil {
		return err
	}

	go func() {
		for msg := range messages {
			cs.processMessage(ctx, msg)
		}
	}()

	return nil
}

func (cs *ticketConsumerService) processMessage(ctx context.Context, msg *message.Message) {
	var payload dto.TicketConversionMessage
	err := json.Unmarshal(msg.Payload, &payload)
	if err != nil {
		log.Printf("[ERROR] Failed to unmarshal ticket conversion message: %v", err)
		msg.Ack() // Ack invalid messages to prevent infinite retry
		return
	}

	log.Printf("[INFO] Converting ticket %s into a chat session", payload.TicketId)

	ticketId := payload.TicketId
	session, err := cs.chat.CreateSession(ctx, &CreateSessionInput{
		CustomerId:     payload.CustomerId,
		Subject:        payload.Subject,
		Category:       payload.Category,
		Priority:       payload.Priority,
		RestaurantId:   payload.RestaurantId,
		TicketId:       &ticketId,
		InitialMessage: payload.Summary,
	})
	if err != nil {
		log.Printf("[ERROR] Failed to create session for ticket %s: %v", payload.TicketId, err)
		msg.Nack() // Retriable
		return
	}

	log.Printf("[INFO] Ticket %s converted to session %s", payload.TicketId, session.Id)
	msg.Ack()
}
