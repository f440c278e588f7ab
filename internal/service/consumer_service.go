// FILE: internal/service/consumer_service.go
package service

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"law-of-the-land-be/internal/dto"
	"law-of-the-land-be/pkg/events"
	pktNats "law-of-the-land-be/pkg/nats"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
)

type IConsumerService interface {
	Consume(ctx context.Context) error
}

type consumerService struct {
	pubSub         *gochannel.GoChannel
	topicName      string
	eventPublisher *pktNats.Publisher
}

func NewConsumerService(
	pubSub *gochannel.GoChannel,
	topicName string,
	eventPublisher *pktNats.Publisher,
) IConsumerService {
	return &consumerService{
		pubSub:         pubSub,
		topicName:      topicName,
		eventPublisher: eventPublisher,
	}
}

func (cs *consumerService) Consume(ctx context.Context) error {
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

func (cs *consumerService) processMessage(ctx context.Context, msg *message.Message) {
	var payload dto.TurnCompletedMessage
	err := json.Unmarshal(msg.Payload, &payload)
	if err != nil {
		log.Printf("[ERROR] Failed to unmarshal message: %v", err)
		msg.Ack() // Ack invalid messages to prevent infinite retry
		return
	}

	log.Printf("[INFO] Turn completed for session %s (mode=%s, failed=%t, %dms)",
		payload.ChatSessionId, payload.Mode, payload.Failed, payload.DurationMs)

	// Relay to the cluster event bus when connected
	if cs.eventPublisher != nil {
		evt := events.BaseEvent{
			Type: "TURN_COMPLETED",
			Data: map[string]interface{}{
				"chat_session_id": payload.ChatSessionId,
				"user_id":         payload.UserId,
				"mode":            payload.Mode,
				"search_query":    payload.SearchQuery,
				"duration_ms":     payload.DurationMs,
				"failed":          payload.Failed,
			},
			OccurredAt: time.Now(),
		}
		if err := cs.eventPublisher.Publish(ctx, evt); err != nil {
			log.Printf("[WARN] Failed to relay TURN_COMPLETED event: %v", err)
			msg.Nack() // Retry
			return
		}
	}

	msg.Ack()
}
