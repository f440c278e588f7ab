package integration

import (
	"context"
	"log"
	"os"
	"testing"
	"time"

	"law-of-the-land-be/pkg/events"
	pktNats "law-of-the-land-be/pkg/nats"

	"github.com/joho/godotenv"
	"github.com/stretchr/testify/assert"
)

func TestNatsEventRoundTrip(t *testing.T) {
	// Load .env from root
	err := godotenv.Load("../../.env")
	if err != nil {
		log.Println("No .env file found, using system env")
	}

	natsURL := os.Getenv("NATS_URL")
	if natsURL == "" {
		t.Skip("Skipping integration test: NATS_URL not set")
	}

	publisher, err := pktNats.NewPublisher(natsURL)
	if err != nil {
		t.Fatalf("Failed to connect publisher: %v", err)
	}
	defer publisher.Close()

	subscriber, err := pktNats.NewSubscriber(natsURL)
	if err != nil {
		t.Fatalf("Failed to connect subscriber: %v", err)
	}
	defer subscriber.Close()

	received := make(chan events.Event, 1)
	err = subscriber.Subscribe("events.TURN_COMPLETED", "integration-test", func(ctx context.Context, event events.Event) error {
		received <- event
		return nil
	})
	assert.NoError(t, err)

	evt := events.BaseEvent{
		Type: "TURN_COMPLETED",
		Data: map[string]interface{}{
			"chat_session_id": "integration",
			"mode":            "rag",
		},
		OccurredAt: time.Now(),
	}
	assert.NoError(t, publisher.Publish(context.Background(), evt))

	select {
	case got := <-received:
		payload := got.Payload()
		assert.Equal(t, "rag", payload["mode"])
	case <-time.After(5 * time.Second):
		t.Fatal("Timed out waiting for relayed event")
	}
}
