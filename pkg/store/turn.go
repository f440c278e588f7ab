package store

import (
	"time"

	"github.com/google/uuid"
)

// TurnState tracks an in-flight conversation turn: the user query has been
// persisted together with a placeholder assistant message, and generation
// has not finished yet. One turn per session at a time.
type TurnState struct {
	SessionID        uuid.UUID `json:"session_id"`
	UserID           uuid.UUID `json:"user_id"`
	PendingMessageID uuid.UUID `json:"pending_message_id"`
	Query            string    `json:"query"`
	StartedAt        time.Time `json:"started_at"`
}
