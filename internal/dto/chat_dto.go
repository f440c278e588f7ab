package dto

import (
	"time"

	"github.com/google/uuid"
)

type AskRequest struct {
	ChatSessionId *uuid.UUID `json:"chat_session_id,omitempty"` // nil starts a new session
	Query         string     `json:"query" validate:"required"`
}

type AskResponseChat struct {
	Id        uuid.UUID `json:"id"`
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

type AskResponse struct {
	ChatSessionId uuid.UUID        `json:"chat_session_id"`
	Title         string           `json:"title"`
	Sent          *AskResponseChat `json:"sent"`
	Reply         *AskResponseChat `json:"reply"`
	Mode          string           `json:"mode,omitempty"` // "rag" | "rag+web"
}

type GetAllSessionsResponse struct {
	Id           uuid.UUID  `json:"id"`
	Title        string     `json:"title"`
	LastMessage  string     `json:"last_message"`
	MessageCount int        `json:"message_count"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    *time.Time `json:"updated_at"`
}

type GetChatHistoryResponse struct {
	Id        uuid.UUID `json:"id"`
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

type DeleteSessionRequest struct {
	ChatSessionId uuid.UUID `json:"chat_session_id" validate:"required"`
}

// TurnCompletedMessage is the analytics event published after each turn.
type TurnCompletedMessage struct {
	ChatSessionId uuid.UUID `json:"chat_session_id"`
	UserId        uuid.UUID `json:"user_id"`
	Mode          string    `json:"mode"`
	SearchQuery   string    `json:"search_query,omitempty"`
	DurationMs    int64     `json:"duration_ms"`
	Failed        bool      `json:"failed"`
}
