package websocket

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"law-of-the-land-be/internal/constant"
	"law-of-the-land-be/internal/dto"
	"law-of-the-land-be/internal/service"

	"github.com/gofiber/websocket/v2"
	"github.com/google/uuid"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4096

	turnTimeout = 120 * time.Second
)

// Inbound and outbound event types for the bidirectional chat channel.
const (
	EventChatRequest  = "chat:request"
	EventChatStart    = "chat:start"
	EventChatComplete = "chat:complete"
	EventChatError    = "chat:error"
)

type inboundEvent struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// Client is a middleman between the websocket connection and the hub.
type Client struct {
	Hub *Hub

	// The websocket connection.
	Conn *websocket.Conn

	// UserID associated with this connection
	UserID uuid.UUID

	// Buffered channel of outbound messages.
	Send chan []byte

	chatService service.IChatService
}

// readPump pumps messages from the websocket connection to the hub.
// Each chat:request runs in its own goroutine so a slow turn does not block
// pings or further requests on the same connection.
func (c *Client) readPump() {
	defer func() {
		log.Printf("readPump exiting for user %s", c.UserID)
		c.Hub.unregister <- c
		c.Conn.Close()
	}()
	c.Conn.SetReadLimit(maxMessageSize)
	c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	log.Printf("readPump started for user %s", c.UserID)
	for {
		_, raw, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("readPump error for user %s: %v", c.UserID, err)
			}
			break
		}

		var evt inboundEvent
		if err := json.Unmarshal(raw, &evt); err != nil {
			c.Hub.Send(c.UserID, EventChatError, map[string]interface{}{
				"error": "invalid message format",
			})
			continue
		}

		switch evt.Type {
		case EventChatRequest:
			var req dto.AskRequest
			if err := json.Unmarshal(evt.Data, &req); err != nil || req.Query == "" {
				c.Hub.Send(c.UserID, EventChatError, map[string]interface{}{
					"error": "invalid chat request",
				})
				continue
			}
			go c.handleChatRequest(&req)
		default:
			// Unknown event types are ignored, the channel stays open
		}
	}
}

func (c *Client) handleChatRequest(req *dto.AskRequest) {
	ctx, cancel := context.WithTimeout(context.Background(), turnTimeout)
	defer cancel()

	stream, err := c.chatService.SubmitTurnStream(ctx, c.UserID, req)
	if err != nil {
		c.Hub.Send(c.UserID, EventChatError, map[string]interface{}{
			"error": constant.GenericErrorMessage,
		})
		return
	}

	c.Hub.Send(c.UserID, EventChatStart, map[string]interface{}{
		"chat_session_id": stream.ChatSessionId,
		"title":           stream.Title,
	})

	// The websocket contract is non-incremental: collect the fragments and
	// deliver the complete answer in one frame.
	var answer []byte
	for chunk := range stream.Fragments {
		if chunk.Err != nil {
			c.Hub.Send(c.UserID, EventChatError, map[string]interface{}{
				"chat_session_id": stream.ChatSessionId,
				"error":           constant.GenericErrorMessage,
			})
			return
		}
		answer = append(answer, chunk.Delta...)
	}

	// The channel stays open for the next turn
	c.Hub.Send(c.UserID, EventChatComplete, map[string]interface{}{
		"chat_session_id": stream.ChatSessionId,
		"result":          string(answer),
	})
}

// writePump pumps messages from the hub to the websocket connection.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		log.Printf("writePump exiting for user %s", c.UserID)
		ticker.Stop()
		c.Conn.Close()
	}()

	log.Printf("writePump started for user %s", c.UserID)
	for {
		select {
		case message, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// The hub closed the channel.
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				log.Printf("writePump Ping error for user %s: %v", c.UserID, err)
				return
			}
		}
	}
}
