package websocket

import (
	"law-of-the-land-be/internal/service"

	"github.com/gofiber/websocket/v2"
	"github.com/google/uuid"
)

// ServeWs handles websocket requests from the peer.
func ServeWs(hub *Hub, c *websocket.Conn, userID uuid.UUID, chatService service.IChatService) {
	client := &Client{
		Hub:         hub,
		Conn:        c,
		UserID:      userID,
		Send:        make(chan []byte, 256),
		chatService: chatService,
	}
	client.Hub.register <- client

	go client.writePump()
	client.readPump() // Run readPump in current goroutine (handler)
}
