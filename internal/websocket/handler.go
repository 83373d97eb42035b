package websocket

import (
	"github.com/gofiber/websocket/v2"
	"github.com/google/uuid"
)

// ServeWs attaches a websocket connection to the hub for one chat session
// and blocks until the connection drops.
func ServeWs(hub *Hub, c *websocket.Conn, sessionID uuid.UUID, onMessage InboundHandler) {
	client := &Client{
		Hub:       hub,
		Conn:      c,
		SessionID: sessionID,
		Send:      make(chan []byte, 256),
		onMessage: onMessage,
	}
	client.Hub.register <- client

	go client.writePump()
	client.readPump() // runs in the handler goroutine
}
