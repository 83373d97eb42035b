package controller

import (
	"essay-coach-be/internal/service"
	ws "essay-coach-be/internal/websocket"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/google/uuid"
)

type IChatController interface {
	RegisterRoutes(r fiber.Router)
}

type chatController struct {
	chatService service.IChatService
	hub         *ws.Hub
}

func NewChatController(chatService service.IChatService, hub *ws.Hub) IChatController {
	return &chatController{
		chatService: chatService,
		hub:         hub,
	}
}

func (c *chatController) RegisterRoutes(r fiber.Router) {
	h := r.Group("/chat/v1")

	h.Use("/ws", func(ctx *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(ctx) {
			return ctx.Next()
		}
		return fiber.ErrUpgradeRequired
	})

	// A fresh session id is minted when the client does not bring one
	h.Get("/ws", websocket.New(func(conn *websocket.Conn) {
		sessionID, err := uuid.Parse(conn.Query("session_id"))
		if err != nil {
			sessionID = uuid.New()
		}
		ws.ServeWs(c.hub, conn, sessionID, c.chatService.HandleIncoming)
	}))
}
