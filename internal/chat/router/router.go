package router

import (
	"context"

	"chat_relay_service/internal/chat/app"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
)

// RegisterRoutes 注册聊天相关的路由
func RegisterRoutes(r *fiber.App, chatWebsocket *app.ChatWebsocketHandler) {
	r.Get("/client", chatWebsocket.NewClientID)
	r.Get("/rooms", chatWebsocket.GetRooms)
	r.Post("/rooms", chatWebsocket.PostRooms)
	r.Get("/rooms/:room_id/messages", chatWebsocket.GetMessages)

	r.Get("/ws/:room_id/:user_id", websocket.New(func(c *websocket.Conn) {
		chatWebsocket.HandleConnection(context.Background(), c)
	}))
}
