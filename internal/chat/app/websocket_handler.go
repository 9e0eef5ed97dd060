package app

import (
	"context"
	"encoding/json"
	"time"

	"chat_relay_service/internal/chat/domain"
	"chat_relay_service/pkg/logger"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// readHistoryCount 單次查詢回傳的最近訊息數
const readHistoryCount = 50

// ChatWebsocketHandler 聊天室的 REST 與 WebSocket 入口
type ChatWebsocketHandler struct {
	roomUC *RoomUseCase
	hub    *RoomHub
}

// NewChatWebsocketHandler create ChatWebsocketHandler
func NewChatWebsocketHandler(roomUC *RoomUseCase, hub *RoomHub) *ChatWebsocketHandler {
	return &ChatWebsocketHandler{
		roomUC: roomUC,
		hub:    hub,
	}
}

// NewClientID 發一個新的 client id
func (h *ChatWebsocketHandler) NewClientID(c *fiber.Ctx) error {
	return c.SendString(uuid.New().String())
}

// GetRooms 列出所有房間
func (h *ChatWebsocketHandler) GetRooms(c *fiber.Ctx) error {
	rooms, err := h.roomUC.ListRooms(c.Context())
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}
	return c.JSON(rooms)
}

// PostRooms 建立房間
func (h *ChatWebsocketHandler) PostRooms(c *fiber.Ctx) error {
	var body struct {
		Name string `json:"name"`
	}
	if err := c.BodyParser(&body); err != nil || body.Name == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "name is required"})
	}

	info, err := h.roomUC.CreateRoom(c.Context(), body.Name)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}
	return c.JSON(info)
}

// GetMessages 讀取房間最近訊息
func (h *ChatWebsocketHandler) GetMessages(c *fiber.Ctx) error {
	roomID := c.Params("room_id")
	msgs, err := h.roomUC.GetMessages(c.Context(), roomID, readHistoryCount)
	if err != nil {
		logger.Log.Errorf("get messages error:", err, zap.String("room_id", roomID))
		// 讀取路徑失敗回空陣列,前端照常渲染
		return c.JSON([]domain.ChatMessage{})
	}
	return c.JSON(msgs)
}

// HandleConnection 是 WebSocket 連線的進入點
// 路徑參數 /ws/:room_id/:user_id
func (h *ChatWebsocketHandler) HandleConnection(ctx context.Context, conn *websocket.Conn) {
	roomID := conn.Params("room_id")
	userID := conn.Params("user_id")
	logger.Log.Info("websocket connected",
		zap.String("room_id", roomID),
		zap.String("user_id", userID),
	)

	room, ok := h.hub.GetRoom(roomID)
	if !ok {
		logger.Log.Warn("websocket for unknown room", zap.String("room_id", roomID))
		conn.WriteMessage(websocket.CloseMessage, []byte{})
		conn.Close()
		return
	}

	client := NewClient(userID, conn)
	room.AddClient(client)

	defer func() {
		room.RemoveClient(client)
		logger.Log.Info("websocket close", zap.String("user_id", userID))
		conn.Close()
	}()

	//client發出close
	//fiber會自動處理(在read msg 回傳err),故需要SetCloseHandler另外接出
	conn.SetCloseHandler(func(code int, text string) error {
		logger.Log.Infof("WebSocket closed:", conn.RemoteAddr())
		return nil
	})

	//client發出ping
	//fiber會自動處理ping,故需要SetPingHandler另外接出
	conn.SetPingHandler(func(appData string) error {
		return conn.WriteControl(
			websocket.PongMessage,
			[]byte(appData),
			time.Now().Add(time.Second),
		)
	})

	for {
		// 1. 讀取前端訊息
		mt, message, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err,
				websocket.CloseNormalClosure,
				websocket.CloseGoingAway,
				websocket.CloseNoStatusReceived,
			) {
				logger.Log.Infof("connection closed:", err)
			} else {
				logger.Log.Errorf("websocket read error:", err)
			}
			return
		}
		if mt != websocket.TextMessage {
			continue
		}

		// 2. 解析訊息內容，非 JSON 時整串當訊息文字
		var req domain.WSRequest
		if err := json.Unmarshal(message, &req); err != nil {
			req.Content = string(message)
		}
		if req.Content == "" {
			continue
		}

		// 3. 寫入 stream 並廣播，持久化由 relay worker 完成
		if _, err := h.roomUC.SendMessage(ctx, roomID, userID, req.Content); err != nil {
			logger.Log.Errorf("send message error:", err,
				zap.String("room_id", roomID),
				zap.String("user_id", userID),
			)
		}
	}
}
