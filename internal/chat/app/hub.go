package app

import (
	"sync"

	"chat_relay_service/internal/chat/domain"
	"chat_relay_service/pkg/logger"

	"go.uber.org/zap"
)

// wsWriter websocket 連線的最小寫入介面，測試時可替換
type wsWriter interface {
	WriteJSON(v interface{}) error
}

// Client 一條 websocket 連線
type Client struct {
	UserID string

	mu   sync.Mutex
	conn wsWriter
}

// NewClient create Client
func NewClient(userID string, conn wsWriter) *Client {
	return &Client{UserID: userID, conn: conn}
}

// SendJSON 寫出一則 JSON 訊息
// fiber websocket 的寫入不是 goroutine-safe，需要加鎖
func (c *Client) SendJSON(v interface{}) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.WriteJSON(v)
}

// LiveRoom 單一房間目前在線的連線
type LiveRoom struct {
	Name string

	mu      sync.RWMutex
	clients []*Client
}

// AddClient client join room
func (r *LiveRoom) AddClient(c *Client) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.clients = append(r.clients, c)
	logger.Log.Info("client joined room",
		zap.String("user_id", c.UserID),
		zap.String("room", r.Name),
	)
}

// RemoveClient client leave room
func (r *LiveRoom) RemoveClient(c *Client) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, cl := range r.clients {
		if cl == c {
			r.clients = append(r.clients[:i], r.clients[i+1:]...)
			logger.Log.Info("client left room",
				zap.String("user_id", c.UserID),
				zap.String("room", r.Name),
			)
			return
		}
	}
}

// ClientCount 目前在線人數
func (r *LiveRoom) ClientCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.clients)
}

// Broadcast 發送給房間內所有連線，excludeUser 留空表示全員
func (r *LiveRoom) Broadcast(resp domain.WSResponse, excludeUser string) {
	r.mu.RLock()
	clients := make([]*Client, len(r.clients))
	copy(clients, r.clients)
	r.mu.RUnlock()

	for _, c := range clients {
		if excludeUser != "" && c.UserID == excludeUser {
			continue
		}
		if err := c.SendJSON(resp); err != nil {
			logger.Log.Warn("broadcast write failed",
				zap.String("user_id", c.UserID),
				zap.Error(err),
			)
		}
	}
}

// RoomHub 行程內的房間註冊表，只服務同節點的即時廣播
// 房間集合的真相在 DB，這裡只是 live 連線的快取
type RoomHub struct {
	mu    sync.RWMutex
	rooms map[string]*LiveRoom
}

// NewRoomHub create RoomHub
func NewRoomHub() *RoomHub {
	return &RoomHub{rooms: make(map[string]*LiveRoom)}
}

// EnsureRoom 註冊房間，已存在則沿用
func (h *RoomHub) EnsureRoom(roomID, name string) *LiveRoom {
	h.mu.Lock()
	defer h.mu.Unlock()
	if room, ok := h.rooms[roomID]; ok {
		return room
	}
	room := &LiveRoom{Name: name}
	h.rooms[roomID] = room
	return room
}

// GetRoom find room by id
func (h *RoomHub) GetRoom(roomID string) (*LiveRoom, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	room, ok := h.rooms[roomID]
	return room, ok
}

// Rooms list registered rooms
func (h *RoomHub) Rooms() []domain.RoomInfo {
	h.mu.RLock()
	defer h.mu.RUnlock()
	infos := make([]domain.RoomInfo, 0, len(h.rooms))
	for id, room := range h.rooms {
		infos = append(infos, domain.RoomInfo{ID: id, Name: room.Name})
	}
	return infos
}
