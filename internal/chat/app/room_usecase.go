package app

import (
	"context"

	"chat_relay_service/internal/chat/domain"
	"chat_relay_service/internal/chat/repository"
	errprocess "chat_relay_service/pkg/err"
	"chat_relay_service/pkg/logger"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// RoomUseCase 負責房間管理與聊天訊息的讀寫路徑
type RoomUseCase struct {
	rooms  repository.RoomRepository
	msgs   repository.MessageRepository
	stream repository.StreamRepository
	hub    *RoomHub
	worker *RelayWorker
}

// NewRoomUseCase init create room use case
func NewRoomUseCase(
	rooms repository.RoomRepository,
	msgs repository.MessageRepository,
	stream repository.StreamRepository,
	hub *RoomHub,
	worker *RelayWorker,
) *RoomUseCase {
	return &RoomUseCase{
		rooms:  rooms,
		msgs:   msgs,
		stream: stream,
		hub:    hub,
		worker: worker,
	}
}

// CreateRoom 建立房間：寫 DB、註冊 hub、回填 stream 並建 consumer group
func (uc *RoomUseCase) CreateRoom(ctx context.Context, name string) (*domain.RoomInfo, error) {
	if name == "" {
		return nil, errprocess.Set("room name is required")
	}

	roomID := uuid.New().String()
	room := &domain.Room{RoomID: roomID, RoomName: name}
	if err := uc.rooms.CreateRoom(ctx, room); err != nil {
		return nil, err
	}

	uc.hub.EnsureRoom(roomID, name)

	// 新房間沒有歷史可回填，這裡主要是建 group，讓 worker 接手前不漏訊息
	if err := uc.worker.PrepareRoom(ctx, roomID); err != nil {
		return nil, err
	}

	logger.Log.Info("room created",
		zap.String("room_id", roomID),
		zap.String("name", name),
	)
	return &domain.RoomInfo{ID: roomID, Name: name}, nil
}

// ListRooms 以 DB 為準列出房間，並把缺的同步進 hub
func (uc *RoomUseCase) ListRooms(ctx context.Context) ([]domain.RoomInfo, error) {
	rooms, err := uc.rooms.ListRooms(ctx)
	if err != nil {
		return nil, err
	}

	infos := make([]domain.RoomInfo, 0, len(rooms))
	for _, r := range rooms {
		uc.hub.EnsureRoom(r.RoomID, r.RoomName)
		infos = append(infos, domain.RoomInfo{ID: r.RoomID, Name: r.RoomName})
	}
	return infos, nil
}

// GetMessages 讀取最近訊息，由新到舊
// stream 有資料就讀 stream（快），空的才退回 DB
func (uc *RoomUseCase) GetMessages(ctx context.Context, roomID string, limit int64) ([]domain.ChatMessage, error) {
	n, err := uc.stream.Len(ctx, roomID)
	if err != nil {
		return nil, err
	}

	if n > 0 {
		raw, err := uc.stream.RevRange(ctx, roomID, limit)
		if err != nil {
			return nil, err
		}
		msgs := make([]domain.ChatMessage, 0, len(raw))
		for _, m := range raw {
			msgs = append(msgs, domain.ChatMessage{ID: m.ID, User: m.User, Text: m.Text})
		}
		return msgs, nil
	}

	// stream 被清掉或剛重啟，從 DB 撈
	rows, err := uc.msgs.ListMessages(ctx, roomID, int(limit))
	if err != nil {
		return nil, err
	}
	msgs := make([]domain.ChatMessage, 0, len(rows))
	for _, m := range rows {
		msgs = append(msgs, domain.ChatMessage{
			User:      m.UserID,
			Text:      m.Text,
			Timestamp: m.CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
		})
	}
	logger.Log.Debug("messages served from database",
		zap.String("room_id", roomID),
		zap.Int("count", len(msgs)),
	)
	return msgs, nil
}

// SendMessage 送出一則聊天訊息：寫 stream，再廣播給同節點的連線
// 持久化交給 relay worker，這裡不碰 DB
func (uc *RoomUseCase) SendMessage(ctx context.Context, roomID, userID, text string) (string, error) {
	msgID, err := uc.stream.Append(ctx, roomID, userID, text)
	if err != nil {
		return "", err
	}

	if room, ok := uc.hub.GetRoom(roomID); ok {
		room.Broadcast(domain.WSResponse{
			Type:    "message",
			User:    userID,
			Message: text,
		}, "")
	}
	return msgID, nil
}
