package repository

import (
	"context"
	"fmt"

	"chat_relay_service/internal/chat/domain"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// MessageRepository definition messages table operations
type MessageRepository interface {
	// InsertMessageIfAbsent 以 stream entry id 當唯一鍵寫入訊息
	// 重投時回傳 inserted=false，呼叫端照樣 ack
	InsertMessageIfAbsent(ctx context.Context, roomID, userID, text, streamMsgID string) (bool, error)
	// ListMessages 由新到舊讀取最多 limit 則
	ListMessages(ctx context.Context, roomID string, limit int) ([]domain.Message, error)
	CountByRoom(ctx context.Context, roomID string) (int64, error)
}

type messageRepository struct {
	db *gorm.DB
}

// NewMessageRepository create a MessageRepository
func NewMessageRepository(db *gorm.DB) MessageRepository {
	return &messageRepository{db: db}
}

// InsertMessageIfAbsent insert message, skip on duplicate stream_msg_id
// 唯一鍵衝突交給 DB 層判定，避免 check-then-insert 的競態
func (r *messageRepository) InsertMessageIfAbsent(ctx context.Context, roomID, userID, text, streamMsgID string) (bool, error) {
	msg := domain.Message{
		RoomID:      roomID,
		UserID:      userID,
		Text:        text,
		StreamMsgID: &streamMsgID,
	}
	result := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "stream_msg_id"}},
			DoNothing: true,
		}).
		Create(&msg)
	if result.Error != nil {
		return false, fmt.Errorf("%w: insert message %s: %v", ErrStoreUnavailable, streamMsgID, result.Error)
	}
	return result.RowsAffected > 0, nil
}

// ListMessages newest first
func (r *messageRepository) ListMessages(ctx context.Context, roomID string, limit int) ([]domain.Message, error) {
	var msgs []domain.Message
	err := r.db.WithContext(ctx).
		Where("room_id = ?", roomID).
		Order("created_at DESC").
		Order("id DESC").
		Limit(limit).
		Find(&msgs).Error
	if err != nil {
		return nil, fmt.Errorf("%w: list messages %s: %v", ErrStoreUnavailable, roomID, err)
	}
	return msgs, nil
}

// CountByRoom count messages of a room
func (r *messageRepository) CountByRoom(ctx context.Context, roomID string) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&domain.Message{}).Where("room_id = ?", roomID).Count(&n).Error
	if err != nil {
		return 0, fmt.Errorf("%w: count messages %s: %v", ErrStoreUnavailable, roomID, err)
	}
	return n, nil
}
