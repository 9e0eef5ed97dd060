package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"chat_relay_service/internal/chat/domain"

	"github.com/go-redis/redis/v8"
)

// ErrStreamUnavailable redis stream 操作失敗，下個輪詢週期重試
var ErrStreamUnavailable = errors.New("chat stream unavailable")

// StreamRepository definition room stream operations
// stream key = room_id，每個聊天室一條 stream
type StreamRepository interface {
	// Append 新增一則聊天訊息到 stream，回傳 redis 分配的 entry id
	Append(ctx context.Context, roomID, user, text string) (string, error)
	// Len 目前 stream 內訊息數量
	Len(ctx context.Context, roomID string) (int64, error)
	// RevRange 由新到舊讀取最多 count 則訊息
	RevRange(ctx context.Context, roomID string, count int64) ([]domain.StreamMessage, error)
	// CreateGroup 建立 consumer group，已存在視為成功
	CreateGroup(ctx context.Context, roomID, group, startID string) error
	// ReadGroup 以 consumer group 讀取訊息
	// cursor ">" 讀尚未投遞的新訊息；"0" 讀自己 PEL 內已投遞未 ack 的訊息
	ReadGroup(ctx context.Context, group, consumer string, roomIDs []string, cursor string, count int64) (map[string][]domain.StreamMessage, error)
	// Ack 確認訊息已處理完成
	Ack(ctx context.Context, roomID, group string, ids ...string) error
	// Trim 保留最新 maxLen 則，移除更舊的訊息
	Trim(ctx context.Context, roomID string, maxLen int64) error
}

type redisStreamRepository struct {
	client *redis.Client
}

// NewRedisStreamRepository create StreamRepository
func NewRedisStreamRepository(client *redis.Client) StreamRepository {
	return &redisStreamRepository{client: client}
}

// Append append one chat entry to room stream
func (r *redisStreamRepository) Append(ctx context.Context, roomID, user, text string) (string, error) {
	if user == "" || text == "" {
		return "", fmt.Errorf("%w: append expects user and message", ErrStreamUnavailable)
	}

	id, err := r.client.XAdd(ctx, &redis.XAddArgs{
		Stream: roomID,
		Values: map[string]interface{}{
			domain.StreamFieldUser:    user,
			domain.StreamFieldMessage: text,
		},
	}).Result()
	if err != nil {
		return "", fmt.Errorf("%w: xadd %s: %v", ErrStreamUnavailable, roomID, err)
	}
	return id, nil
}

// Len returns count of messages from stream
func (r *redisStreamRepository) Len(ctx context.Context, roomID string) (int64, error) {
	n, err := r.client.XLen(ctx, roomID).Result()
	if err != nil {
		return 0, fmt.Errorf("%w: xlen %s: %v", ErrStreamUnavailable, roomID, err)
	}
	return n, nil
}

// RevRange reads messages in reverse order (newest first)
// 不存在的 stream 回傳空結果而非錯誤
func (r *redisStreamRepository) RevRange(ctx context.Context, roomID string, count int64) ([]domain.StreamMessage, error) {
	// + = latest, - = oldest
	raw, err := r.client.XRevRangeN(ctx, roomID, "+", "-", count).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: xrevrange %s: %v", ErrStreamUnavailable, roomID, err)
	}

	msgs := make([]domain.StreamMessage, 0, len(raw))
	for _, m := range raw {
		msgs = append(msgs, decodeStreamMessage(m))
	}
	return msgs, nil
}

// CreateGroup creates a consumer group for a room stream
// BUSYGROUP 表示 group 已存在，視為成功
func (r *redisStreamRepository) CreateGroup(ctx context.Context, roomID, group, startID string) error {
	err := r.client.XGroupCreateMkStream(ctx, roomID, group, startID).Err()
	if err != nil {
		if strings.Contains(err.Error(), "BUSYGROUP") {
			return nil
		}
		return fmt.Errorf("%w: xgroup create %s/%s: %v", ErrStreamUnavailable, roomID, group, err)
	}
	return nil
}

// ReadGroup reads messages from streams as part of a consumer group
func (r *redisStreamRepository) ReadGroup(ctx context.Context, group, consumer string, roomIDs []string, cursor string, count int64) (map[string][]domain.StreamMessage, error) {
	streams := make([]string, 0, len(roomIDs)*2)
	streams = append(streams, roomIDs...)
	for range roomIDs {
		streams = append(streams, cursor)
	}

	raw, err := r.client.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    group,
		Consumer: consumer,
		Streams:  streams,
		Count:    count,
		Block:    -1, // go-redis 在 Block >= 0 時會帶 BLOCK，輪詢不能阻塞
	}).Result()
	if err != nil {
		// 沒有待處理訊息時回傳 redis.Nil
		if err == redis.Nil {
			return map[string][]domain.StreamMessage{}, nil
		}
		return nil, fmt.Errorf("%w: xreadgroup %s/%s: %v", ErrStreamUnavailable, group, consumer, err)
	}

	result := make(map[string][]domain.StreamMessage, len(raw))
	for _, stream := range raw {
		msgs := make([]domain.StreamMessage, 0, len(stream.Messages))
		for _, m := range stream.Messages {
			msgs = append(msgs, decodeStreamMessage(m))
		}
		result[stream.Stream] = msgs
	}
	return result, nil
}

// Ack acknowledges that messages have been processed
func (r *redisStreamRepository) Ack(ctx context.Context, roomID, group string, ids ...string) error {
	if len(ids) == 0 {
		return nil
	}
	if err := r.client.XAck(ctx, roomID, group, ids...).Err(); err != nil {
		return fmt.Errorf("%w: xack %s/%s: %v", ErrStreamUnavailable, roomID, group, err)
	}
	return nil
}

// Trim removes old messages from stream, keep only the latest maxLen
// 量級小，用精確 MAXLEN，保留上限才可驗證
func (r *redisStreamRepository) Trim(ctx context.Context, roomID string, maxLen int64) error {
	if err := r.client.XTrimMaxLen(ctx, roomID, maxLen).Err(); err != nil {
		return fmt.Errorf("%w: xtrim %s: %v", ErrStreamUnavailable, roomID, err)
	}
	return nil
}

// decodeStreamMessage 將 XMessage 欄位轉成 domain.StreamMessage
// 缺欄位時留空字串，由 worker 判定 malformed
func decodeStreamMessage(m redis.XMessage) domain.StreamMessage {
	msg := domain.StreamMessage{ID: m.ID}
	if v, ok := m.Values[domain.StreamFieldUser].(string); ok {
		msg.User = v
	}
	if v, ok := m.Values[domain.StreamFieldMessage].(string); ok {
		msg.Text = v
	}
	return msg
}
