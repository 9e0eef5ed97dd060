package app

import (
	"context"
	"time"

	"chat_relay_service/internal/chat/domain"
	"chat_relay_service/internal/chat/repository"
	"chat_relay_service/pkg/config"
	"chat_relay_service/pkg/logger"

	"go.uber.org/zap"
)

// relay worker 預設值
const (
	// DefaultGroupName consumer group name
	DefaultGroupName = "db-persist-group"
	// DefaultConsumerName this worker's consumer name
	DefaultConsumerName = "db-worker-1"
	// DefaultPollInterval 每個輪詢週期的間隔
	DefaultPollInterval = time.Second
	// DefaultBatchCount 每個房間每次最多讀取的訊息數
	DefaultBatchCount = 10
	// DefaultMaxStreamLen 每個房間 stream 保留的訊息上限
	DefaultMaxStreamLen = 50
	// DefaultRestoreCount 回填 stream 時最多讀取的歷史訊息數
	DefaultRestoreCount = 50
)

// RelayWorker 背景工作，將各房間 stream 的訊息經 consumer group 搬進 postgreSQL
//
// 流程：
// 1. 每個週期從 DB 重算 active room set（新房間建 group，被刪的房間移出）
// 2. 逐房間 XREADGROUP 讀取未投遞訊息
// 3. 逐則寫入 DB（stream entry id 當唯一鍵，重投不重複寫）
// 4. 寫入成功才 XACK，之後 XTRIM 修剪 stream
// crash 在寫入與 ack 之間時訊息會重投，由唯一鍵擋掉重複
type RelayWorker struct {
	stream repository.StreamRepository
	rooms  repository.RoomRepository
	msgs   repository.MessageRepository

	groupName    string
	consumerName string
	pollInterval time.Duration
	batchCount   int64
	maxStreamLen int64
	restoreCount int

	active map[string]struct{}
	done   chan struct{}
}

// NewRelayWorker init RelayWorker，零值設定補上預設值
func NewRelayWorker(
	stream repository.StreamRepository,
	rooms repository.RoomRepository,
	msgs repository.MessageRepository,
	cfg config.RelayConfig,
) *RelayWorker {
	if cfg.GroupName == "" {
		cfg.GroupName = DefaultGroupName
	}
	if cfg.ConsumerName == "" {
		cfg.ConsumerName = DefaultConsumerName
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultPollInterval
	}
	if cfg.BatchCount <= 0 {
		cfg.BatchCount = DefaultBatchCount
	}
	if cfg.MaxStreamLen <= 0 {
		cfg.MaxStreamLen = DefaultMaxStreamLen
	}
	if cfg.RestoreCount <= 0 {
		cfg.RestoreCount = DefaultRestoreCount
	}

	return &RelayWorker{
		stream:       stream,
		rooms:        rooms,
		msgs:         msgs,
		groupName:    cfg.GroupName,
		consumerName: cfg.ConsumerName,
		pollInterval: cfg.PollInterval,
		batchCount:   cfg.BatchCount,
		maxStreamLen: cfg.MaxStreamLen,
		restoreCount: cfg.RestoreCount,
		active:       make(map[string]struct{}),
		done:         make(chan struct{}),
	}
}

// Run 主迴圈，ctx 取消後結束。間隔從上一個週期結束起算
func (w *RelayWorker) Run(ctx context.Context) {
	defer close(w.done)
	logger.Log.Info("relay worker started",
		zap.String("group", w.groupName),
		zap.String("consumer", w.consumerName),
	)

	for {
		select {
		case <-ctx.Done():
			logger.Log.Info("relay worker stopped", zap.String("consumer", w.consumerName))
			return
		default:
		}

		w.runCycle(ctx)

		select {
		case <-ctx.Done():
			logger.Log.Info("relay worker stopped", zap.String("consumer", w.consumerName))
			return
		case <-time.After(w.pollInterval):
		}
	}
}

// Done worker 結束後關閉，shutdown 時等它
func (w *RelayWorker) Done() <-chan struct{} {
	return w.done
}

// runCycle 一個完整的輪詢週期：重算房間集合，逐房間 drain 再 trim
// 單一房間出錯只記 log，不中斷整個週期
func (w *RelayWorker) runCycle(ctx context.Context) {
	if err := w.reconcileRooms(ctx); err != nil {
		logger.Log.Error("reconcile rooms failed", zap.Error(err))
		return
	}

	for roomID := range w.active {
		select {
		case <-ctx.Done():
			return
		default:
		}

		if err := w.drainRoom(ctx, roomID); err != nil {
			logger.Log.Error("drain room failed",
				zap.String("room_id", roomID),
				zap.Error(err),
			)
			continue
		}
		if err := w.trimRoom(ctx, roomID); err != nil {
			logger.Log.Error("trim room failed",
				zap.String("room_id", roomID),
				zap.Error(err),
			)
		}
	}
}

// reconcileRooms 以 DB 的房間集合為準重算 active set
// 新房間補建 consumer group（從 $ 開始，只收之後的訊息）
// 被刪掉的房間只移出集合，不動底層資料
func (w *RelayWorker) reconcileRooms(ctx context.Context) error {
	ids, err := w.rooms.ListRoomIDs(ctx)
	if err != nil {
		return err
	}

	next := make(map[string]struct{}, len(ids))
	for _, roomID := range ids {
		if _, ok := w.active[roomID]; !ok {
			if err := w.stream.CreateGroup(ctx, roomID, w.groupName, "$"); err != nil {
				logger.Log.Error("create consumer group failed",
					zap.String("room_id", roomID),
					zap.Error(err),
				)
				// group 建不起來就先不納入，下個週期重試
				continue
			}
			logger.Log.Info("monitoring new room", zap.String("room_id", roomID))
		}
		next[roomID] = struct{}{}
	}

	for roomID := range w.active {
		if _, ok := next[roomID]; !ok {
			logger.Log.Info("room removed from store, stop monitoring",
				zap.String("room_id", roomID))
		}
	}

	w.active = next
	return nil
}

// drainRoom 先重投自己 PEL 內未 ack 的訊息，再讀一批新訊息，逐則處理
// XREADGROUP ">" 不會重投已投遞過的訊息，crash 或 DB 失敗留下的
// 未 ack 訊息要用 "0" cursor 從 PEL 撈回來
func (w *RelayWorker) drainRoom(ctx context.Context, roomID string) error {
	for _, cursor := range []string{"0", ">"} {
		batch, err := w.stream.ReadGroup(ctx, w.groupName, w.consumerName, []string{roomID}, cursor, w.batchCount)
		if err != nil {
			return err
		}

		for _, msg := range batch[roomID] {
			if err := w.commitEntry(ctx, roomID, msg); err != nil {
				// 這則沒 ack，之後會重投；同房間後面的訊息也留到下個週期，保持順序
				return err
			}
		}
	}
	return nil
}

// commitEntry 寫入一則訊息並 ack
// malformed 直接 ack 丟棄；重複訊息視同處理成功；只有 DB 失敗不 ack
func (w *RelayWorker) commitEntry(ctx context.Context, roomID string, msg domain.StreamMessage) error {
	if msg.Malformed() {
		logger.Log.Warn("discard malformed stream entry",
			zap.String("room_id", roomID),
			zap.String("stream_msg_id", msg.ID),
		)
		return w.stream.Ack(ctx, roomID, w.groupName, msg.ID)
	}

	if err := w.rooms.EnsureRoom(ctx, roomID, ""); err != nil {
		return err
	}

	inserted, err := w.msgs.InsertMessageIfAbsent(ctx, roomID, msg.User, msg.Text, msg.ID)
	if err != nil {
		return err
	}
	if !inserted {
		// crash 後重投，DB 已有這則
		logger.Log.Info("message already persisted, skipping",
			zap.String("room_id", roomID),
			zap.String("stream_msg_id", msg.ID),
		)
	}

	return w.stream.Ack(ctx, roomID, w.groupName, msg.ID)
}

// trimRoom 超過保留上限才修剪
func (w *RelayWorker) trimRoom(ctx context.Context, roomID string) error {
	n, err := w.stream.Len(ctx, roomID)
	if err != nil {
		return err
	}
	if n > w.maxStreamLen {
		return w.stream.Trim(ctx, roomID, w.maxStreamLen)
	}
	return nil
}

// Bootstrap 啟動時對 DB 內既有房間回填 stream 並補建 consumer group
// 在第一次輪詢前呼叫
func (w *RelayWorker) Bootstrap(ctx context.Context) error {
	ids, err := w.rooms.ListRoomIDs(ctx)
	if err != nil {
		return err
	}

	logger.Log.Info("bootstrapping rooms", zap.Int("count", len(ids)))
	for _, roomID := range ids {
		if err := w.PrepareRoom(ctx, roomID); err != nil {
			logger.Log.Error("bootstrap room failed",
				zap.String("room_id", roomID),
				zap.Error(err),
			)
		}
	}
	return nil
}

// PrepareRoom 回填單一房間的 stream，再建 consumer group
//
// 先回填、後建 group：group 從 $ 開始，建在回填之後
// 回填的訊息才不會再被 worker 自己 drain 回 DB 一次
// stream 已有資料時跳過回填，重跑不會改變 DB 或 stream 內容
func (w *RelayWorker) PrepareRoom(ctx context.Context, roomID string) error {
	n, err := w.stream.Len(ctx, roomID)
	if err != nil {
		return err
	}

	if n == 0 {
		history, err := w.msgs.ListMessages(ctx, roomID, w.restoreCount)
		if err != nil {
			return err
		}
		// ListMessages 由新到舊，回填要由舊到新
		for i := len(history) - 1; i >= 0; i-- {
			m := history[i]
			if _, err := w.stream.Append(ctx, roomID, m.UserID, m.Text); err != nil {
				return err
			}
		}
		if len(history) > 0 {
			logger.Log.Info("restored room history into stream",
				zap.String("room_id", roomID),
				zap.Int("count", len(history)),
			)
		}
	}

	return w.stream.CreateGroup(ctx, roomID, w.groupName, "$")
}
