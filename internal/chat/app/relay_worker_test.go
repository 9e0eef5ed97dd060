package app

import (
	"context"
	"errors"
	"testing"
	"time"

	"chat_relay_service/internal/chat/domain"
	"chat_relay_service/pkg/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

func newTestWorker(stream *MockStreamRepository, rooms *MockRoomRepository, msgs *MockMessageRepository) *RelayWorker {
	return NewRelayWorker(stream, rooms, msgs, config.RelayConfig{
		PollInterval: 10 * time.Millisecond,
	})
}

func emptyBatch() map[string][]domain.StreamMessage {
	return map[string][]domain.StreamMessage{}
}

// 測試 drainRoom：正常訊息寫入 DB 後逐則 ack
func TestRelayWorker_DrainRoomPersistsAndAcks(t *testing.T) {
	ctx := context.Background()
	mockStream := new(MockStreamRepository)
	mockRooms := new(MockRoomRepository)
	mockMsgs := new(MockMessageRepository)
	w := newTestWorker(mockStream, mockRooms, mockMsgs)

	batch := map[string][]domain.StreamMessage{
		"r1": {
			{ID: "1-0", User: "u1", Text: "hello"},
			{ID: "2-0", User: "u2", Text: "world"},
		},
	}
	// PEL 先撈一次，這裡沒有殘留
	mockStream.On("ReadGroup", ctx, DefaultGroupName, DefaultConsumerName, []string{"r1"}, "0", int64(DefaultBatchCount)).Return(emptyBatch(), nil)
	mockStream.On("ReadGroup", ctx, DefaultGroupName, DefaultConsumerName, []string{"r1"}, ">", int64(DefaultBatchCount)).Return(batch, nil)
	mockRooms.On("EnsureRoom", ctx, "r1", "").Return(nil)
	mockMsgs.On("InsertMessageIfAbsent", ctx, "r1", "u1", "hello", "1-0").Return(true, nil)
	mockMsgs.On("InsertMessageIfAbsent", ctx, "r1", "u2", "world", "2-0").Return(true, nil)
	mockStream.On("Ack", ctx, "r1", DefaultGroupName, []string{"1-0"}).Return(nil)
	mockStream.On("Ack", ctx, "r1", DefaultGroupName, []string{"2-0"}).Return(nil)

	err := w.drainRoom(ctx, "r1")

	assert.NoError(t, err)
	mockStream.AssertExpectations(t)
	mockRooms.AssertExpectations(t)
	mockMsgs.AssertExpectations(t)
}

// 測試缺欄位的訊息：直接 ack 丟棄，不寫 DB
func TestRelayWorker_MalformedEntryAckedWithoutInsert(t *testing.T) {
	ctx := context.Background()
	mockStream := new(MockStreamRepository)
	mockRooms := new(MockRoomRepository)
	mockMsgs := new(MockMessageRepository)
	w := newTestWorker(mockStream, mockRooms, mockMsgs)

	batch := map[string][]domain.StreamMessage{
		"r1": {{ID: "1-0", User: "", Text: "no sender"}},
	}
	mockStream.On("ReadGroup", ctx, DefaultGroupName, DefaultConsumerName, []string{"r1"}, "0", int64(DefaultBatchCount)).Return(emptyBatch(), nil)
	mockStream.On("ReadGroup", ctx, DefaultGroupName, DefaultConsumerName, []string{"r1"}, ">", int64(DefaultBatchCount)).Return(batch, nil)
	mockStream.On("Ack", ctx, "r1", DefaultGroupName, []string{"1-0"}).Return(nil)

	err := w.drainRoom(ctx, "r1")

	assert.NoError(t, err)
	mockMsgs.AssertNotCalled(t, "InsertMessageIfAbsent",
		mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	mockStream.AssertExpectations(t)
}

// 測試重投的訊息：DB 已存在 (inserted=false) 仍然要 ack
func TestRelayWorker_DuplicateEntryStillAcked(t *testing.T) {
	ctx := context.Background()
	mockStream := new(MockStreamRepository)
	mockRooms := new(MockRoomRepository)
	mockMsgs := new(MockMessageRepository)
	w := newTestWorker(mockStream, mockRooms, mockMsgs)

	batch := map[string][]domain.StreamMessage{
		"r1": {{ID: "1-0", User: "u1", Text: "hello"}},
	}
	mockStream.On("ReadGroup", ctx, DefaultGroupName, DefaultConsumerName, []string{"r1"}, "0", int64(DefaultBatchCount)).Return(batch, nil)
	mockStream.On("ReadGroup", ctx, DefaultGroupName, DefaultConsumerName, []string{"r1"}, ">", int64(DefaultBatchCount)).Return(emptyBatch(), nil)
	mockRooms.On("EnsureRoom", ctx, "r1", "").Return(nil)
	mockMsgs.On("InsertMessageIfAbsent", ctx, "r1", "u1", "hello", "1-0").Return(false, nil)
	mockStream.On("Ack", ctx, "r1", DefaultGroupName, []string{"1-0"}).Return(nil)

	err := w.drainRoom(ctx, "r1")

	assert.NoError(t, err)
	mockStream.AssertExpectations(t)
	mockMsgs.AssertExpectations(t)
}

// 測試 DB 失敗：訊息不 ack，等下個週期重投
func TestRelayWorker_StoreFailureLeavesUnacked(t *testing.T) {
	ctx := context.Background()
	mockStream := new(MockStreamRepository)
	mockRooms := new(MockRoomRepository)
	mockMsgs := new(MockMessageRepository)
	w := newTestWorker(mockStream, mockRooms, mockMsgs)

	batch := map[string][]domain.StreamMessage{
		"r1": {{ID: "1-0", User: "u1", Text: "hello"}},
	}
	mockStream.On("ReadGroup", ctx, DefaultGroupName, DefaultConsumerName, []string{"r1"}, "0", int64(DefaultBatchCount)).Return(batch, nil)
	mockRooms.On("EnsureRoom", ctx, "r1", "").Return(nil)
	mockMsgs.On("InsertMessageIfAbsent", ctx, "r1", "u1", "hello", "1-0").Return(false, errors.New("store unavailable"))

	err := w.drainRoom(ctx, "r1")

	assert.Error(t, err)
	mockStream.AssertNotCalled(t, "Ack",
		mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

// 測試 reconcile：active set 每個週期對齊 DB 的房間集合
func TestRelayWorker_ReconcileRoomsConverges(t *testing.T) {
	ctx := context.Background()
	mockStream := new(MockStreamRepository)
	mockRooms := new(MockRoomRepository)
	mockMsgs := new(MockMessageRepository)
	w := newTestWorker(mockStream, mockRooms, mockMsgs)

	mockRooms.On("ListRoomIDs", ctx).Return([]string{"a", "b"}, nil).Once()
	mockStream.On("CreateGroup", ctx, "a", DefaultGroupName, "$").Return(nil)
	mockStream.On("CreateGroup", ctx, "b", DefaultGroupName, "$").Return(nil)

	assert.NoError(t, w.reconcileRooms(ctx))
	assert.Len(t, w.active, 2)
	assert.Contains(t, w.active, "a")
	assert.Contains(t, w.active, "b")

	// 房間 a 從 DB 消失，下個週期移出 active set
	mockRooms.On("ListRoomIDs", ctx).Return([]string{"b"}, nil).Once()

	assert.NoError(t, w.reconcileRooms(ctx))
	assert.Len(t, w.active, 1)
	assert.Contains(t, w.active, "b")
	// 已在 active set 的房間不重建 group
	mockStream.AssertNumberOfCalls(t, "CreateGroup", 2)

	// a 重新出現要自動加回來
	mockRooms.On("ListRoomIDs", ctx).Return([]string{"a", "b"}, nil).Once()

	assert.NoError(t, w.reconcileRooms(ctx))
	assert.Len(t, w.active, 2)
	mockStream.AssertNumberOfCalls(t, "CreateGroup", 3)
}

// 測試 trim：超過保留上限才修剪
func TestRelayWorker_TrimOnlyOverBound(t *testing.T) {
	ctx := context.Background()
	mockStream := new(MockStreamRepository)
	w := newTestWorker(mockStream, new(MockRoomRepository), new(MockMessageRepository))

	mockStream.On("Len", ctx, "long").Return(int64(60), nil)
	mockStream.On("Trim", ctx, "long", int64(DefaultMaxStreamLen)).Return(nil)
	mockStream.On("Len", ctx, "short").Return(int64(30), nil)

	assert.NoError(t, w.trimRoom(ctx, "long"))
	assert.NoError(t, w.trimRoom(ctx, "short"))

	mockStream.AssertNumberOfCalls(t, "Trim", 1)
}

// 測試回填：DB 由新到舊，寫回 stream 要由舊到新，之後才建 group
func TestRelayWorker_PrepareRoomRestoresOldestFirst(t *testing.T) {
	ctx := context.Background()
	mockStream := new(MockStreamRepository)
	mockRooms := new(MockRoomRepository)
	mockMsgs := new(MockMessageRepository)
	w := newTestWorker(mockStream, mockRooms, mockMsgs)

	history := []domain.Message{
		{RoomID: "r1", UserID: "u3", Text: "third"},
		{RoomID: "r1", UserID: "u2", Text: "second"},
		{RoomID: "r1", UserID: "u1", Text: "first"},
	}
	mockStream.On("Len", ctx, "r1").Return(int64(0), nil)
	mockMsgs.On("ListMessages", ctx, "r1", DefaultRestoreCount).Return(history, nil)

	var appended []string
	mockStream.On("Append", ctx, "r1", mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) {
			appended = append(appended, args.String(3))
		}).
		Return("1-0", nil)
	mockStream.On("CreateGroup", ctx, "r1", DefaultGroupName, "$").Return(nil)

	err := w.PrepareRoom(ctx, "r1")

	assert.NoError(t, err)
	assert.Equal(t, []string{"first", "second", "third"}, appended)
	mockStream.AssertExpectations(t)
}

// 測試回填的冪等性：stream 已有資料就不再回填
func TestRelayWorker_PrepareRoomSkipsNonEmptyStream(t *testing.T) {
	ctx := context.Background()
	mockStream := new(MockStreamRepository)
	mockRooms := new(MockRoomRepository)
	mockMsgs := new(MockMessageRepository)
	w := newTestWorker(mockStream, mockRooms, mockMsgs)

	mockStream.On("Len", ctx, "r1").Return(int64(5), nil)
	mockStream.On("CreateGroup", ctx, "r1", DefaultGroupName, "$").Return(nil)

	err := w.PrepareRoom(ctx, "r1")

	assert.NoError(t, err)
	mockMsgs.AssertNotCalled(t, "ListMessages", mock.Anything, mock.Anything, mock.Anything)
	mockStream.AssertNotCalled(t, "Append",
		mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

// 測試 Run：ctx 取消後 worker 收尾結束
func TestRelayWorker_RunStopsOnContextCancel(t *testing.T) {
	mockStream := new(MockStreamRepository)
	mockRooms := new(MockRoomRepository)
	mockMsgs := new(MockMessageRepository)
	w := newTestWorker(mockStream, mockRooms, mockMsgs)

	mockRooms.On("ListRoomIDs", mock.Anything).Return([]string{}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	go w.Run(ctx)

	time.Sleep(30 * time.Millisecond)
	cancel()

	select {
	case <-w.Done():
	case <-time.After(time.Second):
		t.Fatal("worker did not stop after context cancel")
	}
}
