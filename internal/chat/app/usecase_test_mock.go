package app

import (
	"context"

	"chat_relay_service/internal/chat/domain"

	"github.com/stretchr/testify/mock"
)

// MockStreamRepository Mock StreamRepository
type MockStreamRepository struct {
	mock.Mock
}

// Append moke append entry to stream
func (m *MockStreamRepository) Append(ctx context.Context, roomID, user, text string) (string, error) {
	args := m.Called(ctx, roomID, user, text)
	return args.String(0), args.Error(1)
}

// Len moke stream length
func (m *MockStreamRepository) Len(ctx context.Context, roomID string) (int64, error) {
	args := m.Called(ctx, roomID)
	return args.Get(0).(int64), args.Error(1)
}

// RevRange moke read newest first
func (m *MockStreamRepository) RevRange(ctx context.Context, roomID string, count int64) ([]domain.StreamMessage, error) {
	args := m.Called(ctx, roomID, count)
	if args.Get(0) != nil {
		return args.Get(0).([]domain.StreamMessage), args.Error(1)
	}
	return nil, args.Error(1)
}

// CreateGroup moke create consumer group
func (m *MockStreamRepository) CreateGroup(ctx context.Context, roomID, group, startID string) error {
	args := m.Called(ctx, roomID, group, startID)
	return args.Error(0)
}

// ReadGroup moke read by consumer group
func (m *MockStreamRepository) ReadGroup(ctx context.Context, group, consumer string, roomIDs []string, cursor string, count int64) (map[string][]domain.StreamMessage, error) {
	args := m.Called(ctx, group, consumer, roomIDs, cursor, count)
	if args.Get(0) != nil {
		return args.Get(0).(map[string][]domain.StreamMessage), args.Error(1)
	}
	return nil, args.Error(1)
}

// Ack moke ack entries
func (m *MockStreamRepository) Ack(ctx context.Context, roomID, group string, ids ...string) error {
	args := m.Called(ctx, roomID, group, ids)
	return args.Error(0)
}

// Trim moke trim stream
func (m *MockStreamRepository) Trim(ctx context.Context, roomID string, maxLen int64) error {
	args := m.Called(ctx, roomID, maxLen)
	return args.Error(0)
}

// MockRoomRepository Mock RoomRepository
type MockRoomRepository struct {
	mock.Mock
}

// CreateRoom moke create room
func (m *MockRoomRepository) CreateRoom(ctx context.Context, room *domain.Room) error {
	args := m.Called(ctx, room)
	return args.Error(0)
}

// EnsureRoom moke insert room if absent
func (m *MockRoomRepository) EnsureRoom(ctx context.Context, roomID, roomName string) error {
	args := m.Called(ctx, roomID, roomName)
	return args.Error(0)
}

// FindByID moke find room by room id
func (m *MockRoomRepository) FindByID(ctx context.Context, roomID string) (*domain.Room, error) {
	args := m.Called(ctx, roomID)
	if args.Get(0) != nil {
		return args.Get(0).(*domain.Room), args.Error(1)
	}
	return nil, args.Error(1)
}

// ListRooms moke list rooms
func (m *MockRoomRepository) ListRooms(ctx context.Context) ([]domain.Room, error) {
	args := m.Called(ctx)
	if args.Get(0) != nil {
		return args.Get(0).([]domain.Room), args.Error(1)
	}
	return nil, args.Error(1)
}

// ListRoomIDs moke list room ids
func (m *MockRoomRepository) ListRoomIDs(ctx context.Context) ([]string, error) {
	args := m.Called(ctx)
	if args.Get(0) != nil {
		return args.Get(0).([]string), args.Error(1)
	}
	return nil, args.Error(1)
}

// MockMessageRepository Mock MessageRepository
type MockMessageRepository struct {
	mock.Mock
}

// InsertMessageIfAbsent moke idempotent insert
func (m *MockMessageRepository) InsertMessageIfAbsent(ctx context.Context, roomID, userID, text, streamMsgID string) (bool, error) {
	args := m.Called(ctx, roomID, userID, text, streamMsgID)
	return args.Bool(0), args.Error(1)
}

// ListMessages moke list messages newest first
func (m *MockMessageRepository) ListMessages(ctx context.Context, roomID string, limit int) ([]domain.Message, error) {
	args := m.Called(ctx, roomID, limit)
	if args.Get(0) != nil {
		return args.Get(0).([]domain.Message), args.Error(1)
	}
	return nil, args.Error(1)
}

// CountByRoom moke count messages
func (m *MockMessageRepository) CountByRoom(ctx context.Context, roomID string) (int64, error) {
	args := m.Called(ctx, roomID)
	return args.Get(0).(int64), args.Error(1)
}
