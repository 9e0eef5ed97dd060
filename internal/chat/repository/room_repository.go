package repository

import (
	"context"
	"errors"
	"fmt"

	"chat_relay_service/internal/chat/domain"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ErrStoreUnavailable postgreSQL 操作失敗，訊息不 ack，下個週期重投
var ErrStoreUnavailable = errors.New("durable store unavailable")

// RoomRepository definition rooms table operations
type RoomRepository interface {
	CreateRoom(ctx context.Context, room *domain.Room) error
	// EnsureRoom 不存在才新增，已存在（含併發建立）視為成功
	EnsureRoom(ctx context.Context, roomID, roomName string) error
	FindByID(ctx context.Context, roomID string) (*domain.Room, error)
	ListRooms(ctx context.Context) ([]domain.Room, error)
	// ListRoomIDs worker 每個週期用來重算 active room set
	ListRoomIDs(ctx context.Context) ([]string, error)
}

type roomRepository struct {
	db *gorm.DB
}

// NewRoomRepository create a RoomRepository
func NewRoomRepository(db *gorm.DB) RoomRepository {
	return &roomRepository{db: db}
}

// CreateRoom create room
func (r *roomRepository) CreateRoom(ctx context.Context, room *domain.Room) error {
	if err := r.db.WithContext(ctx).Create(room).Error; err != nil {
		return fmt.Errorf("%w: create room %s: %v", ErrStoreUnavailable, room.RoomID, err)
	}
	return nil
}

// EnsureRoom insert room if absent
func (r *roomRepository) EnsureRoom(ctx context.Context, roomID, roomName string) error {
	if roomName == "" {
		roomName = "Room " + roomID
	}
	room := domain.Room{RoomID: roomID, RoomName: roomName}
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "room_id"}},
			DoNothing: true,
		}).
		Create(&room).Error
	if err != nil {
		return fmt.Errorf("%w: ensure room %s: %v", ErrStoreUnavailable, roomID, err)
	}
	return nil
}

// FindByID find room by id
func (r *roomRepository) FindByID(ctx context.Context, roomID string) (*domain.Room, error) {
	var room domain.Room
	err := r.db.WithContext(ctx).Where("room_id = ?", roomID).First(&room).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("%w: find room %s: %v", ErrStoreUnavailable, roomID, err)
	}
	return &room, nil
}

// ListRooms list all rooms
func (r *roomRepository) ListRooms(ctx context.Context) ([]domain.Room, error) {
	var rooms []domain.Room
	if err := r.db.WithContext(ctx).Order("created_at").Find(&rooms).Error; err != nil {
		return nil, fmt.Errorf("%w: list rooms: %v", ErrStoreUnavailable, err)
	}
	return rooms, nil
}

// ListRoomIDs list all room ids
func (r *roomRepository) ListRoomIDs(ctx context.Context) ([]string, error) {
	var ids []string
	if err := r.db.WithContext(ctx).Model(&domain.Room{}).Pluck("room_id", &ids).Error; err != nil {
		return nil, fmt.Errorf("%w: list room ids: %v", ErrStoreUnavailable, err)
	}
	return ids, nil
}
