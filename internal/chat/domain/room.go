package domain

import "time"

// Room definition chat room, rooms table in postgreSQL
// room_id 同時是 redis stream 的 key
type Room struct {
	RoomID    string    `gorm:"column:room_id;size:36;primaryKey" json:"room_id"`
	RoomName  string    `gorm:"column:room_name;size:255;not null" json:"room_name"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime" json:"created_at"`
}

// TableName 自定義表名
func (Room) TableName() string {
	return "rooms"
}

// RoomInfo definition room info for API response
type RoomInfo struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}
