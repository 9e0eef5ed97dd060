package domain

import "time"

// stream entry field names, the only two fields this service reads or writes
const (
	// StreamFieldUser sender identifier field
	StreamFieldUser = "user"
	// StreamFieldMessage text payload field
	StreamFieldMessage = "message"
)

// Message durable projection of one stream entry, messages table in postgreSQL
type Message struct {
	ID     uint64 `gorm:"primaryKey;autoIncrement" json:"id"`
	RoomID string `gorm:"column:room_id;size:36;not null;index:idx_room_created" json:"room_id"`
	UserID string `gorm:"column:user_id;size:100;not null" json:"user_id"`
	Text   string `gorm:"column:message;type:text;not null" json:"message"`
	// StreamMsgID redis stream 的 entry id，重送判斷的唯一鍵
	StreamMsgID *string   `gorm:"column:stream_msg_id;size:50;uniqueIndex" json:"stream_msg_id,omitempty"`
	CreatedAt   time.Time `gorm:"column:created_at;autoCreateTime;index:idx_room_created" json:"created_at"`
}

// TableName 自定義表名
func (Message) TableName() string {
	return "messages"
}

// StreamMessage 表示 redis stream 中的一則訊息
type StreamMessage struct {
	ID   string `json:"id"`
	User string `json:"user"`
	Text string `json:"message"`
}

// Malformed stream entry missing user or message field
// 這類訊息直接 ack 丟棄，不寫入 DB
func (m StreamMessage) Malformed() bool {
	return m.User == "" || m.Text == ""
}

// ChatMessage 表示讀取路徑回傳的一則聊天訊息
type ChatMessage struct {
	ID        string `json:"id,omitempty"`
	User      string `json:"user"`
	Text      string `json:"message"`
	Timestamp string `json:"timestamp,omitempty"`
}
