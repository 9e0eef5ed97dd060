package app

import (
	"errors"
	"testing"

	"chat_relay_service/internal/chat/domain"

	"github.com/stretchr/testify/assert"
)

// fakeWSConn 假的 websocket 連線，紀錄送出的訊息
type fakeWSConn struct {
	sent []domain.WSResponse
	err  error
}

func (f *fakeWSConn) WriteJSON(v interface{}) error {
	if f.err != nil {
		return f.err
	}
	if resp, ok := v.(domain.WSResponse); ok {
		f.sent = append(f.sent, resp)
	}
	return nil
}

// 測試 EnsureRoom 重複呼叫回傳同一個房間
func TestRoomHub_EnsureRoomIdempotent(t *testing.T) {
	hub := NewRoomHub()

	r1 := hub.EnsureRoom("r1", "general")
	r2 := hub.EnsureRoom("r1", "general")

	assert.Same(t, r1, r2)
	assert.Len(t, hub.Rooms(), 1)
}

// 測試加入、離開與人數
func TestLiveRoom_AddRemoveClient(t *testing.T) {
	hub := NewRoomHub()
	room := hub.EnsureRoom("r1", "general")

	c1 := NewClient("u1", &fakeWSConn{})
	c2 := NewClient("u2", &fakeWSConn{})
	room.AddClient(c1)
	room.AddClient(c2)
	assert.Equal(t, 2, room.ClientCount())

	room.RemoveClient(c1)
	assert.Equal(t, 1, room.ClientCount())

	// 重複移除不影響
	room.RemoveClient(c1)
	assert.Equal(t, 1, room.ClientCount())
}

// 測試廣播可排除發送者
func TestLiveRoom_BroadcastExcludesSender(t *testing.T) {
	hub := NewRoomHub()
	room := hub.EnsureRoom("r1", "general")

	sender := &fakeWSConn{}
	other := &fakeWSConn{}
	room.AddClient(NewClient("u1", sender))
	room.AddClient(NewClient("u2", other))

	room.Broadcast(domain.WSResponse{Type: "message", User: "u1", Message: "hi"}, "u1")

	assert.Empty(t, sender.sent)
	assert.Len(t, other.sent, 1)
	assert.Equal(t, "hi", other.sent[0].Message)
}

// 測試單一連線寫入失敗不影響其他人
func TestLiveRoom_BroadcastSkipsBrokenConn(t *testing.T) {
	hub := NewRoomHub()
	room := hub.EnsureRoom("r1", "general")

	broken := &fakeWSConn{err: errors.New("write: broken pipe")}
	healthy := &fakeWSConn{}
	room.AddClient(NewClient("u1", broken))
	room.AddClient(NewClient("u2", healthy))

	room.Broadcast(domain.WSResponse{Type: "message", User: "sys", Message: "hi"}, "")

	assert.Len(t, healthy.sent, 1)
}
