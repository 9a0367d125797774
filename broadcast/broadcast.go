// broadcast/broadcast.go
package broadcast

import (
	"errors"

	"github.com/wfunc/cardbattle/room"
	"github.com/wfunc/cardbattle/session"
)

var (
	ErrRoomNotFound = errors.New("room not found")
)

// 广播接口
type Broadcaster interface {
	BroadcastToRoom(roomID string, msgType string, payload interface{}) error
	BroadcastToAll(msgType string, payload interface{}) error
}

// 基于房间的广播器
type RoomBroadcaster struct {
	roomManager    *room.Manager
	sessionManager *session.Manager
}

func NewRoomBroadcaster(roomManager *room.Manager, sessionManager *session.Manager) *RoomBroadcaster {
	return &RoomBroadcaster{
		roomManager:    roomManager,
		sessionManager: sessionManager,
	}
}

// BroadcastToRoom delivers one message to every session subscribed to the
// room. Callers invoke it under the room's mutation lock, so subscribers
// observe events in committed order.
func (b *RoomBroadcaster) BroadcastToRoom(roomID string, msgType string, payload interface{}) error {
	r, exists := b.roomManager.GetRoom(roomID)
	if !exists {
		return ErrRoomNotFound
	}

	for _, s := range r.GetSessions() {
		if err := s.Send(msgType, payload); err != nil {
			// 发送失败不影响其他订阅者
			continue
		}
	}
	return nil
}

// BroadcastToAll delivers one message to every connected session, used for
// lobby-wide rooms-update fanout.
func (b *RoomBroadcaster) BroadcastToAll(msgType string, payload interface{}) error {
	for _, s := range b.sessionManager.All() {
		if err := s.Send(msgType, payload); err != nil {
			continue
		}
	}
	return nil
}
