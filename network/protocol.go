package network

import "encoding/json"

// Client → Server
const (
	MsgRequestRooms     = "request-rooms"
	MsgRequestGameState = "request-game-state"
	MsgJoinRoom         = "join-room"
	MsgLeaveRoom        = "leave-room"
	MsgPlayerReady      = "player-ready"
	MsgPlayCard         = "play-card"
	MsgDrawCard         = "draw-card"
)

// Server → Client
const (
	MsgRoomsUpdate  = "rooms-update"
	MsgGameUpdate   = "game-update"
	MsgPlayerJoined = "player-joined"
	MsgPlayerLeft   = "player-left"
	MsgGameStarted  = "game-started"
	MsgCardPlayed   = "card-played"
	MsgTurnChanged  = "turn-changed"
	MsgGameEnded    = "game-ended"
	MsgError        = "error"
)

// Message is the wire envelope: {"type": "...", "payload": {...}}
type Message struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Encode wraps a payload into an envelope ready to write.
func Encode(msgType string, payload interface{}) ([]byte, error) {
	var raw json.RawMessage
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, err
		}
		raw = data
	}
	return json.Marshal(Message{Type: msgType, Payload: raw})
}
