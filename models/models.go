// models/models.go
package models

import (
	"encoding/json"
	"time"
)

// RoomInfo 房间信息（用于大厅列表）
type RoomInfo struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	PlayerCount int       `json:"playerCount"`
	MaxPlayers  int       `json:"maxPlayers"`
	Status      string    `json:"status"`
	CreatedAt   time.Time `json:"createdAt"`
}

// RoomRecord 房间持久化记录
type RoomRecord struct {
	RoomID    string                 `json:"room_id"`
	Name      string                 `json:"name"`
	Status    string                 `json:"status"`
	Snapshot  map[string]interface{} `json:"snapshot"`
	CreatedAt time.Time              `json:"created_at"`
	UpdatedAt time.Time              `json:"updated_at"`
}

// MatchRecord 比赛持久化记录
type MatchRecord struct {
	MatchID   string                 `json:"match_id"`
	RoomID    string                 `json:"room_id"`
	Status    string                 `json:"status"`
	Snapshot  map[string]interface{} `json:"snapshot"`
	CreatedAt time.Time              `json:"created_at"`
	UpdatedAt time.Time              `json:"updated_at"`
}

// LeaderboardEntry 排行榜条目，按玩家显示名聚合
type LeaderboardEntry struct {
	PlayerName       string `json:"playerName"`
	Wins             int    `json:"wins"`
	Score            int    `json:"score"`
	TimeFinished     int64  `json:"timeFinished"` // unix milliseconds of last win
	GamesPlayed      int    `json:"gamesPlayed"`
	TotalDamageDealt int    `json:"totalDamageDealt"`
}

// SnapshotOf converts any JSON-serializable value into the generic map form
// stored in the jsonb snapshot columns.
func SnapshotOf(v interface{}) (map[string]interface{}, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var snapshot map[string]interface{}
	if err := json.Unmarshal(data, &snapshot); err != nil {
		return nil, err
	}
	return snapshot, nil
}

// FromSnapshot decodes a stored snapshot back into a typed value.
func FromSnapshot(snapshot map[string]interface{}, v interface{}) error {
	data, err := json.Marshal(snapshot)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, v)
}
