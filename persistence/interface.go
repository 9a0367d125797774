// persistence/interface.go
package persistence

import (
	"fmt"

	"github.com/wfunc/cardbattle/models"
)

// Database 数据库接口
// Every committed room mutation writes exactly one room record and one match
// record; writes for different rooms never need cross-room coordination.
type Database interface {
	SaveRoom(record *models.RoomRecord) error
	LoadRooms() ([]*models.RoomRecord, error)
	DeleteRoom(roomID string) error

	SaveMatch(record *models.MatchRecord) error
	LoadMatches() ([]*models.MatchRecord, error)

	GetLeaderboardEntry(playerName string) (*models.LeaderboardEntry, error)
	SaveLeaderboardEntry(entry *models.LeaderboardEntry) error
	LoadLeaderboard() ([]*models.LeaderboardEntry, error)
	ResetLeaderboard() error

	Close() error
}

// 错误定义
var (
	ErrRecordNotFound = fmt.Errorf("record not found")
)
