// models/gorm_models.go
package models

import (
	"gorm.io/gorm"
)

// GormRoom 房间模型
type GormRoom struct {
	gorm.Model
	RoomID   string                 `gorm:"uniqueIndex;not null"`
	Name     string                 `gorm:"not null"`
	Status   string                 `gorm:"not null"`
	Snapshot map[string]interface{} `gorm:"serializer:json;type:jsonb"`
}

// GormMatch 比赛模型
type GormMatch struct {
	gorm.Model
	MatchID  string                 `gorm:"uniqueIndex;not null"`
	RoomID   string                 `gorm:"index;not null"`
	Status   string                 `gorm:"not null"`
	Snapshot map[string]interface{} `gorm:"serializer:json;type:jsonb"`
}

// GormLeaderboardEntry 排行榜模型
type GormLeaderboardEntry struct {
	gorm.Model
	PlayerName       string `gorm:"uniqueIndex;not null"`
	Wins             int    `gorm:"default:0"`
	Score            int    `gorm:"default:0"`
	TimeFinished     int64  `gorm:"default:0"`
	GamesPlayed      int    `gorm:"default:0"`
	TotalDamageDealt int    `gorm:"default:0"`
}
