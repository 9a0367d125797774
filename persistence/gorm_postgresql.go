// persistence/gorm_postgresql.go
package persistence

import (
	"fmt"
	"log"
	"os"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/wfunc/cardbattle/models"
)

// GormPostgreSQL 使用GORM的PostgreSQL实现
type GormPostgreSQL struct {
	db *gorm.DB
}

// NewGormPostgreSQL 创建GORM PostgreSQL数据库连接
func NewGormPostgreSQL(host string, port int, user, password, dbname string) (*GormPostgreSQL, error) {
	dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
		host, port, user, password, dbname)

	// 配置GORM日志
	gormLogger := logger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags),
		logger.Config{
			SlowThreshold: time.Second,
			LogLevel:      logger.Silent,
			Colorful:      false,
		},
	)

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: gormLogger,
	})
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}

	// 设置连接池
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(100)
	sqlDB.SetConnMaxLifetime(time.Hour)

	// 自动迁移表结构
	if err := autoMigrate(db); err != nil {
		return nil, err
	}

	return &GormPostgreSQL{db: db}, nil
}

func autoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.GormRoom{},
		&models.GormMatch{},
		&models.GormLeaderboardEntry{},
	)
}

// SaveRoom 保存房间记录（UPSERT）
func (p *GormPostgreSQL) SaveRoom(record *models.RoomRecord) error {
	var row models.GormRoom
	result := p.db.Where("room_id = ?", record.RoomID).First(&row)

	if result.Error == gorm.ErrRecordNotFound {
		row = models.GormRoom{
			RoomID:   record.RoomID,
			Name:     record.Name,
			Status:   record.Status,
			Snapshot: record.Snapshot,
		}
		return p.db.Create(&row).Error
	} else if result.Error != nil {
		return result.Error
	}

	row.Name = record.Name
	row.Status = record.Status
	row.Snapshot = record.Snapshot
	return p.db.Save(&row).Error
}

// LoadRooms 加载全部房间记录
func (p *GormPostgreSQL) LoadRooms() ([]*models.RoomRecord, error) {
	var rows []models.GormRoom
	if err := p.db.Find(&rows).Error; err != nil {
		return nil, err
	}

	records := make([]*models.RoomRecord, 0, len(rows))
	for _, row := range rows {
		records = append(records, &models.RoomRecord{
			RoomID:    row.RoomID,
			Name:      row.Name,
			Status:    row.Status,
			Snapshot:  row.Snapshot,
			CreatedAt: row.CreatedAt,
			UpdatedAt: row.UpdatedAt,
		})
	}
	return records, nil
}

// DeleteRoom 删除房间记录
func (p *GormPostgreSQL) DeleteRoom(roomID string) error {
	return p.db.Where("room_id = ?", roomID).Delete(&models.GormRoom{}).Error
}

// SaveMatch 保存比赛记录（UPSERT）
func (p *GormPostgreSQL) SaveMatch(record *models.MatchRecord) error {
	var row models.GormMatch
	result := p.db.Where("match_id = ?", record.MatchID).First(&row)

	if result.Error == gorm.ErrRecordNotFound {
		row = models.GormMatch{
			MatchID:  record.MatchID,
			RoomID:   record.RoomID,
			Status:   record.Status,
			Snapshot: record.Snapshot,
		}
		return p.db.Create(&row).Error
	} else if result.Error != nil {
		return result.Error
	}

	row.Status = record.Status
	row.Snapshot = record.Snapshot
	return p.db.Save(&row).Error
}

// LoadMatches 加载全部比赛记录
func (p *GormPostgreSQL) LoadMatches() ([]*models.MatchRecord, error) {
	var rows []models.GormMatch
	if err := p.db.Find(&rows).Error; err != nil {
		return nil, err
	}

	records := make([]*models.MatchRecord, 0, len(rows))
	for _, row := range rows {
		records = append(records, &models.MatchRecord{
			MatchID:   row.MatchID,
			RoomID:    row.RoomID,
			Status:    row.Status,
			Snapshot:  row.Snapshot,
			CreatedAt: row.CreatedAt,
			UpdatedAt: row.UpdatedAt,
		})
	}
	return records, nil
}

// GetLeaderboardEntry 查询单个玩家的排行榜条目
func (p *GormPostgreSQL) GetLeaderboardEntry(playerName string) (*models.LeaderboardEntry, error) {
	var row models.GormLeaderboardEntry
	if err := p.db.Where("player_name = ?", playerName).First(&row).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, ErrRecordNotFound
		}
		return nil, err
	}
	return leaderboardEntryFromRow(&row), nil
}

// SaveLeaderboardEntry 保存排行榜条目（UPSERT）
func (p *GormPostgreSQL) SaveLeaderboardEntry(entry *models.LeaderboardEntry) error {
	var row models.GormLeaderboardEntry
	result := p.db.Where("player_name = ?", entry.PlayerName).First(&row)

	if result.Error == gorm.ErrRecordNotFound {
		row = models.GormLeaderboardEntry{PlayerName: entry.PlayerName}
		applyLeaderboardEntry(&row, entry)
		return p.db.Create(&row).Error
	} else if result.Error != nil {
		return result.Error
	}

	applyLeaderboardEntry(&row, entry)
	return p.db.Save(&row).Error
}

// LoadLeaderboard 加载全部排行榜条目
func (p *GormPostgreSQL) LoadLeaderboard() ([]*models.LeaderboardEntry, error) {
	var rows []models.GormLeaderboardEntry
	if err := p.db.Find(&rows).Error; err != nil {
		return nil, err
	}

	entries := make([]*models.LeaderboardEntry, 0, len(rows))
	for i := range rows {
		entries = append(entries, leaderboardEntryFromRow(&rows[i]))
	}
	return entries, nil
}

// ResetLeaderboard 清空排行榜（不可逆）
func (p *GormPostgreSQL) ResetLeaderboard() error {
	return p.db.Session(&gorm.Session{AllowGlobalUpdate: true}).
		Unscoped().Delete(&models.GormLeaderboardEntry{}).Error
}

func (p *GormPostgreSQL) Close() error {
	sqlDB, err := p.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func applyLeaderboardEntry(row *models.GormLeaderboardEntry, entry *models.LeaderboardEntry) {
	row.Wins = entry.Wins
	row.Score = entry.Score
	row.TimeFinished = entry.TimeFinished
	row.GamesPlayed = entry.GamesPlayed
	row.TotalDamageDealt = entry.TotalDamageDealt
}

func leaderboardEntryFromRow(row *models.GormLeaderboardEntry) *models.LeaderboardEntry {
	return &models.LeaderboardEntry{
		PlayerName:       row.PlayerName,
		Wins:             row.Wins,
		Score:            row.Score,
		TimeFinished:     row.TimeFinished,
		GamesPlayed:      row.GamesPlayed,
		TotalDamageDealt: row.TotalDamageDealt,
	}
}
