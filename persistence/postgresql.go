// persistence/postgresql.go
package persistence

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	// PostgreSQL 驱动
	_ "github.com/lib/pq"

	"github.com/wfunc/cardbattle/models"
)

// PostgreSQL 数据库实现（database/sql + lib/pq）
type PostgreSQL struct {
	db *sql.DB
}

// NewPostgreSQL 创建 PostgreSQL 数据库连接
func NewPostgreSQL(host string, port int, user, password, dbname string) (*PostgreSQL, error) {
	connStr := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
		host, port, user, password, dbname)

	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, err
	}

	// 测试连接
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		return nil, err
	}

	// 设置连接池参数
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(5 * time.Minute)

	// 初始化表结构
	if err := initTables(db); err != nil {
		return nil, err
	}

	return &PostgreSQL{db: db}, nil
}

// initTables 初始化数据库表结构
func initTables(db *sql.DB) error {
	_, err := db.Exec(`
        CREATE TABLE IF NOT EXISTS rooms (
            id SERIAL PRIMARY KEY,
            room_id VARCHAR(255) UNIQUE NOT NULL,
            name VARCHAR(255) NOT NULL,
            status VARCHAR(50) NOT NULL,
            snapshot JSONB NOT NULL,
            created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
            updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
        )
    `)
	if err != nil {
		return err
	}

	_, err = db.Exec(`
        CREATE TABLE IF NOT EXISTS matches (
            id SERIAL PRIMARY KEY,
            match_id VARCHAR(255) UNIQUE NOT NULL,
            room_id VARCHAR(255) NOT NULL,
            status VARCHAR(50) NOT NULL,
            snapshot JSONB NOT NULL,
            created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
            updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
        )
    `)
	if err != nil {
		return err
	}

	_, err = db.Exec(`
        CREATE TABLE IF NOT EXISTS leaderboard (
            id SERIAL PRIMARY KEY,
            player_name VARCHAR(255) UNIQUE NOT NULL,
            wins INT NOT NULL DEFAULT 0,
            score INT NOT NULL DEFAULT 0,
            time_finished BIGINT NOT NULL DEFAULT 0,
            games_played INT NOT NULL DEFAULT 0,
            total_damage_dealt INT NOT NULL DEFAULT 0,
            created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
            updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
        )
    `)
	if err != nil {
		return err
	}

	// 创建索引以提高查询性能
	_, err = db.Exec(`
        CREATE INDEX IF NOT EXISTS idx_rooms_room_id ON rooms(room_id);
        CREATE INDEX IF NOT EXISTS idx_matches_room_id ON matches(room_id);
        CREATE INDEX IF NOT EXISTS idx_leaderboard_score ON leaderboard(score DESC, time_finished DESC);
    `)

	return err
}

// SaveRoom 保存房间记录
func (p *PostgreSQL) SaveRoom(record *models.RoomRecord) error {
	snapshot, err := json.Marshal(record.Snapshot)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	// 使用 UPSERT 操作 (PostgreSQL 9.5+)
	query := `
        INSERT INTO rooms (room_id, name, status, snapshot)
        VALUES ($1, $2, $3, $4::jsonb)
        ON CONFLICT (room_id)
        DO UPDATE SET name = $2, status = $3, snapshot = $4::jsonb, updated_at = CURRENT_TIMESTAMP
    `

	_, err = p.db.ExecContext(ctx, query, record.RoomID, record.Name, record.Status, string(snapshot))
	return err
}

// LoadRooms 加载全部房间记录
func (p *PostgreSQL) LoadRooms() ([]*models.RoomRecord, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	rows, err := p.db.QueryContext(ctx,
		`SELECT room_id, name, status, snapshot, created_at, updated_at FROM rooms`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []*models.RoomRecord
	for rows.Next() {
		record := &models.RoomRecord{}
		var snapshot []byte
		if err := rows.Scan(&record.RoomID, &record.Name, &record.Status, &snapshot,
			&record.CreatedAt, &record.UpdatedAt); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(snapshot, &record.Snapshot); err != nil {
			return nil, err
		}
		records = append(records, record)
	}
	return records, rows.Err()
}

// DeleteRoom 删除房间记录
func (p *PostgreSQL) DeleteRoom(roomID string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, err := p.db.ExecContext(ctx, `DELETE FROM rooms WHERE room_id = $1`, roomID)
	return err
}

// SaveMatch 保存比赛记录
func (p *PostgreSQL) SaveMatch(record *models.MatchRecord) error {
	snapshot, err := json.Marshal(record.Snapshot)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	query := `
        INSERT INTO matches (match_id, room_id, status, snapshot)
        VALUES ($1, $2, $3, $4::jsonb)
        ON CONFLICT (match_id)
        DO UPDATE SET status = $3, snapshot = $4::jsonb, updated_at = CURRENT_TIMESTAMP
    `

	_, err = p.db.ExecContext(ctx, query, record.MatchID, record.RoomID, record.Status, string(snapshot))
	return err
}

// LoadMatches 加载全部比赛记录
func (p *PostgreSQL) LoadMatches() ([]*models.MatchRecord, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	rows, err := p.db.QueryContext(ctx,
		`SELECT match_id, room_id, status, snapshot, created_at, updated_at FROM matches`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []*models.MatchRecord
	for rows.Next() {
		record := &models.MatchRecord{}
		var snapshot []byte
		if err := rows.Scan(&record.MatchID, &record.RoomID, &record.Status, &snapshot,
			&record.CreatedAt, &record.UpdatedAt); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(snapshot, &record.Snapshot); err != nil {
			return nil, err
		}
		records = append(records, record)
	}
	return records, rows.Err()
}

// GetLeaderboardEntry 查询单个玩家的排行榜条目
func (p *PostgreSQL) GetLeaderboardEntry(playerName string) (*models.LeaderboardEntry, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	entry := &models.LeaderboardEntry{}
	err := p.db.QueryRowContext(ctx, `
        SELECT player_name, wins, score, time_finished, games_played, total_damage_dealt
        FROM leaderboard WHERE player_name = $1`, playerName).
		Scan(&entry.PlayerName, &entry.Wins, &entry.Score, &entry.TimeFinished,
			&entry.GamesPlayed, &entry.TotalDamageDealt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrRecordNotFound
		}
		return nil, err
	}
	return entry, nil
}

// SaveLeaderboardEntry 保存排行榜条目
func (p *PostgreSQL) SaveLeaderboardEntry(entry *models.LeaderboardEntry) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	query := `
        INSERT INTO leaderboard (player_name, wins, score, time_finished, games_played, total_damage_dealt)
        VALUES ($1, $2, $3, $4, $5, $6)
        ON CONFLICT (player_name)
        DO UPDATE SET wins = $2, score = $3, time_finished = $4, games_played = $5,
            total_damage_dealt = $6, updated_at = CURRENT_TIMESTAMP
    `

	_, err := p.db.ExecContext(ctx, query, entry.PlayerName, entry.Wins, entry.Score,
		entry.TimeFinished, entry.GamesPlayed, entry.TotalDamageDealt)
	return err
}

// LoadLeaderboard 加载全部排行榜条目
func (p *PostgreSQL) LoadLeaderboard() ([]*models.LeaderboardEntry, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	rows, err := p.db.QueryContext(ctx, `
        SELECT player_name, wins, score, time_finished, games_played, total_damage_dealt
        FROM leaderboard`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []*models.LeaderboardEntry
	for rows.Next() {
		entry := &models.LeaderboardEntry{}
		if err := rows.Scan(&entry.PlayerName, &entry.Wins, &entry.Score, &entry.TimeFinished,
			&entry.GamesPlayed, &entry.TotalDamageDealt); err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

// ResetLeaderboard 清空排行榜（不可逆）
func (p *PostgreSQL) ResetLeaderboard() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, err := p.db.ExecContext(ctx, `DELETE FROM leaderboard`)
	return err
}

// Close 关闭数据库连接
func (p *PostgreSQL) Close() error {
	return p.db.Close()
}
