// services/leaderboard.go
package services

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/wfunc/cardbattle/logger"
	"github.com/wfunc/cardbattle/models"
	"github.com/wfunc/cardbattle/persistence"
)

// rankCacheKey is the sorted set mirroring cumulative scores.
const rankCacheKey = "cardbattle:leaderboard"

// RankEntry is one row of the realtime rank cache.
type RankEntry struct {
	Rank       int64  `json:"rank"`
	PlayerName string `json:"playerName"`
	Score      int64  `json:"score"`
}

// LeaderboardService aggregates per-player match outcomes.
//
// Entries are keyed by display name. Upserts are serialized by mu so
// concurrent writes to the same name never lose updates; the database is
// the source of truth and the redis sorted set is an optional rank mirror.
type LeaderboardService struct {
	db    persistence.Database
	cache *redis.Client
	mu    sync.Mutex
}

func NewLeaderboardService(db persistence.Database) *LeaderboardService {
	return &LeaderboardService{db: db}
}

// AttachRankCache wires the optional redis rank mirror.
func (s *LeaderboardService) AttachRankCache(client *redis.Client) {
	s.cache = client
}

// Record upserts one player's outcome: games played and damage always
// accumulate, wins/score/timeFinished only on a win.
func (s *LeaderboardService) Record(ctx context.Context, playerName string, won bool, score, damageDealt int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, err := s.db.GetLeaderboardEntry(playerName)
	if err != nil {
		if err != persistence.ErrRecordNotFound {
			return err
		}
		entry = &models.LeaderboardEntry{PlayerName: playerName}
	}

	entry.GamesPlayed++
	entry.TotalDamageDealt += damageDealt
	if won {
		entry.Wins++
		entry.Score += score
		entry.TimeFinished = time.Now().UnixMilli()
	}

	if err := s.db.SaveLeaderboardEntry(entry); err != nil {
		return err
	}

	if s.cache != nil && won {
		if err := s.cache.ZIncrBy(ctx, rankCacheKey, float64(score), playerName).Err(); err != nil {
			// 缓存失败不影响主存储
			logger.Log.Warnf("Leaderboard rank cache update failed for %s: %v", playerName, err)
		}
	}
	return nil
}

// Query returns entries ordered by score descending, ties broken by the
// most recent win timestamp descending. limit <= 0 returns everything.
func (s *LeaderboardService) Query(ctx context.Context, limit int) ([]*models.LeaderboardEntry, error) {
	entries, err := s.db.LoadLeaderboard()
	if err != nil {
		return nil, err
	}

	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Score != entries[j].Score {
			return entries[i].Score > entries[j].Score
		}
		return entries[i].TimeFinished > entries[j].TimeFinished
	})

	if limit > 0 && limit < len(entries) {
		entries = entries[:limit]
	}
	return entries, nil
}

// PlayerStats returns a single player's aggregated entry.
func (s *LeaderboardService) PlayerStats(ctx context.Context, playerName string) (*models.LeaderboardEntry, error) {
	return s.db.GetLeaderboardEntry(playerName)
}

// TopScores reads the top n rows from the redis rank mirror, falling back
// to the database when no cache is attached.
func (s *LeaderboardService) TopScores(ctx context.Context, n int) ([]RankEntry, error) {
	if s.cache == nil {
		entries, err := s.Query(ctx, n)
		if err != nil {
			return nil, err
		}
		ranks := make([]RankEntry, len(entries))
		for i, e := range entries {
			ranks[i] = RankEntry{Rank: int64(i + 1), PlayerName: e.PlayerName, Score: int64(e.Score)}
		}
		return ranks, nil
	}

	results, err := s.cache.ZRevRangeWithScores(ctx, rankCacheKey, 0, int64(n-1)).Result()
	if err != nil {
		return nil, err
	}
	ranks := make([]RankEntry, len(results))
	for i, result := range results {
		ranks[i] = RankEntry{
			Rank:       int64(i + 1),
			PlayerName: result.Member.(string),
			Score:      int64(result.Score),
		}
	}
	return ranks, nil
}

// Reset empties the ledger entirely. Irreversible; no partial-clear
// semantics.
func (s *LeaderboardService) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.db.ResetLeaderboard(); err != nil {
		return err
	}
	if s.cache != nil {
		if err := s.cache.Del(ctx, rankCacheKey).Err(); err != nil {
			logger.Log.Warnf("Leaderboard rank cache reset failed: %v", err)
		}
	}
	return nil
}
