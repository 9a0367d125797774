package services

import (
	"context"
	"testing"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/wfunc/cardbattle/logger"
	"github.com/wfunc/cardbattle/models"
	"github.com/wfunc/cardbattle/persistence"
)

func init() {
	logger.InitNop()
}

// MockDatabase is an in-memory persistence.Database covering the
// leaderboard operations; the room/match operations are unused here.
type MockDatabase struct {
	leaderboard map[string]*models.LeaderboardEntry
}

func NewMockDatabase() *MockDatabase {
	return &MockDatabase{leaderboard: make(map[string]*models.LeaderboardEntry)}
}

func (m *MockDatabase) SaveRoom(record *models.RoomRecord) error    { return nil }
func (m *MockDatabase) LoadRooms() ([]*models.RoomRecord, error)    { return nil, nil }
func (m *MockDatabase) DeleteRoom(roomID string) error              { return nil }
func (m *MockDatabase) SaveMatch(record *models.MatchRecord) error  { return nil }
func (m *MockDatabase) LoadMatches() ([]*models.MatchRecord, error) { return nil, nil }

func (m *MockDatabase) GetLeaderboardEntry(playerName string) (*models.LeaderboardEntry, error) {
	entry, ok := m.leaderboard[playerName]
	if !ok {
		return nil, persistence.ErrRecordNotFound
	}
	return entry, nil
}

func (m *MockDatabase) SaveLeaderboardEntry(entry *models.LeaderboardEntry) error {
	m.leaderboard[entry.PlayerName] = entry
	return nil
}

func (m *MockDatabase) LoadLeaderboard() ([]*models.LeaderboardEntry, error) {
	entries := make([]*models.LeaderboardEntry, 0, len(m.leaderboard))
	for _, e := range m.leaderboard {
		entries = append(entries, e)
	}
	return entries, nil
}

func (m *MockDatabase) ResetLeaderboard() error {
	m.leaderboard = make(map[string]*models.LeaderboardEntry)
	return nil
}

func (m *MockDatabase) Close() error { return nil }

func TestLeaderboard_RecordWinAndLoss(t *testing.T) {
	ctx := context.Background()
	db := NewMockDatabase()
	service := NewLeaderboardService(db)

	if err := service.Record(ctx, "Alice", true, 295, 20); err != nil {
		t.Fatalf("Record failed: %v", err)
	}
	if err := service.Record(ctx, "Alice", false, 0, 35); err != nil {
		t.Fatalf("Record failed: %v", err)
	}

	entry, err := service.PlayerStats(ctx, "Alice")
	if err != nil {
		t.Fatalf("PlayerStats failed: %v", err)
	}
	if entry.GamesPlayed != 2 {
		t.Errorf("Expected 2 games played, got %d", entry.GamesPlayed)
	}
	if entry.Wins != 1 {
		t.Errorf("Expected 1 win, got %d", entry.Wins)
	}
	if entry.Score != 295 {
		t.Errorf("Losses must not add score, got %d", entry.Score)
	}
	if entry.TotalDamageDealt != 55 {
		t.Errorf("Damage accumulates on losses too, got %d", entry.TotalDamageDealt)
	}
	if entry.TimeFinished == 0 {
		t.Error("A win should stamp TimeFinished")
	}
}

func TestLeaderboard_QueryOrdering(t *testing.T) {
	ctx := context.Background()
	db := NewMockDatabase()
	service := NewLeaderboardService(db)

	db.SaveLeaderboardEntry(&models.LeaderboardEntry{PlayerName: "Low", Score: 100, TimeFinished: 10})
	db.SaveLeaderboardEntry(&models.LeaderboardEntry{PlayerName: "TiedOld", Score: 200, TimeFinished: 5})
	db.SaveLeaderboardEntry(&models.LeaderboardEntry{PlayerName: "TiedNew", Score: 200, TimeFinished: 50})

	entries, err := service.Query(ctx, 0)
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}
	if len(entries) != 3 {
		t.Fatalf("Expected 3 entries, got %d", len(entries))
	}

	// Highest score first; tied scores break by the most recent win.
	want := []string{"TiedNew", "TiedOld", "Low"}
	for i, name := range want {
		if entries[i].PlayerName != name {
			t.Errorf("Position %d: expected %s, got %s", i, name, entries[i].PlayerName)
		}
	}

	limited, err := service.Query(ctx, 2)
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}
	if len(limited) != 2 {
		t.Errorf("Expected limit to cap results at 2, got %d", len(limited))
	}
}

func TestLeaderboard_TopScoresWithRankCache(t *testing.T) {
	ctx := context.Background()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	db := NewMockDatabase()
	service := NewLeaderboardService(db)
	service.AttachRankCache(redis.NewClient(&redis.Options{Addr: mr.Addr()}))

	service.Record(ctx, "Alice", true, 300, 40)
	service.Record(ctx, "Bob", true, 150, 25)
	service.Record(ctx, "Alice", true, 100, 20)

	ranks, err := service.TopScores(ctx, 10)
	if err != nil {
		t.Fatalf("TopScores failed: %v", err)
	}
	if len(ranks) != 2 {
		t.Fatalf("Expected 2 ranked players, got %d", len(ranks))
	}
	if ranks[0].PlayerName != "Alice" || ranks[0].Score != 400 {
		t.Errorf("Expected Alice at rank 1 with 400, got %s/%d", ranks[0].PlayerName, ranks[0].Score)
	}
	if ranks[1].PlayerName != "Bob" || ranks[1].Rank != 2 {
		t.Errorf("Expected Bob at rank 2, got %s/%d", ranks[1].PlayerName, ranks[1].Rank)
	}
}

func TestLeaderboard_TopScoresWithoutCacheFallsBack(t *testing.T) {
	ctx := context.Background()
	db := NewMockDatabase()
	service := NewLeaderboardService(db)

	service.Record(ctx, "Alice", true, 300, 40)
	service.Record(ctx, "Bob", true, 150, 25)

	ranks, err := service.TopScores(ctx, 10)
	if err != nil {
		t.Fatalf("TopScores failed: %v", err)
	}
	if len(ranks) != 2 || ranks[0].PlayerName != "Alice" {
		t.Errorf("Expected database fallback ordering, got %v", ranks)
	}
}

func TestLeaderboard_Reset(t *testing.T) {
	ctx := context.Background()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	db := NewMockDatabase()
	service := NewLeaderboardService(db)
	service.AttachRankCache(redis.NewClient(&redis.Options{Addr: mr.Addr()}))

	service.Record(ctx, "Alice", true, 300, 40)

	if err := service.Reset(ctx); err != nil {
		t.Fatalf("Reset failed: %v", err)
	}

	entries, err := service.Query(ctx, 0)
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("Expected empty leaderboard after reset, got %d entries", len(entries))
	}
	if mr.Exists(rankCacheKey) {
		t.Error("Reset should clear the rank cache key")
	}
}
