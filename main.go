package main

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/wfunc/cardbattle/config"
	"github.com/wfunc/cardbattle/game"
	"github.com/wfunc/cardbattle/logger"
	"github.com/wfunc/cardbattle/persistence"
	"github.com/wfunc/cardbattle/server"
	"github.com/wfunc/cardbattle/services"
)

func main() {
	// Initialize logger
	logger.Init()

	// Load configuration
	cfg, err := config.LoadConfig(".")
	if err != nil {
		logger.Log.Fatalf("Failed to load configuration: %v", err)
	}

	// Initialize Database
	var db persistence.Database
	switch cfg.Database.Driver {
	case "sql":
		db, err = persistence.NewPostgreSQL(
			cfg.Database.Postgres.Host,
			cfg.Database.Postgres.Port,
			cfg.Database.Postgres.User,
			cfg.Database.Postgres.Password,
			cfg.Database.Postgres.DBName,
		)
	default:
		db, err = persistence.NewGormPostgreSQL(
			cfg.Database.Postgres.Host,
			cfg.Database.Postgres.Port,
			cfg.Database.Postgres.User,
			cfg.Database.Postgres.Password,
			cfg.Database.Postgres.DBName,
		)
	}
	if err != nil {
		logger.Log.Fatalf("Failed to connect to database: %v", err)
	}
	logger.Log.Info("Database connection successful.")

	// Load the question bank
	bank, err := game.LoadQuestionBank(cfg.Game.QuestionsPath)
	if err != nil {
		logger.Log.Warnf("Failed to load question bank from %s, using built-in fallback: %v", cfg.Game.QuestionsPath, err)
		bank = game.DefaultQuestionBank()
	}
	catalog := game.NewCatalog(bank, nil)

	// Leaderboard with optional redis rank cache
	leaderboard := services.NewLeaderboardService(db)
	if cfg.Redis.Addr != "" {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		err := client.Ping(ctx).Err()
		cancel()
		if err != nil {
			logger.Log.Warnf("Redis rank cache unavailable, continuing without it: %v", err)
		} else {
			leaderboard.AttachRankCache(client)
			logger.Log.Info("Redis rank cache attached.")
		}
	}

	// Initialize Game Server
	gameServer := server.NewGameServer(cfg, db, catalog, leaderboard)

	// Rehydrate persisted rooms so a restart picks up active matches
	if err := gameServer.Rehydrate(); err != nil {
		logger.Log.Warnf("Failed to rehydrate rooms: %v", err)
	}

	// Start Server
	logger.Log.Infof("Starting card battle server on %s", cfg.Server.HTTPAddress)
	if err := gameServer.Start(); err != nil {
		logger.Log.Fatalf("Failed to start server: %v", err)
	}
}
