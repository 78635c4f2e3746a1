// Package bootstrap opens the connections the API server runs on.
package bootstrap

import (
	"context"
	"fmt"
	"strings"

	"photofeed/internal/cache"
	"photofeed/internal/config"
	"photofeed/internal/database"
	"photofeed/internal/observability"
	"photofeed/internal/seed"
	"photofeed/internal/storage"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// Options control runtime initialization behavior.
type Options struct {
	// SeedDemo fills an empty development database with demo data.
	SeedDemo bool
}

// Runtime holds the shared connections.
type Runtime struct {
	DB      *gorm.DB
	Redis   *redis.Client
	Objects storage.Storage
}

// InitRuntime connects to the database, Redis and object storage, and
// optionally seeds demo data.
func InitRuntime(ctx context.Context, cfg *config.Config, opts Options) (*Runtime, error) {
	db, err := database.Connect(cfg)
	if err != nil {
		return nil, fmt.Errorf("database connection failed: %w", err)
	}

	rdb, err := cache.InitRedis(cfg.RedisURL)
	if err != nil {
		closeDB(db)
		return nil, fmt.Errorf("redis connection failed: %w", err)
	}

	objects, err := storage.New(ctx, cfg)
	if err != nil {
		closeDB(db)
		_ = rdb.Close()
		return nil, fmt.Errorf("object storage init failed: %w", err)
	}

	if opts.SeedDemo {
		if err := seedDemo(ctx, cfg, db); err != nil {
			closeDB(db)
			_ = rdb.Close()
			return nil, fmt.Errorf("failed to seed demo data: %w", err)
		}
	}

	return &Runtime{DB: db, Redis: rdb, Objects: objects}, nil
}

func seedDemo(ctx context.Context, cfg *config.Config, db *gorm.DB) error {
	if !strings.EqualFold(cfg.Env, "development") {
		return nil
	}
	s := seed.NewSeeder(db)
	empty, err := s.Empty(ctx)
	if err != nil || !empty {
		return err
	}
	_, err = s.Run(ctx, seed.Options{Users: 8, Posts: 30, MaxLikesPerPost: 5})
	if err == nil {
		observability.Logger.InfoContext(ctx, "demo data seeded", "password", seed.DefaultPassword)
	}
	return err
}

func closeDB(db *gorm.DB) {
	if sqlDB, err := db.DB(); err == nil {
		_ = sqlDB.Close()
	}
}
