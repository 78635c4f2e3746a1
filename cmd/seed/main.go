// Command seed fills the API database with demo users, posts and likes.
package main

import (
	"context"
	"flag"
	"log"

	"photofeed/internal/config"
	"photofeed/internal/database"
	"photofeed/internal/seed"
)

func main() {
	numUsers := flag.Int("users", 20, "Number of users to create")
	numPosts := flag.Int("posts", 100, "Number of posts to create")
	maxLikes := flag.Int("likes", 10, "Maximum likes per post")
	days := flag.Int("days", 30, "Spread posts over this many days")
	shouldClean := flag.Bool("clean", false, "Delete all existing data first")
	flag.Parse()

	log.Printf("Target: %d users, %d posts, clean=%v", *numUsers, *numPosts, *shouldClean)

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if cfg.IsProduction() {
		log.Fatal("Refusing to seed a production database")
	}

	db, err := database.Connect(cfg)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	ctx := context.Background()
	s := seed.NewSeeder(db)
	if *shouldClean {
		if err := s.ClearAll(ctx); err != nil {
			log.Fatalf("Cleanup failed: %v", err)
		}
	}

	res, err := s.Run(ctx, seed.Options{
		Users:           *numUsers,
		Posts:           *numPosts,
		MaxLikesPerPost: *maxLikes,
		MaxDays:         *days,
	})
	if err != nil {
		log.Fatalf("Seeding failed: %v", err)
	}

	log.Printf("Created %d users, %d posts, %d likes", len(res.Accounts), len(res.Posts), res.Likes)
	log.Printf("All seeded users have the password: %s", seed.DefaultPassword)
}
