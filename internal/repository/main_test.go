package repository

import (
	"context"
	"testing"

	"photofeed/internal/config"
	"photofeed/internal/database"
	"photofeed/internal/models"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// newTestDB returns a fresh in-memory SQLite database with the schema applied.
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := database.Connect(&config.Config{
		Env:        "test",
		DBDriver:   "sqlite",
		SQLitePath: ":memory:",
	})
	require.NoError(t, err)
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return db
}

func setupMockDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)

	gormDB, err := gorm.Open(postgres.New(postgres.Config{
		Conn: db,
	}), &gorm.Config{})
	require.NoError(t, err)

	return gormDB, mock
}

func seedProfile(t *testing.T, db *gorm.DB, username string) *models.Profile {
	t.Helper()
	p := &models.Profile{ID: uuid.NewString(), Username: username}
	require.NoError(t, NewProfileRepository(db).Create(context.Background(), p))
	return p
}

func seedPost(t *testing.T, db *gorm.DB, owner *models.Profile, caption string) *models.Post {
	t.Helper()
	p := &models.Post{UserID: owner.ID, ImageURL: "http://storage.test/" + caption + ".jpg", Caption: caption}
	require.NoError(t, NewPostRepository(db).Create(context.Background(), p))
	return p
}
