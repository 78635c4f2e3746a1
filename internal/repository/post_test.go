package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"photofeed/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func requireCode(t *testing.T, err error, code string) {
	t.Helper()
	var appErr *models.AppError
	require.True(t, errors.As(err, &appErr), "expected AppError, got %v", err)
	assert.Equal(t, code, appErr.Code)
}

func TestPostRepository_CreateAndList(t *testing.T) {
	db := newTestDB(t)
	repo := NewPostRepository(db)
	ctx := context.Background()
	alice := seedProfile(t, db, "alice")

	first := seedPost(t, db, alice, "first")
	time.Sleep(5 * time.Millisecond)
	second := seedPost(t, db, alice, "second")

	assert.Equal(t, 0, first.LikeCount)
	require.NotNil(t, second.Author)
	assert.Equal(t, "alice", second.Author.Username)

	posts, err := repo.List(ctx)
	require.NoError(t, err)
	require.Len(t, posts, 2)
	assert.Equal(t, second.ID, posts[0].ID, "newest first")
	assert.Equal(t, first.ID, posts[1].ID)
	require.NotNil(t, posts[0].Author)
	assert.Equal(t, alice.ID, posts[0].Author.ID)
}

func TestPostRepository_ListEmpty(t *testing.T) {
	posts, err := NewPostRepository(newTestDB(t)).List(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, posts)
	assert.Empty(t, posts)
}

func TestPostRepository_ListByUser(t *testing.T) {
	db := newTestDB(t)
	alice := seedProfile(t, db, "alice")
	bob := seedProfile(t, db, "bob")
	seedPost(t, db, alice, "a1")
	seedPost(t, db, bob, "b1")
	seedPost(t, db, alice, "a2")

	posts, err := NewPostRepository(db).ListByUser(context.Background(), alice.ID)
	require.NoError(t, err)
	require.Len(t, posts, 2)
	for _, p := range posts {
		assert.Equal(t, alice.ID, p.UserID)
	}
}

func TestPostRepository_UpdateCaption(t *testing.T) {
	db := newTestDB(t)
	repo := NewPostRepository(db)
	ctx := context.Background()
	alice := seedProfile(t, db, "alice")
	bob := seedProfile(t, db, "bob")
	post := seedPost(t, db, alice, "original")

	t.Run("Owner", func(t *testing.T) {
		updated, err := repo.UpdateCaption(ctx, post.ID, alice.ID, "edited")
		require.NoError(t, err)
		assert.Equal(t, "edited", updated.Caption)
		require.NotNil(t, updated.Author)
	})

	t.Run("Not Owner", func(t *testing.T) {
		_, err := repo.UpdateCaption(ctx, post.ID, bob.ID, "hijack")
		requireCode(t, err, models.CodeForbidden)

		stored, err := repo.GetByID(ctx, post.ID)
		require.NoError(t, err)
		assert.Equal(t, "edited", stored.Caption)
	})

	t.Run("Missing", func(t *testing.T) {
		_, err := repo.UpdateCaption(ctx, "00000000-0000-4000-8000-000000000000", alice.ID, "x")
		requireCode(t, err, models.CodeNotFound)
	})
}

func TestPostRepository_Delete(t *testing.T) {
	db := newTestDB(t)
	repo := NewPostRepository(db)
	likes := NewLikeRepository(db)
	ctx := context.Background()
	alice := seedProfile(t, db, "alice")
	bob := seedProfile(t, db, "bob")
	post := seedPost(t, db, alice, "doomed")

	_, err := likes.Like(ctx, bob.ID, post.ID)
	require.NoError(t, err)

	requireCode(t, repo.Delete(ctx, post.ID, bob.ID), models.CodeForbidden)

	require.NoError(t, repo.Delete(ctx, post.ID, alice.ID))
	_, err = repo.GetByID(ctx, post.ID)
	requireCode(t, err, models.CodeNotFound)

	liked, err := likes.LikedPostIDs(ctx, bob.ID)
	require.NoError(t, err)
	assert.Empty(t, liked)

	requireCode(t, repo.Delete(ctx, post.ID, alice.ID), models.CodeNotFound)
}
