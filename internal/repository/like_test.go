package repository

import (
	"context"
	"sync"
	"testing"

	"photofeed/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLikeRepository_LikeIsIdempotent(t *testing.T) {
	db := newTestDB(t)
	repo := NewLikeRepository(db)
	ctx := context.Background()
	alice := seedProfile(t, db, "alice")
	bob := seedProfile(t, db, "bob")
	post := seedPost(t, db, alice, "p")

	res, err := repo.Like(ctx, bob.ID, post.ID)
	require.NoError(t, err)
	assert.Equal(t, models.LikeResult{PostID: post.ID, Liked: true, LikeCount: 1, Changed: true}, *res)

	res, err = repo.Like(ctx, bob.ID, post.ID)
	require.NoError(t, err)
	assert.False(t, res.Changed)
	assert.Equal(t, 1, res.LikeCount)

	res, err = repo.Like(ctx, alice.ID, post.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, res.LikeCount)

	ids, err := repo.LikedPostIDs(ctx, bob.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{post.ID}, ids)
}

func TestLikeRepository_UnlikeIsIdempotent(t *testing.T) {
	db := newTestDB(t)
	repo := NewLikeRepository(db)
	ctx := context.Background()
	alice := seedProfile(t, db, "alice")
	post := seedPost(t, db, alice, "p")

	res, err := repo.Unlike(ctx, alice.ID, post.ID)
	require.NoError(t, err)
	assert.Equal(t, models.LikeResult{PostID: post.ID, Liked: false, LikeCount: 0, Changed: false}, *res)

	_, err = repo.Like(ctx, alice.ID, post.ID)
	require.NoError(t, err)

	res, err = repo.Unlike(ctx, alice.ID, post.ID)
	require.NoError(t, err)
	assert.True(t, res.Changed)
	assert.Equal(t, 0, res.LikeCount)

	res, err = repo.Unlike(ctx, alice.ID, post.ID)
	require.NoError(t, err)
	assert.False(t, res.Changed)
	assert.Equal(t, 0, res.LikeCount)
}

func TestLikeRepository_MissingPost(t *testing.T) {
	db := newTestDB(t)
	repo := NewLikeRepository(db)
	alice := seedProfile(t, db, "alice")

	_, err := repo.Like(context.Background(), alice.ID, "00000000-0000-4000-8000-000000000000")
	requireCode(t, err, models.CodeNotFound)

	_, err = repo.Unlike(context.Background(), alice.ID, "00000000-0000-4000-8000-000000000000")
	requireCode(t, err, models.CodeNotFound)
}

func TestLikeRepository_ConcurrentLikesCountOnce(t *testing.T) {
	db := newTestDB(t)
	repo := NewLikeRepository(db)
	ctx := context.Background()
	alice := seedProfile(t, db, "alice")
	post := seedPost(t, db, alice, "p")

	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := repo.Like(ctx, alice.ID, post.ID)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	stored, err := NewPostRepository(db).GetByID(ctx, post.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, stored.LikeCount)
}
