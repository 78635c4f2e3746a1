package feed_test

import (
	"context"
	"strings"
	"testing"
	"time"

	"photofeed/internal/feed"
	"photofeed/internal/session"
	"photofeed/internal/testutil"
	"photofeed/internal/validation"
	"photofeed/pkg/client"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// viewer is one signed-in user with both stores wired the way cmd/feedctl wires them.
type viewer struct {
	client  *client.Client
	session *session.Store
	feed    *feed.Store
}

func newViewer(t *testing.T, b *testutil.Backend, email string) *viewer {
	t.Helper()
	ctx := context.Background()
	c, err := client.New(b.URL)
	require.NoError(t, err)

	sessions := session.NewStore(c)
	posts := feed.NewStore(c, sessions)
	require.NoError(t, sessions.Start(ctx))
	require.NoError(t, posts.Start(ctx))
	t.Cleanup(func() {
		posts.Close()
		sessions.Close()
		_ = c.Close()
	})

	_, err = sessions.SignUp(ctx, email, "secret1", strings.Split(email, "@")[0])
	require.NoError(t, err)
	_, err = sessions.SignIn(ctx, email, "secret1")
	require.NoError(t, err)
	require.NotNil(t, sessions.Profile())
	return &viewer{client: c, session: sessions, feed: posts}
}

func (v *viewer) publish(t *testing.T, caption string) *feed.Post {
	t.Helper()
	ctx := context.Background()
	url, err := v.feed.UploadImage(ctx, testutil.JPEG)
	require.NoError(t, err)
	p, err := v.feed.CreatePost(ctx, url, caption)
	require.NoError(t, err)
	time.Sleep(5 * time.Millisecond)
	return p
}

func find(posts []feed.Post, id string) *feed.Post {
	for i := range posts {
		if posts[i].ID == id {
			return &posts[i]
		}
	}
	return nil
}

func TestFeedAnnotation(t *testing.T) {
	b := testutil.NewBackend(t)
	ctx := context.Background()
	author := newViewer(t, b, "author@x.com")
	p1 := author.publish(t, "p1")
	p2 := author.publish(t, "p2")
	p3 := author.publish(t, "p3")

	reader := newViewer(t, b, "reader@x.com")
	_, err := reader.feed.LikePost(ctx, p2.ID)
	require.NoError(t, err)

	require.NoError(t, reader.feed.Refresh(ctx))
	posts := reader.feed.Posts()
	require.Len(t, posts, 3)
	assert.Equal(t, []string{p3.ID, p2.ID, p1.ID}, []string{posts[0].ID, posts[1].ID, posts[2].ID})
	assert.Equal(t, []bool{false, true, false},
		[]bool{posts[0].IsLikedByCurrentUser, posts[1].IsLikedByCurrentUser, posts[2].IsLikedByCurrentUser})
	require.NotNil(t, posts[0].Author)
	assert.Equal(t, session.DefaultUsername(author.session.Identity().UserID), posts[0].Author.Username)

	assert.Len(t, reader.feed.PostsBy(author.session.Identity().UserID), 3)
	assert.Empty(t, reader.feed.PostsBy(reader.session.Identity().UserID))
}

func TestLikeIsIdempotent(t *testing.T) {
	b := testutil.NewBackend(t)
	ctx := context.Background()
	v := newViewer(t, b, "liker@x.com")
	p := v.publish(t, "likeable")

	res, err := v.feed.LikePost(ctx, p.ID)
	require.NoError(t, err)
	assert.True(t, res.Changed)
	res, err = v.feed.LikePost(ctx, p.ID)
	require.NoError(t, err)
	assert.False(t, res.Changed)

	got := find(v.feed.Posts(), p.ID)
	require.NotNil(t, got)
	assert.Equal(t, 1, got.LikeCount)
	assert.True(t, got.IsLikedByCurrentUser)

	ids, err := v.client.LikedPostIDs(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{p.ID}, ids, "exactly one like row")
}

func TestLikeThenUnlikeRestoresCount(t *testing.T) {
	b := testutil.NewBackend(t)
	ctx := context.Background()
	author := newViewer(t, b, "owner@x.com")
	p := author.publish(t, "count me")
	_, err := author.feed.LikePost(ctx, p.ID)
	require.NoError(t, err)

	v := newViewer(t, b, "fan@x.com")
	before := find(v.feed.Posts(), p.ID)
	require.NotNil(t, before)
	assert.Equal(t, 1, before.LikeCount)

	_, err = v.feed.LikePost(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, find(v.feed.Posts(), p.ID).LikeCount)

	_, err = v.feed.UnlikePost(ctx, p.ID)
	require.NoError(t, err)
	after := find(v.feed.Posts(), p.ID)
	assert.Equal(t, before.LikeCount, after.LikeCount)
	assert.False(t, after.IsLikedByCurrentUser)
	assert.Equal(t, feed.NotLiked, v.feed.LikeState(p.ID))

	ids, err := v.client.LikedPostIDs(ctx)
	require.NoError(t, err)
	assert.Empty(t, ids)
}

func TestOwnershipEnforcement(t *testing.T) {
	b := testutil.NewBackend(t)
	ctx := context.Background()
	owner := newViewer(t, b, "owner@x.com")
	p := owner.publish(t, "original")
	intruder := newViewer(t, b, "intruder@x.com")

	_, err := intruder.feed.UpdatePost(ctx, p.ID, "defaced")
	assert.ErrorIs(t, err, feed.ErrForbidden)
	assert.ErrorIs(t, intruder.feed.DeletePost(ctx, p.ID), feed.ErrForbidden)

	require.NoError(t, owner.feed.Refresh(ctx))
	kept := find(owner.feed.Posts(), p.ID)
	require.NotNil(t, kept)
	assert.Equal(t, "original", kept.Caption)

	edited, err := owner.feed.UpdatePost(ctx, p.ID, "edited")
	require.NoError(t, err)
	assert.Equal(t, "edited", edited.Caption)
	assert.Equal(t, "edited", find(owner.feed.Posts(), p.ID).Caption)

	require.NoError(t, owner.feed.DeletePost(ctx, p.ID))
	assert.Nil(t, find(owner.feed.Posts(), p.ID))
	assert.ErrorIs(t, owner.feed.DeletePost(ctx, p.ID), feed.ErrPostNotFound)
}

func TestSignOutEmptiesFeed(t *testing.T) {
	b := testutil.NewBackend(t)
	ctx := context.Background()
	v := newViewer(t, b, "leaver@x.com")
	v.publish(t, "bye")
	require.NotEmpty(t, v.feed.Posts())

	require.NoError(t, v.session.SignOut(ctx))
	assert.Nil(t, v.session.Profile())
	assert.Empty(t, v.feed.Posts())

	_, err := v.feed.CreatePost(ctx, "http://img", "x")
	assert.ErrorIs(t, err, feed.ErrNotAuthenticated)
}

func TestSignOutEmptiesFeedWhenRemoteFails(t *testing.T) {
	b := testutil.NewBackend(t)
	ctx := context.Background()
	v := newViewer(t, b, "offline@x.com")
	v.publish(t, "still here")

	require.NoError(t, b.App.Shutdown())
	assert.Error(t, v.session.SignOut(ctx))
	assert.Nil(t, v.session.Profile())
	assert.Nil(t, v.session.Identity())
	assert.Empty(t, v.feed.Posts())
}

func TestCaptionBoundary(t *testing.T) {
	b := testutil.NewBackend(t)
	ctx := context.Background()
	v := newViewer(t, b, "writer@x.com")
	url, err := v.feed.UploadImage(ctx, testutil.JPEG)
	require.NoError(t, err)

	create := func(caption string) error {
		checked, err := validation.Caption(caption)
		if err != nil {
			return err
		}
		_, err = v.feed.CreatePost(ctx, url, checked)
		return err
	}

	assert.NoError(t, create(strings.Repeat("x", 500)))
	assert.ErrorIs(t, create(strings.Repeat("x", 501)), validation.ErrCaptionTooLong)
	assert.ErrorIs(t, create(""), validation.ErrCaptionRequired)
	assert.ErrorIs(t, create("   "), validation.ErrCaptionRequired)
	assert.Len(t, v.feed.Posts(), 1)

	// the server holds the same line for callers that skip validation
	_, err = v.feed.CreatePost(ctx, url, strings.Repeat("x", 501))
	assert.ErrorIs(t, err, client.ErrValidation)
}
