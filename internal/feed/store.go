// Package feed keeps the reverse-chronological post feed, annotated with the
// viewer's likes, in sync with the backend.
package feed

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"photofeed/internal/observability"
	"photofeed/internal/session"
	"photofeed/pkg/client"
)

// PostBucket holds post images at <user id>/<unix millis>.jpg.
const PostBucket = client.BucketPosts

var (
	// ErrNotAuthenticated is returned before any network call when nobody is signed in.
	ErrNotAuthenticated = session.ErrNotAuthenticated

	ErrForbidden    = errors.New("post belongs to another user")
	ErrPostNotFound = errors.New("post not found")
	// ErrNotFoundOrForbidden is returned when the backend refuses a post
	// mutation without saying whether the post is missing or someone else's.
	ErrNotFoundOrForbidden = errors.New("post not found or not owned by the current user")

	// ErrLikeInFlight rejects a like or unlike while another one for the same post is pending.
	ErrLikeInFlight = errors.New("a like change for this post is already in progress")
)

// Client is the part of the backend SDK the feed uses. *client.Client satisfies it.
type Client interface {
	ListPosts(ctx context.Context) ([]client.Post, error)
	ListPostsBy(ctx context.Context, userID string) ([]client.Post, error)
	LikedPostIDs(ctx context.Context) ([]string, error)
	InsertPost(ctx context.Context, imageURL, caption string) (*client.Post, error)
	UpdatePost(ctx context.Context, id, caption string) (*client.Post, error)
	DeletePost(ctx context.Context, id string) error
	LikePost(ctx context.Context, postID string) (*client.LikeResult, error)
	UnlikePost(ctx context.Context, postID string) (*client.LikeResult, error)
	Upload(ctx context.Context, bucket, key string, data []byte, contentType string, upsert bool) (string, error)
	PublicURL(bucket, key string) string
}

// IdentitySource reports who is signed in. *session.Store satisfies it.
type IdentitySource interface {
	Identity() *session.Identity
	OnIdentityChange(fn func(*session.Identity)) (unsubscribe func())
}

// Post is a feed entry as seen by the current viewer.
type Post struct {
	client.Post
	IsLikedByCurrentUser bool
}

// LikeState is the viewer's like status for one post.
type LikeState int

const (
	NotLiked LikeState = iota
	Liked
	Pending
)

func (s LikeState) String() string {
	switch s {
	case Liked:
		return "liked"
	case Pending:
		return "pending"
	default:
		return "not liked"
	}
}

// Option configures a Store.
type Option func(*Store)

// WithClock replaces time.Now when naming uploaded images.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// Store owns the in-memory feed. It is safe for concurrent use.
type Store struct {
	client   Client
	identity IdentitySource
	now      func() time.Time

	seq     atomic.Uint64
	mu      sync.RWMutex
	applied uint64
	posts   []Post
	loading bool
	pending map[string]bool

	ctx         context.Context
	unsubscribe func()
}

// NewStore builds a feed store reading identity from ids.
func NewStore(c Client, ids IdentitySource, opts ...Option) *Store {
	s := &Store{
		client:   c,
		identity: ids,
		now:      time.Now,
		posts:    []Post{},
		pending:  make(map[string]bool),
		ctx:      context.Background(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start follows identity changes: a new user refreshes the feed with ctx and
// sign-out clears it. The feed is loaded once before Start returns.
func (s *Store) Start(ctx context.Context) error {
	s.mu.Lock()
	s.ctx = ctx
	s.mu.Unlock()

	unsubscribe := s.identity.OnIdentityChange(s.identityChanged)
	s.mu.Lock()
	s.unsubscribe = unsubscribe
	s.mu.Unlock()

	return s.Refresh(ctx)
}

// Close stops following identity changes.
func (s *Store) Close() {
	s.mu.Lock()
	unsubscribe := s.unsubscribe
	s.unsubscribe = nil
	s.mu.Unlock()
	if unsubscribe != nil {
		unsubscribe()
	}
}

func (s *Store) identityChanged(id *session.Identity) {
	if id == nil {
		s.apply(s.seq.Add(1), []Post{})
		return
	}

	s.mu.RLock()
	ctx := s.ctx
	s.mu.RUnlock()
	if err := s.Refresh(ctx); err != nil {
		observability.Logger.WarnContext(ctx, "feed: refresh after sign-in failed", "user_id", id.UserID, "error", err)
	}
}

// Refresh reloads every post and the viewer's likes. When refreshes overlap
// only the most recently started one is applied.
func (s *Store) Refresh(ctx context.Context) error {
	n := s.seq.Add(1)
	s.mu.Lock()
	s.loading = true
	s.mu.Unlock()

	posts, err := s.load(ctx)
	if err != nil {
		s.finish(n)
		return err
	}
	s.apply(n, posts)
	return nil
}

func (s *Store) load(ctx context.Context) ([]Post, error) {
	rows, err := s.client.ListPosts(ctx)
	if err != nil {
		return nil, fmt.Errorf("list posts: %w", err)
	}
	return s.annotate(ctx, rows)
}

// annotate marks the posts the current user likes.
func (s *Store) annotate(ctx context.Context, rows []client.Post) ([]Post, error) {
	liked := map[string]bool{}
	if s.identity.Identity() != nil {
		ids, err := s.client.LikedPostIDs(ctx)
		if err != nil {
			return nil, fmt.Errorf("list liked posts: %w", err)
		}
		for _, id := range ids {
			liked[id] = true
		}
	}

	posts := make([]Post, 0, len(rows))
	for _, row := range rows {
		posts = append(posts, Post{Post: row, IsLikedByCurrentUser: liked[row.ID]})
	}
	return posts, nil
}

func (s *Store) apply(n uint64, posts []Post) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if n < s.applied {
		return false
	}
	s.applied = n
	s.posts = posts
	s.loading = n != s.seq.Load()
	return true
}

func (s *Store) finish(n uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if n == s.seq.Load() {
		s.loading = false
	}
}

// CreatePost publishes a post for the signed-in user and reloads the feed.
func (s *Store) CreatePost(ctx context.Context, imageURL, caption string) (*Post, error) {
	if s.identity.Identity() == nil {
		return nil, ErrNotAuthenticated
	}
	row, err := s.client.InsertPost(ctx, imageURL, caption)
	if err != nil {
		return nil, err
	}
	post := &Post{Post: *row}
	if err := s.Refresh(ctx); err != nil {
		return post, err
	}
	return post, nil
}

// UpdatePost changes the caption of one of the signed-in user's posts.
func (s *Store) UpdatePost(ctx context.Context, postID, caption string) (*Post, error) {
	if s.identity.Identity() == nil {
		return nil, ErrNotAuthenticated
	}
	row, err := s.client.UpdatePost(ctx, postID, caption)
	if err != nil {
		return nil, ownershipError(err)
	}
	post := &Post{Post: *row, IsLikedByCurrentUser: s.LikeState(postID) == Liked}
	if err := s.Refresh(ctx); err != nil {
		return post, err
	}
	return post, nil
}

// DeletePost removes one of the signed-in user's posts.
func (s *Store) DeletePost(ctx context.Context, postID string) error {
	if s.identity.Identity() == nil {
		return ErrNotAuthenticated
	}
	if err := s.client.DeletePost(ctx, postID); err != nil {
		return ownershipError(err)
	}
	return s.Refresh(ctx)
}

// ownershipError classifies a refused post mutation. The API error stays in the chain.
func ownershipError(err error) error {
	var apiErr *client.APIError
	if !errors.As(err, &apiErr) {
		return err
	}
	switch {
	case apiErr.Status == http.StatusForbidden:
		return fmt.Errorf("%w: %w", ErrForbidden, err)
	case apiErr.Status == http.StatusNotFound && apiErr.Code != "":
		return fmt.Errorf("%w: %w", ErrPostNotFound, err)
	case apiErr.Status == http.StatusNotFound:
		return fmt.Errorf("%w: %w", ErrNotFoundOrForbidden, err)
	}
	return err
}

// UploadImage stores a JPEG for a future post and returns its public URL.
// On failure the URL is empty.
func (s *Store) UploadImage(ctx context.Context, image []byte) (string, error) {
	identity := s.identity.Identity()
	if identity == nil {
		return "", ErrNotAuthenticated
	}
	key := identity.UserID + "/" + strconv.FormatInt(s.now().UnixMilli(), 10) + ".jpg"
	if _, err := s.client.Upload(ctx, PostBucket, key, image, "image/jpeg", false); err != nil {
		return "", fmt.Errorf("upload image: %w", err)
	}
	return s.client.PublicURL(PostBucket, key), nil
}

// LikePost likes a post. Liking a post that is already liked changes nothing.
func (s *Store) LikePost(ctx context.Context, postID string) (*client.LikeResult, error) {
	return s.toggle(ctx, postID, s.client.LikePost)
}

// UnlikePost removes the viewer's like. Unliking a post that is not liked changes nothing.
func (s *Store) UnlikePost(ctx context.Context, postID string) (*client.LikeResult, error) {
	return s.toggle(ctx, postID, s.client.UnlikePost)
}

func (s *Store) toggle(ctx context.Context, postID string, rpc func(context.Context, string) (*client.LikeResult, error)) (*client.LikeResult, error) {
	if s.identity.Identity() == nil {
		return nil, ErrNotAuthenticated
	}

	s.mu.Lock()
	if s.pending[postID] {
		s.mu.Unlock()
		return nil, ErrLikeInFlight
	}
	s.pending[postID] = true
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		delete(s.pending, postID)
		s.mu.Unlock()
	}()

	res, err := rpc(ctx, postID)
	if err != nil {
		return nil, err
	}
	s.setLike(res)
	if res.Changed {
		if err := s.Refresh(ctx); err != nil {
			return res, err
		}
	}
	return res, nil
}

// setLike writes a like result into the local copy of the post.
func (s *Store) setLike(res *client.LikeResult) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.posts {
		if s.posts[i].ID != res.PostID {
			continue
		}
		next := make([]Post, len(s.posts))
		copy(next, s.posts)
		next[i].IsLikedByCurrentUser = res.Liked
		next[i].LikeCount = res.LikeCount
		s.posts = next
		return
	}
}

// Posts returns a copy of the feed, newest first.
func (s *Store) Posts() []Post {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return clonePosts(s.posts, nil)
}

// PostsBy returns the feed entries written by userID.
func (s *Store) PostsBy(userID string) []Post {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return clonePosts(s.posts, func(p Post) bool { return p.UserID == userID })
}

// FetchPostsBy asks the backend for userID's posts without touching the feed.
func (s *Store) FetchPostsBy(ctx context.Context, userID string) ([]Post, error) {
	rows, err := s.client.ListPostsBy(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list posts by %s: %w", userID, err)
	}
	return s.annotate(ctx, rows)
}

// Loading reports whether a refresh is in flight.
func (s *Store) Loading() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loading
}

// LikeState reports the viewer's like status for postID as currently known.
func (s *Store) LikeState(postID string) LikeState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.pending[postID] {
		return Pending
	}
	for _, p := range s.posts {
		if p.ID == postID && p.IsLikedByCurrentUser {
			return Liked
		}
	}
	return NotLiked
}

func clonePosts(posts []Post, keep func(Post) bool) []Post {
	out := make([]Post, 0, len(posts))
	for _, p := range posts {
		if keep != nil && !keep(p) {
			continue
		}
		if p.Author != nil {
			author := *p.Author
			p.Author = &author
		}
		out = append(out, p)
	}
	return out
}
