package repository

import (
	"context"
	"fmt"

	"photofeed/internal/cache"
	"photofeed/internal/models"
	"photofeed/internal/observability"

	"gorm.io/gorm"
	"gorm.io/plugin/dbresolver"
)

// PostRepository defines the interface for post data operations
type PostRepository interface {
	List(ctx context.Context) ([]models.Post, error)
	ListByUser(ctx context.Context, userID string) ([]models.Post, error)
	GetByID(ctx context.Context, id string) (*models.Post, error)
	Create(ctx context.Context, post *models.Post) error
	UpdateCaption(ctx context.Context, id, ownerID, caption string) (*models.Post, error)
	Delete(ctx context.Context, id, ownerID string) error
}

type postRepository struct {
	db  *gorm.DB
	log *observability.RepoLogger
}

// NewPostRepository creates a new post repository
func NewPostRepository(db *gorm.DB) PostRepository {
	return &postRepository{db: db, log: observability.NewRepoLogger("posts")}
}

func (r *postRepository) newestFirst(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx).
		Preload("Author").
		Order("created_at DESC").
		Order("id DESC")
}

// List returns every post newest first, with its author embedded.
func (r *postRepository) List(ctx context.Context) ([]models.Post, error) {
	defer observability.TrackQuery("list", "posts")()

	var posts []models.Post
	err := cache.Aside(ctx, cache.PostsListKey, &posts, cache.PostsListTTL, func() error {
		return r.newestFirst(ctx).Find(&posts).Error
	})
	if err != nil {
		return nil, fmt.Errorf("list posts: %w", err)
	}
	if posts == nil {
		posts = []models.Post{}
	}
	return posts, nil
}

func (r *postRepository) ListByUser(ctx context.Context, userID string) ([]models.Post, error) {
	defer observability.TrackQuery("list_by_user", "posts")()

	posts := []models.Post{}
	if err := r.newestFirst(ctx).Where("user_id = ?", userID).Find(&posts).Error; err != nil {
		return nil, fmt.Errorf("list posts for %s: %w", userID, err)
	}
	return posts, nil
}

func (r *postRepository) GetByID(ctx context.Context, id string) (*models.Post, error) {
	defer observability.TrackQuery("get", "posts")()

	var post models.Post
	err := r.db.WithContext(ctx).Clauses(dbresolver.Write).Preload("Author").First(&post, "id = ?", id).Error
	if isNotFound(err) {
		return nil, models.NewNotFoundError("Post", id)
	}
	if err != nil {
		return nil, fmt.Errorf("get post %s: %w", id, err)
	}
	return &post, nil
}

func (r *postRepository) Create(ctx context.Context, post *models.Post) error {
	defer observability.TrackQuery("create", "posts")()

	post.LikeCount = 0
	if err := r.db.WithContext(ctx).Omit("Author").Create(post).Error; err != nil {
		r.log.LogError(ctx, err, "create")
		return fmt.Errorf("create post: %w", err)
	}
	if err := r.db.WithContext(ctx).Clauses(dbresolver.Write).Preload("Author").First(post, "id = ?", post.ID).Error; err != nil {
		return fmt.Errorf("reload post %s: %w", post.ID, err)
	}

	r.log.LogCreate(ctx, map[string]any{"id": post.ID, "user_id": post.UserID})
	cache.InvalidatePostsList(ctx)
	return nil
}

// ownedPost loads a post for mutation and tells a missing row apart from someone else's row.
func ownedPost(tx *gorm.DB, id, ownerID string) (*models.Post, error) {
	var post models.Post
	err := tx.Clauses(dbresolver.Write).First(&post, "id = ?", id).Error
	if isNotFound(err) {
		return nil, models.NewNotFoundError("Post", id)
	}
	if err != nil {
		return nil, err
	}
	if post.UserID != ownerID {
		return nil, models.NewForbiddenError("you can only modify your own posts")
	}
	return &post, nil
}

// UpdateCaption changes the caption of a post owned by ownerID.
func (r *postRepository) UpdateCaption(ctx context.Context, id, ownerID, caption string) (*models.Post, error) {
	defer observability.TrackQuery("update", "posts")()

	var updated models.Post
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := ownedPost(tx, id, ownerID); err != nil {
			return err
		}
		if err := tx.Model(&models.Post{}).
			Where("id = ? AND user_id = ?", id, ownerID).
			Update("caption", caption).Error; err != nil {
			return err
		}
		return tx.Preload("Author").First(&updated, "id = ?", id).Error
	})
	if err != nil {
		r.log.LogError(ctx, err, "update")
		return nil, err
	}

	r.log.LogUpdate(ctx, map[string]any{"id": id})
	cache.InvalidatePostsList(ctx)
	return &updated, nil
}

// Delete removes a post owned by ownerID along with its likes.
func (r *postRepository) Delete(ctx context.Context, id, ownerID string) error {
	defer observability.TrackQuery("delete", "posts")()

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := ownedPost(tx, id, ownerID); err != nil {
			return err
		}
		if err := tx.Where("post_id = ?", id).Delete(&models.Like{}).Error; err != nil {
			return err
		}
		return tx.Where("id = ? AND user_id = ?", id, ownerID).Delete(&models.Post{}).Error
	})
	if err != nil {
		r.log.LogError(ctx, err, "delete")
		return err
	}

	r.log.LogDelete(ctx, map[string]any{"id": id})
	cache.InvalidatePostsList(ctx)
	return nil
}
