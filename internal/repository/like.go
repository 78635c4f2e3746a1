package repository

import (
	"context"
	"fmt"

	"photofeed/internal/cache"
	"photofeed/internal/models"
	"photofeed/internal/observability"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/plugin/dbresolver"
)

// LikeRepository records likes and keeps posts.like_count in step with the likes table.
type LikeRepository interface {
	LikedPostIDs(ctx context.Context, userID string) ([]string, error)
	Like(ctx context.Context, userID, postID string) (*models.LikeResult, error)
	Unlike(ctx context.Context, userID, postID string) (*models.LikeResult, error)
}

type likeRepository struct {
	db  *gorm.DB
	log *observability.RepoLogger
}

// NewLikeRepository creates a new like repository
func NewLikeRepository(db *gorm.DB) LikeRepository {
	return &likeRepository{db: db, log: observability.NewRepoLogger("likes")}
}

func (r *likeRepository) LikedPostIDs(ctx context.Context, userID string) ([]string, error) {
	defer observability.TrackQuery("list", "likes")()

	ids := []string{}
	err := r.db.WithContext(ctx).
		Model(&models.Like{}).
		Where("user_id = ?", userID).
		Pluck("post_id", &ids).Error
	if err != nil {
		return nil, fmt.Errorf("liked posts for %s: %w", userID, err)
	}
	return ids, nil
}

func likeCount(tx *gorm.DB, postID string) (int, error) {
	var post models.Post
	err := tx.Clauses(dbresolver.Write).Select("id", "like_count").First(&post, "id = ?", postID).Error
	if isNotFound(err) {
		return 0, models.NewNotFoundError("Post", postID)
	}
	return post.LikeCount, err
}

// Like inserts the (post, user) row and bumps the counter in one transaction.
// Liking an already-liked post changes nothing.
func (r *likeRepository) Like(ctx context.Context, userID, postID string) (*models.LikeResult, error) {
	defer observability.TrackQuery("like", "likes")()

	result := &models.LikeResult{PostID: postID, Liked: true}
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := likeCount(tx, postID); err != nil {
			return err
		}

		res := tx.Clauses(clause.OnConflict{DoNothing: true}).
			Create(&models.Like{PostID: postID, UserID: userID})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected > 0 {
			if err := tx.Model(&models.Post{}).
				Where("id = ?", postID).
				UpdateColumn("like_count", gorm.Expr("like_count + 1")).Error; err != nil {
				return err
			}
			result.Changed = true
		}

		count, err := likeCount(tx, postID)
		result.LikeCount = count
		return err
	})
	if err != nil {
		r.log.LogError(ctx, err, "like")
		return nil, err
	}

	observability.RecordLikeMutation("like", result.Changed)
	if result.Changed {
		cache.InvalidatePostsList(ctx)
	}
	return result, nil
}

// Unlike removes the (post, user) row and decrements the counter, never below zero.
func (r *likeRepository) Unlike(ctx context.Context, userID, postID string) (*models.LikeResult, error) {
	defer observability.TrackQuery("unlike", "likes")()

	result := &models.LikeResult{PostID: postID, Liked: false}
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := likeCount(tx, postID); err != nil {
			return err
		}

		res := tx.Where("post_id = ? AND user_id = ?", postID, userID).Delete(&models.Like{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected > 0 {
			if err := tx.Model(&models.Post{}).
				Where("id = ?", postID).
				UpdateColumn("like_count", gorm.Expr("CASE WHEN like_count > 0 THEN like_count - 1 ELSE 0 END")).Error; err != nil {
				return err
			}
			result.Changed = true
		}

		count, err := likeCount(tx, postID)
		result.LikeCount = count
		return err
	})
	if err != nil {
		r.log.LogError(ctx, err, "unlike")
		return nil, err
	}

	observability.RecordLikeMutation("unlike", result.Changed)
	if result.Changed {
		cache.InvalidatePostsList(ctx)
	}
	return result, nil
}
