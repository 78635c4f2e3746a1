package service

import (
	"context"

	"photofeed/internal/models"
	"photofeed/internal/observability"
	"photofeed/internal/repository"

	"go.opentelemetry.io/otel/attribute"
)

type LikeService struct {
	likes repository.LikeRepository
}

func NewLikeService(likes repository.LikeRepository) *LikeService {
	return &LikeService{likes: likes}
}

func (s *LikeService) LikedPostIDs(ctx context.Context, userID string) ([]string, error) {
	return s.likes.LikedPostIDs(ctx, userID)
}

func (s *LikeService) Like(ctx context.Context, userID, postID string) (*models.LikeResult, error) {
	return s.toggle(ctx, "like_post", userID, postID, s.likes.Like)
}

func (s *LikeService) Unlike(ctx context.Context, userID, postID string) (*models.LikeResult, error) {
	return s.toggle(ctx, "unlike_post", userID, postID, s.likes.Unlike)
}

func (s *LikeService) toggle(
	ctx context.Context,
	name, userID, postID string,
	fn func(context.Context, string, string) (*models.LikeResult, error),
) (res *models.LikeResult, err error) {
	if postID == "" {
		return nil, models.NewValidationError("post_id is required")
	}
	ctx, span := observability.StartSpan(ctx, "LikeService."+name, attribute.String("post.id", postID))
	defer func() {
		if res != nil {
			span.SetAttributes(attribute.Bool("like.changed", res.Changed))
		}
		observability.EndSpan(span, err)
	}()
	return fn(ctx, userID, postID)
}
