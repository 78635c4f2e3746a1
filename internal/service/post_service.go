package service

import (
	"context"
	"errors"

	"photofeed/internal/models"
	"photofeed/internal/repository"
	"photofeed/internal/validation"
)

type CreatePostInput struct {
	UserID   string
	ImageURL string
	Caption  string
}

type UpdatePostInput struct {
	UserID  string
	PostID  string
	Caption string
}

type DeletePostInput struct {
	UserID string
	PostID string
}

type PostService struct {
	posts    repository.PostRepository
	profiles repository.ProfileRepository
}

func NewPostService(posts repository.PostRepository, profiles repository.ProfileRepository) *PostService {
	return &PostService{posts: posts, profiles: profiles}
}

// List returns the whole feed newest first. UserID narrows it to one author.
func (s *PostService) List(ctx context.Context, userID string) ([]models.Post, error) {
	if userID != "" {
		return s.posts.ListByUser(ctx, userID)
	}
	return s.posts.List(ctx)
}

func (s *PostService) CreatePost(ctx context.Context, in CreatePostInput) (*models.Post, error) {
	caption, err := validation.Caption(in.Caption)
	if err != nil {
		return nil, models.NewValidationError(err.Error())
	}
	if err := validation.Validator().Var(in.ImageURL, "required,url"); err != nil {
		return nil, models.NewValidationError("image_url must be a valid URL")
	}

	if _, err := s.profiles.GetByID(ctx, in.UserID); err != nil {
		var appErr *models.AppError
		if errors.As(err, &appErr) && appErr.Code == models.CodeNoRows {
			return nil, models.NewValidationError("create your profile before posting")
		}
		return nil, err
	}

	post := &models.Post{
		UserID:   in.UserID,
		ImageURL: in.ImageURL,
		Caption:  caption,
	}
	if err := s.posts.Create(ctx, post); err != nil {
		return nil, err
	}
	return post, nil
}

func (s *PostService) UpdatePost(ctx context.Context, in UpdatePostInput) (*models.Post, error) {
	caption, err := validation.Caption(in.Caption)
	if err != nil {
		return nil, models.NewValidationError(err.Error())
	}
	return s.posts.UpdateCaption(ctx, in.PostID, in.UserID, caption)
}

func (s *PostService) DeletePost(ctx context.Context, in DeletePostInput) error {
	return s.posts.Delete(ctx, in.PostID, in.UserID)
}
