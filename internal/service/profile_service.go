package service

import (
	"context"

	"photofeed/internal/models"
	"photofeed/internal/notifications"
	"photofeed/internal/observability"
	"photofeed/internal/repository"
	"photofeed/internal/validation"
)

type CreateProfileInput struct {
	CallerID  string
	ID        string
	Username  string
	AvatarURL *string
}

// UpdateProfileInput carries a partial update. ClearAvatar sets avatar_url to null.
type UpdateProfileInput struct {
	CallerID    string
	ID          string
	Username    *string
	AvatarURL   *string
	ClearAvatar bool
}

type ProfileService struct {
	profiles repository.ProfileRepository
	notifier *notifications.Notifier
}

func NewProfileService(profiles repository.ProfileRepository, notifier *notifications.Notifier) *ProfileService {
	return &ProfileService{profiles: profiles, notifier: notifier}
}

func (s *ProfileService) Get(ctx context.Context, id string) (*models.Profile, error) {
	return s.profiles.GetByID(ctx, id)
}

// Create inserts the caller's own profile row.
func (s *ProfileService) Create(ctx context.Context, in CreateProfileInput) (*models.Profile, error) {
	if in.ID != in.CallerID {
		return nil, models.NewForbiddenError("you can only create your own profile")
	}
	username, err := validation.Username(in.Username)
	if err != nil {
		return nil, models.NewValidationError(err.Error())
	}
	profile := &models.Profile{ID: in.ID, Username: username, AvatarURL: in.AvatarURL}
	if err := s.profiles.Create(ctx, profile); err != nil {
		return nil, err
	}
	return profile, nil
}

// Update applies a partial update to the caller's own profile.
func (s *ProfileService) Update(ctx context.Context, in UpdateProfileInput) (*models.Profile, error) {
	if in.ID != in.CallerID {
		return nil, models.NewForbiddenError("you can only update your own profile")
	}

	fields := map[string]any{}
	if in.Username != nil {
		username, err := validation.Username(*in.Username)
		if err != nil {
			return nil, models.NewValidationError(err.Error())
		}
		fields["username"] = username
	}
	switch {
	case in.ClearAvatar:
		fields["avatar_url"] = nil
	case in.AvatarURL != nil:
		fields["avatar_url"] = *in.AvatarURL
	}
	if len(fields) == 0 {
		return nil, models.NewValidationError("no fields to update")
	}

	profile, err := s.profiles.Update(ctx, in.ID, fields)
	if err != nil {
		return nil, err
	}

	if s.notifier != nil {
		if err := s.notifier.PublishAuthEvent(ctx, notifications.AuthEvent{
			Type:   notifications.EventUserUpdated,
			UserID: in.ID,
		}); err != nil {
			observability.Logger.WarnContext(ctx, "failed to publish profile update", "error", err)
		}
	}
	return profile, nil
}
