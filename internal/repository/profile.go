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

// ProfileRepository defines the interface for profile (users table) operations
type ProfileRepository interface {
	GetByID(ctx context.Context, id string) (*models.Profile, error)
	Create(ctx context.Context, profile *models.Profile) error
	Update(ctx context.Context, id string, fields map[string]any) (*models.Profile, error)
}

type profileRepository struct {
	db  *gorm.DB
	log *observability.RepoLogger
}

// NewProfileRepository creates a new profile repository
func NewProfileRepository(db *gorm.DB) ProfileRepository {
	return &profileRepository{db: db, log: observability.NewRepoLogger("users")}
}

// GetByID returns a NO_ROWS AppError when the profile does not exist.
func (r *profileRepository) GetByID(ctx context.Context, id string) (*models.Profile, error) {
	defer observability.TrackQuery("get", "users")()

	var profile models.Profile
	err := cache.Aside(ctx, cache.ProfileKey(id), &profile, cache.ProfileTTL, func() error {
		return r.db.WithContext(ctx).First(&profile, "id = ?", id).Error
	})
	if isNotFound(err) {
		return nil, models.NewNoRowsError("profile")
	}
	if err != nil {
		return nil, fmt.Errorf("get profile %s: %w", id, err)
	}
	return &profile, nil
}

func (r *profileRepository) Create(ctx context.Context, profile *models.Profile) error {
	defer observability.TrackQuery("create", "users")()

	if err := r.db.WithContext(ctx).Create(profile).Error; err != nil {
		if isUniqueViolation(err) {
			return models.NewConflictError("profile or username already exists")
		}
		r.log.LogError(ctx, err, "create")
		return fmt.Errorf("create profile: %w", err)
	}
	r.log.LogCreate(ctx, map[string]any{"id": profile.ID, "username": profile.Username})
	cache.Invalidate(ctx, cache.ProfileKey(profile.ID))
	return nil
}

// Update applies fields to the profile and returns the stored row. A nil value clears a nullable column.
func (r *profileRepository) Update(ctx context.Context, id string, fields map[string]any) (*models.Profile, error) {
	defer observability.TrackQuery("update", "users")()

	var profile models.Profile
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.Profile{}).Where("id = ?", id).Updates(fields)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return tx.Clauses(dbresolver.Write).First(&profile, "id = ?", id).Error
	})
	switch {
	case isNotFound(err):
		return nil, models.NewNoRowsError("profile")
	case isUniqueViolation(err):
		return nil, models.NewConflictError("username is already taken")
	case err != nil:
		r.log.LogError(ctx, err, "update")
		return nil, fmt.Errorf("update profile %s: %w", id, err)
	}

	r.log.LogUpdate(ctx, map[string]any{"id": id, "fields": len(fields)})
	cache.InvalidateProfile(ctx, id)
	return &profile, nil
}
