package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"photofeed/internal/models"
	"photofeed/internal/observability"

	"gorm.io/gorm"
	"gorm.io/plugin/dbresolver"
)

// AccountRepository stores credentials. Emails are matched case-insensitively.
type AccountRepository interface {
	Create(ctx context.Context, account *models.Account) error
	GetByID(ctx context.Context, id string) (*models.Account, error)
	GetByEmail(ctx context.Context, email string) (*models.Account, error)
	MarkConfirmed(ctx context.Context, id string, at time.Time) error
	RecordSignIn(ctx context.Context, id string, at time.Time) error
	UpdatePassword(ctx context.Context, id, passwordHash string) error
}

type accountRepository struct {
	db  *gorm.DB
	log *observability.RepoLogger
}

// NewAccountRepository creates a new account repository
func NewAccountRepository(db *gorm.DB) AccountRepository {
	return &accountRepository{db: db, log: observability.NewRepoLogger("accounts")}
}

// NormalizeEmail is the canonical stored form of an email address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (r *accountRepository) Create(ctx context.Context, account *models.Account) error {
	defer observability.TrackQuery("create", "accounts")()

	account.Email = NormalizeEmail(account.Email)
	if err := r.db.WithContext(ctx).Create(account).Error; err != nil {
		if isUniqueViolation(err) {
			return models.NewConflictError("User already registered")
		}
		r.log.LogError(ctx, err, "create")
		return fmt.Errorf("create account: %w", err)
	}
	r.log.LogCreate(ctx, map[string]any{"id": account.ID})
	return nil
}

func (r *accountRepository) GetByID(ctx context.Context, id string) (*models.Account, error) {
	var account models.Account
	err := r.db.WithContext(ctx).Clauses(dbresolver.Write).First(&account, "id = ?", id).Error
	if isNotFound(err) {
		return nil, models.NewNotFoundError("Account", id)
	}
	if err != nil {
		return nil, fmt.Errorf("get account %s: %w", id, err)
	}
	return &account, nil
}

// GetByEmail returns nil without error when no account uses the email.
func (r *accountRepository) GetByEmail(ctx context.Context, email string) (*models.Account, error) {
	defer observability.TrackQuery("get_by_email", "accounts")()

	var account models.Account
	err := r.db.WithContext(ctx).Clauses(dbresolver.Write).First(&account, "email = ?", NormalizeEmail(email)).Error
	if isNotFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get account by email: %w", err)
	}
	return &account, nil
}

func (r *accountRepository) MarkConfirmed(ctx context.Context, id string, at time.Time) error {
	return r.updateColumn(ctx, id, "email_confirmed_at", at)
}

func (r *accountRepository) RecordSignIn(ctx context.Context, id string, at time.Time) error {
	return r.updateColumn(ctx, id, "last_sign_in_at", at)
}

func (r *accountRepository) UpdatePassword(ctx context.Context, id, passwordHash string) error {
	return r.updateColumn(ctx, id, "password_hash", passwordHash)
}

func (r *accountRepository) updateColumn(ctx context.Context, id, column string, value any) error {
	defer observability.TrackQuery("update", "accounts")()

	res := r.db.WithContext(ctx).Model(&models.Account{}).Where("id = ?", id).Update(column, value)
	if res.Error != nil {
		r.log.LogError(ctx, res.Error, "update "+column)
		return fmt.Errorf("update account %s: %w", column, res.Error)
	}
	if res.RowsAffected == 0 {
		return models.NewNotFoundError("Account", id)
	}
	r.log.LogUpdate(ctx, map[string]any{"id": id, "column": column})
	return nil
}
