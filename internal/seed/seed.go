// Package seed fills a development database with demo accounts, profiles,
// posts and likes. It writes through the repositories so the like counter and
// the like rows stay consistent.
package seed

import (
	"context"
	"fmt"
	"math/rand"
	"strings"
	"time"
	"unicode/utf8"

	"photofeed/internal/models"
	"photofeed/internal/observability"
	"photofeed/internal/repository"

	"github.com/brianvoe/gofakeit/v6"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// DefaultPassword is the password of every seeded account.
const DefaultPassword = "password123"

// Options controls how much data Run creates.
type Options struct {
	Users int
	Posts int
	// MaxLikesPerPost caps the random likers of each post.
	MaxLikesPerPost int
	// MaxDays spreads post timestamps over this many days back from now.
	MaxDays int
	// SkipBcrypt stores a cheap hash; only for tests.
	SkipBcrypt bool
	// Seed makes the generated data reproducible when non-zero.
	Seed int64
}

// Result lists what Run created.
type Result struct {
	Accounts []*models.Account
	Profiles []*models.Profile
	Posts    []*models.Post
	Likes    int
}

// Seeder creates demo data.
type Seeder struct {
	db       *gorm.DB
	accounts repository.AccountRepository
	profiles repository.ProfileRepository
	posts    repository.PostRepository
	likes    repository.LikeRepository
	faker    *gofakeit.Faker
	rand     *rand.Rand
	now      func() time.Time
}

// NewSeeder returns a seeder writing to db.
func NewSeeder(db *gorm.DB) *Seeder {
	return &Seeder{
		db:       db,
		accounts: repository.NewAccountRepository(db),
		profiles: repository.NewProfileRepository(db),
		posts:    repository.NewPostRepository(db),
		likes:    repository.NewLikeRepository(db),
		now:      time.Now,
	}
}

// ClearAll deletes every like, post, profile and account.
func (s *Seeder) ClearAll(ctx context.Context) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, m := range []any{&models.Like{}, &models.Post{}, &models.Profile{}, &models.Account{}} {
			if err := tx.Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(m).Error; err != nil {
				return fmt.Errorf("clear %T: %w", m, err)
			}
		}
		return nil
	})
}

// Empty reports whether there are no accounts yet.
func (s *Seeder) Empty(ctx context.Context) (bool, error) {
	var n int64
	if err := s.db.WithContext(ctx).Model(&models.Account{}).Count(&n).Error; err != nil {
		return false, err
	}
	return n == 0, nil
}

// Run creates opts.Users confirmed accounts with profiles, opts.Posts posts
// spread across them, and random likes.
func (s *Seeder) Run(ctx context.Context, opts Options) (*Result, error) {
	seed := opts.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	s.faker = gofakeit.New(seed)
	// #nosec G404: demo data only
	s.rand = rand.New(rand.NewSource(seed))

	if opts.MaxDays <= 0 {
		opts.MaxDays = 30
	}

	hash, err := passwordHash(opts.SkipBcrypt)
	if err != nil {
		return nil, err
	}

	res := &Result{}
	for i := 0; i < opts.Users; i++ {
		acct, profile, err := s.createUser(ctx, hash, i)
		if err != nil {
			return res, fmt.Errorf("create user %d: %w", i, err)
		}
		res.Accounts = append(res.Accounts, acct)
		res.Profiles = append(res.Profiles, profile)
	}
	observability.Logger.InfoContext(ctx, "seeded users", "count", len(res.Profiles))

	if len(res.Profiles) == 0 {
		return res, nil
	}

	for i := 0; i < opts.Posts; i++ {
		author := res.Profiles[s.rand.Intn(len(res.Profiles))]
		post, err := s.createPost(ctx, author, opts.MaxDays)
		if err != nil {
			return res, fmt.Errorf("create post %d: %w", i, err)
		}
		res.Posts = append(res.Posts, post)

		likers := 0
		if opts.MaxLikesPerPost > 0 {
			likers = s.rand.Intn(min(opts.MaxLikesPerPost, len(res.Profiles)) + 1)
		}
		for _, idx := range s.rand.Perm(len(res.Profiles))[:likers] {
			out, err := s.likes.Like(ctx, res.Profiles[idx].ID, post.ID)
			if err != nil {
				return res, fmt.Errorf("like post %s: %w", post.ID, err)
			}
			post.LikeCount = out.LikeCount
			res.Likes++
		}
	}
	observability.Logger.InfoContext(ctx, "seeded posts", "posts", len(res.Posts), "likes", res.Likes)

	return res, nil
}

func passwordHash(skipBcrypt bool) (string, error) {
	cost := bcrypt.DefaultCost
	if skipBcrypt {
		cost = bcrypt.MinCost
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(DefaultPassword), cost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hash), nil
}

func (s *Seeder) createUser(ctx context.Context, hash string, n int) (*models.Account, *models.Profile, error) {
	username := fmt.Sprintf("%s%d", strings.ToLower(s.faker.Username()), n)
	now := s.now().UTC()
	acct := &models.Account{
		Email:            fmt.Sprintf("%s@example.com", username),
		PasswordHash:     hash,
		UserMetadata:     map[string]any{"username": username},
		EmailConfirmedAt: &now,
	}
	if err := s.accounts.Create(ctx, acct); err != nil {
		return nil, nil, err
	}

	avatar := fmt.Sprintf("https://i.pravatar.cc/150?u=%s", acct.ID)
	profile := &models.Profile{ID: acct.ID, Username: username, AvatarURL: &avatar}
	if err := s.profiles.Create(ctx, profile); err != nil {
		return nil, nil, err
	}
	return acct, profile, nil
}

func (s *Seeder) createPost(ctx context.Context, author *models.Profile, maxDays int) (*models.Post, error) {
	back := time.Duration(s.rand.Intn(maxDays*24*60)) * time.Minute
	post := &models.Post{
		UserID:    author.ID,
		ImageURL:  fmt.Sprintf("https://picsum.photos/seed/%s/800/800", s.faker.UUID()),
		Caption:   Caption(s.faker),
		CreatedAt: s.now().Add(-back).UTC(),
	}
	if err := s.posts.Create(ctx, post); err != nil {
		return nil, err
	}
	return post, nil
}

// Caption returns a random caption within the caption length limit.
func Caption(f *gofakeit.Faker) string {
	caption := f.Sentence(f.Number(3, 18))
	if f.Bool() {
		caption += " #" + strings.ToLower(f.HipsterWord())
	}
	for utf8.RuneCountInString(caption) > models.MaxCaptionLength {
		_, size := utf8.DecodeLastRuneInString(caption)
		caption = caption[:len(caption)-size]
	}
	return caption
}
