package seed

import (
	"fmt"
	"math/rand"

	"murmur/internal/middleware"
	"murmur/internal/models"

	"gorm.io/gorm"
)

// Options configures a seeding run.
type Options struct {
	Users              int
	Posts              int
	MaxCommentsPerPost int
	MaxDays            int
	// RandSeed pins the generators for reproducible runs; zero picks a
	// time-based seed.
	RandSeed int64
	// SkipBcrypt stores a plaintext password. Large seeds are dominated by
	// bcrypt cost otherwise.
	SkipBcrypt bool
}

// DefaultOptions returns a medium-sized demo dataset configuration.
func DefaultOptions() Options {
	return Options{
		Users:              25,
		Posts:              80,
		MaxCommentsPerPost: 15,
		MaxDays:            90,
	}
}

// Run populates the database with users, posts, threaded comments, and likes.
// The first created user is an admin ("admin@murmur.dev" / "password123").
func Run(db *gorm.DB, opts Options) error {
	f := NewFactory(db, opts)
	r := f.rand

	users := make([]*models.User, 0, opts.Users)

	admin, err := f.CreateUser(func(u *models.User) {
		u.Username = "admin"
		u.Email = "admin@murmur.dev"
		u.IsAdmin = true
	})
	if err != nil {
		return fmt.Errorf("seed admin: %w", err)
	}
	users = append(users, admin)

	for i := 1; i < opts.Users; i++ {
		user, err := f.CreateUser()
		if err != nil {
			return fmt.Errorf("seed user %d: %w", i, err)
		}
		users = append(users, user)
	}

	for i := 0; i < opts.Posts; i++ {
		author := users[r.Intn(len(users))]
		post, err := f.CreatePost(author)
		if err != nil {
			return fmt.Errorf("seed post %d: %w", i, err)
		}

		if err := seedDiscussion(f, r, post, users, opts.MaxCommentsPerPost); err != nil {
			return err
		}

		for _, user := range users {
			if r.Intn(4) == 0 {
				if err := f.CreateLike(user, post); err != nil {
					return fmt.Errorf("seed like on post %d: %w", post.ID, err)
				}
			}
		}
	}

	middleware.Logger.Info("seed complete",
		"users", len(users),
		"posts", opts.Posts,
	)
	return nil
}

// seedDiscussion grows a reply tree under a post. Each new comment picks a
// random earlier comment as its parent about half the time, which produces
// realistically uneven nesting.
func seedDiscussion(f *Factory, r *rand.Rand, post *models.Post, users []*models.User, maxComments int) error {
	if maxComments <= 0 {
		return nil
	}

	count := r.Intn(maxComments + 1)
	created := make([]*models.Comment, 0, count)

	for i := 0; i < count; i++ {
		author := users[r.Intn(len(users))]

		var parent *models.Comment
		if len(created) > 0 && r.Intn(2) == 0 {
			parent = created[r.Intn(len(created))]
		}

		comment, err := f.CreateComment(post, author, parent)
		if err != nil {
			return fmt.Errorf("seed comment on post %d: %w", post.ID, err)
		}
		created = append(created, comment)
	}
	return nil
}
