package repository

import (
	"context"
	"errors"

	"github.com/UnknownOlympus/taskpulse/internal/models"
)

var (
	// ErrUserNotFound is returned when no active user has the requested email.
	ErrUserNotFound = errors.New("active user with this email not found")
	// ErrUserAlreadyLinked is returned when a user is already linked to a telegram account.
	ErrUserAlreadyLinked = errors.New("this user is already linked to a telegram account")
	// ErrIDExists is returned when the specified telegram ID is already linked.
	ErrIDExists = errors.New("this telegram ID is already linked")
	// ErrNotLinked is returned when a telegram account has no linked user.
	ErrNotLinked = errors.New("telegram account is not linked to a user")
	// ErrUnsupportedCondition is returned when a predicate cannot be translated to SQL.
	ErrUnsupportedCondition = errors.New("unsupported predicate condition")
)

// Repository serves task, user and telegram link queries from PostgreSQL.
type Repository struct {
	db Database
}

// LinkManager defines the operations that bind Telegram accounts to users
// of the task application.
type LinkManager interface {
	LinkTelegramIDByEmail(ctx context.Context, telegramID int64, email string) error
	GetLinkedUser(ctx context.Context, telegramID int64) (models.User, error)
	DeleteLink(ctx context.Context, telegramID int64) error
}

// NewRepository creates a new instance of Repository with the provided Database.
// It returns a pointer to the newly created Repository.
func NewRepository(db Database) *Repository {
	return &Repository{db: db}
}

// Ping checks that the database answers.
func (r *Repository) Ping(ctx context.Context) error {
	return r.db.Ping(ctx)
}
