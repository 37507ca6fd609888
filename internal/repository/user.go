package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/UnknownOlympus/taskpulse/internal/models"
	"github.com/jackc/pgx/v5"
)

// ListActiveUsers returns the active users ordered by username.
func (r *Repository) ListActiveUsers(ctx context.Context) ([]models.User, error) {
	rows, err := r.db.Query(ctx, listActiveUsersSQL)
	if err != nil {
		return nil, fmt.Errorf("failed to query active users: %w", err)
	}
	defer rows.Close()

	users := make([]models.User, 0)
	for rows.Next() {
		var (
			user models.User
			role string
		)
		if err = rows.Scan(&user.ID, &user.Username, &user.Email, &role, &user.IsActive, &user.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan user row: %w", err)
		}
		user.Role = models.Role(role)
		users = append(users, user)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read rows: %w", err)
	}

	return users, nil
}

// EnsureDefaultAdmin inserts the default admin account unless a user with
// the same username exists. It reports whether a row was created.
func (r *Repository) EnsureDefaultAdmin(ctx context.Context, admin models.User) (bool, error) {
	cmdTag, err := r.db.Exec(ctx, ensureAdminSQL, admin.ID, admin.Username, admin.Email, string(models.RoleAdmin))
	if err != nil {
		return false, fmt.Errorf("failed to seed default admin: %w", err)
	}

	return cmdTag.RowsAffected() == 1, nil
}

// LinkTelegramIDByEmail links a Telegram ID to the active user with the given email.
// It begins a transaction, looks the user up, verifies the Telegram ID is not linked yet and
// inserts the pair into bot_users. The transaction is committed if the insertion is
// successful, otherwise it is rolled back.
func (r *Repository) LinkTelegramIDByEmail(ctx context.Context, telegramID int64, email string) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // rollback after commit is a no-op

	var userID string
	err = tx.QueryRow(ctx, "SELECT id FROM users WHERE email = $1 AND is_active = TRUE", email).Scan(&userID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrUserNotFound
		}
		return fmt.Errorf("failed to find user by email: %w", err)
	}

	var exists bool
	err = tx.QueryRow(ctx, "SELECT EXISTS (SELECT 1 FROM bot_users WHERE telegram_id = $1)", telegramID).Scan(&exists)
	if err != nil {
		return fmt.Errorf("failed to check telegram link: %w", err)
	}
	if exists {
		return ErrIDExists
	}

	cmdTag, err := tx.Exec(
		ctx,
		"INSERT INTO bot_users (telegram_id, user_id) VALUES ($1, $2) ON CONFLICT (user_id) DO NOTHING",
		telegramID,
		userID,
	)
	if err != nil {
		return fmt.Errorf("failed to insert into bot_users: %w", err)
	}

	if cmdTag.RowsAffected() == 0 {
		return ErrUserAlreadyLinked
	}

	if err = tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit telegram link: %w", err)
	}

	return nil
}

// GetLinkedUser returns the active user linked to a Telegram ID.
func (r *Repository) GetLinkedUser(ctx context.Context, telegramID int64) (models.User, error) {
	query := `
		SELECT u.id, u.username, u.email, u.role, u.is_active, u.created_at
		FROM bot_users bu
		JOIN users u ON u.id = bu.user_id
		WHERE bu.telegram_id = $1 AND u.is_active = TRUE;
	`
	var (
		user models.User
		role string
	)
	err := r.db.QueryRow(ctx, query, telegramID).Scan(
		&user.ID, &user.Username, &user.Email, &role, &user.IsActive, &user.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.User{}, ErrNotLinked
		}
		return models.User{}, fmt.Errorf("failed to get linked user: %w", err)
	}
	user.Role = models.Role(role)

	return user, nil
}

// DeleteLink removes the link of a Telegram ID.
func (r *Repository) DeleteLink(ctx context.Context, telegramID int64) error {
	cmdTag, err := r.db.Exec(ctx, "DELETE FROM bot_users WHERE telegram_id = $1", telegramID)
	if err != nil {
		return fmt.Errorf("failed to delete telegram link: %w", err)
	}
	if cmdTag.RowsAffected() == 0 {
		return ErrNotLinked
	}

	return nil
}
