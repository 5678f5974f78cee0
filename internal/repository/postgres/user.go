package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/Kerhoff/custos/internal/models"
	"github.com/Kerhoff/custos/internal/repository"
)

const userColumns = `u.id, u.username, u.first_name, u.last_name, u.nickname, u.description, u.created_at, u.updated_at`

type userRepository struct {
	db *sql.DB
}

// NewUserRepository creates a new user repository
func NewUserRepository(db *sql.DB) repository.UserRepository {
	return &userRepository{db: db}
}

// Upsert stores the Telegram profile fields of the user. Nickname and
// description are owned by the bot and left untouched on conflict.
func (r *userRepository) Upsert(ctx context.Context, user *models.User) (*models.User, error) {
	query := `
		INSERT INTO users (id, username, first_name, last_name, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $5)
		ON CONFLICT (id) DO UPDATE
		SET username = EXCLUDED.username,
		    first_name = EXCLUDED.first_name,
		    last_name = EXCLUDED.last_name,
		    updated_at = EXCLUDED.updated_at
		RETURNING nickname, description, created_at, updated_at`

	err := r.db.QueryRowContext(ctx, query,
		user.ID,
		user.Username,
		user.FirstName,
		user.LastName,
		time.Now(),
	).Scan(&user.Nickname, &user.Description, &user.CreatedAt, &user.UpdatedAt)

	if err != nil {
		return nil, fmt.Errorf("failed to upsert user: %w", err)
	}

	return user, nil
}

func (r *userRepository) GetByID(ctx context.Context, id int64) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users u WHERE u.id = $1`

	user, err := scanUser(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get user by ID: %w", err)
	}

	return user, nil
}

// FindInChat resolves a user who is a member of the chat by username,
// nickname or first name, checked in that order.
func (r *userRepository) FindInChat(ctx context.Context, chatID int64, lookup repository.UserLookup) (*models.User, error) {
	var (
		cond string
		arg  string
	)
	switch {
	case lookup.Username != "":
		cond, arg = `lower(u.username) = lower($2)`, lookup.Username
	case lookup.Nickname != "":
		cond, arg = `u.nickname = $2`, lookup.Nickname
	case lookup.FirstName != "":
		cond, arg = `u.first_name = $2`, lookup.FirstName
	default:
		return nil, nil
	}

	query := `
		SELECT ` + userColumns + `
		FROM users u
		INNER JOIN chat_members cm ON cm.user_id = u.id
		WHERE cm.chat_id = $1 AND ` + cond + `
		ORDER BY cm.updated_at DESC
		LIMIT 1`

	user, err := scanUser(r.db.QueryRowContext(ctx, query, chatID, arg))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find user in chat %d: %w", chatID, err)
	}

	return user, nil
}

func (r *userRepository) SetNickname(ctx context.Context, id int64, nickname string) error {
	return r.setField(ctx, "nickname", id, nickname)
}

func (r *userRepository) SetDescription(ctx context.Context, id int64, description string) error {
	return r.setField(ctx, "description", id, description)
}

func (r *userRepository) setField(ctx context.Context, column string, id int64, value string) error {
	query := `UPDATE users SET ` + column + ` = $2, updated_at = $3 WHERE id = $1`

	result, err := r.db.ExecContext(ctx, query, id, value, time.Now())
	if err != nil {
		return fmt.Errorf("failed to update user %s: %w", column, err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return fmt.Errorf("user with ID %d not found", id)
	}

	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (*models.User, error) {
	user := &models.User{}
	err := row.Scan(
		&user.ID,
		&user.Username,
		&user.FirstName,
		&user.LastName,
		&user.Nickname,
		&user.Description,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return user, nil
}
