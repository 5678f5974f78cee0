package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/Kerhoff/custos/internal/models"
	"github.com/Kerhoff/custos/internal/repository"
)

type warningRepository struct {
	db *sql.DB
}

// NewWarningRepository creates a new warning repository
func NewWarningRepository(db *sql.DB) repository.WarningRepository {
	return &warningRepository{db: db}
}

// Add inserts the warning and counts the member's warnings in the same
// transaction so the returned total includes this row.
func (r *warningRepository) Add(ctx context.Context, warning *models.Warning) (int, error) {
	if warning.IssuedAt.IsZero() {
		warning.IssuedAt = time.Now()
	}

	var count int
	err := withRetry(ctx, func(ctx context.Context) error {
		tx, err := r.db.BeginTx(ctx, nil)
		if err != nil {
			return err
		}
		defer tx.Rollback()

		err = tx.QueryRowContext(ctx, `
			INSERT INTO warnings (user_id, chat_id, reason, issued_by, issued_at)
			VALUES ($1, $2, $3, $4, $5)
			RETURNING id`,
			warning.UserID,
			warning.ChatID,
			warning.Reason,
			warning.IssuedBy,
			warning.IssuedAt,
		).Scan(&warning.ID)
		if err != nil {
			return err
		}

		err = tx.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM warnings WHERE user_id = $1 AND chat_id = $2`,
			warning.UserID, warning.ChatID,
		).Scan(&count)
		if err != nil {
			return err
		}

		return commit(tx)
	})
	if err != nil {
		return 0, fmt.Errorf("failed to add warning: %w", err)
	}

	return count, nil
}

func (r *warningRepository) Count(ctx context.Context, userID, chatID int64) (int, error) {
	query := `SELECT COUNT(*) FROM warnings WHERE user_id = $1 AND chat_id = $2`

	var count int
	if err := r.db.QueryRowContext(ctx, query, userID, chatID).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count warnings: %w", err)
	}

	return count, nil
}

func (r *warningRepository) List(ctx context.Context, userID, chatID int64) ([]*models.Warning, error) {
	query := `
		SELECT id, user_id, chat_id, reason, issued_by, issued_at
		FROM warnings
		WHERE user_id = $1 AND chat_id = $2
		ORDER BY issued_at ASC, id ASC`

	rows, err := r.db.QueryContext(ctx, query, userID, chatID)
	if err != nil {
		return nil, fmt.Errorf("failed to query warnings: %w", err)
	}
	defer rows.Close()

	var warnings []*models.Warning
	for rows.Next() {
		w := &models.Warning{}
		if err := rows.Scan(
			&w.ID,
			&w.UserID,
			&w.ChatID,
			&w.Reason,
			&w.IssuedBy,
			&w.IssuedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan warning: %w", err)
		}
		warnings = append(warnings, w)
	}

	return warnings, rows.Err()
}
