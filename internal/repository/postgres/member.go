package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/Kerhoff/custos/internal/models"
	"github.com/Kerhoff/custos/internal/repository"
)

type memberRepository struct {
	db *sql.DB
}

// NewMemberRepository creates a new chat member repository
func NewMemberRepository(db *sql.DB) repository.MemberRepository {
	return &memberRepository{db: db}
}

func (r *memberRepository) GetMember(ctx context.Context, userID, chatID int64) (*models.Member, error) {
	query := `
		SELECT user_id, chat_id, rank, message_count, joined_at, updated_at
		FROM chat_members
		WHERE user_id = $1 AND chat_id = $2`

	m := &models.Member{}
	err := r.db.QueryRowContext(ctx, query, userID, chatID).Scan(
		&m.UserID,
		&m.ChatID,
		&m.Rank,
		&m.MessageCount,
		&m.JoinedAt,
		&m.UpdatedAt,
	)

	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get member: %w", err)
	}

	return m, nil
}

// SetRank stores the rank, creating the membership record if needed.
func (r *memberRepository) SetRank(ctx context.Context, userID, chatID int64, rank models.Rank) error {
	query := `
		INSERT INTO chat_members (user_id, chat_id, rank, joined_at, updated_at)
		VALUES ($1, $2, $3, $4, $4)
		ON CONFLICT (user_id, chat_id) DO UPDATE
		SET rank = EXCLUDED.rank, updated_at = EXCLUDED.updated_at`

	if _, err := r.db.ExecContext(ctx, query, userID, chatID, rank, time.Now()); err != nil {
		return fmt.Errorf("failed to set rank: %w", err)
	}

	return nil
}

// Ensure creates a participant record if the user has none in the chat.
func (r *memberRepository) Ensure(ctx context.Context, userID, chatID int64) (*models.Member, error) {
	query := `
		INSERT INTO chat_members (user_id, chat_id, rank, joined_at, updated_at)
		VALUES ($1, $2, $3, $4, $4)
		ON CONFLICT (user_id, chat_id) DO NOTHING`

	if _, err := r.db.ExecContext(ctx, query, userID, chatID, models.RankParticipant, time.Now()); err != nil {
		return nil, fmt.Errorf("failed to ensure member: %w", err)
	}

	return r.GetMember(ctx, userID, chatID)
}

// RecordMessage bumps both the lifetime and per-day message counters.
func (r *memberRepository) RecordMessage(ctx context.Context, userID, chatID int64, at time.Time) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO chat_members (user_id, chat_id, rank, message_count, joined_at, updated_at)
		VALUES ($1, $2, $3, 1, $4, $4)
		ON CONFLICT (user_id, chat_id) DO UPDATE
		SET message_count = chat_members.message_count + 1`,
		userID, chatID, models.RankParticipant, at)
	if err != nil {
		return fmt.Errorf("failed to increment message count: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO message_stats (user_id, chat_id, day, count)
		VALUES ($1, $2, $3, 1)
		ON CONFLICT (user_id, chat_id, day) DO UPDATE
		SET count = message_stats.count + 1`,
		userID, chatID, at.Format(time.DateOnly))
	if err != nil {
		return fmt.Errorf("failed to increment daily stats: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit message stats: %w", err)
	}

	return nil
}

func (r *memberRepository) DailyCount(ctx context.Context, userID, chatID int64, day time.Time) (int64, error) {
	query := `SELECT count FROM message_stats WHERE user_id = $1 AND chat_id = $2 AND day = $3`

	var count int64
	err := r.db.QueryRowContext(ctx, query, userID, chatID, day.Format(time.DateOnly)).Scan(&count)
	if err != nil {
		if err == sql.ErrNoRows {
			return 0, nil
		}
		return 0, fmt.Errorf("failed to get daily count: %w", err)
	}

	return count, nil
}

func (r *memberRepository) ListStaff(ctx context.Context, chatID int64) ([]*models.StaffMember, error) {
	query := `
		SELECT ` + userColumns + `, cm.rank
		FROM chat_members cm
		INNER JOIN users u ON u.id = cm.user_id
		WHERE cm.chat_id = $1 AND cm.rank <> 'participant'
		ORDER BY CASE cm.rank
			WHEN 'owner' THEN 1
			WHEN 'administrator' THEN 2
			WHEN 'moderator' THEN 3
			ELSE 4
		END, u.id`

	rows, err := r.db.QueryContext(ctx, query, chatID)
	if err != nil {
		return nil, fmt.Errorf("failed to query staff: %w", err)
	}
	defer rows.Close()

	var staff []*models.StaffMember
	for rows.Next() {
		s := &models.StaffMember{}
		u := &s.User
		if err := rows.Scan(
			&u.ID, &u.Username, &u.FirstName, &u.LastName, &u.Nickname, &u.Description,
			&u.CreatedAt, &u.UpdatedAt,
			&s.Rank,
		); err != nil {
			return nil, fmt.Errorf("failed to scan staff member: %w", err)
		}
		staff = append(staff, s)
	}

	return staff, rows.Err()
}

func (r *memberRepository) TopActive(ctx context.Context, chatID int64, limit int) ([]*models.ActiveMember, error) {
	query := `
		SELECT ` + userColumns + `, cm.message_count
		FROM chat_members cm
		INNER JOIN users u ON u.id = cm.user_id
		WHERE cm.chat_id = $1 AND cm.message_count > 0
		ORDER BY cm.message_count DESC, u.id
		LIMIT $2`

	rows, err := r.db.QueryContext(ctx, query, chatID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query chat stats: %w", err)
	}
	defer rows.Close()

	var active []*models.ActiveMember
	for rows.Next() {
		a := &models.ActiveMember{}
		u := &a.User
		if err := rows.Scan(
			&u.ID, &u.Username, &u.FirstName, &u.LastName, &u.Nickname, &u.Description,
			&u.CreatedAt, &u.UpdatedAt,
			&a.MessageCount,
		); err != nil {
			return nil, fmt.Errorf("failed to scan active member: %w", err)
		}
		active = append(active, a)
	}

	return active, rows.Err()
}

// TransferOwnership moves the owner rank in one serializable transaction.
// The demotion only matches while from still holds owner, so a stale
// proposal cannot create a second owner or leave the chat without one.
func (r *memberRepository) TransferOwnership(ctx context.Context, chatID, from, to int64) error {
	err := withRetry(ctx, func(ctx context.Context) error {
		return r.transferOwnership(ctx, chatID, from, to)
	})
	if err != nil {
		return fmt.Errorf("failed to transfer ownership: %w", err)
	}
	return nil
}

func (r *memberRepository) transferOwnership(ctx context.Context, chatID, from, to int64) error {
	tx, err := r.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return err
	}
	defer tx.Rollback()

	now := time.Now()

	result, err := tx.ExecContext(ctx, `
		UPDATE chat_members SET rank = $3, updated_at = $4
		WHERE user_id = $1 AND chat_id = $2 AND rank = 'owner'`,
		from, chatID, models.RankAdministrator, now)
	if err != nil {
		return err
	}

	demoted, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if demoted != 1 {
		return repository.ErrNotOwner
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO chat_members (user_id, chat_id, rank, joined_at, updated_at)
		VALUES ($1, $2, $3, $4, $4)
		ON CONFLICT (user_id, chat_id) DO UPDATE
		SET rank = EXCLUDED.rank, updated_at = EXCLUDED.updated_at`,
		to, chatID, models.RankOwner, now)
	if err != nil {
		return err
	}

	return commit(tx)
}
