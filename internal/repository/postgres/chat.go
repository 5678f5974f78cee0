package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/Kerhoff/custos/internal/models"
	"github.com/Kerhoff/custos/internal/repository"
)

type chatRepository struct {
	db *sql.DB
}

// NewChatRepository creates a new chat repository
func NewChatRepository(db *sql.DB) repository.ChatRepository {
	return &chatRepository{db: db}
}

func (r *chatRepository) Upsert(ctx context.Context, chat *models.Chat) (*models.Chat, error) {
	query := `
		INSERT INTO chats (id, title, type, added_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO UPDATE SET title = EXCLUDED.title, type = EXCLUDED.type
		RETURNING added_at`

	err := r.db.QueryRowContext(ctx, query,
		chat.ID,
		chat.Title,
		chat.Type,
		time.Now(),
	).Scan(&chat.AddedAt)

	if err != nil {
		return nil, fmt.Errorf("failed to upsert chat: %w", err)
	}

	return chat, nil
}

func (r *chatRepository) GetByID(ctx context.Context, id int64) (*models.Chat, error) {
	query := `
		SELECT id, title, type, added_at
		FROM chats
		WHERE id = $1`

	chat := &models.Chat{}
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&chat.ID,
		&chat.Title,
		&chat.Type,
		&chat.AddedAt,
	)

	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get chat by ID: %w", err)
	}

	return chat, nil
}

func (r *chatRepository) ListForUser(ctx context.Context, userID int64) ([]*models.UserChat, error) {
	query := `
		SELECT c.id, c.title, c.type, c.added_at, cm.rank
		FROM chats c
		INNER JOIN chat_members cm ON cm.chat_id = c.id
		WHERE cm.user_id = $1
		ORDER BY c.title ASC`

	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query user chats: %w", err)
	}
	defer rows.Close()

	var chats []*models.UserChat
	for rows.Next() {
		uc := &models.UserChat{}
		if err := rows.Scan(
			&uc.Chat.ID,
			&uc.Chat.Title,
			&uc.Chat.Type,
			&uc.Chat.AddedAt,
			&uc.Rank,
		); err != nil {
			return nil, fmt.Errorf("failed to scan user chat: %w", err)
		}
		chats = append(chats, uc)
	}

	return chats, rows.Err()
}
