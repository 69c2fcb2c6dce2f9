package postgres

import (
	"context"
	"strings"
	"time"

	"github.com/fdg312/fitswift-hub/internal/storage"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

type PostgresChatStorage struct {
	pool *pgxpool.Pool
}

func NewPostgresChatStorage(pool *pgxpool.Pool) *PostgresChatStorage {
	return &PostgresChatStorage{pool: pool}
}

func (s *PostgresChatStorage) InsertMessage(ctx context.Context, ownerUserID string, profileID uuid.UUID, role, content string, toolCommands []byte) (storage.ChatMessage, error) {
	msg := storage.ChatMessage{
		ID:           uuid.New(),
		OwnerUserID:  strings.TrimSpace(ownerUserID),
		ProfileID:    profileID,
		Role:         strings.TrimSpace(role),
		Content:      content,
		ToolCommands: toolCommands,
	}

	// seq keeps insertion order when created_at collides.
	const query = `
		INSERT INTO chat_messages (id, owner_user_id, profile_id, role, content, tool_commands, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, clock_timestamp())
		RETURNING created_at
	`

	err := s.pool.QueryRow(ctx, query,
		msg.ID,
		msg.OwnerUserID,
		msg.ProfileID,
		msg.Role,
		msg.Content,
		msg.ToolCommands,
	).Scan(&msg.CreatedAt)
	if err != nil {
		return storage.ChatMessage{}, err
	}
	msg.CreatedAt = msg.CreatedAt.UTC()
	return msg, nil
}

// InsertMessageIfEmpty сериализует вставку через advisory lock на owner/profile:
// NOT EXISTS без блокировки в READ COMMITTED пропускает две параллельные вставки.
func (s *PostgresChatStorage) InsertMessageIfEmpty(ctx context.Context, ownerUserID string, profileID uuid.UUID, role, content string) (bool, error) {
	ownerUserID = strings.TrimSpace(ownerUserID)

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return false, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx,
		`SELECT pg_advisory_xact_lock(hashtextextended('chat_messages:' || $1 || ':' || $2::text, 0))`,
		ownerUserID, profileID,
	); err != nil {
		return false, err
	}

	const query = `
		INSERT INTO chat_messages (id, owner_user_id, profile_id, role, content, tool_commands, created_at)
		SELECT $1, $2, $3, $4, $5, NULL, clock_timestamp()
		WHERE NOT EXISTS (
			SELECT 1 FROM chat_messages WHERE owner_user_id = $2 AND profile_id = $3
		)
	`

	tag, err := tx.Exec(ctx, query, uuid.New(), ownerUserID, profileID, strings.TrimSpace(role), content)
	if err != nil {
		return false, err
	}
	if err := tx.Commit(ctx); err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (s *PostgresChatStorage) ListMessages(ctx context.Context, ownerUserID string, profileID uuid.UUID, limit int, before *time.Time) ([]storage.ChatMessage, *time.Time, error) {
	ownerUserID = strings.TrimSpace(ownerUserID)
	if limit <= 0 {
		limit = 50
	}
	queryLimit := limit + 1

	const query = `
		SELECT id, owner_user_id, profile_id, role, content, tool_commands, created_at
		FROM (
			SELECT id, owner_user_id, profile_id, role, content, tool_commands, created_at, seq
			FROM chat_messages
			WHERE owner_user_id = $1
			  AND profile_id = $2
			  AND ($3::timestamptz IS NULL OR created_at < $3)
			ORDER BY created_at DESC, seq DESC
			LIMIT $4
		) latest
		ORDER BY created_at ASC, seq ASC
	`

	rows, err := s.pool.Query(ctx, query, ownerUserID, profileID, before, queryLimit)
	if err != nil {
		return nil, nil, err
	}
	defer rows.Close()

	result := make([]storage.ChatMessage, 0, queryLimit)
	for rows.Next() {
		var msg storage.ChatMessage
		if err := rows.Scan(
			&msg.ID,
			&msg.OwnerUserID,
			&msg.ProfileID,
			&msg.Role,
			&msg.Content,
			&msg.ToolCommands,
			&msg.CreatedAt,
		); err != nil {
			return nil, nil, err
		}
		result = append(result, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, err
	}

	if len(result) <= limit {
		return result, nil, nil
	}

	result = result[1:]
	cursor := result[0].CreatedAt.UTC()
	return result, &cursor, nil
}
