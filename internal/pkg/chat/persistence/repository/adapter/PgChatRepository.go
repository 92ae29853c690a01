package adapter

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	chat "go-relay/internal/pkg/chat/domain"
	repository "go-relay/internal/pkg/chat/persistence/repository/port"
)

// PgChatRepository implements the ChatRepository port on Postgres. Status
// updates are rank-guarded in SQL so they stay monotonic under concurrent
// writers without an explicit transaction.
type PgChatRepository struct {
	pool *pgxpool.Pool
}

func NewPgChatRepository(pool *pgxpool.Pool) *PgChatRepository {
	return &PgChatRepository{pool: pool}
}

var _ repository.ChatRepository = (*PgChatRepository)(nil)

func (r *PgChatRepository) IsActiveParticipant(ctx context.Context, chatID, userID string) (bool, error) {
	if r == nil || r.pool == nil {
		return false, errors.New("PgChatRepository: nil pool")
	}
	var ok bool
	err := r.pool.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM chat_participants
			WHERE chat_id = $1::uuid AND user_id = $2::uuid AND is_active = true
		)
	`, chatID, userID).Scan(&ok)
	return ok, err
}

func (r *PgChatRepository) ListActiveParticipantIDs(ctx context.Context, chatID string) ([]string, error) {
	if r == nil || r.pool == nil {
		return nil, errors.New("PgChatRepository: nil pool")
	}
	rows, err := r.pool.Query(ctx, `
		SELECT user_id::text FROM chat_participants
		WHERE chat_id = $1::uuid AND is_active = true
	`, chatID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanIDs(rows)
}

func (r *PgChatRepository) ListActiveChatIDs(ctx context.Context, userID string) ([]string, error) {
	if r == nil || r.pool == nil {
		return nil, errors.New("PgChatRepository: nil pool")
	}
	rows, err := r.pool.Query(ctx, `
		SELECT chat_id::text FROM chat_participants
		WHERE user_id = $1::uuid AND is_active = true
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanIDs(rows)
}

func (r *PgChatRepository) CreateChat(ctx context.Context, c chat.Chat, participants []chat.Participant) (string, error) {
	if r == nil || r.pool == nil {
		return "", errors.New("PgChatRepository: nil pool")
	}
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return "", err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var id string
	err = tx.QueryRow(ctx, `
		INSERT INTO chats (chat_type, name, description)
		VALUES ($1, $2, $3)
		RETURNING id::text
	`, c.Kind, c.Name, c.Description).Scan(&id)
	if err != nil {
		return "", err
	}

	for _, p := range participants {
		_, err = tx.Exec(ctx, `
			INSERT INTO chat_participants (chat_id, user_id, role, is_active)
			VALUES ($1::uuid, $2::uuid, $3, true)
			ON CONFLICT (chat_id, user_id)
			DO UPDATE SET role = EXCLUDED.role, is_active = true, left_at = NULL
		`, id, p.UserID, p.Role)
		if err != nil {
			return "", err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return "", err
	}
	return id, nil
}

func (r *PgChatRepository) TouchChat(ctx context.Context, chatID string) error {
	if r == nil || r.pool == nil {
		return errors.New("PgChatRepository: nil pool")
	}
	_, err := r.pool.Exec(ctx,
		`UPDATE chats SET updated_at = CURRENT_TIMESTAMP WHERE id = $1::uuid`, chatID)
	return err
}

func (r *PgChatRepository) SaveMessage(ctx context.Context, m chat.Message) (string, time.Time, error) {
	if r == nil || r.pool == nil {
		return "", time.Time{}, errors.New("PgChatRepository: nil pool")
	}
	var (
		id        string
		createdAt time.Time
	)
	err := r.pool.QueryRow(ctx, `
		INSERT INTO messages (chat_id, sender_id, content, message_type, reply_to_message_id, media_url, media_filename)
		VALUES ($1::uuid, $2::uuid, $3, $4, $5::uuid, $6, $7)
		RETURNING id::text, created_at
	`, m.ChatID, m.SenderID, m.Content, m.MsgType, m.ReplyTo, m.MediaURL, m.MediaName).Scan(&id, &createdAt)
	return id, createdAt, err
}

func (r *PgChatRepository) ListMessages(ctx context.Context, chatID string, limit, offset int) ([]chat.Message, error) {
	if r == nil || r.pool == nil {
		return nil, errors.New("PgChatRepository: nil pool")
	}
	if limit <= 0 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	rows, err := r.pool.Query(ctx, `
		SELECT id::text, chat_id::text, sender_id::text, content, message_type,
		       reply_to_message_id::text, media_url, media_filename, created_at
		FROM messages
		WHERE chat_id = $1::uuid
		ORDER BY created_at ASC
		LIMIT $2 OFFSET $3
	`, chatID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var msgs []chat.Message
	for rows.Next() {
		var m chat.Message
		if err := rows.Scan(&m.ID, &m.ChatID, &m.SenderID, &m.Content, &m.MsgType,
			&m.ReplyTo, &m.MediaURL, &m.MediaName, &m.CreatedAt); err != nil {
			return nil, err
		}
		msgs = append(msgs, m)
	}
	return msgs, rows.Err()
}

func (r *PgChatRepository) GetMessageRoute(ctx context.Context, messageID string) (string, string, error) {
	if r == nil || r.pool == nil {
		return "", "", errors.New("PgChatRepository: nil pool")
	}
	var senderID, chatID string
	err := r.pool.QueryRow(ctx,
		`SELECT sender_id::text, chat_id::text FROM messages WHERE id = $1::uuid`,
		messageID).Scan(&senderID, &chatID)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", "", chat.ErrNotFound
	}
	return senderID, chatID, err
}

func (r *PgChatRepository) InsertStatuses(ctx context.Context, messageID string, recipientIDs []string) error {
	if r == nil || r.pool == nil {
		return errors.New("PgChatRepository: nil pool")
	}
	if len(recipientIDs) == 0 {
		return nil
	}
	_, err := r.pool.Exec(ctx, `
		INSERT INTO message_status (message_id, user_id, status)
		SELECT $1::uuid, uid, 'sent' FROM unnest($2::uuid[]) AS uid
		ON CONFLICT (message_id, user_id) DO NOTHING
	`, messageID, recipientIDs)
	return err
}

func (r *PgChatRepository) AdvanceStatus(ctx context.Context, messageID, userID string, to chat.DeliveryStatus) (bool, error) {
	if r == nil || r.pool == nil {
		return false, errors.New("PgChatRepository: nil pool")
	}
	ct, err := r.pool.Exec(ctx, `
		UPDATE message_status
		SET status = $3, updated_at = CURRENT_TIMESTAMP
		WHERE message_id = $1::uuid AND user_id = $2::uuid
		  AND CASE status WHEN 'sent' THEN 1 WHEN 'delivered' THEN 2 WHEN 'read' THEN 3 ELSE 0 END
		    < CASE $3     WHEN 'sent' THEN 1 WHEN 'delivered' THEN 2 WHEN 'read' THEN 3 ELSE 0 END
	`, messageID, userID, to)
	if err != nil {
		return false, err
	}
	return ct.RowsAffected() > 0, nil
}

func (r *PgChatRepository) MarkChatDelivered(ctx context.Context, chatID, userID string) ([]repository.PendingDelivery, error) {
	if r == nil || r.pool == nil {
		return nil, errors.New("PgChatRepository: nil pool")
	}
	rows, err := r.pool.Query(ctx, `
		UPDATE message_status ms
		SET status = 'delivered', updated_at = CURRENT_TIMESTAMP
		FROM messages m
		WHERE ms.message_id = m.id
		  AND m.chat_id = $1::uuid
		  AND ms.user_id = $2::uuid
		  AND ms.status = 'sent'
		RETURNING m.id::text, m.sender_id::text
	`, chatID, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var pending []repository.PendingDelivery
	for rows.Next() {
		var p repository.PendingDelivery
		if err := rows.Scan(&p.MessageID, &p.SenderID); err != nil {
			return nil, err
		}
		pending = append(pending, p)
	}
	return pending, rows.Err()
}

func (r *PgChatRepository) UpdatePresence(ctx context.Context, userID string, status chat.Presence) error {
	if r == nil || r.pool == nil {
		return errors.New("PgChatRepository: nil pool")
	}
	_, err := r.pool.Exec(ctx,
		`UPDATE users SET status = $1, last_seen = CURRENT_TIMESTAMP WHERE id = $2::uuid`,
		status, userID)
	return err
}

func (r *PgChatRepository) ListContactIDs(ctx context.Context, userID string) ([]string, error) {
	if r == nil || r.pool == nil {
		return nil, errors.New("PgChatRepository: nil pool")
	}
	rows, err := r.pool.Query(ctx, `
		SELECT user_id::text FROM contacts
		WHERE contact_user_id = $1::uuid AND is_blocked = false
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanIDs(rows)
}

func (r *PgChatRepository) AddReaction(ctx context.Context, messageID, userID, emoji string) error {
	if r == nil || r.pool == nil {
		return errors.New("PgChatRepository: nil pool")
	}
	_, err := r.pool.Exec(ctx, `
		INSERT INTO message_reactions (message_id, user_id, emoji)
		VALUES ($1::uuid, $2::uuid, $3)
		ON CONFLICT (message_id, user_id, emoji) DO NOTHING
	`, messageID, userID, emoji)
	return err
}

func (r *PgChatRepository) RemoveReaction(ctx context.Context, messageID, userID, emoji string) error {
	if r == nil || r.pool == nil {
		return errors.New("PgChatRepository: nil pool")
	}
	_, err := r.pool.Exec(ctx,
		`DELETE FROM message_reactions WHERE message_id = $1::uuid AND user_id = $2::uuid AND emoji = $3`,
		messageID, userID, emoji)
	return err
}

func scanIDs(rows pgx.Rows) ([]string, error) {
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
