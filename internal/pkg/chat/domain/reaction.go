package chat

import "time"

// Reaction is a (message, user, emoji) tuple. The tuple is unique: adding an
// existing reaction is a no-op, not an error.
type Reaction struct {
	MessageID string    `db:"message_id"`
	UserID    string    `db:"user_id"`
	Emoji     string    `db:"emoji"`
	CreatedAt time.Time `db:"created_at"`
}
