package chat

import "time"

// ChatKind distinguishes two-party chats from groups.
type ChatKind string

const (
	ChatIndividual ChatKind = "individual"
	ChatGroup      ChatKind = "group"
)

// Chat metadata is owned by the store; the relay only reads membership and
// touches updated_at when a message lands.
type Chat struct {
	ID          string    `db:"id"`
	Kind        ChatKind  `db:"kind"`
	Name        *string   `db:"name"`
	Description *string   `db:"description"`
	CreatedAt   time.Time `db:"created_at"`
	UpdatedAt   time.Time `db:"updated_at"`
}

// ParticipantRole expresses the role within a chat.
type ParticipantRole string

const (
	RoleAdmin  ParticipantRole = "admin"
	RoleMember ParticipantRole = "member"
)

// Participant captures membership. Leaving sets Active=false with a timestamp
// rather than deleting the row, so history survives.
type Participant struct {
	ChatID   string          `db:"chat_id"`
	UserID   string          `db:"user_id"`
	Role     ParticipantRole `db:"role"`
	Active   bool            `db:"is_active"`
	JoinedAt time.Time       `db:"joined_at"`
	LeftAt   *time.Time      `db:"left_at"`
}
