package repository

import (
	"context"
	"time"

	chat "go-relay/internal/pkg/chat/domain"
)

// PendingDelivery identifies a status row advanced during catch-up, so the
// original sender can be notified.
type PendingDelivery struct {
	MessageID string
	SenderID  string
}

// ChatRepository is the narrow persistence contract consumed by the relay
// core. Implementations rely on the store's own transactional guarantees for
// per-row correctness (unique-constraint idempotent inserts, guarded updates);
// the core does no distributed locking of its own.
type ChatRepository interface {
	// IsActiveParticipant reports whether userID is an active member of chatID.
	IsActiveParticipant(ctx context.Context, chatID, userID string) (bool, error)

	// ListActiveParticipantIDs returns the user IDs of every active member.
	ListActiveParticipantIDs(ctx context.Context, chatID string) ([]string, error)

	// ListActiveChatIDs returns the chats userID actively belongs to,
	// used for the connect-time room resync.
	ListActiveChatIDs(ctx context.Context, userID string) ([]string, error)

	// CreateChat persists a chat with its initial participants and returns
	// the assigned id.
	CreateChat(ctx context.Context, c chat.Chat, participants []chat.Participant) (string, error)

	// TouchChat advances the chat's updated_at marker.
	TouchChat(ctx context.Context, chatID string) error

	// SaveMessage persists a message in a single durable write and returns
	// the assigned id and authoritative server timestamp.
	SaveMessage(ctx context.Context, m chat.Message) (id string, createdAt time.Time, err error)

	// ListMessages returns a page of messages for a chat, oldest first.
	ListMessages(ctx context.Context, chatID string, limit, offset int) ([]chat.Message, error)

	// GetMessageRoute resolves a message to its sender and chat, returning
	// chat.ErrNotFound for an unknown id.
	GetMessageRoute(ctx context.Context, messageID string) (senderID, chatID string, err error)

	// InsertStatuses creates one `sent` status row per recipient. Never
	// called with the sender in the recipient set.
	InsertStatuses(ctx context.Context, messageID string, recipientIDs []string) error

	// AdvanceStatus moves the recipient's row forward to the given status.
	// The update is rank-guarded so a recorded status can never regress;
	// it reports whether a row actually changed. A missing row changes
	// nothing and returns false.
	AdvanceStatus(ctx context.Context, messageID, userID string, to chat.DeliveryStatus) (bool, error)

	// MarkChatDelivered advances all of userID's `sent` rows in the chat to
	// `delivered` and returns the affected messages with their senders.
	MarkChatDelivered(ctx context.Context, chatID, userID string) ([]PendingDelivery, error)

	// UpdatePresence persists the status and refreshes last_seen.
	UpdatePresence(ctx context.Context, userID string, status chat.Presence) error

	// ListContactIDs returns users who have userID in their contacts and
	// have not blocked them.
	ListContactIDs(ctx context.Context, userID string) ([]string, error)

	// AddReaction inserts the (message, user, emoji) tuple idempotently.
	AddReaction(ctx context.Context, messageID, userID, emoji string) error

	// RemoveReaction deletes the tuple; removing a nonexistent tuple is a no-op.
	RemoveReaction(ctx context.Context, messageID, userID, emoji string) error
}
