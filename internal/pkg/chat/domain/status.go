package chat

import "time"

// DeliveryStatus is the per-recipient delivery state of a message. It only
// ever advances: sent → delivered → read, with the direct sent → read jump
// allowed when a client reads before acking delivery.
type DeliveryStatus string

const (
	StatusSent      DeliveryStatus = "sent"
	StatusDelivered DeliveryStatus = "delivered"
	StatusRead      DeliveryStatus = "read"
)

// Rank orders the statuses for monotonicity checks. Unknown values rank
// below sent so they can never overwrite a tracked state.
func (s DeliveryStatus) Rank() int {
	switch s {
	case StatusSent:
		return 1
	case StatusDelivered:
		return 2
	case StatusRead:
		return 3
	}
	return 0
}

// Advances reports whether moving from s to next is a real forward
// transition. Equal or backward moves are no-ops, never errors.
func (s DeliveryStatus) Advances(next DeliveryStatus) bool {
	return next.Rank() > s.Rank()
}

// MessageStatus is one row per (message, recipient) pair. A row is never
// created for the sender's own message; absence means "not yet tracked".
type MessageStatus struct {
	MessageID string         `db:"message_id"`
	UserID    string         `db:"user_id"`
	Status    DeliveryStatus `db:"status"`
	UpdatedAt time.Time      `db:"updated_at"`
}
