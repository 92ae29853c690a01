package chat

import "errors"

// Domain-level errors shared across use cases. The websocket layer maps these
// onto error events; store failures are wrapped separately by the use cases.
var (
	ErrNotParticipant  = errors.New("chat: user is not an active participant of the chat")
	ErrNotFound        = errors.New("chat: no such chat or message")
	ErrEmptyMessage    = errors.New("chat: empty message (no content or media)")
	ErrInvalidPresence = errors.New("chat: invalid presence status")
)
