// Package event defines the wire-level events exchanged with clients.
// Frames are JSON envelopes: {"event": <name>, "data": <payload>}.
package event

import (
	"encoding/json"
	"time"
)

// Inbound event names. Each maps to one dispatch-table handler.
const (
	InJoinChat       = "join_chat"
	InLeaveChat      = "leave_chat"
	InSendMessage    = "send_message"
	InDelivered      = "message_delivered"
	InRead           = "message_read"
	InTypingStart    = "typing_start"
	InTypingStop     = "typing_stop"
	InAddReaction    = "add_reaction"
	InRemoveReaction = "remove_reaction"
	InUpdateStatus   = "update_status"
)

// Outbound event names.
const (
	OutConnected       = "connected"
	OutNewMessage      = "new_message"
	OutMessageSent     = "message_sent"
	OutStatusUpdate    = "message_status_update"
	OutTyping          = "user_typing"
	OutReactionAdded   = "message_reaction_added"
	OutReactionRemoved = "message_reaction_removed"
	OutContactStatus   = "contact_status_changed"
	OutChatJoined      = "chat_joined"
	OutChatLeft        = "chat_left"
	OutError           = "error"
)

// Error type identifiers carried in the error event.
const (
	ErrAccessDenied = "access_denied"
	ErrValidation   = "validation_error"
	ErrSendFailed   = "send_failed"
	ErrStore        = "store_error"
	ErrNotFound     = "not_found"
)

// Envelope is the frame wrapper for both directions.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// Marshal wraps payload under the given event name.
func Marshal(name string, payload any) ([]byte, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Envelope{Event: name, Data: data})
}

// Inbound payloads.

type ChatRef struct {
	ChatID string `json:"chatId"`
}

type MessageRef struct {
	MessageID string `json:"messageId"`
}

type SendMessage struct {
	ChatID    string  `json:"chatId"`
	Content   *string `json:"content,omitempty"`
	Type      string  `json:"type,omitempty"`
	ReplyTo   *string `json:"replyToMessageId,omitempty"`
	MediaURL  *string `json:"mediaUrl,omitempty"`
	MediaName *string `json:"mediaFilename,omitempty"`
}

type Reaction struct {
	MessageID string `json:"messageId"`
	Emoji     string `json:"emoji"`
}

type UpdateStatus struct {
	Status string `json:"status"`
}

// Outbound payloads.

type Connected struct {
	UserID string `json:"userId"`
}

type NewMessage struct {
	ID        string    `json:"id"`
	ChatID    string    `json:"chatId"`
	Sender    string    `json:"sender"`
	Content   *string   `json:"content,omitempty"`
	Type      string    `json:"type"`
	ReplyTo   *string   `json:"replyToMessageId,omitempty"`
	MediaURL  *string   `json:"mediaUrl,omitempty"`
	MediaName *string   `json:"mediaFilename,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

type MessageSent struct {
	MessageID string `json:"messageId"`
	ChatID    string `json:"chatId"`
}

type StatusUpdate struct {
	MessageID string `json:"messageId"`
	UserID    string `json:"userId"`
	Status    string `json:"status"`
}

type Typing struct {
	ChatID   string `json:"chatId"`
	UserID   string `json:"userId"`
	IsTyping bool   `json:"isTyping"`
}

type ReactionChange struct {
	MessageID string `json:"messageId"`
	UserID    string `json:"userId"`
	Emoji     string `json:"emoji"`
}

type ContactStatus struct {
	UserID string `json:"userId"`
	Status string `json:"status"`
}

type Error struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}
