package chat

import (
	"errors"
	"strings"
	"time"
)

// MessageType describes the content kind carried by a message.
type MessageType string

const (
	MessageText   MessageType = "text"
	MessageImage  MessageType = "image"
	MessageFile   MessageType = "file"
	MessageSystem MessageType = "system"
)

// Message is an immutable log entry in a chat. The server-assigned CreatedAt
// is authoritative; client timestamps are never trusted.
type Message struct {
	ID        string      `db:"id"`
	ChatID    string      `db:"chat_id"`
	SenderID  string      `db:"sender_id"`
	Content   *string     `db:"content"`
	MsgType   MessageType `db:"message_type"`
	ReplyTo   *string     `db:"reply_to_message_id"`
	MediaURL  *string     `db:"media_url"`
	MediaName *string     `db:"media_filename"`
	CreatedAt time.Time   `db:"created_at"`
}

// NewMessage validates and normalizes an outgoing message before persistence.
func NewMessage(m Message) (*Message, error) {
	if m.ChatID == "" || m.SenderID == "" {
		return nil, errors.New("chat_id and sender_id are required")
	}

	if m.Content != nil {
		trimmed := strings.TrimSpace(*m.Content)
		if trimmed == "" {
			m.Content = nil
		} else {
			m.Content = &trimmed
		}
	}

	if m.MsgType == "" {
		m.MsgType = MessageText
	}

	// System messages may be bodyless; everything else needs content or media.
	if m.MsgType != MessageSystem && m.Content == nil && m.MediaURL == nil {
		return nil, ErrEmptyMessage
	}

	return &m, nil
}
