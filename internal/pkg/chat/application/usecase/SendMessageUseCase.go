package usecase

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"go-relay/internal/infrastructure/logging"
	chat "go-relay/internal/pkg/chat/domain"
	"go-relay/internal/pkg/chat/event"
	repository "go-relay/internal/pkg/chat/persistence/repository/port"
)

// SendMessageInput carries the data needed to send a new message. Client
// timestamps are deliberately absent: the store assigns the authoritative one.
type SendMessageInput struct {
	ChatID    string
	SenderID  string
	Content   *string
	MsgType   chat.MessageType
	ReplyTo   *string
	MediaURL  *string
	MediaName *string
}

// SendMessageUseCase is the message delivery engine: it persists an outgoing
// message, seeds the per-recipient status rows, and fans the event out to the
// chat's room. Persistence strictly precedes fan-out; a failed broadcast is
// logged but never rolls the message back.
type SendMessageUseCase struct {
	Repo     repository.ChatRepository
	Rooms    Broadcaster
	Registry Notifier
}

func NewSendMessageUseCase(repo repository.ChatRepository, rooms Broadcaster, registry Notifier) *SendMessageUseCase {
	return &SendMessageUseCase{Repo: repo, Rooms: rooms, Registry: registry}
}

// Execute runs the full persist-then-fanout sequence and returns the stored
// message with its assigned id and server timestamp.
func (uc *SendMessageUseCase) Execute(ctx context.Context, in SendMessageInput) (*chat.Message, error) {
	if in.ChatID == "" || in.SenderID == "" {
		return nil, fmt.Errorf("chatId and senderId are required")
	}

	isMember, err := uc.Repo.IsActiveParticipant(ctx, in.ChatID, in.SenderID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	if !isMember {
		return nil, chat.ErrNotParticipant
	}

	msg, err := chat.NewMessage(chat.Message{
		ChatID:    in.ChatID,
		SenderID:  in.SenderID,
		Content:   in.Content,
		MsgType:   in.MsgType,
		ReplyTo:   in.ReplyTo,
		MediaURL:  in.MediaURL,
		MediaName: in.MediaName,
	})
	if err != nil {
		return nil, err
	}

	// Single durable write; id and created_at come back from the store.
	id, createdAt, err := uc.Repo.SaveMessage(ctx, *msg)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	msg.ID = id
	msg.CreatedAt = createdAt

	participants, err := uc.Repo.ListActiveParticipantIDs(ctx, in.ChatID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	recipients := make([]string, 0, len(participants))
	for _, id := range participants {
		if id != in.SenderID {
			recipients = append(recipients, id)
		}
	}

	if err := uc.Repo.InsertStatuses(ctx, msg.ID, recipients); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
	}

	uc.fanOut(ctx, msg, recipients)

	if err := uc.Repo.TouchChat(ctx, in.ChatID); err != nil {
		logging.Warn("touch chat failed", zap.String("chat", in.ChatID), zap.Error(err))
	}

	return msg, nil
}

// fanOut broadcasts new_message to the room and immediately confirms delivery
// for recipients who are online but not necessarily viewing the chat. Offline
// recipients stay `sent` until catch-up on join. Best-effort throughout.
func (uc *SendMessageUseCase) fanOut(ctx context.Context, msg *chat.Message, recipients []string) {
	payload, err := event.Marshal(event.OutNewMessage, event.NewMessage{
		ID:        msg.ID,
		ChatID:    msg.ChatID,
		Sender:    msg.SenderID,
		Content:   msg.Content,
		Type:      string(msg.MsgType),
		ReplyTo:   msg.ReplyTo,
		MediaURL:  msg.MediaURL,
		MediaName: msg.MediaName,
		CreatedAt: msg.CreatedAt,
	})
	if err != nil {
		logging.Error("encode new_message failed", zap.Error(err))
		return
	}

	uc.Rooms.Broadcast(msg.ChatID, payload, "")

	for _, userID := range recipients {
		if !uc.Registry.Online(userID) {
			continue
		}
		if _, err := uc.Repo.AdvanceStatus(ctx, msg.ID, userID, chat.StatusDelivered); err != nil {
			logging.Warn("delivery confirmation failed",
				zap.String("message", msg.ID), zap.String("user", userID), zap.Error(err))
		}
	}
}
