package usecase

import (
	"context"
	"errors"
	"fmt"

	chat "go-relay/internal/pkg/chat/domain"
	"go-relay/internal/pkg/chat/event"
	repository "go-relay/internal/pkg/chat/persistence/repository/port"
)

// ReactionInput identifies one (message, user, emoji) tuple.
type ReactionInput struct {
	MessageID string
	UserID    string
	Emoji     string
}

// ReactToMessageUseCase writes reactions through to the store and broadcasts
// the change to the chat's room. Adding an existing tuple converges to one
// stored row; removing an absent tuple is a no-op. Both return
// chat.ErrNotFound for an unknown message, which callers treat as a no-op.
type ReactToMessageUseCase struct {
	Repo  repository.ChatRepository
	Rooms Broadcaster
}

func NewReactToMessageUseCase(repo repository.ChatRepository, rooms Broadcaster) *ReactToMessageUseCase {
	return &ReactToMessageUseCase{Repo: repo, Rooms: rooms}
}

func (uc *ReactToMessageUseCase) Add(ctx context.Context, in ReactionInput) error {
	chatID, err := uc.resolve(ctx, in)
	if err != nil {
		return err
	}
	if err := uc.Repo.AddReaction(ctx, in.MessageID, in.UserID, in.Emoji); err != nil {
		return fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	uc.broadcast(event.OutReactionAdded, chatID, in)
	return nil
}

func (uc *ReactToMessageUseCase) Remove(ctx context.Context, in ReactionInput) error {
	chatID, err := uc.resolve(ctx, in)
	if err != nil {
		return err
	}
	if err := uc.Repo.RemoveReaction(ctx, in.MessageID, in.UserID, in.Emoji); err != nil {
		return fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	uc.broadcast(event.OutReactionRemoved, chatID, in)
	return nil
}

func (uc *ReactToMessageUseCase) resolve(ctx context.Context, in ReactionInput) (string, error) {
	if in.MessageID == "" || in.UserID == "" || in.Emoji == "" {
		return "", fmt.Errorf("message_id, user_id and emoji are required")
	}
	_, chatID, err := uc.Repo.GetMessageRoute(ctx, in.MessageID)
	if err != nil {
		if errors.Is(err, chat.ErrNotFound) {
			return "", chat.ErrNotFound
		}
		return "", fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	return chatID, nil
}

func (uc *ReactToMessageUseCase) broadcast(name, chatID string, in ReactionInput) {
	payload, err := event.Marshal(name, event.ReactionChange{
		MessageID: in.MessageID,
		UserID:    in.UserID,
		Emoji:     in.Emoji,
	})
	if err != nil {
		return
	}
	uc.Rooms.Broadcast(chatID, payload, "")
}
