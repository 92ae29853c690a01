package usecase

import (
	"context"
	"fmt"

	chat "go-relay/internal/pkg/chat/domain"
	repository "go-relay/internal/pkg/chat/persistence/repository/port"
)

// GetMessagesInput pages through a chat's history. A sender reconciling
// delivery state after reconnect reads the latest statuses from storage via
// this path rather than a replay queue.
type GetMessagesInput struct {
	ChatID string
	UserID string
	Limit  int
	Offset int
}

// GetMessagesUseCase fetches a page of messages, membership-checked.
type GetMessagesUseCase struct {
	Repo repository.ChatRepository
}

func NewGetMessagesUseCase(repo repository.ChatRepository) *GetMessagesUseCase {
	return &GetMessagesUseCase{Repo: repo}
}

func (uc *GetMessagesUseCase) Execute(ctx context.Context, in GetMessagesInput) ([]chat.Message, error) {
	if in.ChatID == "" {
		return nil, fmt.Errorf("chatId is required")
	}
	if in.UserID != "" {
		ok, err := uc.Repo.IsActiveParticipant(ctx, in.ChatID, in.UserID)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
		}
		if !ok {
			return nil, chat.ErrNotParticipant
		}
	}
	msgs, err := uc.Repo.ListMessages(ctx, in.ChatID, in.Limit, in.Offset)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	return msgs, nil
}
