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

// JoinChatInput validates a request to attach a session to a chat's room.
type JoinChatInput struct {
	ChatID string
	UserID string
}

// JoinChatUseCase enforces active membership before a room subscription and
// performs delivery catch-up: `sent` rows for messages that arrived while the
// user was away advance to `delivered`, and each original sender that is
// still connected gets a status update.
type JoinChatUseCase struct {
	Repo     repository.ChatRepository
	Registry Notifier
}

func NewJoinChatUseCase(repo repository.ChatRepository, registry Notifier) *JoinChatUseCase {
	return &JoinChatUseCase{Repo: repo, Registry: registry}
}

// Execute returns chat.ErrNotParticipant when the user has no active
// membership; the caller must not subscribe the connection in that case.
func (uc *JoinChatUseCase) Execute(ctx context.Context, in JoinChatInput) error {
	if in.ChatID == "" || in.UserID == "" {
		return fmt.Errorf("chat_id and user_id are required")
	}

	ok, err := uc.Repo.IsActiveParticipant(ctx, in.ChatID, in.UserID)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	if !ok {
		return chat.ErrNotParticipant
	}

	pending, err := uc.Repo.MarkChatDelivered(ctx, in.ChatID, in.UserID)
	if err != nil {
		// Catch-up is a side effect of a successful join, not a gate for it.
		logging.Warn("delivery catch-up failed",
			zap.String("chat", in.ChatID), zap.String("user", in.UserID), zap.Error(err))
		return nil
	}

	for _, p := range pending {
		payload, err := event.Marshal(event.OutStatusUpdate, event.StatusUpdate{
			MessageID: p.MessageID,
			UserID:    in.UserID,
			Status:    string(chat.StatusDelivered),
		})
		if err != nil {
			continue
		}
		uc.Registry.NotifyUser(p.SenderID, payload)
	}
	return nil
}

// Resync lists the chats the user actively belongs to, for the connect-time
// room subscription pass.
func (uc *JoinChatUseCase) Resync(ctx context.Context, userID string) ([]string, error) {
	ids, err := uc.Repo.ListActiveChatIDs(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	return ids, nil
}
