package usecase

import (
	"context"
	"errors"
	"fmt"

	chat "go-relay/internal/pkg/chat/domain"
	"go-relay/internal/pkg/chat/event"
	repository "go-relay/internal/pkg/chat/persistence/repository/port"
)

// UpdateMessageStatusInput advances the acting user's own status row.
type UpdateMessageStatusInput struct {
	MessageID string
	UserID    string
	Status    chat.DeliveryStatus
}

// UpdateMessageStatusUseCase is the status transition tracker. Transitions
// are monotonic; applying `delivered` to an already-`read` row, or acting on
// a message not addressed to the caller, is a silent no-op since races
// between fan-out and status updates are expected.
type UpdateMessageStatusUseCase struct {
	Repo     repository.ChatRepository
	Registry Notifier
}

func NewUpdateMessageStatusUseCase(repo repository.ChatRepository, registry Notifier) *UpdateMessageStatusUseCase {
	return &UpdateMessageStatusUseCase{Repo: repo, Registry: registry}
}

// Execute applies the transition and, when a row actually changed, emits a
// status update to the original sender's connection. If the sender is not
// connected the update is dropped; storage already holds the latest state.
func (uc *UpdateMessageStatusUseCase) Execute(ctx context.Context, in UpdateMessageStatusInput) error {
	if in.MessageID == "" || in.UserID == "" {
		return fmt.Errorf("message_id and user_id are required")
	}
	if in.Status != chat.StatusDelivered && in.Status != chat.StatusRead {
		return fmt.Errorf("status must be delivered or read")
	}

	changed, err := uc.Repo.AdvanceStatus(ctx, in.MessageID, in.UserID, in.Status)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	if !changed {
		return nil
	}

	senderID, _, err := uc.Repo.GetMessageRoute(ctx, in.MessageID)
	if err != nil {
		if errors.Is(err, chat.ErrNotFound) {
			return nil
		}
		return fmt.Errorf("%w: %v", ErrPersistence, err)
	}

	payload, err := event.Marshal(event.OutStatusUpdate, event.StatusUpdate{
		MessageID: in.MessageID,
		UserID:    in.UserID,
		Status:    string(in.Status),
	})
	if err != nil {
		return nil
	}
	uc.Registry.NotifyUser(senderID, payload)
	return nil
}
