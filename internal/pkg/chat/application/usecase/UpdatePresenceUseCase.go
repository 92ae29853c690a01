package usecase

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	cacheport "go-relay/internal/infrastructure/cache/port"
	"go-relay/internal/infrastructure/logging"
	chat "go-relay/internal/pkg/chat/domain"
	"go-relay/internal/pkg/chat/event"
	repository "go-relay/internal/pkg/chat/persistence/repository/port"
)

const presenceTTL = 5 * time.Minute

// UpdatePresenceInput carries a presence transition for one user.
type UpdatePresenceInput struct {
	UserID string
	Status chat.Presence
}

// UpdatePresenceUseCase persists a presence change (status + last_seen),
// mirrors it into the cache, and fans the change out to every currently
// connected contact that has not blocked the subject.
type UpdatePresenceUseCase struct {
	Repo     repository.ChatRepository
	Registry Notifier
	Cache    cacheport.Cache // optional; nil disables the mirror
}

func NewUpdatePresenceUseCase(repo repository.ChatRepository, registry Notifier, cache cacheport.Cache) *UpdatePresenceUseCase {
	return &UpdatePresenceUseCase{Repo: repo, Registry: registry, Cache: cache}
}

func (uc *UpdatePresenceUseCase) Execute(ctx context.Context, in UpdatePresenceInput) error {
	if in.UserID == "" {
		return fmt.Errorf("user_id is required")
	}
	if !in.Status.Valid() {
		return chat.ErrInvalidPresence
	}

	if err := uc.Repo.UpdatePresence(ctx, in.UserID, in.Status); err != nil {
		return fmt.Errorf("%w: %v", ErrPersistence, err)
	}

	if uc.Cache != nil {
		if err := uc.Cache.Set(ctx, presenceKey(in.UserID), string(in.Status), presenceTTL); err != nil {
			logging.Warn("presence cache set failed", zap.String("user", in.UserID), zap.Error(err))
		}
	}

	contacts, err := uc.Repo.ListContactIDs(ctx, in.UserID)
	if err != nil {
		// The persisted transition stands; the broadcast is best-effort.
		logging.Warn("list contacts failed", zap.String("user", in.UserID), zap.Error(err))
		return nil
	}

	payload, err := event.Marshal(event.OutContactStatus, event.ContactStatus{
		UserID: in.UserID,
		Status: string(in.Status),
	})
	if err != nil {
		return nil
	}
	for _, contactID := range contacts {
		uc.Registry.NotifyUser(contactID, payload)
	}
	return nil
}

func presenceKey(userID string) string {
	return "presence:" + userID
}
