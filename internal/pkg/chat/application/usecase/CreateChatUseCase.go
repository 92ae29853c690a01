package usecase

import (
	"context"
	"fmt"

	chat "go-relay/internal/pkg/chat/domain"
	repository "go-relay/internal/pkg/chat/persistence/repository/port"
)

// CreateChatInput carries the data to open a new chat. The first participant
// becomes the admin of a group chat.
type CreateChatInput struct {
	Kind           chat.ChatKind
	Name           *string
	Description    *string
	ParticipantIDs []string
}

// CreateChatUseCase persists a chat with its initial participants.
// Invariants: an individual chat has exactly two participants; a group chat
// has at least one admin.
type CreateChatUseCase struct {
	Repo repository.ChatRepository
}

func NewCreateChatUseCase(repo repository.ChatRepository) *CreateChatUseCase {
	return &CreateChatUseCase{Repo: repo}
}

func (uc *CreateChatUseCase) Execute(ctx context.Context, in CreateChatInput) (string, error) {
	switch in.Kind {
	case chat.ChatIndividual:
		if len(in.ParticipantIDs) != 2 {
			return "", fmt.Errorf("an individual chat requires exactly two participants")
		}
	case chat.ChatGroup:
		if len(in.ParticipantIDs) == 0 {
			return "", fmt.Errorf("a group chat requires at least one participant")
		}
	default:
		return "", fmt.Errorf("chat kind must be individual or group")
	}

	participants := make([]chat.Participant, 0, len(in.ParticipantIDs))
	for i, uid := range in.ParticipantIDs {
		if uid == "" {
			continue
		}
		role := chat.RoleMember
		if in.Kind == chat.ChatGroup && i == 0 {
			role = chat.RoleAdmin
		}
		participants = append(participants, chat.Participant{UserID: uid, Role: role, Active: true})
	}

	id, err := uc.Repo.CreateChat(ctx, chat.Chat{
		Kind:        in.Kind,
		Name:        in.Name,
		Description: in.Description,
	}, participants)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	return id, nil
}
