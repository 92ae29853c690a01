package controller

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"go-relay/internal/pkg/chat/application/usecase"
	chat "go-relay/internal/pkg/chat/domain"
	repository "go-relay/internal/pkg/chat/persistence/repository/port"
)

// CreateChatController handles the chat creation endpoint.
type CreateChatController struct {
	UC *usecase.CreateChatUseCase
}

func NewCreateChatController(repo repository.ChatRepository) *CreateChatController {
	return &CreateChatController{UC: usecase.NewCreateChatUseCase(repo)}
}

type createChatRequest struct {
	Kind           string   `json:"kind" binding:"required"`
	Name           *string  `json:"name"`
	Description    *string  `json:"description"`
	ParticipantIDs []string `json:"participant_ids" binding:"required"`
}

func (h *CreateChatController) Handle() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req createChatRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
		defer cancel()

		id, err := h.UC.Execute(ctx, usecase.CreateChatInput{
			Kind:           chat.ChatKind(req.Kind),
			Name:           req.Name,
			Description:    req.Description,
			ParticipantIDs: req.ParticipantIDs,
		})
		if err != nil {
			status := http.StatusBadRequest
			if errors.Is(err, usecase.ErrPersistence) {
				status = http.StatusInternalServerError
			}
			c.JSON(status, gin.H{"error": err.Error()})
			return
		}

		c.JSON(http.StatusCreated, gin.H{"id": id, "kind": req.Kind})
	}
}
