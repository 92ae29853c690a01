package controller

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"go-relay/internal/pkg/chat/application/usecase"
	chat "go-relay/internal/pkg/chat/domain"
	repository "go-relay/internal/pkg/chat/persistence/repository/port"
)

// GetMessagesController handles fetching a page of a chat's history.
type GetMessagesController struct {
	UC *usecase.GetMessagesUseCase
}

func NewGetMessagesController(repo repository.ChatRepository) *GetMessagesController {
	return &GetMessagesController{UC: usecase.NewGetMessagesUseCase(repo)}
}

func (h *GetMessagesController) Handle() gin.HandlerFunc {
	return func(c *gin.Context) {
		chatID := c.Param("chatId")
		if chatID == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "chatId is required"})
			return
		}

		limit := 50
		offset := 0
		if v := c.Query("limit"); v != "" {
			if n, err := strconv.Atoi(v); err == nil && n > 0 {
				limit = n
			}
		}
		if v := c.Query("offset"); v != "" {
			if n, err := strconv.Atoi(v); err == nil && n >= 0 {
				offset = n
			}
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
		defer cancel()

		msgs, err := h.UC.Execute(ctx, usecase.GetMessagesInput{
			ChatID: chatID,
			UserID: c.Query("user_id"),
			Limit:  limit,
			Offset: offset,
		})
		if err != nil {
			status := http.StatusBadRequest
			switch {
			case errors.Is(err, usecase.ErrPersistence):
				status = http.StatusInternalServerError
			case errors.Is(err, chat.ErrNotParticipant):
				status = http.StatusForbidden
			}
			c.JSON(status, gin.H{"error": err.Error()})
			return
		}

		out := make([]gin.H, 0, len(msgs))
		for _, m := range msgs {
			out = append(out, gin.H{
				"id":                  m.ID,
				"chat_id":             m.ChatID,
				"sender_id":           m.SenderID,
				"content":             m.Content,
				"message_type":        m.MsgType,
				"reply_to_message_id": m.ReplyTo,
				"media_url":           m.MediaURL,
				"media_filename":      m.MediaName,
				"created_at":          m.CreatedAt,
			})
		}

		c.JSON(http.StatusOK, gin.H{
			"messages": out,
			"limit":    limit,
			"offset":   offset,
			"count":    len(out),
		})
	}
}
