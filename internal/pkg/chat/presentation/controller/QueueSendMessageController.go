package controller

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	queueport "go-relay/internal/infrastructure/queue/port"
	"go-relay/internal/pkg/chat/application/task"
)

// QueueSendMessageController accepts a message over REST and hands it to the
// background queue; the worker runs the delivery engine.
type QueueSendMessageController struct {
	Q queueport.Client
}

func NewQueueSendMessageController(client queueport.Client) *QueueSendMessageController {
	return &QueueSendMessageController{Q: client}
}

type queueSendRequest struct {
	SenderID  string  `json:"sender_id" binding:"required"`
	Content   *string `json:"content"`
	MsgType   string  `json:"message_type"`
	ReplyTo   *string `json:"reply_to_message_id"`
	MediaURL  *string `json:"media_url"`
	MediaName *string `json:"media_filename"`
}

func (h *QueueSendMessageController) Handle() gin.HandlerFunc {
	return func(c *gin.Context) {
		chatID := c.Param("chatId")
		if chatID == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "chatId is required"})
			return
		}

		var req queueSendRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		payload := task.SendMessageTaskPayload{
			ChatID:    chatID,
			SenderID:  req.SenderID,
			Content:   req.Content,
			MsgType:   req.MsgType,
			ReplyTo:   req.ReplyTo,
			MediaURL:  req.MediaURL,
			MediaName: req.MediaName,
		}
		b, err := json.Marshal(payload)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to encode task payload"})
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
		defer cancel()

		opts := queueport.EnqueueOption{Queue: "chat", MaxRetry: 20}
		id, err := h.Q.Enqueue(ctx, queueport.Task{Type: task.SendMessageTaskType, Payload: b}, opts)
		if err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "failed to enqueue message"})
			return
		}

		c.JSON(http.StatusAccepted, gin.H{
			"status":    "queued",
			"task_id":   id,
			"chat_id":   chatID,
			"sender_id": req.SenderID,
		})
	}
}
