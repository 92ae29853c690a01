package task

import (
	"context"
	"encoding/json"
	"time"

	qport "go-relay/internal/infrastructure/queue/port"
	"go-relay/internal/pkg/chat/application/usecase"
	chat "go-relay/internal/pkg/chat/domain"
	"go-relay/internal/pkg/chat/event"
)

// SendMessageTaskType is the queue task name for message ingestion from the
// REST edge. The worker runs the same delivery engine the websocket path
// uses, so fan-out and status seeding behave identically.
const SendMessageTaskType = "chat:send_message"

// SendMessageTaskPayload is the JSON payload transported via the queue,
// kept decoupled from domain types.
type SendMessageTaskPayload struct {
	ChatID    string  `json:"chatId"`
	SenderID  string  `json:"senderId"`
	Content   *string `json:"content"`
	MsgType   string  `json:"msgType"`
	ReplyTo   *string `json:"replyToMessageId"`
	MediaURL  *string `json:"mediaUrl"`
	MediaName *string `json:"mediaFilename"`
}

// RegisterSendMessageTask binds the handler to the worker server. The sender
// gets a message_sent ack over their live connection when they have one.
func RegisterSendMessageTask(srv qport.Server, engine *usecase.SendMessageUseCase, registry usecase.Notifier) {
	srv.Register(SendMessageTaskType, func(ctx context.Context, t qport.Task) error {
		var p SendMessageTaskPayload
		if err := json.Unmarshal(t.Payload, &p); err != nil {
			// Malformed payload: retrying cannot help.
			return err
		}

		ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()

		msg, err := engine.Execute(ctx, usecase.SendMessageInput{
			ChatID:    p.ChatID,
			SenderID:  p.SenderID,
			Content:   p.Content,
			MsgType:   chat.MessageType(p.MsgType),
			ReplyTo:   p.ReplyTo,
			MediaURL:  p.MediaURL,
			MediaName: p.MediaName,
		})
		if err != nil {
			// Retry/backoff policy is the adapter's call.
			return err
		}

		if payload, err := event.Marshal(event.OutMessageSent, event.MessageSent{
			MessageID: msg.ID,
			ChatID:    msg.ChatID,
		}); err == nil {
			registry.NotifyUser(p.SenderID, payload)
		}
		return nil
	})
}
