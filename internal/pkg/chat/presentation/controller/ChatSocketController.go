package controller

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	cacheport "go-relay/internal/infrastructure/cache/port"
	"go-relay/internal/infrastructure/logging"
	"go-relay/internal/infrastructure/realtime"
	"go-relay/internal/infrastructure/security"
	"go-relay/internal/pkg/chat/application/usecase"
	chat "go-relay/internal/pkg/chat/domain"
	"go-relay/internal/pkg/chat/event"
	repository "go-relay/internal/pkg/chat/persistence/repository/port"
)

const (
	readTimeout  = 60 * time.Second
	readLimit    = 1 << 20 // 1MB payload cap
	storeTimeout = 5 * time.Second
)

var wsUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// Origin policy is enforced at the edge proxy.
		return true
	},
}

// session is the per-connection state threaded through every handler.
type session struct {
	conn   *realtime.Connection
	userID string
}

// handlerFunc is one entry of the inbound dispatch table.
type handlerFunc func(ctx context.Context, sess *session, data json.RawMessage)

// ChatSocketController owns the websocket endpoint: it verifies the handshake
// credential, admits the connection into the registry, resubscribes it to its
// chats, and runs the read loop over an explicit event dispatch table.
type ChatSocketController struct {
	registry *realtime.Registry
	rooms    *realtime.Rooms
	verifier security.Verifier

	joinUC     *usecase.JoinChatUseCase
	sendUC     *usecase.SendMessageUseCase
	statusUC   *usecase.UpdateMessageStatusUseCase
	presenceUC *usecase.UpdatePresenceUseCase
	reactUC    *usecase.ReactToMessageUseCase

	handlers map[string]handlerFunc
}

func NewChatSocketController(
	repo repository.ChatRepository,
	verifier security.Verifier,
	registry *realtime.Registry,
	rooms *realtime.Rooms,
	cache cacheport.Cache,
) *ChatSocketController {
	ctl := &ChatSocketController{
		registry:   registry,
		rooms:      rooms,
		verifier:   verifier,
		joinUC:     usecase.NewJoinChatUseCase(repo, registry),
		sendUC:     usecase.NewSendMessageUseCase(repo, rooms, registry),
		statusUC:   usecase.NewUpdateMessageStatusUseCase(repo, registry),
		presenceUC: usecase.NewUpdatePresenceUseCase(repo, registry, cache),
		reactUC:    usecase.NewReactToMessageUseCase(repo, rooms),
	}
	ctl.handlers = map[string]handlerFunc{
		event.InJoinChat:       ctl.handleJoinChat,
		event.InLeaveChat:      ctl.handleLeaveChat,
		event.InSendMessage:    ctl.handleSendMessage,
		event.InDelivered:      ctl.handleDelivered,
		event.InRead:           ctl.handleRead,
		event.InTypingStart:    ctl.typingHandler(true),
		event.InTypingStop:     ctl.typingHandler(false),
		event.InAddReaction:    ctl.handleAddReaction,
		event.InRemoveReaction: ctl.handleRemoveReaction,
		event.InUpdateStatus:   ctl.handleUpdateStatus,
	}
	return ctl
}

// Handle authenticates the handshake, upgrades, and processes frames until
// the client disconnects. Verification failure rejects the connection before
// any event is accepted.
func (ctl *ChatSocketController) Handle() gin.HandlerFunc {
	return func(c *gin.Context) {
		identity, err := ctl.verifier.Verify(bearerCredential(c))
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credential"})
			return
		}

		ws, err := wsUpgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			// Upgrade already wrote the response.
			return
		}

		conn := realtime.NewConnection(identity.UserID, ws)
		sess := &session{conn: conn, userID: identity.UserID}

		if replaced := ctl.registry.Register(conn); replaced != nil {
			ctl.rooms.Drop(replaced)
			replaced.Close(4001, "session replaced")
		}
		conn.Start()

		// Cleanup must be idempotent: the read loop exit can race shutdown.
		var cleanupOnce sync.Once
		cleanup := func() {
			cleanupOnce.Do(func() {
				ctl.rooms.Drop(conn)
				if ctl.registry.Unregister(conn) {
					ctl.setPresence(sess, chat.PresenceOffline)
				}
				conn.Close(websocket.CloseNormalClosure, "session closed")
			})
		}
		defer cleanup()

		ctl.setPresence(sess, chat.PresenceOnline)
		ctl.resyncRooms(c.Request.Context(), sess)

		if payload, err := event.Marshal(event.OutConnected, event.Connected{UserID: identity.UserID}); err == nil {
			_ = conn.Send(payload)
		}

		ws.SetReadLimit(readLimit)
		_ = ws.SetReadDeadline(time.Now().Add(readTimeout))
		ws.SetPongHandler(func(string) error {
			return ws.SetReadDeadline(time.Now().Add(readTimeout))
		})

		for {
			_, data, err := ws.ReadMessage()
			if err != nil {
				if !isExpectedClose(err) {
					logging.Debug("read loop ended", zap.String("user", sess.userID), zap.Error(err))
				}
				return
			}
			_ = ws.SetReadDeadline(time.Now().Add(readTimeout))

			var frame event.Envelope
			if err := json.Unmarshal(data, &frame); err != nil {
				ctl.replyError(sess, event.ErrValidation, "invalid frame")
				continue
			}

			handler, ok := ctl.handlers[frame.Event]
			if !ok {
				ctl.replyError(sess, event.ErrValidation, "unknown event: "+frame.Event)
				continue
			}

			ctx, cancel := context.WithTimeout(c.Request.Context(), storeTimeout)
			handler(ctx, sess, frame.Data)
			cancel()
		}
	}
}

// resyncRooms subscribes the fresh connection to every chat the user actively
// belongs to, so room fan-out works before any explicit join_chat.
func (ctl *ChatSocketController) resyncRooms(ctx context.Context, sess *session) {
	ctx, cancel := context.WithTimeout(ctx, storeTimeout)
	defer cancel()
	chatIDs, err := ctl.joinUC.Resync(ctx, sess.userID)
	if err != nil {
		logging.Warn("room resync failed", zap.String("user", sess.userID), zap.Error(err))
		return
	}
	for _, chatID := range chatIDs {
		ctl.rooms.Join(chatID, sess.conn)
	}
}

func (ctl *ChatSocketController) handleJoinChat(ctx context.Context, sess *session, data json.RawMessage) {
	var in event.ChatRef
	if err := json.Unmarshal(data, &in); err != nil || in.ChatID == "" {
		ctl.replyError(sess, event.ErrValidation, "chatId is required")
		return
	}

	err := ctl.joinUC.Execute(ctx, usecase.JoinChatInput{ChatID: in.ChatID, UserID: sess.userID})
	if err != nil {
		ctl.replyUseCaseError(sess, err)
		return
	}

	ctl.rooms.Join(in.ChatID, sess.conn)
	ctl.reply(sess, event.OutChatJoined, event.ChatRef{ChatID: in.ChatID})
}

func (ctl *ChatSocketController) handleLeaveChat(ctx context.Context, sess *session, data json.RawMessage) {
	var in event.ChatRef
	if err := json.Unmarshal(data, &in); err != nil || in.ChatID == "" {
		ctl.replyError(sess, event.ErrValidation, "chatId is required")
		return
	}
	// Local unsubscribe only; persisted membership is untouched.
	ctl.rooms.Leave(in.ChatID, sess.conn)
	ctl.reply(sess, event.OutChatLeft, event.ChatRef{ChatID: in.ChatID})
}

func (ctl *ChatSocketController) handleSendMessage(ctx context.Context, sess *session, data json.RawMessage) {
	var in event.SendMessage
	if err := json.Unmarshal(data, &in); err != nil || in.ChatID == "" {
		ctl.replyError(sess, event.ErrValidation, "chatId is required")
		return
	}

	msgType := chat.MessageText
	if in.Type != "" {
		msgType = chat.MessageType(in.Type)
	}

	msg, err := ctl.sendUC.Execute(ctx, usecase.SendMessageInput{
		ChatID:    in.ChatID,
		SenderID:  sess.userID,
		Content:   in.Content,
		MsgType:   msgType,
		ReplyTo:   in.ReplyTo,
		MediaURL:  in.MediaURL,
		MediaName: in.MediaName,
	})
	if err != nil {
		switch {
		case errors.Is(err, usecase.ErrPersistence):
			ctl.replyError(sess, event.ErrSendFailed, "failed to send message")
		case errors.Is(err, chat.ErrNotParticipant):
			ctl.replyError(sess, event.ErrAccessDenied, "not a member of this chat")
		default:
			ctl.replyError(sess, event.ErrValidation, err.Error())
		}
		return
	}

	ctl.reply(sess, event.OutMessageSent, event.MessageSent{MessageID: msg.ID, ChatID: msg.ChatID})
}

func (ctl *ChatSocketController) handleDelivered(ctx context.Context, sess *session, data json.RawMessage) {
	ctl.applyStatus(ctx, sess, data, chat.StatusDelivered)
}

func (ctl *ChatSocketController) handleRead(ctx context.Context, sess *session, data json.RawMessage) {
	ctl.applyStatus(ctx, sess, data, chat.StatusRead)
}

func (ctl *ChatSocketController) applyStatus(ctx context.Context, sess *session, data json.RawMessage, status chat.DeliveryStatus) {
	var in event.MessageRef
	if err := json.Unmarshal(data, &in); err != nil || in.MessageID == "" {
		ctl.replyError(sess, event.ErrValidation, "messageId is required")
		return
	}
	err := ctl.statusUC.Execute(ctx, usecase.UpdateMessageStatusInput{
		MessageID: in.MessageID,
		UserID:    sess.userID,
		Status:    status,
	})
	if err != nil {
		ctl.replyUseCaseError(sess, err)
	}
}

// typingHandler builds the start/stop variants of the transient typing
// broadcast. Nothing is persisted and there is no auto-expiry; a consuming
// UI debounces locally. The sender must be subscribed to the room, which
// implies verified membership.
func (ctl *ChatSocketController) typingHandler(isTyping bool) handlerFunc {
	return func(ctx context.Context, sess *session, data json.RawMessage) {
		var in event.ChatRef
		if err := json.Unmarshal(data, &in); err != nil || in.ChatID == "" {
			ctl.replyError(sess, event.ErrValidation, "chatId is required")
			return
		}
		if !ctl.rooms.Contains(in.ChatID, sess.conn) {
			ctl.replyError(sess, event.ErrAccessDenied, "not subscribed to this chat")
			return
		}
		payload, err := event.Marshal(event.OutTyping, event.Typing{
			ChatID:   in.ChatID,
			UserID:   sess.userID,
			IsTyping: isTyping,
		})
		if err != nil {
			return
		}
		ctl.rooms.Broadcast(in.ChatID, payload, sess.userID)
	}
}

func (ctl *ChatSocketController) handleAddReaction(ctx context.Context, sess *session, data json.RawMessage) {
	ctl.applyReaction(ctx, sess, data, ctl.reactUC.Add)
}

func (ctl *ChatSocketController) handleRemoveReaction(ctx context.Context, sess *session, data json.RawMessage) {
	ctl.applyReaction(ctx, sess, data, ctl.reactUC.Remove)
}

func (ctl *ChatSocketController) applyReaction(ctx context.Context, sess *session, data json.RawMessage, apply func(context.Context, usecase.ReactionInput) error) {
	var in event.Reaction
	if err := json.Unmarshal(data, &in); err != nil || in.MessageID == "" || in.Emoji == "" {
		ctl.replyError(sess, event.ErrValidation, "messageId and emoji are required")
		return
	}
	err := apply(ctx, usecase.ReactionInput{
		MessageID: in.MessageID,
		UserID:    sess.userID,
		Emoji:     in.Emoji,
	})
	if err != nil && !errors.Is(err, chat.ErrNotFound) {
		ctl.replyUseCaseError(sess, err)
	}
}

func (ctl *ChatSocketController) handleUpdateStatus(ctx context.Context, sess *session, data json.RawMessage) {
	var in event.UpdateStatus
	if err := json.Unmarshal(data, &in); err != nil {
		ctl.replyError(sess, event.ErrValidation, "invalid payload")
		return
	}
	err := ctl.presenceUC.Execute(ctx, usecase.UpdatePresenceInput{
		UserID: sess.userID,
		Status: chat.Presence(in.Status),
	})
	if err != nil {
		if errors.Is(err, chat.ErrInvalidPresence) {
			ctl.replyError(sess, event.ErrValidation, "invalid status value")
			return
		}
		ctl.replyUseCaseError(sess, err)
	}
}

// setPresence drives the connect/disconnect presence transitions. Failures
// are logged, never fatal to the connection lifecycle.
func (ctl *ChatSocketController) setPresence(sess *session, status chat.Presence) {
	ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
	defer cancel()
	err := ctl.presenceUC.Execute(ctx, usecase.UpdatePresenceInput{UserID: sess.userID, Status: status})
	if err != nil {
		logging.Warn("presence transition failed",
			zap.String("user", sess.userID), zap.String("status", string(status)), zap.Error(err))
	}
}

func (ctl *ChatSocketController) reply(sess *session, name string, payload any) {
	if data, err := event.Marshal(name, payload); err == nil {
		_ = sess.conn.Send(data)
	}
}

func (ctl *ChatSocketController) replyUseCaseError(sess *session, err error) {
	switch {
	case errors.Is(err, chat.ErrNotParticipant):
		ctl.replyError(sess, event.ErrAccessDenied, "not a member of this chat")
	case errors.Is(err, usecase.ErrPersistence):
		ctl.replyError(sess, event.ErrStore, "unexpected persistence error")
	case errors.Is(err, chat.ErrNotFound):
		ctl.replyError(sess, event.ErrNotFound, "no such chat or message")
	default:
		ctl.replyError(sess, event.ErrValidation, err.Error())
	}
}

func (ctl *ChatSocketController) replyError(sess *session, errType, message string) {
	ctl.reply(sess, event.OutError, event.Error{Type: errType, Message: message})
}

// bearerCredential extracts the handshake credential from the Authorization
// header or, for browser clients that cannot set headers on websocket
// upgrades, the token query parameter.
func bearerCredential(c *gin.Context) string {
	if authz := c.GetHeader("Authorization"); authz != "" {
		const prefix = "Bearer "
		if len(authz) > len(prefix) && authz[:len(prefix)] == prefix {
			return authz[len(prefix):]
		}
	}
	return c.Query("token")
}

func isExpectedClose(err error) bool {
	return websocket.IsCloseError(err,
		websocket.CloseNormalClosure,
		websocket.CloseGoingAway,
		websocket.CloseNoStatusReceived) ||
		errors.Is(err, websocket.ErrCloseSent)
}
