package controller

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go-relay/internal/infrastructure/realtime"
	"go-relay/internal/infrastructure/security"
	chat "go-relay/internal/pkg/chat/domain"
	"go-relay/internal/pkg/chat/event"
	repository "go-relay/internal/pkg/chat/persistence/repository/port"
)

var socketTestOpts = security.Options{Secret: []byte("socket-test-secret")}

// memRepo is an in-memory ChatRepository for endpoint tests.
type memRepo struct {
	mu       sync.Mutex
	members  map[string]map[string]bool
	messages map[string]chat.Message
	order    []string
	statuses map[string]map[string]chat.DeliveryStatus
	presence map[string]chat.Presence
	contacts map[string][]string
	nextID   int
}

func newMemRepo() *memRepo {
	return &memRepo{
		members:  make(map[string]map[string]bool),
		messages: make(map[string]chat.Message),
		statuses: make(map[string]map[string]chat.DeliveryStatus),
		presence: make(map[string]chat.Presence),
		contacts: make(map[string][]string),
	}
}

var _ repository.ChatRepository = (*memRepo)(nil)

func (r *memRepo) addMember(chatID, userID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.members[chatID] == nil {
		r.members[chatID] = make(map[string]bool)
	}
	r.members[chatID][userID] = true
}

func (r *memRepo) IsActiveParticipant(_ context.Context, chatID, userID string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.members[chatID][userID], nil
}

func (r *memRepo) ListActiveParticipantIDs(_ context.Context, chatID string) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var ids []string
	for uid, active := range r.members[chatID] {
		if active {
			ids = append(ids, uid)
		}
	}
	return ids, nil
}

func (r *memRepo) ListActiveChatIDs(_ context.Context, userID string) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var ids []string
	for chatID, users := range r.members {
		if users[userID] {
			ids = append(ids, chatID)
		}
	}
	return ids, nil
}

func (r *memRepo) CreateChat(_ context.Context, _ chat.Chat, participants []chat.Participant) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	id := fmt.Sprintf("chat-%d", r.nextID)
	r.members[id] = make(map[string]bool)
	for _, p := range participants {
		r.members[id][p.UserID] = p.Active
	}
	return id, nil
}

func (r *memRepo) TouchChat(context.Context, string) error { return nil }

func (r *memRepo) SaveMessage(_ context.Context, m chat.Message) (string, time.Time, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	m.ID = fmt.Sprintf("msg-%d", r.nextID)
	m.CreatedAt = time.Now()
	r.messages[m.ID] = m
	r.order = append(r.order, m.ID)
	return m.ID, m.CreatedAt, nil
}

func (r *memRepo) ListMessages(_ context.Context, chatID string, limit, offset int) ([]chat.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []chat.Message
	for _, id := range r.order {
		if m := r.messages[id]; m.ChatID == chatID {
			out = append(out, m)
		}
	}
	if offset > len(out) {
		offset = len(out)
	}
	out = out[offset:]
	if limit > 0 && limit < len(out) {
		out = out[:limit]
	}
	return out, nil
}

func (r *memRepo) GetMessageRoute(_ context.Context, messageID string) (string, string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.messages[messageID]
	if !ok {
		return "", "", chat.ErrNotFound
	}
	return m.SenderID, m.ChatID, nil
}

func (r *memRepo) InsertStatuses(_ context.Context, messageID string, recipientIDs []string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	rows := r.statuses[messageID]
	if rows == nil {
		rows = make(map[string]chat.DeliveryStatus)
		r.statuses[messageID] = rows
	}
	for _, uid := range recipientIDs {
		if _, exists := rows[uid]; !exists {
			rows[uid] = chat.StatusSent
		}
	}
	return nil
}

func (r *memRepo) AdvanceStatus(_ context.Context, messageID, userID string, to chat.DeliveryStatus) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	current, ok := r.statuses[messageID][userID]
	if !ok || !current.Advances(to) {
		return false, nil
	}
	r.statuses[messageID][userID] = to
	return true, nil
}

func (r *memRepo) MarkChatDelivered(_ context.Context, chatID, userID string) ([]repository.PendingDelivery, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var pending []repository.PendingDelivery
	for _, id := range r.order {
		m := r.messages[id]
		if m.ChatID != chatID {
			continue
		}
		if r.statuses[id][userID] == chat.StatusSent {
			r.statuses[id][userID] = chat.StatusDelivered
			pending = append(pending, repository.PendingDelivery{MessageID: id, SenderID: m.SenderID})
		}
	}
	return pending, nil
}

func (r *memRepo) UpdatePresence(_ context.Context, userID string, status chat.Presence) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.presence[userID] = status
	return nil
}

func (r *memRepo) ListContactIDs(_ context.Context, userID string) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.contacts[userID], nil
}

func (r *memRepo) AddReaction(context.Context, string, string, string) error    { return nil }
func (r *memRepo) RemoveReaction(context.Context, string, string, string) error { return nil }

func (r *memRepo) statusOf(messageID, userID string) chat.DeliveryStatus {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.statuses[messageID][userID]
}

func (r *memRepo) presenceOf(userID string) chat.Presence {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.presence[userID]
}

// socketServer spins a full gin server with only the websocket route mounted.
func socketServer(t *testing.T, repo *memRepo) (*httptest.Server, *realtime.Registry) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	registry := realtime.NewRegistry()
	rooms := realtime.NewRooms()
	verifier := security.NewHMACVerifier(socketTestOpts)

	engine := gin.New()
	ctl := NewChatSocketController(repo, verifier, registry, rooms, nil)
	engine.GET("/ws", ctl.Handle())

	srv := httptest.NewServer(engine)
	t.Cleanup(func() {
		registry.Close()
		srv.Close()
	})
	return srv, registry
}

func dialSocket(t *testing.T, srv *httptest.Server, userID string) *websocket.Conn {
	t.Helper()
	token, err := security.Generate(socketTestOpts, security.Identity{UserID: userID})
	require.NoError(t, err)

	url := strings.Replace(srv.URL, "http://", "ws://", 1) + "/ws?token=" + token
	ws, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = ws.Close() })
	return ws
}

// awaitEvent reads frames until one with the wanted name arrives, unmarshaling
// its payload into out when non-nil.
func awaitEvent(t *testing.T, ws *websocket.Conn, name string, out any) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	require.NoError(t, ws.SetReadDeadline(deadline))
	for {
		_, data, err := ws.ReadMessage()
		require.NoError(t, err, "waiting for %q", name)
		var env event.Envelope
		require.NoError(t, json.Unmarshal(data, &env))
		if env.Event != name {
			continue
		}
		if out != nil {
			require.NoError(t, json.Unmarshal(env.Data, out))
		}
		return
	}
}

func send(t *testing.T, ws *websocket.Conn, name string, payload any) {
	t.Helper()
	frame, err := event.Marshal(name, payload)
	require.NoError(t, err)
	require.NoError(t, ws.WriteMessage(websocket.TextMessage, frame))
}

func TestHandshakeRejectsMissingCredential(t *testing.T) {
	srv, _ := socketServer(t, newMemRepo())

	resp, err := http.Get(srv.URL + "/ws")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestHandshakeRejectsForgedToken(t *testing.T) {
	srv, _ := socketServer(t, newMemRepo())
	forged, err := security.Generate(security.Options{Secret: []byte("wrong")}, security.Identity{UserID: "alice"})
	require.NoError(t, err)

	url := strings.Replace(srv.URL, "http://", "ws://", 1) + "/ws?token=" + forged
	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestConnectAcknowledgesAndGoesOnline(t *testing.T) {
	repo := newMemRepo()
	srv, registry := socketServer(t, repo)

	ws := dialSocket(t, srv, "alice")
	var ack event.Connected
	awaitEvent(t, ws, event.OutConnected, &ack)
	assert.Equal(t, "alice", ack.UserID)
	assert.Equal(t, chat.PresenceOnline, repo.presenceOf("alice"))
	assert.True(t, registry.Online("alice"))

	require.NoError(t, ws.Close())
	require.Eventually(t, func() bool {
		return repo.presenceOf("alice") == chat.PresenceOffline && !registry.Online("alice")
	}, 3*time.Second, 20*time.Millisecond)
}

func TestSendMessageReachesResyncedMember(t *testing.T) {
	repo := newMemRepo()
	repo.addMember("chat-1", "alice")
	repo.addMember("chat-1", "bob")
	srv, _ := socketServer(t, repo)

	alice := dialSocket(t, srv, "alice")
	awaitEvent(t, alice, event.OutConnected, nil)
	bob := dialSocket(t, srv, "bob")
	awaitEvent(t, bob, event.OutConnected, nil)

	content := "hello bob"
	send(t, alice, event.InSendMessage, event.SendMessage{ChatID: "chat-1", Content: &content})

	// Both room members were resynced at connect, so both see the broadcast;
	// the sender additionally gets the ack.
	var nm event.NewMessage
	awaitEvent(t, bob, event.OutNewMessage, &nm)
	assert.Equal(t, "alice", nm.Sender)
	assert.Equal(t, "hello bob", *nm.Content)

	var ack event.MessageSent
	awaitEvent(t, alice, event.OutMessageSent, &ack)
	assert.Equal(t, nm.ID, ack.MessageID)
	assert.Equal(t, "chat-1", ack.ChatID)

	// bob was connected, so his row is already confirmed delivered.
	assert.Equal(t, chat.StatusDelivered, repo.statusOf(nm.ID, "bob"))
}

func TestJoinChatDeniedForNonParticipant(t *testing.T) {
	repo := newMemRepo()
	repo.addMember("chat-1", "alice")
	srv, _ := socketServer(t, repo)

	mallory := dialSocket(t, srv, "mallory")
	awaitEvent(t, mallory, event.OutConnected, nil)

	send(t, mallory, event.InJoinChat, event.ChatRef{ChatID: "chat-1"})
	var e event.Error
	awaitEvent(t, mallory, event.OutError, &e)
	assert.Equal(t, event.ErrAccessDenied, e.Type)
}

func TestExplicitJoinAfterMembershipGranted(t *testing.T) {
	repo := newMemRepo()
	srv, _ := socketServer(t, repo)

	bob := dialSocket(t, srv, "bob")
	awaitEvent(t, bob, event.OutConnected, nil)

	// Membership granted after the connect-time resync ran.
	repo.addMember("chat-9", "bob")
	send(t, bob, event.InJoinChat, event.ChatRef{ChatID: "chat-9"})

	var joined event.ChatRef
	awaitEvent(t, bob, event.OutChatJoined, &joined)
	assert.Equal(t, "chat-9", joined.ChatID)
}

func TestLeaveChatStopsRoomTraffic(t *testing.T) {
	repo := newMemRepo()
	repo.addMember("chat-1", "alice")
	repo.addMember("chat-1", "bob")
	srv, _ := socketServer(t, repo)

	alice := dialSocket(t, srv, "alice")
	awaitEvent(t, alice, event.OutConnected, nil)
	bob := dialSocket(t, srv, "bob")
	awaitEvent(t, bob, event.OutConnected, nil)

	send(t, bob, event.InLeaveChat, event.ChatRef{ChatID: "chat-1"})
	awaitEvent(t, bob, event.OutChatLeft, nil)

	content := "anyone here?"
	send(t, alice, event.InSendMessage, event.SendMessage{ChatID: "chat-1", Content: &content})
	var ack event.MessageSent
	awaitEvent(t, alice, event.OutMessageSent, &ack)

	// bob left the room but stays a participant: no live frame, yet his
	// status row exists and he counted as online for delivery confirmation.
	require.NoError(t, bob.SetReadDeadline(time.Now().Add(200*time.Millisecond)))
	_, _, err := bob.ReadMessage()
	assert.Error(t, err)
	assert.Equal(t, chat.StatusDelivered, repo.statusOf(ack.MessageID, "bob"))
}

func TestUnknownEventIsRejected(t *testing.T) {
	srv, _ := socketServer(t, newMemRepo())
	ws := dialSocket(t, srv, "alice")
	awaitEvent(t, ws, event.OutConnected, nil)

	send(t, ws, "teleport", event.ChatRef{ChatID: "chat-1"})
	var e event.Error
	awaitEvent(t, ws, event.OutError, &e)
	assert.Equal(t, event.ErrValidation, e.Type)
	assert.Contains(t, e.Message, "teleport")
}

func TestTypingRequiresSubscription(t *testing.T) {
	repo := newMemRepo()
	repo.addMember("chat-1", "alice")
	repo.addMember("chat-1", "bob")
	srv, _ := socketServer(t, repo)

	alice := dialSocket(t, srv, "alice")
	awaitEvent(t, alice, event.OutConnected, nil)
	bob := dialSocket(t, srv, "bob")
	awaitEvent(t, bob, event.OutConnected, nil)

	// Typing in a room the sender never joined is refused.
	send(t, alice, event.InTypingStart, event.ChatRef{ChatID: "chat-77"})
	var e event.Error
	awaitEvent(t, alice, event.OutError, &e)
	assert.Equal(t, event.ErrAccessDenied, e.Type)

	// In the subscribed room the indicator reaches the other member only.
	send(t, alice, event.InTypingStart, event.ChatRef{ChatID: "chat-1"})
	var typing event.Typing
	awaitEvent(t, bob, event.OutTyping, &typing)
	assert.Equal(t, "alice", typing.UserID)
	assert.True(t, typing.IsTyping)

	send(t, alice, event.InTypingStop, event.ChatRef{ChatID: "chat-1"})
	awaitEvent(t, bob, event.OutTyping, &typing)
	assert.False(t, typing.IsTyping)
}

func TestSecondSessionReplacesFirst(t *testing.T) {
	repo := newMemRepo()
	srv, registry := socketServer(t, repo)

	first := dialSocket(t, srv, "alice")
	awaitEvent(t, first, event.OutConnected, nil)

	second := dialSocket(t, srv, "alice")
	awaitEvent(t, second, event.OutConnected, nil)

	// The superseded socket is closed with the session-replaced code.
	require.NoError(t, first.SetReadDeadline(time.Now().Add(3*time.Second)))
	for {
		_, _, err := first.ReadMessage()
		if err != nil {
			assert.True(t, websocket.IsCloseError(err, 4001), "got %v", err)
			break
		}
	}

	// The replacement session stays registered and usable.
	assert.True(t, registry.Online("alice"))
	send(t, second, event.InUpdateStatus, event.UpdateStatus{Status: "busy"})
	require.Eventually(t, func() bool {
		return repo.presenceOf("alice") == chat.PresenceBusy
	}, 3*time.Second, 20*time.Millisecond)
}

func TestMessageReadNotifiesSender(t *testing.T) {
	repo := newMemRepo()
	repo.addMember("chat-1", "alice")
	repo.addMember("chat-1", "bob")
	srv, _ := socketServer(t, repo)

	alice := dialSocket(t, srv, "alice")
	awaitEvent(t, alice, event.OutConnected, nil)
	bob := dialSocket(t, srv, "bob")
	awaitEvent(t, bob, event.OutConnected, nil)

	content := "read me"
	send(t, alice, event.InSendMessage, event.SendMessage{ChatID: "chat-1", Content: &content})
	var nm event.NewMessage
	awaitEvent(t, bob, event.OutNewMessage, &nm)

	send(t, bob, event.InRead, event.MessageRef{MessageID: nm.ID})

	var su event.StatusUpdate
	awaitEvent(t, alice, event.OutStatusUpdate, &su)
	assert.Equal(t, nm.ID, su.MessageID)
	assert.Equal(t, "bob", su.UserID)
	assert.Equal(t, string(chat.StatusRead), su.Status)
	assert.Equal(t, chat.StatusRead, repo.statusOf(nm.ID, "bob"))
}

func TestOfflineBacklogDeliveredOnJoin(t *testing.T) {
	repo := newMemRepo()
	repo.addMember("chat-1", "alice")
	repo.addMember("chat-1", "bob")
	srv, _ := socketServer(t, repo)

	alice := dialSocket(t, srv, "alice")
	awaitEvent(t, alice, event.OutConnected, nil)

	// bob is offline while alice sends.
	content := "missed you"
	send(t, alice, event.InSendMessage, event.SendMessage{ChatID: "chat-1", Content: &content})
	var ack event.MessageSent
	awaitEvent(t, alice, event.OutMessageSent, &ack)
	require.Equal(t, chat.StatusSent, repo.statusOf(ack.MessageID, "bob"))

	// bob connects and explicitly joins; catch-up advances the backlog and
	// alice hears about it.
	bob := dialSocket(t, srv, "bob")
	awaitEvent(t, bob, event.OutConnected, nil)
	send(t, bob, event.InJoinChat, event.ChatRef{ChatID: "chat-1"})
	awaitEvent(t, bob, event.OutChatJoined, nil)

	var su event.StatusUpdate
	awaitEvent(t, alice, event.OutStatusUpdate, &su)
	assert.Equal(t, ack.MessageID, su.MessageID)
	assert.Equal(t, string(chat.StatusDelivered), su.Status)
	assert.Equal(t, chat.StatusDelivered, repo.statusOf(ack.MessageID, "bob"))
}
