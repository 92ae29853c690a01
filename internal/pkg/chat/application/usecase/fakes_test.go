package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	cacheport "go-relay/internal/infrastructure/cache/port"
	chat "go-relay/internal/pkg/chat/domain"
	"go-relay/internal/pkg/chat/event"
	repository "go-relay/internal/pkg/chat/persistence/repository/port"
)

// fakeRepo is an in-memory ChatRepository honoring the same row semantics as
// the postgres adapter: idempotent status inserts, rank-guarded advances,
// soft membership.
type fakeRepo struct {
	mu sync.Mutex

	members   map[string]map[string]bool // chatID -> userID -> active
	messages  map[string]chat.Message    // messageID -> message
	order     []string                   // message ids in save order
	statuses  map[string]map[string]chat.DeliveryStatus
	reactions map[string]struct{} // messageID|userID|emoji
	presence  map[string]chat.Presence
	contacts  map[string][]string // userID -> contact ids to notify
	touched   []string
	nextID    int

	// failure injection
	failSave     error
	failStatuses error
	failCatchUp  error
	failContacts error
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		members:   make(map[string]map[string]bool),
		messages:  make(map[string]chat.Message),
		statuses:  make(map[string]map[string]chat.DeliveryStatus),
		reactions: make(map[string]struct{}),
		presence:  make(map[string]chat.Presence),
		contacts:  make(map[string][]string),
	}
}

var _ repository.ChatRepository = (*fakeRepo)(nil)

func (f *fakeRepo) addMember(chatID, userID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.members[chatID] == nil {
		f.members[chatID] = make(map[string]bool)
	}
	f.members[chatID][userID] = true
}

func (f *fakeRepo) IsActiveParticipant(_ context.Context, chatID, userID string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.members[chatID][userID], nil
}

func (f *fakeRepo) ListActiveParticipantIDs(_ context.Context, chatID string) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var ids []string
	for uid, active := range f.members[chatID] {
		if active {
			ids = append(ids, uid)
		}
	}
	return ids, nil
}

func (f *fakeRepo) ListActiveChatIDs(_ context.Context, userID string) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var ids []string
	for chatID, users := range f.members {
		if users[userID] {
			ids = append(ids, chatID)
		}
	}
	return ids, nil
}

func (f *fakeRepo) CreateChat(_ context.Context, _ chat.Chat, participants []chat.Participant) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	id := fmt.Sprintf("chat-%d", f.nextID)
	f.members[id] = make(map[string]bool)
	for _, p := range participants {
		f.members[id][p.UserID] = p.Active
	}
	return id, nil
}

func (f *fakeRepo) TouchChat(_ context.Context, chatID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.touched = append(f.touched, chatID)
	return nil
}

func (f *fakeRepo) SaveMessage(_ context.Context, m chat.Message) (string, time.Time, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failSave != nil {
		return "", time.Time{}, f.failSave
	}
	f.nextID++
	m.ID = fmt.Sprintf("msg-%d", f.nextID)
	m.CreatedAt = time.Now()
	f.messages[m.ID] = m
	f.order = append(f.order, m.ID)
	return m.ID, m.CreatedAt, nil
}

func (f *fakeRepo) ListMessages(_ context.Context, chatID string, limit, offset int) ([]chat.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []chat.Message
	for _, id := range f.order {
		if m := f.messages[id]; m.ChatID == chatID {
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

func (f *fakeRepo) GetMessageRoute(_ context.Context, messageID string) (string, string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	m, ok := f.messages[messageID]
	if !ok {
		return "", "", chat.ErrNotFound
	}
	return m.SenderID, m.ChatID, nil
}

func (f *fakeRepo) InsertStatuses(_ context.Context, messageID string, recipientIDs []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failStatuses != nil {
		return f.failStatuses
	}
	rows := f.statuses[messageID]
	if rows == nil {
		rows = make(map[string]chat.DeliveryStatus)
		f.statuses[messageID] = rows
	}
	for _, uid := range recipientIDs {
		if _, exists := rows[uid]; !exists {
			rows[uid] = chat.StatusSent
		}
	}
	return nil
}

func (f *fakeRepo) AdvanceStatus(_ context.Context, messageID, userID string, to chat.DeliveryStatus) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	rows := f.statuses[messageID]
	current, ok := rows[userID]
	if !ok || !current.Advances(to) {
		return false, nil
	}
	rows[userID] = to
	return true, nil
}

func (f *fakeRepo) MarkChatDelivered(_ context.Context, chatID, userID string) ([]repository.PendingDelivery, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failCatchUp != nil {
		return nil, f.failCatchUp
	}
	var pending []repository.PendingDelivery
	for _, id := range f.order {
		m := f.messages[id]
		if m.ChatID != chatID {
			continue
		}
		if f.statuses[id][userID] == chat.StatusSent {
			f.statuses[id][userID] = chat.StatusDelivered
			pending = append(pending, repository.PendingDelivery{MessageID: id, SenderID: m.SenderID})
		}
	}
	return pending, nil
}

func (f *fakeRepo) UpdatePresence(_ context.Context, userID string, status chat.Presence) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.presence[userID] = status
	return nil
}

func (f *fakeRepo) ListContactIDs(_ context.Context, userID string) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failContacts != nil {
		return nil, f.failContacts
	}
	return f.contacts[userID], nil
}

func (f *fakeRepo) AddReaction(_ context.Context, messageID, userID, emoji string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reactions[messageID+"|"+userID+"|"+emoji] = struct{}{}
	return nil
}

func (f *fakeRepo) RemoveReaction(_ context.Context, messageID, userID, emoji string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.reactions, messageID+"|"+userID+"|"+emoji)
	return nil
}

func (f *fakeRepo) statusOf(messageID, userID string) chat.DeliveryStatus {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.statuses[messageID][userID]
}

func (f *fakeRepo) hasStatusRow(messageID, userID string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.statuses[messageID][userID]
	return ok
}

func (f *fakeRepo) reactionCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.reactions)
}

// fakeNotifier records per-user deliveries and fakes connectivity.
type fakeNotifier struct {
	mu       sync.Mutex
	online   map[string]bool
	notified map[string][][]byte
}

func newFakeNotifier(onlineUsers ...string) *fakeNotifier {
	online := make(map[string]bool, len(onlineUsers))
	for _, u := range onlineUsers {
		online[u] = true
	}
	return &fakeNotifier{online: online, notified: make(map[string][][]byte)}
}

var _ Notifier = (*fakeNotifier)(nil)

func (n *fakeNotifier) NotifyUser(userID string, payload []byte) bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	if !n.online[userID] {
		return false
	}
	n.notified[userID] = append(n.notified[userID], payload)
	return true
}

func (n *fakeNotifier) Online(userID string) bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.online[userID]
}

func (n *fakeNotifier) sent(userID string) [][]byte {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.notified[userID]
}

// fakeBroadcaster records room fan-outs.
type broadcastRec struct {
	ChatID  string
	Payload []byte
	Exclude string
}

type fakeBroadcaster struct {
	mu    sync.Mutex
	calls []broadcastRec
}

var _ Broadcaster = (*fakeBroadcaster)(nil)

func (b *fakeBroadcaster) Broadcast(chatID string, payload []byte, excludeUserID string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.calls = append(b.calls, broadcastRec{ChatID: chatID, Payload: payload, Exclude: excludeUserID})
	return 1
}

func (b *fakeBroadcaster) recorded() []broadcastRec {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]broadcastRec(nil), b.calls...)
}

// fakeCache records Set calls for the presence mirror.
type fakeCache struct {
	mu     sync.Mutex
	values map[string]string
}

func newFakeCache() *fakeCache {
	return &fakeCache{values: make(map[string]string)}
}

var _ cacheport.Cache = (*fakeCache)(nil)

func (c *fakeCache) Get(_ context.Context, key string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.values[key]
	if !ok {
		return "", cacheport.ErrMiss
	}
	return v, nil
}

func (c *fakeCache) Set(_ context.Context, key, value string, _ time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.values[key] = value
	return nil
}

func (c *fakeCache) Del(_ context.Context, keys ...string) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	var n int64
	for _, k := range keys {
		if _, ok := c.values[k]; ok {
			delete(c.values, k)
			n++
		}
	}
	return n, nil
}

func (c *fakeCache) Ping(context.Context) error { return nil }
func (c *fakeCache) Close() error               { return nil }

// decodeEvent unwraps a frame and unmarshals its payload into out.
func decodeEvent(t *testing.T, frame []byte, wantEvent string, out any) {
	t.Helper()
	var env event.Envelope
	require.NoError(t, json.Unmarshal(frame, &env))
	require.Equal(t, wantEvent, env.Event)
	if out != nil {
		require.NoError(t, json.Unmarshal(env.Data, out))
	}
}
