package realtime

import "sync"

// Broadcaster is the fan-out surface consumed by the delivery and presence
// paths. Rooms implements it for the single-instance case; a cross-process
// relay would wrap it with a pub/sub bridge.
type Broadcaster interface {
	Broadcast(chatID string, payload []byte, excludeUserID string) int
}

// Rooms tracks which connections are subscribed to which chat's live event
// stream. Subscription is distinct from persisted membership: a connection
// only appears here after a successful, membership-checked join.
type Rooms struct {
	mu     sync.RWMutex
	rooms  map[string]map[string]*Connection // chatID -> connID -> connection
	byConn map[string]map[string]struct{}    // connID -> set of chatIDs
}

func NewRooms() *Rooms {
	return &Rooms{
		rooms:  make(map[string]map[string]*Connection),
		byConn: make(map[string]map[string]struct{}),
	}
}

var _ Broadcaster = (*Rooms)(nil)

// Join subscribes the connection to the chat's room.
func (r *Rooms) Join(chatID string, conn *Connection) {
	r.mu.Lock()
	room := r.rooms[chatID]
	if room == nil {
		room = make(map[string]*Connection)
		r.rooms[chatID] = room
	}
	room[conn.ID] = conn

	chats := r.byConn[conn.ID]
	if chats == nil {
		chats = make(map[string]struct{})
		r.byConn[conn.ID] = chats
	}
	chats[chatID] = struct{}{}
	r.mu.Unlock()
}

// Leave unsubscribes the connection from the chat's room.
func (r *Rooms) Leave(chatID string, conn *Connection) {
	r.mu.Lock()
	r.leaveLocked(chatID, conn.ID)
	r.mu.Unlock()
}

// Drop removes the connection from every room it joined. Idempotent, so a
// duplicate disconnect is harmless.
func (r *Rooms) Drop(conn *Connection) {
	r.mu.Lock()
	for chatID := range r.byConn[conn.ID] {
		r.leaveLocked(chatID, conn.ID)
	}
	delete(r.byConn, conn.ID)
	r.mu.Unlock()
}

// Contains reports whether the connection is subscribed to the chat.
func (r *Rooms) Contains(chatID string, conn *Connection) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.rooms[chatID][conn.ID]
	return ok
}

// Broadcast writes payload to every subscriber of the chat, skipping
// excludeUserID when non-empty. Returns the number of successful deliveries.
// The subscriber snapshot is taken under the read lock so a concurrent join
// or drop never observes a half-applied set.
func (r *Rooms) Broadcast(chatID string, payload []byte, excludeUserID string) int {
	r.mu.RLock()
	room := r.rooms[chatID]
	conns := make([]*Connection, 0, len(room))
	for _, c := range room {
		if excludeUserID != "" && c.UserID == excludeUserID {
			continue
		}
		conns = append(conns, c)
	}
	r.mu.RUnlock()

	delivered := 0
	for _, c := range conns {
		if err := c.Send(payload); err == nil {
			delivered++
		}
	}
	return delivered
}

func (r *Rooms) leaveLocked(chatID, connID string) {
	room := r.rooms[chatID]
	if room == nil {
		return
	}
	delete(room, connID)
	if len(room) == 0 {
		delete(r.rooms, chatID)
	}
	if chats, ok := r.byConn[connID]; ok {
		delete(chats, chatID)
		if len(chats) == 0 {
			delete(r.byConn, connID)
		}
	}
}
