package usecase

// Notifier routes a payload to a single user's active connection.
// realtime.Registry satisfies it; tests use an in-memory recorder.
type Notifier interface {
	NotifyUser(userID string, payload []byte) bool
	Online(userID string) bool
}

// Broadcaster fans a payload out to a chat's room subscribers.
// realtime.Rooms satisfies it.
type Broadcaster interface {
	Broadcast(chatID string, payload []byte, excludeUserID string) int
}
