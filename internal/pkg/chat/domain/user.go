package chat

import "time"

// Presence is a user's communicated availability state, independent of
// connectivity bookkeeping.
type Presence string

const (
	PresenceOnline  Presence = "online"
	PresenceAway    Presence = "away"
	PresenceBusy    Presence = "busy"
	PresenceOffline Presence = "offline"
)

// Valid reports whether p is one of the accepted presence values.
func (p Presence) Valid() bool {
	switch p {
	case PresenceOnline, PresenceAway, PresenceBusy, PresenceOffline:
		return true
	}
	return false
}

// User mirrors the persisted user record as far as the relay cares about it.
type User struct {
	ID          string    `db:"id"`
	Username    string    `db:"username"`
	DisplayName string    `db:"display_name"`
	Status      Presence  `db:"status"`
	LastSeen    time.Time `db:"last_seen"`
}
