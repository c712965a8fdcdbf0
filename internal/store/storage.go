package store

import (
	"context"
	"errors"
	"time"
)

// BroadcastReceiver is the reserved receiver value meaning "deliver to
// every connection". Public messages are stored against it.
const BroadcastReceiver = "all"

// ErrNotFound reports a lookup that matched no row.
var ErrNotFound = errors.New("not found")

// Message is one immutable chat record. CreatedAt is assigned by the server
// at persistence time; insertion order (ID) is the sole ordering key.
type Message struct {
	ID        int64
	Sender    string
	Receiver  string
	Body      string
	Private   bool
	CreatedAt time.Time
}

// User is the persistent bookkeeping row for a participant. The online flag
// records history; the in-memory presence registry is authoritative for
// routing.
type User struct {
	Username  string
	ConnID    string
	Online    bool
	CreatedAt time.Time
}

// Store is the append-only message log plus the user registry. All writes
// are best-effort from the router's point of view: a failing store degrades
// history, never live routing.
type Store interface {
	UpsertUserOnline(ctx context.Context, username, connID string) error
	// MarkOfflineByConnection flips the online flag for the user row bound
	// to connID. Keying by connection means a username rebound to a newer
	// connection is untouched by the older connection's disconnect.
	MarkOfflineByConnection(ctx context.Context, connID string) error
	GetUser(ctx context.Context, username string) (User, error)

	InsertMessage(ctx context.Context, sender, receiver, body string, private bool) (Message, error)
	// PublicHistory returns the most recent public messages, oldest-first.
	PublicHistory(ctx context.Context, limit int) ([]Message, error)
	// PrivateHistory returns the most recent private messages between the
	// two users, oldest-first. Symmetric in its arguments.
	PrivateHistory(ctx context.Context, userA, userB string, limit int) ([]Message, error)

	Close() error
}
