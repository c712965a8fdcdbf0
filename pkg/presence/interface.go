package presence

import "github.com/google/uuid"

// Registry is the single source of truth for "who is reachable right now".
// It is authoritative for routing; any persisted online flag is bookkeeping.
type Registry interface {
	// --- Connection lifecycle ---
	Register(conn Transport, ipAddr string) (*Connection, error)
	// Admit binds a username to a registered connection, overwriting any
	// prior binding for that connection. Duplicate usernames across
	// different connections are allowed; the latest admit wins resolution.
	Admit(connID uuid.UUID, username string) (*Connection, error)
	// Release removes the connection and its binding. Idempotent: releasing
	// an unknown connection is a no-op. Returns the username that was bound,
	// if any.
	Release(connID uuid.UUID) (username string, hadUser bool)
	GetConnection(connID uuid.UUID) (*Connection, bool)

	// --- Routing lookups ---
	// FindConnection resolves a username to its most recently admitted
	// connection.
	FindConnection(username string) (*Connection, bool)
	// ListOnline snapshots bound usernames in admit order, one entry per
	// bound connection. Callers wanting display order must sort themselves.
	ListOnline() []string
	Connections() []*Connection
	JoinedConnections() []*Connection

	// --- Connection limiting ---
	CountByIP(ipAddr string) int
	FindOldestConnectionByIP(ipAddr string) (*Connection, bool)
}
