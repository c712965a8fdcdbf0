package presence

import (
	"time"

	"github.com/google/uuid"
)

// State tracks where a connection sits in its lifecycle. Only joined
// connections may send or receive chat and typing events.
type State int

const (
	StateConnected State = iota // open, no identity bound yet
	StateJoined                 // identity bound, full participant
	StateClosed                 // terminal
)

// Transport is the slice of the transport layer the registry and router
// need: an identity, a best-effort send, and a teardown hook.
type Transport interface {
	ID() uuid.UUID
	Send(message []byte)
	Close(err error)
}

// Connection is the registry's representation of one open transport
// connection. Identity lives here, not on the socket object.
type Connection struct {
	ID        uuid.UUID
	IPAddress string
	Transport Transport
	Username  string // empty until the join event binds one
	State     State
	CreatedAt time.Time
}
