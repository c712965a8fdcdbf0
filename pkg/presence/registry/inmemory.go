package registry

import (
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/a-essam23/go-relay/pkg/presence"
	"github.com/google/uuid"
)

// InMemoryRegistry keeps all presence state in process memory. It is rebuilt
// empty on restart; everyone is offline until they rejoin.
type InMemoryRegistry struct {
	conns  map[uuid.UUID]*presence.Connection
	byUser map[string]uuid.UUID // latest binding per username
	order  []uuid.UUID          // admit order, drives ListOnline

	mu sync.RWMutex

	logger *slog.Logger
}

func NewInMemoryRegistry(logger *slog.Logger) *InMemoryRegistry {
	return &InMemoryRegistry{
		conns:  make(map[uuid.UUID]*presence.Connection),
		byUser: make(map[string]uuid.UUID),
		logger: logger.With(slog.String("component", "presence_registry")),
	}
}

// compile-time check to ensure InMemoryRegistry implements Registry.
var _ presence.Registry = (*InMemoryRegistry)(nil)

func (r *InMemoryRegistry) Register(conn presence.Transport, ipAddr string) (*presence.Connection, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	connID := conn.ID()
	if _, exists := r.conns[connID]; exists {
		return nil, errors.New("connection is already registered")
	}
	newConn := &presence.Connection{
		ID:        connID,
		IPAddress: ipAddr,
		Transport: conn,
		State:     presence.StateConnected,
		CreatedAt: time.Now(),
	}
	r.conns[connID] = newConn
	r.logger.Debug("Connection registered", slog.String("connID", connID.String()))
	return newConn, nil
}

func (r *InMemoryRegistry) Admit(connID uuid.UUID, username string) (*presence.Connection, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	conn, ok := r.conns[connID]
	if !ok {
		return nil, errors.New("cannot admit unknown connection")
	}

	if conn.State != presence.StateJoined {
		// First admit for this connection; it enters the snapshot now.
		r.order = append(r.order, connID)
	} else if conn.Username != username {
		// Rebinding keeps the snapshot position but the old name must stop
		// resolving to this connection.
		if current, bound := r.byUser[conn.Username]; bound && current == connID {
			delete(r.byUser, conn.Username)
		}
	}

	conn.Username = username
	conn.State = presence.StateJoined
	r.byUser[username] = connID

	r.logger.Debug("Connection admitted", slog.String("connID", connID.String()), slog.String("username", username))
	return conn, nil
}

func (r *InMemoryRegistry) Release(connID uuid.UUID) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	conn, ok := r.conns[connID]
	if !ok {
		// already released
		return "", false
	}
	delete(r.conns, connID)

	for i, id := range r.order {
		if id == connID {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}

	username := conn.Username
	conn.State = presence.StateClosed
	if username == "" {
		r.logger.Debug("Anonymous connection released", slog.String("connID", connID.String()))
		return "", false
	}

	// Drop the username resolution only if this connection still owns it.
	// A newer connection may have rebound the same name in the meantime.
	if current, bound := r.byUser[username]; bound && current == connID {
		delete(r.byUser, username)
	}

	r.logger.Debug("Connection released", slog.String("connID", connID.String()), slog.String("username", username))
	return username, true
}

func (r *InMemoryRegistry) GetConnection(connID uuid.UUID) (*presence.Connection, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	conn, ok := r.conns[connID]
	return conn, ok
}

func (r *InMemoryRegistry) FindConnection(username string) (*presence.Connection, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	connID, ok := r.byUser[username]
	if !ok {
		return nil, false
	}
	conn, ok := r.conns[connID]
	return conn, ok
}

func (r *InMemoryRegistry) ListOnline() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	online := make([]string, 0, len(r.order))
	for _, id := range r.order {
		if conn, ok := r.conns[id]; ok && conn.Username != "" {
			online = append(online, conn.Username)
		}
	}
	return online
}

func (r *InMemoryRegistry) Connections() []*presence.Connection {
	r.mu.RLock()
	defer r.mu.RUnlock()

	conns := make([]*presence.Connection, 0, len(r.conns))
	for _, conn := range r.conns {
		conns = append(conns, conn)
	}
	return conns
}

func (r *InMemoryRegistry) JoinedConnections() []*presence.Connection {
	r.mu.RLock()
	defer r.mu.RUnlock()

	conns := make([]*presence.Connection, 0, len(r.order))
	for _, id := range r.order {
		if conn, ok := r.conns[id]; ok {
			conns = append(conns, conn)
		}
	}
	return conns
}

func (r *InMemoryRegistry) CountByIP(ipAddr string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	count := 0
	for _, conn := range r.conns {
		if conn.IPAddress == ipAddr {
			count++
		}
	}
	return count
}

func (r *InMemoryRegistry) FindOldestConnectionByIP(ipAddr string) (*presence.Connection, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var oldest *presence.Connection
	for _, conn := range r.conns {
		if conn.IPAddress != ipAddr {
			continue
		}
		if oldest == nil || conn.CreatedAt.Before(oldest.CreatedAt) {
			oldest = conn
		}
	}
	if oldest == nil {
		return nil, false
	}
	return oldest, true
}
