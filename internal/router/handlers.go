package router

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/a-essam23/go-relay/internal/store"
	"github.com/google/uuid"
)

// offlineMarkTimeout bounds the best-effort bookkeeping write after a
// disconnect, whose own context is already gone.
const offlineMarkTimeout = 5 * time.Second

func (r *EventRouter) handleJoin(ctx context.Context, connID uuid.UUID, rawUsername string) {
	username := strings.TrimSpace(rawUsername)
	if username == "" {
		r.logger.Debug("Dropping join with empty username", slog.String("connID", connID.String()))
		return
	}

	conn, err := r.registry.Admit(connID, username)
	if err != nil {
		r.logger.Warn("Failed to admit connection", slog.String("connID", connID.String()), slog.Any("error", err))
		return
	}

	// Bookkeeping only; the registry above is what routing trusts.
	if err := r.store.UpsertUserOnline(ctx, username, connID.String()); err != nil {
		r.logger.Warn("Failed to persist user online state, continuing", slog.String("username", username), slog.Any("error", err))
	}

	snapshot := r.registry.ListOnline()
	everyone := r.registry.Connections()
	r.broadcast(everyone, EventPresenceSnapshot, snapshot)
	r.broadcast(everyone, EventUserJoined, presenceDeltaPayload{Username: username, Snapshot: snapshot})

	r.logger.Info("User joined", slog.String("username", username), slog.String("connID", connID.String()))

	messages, err := r.history.Public(ctx, 0)
	if err != nil {
		r.logger.Warn("Failed to load public history for joiner", slog.Any("error", err))
		return
	}
	if len(messages) > 0 {
		r.send(conn, EventHistoryResult, historyToPayload(messages))
	}
}

func (r *EventRouter) handlePublicMessage(ctx context.Context, connID uuid.UUID, body string) {
	conn, ok := r.joinedSender(connID)
	if !ok || strings.TrimSpace(body) == "" {
		r.logger.Debug("Dropping invalid public message", slog.String("connID", connID.String()))
		return
	}

	msg := r.persistMessage(ctx, conn.Username, store.BroadcastReceiver, body, false)
	r.broadcast(r.registry.JoinedConnections(), EventMessageReceived, messageToPayload(msg))
}

func (r *EventRouter) handlePrivateMessage(ctx context.Context, connID uuid.UUID, receiver, body string) {
	conn, ok := r.joinedSender(connID)
	receiver = strings.TrimSpace(receiver)
	if !ok || receiver == "" || strings.TrimSpace(body) == "" {
		r.logger.Debug("Dropping invalid private message", slog.String("connID", connID.String()))
		return
	}

	// Persisted regardless of reachability so the thread replays once the
	// receiver reconnects and asks for history.
	msg := r.persistMessage(ctx, conn.Username, receiver, body, true)
	payload := messageToPayload(msg)

	target, online := r.registry.FindConnection(receiver)
	if !online {
		r.send(conn, EventErrorNotice, errorNoticePayload{
			Message: fmt.Sprintf("user %s is not online", receiver),
		})
		return
	}

	if target.ID == conn.ID {
		// Self-addressed: exactly one delivery.
		r.send(conn, EventMessageReceived, payload)
		return
	}

	r.send(target, EventMessageReceived, payload)
	// The sender gets a server-confirmed echo rather than rendering
	// optimistically; private delivery is only real once the server says so.
	r.send(conn, EventMessageReceived, payload)
}

func (r *EventRouter) handleTyping(connID uuid.UUID, isTyping bool) {
	conn, ok := r.joinedSender(connID)
	if !ok {
		return
	}

	// Relay every event as-is; debouncing is the sending client's job.
	payload := typingPayload{Username: conn.Username, IsTyping: isTyping}
	frame, err := encodeFrame(EventUserTyping, payload)
	if err != nil {
		r.logger.Error("Failed to encode typing event", slog.Any("error", err))
		return
	}
	for _, other := range r.registry.JoinedConnections() {
		if other.ID == connID {
			continue
		}
		other.Transport.Send(frame)
	}
}

func (r *EventRouter) handleRequestHistory(ctx context.Context, connID uuid.UUID, scope, withUser string) {
	conn, ok := r.registry.GetConnection(connID)
	if !ok {
		return
	}

	var messages []store.Message
	var err error
	if isPrivateScope(scope) {
		withUser = strings.TrimSpace(withUser)
		joined, isJoined := r.joinedSender(connID)
		if !isJoined || withUser == "" {
			r.logger.Debug("Dropping invalid private history request", slog.String("connID", connID.String()))
			return
		}
		messages, err = r.history.Private(ctx, joined.Username, withUser, 0)
	} else {
		messages, err = r.history.Public(ctx, 0)
	}
	if err != nil {
		r.logger.Warn("Failed to load history", slog.String("scope", scope), slog.Any("error", err))
		return
	}

	// An empty conversation still gets a reply; only the implicit push on
	// join skips empty results.
	r.send(conn, EventHistoryResult, historyToPayload(messages))
}

// HandleDisconnect releases the connection's registry binding exactly once
// and notifies the remaining connections. Safe to call repeatedly.
func (r *EventRouter) HandleDisconnect(connID uuid.UUID) {
	username, hadUser := r.registry.Release(connID)
	if !hadUser {
		return
	}

	// The connection's own context is gone; bound bookkeeping write only.
	ctx, cancel := context.WithTimeout(context.Background(), offlineMarkTimeout)
	defer cancel()
	if err := r.store.MarkOfflineByConnection(ctx, connID.String()); err != nil {
		r.logger.Warn("Failed to persist user offline state, continuing", slog.String("username", username), slog.Any("error", err))
	}

	snapshot := r.registry.ListOnline()
	remaining := r.registry.Connections()
	r.broadcast(remaining, EventPresenceSnapshot, snapshot)
	r.broadcast(remaining, EventUserLeft, presenceDeltaPayload{Username: username, Snapshot: snapshot})

	r.logger.Info("User left", slog.String("username", username), slog.String("connID", connID.String()))
}

// persistMessage appends to the message log, degrading to an in-memory
// record when the store fails so live routing keeps working.
func (r *EventRouter) persistMessage(ctx context.Context, sender, receiver, body string, private bool) store.Message {
	msg, err := r.store.InsertMessage(ctx, sender, receiver, body, private)
	if err != nil {
		r.logger.Warn("Failed to persist message, routing without history", slog.String("sender", sender), slog.Any("error", err))
		return store.Message{
			Sender:    sender,
			Receiver:  receiver,
			Body:      body,
			Private:   private,
			CreatedAt: time.Now().UTC(),
		}
	}
	return msg
}
