package router

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"

	"github.com/a-essam23/go-relay/internal/history"
	"github.com/a-essam23/go-relay/internal/store"
	"github.com/a-essam23/go-relay/pkg/presence"
	"github.com/google/uuid"
	"github.com/tidwall/gjson"
)

// EventRouter decides, for every inbound event, which connections receive
// which outbound event. Routing always re-reads the live presence registry;
// the persistent store is never consulted for delivery decisions.
type EventRouter struct {
	logger   *slog.Logger
	registry presence.Registry
	store    store.Store
	history  *history.Service
}

func NewEventRouter(logger *slog.Logger, registry presence.Registry, st store.Store, hist *history.Service) *EventRouter {
	return &EventRouter{
		logger:   logger.With(slog.String("component", "event_router")),
		registry: registry,
		store:    st,
		history:  hist,
	}
}

// HandleMessage dispatches one inbound frame from a connection. Malformed
// frames and events from connections in the wrong state are dropped
// silently per the error policy; only unreachable recipients surface an
// errorNotice back to the sender.
func (r *EventRouter) HandleMessage(ctx context.Context, connID uuid.UUID, msg []byte) {
	event := gjson.GetBytes(msg, "event").String()
	payload := gjson.GetBytes(msg, "payload")

	switch event {
	case EventJoin:
		r.handleJoin(ctx, connID, payload.Get("username").String())
	case EventRequestHistory:
		r.handleRequestHistory(ctx, connID, payload.Get("scope").String(), payload.Get("withUser").String())
	case EventSendPublicMessage:
		r.handlePublicMessage(ctx, connID, payload.Get("body").String())
	case EventSendPrivateMessage:
		r.handlePrivateMessage(ctx, connID, payload.Get("receiver").String(), payload.Get("body").String())
	case EventTypingStart:
		r.handleTyping(connID, true)
	case EventTypingStop:
		r.handleTyping(connID, false)
	default:
		r.logger.Warn("Received unknown event", slog.String("event", event), slog.String("connID", connID.String()))
	}
}

// joinedSender returns the connection when it exists and has completed a
// join; anything else disqualifies it from chat and typing events.
func (r *EventRouter) joinedSender(connID uuid.UUID) (*presence.Connection, bool) {
	conn, ok := r.registry.GetConnection(connID)
	if !ok || conn.State != presence.StateJoined {
		return nil, false
	}
	return conn, true
}

// send encodes one outbound event for a single connection.
func (r *EventRouter) send(conn *presence.Connection, event string, payload any) {
	frame, err := encodeFrame(event, payload)
	if err != nil {
		r.logger.Error("Failed to encode outbound event", slog.String("event", event), slog.Any("error", err))
		return
	}
	conn.Transport.Send(frame)
}

// broadcast encodes an outbound event once and fans it out.
func (r *EventRouter) broadcast(conns []*presence.Connection, event string, payload any) {
	frame, err := encodeFrame(event, payload)
	if err != nil {
		r.logger.Error("Failed to encode outbound event", slog.String("event", event), slog.Any("error", err))
		return
	}
	for _, conn := range conns {
		conn.Transport.Send(frame)
	}
}

func encodeFrame(event string, payload any) ([]byte, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Frame{Event: event, Payload: raw})
}

func isPrivateScope(scope string) bool {
	return strings.EqualFold(scope, ScopePrivate)
}
