package router

import (
	"encoding/json"
	"time"

	"github.com/a-essam23/go-relay/internal/store"
)

// Inbound event names.
const (
	EventJoin               = "join"
	EventRequestHistory     = "requestHistory"
	EventSendPublicMessage  = "sendPublicMessage"
	EventSendPrivateMessage = "sendPrivateMessage"
	EventTypingStart        = "typingStart"
	EventTypingStop         = "typingStop"
)

// Outbound event names.
const (
	EventPresenceSnapshot = "presenceSnapshot"
	EventUserJoined       = "userJoined"
	EventUserLeft         = "userLeft"
	EventMessageReceived  = "messageReceived"
	EventHistoryResult    = "historyResult"
	EventUserTyping       = "userTyping"
	EventErrorNotice      = "errorNotice"
)

// History scope values accepted on the wire.
const (
	ScopePublic  = "PUBLIC"
	ScopePrivate = "PRIVATE"
)

// Frame is the envelope for every event in both directions.
type Frame struct {
	Event   string          `json:"event"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

type presenceDeltaPayload struct {
	Username string   `json:"username"`
	Snapshot []string `json:"snapshot"`
}

type messagePayload struct {
	Sender    string `json:"sender"`
	Receiver  string `json:"receiver,omitempty"`
	Body      string `json:"body"`
	Timestamp string `json:"timestamp"`
	Private   bool   `json:"private"`
}

type historyResultPayload struct {
	Messages []messagePayload `json:"messages"`
}

type typingPayload struct {
	Username string `json:"username"`
	IsTyping bool   `json:"isTyping"`
}

type errorNoticePayload struct {
	Message string `json:"message"`
}

func messageToPayload(msg store.Message) messagePayload {
	receiver := msg.Receiver
	if !msg.Private {
		// The broadcast sentinel is a storage detail; public messages carry
		// no receiver on the wire.
		receiver = ""
	}
	return messagePayload{
		Sender:    msg.Sender,
		Receiver:  receiver,
		Body:      msg.Body,
		Timestamp: msg.CreatedAt.UTC().Format(time.RFC3339),
		Private:   msg.Private,
	}
}

func historyToPayload(messages []store.Message) historyResultPayload {
	payload := historyResultPayload{Messages: make([]messagePayload, 0, len(messages))}
	for _, msg := range messages {
		payload.Messages = append(payload.Messages, messageToPayload(msg))
	}
	return payload
}
