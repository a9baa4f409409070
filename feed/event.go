// Package feed is a broadcast-only websocket surface for watching the relay
// work: connected observers receive every relay event as a JSON message.
package feed

import "time"

// Relay event types.
const (
	EventMessageReceived = "message.received"
	EventReplySent       = "reply.sent"
	EventAgentError      = "agent.error"
	EventSessionCreated  = "session.created"
	EventSessionReset    = "session.reset"
	EventCooldown        = "limiter.cooldown"
)

type Event struct {
	Type   string    `json:"type"`
	ChatID int64     `json:"chatId,omitempty"`
	Detail string    `json:"detail,omitempty"`
	At     time.Time `json:"at"`
}

func NewEvent(eventType string, chatID int64, detail string) Event {
	return Event{Type: eventType, ChatID: chatID, Detail: detail, At: time.Now().UTC()}
}
