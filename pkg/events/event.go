package events

import "time"

// Topic carries all chat lifecycle events through the in-process bus.
const TopicChatEvents = "CHAT_EVENTS"

const (
	TypeSessionCreated  = "SESSION_CREATED"
	TypeSessionRenamed  = "SESSION_RENAMED"
	TypeSessionDeleted  = "SESSION_DELETED"
	TypeMessageAppended = "MESSAGE_APPENDED"
)

// Event defines the contract for all system events.
type Event interface {
	// EventType returns the unique code for this event (e.g., "SESSION_CREATED").
	EventType() string

	// Payload returns the data associated with the event.
	Payload() map[string]interface{}

	// Timestamp returns when the event occurred.
	Timestamp() time.Time
}

type BaseEvent struct {
	Type       string                 `json:"type"`
	Data       map[string]interface{} `json:"data"`
	OccurredAt time.Time              `json:"occurred_at"`
}

func (e BaseEvent) EventType() string {
	return e.Type
}

func (e BaseEvent) Payload() map[string]interface{} {
	return e.Data
}

func (e BaseEvent) Timestamp() time.Time {
	return e.OccurredAt
}

func NewSessionCreated(sessionId, title string) BaseEvent {
	return BaseEvent{
		Type:       TypeSessionCreated,
		Data:       map[string]interface{}{"session_id": sessionId, "title": title},
		OccurredAt: time.Now(),
	}
}

func NewSessionRenamed(sessionId, title string) BaseEvent {
	return BaseEvent{
		Type:       TypeSessionRenamed,
		Data:       map[string]interface{}{"session_id": sessionId, "title": title},
		OccurredAt: time.Now(),
	}
}

func NewSessionDeleted(sessionId string) BaseEvent {
	return BaseEvent{
		Type:       TypeSessionDeleted,
		Data:       map[string]interface{}{"session_id": sessionId},
		OccurredAt: time.Now(),
	}
}

func NewMessageAppended(sessionId, messageId, role string) BaseEvent {
	return BaseEvent{
		Type: TypeMessageAppended,
		Data: map[string]interface{}{
			"session_id": sessionId,
			"message_id": messageId,
			"role":       role,
		},
		OccurredAt: time.Now(),
	}
}
