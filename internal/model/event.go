package model

import (
	"time"
)

// EventType represents the type of session event.
type EventType string

const (
	EventMessageAppended EventType = "message.appended"
	EventStateChanged    EventType = "state.changed"
	EventSessionReset    EventType = "session.reset"
)

// SessionEvent is a committed state transition of a session.
type SessionEvent struct {
	ID        string    `json:"id"`
	SessionID string    `json:"session_id"`
	Type      EventType `json:"type"`
	Message   *Message  `json:"message,omitempty"`
	Mode      Mode      `json:"mode"`
	Busy      bool      `json:"busy"`
	Action    Action    `json:"action,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// ErrorEvent represents an error event.
type ErrorEvent struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// HeartbeatEvent represents a heartbeat event.
type HeartbeatEvent struct {
	Timestamp time.Time `json:"timestamp"`
}
