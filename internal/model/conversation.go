package model

import (
	"time"
)

// Mode is the presentation mode of a session.
type Mode string

const (
	ModeForm Mode = "form"
	ModeChat Mode = "chat"
)

// Action names the operation currently in flight.
type Action string

const (
	ActionNone         Action = ""
	ActionPlan         Action = "plan"
	ActionVideo        Action = "video"
	ActionChatContinue Action = "chat-continue"
)

// Draft holds the form fields the page binds to.
type Draft struct {
	Topic     string `json:"topic"`
	ChatInput string `json:"chat_input"`
}

// ConversationState is a point-in-time copy of a session.
type ConversationState struct {
	SessionID  string    `json:"session_id"`
	Messages   []Message `json:"messages"`
	Mode       Mode      `json:"mode"`
	Busy       bool      `json:"busy"`
	BusyAction Action    `json:"busy_action,omitempty"`
	Draft      Draft     `json:"draft"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// CreateSessionResponse is returned when a session is opened.
type CreateSessionResponse struct {
	Session ConversationState `json:"session"`
	Token   string            `json:"token"`
}

// SubmitResponse is returned by the submit endpoints.
type SubmitResponse struct {
	Accepted *Message          `json:"accepted,omitempty"`
	Session  ConversationState `json:"session"`
}
