// Package model defines data structures for the creator studio.
package model

import (
	"time"
)

// Role represents the author of a conversation turn.
type Role string

const (
	RoleUser  Role = "user"
	RoleModel Role = "model"
)

// Message is one turn in the conversation log.
type Message struct {
	ID            string    `json:"id"`
	Role          Role      `json:"role"`
	Content       string    `json:"content"`
	VideoAssetRef string    `json:"video_asset_ref,omitempty"`
	Timestamp     time.Time `json:"timestamp"`
}

// HasVideo reports whether the turn carries a generated video.
func (m Message) HasVideo() bool {
	return m.VideoAssetRef != ""
}

// SendChatRequest is the body of a chat continuation submit.
type SendChatRequest struct {
	Content string `json:"content" validate:"required"`
}

// DraftRequest updates the form fields held by a session.
type DraftRequest struct {
	Topic     *string `json:"topic,omitempty"`
	ChatInput *string `json:"chat_input,omitempty"`
}
