package nats

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go/jetstream"

	"github.com/asmr-studio/creator-studio/internal/model"
)

const (
	// StreamName is the name of the session events stream.
	StreamName = "STUDIO_SESSIONS"

	// SubjectPrefix is the prefix for all session subjects.
	SubjectPrefix = "studio"

	// streamMaxAge bounds retention. Sessions are transient so events are too.
	streamMaxAge = 24 * time.Hour
)

// StreamManager handles JetStream stream operations.
type StreamManager struct {
	js jetstream.JetStream
}

// NewStreamManager creates a new stream manager.
func NewStreamManager(js jetstream.JetStream) *StreamManager {
	return &StreamManager{js: js}
}

// EnsureStream creates the session events stream when it does not exist.
func (m *StreamManager) EnsureStream(ctx context.Context) error {
	if _, err := m.js.Stream(ctx, StreamName); err == nil {
		return nil
	}

	_, err := m.js.CreateStream(ctx, jetstream.StreamConfig{
		Name:        StreamName,
		Subjects:    []string{SubjectPrefix + ".>"},
		Retention:   jetstream.LimitsPolicy,
		MaxAge:      streamMaxAge,
		Storage:     jetstream.MemoryStorage,
		Replicas:    1,
		Description: "Creator studio session transitions",
	})
	if err != nil {
		return fmt.Errorf("failed to create stream: %w", err)
	}
	return nil
}

// EventSubject returns the subject for an event.
func EventSubject(sessionID string, eventType model.EventType) string {
	return fmt.Sprintf("%s.%s.%s", SubjectPrefix, sessionID, eventType)
}

// Publish implements events.Publisher.
func (m *StreamManager) Publish(ctx context.Context, event *model.SessionEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	if _, err := m.js.Publish(ctx, EventSubject(event.SessionID, event.Type), data, jetstream.WithMsgID(event.ID)); err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}
	return nil
}
