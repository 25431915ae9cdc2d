// Package events fans committed session transitions out to subscribers.
package events

import (
	"context"
	"errors"
	"sync"

	"github.com/asmr-studio/creator-studio/internal/model"
)

// Publisher receives committed session events.
type Publisher interface {
	Publish(ctx context.Context, event *model.SessionEvent) error
}

// subscriberBuffer bounds how far a slow subscriber may lag before events are dropped for it.
const subscriberBuffer = 64

// Hub is an in-process publisher that delivers events to per-session subscribers.
type Hub struct {
	mu     sync.RWMutex
	subs   map[string]map[chan model.SessionEvent]struct{}
	closed bool
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{subs: make(map[string]map[chan model.SessionEvent]struct{})}
}

// Subscribe registers for events of sessionID. The returned cancel func must be called.
func (h *Hub) Subscribe(sessionID string) (<-chan model.SessionEvent, func()) {
	ch := make(chan model.SessionEvent, subscriberBuffer)

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		close(ch)
		return ch, func() {}
	}
	if h.subs[sessionID] == nil {
		h.subs[sessionID] = make(map[chan model.SessionEvent]struct{})
	}
	h.subs[sessionID][ch] = struct{}{}
	h.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			h.mu.Lock()
			defer h.mu.Unlock()
			if set, ok := h.subs[sessionID]; ok {
				if _, ok := set[ch]; ok {
					delete(set, ch)
					close(ch)
				}
				if len(set) == 0 {
					delete(h.subs, sessionID)
				}
			}
		})
	}
}

// Publish delivers event without blocking. Subscribers with a full buffer miss it.
func (h *Hub) Publish(_ context.Context, event *model.SessionEvent) error {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for ch := range h.subs[event.SessionID] {
		select {
		case ch <- *event:
		default:
		}
	}
	return nil
}

// Subscribers returns the number of subscribers for sessionID.
func (h *Hub) Subscribers(sessionID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs[sessionID])
}

// Close disconnects every subscriber.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for id, set := range h.subs {
		for ch := range set {
			close(ch)
		}
		delete(h.subs, id)
	}
	h.closed = true
}

// Fanout publishes to every publisher and joins their errors.
type Fanout []Publisher

// Publish implements Publisher.
func (f Fanout) Publish(ctx context.Context, event *model.SessionEvent) error {
	var errs []error
	for _, p := range f {
		if p == nil {
			continue
		}
		if err := p.Publish(ctx, event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
