// Package service provides the studio's session orchestration and generation logic.
package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/asmr-studio/creator-studio/pkg/logger"
	"github.com/asmr-studio/creator-studio/pkg/metrics"
)

// Studio is the registry of live sessions.
type Studio struct {
	deps    SessionDeps
	idleTTL time.Duration
	logger  *logger.Logger

	sessions map[string]*Session
	mu       sync.RWMutex
}

// NewStudio creates an empty registry. Sessions idle for longer than idleTTL
// are removed by Sweep; zero keeps them forever.
func NewStudio(deps SessionDeps, idleTTL time.Duration, log *logger.Logger) *Studio {
	if deps.Logger == nil {
		deps.Logger = log
	}
	return &Studio{
		deps:     deps,
		idleTTL:  idleTTL,
		logger:   log.Named("studio"),
		sessions: make(map[string]*Session),
	}
}

// Create opens a new session.
func (s *Studio) Create() *Session {
	sess := NewSession(s.deps)

	s.mu.Lock()
	s.sessions[sess.ID()] = sess
	n := len(s.sessions)
	s.mu.Unlock()

	metrics.SessionsActive.Set(float64(n))
	s.logger.Info("session created", zap.String("session_id", sess.ID()))
	return sess
}

// Get retrieves a session by ID.
func (s *Studio) Get(id string) (*Session, error) {
	s.mu.RLock()
	sess, exists := s.sessions[id]
	s.mu.RUnlock()

	if !exists {
		return nil, fmt.Errorf("%w: session %s", ErrNotFound, id)
	}
	return sess, nil
}

// Delete closes and removes a session.
func (s *Studio) Delete(id string) error {
	s.mu.Lock()
	sess, exists := s.sessions[id]
	delete(s.sessions, id)
	n := len(s.sessions)
	s.mu.Unlock()

	if !exists {
		return fmt.Errorf("%w: session %s", ErrNotFound, id)
	}
	sess.Close()
	metrics.SessionsActive.Set(float64(n))
	s.logger.Info("session deleted", zap.String("session_id", id))
	return nil
}

// Len returns the number of live sessions.
func (s *Studio) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// Sweep removes sessions idle since before now minus idleTTL. Busy sessions
// are kept. It returns how many were removed.
func (s *Studio) Sweep(now time.Time) int {
	if s.idleTTL <= 0 {
		return 0
	}
	cutoff := now.Add(-s.idleTTL)

	s.mu.RLock()
	candidates := make([]*Session, 0, len(s.sessions))
	for _, sess := range s.sessions {
		candidates = append(candidates, sess)
	}
	s.mu.RUnlock()

	// Session state is read without the registry lock held.
	var idle []*Session
	for _, sess := range candidates {
		if !sess.Busy() && !sess.LastActive().After(cutoff) {
			idle = append(idle, sess)
		}
	}

	var expired []*Session
	s.mu.Lock()
	for _, sess := range idle {
		if s.sessions[sess.ID()] == sess && !sess.Busy() {
			delete(s.sessions, sess.ID())
			expired = append(expired, sess)
		}
	}
	n := len(s.sessions)
	s.mu.Unlock()

	for _, sess := range expired {
		sess.Close()
	}
	if len(expired) > 0 {
		metrics.SessionsActive.Set(float64(n))
		s.logger.Info("idle sessions swept", zap.Int("removed", len(expired)), zap.Int("remaining", n))
	}
	return len(expired)
}

// Run sweeps periodically until ctx is done.
func (s *Studio) Run(ctx context.Context) {
	if s.idleTTL <= 0 {
		return
	}
	interval := s.idleTTL / 4
	if interval < time.Second {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			s.Sweep(now)
		}
	}
}

// Close closes every session.
func (s *Studio) Close() {
	s.mu.Lock()
	sessions := s.sessions
	s.sessions = make(map[string]*Session)
	s.mu.Unlock()

	for _, sess := range sessions {
		sess.Close()
	}
	metrics.SessionsActive.Set(0)
}
