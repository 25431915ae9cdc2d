// Package asset holds downloaded video bytes behind session-scoped handles.
package asset

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/asmr-studio/creator-studio/pkg/metrics"
)

// DefaultBasePath is the URL prefix assets are served under.
const DefaultBasePath = "/assets/"

// Asset is one stored payload.
type Asset struct {
	ID          string
	SessionID   string
	ContentType string
	Data        []byte
	CreatedAt   time.Time
}

// Store is an in-memory asset store. Handles live until their session releases them.
type Store struct {
	basePath string

	mu        sync.RWMutex
	assets    map[string]*Asset
	bySession map[string][]string
	bytes     int64
}

// NewStore creates a store whose handles resolve under basePath.
func NewStore(basePath string) *Store {
	if basePath == "" {
		basePath = DefaultBasePath
	}
	return &Store{
		basePath:  basePath,
		assets:    make(map[string]*Asset),
		bySession: make(map[string][]string),
	}
}

// Put stores data for sessionID and returns the playable handle.
func (s *Store) Put(sessionID, contentType string, data []byte) string {
	a := &Asset{
		ID:          uuid.NewString(),
		SessionID:   sessionID,
		ContentType: contentType,
		Data:        data,
		CreatedAt:   time.Now(),
	}

	s.mu.Lock()
	s.assets[a.ID] = a
	s.bySession[sessionID] = append(s.bySession[sessionID], a.ID)
	s.bytes += int64(len(data))
	metrics.AssetBytes.Set(float64(s.bytes))
	s.mu.Unlock()

	return s.basePath + a.ID
}

// Get looks up an asset by id.
func (s *Store) Get(id string) (*Asset, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.assets[id]
	return a, ok
}

// Release drops every asset owned by sessionID and returns how many were freed.
func (s *Store) Release(sessionID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	ids := s.bySession[sessionID]
	for _, id := range ids {
		if a, ok := s.assets[id]; ok {
			s.bytes -= int64(len(a.Data))
			delete(s.assets, id)
		}
	}
	delete(s.bySession, sessionID)
	metrics.AssetBytes.Set(float64(s.bytes))
	return len(ids)
}

// Len returns the number of stored assets.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.assets)
}
