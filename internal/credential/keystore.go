package credential

import (
	"context"
	"errors"
	"strings"
	"sync"
)

// ErrEmptyKey is returned when an empty key is supplied.
var ErrEmptyKey = errors.New("key cannot be empty")

// KeyStore holds a key supplied at runtime through the API. It acts as the
// selector when no host-provided selection UI exists and never touches disk.
type KeyStore struct {
	mu  sync.RWMutex
	key string
}

// NewKeyStore creates an empty key store.
func NewKeyStore() *KeyStore {
	return &KeyStore{}
}

// Select stores key as the selected credential.
func (s *KeyStore) Select(key string) error {
	key = strings.TrimSpace(key)
	if key == "" {
		return ErrEmptyKey
	}
	s.mu.Lock()
	s.key = key
	s.mu.Unlock()
	return nil
}

// Key returns the selected key or "".
func (s *KeyStore) Key() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.key
}

// HasSelectedKey implements Selector.
func (s *KeyStore) HasSelectedKey(context.Context) (bool, error) {
	return s.Key() != "", nil
}

// OpenSelectKey implements Selector. Selection happens out of band through
// Select, so there is nothing to open.
func (s *KeyStore) OpenSelectKey(context.Context) error {
	return ErrNoInteractiveSelection
}

// Source prefers the selected key over fallback.
func (s *KeyStore) Source(fallback Source) Source {
	return func() string {
		if key := s.Key(); key != "" {
			return key
		}
		if fallback != nil {
			return fallback()
		}
		return ""
	}
}
