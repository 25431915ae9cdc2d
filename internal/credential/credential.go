// Package credential resolves the generative API credential before each call.
package credential

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"

	"github.com/asmr-studio/creator-studio/pkg/logger"
)

// ErrNoInteractiveSelection is returned by selectors that cannot prompt a user.
var ErrNoInteractiveSelection = errors.New("interactive key selection is unavailable")

// Selector is an optional host capability for choosing a key.
type Selector interface {
	HasSelectedKey(ctx context.Context) (bool, error)
	OpenSelectKey(ctx context.Context) error
}

// Source re-reads the current credential from the host environment.
type Source func() string

// Resolver returns the credential to use for the next generative call.
// The last non-empty value is remembered in memory only.
type Resolver struct {
	source   Source
	selector Selector
	logger   *logger.Logger

	mu   sync.Mutex
	last string
}

// NewResolver creates a resolver. initial is the value read at startup; selector may be nil.
func NewResolver(initial string, source Source, selector Selector, log *logger.Logger) *Resolver {
	return &Resolver{
		source:   source,
		selector: selector,
		logger:   log,
		last:     initial,
	}
}

// Resolve runs key selection when available and needed, then re-reads the
// source. It falls back to the last known value and returns "" when there is none.
func (r *Resolver) Resolve(ctx context.Context) string {
	if r.selector != nil {
		if err := r.selectIfNeeded(ctx); err != nil {
			r.logger.Warn("key selection failed, using last known credential", zap.Error(err))
			return r.Last()
		}
	}

	var current string
	if r.source != nil {
		current = r.source()
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if current != "" {
		r.last = current
	}
	return r.last
}

// Last returns the last known credential without resolving.
func (r *Resolver) Last() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.last
}

func (r *Resolver) selectIfNeeded(ctx context.Context) error {
	selected, err := r.selector.HasSelectedKey(ctx)
	if err != nil {
		return err
	}
	if selected {
		return nil
	}
	return r.selector.OpenSelectKey(ctx)
}
