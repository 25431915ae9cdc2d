package service

import (
	"errors"
	"fmt"
)

var (
	// ErrValidation signifies that submitted input failed a precondition.
	ErrValidation = errors.New("validation failed")

	// ErrBusy signifies that another action of the session is still in flight.
	ErrBusy = errors.New("another action is in progress")

	// ErrCredentialUnavailable signifies that credential resolution produced nothing.
	ErrCredentialUnavailable = errors.New("credential unavailable")

	// ErrNotFound signifies that a session or message does not exist.
	ErrNotFound = errors.New("resource not found")

	// ErrConfigurationMissing signifies that no credential was configured at startup.
	ErrConfigurationMissing = errors.New("configuration missing")

	// ErrGeneration matches every *GenerationError.
	ErrGeneration = errors.New("generation failed")

	// ErrAssetNotFound signifies a finished video job without an asset location.
	ErrAssetNotFound = errors.New("video asset location not found")

	// ErrDownload signifies that the generated asset could not be retrieved.
	ErrDownload = errors.New("video download failed")

	// ErrTimeout signifies that a video job did not finish within its bounds.
	ErrTimeout = errors.New("video generation timed out")

	// ErrSessionReset signifies that an action's result was discarded by a reset.
	ErrSessionReset = errors.New("session was reset")
)

// GenerationError is a failed call to a generative endpoint.
type GenerationError struct {
	Operation string
	Provider  string
	Err       error
}

func (e *GenerationError) Error() string {
	return fmt.Sprintf("%s via %s: %v", e.Operation, e.Provider, e.Err)
}

func (e *GenerationError) Unwrap() error {
	return e.Err
}

// Is makes errors.Is(err, ErrGeneration) hold for any GenerationError.
func (e *GenerationError) Is(target error) bool {
	return target == ErrGeneration
}
