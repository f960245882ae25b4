package playback

import (
	"errors"
	"fmt"

	"github.com/zjrosen/keysound/internal/keys"
)

// ErrNoDevice is returned when no backend could open an output device.
var ErrNoDevice = errors.New("no audio output device available")

// ErrStopped is the cause of a Failed event for a session stopped before it
// reached a device.
var ErrStopped = errors.New("playback stopped")

// ErrUnsupportedFormat is returned for assets no decoder handles.
var ErrUnsupportedFormat = errors.New("unsupported audio format")

// EventType distinguishes playback outcomes.
type EventType string

const (
	// EventPlayed is published once a session starts rendering to a device.
	EventPlayed EventType = "played"
	// EventFailed is published when a request could not be played.
	EventFailed EventType = "failed"
)

// Event reports the outcome of one Play request.
type Event struct {
	Type      EventType
	Key       keys.Key
	Path      string
	SessionID string
	Backend   string
	Err       *SoundError
}

// SoundError describes why a sound did not play.
type SoundError struct {
	Key     keys.Key
	Path    string
	Message string
	Err     error
}

// Error implements the error interface.
func (e *SoundError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("sound %s for key %s: %s: %v", e.Path, e.Key, e.Message, e.Err)
	}
	return fmt.Sprintf("sound %s for key %s: %s", e.Path, e.Key, e.Message)
}

// Unwrap returns the underlying cause.
func (e *SoundError) Unwrap() error {
	return e.Err
}
