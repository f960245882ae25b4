// Package stats defines key-press statistics and the recorder that feeds
// them from playback without slowing the keystroke path.
package stats

import (
	"context"
	"fmt"
	"time"

	"github.com/zjrosen/keysound/internal/keys"
)

// Press is one key press that produced a sound.
type Press struct {
	Profile  string
	Key      keys.Key
	Sound    string
	Fallback bool
	At       time.Time
}

// KeyCount is a key and how often it was pressed.
type KeyCount struct {
	Key   keys.Key
	Count int64
}

// ProfileCount is a profile and how many presses were recorded under it.
type ProfileCount struct {
	Profile string
	Count   int64
	Last    time.Time
}

// Repository persists presses. An empty profile argument means every profile.
type Repository interface {
	Record(ctx context.Context, presses ...Press) error
	TopKeys(ctx context.Context, profile string, limit int) ([]KeyCount, error)
	Total(ctx context.Context, profile string) (int64, error)
	Profiles(ctx context.Context) ([]ProfileCount, error)
	Reset(ctx context.Context, profile string) (int64, error)
}

// InvalidLimitError is returned for a non-positive result limit.
type InvalidLimitError struct {
	Limit int
}

// Error implements the error interface.
func (e *InvalidLimitError) Error() string {
	return fmt.Sprintf("invalid limit %d: must be positive", e.Limit)
}
