package profile

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when no profile has the requested name.
	ErrNotFound = errors.New("profile not found")

	// ErrLastProfile is returned when deleting would leave the store empty.
	ErrLastProfile = errors.New("cannot delete the last profile")

	// ErrInvalidName is returned for names that cannot be used as a directory.
	ErrInvalidName = errors.New("invalid profile name")

	// ErrInvalidArchive is returned when an import archive is unreadable or
	// holds entries outside its root.
	ErrInvalidArchive = errors.New("invalid profile archive")

	// ErrUnsupportedAsset is returned for files without a sound extension.
	ErrUnsupportedAsset = errors.New("unsupported sound file")

	// ErrInvalidKey is returned when an operation is given keys.None.
	ErrInvalidKey = errors.New("invalid key")
)

// KeyNotAssignedError indicates that a per-key edit targeted a key with no
// sound in the profile.
type KeyNotAssignedError struct {
	Profile string
	Key     string
}

// Error implements the error interface.
func (e *KeyNotAssignedError) Error() string {
	return fmt.Sprintf("key %s has no sound in profile %q", e.Key, e.Profile)
}
