//go:build !linux && !windows

package capture

// NewSystemHook returns ErrUnsupported; use a ReaderHook instead.
func NewSystemHook() (Hook, error) {
	return nil, ErrUnsupported
}
