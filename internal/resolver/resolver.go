// Package resolver maps a key to the sound file that should play for it.
package resolver

import (
	"os"

	"github.com/zjrosen/keysound/internal/keys"
	"github.com/zjrosen/keysound/internal/profile"
)

// CurrentSource yields the active profile. *profile.Store satisfies it.
type CurrentSource interface {
	Current() *profile.Profile
}

// Resolution is the outcome of a successful lookup.
type Resolution struct {
	Path    string
	Volume  float64 // per-key volume, multiplied with the master volume by the caller
	Profile string
	// Fallback is set when Path is the profile's default sound.
	Fallback bool
}

// Resolver looks keys up in the active profile. It holds no state of its
// own, so it is safe for concurrent use.
type Resolver struct {
	source CurrentSource
	stat   func(string) (os.FileInfo, error)
}

// New creates a resolver reading from source.
func New(source CurrentSource) *Resolver {
	return &Resolver{source: source, stat: os.Stat}
}

// Resolve returns the key's own asset when it exists on disk, else the
// profile's default sound when that exists, else false. Existence is checked
// on every call because assets can be deleted after being assigned.
func (r *Resolver) Resolve(k keys.Key) (Resolution, bool) {
	p := r.source.Current()
	if p == nil || !k.Valid() {
		return Resolution{}, false
	}

	if path, ok := p.Sound(k); ok && r.exists(path) {
		return Resolution{Path: path, Volume: p.Volume(k), Profile: p.Name}, true
	}
	if p.DefaultSound != "" && r.exists(p.DefaultSound) {
		return Resolution{Path: p.DefaultSound, Volume: 1.0, Profile: p.Name, Fallback: true}, true
	}
	return Resolution{}, false
}

func (r *Resolver) exists(path string) bool {
	info, err := r.stat(path)
	return err == nil && !info.IsDir()
}
