package orchestrator

import (
	"github.com/zjrosen/keysound/internal/keys"
	"github.com/zjrosen/keysound/internal/profile"
)

// ListProfiles returns every profile sorted by name.
func (o *Orchestrator) ListProfiles() []*profile.Profile {
	return o.store.List()
}

// CurrentProfile returns the active profile.
func (o *Orchestrator) CurrentProfile() *profile.Profile {
	return o.store.Current()
}

// CreateProfile adds a copy of the active profile and returns it with its
// final name.
func (o *Orchestrator) CreateProfile(name string) (*profile.Profile, error) {
	return o.store.Create(name)
}

// DeleteProfile removes a profile.
func (o *Orchestrator) DeleteProfile(name string) error {
	return o.store.Delete(name)
}

// SetCurrentProfile switches the active profile. The next key press uses it.
func (o *Orchestrator) SetCurrentProfile(name string) error {
	return o.store.SetCurrent(name)
}

// SetKeySound assigns src to k in the active profile.
func (o *Orchestrator) SetKeySound(k keys.Key, src string) error {
	return o.store.SetKeySound(k, src)
}

// SetDefaultSound sets the active profile's fallback sound.
func (o *Orchestrator) SetDefaultSound(src string) error {
	return o.store.SetDefaultSound(src)
}

// ExportProfile writes the named profile to a zip archive at dest.
func (o *Orchestrator) ExportProfile(name, dest string) error {
	return o.store.ExportArchive(name, dest)
}

// ImportProfile adds the profile held in the archive at src.
func (o *Orchestrator) ImportProfile(src string) (*profile.Profile, error) {
	return o.store.ImportArchive(src)
}
