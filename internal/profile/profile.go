// Package profile persists sound profiles and tracks the active one.
//
// A profile is a directory under the store root:
//
//	<root>/<name>/index.json          descriptor
//	<root>/<name>/sounds/...          per-key assets
//	<root>/<name>/DefaultSound.<ext>  optional fallback asset
//
// Profiles handed out by the store are immutable snapshots. Every edit goes
// through the Store, which writes the descriptor and then publishes a new
// snapshot, so readers on the capture path never observe a half-applied
// change.
package profile

import (
	"path/filepath"
	"sort"

	"github.com/zjrosen/keysound/internal/keys"
)

// Assignment binds one key to an asset.
type Assignment struct {
	Key keys.Key
	// Sound is an absolute path.
	Sound string
	// Volume is the per-key gain in [0,1]; nil means full volume.
	Volume *float64
}

// Profile is a named key→sound mapping with an optional default sound.
type Profile struct {
	Name         string
	Dir          string
	Mode         string
	RepeatSound  string
	DefaultSound string // absolute path, empty when unset

	assignments []Assignment
	index       map[keys.Key]int
	// unparsed holds descriptor entries whose key is not recognized. They
	// are written back untouched.
	unparsed []assignedSound
}

func newProfile(name, dir string) *Profile {
	return &Profile{
		Name:  name,
		Dir:   dir,
		index: make(map[keys.Key]int),
	}
}

// SoundsDir is the directory holding the profile's per-key assets.
func (p *Profile) SoundsDir() string {
	return filepath.Join(p.Dir, soundsDirName)
}

// Sound returns the asset assigned to k.
func (p *Profile) Sound(k keys.Key) (string, bool) {
	i, ok := p.index[k]
	if !ok {
		return "", false
	}
	return p.assignments[i].Sound, true
}

// Volume returns the per-key volume for k, 1.0 when none is set.
func (p *Profile) Volume(k keys.Key) float64 {
	i, ok := p.index[k]
	if !ok || p.assignments[i].Volume == nil {
		return 1.0
	}
	return *p.assignments[i].Volume
}

// Assignments returns a copy of the assignment list in descriptor order.
func (p *Profile) Assignments() []Assignment {
	out := make([]Assignment, len(p.assignments))
	copy(out, p.assignments)
	return out
}

// Len returns the number of assigned keys.
func (p *Profile) Len() int {
	return len(p.assignments)
}

func (p *Profile) clone() *Profile {
	c := *p
	c.assignments = make([]Assignment, len(p.assignments))
	for i, a := range p.assignments {
		if a.Volume != nil {
			v := *a.Volume
			a.Volume = &v
		}
		c.assignments[i] = a
	}
	c.index = make(map[keys.Key]int, len(p.index))
	for k, i := range p.index {
		c.index[k] = i
	}
	c.unparsed = make([]assignedSound, len(p.unparsed))
	copy(c.unparsed, p.unparsed)
	return &c
}

// set upserts the assignment for a.Key, keeping its position if present.
func (p *Profile) set(a Assignment) {
	if i, ok := p.index[a.Key]; ok {
		p.assignments[i] = a
		return
	}
	p.index[a.Key] = len(p.assignments)
	p.assignments = append(p.assignments, a)
}

func (p *Profile) remove(k keys.Key) bool {
	i, ok := p.index[k]
	if !ok {
		return false
	}
	p.assignments = append(p.assignments[:i], p.assignments[i+1:]...)
	p.reindex()
	return true
}

func (p *Profile) reindex() {
	p.index = make(map[keys.Key]int, len(p.assignments))
	for i, a := range p.assignments {
		p.index[a.Key] = i
	}
}

// sortedByKey orders assignments by key, used when a list is regenerated.
func sortedByKey(as []Assignment) []Assignment {
	sort.SliceStable(as, func(i, j int) bool { return as[i].Key < as[j].Key })
	return as
}

func clampVolume(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	}
	return v
}
