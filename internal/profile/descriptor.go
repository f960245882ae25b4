package profile

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/zjrosen/keysound/internal/keys"
	"github.com/zjrosen/keysound/internal/log"
	"github.com/zjrosen/keysound/internal/paths"
	"github.com/zjrosen/keysound/internal/sound"
)

const (
	descriptorName   = "index.json"
	soundsDirName    = "sounds"
	defaultSoundBase = "DefaultSound"
)

// descriptor is the on-disk index.json. Field names match the packs already
// in circulation; default_sound and volume are optional additions.
type descriptor struct {
	Name           string          `json:"name"`
	Mode           string          `json:"mode"`
	RepeatSound    string          `json:"repeat_sound"`
	DefaultSound   string          `json:"default_sound,omitempty"`
	AssignedSounds []assignedSound `json:"assigned_sounds"`
}

type assignedSound struct {
	Key    string   `json:"key"`
	Sound  string   `json:"sound"`
	Volume *float64 `json:"volume,omitempty"`
}

func readDescriptor(dir string) (*descriptor, error) {
	data, err := os.ReadFile(filepath.Join(dir, descriptorName))
	if err != nil {
		return nil, err
	}
	var d descriptor
	if err := json.Unmarshal(data, &d); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", descriptorName, err)
	}
	return &d, nil
}

func writeDescriptor(dir string, d *descriptor) error {
	data, err := json.MarshalIndent(d, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding descriptor: %w", err)
	}
	data = append(data, '\n')

	tmp := filepath.Join(dir, descriptorName+".tmp")
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("writing descriptor: %w", err)
	}
	if err := os.Rename(tmp, filepath.Join(dir, descriptorName)); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("writing descriptor: %w", err)
	}
	return nil
}

// loadProfile builds a profile from dir. A missing or corrupt descriptor
// yields an empty profile bound to the directory, never an error.
func loadProfile(dir string) *Profile {
	name := filepath.Base(dir)
	p := newProfile(name, dir)

	d, err := readDescriptor(dir)
	switch {
	case errors.Is(err, os.ErrNotExist):
		log.Debug(log.CatProfile, "No descriptor, using empty profile", "dir", dir)
		d = &descriptor{}
	case err != nil:
		log.Warn(log.CatProfile, "Corrupt descriptor, using empty profile", "dir", dir, "error", err)
		d = &descriptor{}
	}

	if d.Name != "" && d.Name != name {
		log.Debug(log.CatProfile, "Descriptor name differs from directory", "dir", dir, "descriptor_name", d.Name)
	}
	p.Mode = d.Mode
	p.RepeatSound = d.RepeatSound
	p.DefaultSound = findDefaultSound(dir, d.DefaultSound)

	for _, as := range d.AssignedSounds {
		k, ok := keys.Parse(as.Key)
		if !ok {
			log.Debug(log.CatProfile, "Keeping unrecognized key as is", "profile", name, "key", as.Key)
			p.unparsed = append(p.unparsed, as)
			continue
		}
		if as.Sound == "" {
			continue
		}
		a := Assignment{Key: k, Sound: resolveSound(p, as.Sound)}
		if as.Volume != nil {
			v := clampVolume(*as.Volume)
			a.Volume = &v
		}
		p.set(a)
	}

	if len(d.AssignedSounds) == 0 {
		for _, a := range scanSounds(p.SoundsDir()) {
			p.set(a)
		}
	}
	return p
}

// scanSounds maps every asset whose base name parses as a key.
func scanSounds(dir string) []Assignment {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil
	}
	var out []Assignment
	for _, e := range entries {
		if e.IsDir() || !sound.IsAsset(e.Name()) {
			continue
		}
		base := strings.TrimSuffix(e.Name(), filepath.Ext(e.Name()))
		k, ok := keys.Parse(base)
		if !ok {
			continue
		}
		out = append(out, Assignment{Key: k, Sound: filepath.Join(dir, e.Name())})
	}
	return sortedByKey(out)
}

// findDefaultSound prefers the descriptor entry and otherwise looks for a
// DefaultSound.<ext> file in the profile root.
func findDefaultSound(dir, declared string) string {
	if declared != "" {
		if filepath.IsAbs(declared) {
			return filepath.Clean(declared)
		}
		return filepath.Join(dir, filepath.FromSlash(declared))
	}
	matches, _ := filepath.Glob(filepath.Join(dir, defaultSoundBase+".*"))
	sort.Strings(matches)
	for _, m := range matches {
		if sound.IsAsset(m) {
			return m
		}
	}
	return ""
}

// resolveSound turns a descriptor path into an absolute one. Relative paths
// are taken from sounds/, then from the profile root.
func resolveSound(p *Profile, s string) string {
	s = filepath.FromSlash(s)
	if filepath.IsAbs(s) {
		return filepath.Clean(s)
	}
	inSounds := filepath.Join(p.SoundsDir(), s)
	if _, err := os.Stat(inSounds); err == nil {
		return inSounds
	}
	inRoot := filepath.Join(p.Dir, s)
	if _, err := os.Stat(inRoot); err == nil {
		return inRoot
	}
	return inSounds
}

// relSound is the inverse of resolveSound for writing descriptors.
func relSound(p *Profile, abs string) string {
	if paths.Within(p.SoundsDir(), abs) {
		if rel, err := filepath.Rel(p.SoundsDir(), abs); err == nil {
			return filepath.ToSlash(rel)
		}
	}
	if paths.Within(p.Dir, abs) {
		if rel, err := filepath.Rel(p.Dir, abs); err == nil {
			return filepath.ToSlash(rel)
		}
	}
	return abs
}

func toDescriptor(p *Profile) *descriptor {
	d := &descriptor{
		Name:           p.Name,
		Mode:           p.Mode,
		RepeatSound:    p.RepeatSound,
		AssignedSounds: make([]assignedSound, 0, len(p.assignments)+len(p.unparsed)),
	}
	if p.DefaultSound != "" {
		if paths.Within(p.Dir, p.DefaultSound) {
			rel, _ := filepath.Rel(p.Dir, p.DefaultSound)
			d.DefaultSound = filepath.ToSlash(rel)
		} else {
			d.DefaultSound = p.DefaultSound
		}
	}
	for _, a := range p.assignments {
		d.AssignedSounds = append(d.AssignedSounds, assignedSound{
			Key:    a.Key.String(),
			Sound:  relSound(p, a.Sound),
			Volume: a.Volume,
		})
	}
	d.AssignedSounds = append(d.AssignedSounds, p.unparsed...)
	return d
}
