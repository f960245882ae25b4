package profile

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/zjrosen/keysound/internal/keys"
	"github.com/zjrosen/keysound/internal/log"
	"github.com/zjrosen/keysound/internal/paths"
	"github.com/zjrosen/keysound/internal/sound"
)

// DefaultName names the profile synthesized when the store is empty.
const DefaultName = "Default"

const (
	deleteAttempts   = 3
	deleteRetryDelay = 100 * time.Millisecond
	suffixLayout     = "20060102150405"
)

var errNoCurrent = fmt.Errorf("%w: no active profile", ErrNotFound)

// snapshot is the immutable state readers see. Writers replace it whole.
type snapshot struct {
	profiles []*Profile
	current  *Profile
}

func (s *snapshot) find(name string) *Profile {
	for _, p := range s.profiles {
		if p.Name == name {
			return p
		}
	}
	return nil
}

// replace returns a copy of s with the profile named p.Name swapped for p.
func (s *snapshot) replace(p *Profile) *snapshot {
	next := &snapshot{profiles: make([]*Profile, len(s.profiles)), current: s.current}
	for i, old := range s.profiles {
		if old.Name == p.Name {
			next.profiles[i] = p
		} else {
			next.profiles[i] = old
		}
	}
	if s.current != nil && s.current.Name == p.Name {
		next.current = p
	}
	return next
}

// Config configures a Store.
type Config struct {
	// Dir is the root holding one subdirectory per profile.
	Dir string
	// ActiveProfile is selected at first load when present.
	ActiveProfile string
}

// Store owns the profiles directory. Reads are lock-free; writes serialize
// on a mutex and publish a new snapshot after the disk is updated.
type Store struct {
	dir    string
	active string

	mu    sync.Mutex
	state atomic.Pointer[snapshot]

	hooksMu sync.RWMutex
	hooks   []func(*Profile)

	lastWrite atomic.Int64

	now        func() time.Time
	removeAll  func(string) error
	retryDelay time.Duration
}

// NewStore creates a store rooted at cfg.Dir. Call Load before use.
func NewStore(cfg Config) *Store {
	s := &Store{
		dir:        cfg.Dir,
		active:     cfg.ActiveProfile,
		now:        time.Now,
		removeAll:  os.RemoveAll,
		retryDelay: deleteRetryDelay,
	}
	s.state.Store(&snapshot{})
	return s
}

// Dir returns the profiles root.
func (s *Store) Dir() string {
	return s.dir
}

func (s *Store) snapshot() *snapshot {
	return s.state.Load()
}

// update runs fn under the writer lock and publishes the snapshot it
// returns. Change hooks run after the lock is released.
func (s *Store) update(fn func(cur *snapshot) (*snapshot, error)) error {
	s.mu.Lock()
	next, err := fn(s.snapshot())
	if err == nil && next != nil {
		s.state.Store(next)
	}
	s.mu.Unlock()

	if err != nil {
		return err
	}
	if next != nil {
		s.notify(next.current)
	}
	return nil
}

func (s *Store) touch() {
	s.lastWrite.Store(s.now().UnixNano())
}

// LastWrite reports when the store last wrote to the profiles directory.
func (s *Store) LastWrite() time.Time {
	n := s.lastWrite.Load()
	if n == 0 {
		return time.Time{}
	}
	return time.Unix(0, n)
}

// OnChange registers fn to be called with the current profile after every
// change. Hooks must not block.
func (s *Store) OnChange(fn func(current *Profile)) {
	s.hooksMu.Lock()
	defer s.hooksMu.Unlock()
	s.hooks = append(s.hooks, fn)
}

func (s *Store) notify(current *Profile) {
	s.hooksMu.RLock()
	hooks := make([]func(*Profile), len(s.hooks))
	copy(hooks, s.hooks)
	s.hooksMu.RUnlock()

	for _, fn := range hooks {
		fn(current)
	}
}

// Load scans the profiles directory. Unreadable profiles load as empty
// ones. When nothing is found a Default profile is created, seeded from the
// previously current profile if there was one. The previous current
// profile stays current when it still exists.
func (s *Store) Load() error {
	return s.update(func(prev *snapshot) (*snapshot, error) {
		if err := os.MkdirAll(s.dir, 0750); err != nil {
			return nil, fmt.Errorf("creating profiles directory: %w", err)
		}
		entries, err := os.ReadDir(s.dir)
		if err != nil {
			return nil, fmt.Errorf("reading profiles directory: %w", err)
		}

		var profiles []*Profile
		for _, e := range entries {
			if !e.IsDir() || strings.HasPrefix(e.Name(), ".") {
				continue
			}
			profiles = append(profiles, loadProfile(filepath.Join(s.dir, e.Name())))
		}
		sort.Slice(profiles, func(i, j int) bool { return profiles[i].Name < profiles[j].Name })

		if len(profiles) == 0 {
			p, err := s.synthesizeDefault(prev.current)
			if err != nil {
				return nil, err
			}
			profiles = []*Profile{p}
		}

		next := &snapshot{profiles: profiles}
		switch {
		case prev.current != nil && next.find(prev.current.Name) != nil:
			next.current = next.find(prev.current.Name)
		case s.active != "" && next.find(s.active) != nil:
			next.current = next.find(s.active)
		default:
			if s.active != "" {
				log.Warn(log.CatProfile, "Configured profile not found", "profile", s.active)
			}
			next.current = profiles[0]
		}

		log.Info(log.CatProfile, "Loaded profiles", "count", len(profiles), "current", next.current.Name)
		return next, nil
	})
}

// Reload rescans the directory, keeping the current profile when possible.
func (s *Store) Reload() error {
	return s.Load()
}

func (s *Store) synthesizeDefault(seed *Profile) (*Profile, error) {
	dir := filepath.Join(s.dir, DefaultName)
	if err := os.MkdirAll(filepath.Join(dir, soundsDirName), 0750); err != nil {
		return nil, fmt.Errorf("creating default profile: %w", err)
	}
	p := newProfile(DefaultName, dir)
	if seed != nil {
		seedFrom(p, seed)
	}

	if p.DefaultSound == "" {
		dest := filepath.Join(dir, defaultSoundBase+sound.Ext(sound.DefaultName))
		if err := sound.WriteBuiltin(sound.DefaultName, dest); err != nil {
			return nil, fmt.Errorf("creating default profile: %w", err)
		}
		p.DefaultSound = dest
	}

	if err := writeDescriptor(dir, toDescriptor(p)); err != nil {
		return nil, fmt.Errorf("creating default profile: %w", err)
	}
	s.touch()
	log.Info(log.CatProfile, "Created default profile", "dir", dir, "seeded", seed != nil)
	return p, nil
}

// List returns every profile sorted by name.
func (s *Store) List() []*Profile {
	snap := s.snapshot()
	out := make([]*Profile, len(snap.profiles))
	copy(out, snap.profiles)
	return out
}

// Current returns the active profile, nil before the first Load.
func (s *Store) Current() *Profile {
	return s.snapshot().current
}

// Get returns the profile with the given name.
func (s *Store) Get(name string) (*Profile, error) {
	if p := s.snapshot().find(name); p != nil {
		return p, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrNotFound, name)
}

// SetCurrent makes the named profile active.
func (s *Store) SetCurrent(name string) error {
	return s.update(func(cur *snapshot) (*snapshot, error) {
		p := cur.find(name)
		if p == nil {
			return nil, fmt.Errorf("%w: %q", ErrNotFound, name)
		}
		s.active = name
		log.Info(log.CatProfile, "Switched profile", "profile", name)
		return &snapshot{profiles: cur.profiles, current: p}, nil
	})
}

// Create makes a new profile holding a copy of the current profile's
// mapping and assets. A name already in use gets a _YYYYMMDDHHMMSS suffix;
// the returned profile carries the final name.
func (s *Store) Create(name string) (*Profile, error) {
	name, err := cleanName(name)
	if err != nil {
		return nil, err
	}

	var created *Profile
	err = s.update(func(cur *snapshot) (*snapshot, error) {
		final := s.uniqueName(cur, name)
		dir := filepath.Join(s.dir, final)
		if err := os.MkdirAll(filepath.Join(dir, soundsDirName), 0750); err != nil {
			return nil, fmt.Errorf("creating profile %q: %w", final, err)
		}
		p := newProfile(final, dir)
		if cur.current != nil {
			seedFrom(p, cur.current)
		}
		if err := writeDescriptor(dir, toDescriptor(p)); err != nil {
			return nil, fmt.Errorf("creating profile %q: %w", final, err)
		}
		s.touch()
		created = p
		log.Info(log.CatProfile, "Created profile", "profile", final, "keys", p.Len())
		return cur.with(p), nil
	})
	return created, err
}

// seedFrom copies seed's mapping into the empty profile p. Assets are
// copied into p so the two profiles share no files; an asset that cannot be
// copied keeps its original path.
func seedFrom(p, seed *Profile) {
	p.Mode = seed.Mode
	p.RepeatSound = seed.RepeatSound
	for _, a := range seed.clone().assignments {
		dest := filepath.Join(p.SoundsDir(), a.Key.String()+sound.Ext(a.Sound))
		if err := copyFile(a.Sound, dest); err == nil {
			a.Sound = dest
		} else {
			log.Debug(log.CatProfile, "Keeping original asset path", "profile", p.Name, "key", a.Key, "error", err)
		}
		p.set(a)
	}
	for _, u := range seed.unparsed {
		abs := resolveSound(seed, u.Sound)
		if rel, err := filepath.Rel(seed.Dir, abs); err == nil && paths.Within(seed.Dir, abs) {
			_ = copyFile(abs, filepath.Join(p.Dir, rel))
		}
		p.unparsed = append(p.unparsed, u)
	}
	if seed.DefaultSound != "" {
		dest := filepath.Join(p.Dir, defaultSoundBase+sound.Ext(seed.DefaultSound))
		if err := copyFile(seed.DefaultSound, dest); err == nil {
			p.DefaultSound = dest
		} else {
			p.DefaultSound = seed.DefaultSound
		}
	}
}

// with returns a copy of s including p, kept sorted by name.
func (s *snapshot) with(p *Profile) *snapshot {
	profiles := make([]*Profile, 0, len(s.profiles)+1)
	profiles = append(profiles, s.profiles...)
	profiles = append(profiles, p)
	sort.Slice(profiles, func(i, j int) bool { return profiles[i].Name < profiles[j].Name })
	current := s.current
	if current == nil {
		current = p
	}
	return &snapshot{profiles: profiles, current: current}
}

// Delete removes a profile. The last remaining profile cannot be deleted.
// The profile leaves the store even when its directory cannot be removed.
func (s *Store) Delete(name string) error {
	return s.update(func(cur *snapshot) (*snapshot, error) {
		victim := cur.find(name)
		if victim == nil {
			return nil, fmt.Errorf("%w: %q", ErrNotFound, name)
		}
		if len(cur.profiles) <= 1 {
			return nil, ErrLastProfile
		}

		next := &snapshot{profiles: make([]*Profile, 0, len(cur.profiles)-1), current: cur.current}
		for _, p := range cur.profiles {
			if p != victim {
				next.profiles = append(next.profiles, p)
			}
		}
		if cur.current == victim {
			next.current = next.profiles[0]
		}

		if err := s.removeDir(victim.Dir); err != nil {
			log.ErrorErr(log.CatProfile, "Profile directory left on disk", err, "profile", name, "dir", victim.Dir)
		}
		s.touch()
		log.Info(log.CatProfile, "Deleted profile", "profile", name)
		return next, nil
	})
}

func (s *Store) removeDir(dir string) error {
	var err error
	for attempt := 1; attempt <= deleteAttempts; attempt++ {
		if err = s.removeAll(dir); err == nil {
			return nil
		}
		log.Debug(log.CatProfile, "Retrying profile removal", "dir", dir, "attempt", attempt, "error", err)
		if attempt < deleteAttempts {
			time.Sleep(s.retryDelay)
		}
	}
	return err
}

// Save writes p's descriptor and makes p the stored version of that profile.
func (s *Store) Save(p *Profile) error {
	if p == nil {
		return fmt.Errorf("%w: nil profile", ErrNotFound)
	}
	return s.update(func(cur *snapshot) (*snapshot, error) {
		if cur.find(p.Name) == nil {
			return nil, fmt.Errorf("%w: %q", ErrNotFound, p.Name)
		}
		c := p.clone()
		if err := s.persist(c); err != nil {
			return nil, err
		}
		return cur.replace(c), nil
	})
}

func (s *Store) persist(p *Profile) error {
	if err := os.MkdirAll(p.Dir, 0750); err != nil {
		return fmt.Errorf("saving profile %q: %w", p.Name, err)
	}
	if err := writeDescriptor(p.Dir, toDescriptor(p)); err != nil {
		return fmt.Errorf("saving profile %q: %w", p.Name, err)
	}
	s.touch()
	return nil
}

// editCurrent clones the current profile, applies fn and persists the result.
func (s *Store) editCurrent(fn func(p *Profile) error) error {
	return s.update(func(cur *snapshot) (*snapshot, error) {
		if cur.current == nil {
			return nil, errNoCurrent
		}
		p := cur.current.clone()
		if err := fn(p); err != nil {
			return nil, err
		}
		if err := s.persist(p); err != nil {
			return nil, err
		}
		return cur.replace(p), nil
	})
}

// SetKeySound assigns src to k in the current profile. The file is copied
// into the profile's sounds directory as <Key><ext> unless it already lives
// inside the profile.
func (s *Store) SetKeySound(k keys.Key, src string) error {
	if !k.Valid() {
		return ErrInvalidKey
	}
	abs, err := checkAsset(src)
	if err != nil {
		return err
	}
	return s.editCurrent(func(p *Profile) error {
		dest := filepath.Join(p.SoundsDir(), k.String()+sound.Ext(abs))
		placed, err := place(p, abs, dest)
		if err != nil {
			return err
		}
		a := Assignment{Key: k, Sound: placed}
		if i, ok := p.index[k]; ok {
			a.Volume = p.assignments[i].Volume
		}
		p.set(a)
		log.Debug(log.CatProfile, "Assigned key sound", "profile", p.Name, "key", k, "sound", placed)
		return nil
	})
}

// ClearKeySound removes k's assignment from the current profile. An asset
// copied in for that key is deleted so a later rescan cannot remap it.
func (s *Store) ClearKeySound(k keys.Key) error {
	return s.editCurrent(func(p *Profile) error {
		old, ok := p.Sound(k)
		if !ok {
			return &KeyNotAssignedError{Profile: p.Name, Key: k.String()}
		}
		p.remove(k)

		base := strings.TrimSuffix(filepath.Base(old), filepath.Ext(old))
		if filepath.Dir(old) == p.SoundsDir() && strings.EqualFold(base, k.String()) {
			if err := os.Remove(old); err != nil && !errors.Is(err, os.ErrNotExist) {
				log.Warn(log.CatProfile, "Failed to remove key asset", "path", old, "error", err)
			}
		}
		return nil
	})
}

// SetKeyVolume sets the per-key volume, clamped to [0,1].
func (s *Store) SetKeyVolume(k keys.Key, volume float64) error {
	return s.editCurrent(func(p *Profile) error {
		i, ok := p.index[k]
		if !ok {
			return &KeyNotAssignedError{Profile: p.Name, Key: k.String()}
		}
		v := clampVolume(volume)
		p.assignments[i].Volume = &v
		return nil
	})
}

// SetDefaultSound sets the current profile's fallback sound. The file is
// copied to DefaultSound<ext> in the profile root, replacing any previous
// default, unless it already lives inside the profile.
func (s *Store) SetDefaultSound(src string) error {
	abs, err := checkAsset(src)
	if err != nil {
		return err
	}
	return s.editCurrent(func(p *Profile) error {
		dest := filepath.Join(p.Dir, defaultSoundBase+sound.Ext(abs))
		placed, err := place(p, abs, dest)
		if err != nil {
			return err
		}
		p.DefaultSound = placed
		log.Debug(log.CatProfile, "Set default sound", "profile", p.Name, "sound", placed)
		return nil
	})
}

// ImportSound copies src into the current profile's sounds directory and,
// when its base name is a key name, assigns it to that key. It returns the
// key assigned, or keys.None.
func (s *Store) ImportSound(src string) (keys.Key, error) {
	abs, err := checkAsset(src)
	if err != nil {
		return keys.None, err
	}

	assigned := keys.None
	err = s.editCurrent(func(p *Profile) error {
		dest := filepath.Join(p.SoundsDir(), filepath.Base(abs))
		placed := abs
		if filepath.Dir(abs) != p.SoundsDir() {
			if err := copyFile(abs, dest); err != nil {
				return err
			}
			placed = dest
		}

		base := strings.TrimSuffix(filepath.Base(abs), filepath.Ext(abs))
		k, ok := keys.Parse(base)
		if !ok {
			log.Debug(log.CatProfile, "Imported sound has no key name", "profile", p.Name, "file", filepath.Base(abs))
			return nil
		}
		a := Assignment{Key: k, Sound: placed}
		if i, ok := p.index[k]; ok {
			a.Volume = p.assignments[i].Volume
		}
		p.set(a)
		assigned = k
		return nil
	})
	return assigned, err
}

// uniqueName appends a timestamp suffix when name is taken, then a counter
// if two collisions land in the same second.
func (s *Store) uniqueName(cur *snapshot, name string) string {
	taken := func(n string) bool {
		for _, p := range cur.profiles {
			if strings.EqualFold(p.Name, n) {
				return true
			}
		}
		_, err := os.Stat(filepath.Join(s.dir, n))
		return err == nil
	}
	if !taken(name) {
		return name
	}
	candidate := name + "_" + s.now().Format(suffixLayout)
	for i := 2; taken(candidate); i++ {
		candidate = fmt.Sprintf("%s_%s_%d", name, s.now().Format(suffixLayout), i)
	}
	return candidate
}

// cleanName makes name usable as a directory name. Characters that are not
// allowed in file names, and a leading dot, become '_'.
func cleanName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if strings.Trim(name, ".") == "" {
		return "", fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	var b strings.Builder
	for i, r := range name {
		if r < 0x20 || r == 0x7f || strings.ContainsRune(`/\<>:"|?*`, r) || (i == 0 && r == '.') {
			b.WriteRune('_')
			continue
		}
		b.WriteRune(r)
	}
	return b.String(), nil
}
