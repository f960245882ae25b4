// Package watcher reports changes to the profiles directory made outside
// the running process, such as a sound pack copied in by hand.
package watcher

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/zjrosen/keysound/internal/log"
	"github.com/zjrosen/keysound/internal/pubsub"
)

// DefaultDebounce coalesces bursts such as an archive being unpacked.
const DefaultDebounce = 250 * time.Millisecond

// maxDepth covers <root>/<profile>/sounds/<sub>.
const maxDepth = 3

// EventType identifies a watcher notification.
type EventType string

// ProfilesChanged is sent once per debounced burst of changes.
const ProfilesChanged EventType = "profiles_changed"

// Event lists the paths touched in one burst.
type Event struct {
	Type  EventType
	Paths []string
}

// Config configures a Watcher.
type Config struct {
	Dir         string
	DebounceDur time.Duration
	// LastWrite, when set, reports the last write made by this process;
	// bursts that end within two debounce windows of it are not reported.
	LastWrite func() time.Time
}

// Watcher watches Dir and its profile subdirectories.
type Watcher struct {
	cfg    Config
	fs     *fsnotify.Watcher
	broker *pubsub.Broker[Event]

	mu      sync.Mutex
	started bool
	stopped bool
	pending map[string]bool
	timer   *time.Timer
	done    chan struct{}
	loop    chan struct{}
}

// New creates a Watcher for cfg.Dir. The directory must exist.
func New(cfg Config) (*Watcher, error) {
	if cfg.DebounceDur <= 0 {
		cfg.DebounceDur = DefaultDebounce
	}
	info, err := os.Stat(cfg.Dir)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return nil, &fs.PathError{Op: "watch", Path: cfg.Dir, Err: errors.New("not a directory")}
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	return &Watcher{
		cfg:     cfg,
		fs:      fw,
		broker:  pubsub.NewBroker[Event](),
		pending: make(map[string]bool),
		done:    make(chan struct{}),
		loop:    make(chan struct{}),
	}, nil
}

// Broker returns the notification broker.
func (w *Watcher) Broker() *pubsub.Broker[Event] {
	return w.broker
}

// Start adds the watches and begins processing events.
func (w *Watcher) Start() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.started {
		return nil
	}
	if err := w.addTree(w.cfg.Dir); err != nil {
		return err
	}
	w.started = true
	log.SafeGo("profile-watcher", w.run)
	log.Debug(log.CatWatch, "Watching profiles", "dir", w.cfg.Dir)
	return nil
}

// Stop ends processing and releases the watches.
func (w *Watcher) Stop() error {
	w.mu.Lock()
	if w.stopped {
		w.mu.Unlock()
		return nil
	}
	w.stopped = true
	if w.timer != nil {
		w.timer.Stop()
	}
	started := w.started
	close(w.done)
	w.mu.Unlock()

	err := w.fs.Close()
	if started {
		<-w.loop
	}
	w.broker.Close()
	return err
}

func (w *Watcher) addTree(root string) error {
	base := strings.Count(filepath.Clean(w.cfg.Dir), string(filepath.Separator))
	return filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			if p == root {
				return err
			}
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if strings.Count(filepath.Clean(p), string(filepath.Separator))-base > maxDepth {
			return filepath.SkipDir
		}
		if err := w.fs.Add(p); err != nil {
			log.Debug(log.CatWatch, "Cannot watch directory", "dir", p, "error", err)
		}
		return nil
	})
}

func (w *Watcher) run() {
	defer close(w.loop)
	for {
		select {
		case <-w.done:
			return
		case ev, ok := <-w.fs.Events:
			if !ok {
				return
			}
			w.handle(ev)
		case err, ok := <-w.fs.Errors:
			if !ok {
				return
			}
			log.Debug(log.CatWatch, "Watcher error", "error", err)
		}
	}
}

func (w *Watcher) handle(ev fsnotify.Event) {
	if ev.Op == fsnotify.Chmod || isTemp(ev.Name) {
		return
	}
	if ev.Has(fsnotify.Create) {
		if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
			w.mu.Lock()
			_ = w.addTree(ev.Name)
			w.mu.Unlock()
		}
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.stopped {
		return
	}
	w.pending[ev.Name] = true
	if w.timer == nil {
		w.timer = time.AfterFunc(w.cfg.DebounceDur, w.fire)
	} else {
		w.timer.Reset(w.cfg.DebounceDur)
	}
}

func (w *Watcher) fire() {
	w.mu.Lock()
	if w.stopped || len(w.pending) == 0 {
		w.mu.Unlock()
		return
	}
	paths := make([]string, 0, len(w.pending))
	for p := range w.pending {
		paths = append(paths, p)
	}
	w.pending = make(map[string]bool)
	w.mu.Unlock()

	if w.cfg.LastWrite != nil {
		if last := w.cfg.LastWrite(); !last.IsZero() && time.Since(last) < 2*w.cfg.DebounceDur {
			log.Debug(log.CatWatch, "Ignoring own writes", "paths", len(paths))
			return
		}
	}
	sort.Strings(paths)
	log.Debug(log.CatWatch, "Profiles changed on disk", "paths", len(paths))
	w.broker.Publish(pubsub.UpdatedEvent, Event{Type: ProfilesChanged, Paths: paths})
}

// isTemp matches files the store writes and renames into place.
func isTemp(name string) bool {
	base := filepath.Base(name)
	return strings.HasSuffix(base, ".tmp") || strings.HasPrefix(base, ".copy-") || strings.HasPrefix(base, ".export-")
}
