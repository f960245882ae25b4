// Package library manages a directory of reusable sound assets that can be
// assigned to keys in any profile.
package library

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/zjrosen/keysound/internal/log"
	"github.com/zjrosen/keysound/internal/paths"
	"github.com/zjrosen/keysound/internal/sound"
)

var (
	// ErrOutsideLibrary is returned for paths that do not belong to the library.
	ErrOutsideLibrary = errors.New("path is outside the library")

	// ErrExists is returned when a rename target is already taken.
	ErrExists = errors.New("asset already exists")

	// ErrUnsupported is returned for files without a sound extension.
	ErrUnsupported = errors.New("unsupported sound file")
)

// Library is a directory of sound assets. The cached listing is refreshed
// after every change made through the Library and on Refresh.
type Library struct {
	dir string

	mu    sync.RWMutex
	files []string
}

// New opens the library at dir, creating the directory when missing.
func New(dir string) (*Library, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("resolving library directory: %w", err)
	}
	if err := os.MkdirAll(abs, 0750); err != nil {
		return nil, fmt.Errorf("creating library directory: %w", err)
	}
	l := &Library{dir: abs}
	if err := l.Refresh(); err != nil {
		return nil, err
	}
	return l, nil
}

// Dir returns the library directory.
func (l *Library) Dir() string {
	return l.dir
}

// List returns the absolute paths of every asset, sorted.
func (l *Library) List() []string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]string, len(l.files))
	copy(out, l.files)
	return out
}

// Refresh rescans the directory tree.
func (l *Library) Refresh() error {
	var files []string
	err := filepath.WalkDir(l.dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			// Unreadable subtrees are skipped rather than failing the scan.
			log.Debug(log.CatLibrary, "Skipping unreadable path", "path", p, "error", err)
			if d != nil && d.IsDir() && p != l.dir {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.IsDir() && sound.IsAsset(p) {
			files = append(files, p)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("scanning library: %w", err)
	}
	sort.Strings(files)

	l.mu.Lock()
	l.files = files
	l.mu.Unlock()
	return nil
}

// Add copies src into the library root, overwriting an asset with the same
// file name, and returns the new path.
func (l *Library) Add(src string) (string, error) {
	info, err := os.Stat(src)
	if err != nil {
		return "", fmt.Errorf("adding %s: %w", src, err)
	}
	if info.IsDir() || !sound.IsAsset(src) {
		return "", fmt.Errorf("%w: %s", ErrUnsupported, filepath.Base(src))
	}

	dest := filepath.Join(l.dir, filepath.Base(src))
	if err := copyFile(src, dest); err != nil {
		return "", fmt.Errorf("adding %s: %w", src, err)
	}
	log.Info(log.CatLibrary, "Added asset", "path", dest)
	return dest, l.Refresh()
}

// Remove deletes an asset. Paths outside the library are refused.
func (l *Library) Remove(path string) error {
	abs, err := l.inside(path)
	if err != nil {
		return err
	}
	if err := os.Remove(abs); err != nil {
		return fmt.Errorf("removing %s: %w", filepath.Base(abs), err)
	}
	log.Info(log.CatLibrary, "Removed asset", "path", abs)
	return l.Refresh()
}

// Rename gives an asset a new file name in the same directory. The original
// extension is kept when newName has none.
func (l *Library) Rename(path, newName string) (string, error) {
	abs, err := l.inside(path)
	if err != nil {
		return "", err
	}
	newName = strings.TrimSpace(newName)
	if newName == "" || strings.ContainsAny(newName, `/\`) || newName == "." || newName == ".." {
		return "", fmt.Errorf("invalid asset name %q", newName)
	}
	if filepath.Ext(newName) == "" {
		newName += filepath.Ext(abs)
	}
	if !sound.IsAsset(newName) {
		return "", fmt.Errorf("%w: %s", ErrUnsupported, newName)
	}

	dest := filepath.Join(filepath.Dir(abs), newName)
	if dest == abs {
		return abs, nil
	}
	if _, err := os.Stat(dest); err == nil {
		// A case-only rename on a case-insensitive filesystem hits the same file.
		if !strings.EqualFold(dest, abs) {
			return "", fmt.Errorf("%w: %s", ErrExists, newName)
		}
	}
	if err := os.Rename(abs, dest); err != nil {
		return "", fmt.Errorf("renaming %s: %w", filepath.Base(abs), err)
	}
	log.Info(log.CatLibrary, "Renamed asset", "from", abs, "to", dest)
	return dest, l.Refresh()
}

// Exists reports whether path is an existing file inside the library.
func (l *Library) Exists(path string) bool {
	_, err := l.inside(path)
	return err == nil
}

// inside resolves path, accepting a bare file name relative to the library,
// and checks that it names an existing file under the library directory.
func (l *Library) inside(path string) (string, error) {
	if !filepath.IsAbs(path) && !strings.ContainsAny(path, `/\`) {
		path = filepath.Join(l.dir, path)
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("resolving %s: %w", path, err)
	}
	if !paths.Within(l.dir, abs) || abs == l.dir {
		return "", fmt.Errorf("%w: %s", ErrOutsideLibrary, path)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return "", fmt.Errorf("%s: %w", filepath.Base(abs), err)
	}
	if info.IsDir() {
		return "", fmt.Errorf("%s is a directory", filepath.Base(abs))
	}
	return abs, nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer func() { _ = in.Close() }()

	out, err := os.CreateTemp(filepath.Dir(dst), ".add-*")
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		_ = os.Remove(out.Name())
		return err
	}
	if err := out.Close(); err != nil {
		_ = os.Remove(out.Name())
		return err
	}
	if err := os.Rename(out.Name(), dst); err != nil {
		_ = os.Remove(out.Name())
		return err
	}
	return nil
}
