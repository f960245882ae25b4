// Package sound holds the built-in key sounds shipped inside the binary.
// A freshly synthesized profile uses DefaultName as its default sound so
// that keysound makes noise before any pack has been installed.
package sound

import (
	"embed"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
)

// DefaultName is the built-in sound used when a profile has none.
const DefaultName = "click.wav"

//go:embed sounds/*.wav
var soundFiles embed.FS

// Builtin returns the raw bytes of a built-in sound.
func Builtin(name string) ([]byte, error) {
	data, err := soundFiles.ReadFile(path.Join("sounds", name))
	if err != nil {
		return nil, fmt.Errorf("builtin sound %q: %w", name, fs.ErrNotExist)
	}
	return data, nil
}

// Names lists the built-in sounds, sorted.
func Names() []string {
	entries, err := soundFiles.ReadDir("sounds")
	if err != nil {
		return nil
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	return names
}

// WriteBuiltin copies a built-in sound to dest, creating parent directories.
func WriteBuiltin(name, dest string) error {
	data, err := Builtin(name)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(dest), 0750); err != nil {
		return fmt.Errorf("creating sound directory: %w", err)
	}
	if err := os.WriteFile(dest, data, 0644); err != nil {
		return fmt.Errorf("writing builtin sound: %w", err)
	}
	return nil
}
