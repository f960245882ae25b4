package profile

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/zjrosen/keysound/internal/log"
	"github.com/zjrosen/keysound/internal/paths"
	"github.com/zjrosen/keysound/internal/sound"
)

// copyFile copies src to dst through a temporary file in dst's directory so
// a reader never sees a partially written asset.
func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("opening %s: %w", src, err)
	}
	defer func() { _ = in.Close() }()

	if err := os.MkdirAll(filepath.Dir(dst), 0750); err != nil {
		return fmt.Errorf("creating %s: %w", filepath.Dir(dst), err)
	}
	out, err := os.CreateTemp(filepath.Dir(dst), ".copy-*")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmp := out.Name()

	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		_ = os.Remove(tmp)
		return fmt.Errorf("copying %s: %w", src, err)
	}
	if err := out.Close(); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("copying %s: %w", src, err)
	}
	if err := os.Rename(tmp, dst); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("placing %s: %w", dst, err)
	}
	return nil
}

// checkAsset validates a user-supplied sound file and returns its absolute path.
func checkAsset(src string) (string, error) {
	abs, err := filepath.Abs(src)
	if err != nil {
		return "", fmt.Errorf("resolving %s: %w", src, err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return "", fmt.Errorf("sound file: %w", err)
	}
	if info.IsDir() {
		return "", fmt.Errorf("%w: %s is a directory", ErrUnsupportedAsset, src)
	}
	if !sound.IsAsset(abs) {
		return "", fmt.Errorf("%w: %s", ErrUnsupportedAsset, filepath.Base(src))
	}
	return abs, nil
}

// place copies src to dest unless src already lives inside the profile, in
// which case it is referenced where it is. Files named base.<ext> in dest's
// directory with a different extension are removed so only one remains.
func place(p *Profile, src, dest string) (string, error) {
	if paths.Within(p.Dir, src) {
		return src, nil
	}
	if err := copyFile(src, dest); err != nil {
		return "", err
	}
	removeSiblings(dest)
	return dest, nil
}

// removeSiblings deletes name.* assets next to keep, other than keep itself.
func removeSiblings(keep string) {
	dir := filepath.Dir(keep)
	base := strings.TrimSuffix(filepath.Base(keep), filepath.Ext(keep))
	entries, err := os.ReadDir(dir)
	if err != nil {
		return
	}
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || name == filepath.Base(keep) || !sound.IsAsset(name) {
			continue
		}
		if !strings.EqualFold(strings.TrimSuffix(name, filepath.Ext(name)), base) {
			continue
		}
		m := filepath.Join(dir, name)
		if err := os.Remove(m); err != nil {
			log.Warn(log.CatProfile, "Failed to remove replaced asset", "path", m, "error", err)
		}
	}
}
