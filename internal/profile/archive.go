package profile

import (
	"archive/zip"
	"encoding/json"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/zjrosen/keysound/internal/log"
	"github.com/zjrosen/keysound/internal/paths"
)

const (
	maxArchiveEntry = 64 << 20
	externalDirName = "external"
)

// ExportArchive writes the named profile to a zip archive at dest. The
// archive holds index.json at its root plus every asset the profile
// references; assets outside the profile directory are stored under
// sounds/external/ so the archive is self-contained.
func (s *Store) ExportArchive(name, dest string) error {
	p, err := s.Get(name)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(dest), 0750); err != nil {
		return fmt.Errorf("exporting %q: %w", name, err)
	}
	tmp := filepath.Join(filepath.Dir(dest), ".export-"+uuid.NewString()+".zip")
	if err := writeArchive(p, tmp); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("exporting %q: %w", name, err)
	}
	if err := os.Rename(tmp, dest); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("exporting %q: %w", name, err)
	}
	log.Info(log.CatProfile, "Exported profile", "profile", name, "archive", dest)
	return nil
}

func writeArchive(p *Profile, dest string) error {
	f, err := os.Create(dest)
	if err != nil {
		return err
	}
	zw := zip.NewWriter(f)

	// Work on a copy whose external assets are rewritten into sounds/external.
	out := p.clone()
	added := make(map[string]bool)
	addFile := func(abs, entry string) error {
		if added[entry] {
			return nil
		}
		added[entry] = true
		return zipFile(zw, abs, entry)
	}

	for i, a := range out.assignments {
		if _, err := os.Stat(a.Sound); err != nil {
			log.Warn(log.CatProfile, "Skipping missing asset in export", "profile", p.Name, "key", a.Key, "path", a.Sound)
			continue
		}
		if !paths.Within(p.Dir, a.Sound) {
			out.assignments[i].Sound = uniqueEntry(filepath.Join(out.SoundsDir(), externalDirName), added, filepath.Base(a.Sound))
		}
		rel, _ := filepath.Rel(p.Dir, out.assignments[i].Sound)
		if err := addFile(a.Sound, filepath.ToSlash(rel)); err != nil {
			return closeAll(zw, f, err)
		}
	}

	// Unrecognized entries travel with their assets when those live in the profile.
	for _, u := range p.unparsed {
		abs := resolveSound(p, u.Sound)
		if _, err := os.Stat(abs); err != nil || !paths.Within(p.Dir, abs) {
			continue
		}
		rel, _ := filepath.Rel(p.Dir, abs)
		if err := addFile(abs, filepath.ToSlash(rel)); err != nil {
			return closeAll(zw, f, err)
		}
	}

	if p.DefaultSound != "" {
		if _, err := os.Stat(p.DefaultSound); err == nil {
			if !paths.Within(p.Dir, p.DefaultSound) {
				out.DefaultSound = filepath.Join(out.Dir, defaultSoundBase+filepath.Ext(p.DefaultSound))
			}
			rel, _ := filepath.Rel(p.Dir, out.DefaultSound)
			if err := addFile(p.DefaultSound, filepath.ToSlash(rel)); err != nil {
				return closeAll(zw, f, err)
			}
		}
	}

	data, err := json.MarshalIndent(toDescriptor(out), "", "  ")
	if err != nil {
		return closeAll(zw, f, err)
	}
	w, err := zw.Create(descriptorName)
	if err != nil {
		return closeAll(zw, f, err)
	}
	if _, err := w.Write(append(data, '\n')); err != nil {
		return closeAll(zw, f, err)
	}

	return closeAll(zw, f, nil)
}

// uniqueEntry picks a sounds/ path for an external asset that does not
// clash with entries already written.
func uniqueEntry(soundsDir string, added map[string]bool, base string) string {
	candidate := filepath.Join(soundsDir, base)
	ext := filepath.Ext(base)
	stem := strings.TrimSuffix(base, ext)
	for i := 2; added[path.Join(soundsDirName, externalDirName, filepath.Base(candidate))]; i++ {
		candidate = filepath.Join(soundsDir, fmt.Sprintf("%s_%d%s", stem, i, ext))
	}
	return candidate
}

func zipFile(zw *zip.Writer, src, entry string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer func() { _ = in.Close() }()

	w, err := zw.CreateHeader(&zip.FileHeader{Name: entry, Method: zip.Deflate})
	if err != nil {
		return err
	}
	_, err = io.Copy(w, in)
	return err
}

func closeAll(zw *zip.Writer, f *os.File, err error) error {
	if cerr := zw.Close(); err == nil {
		err = cerr
	}
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	return err
}

// ImportArchive extracts a profile archive into the store. The profile name
// comes from the descriptor, or the archive file name when the descriptor
// has none; a name already in use gets a timestamp suffix.
func (s *Store) ImportArchive(src string) (*Profile, error) {
	staging, err := os.MkdirTemp("", "keysound-import-"+uuid.NewString())
	if err != nil {
		return nil, fmt.Errorf("importing %s: %w", src, err)
	}
	defer func() { _ = os.RemoveAll(staging) }()

	if err := extract(src, staging); err != nil {
		log.ErrorErr(log.CatProfile, "Profile import failed", err, "archive", src)
		return nil, fmt.Errorf("importing %s: %w", filepath.Base(src), err)
	}

	root, err := findRoot(staging)
	if err != nil {
		return nil, fmt.Errorf("importing %s: %w", filepath.Base(src), err)
	}

	name := strings.TrimSuffix(filepath.Base(src), filepath.Ext(src))
	if d, err := readDescriptor(root); err == nil && d.Name != "" {
		name = d.Name
	}
	name, err = cleanName(name)
	if err != nil {
		return nil, fmt.Errorf("importing %s: %w", filepath.Base(src), err)
	}

	var imported *Profile
	err = s.update(func(cur *snapshot) (*snapshot, error) {
		final := s.uniqueName(cur, name)
		dir := filepath.Join(s.dir, final)
		if err := moveDir(root, dir); err != nil {
			return nil, fmt.Errorf("importing %s: %w", filepath.Base(src), err)
		}
		p := loadProfile(dir)
		if err := s.persist(p); err != nil {
			return nil, err
		}
		imported = p
		log.Info(log.CatProfile, "Imported profile", "profile", final, "archive", src, "keys", p.Len())
		return cur.with(p), nil
	})
	if err != nil {
		return nil, err
	}
	return imported, nil
}

// extract unpacks src into dir, rejecting entries that would land outside it.
func extract(src, dir string) error {
	zr, err := zip.OpenReader(src)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidArchive, err)
	}
	defer func() { _ = zr.Close() }()

	for _, f := range zr.File {
		name := filepath.FromSlash(f.Name)
		target := filepath.Join(dir, name)
		if filepath.IsAbs(name) || !paths.Within(dir, target) {
			return fmt.Errorf("%w: entry %q escapes archive root", ErrInvalidArchive, f.Name)
		}
		if target == filepath.Clean(dir) {
			continue
		}
		if f.FileInfo().IsDir() {
			if err := os.MkdirAll(target, 0750); err != nil {
				return err
			}
			continue
		}
		if f.Mode()&fs.ModeSymlink != 0 {
			return fmt.Errorf("%w: entry %q is a symlink", ErrInvalidArchive, f.Name)
		}
		if err := extractFile(f, target); err != nil {
			return err
		}
	}
	return nil
}

func extractFile(f *zip.File, target string) error {
	if f.UncompressedSize64 > maxArchiveEntry {
		return fmt.Errorf("%w: entry %q too large", ErrInvalidArchive, f.Name)
	}
	if err := os.MkdirAll(filepath.Dir(target), 0750); err != nil {
		return err
	}
	rc, err := f.Open()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidArchive, err)
	}
	defer func() { _ = rc.Close() }()

	out, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, io.LimitReader(rc, maxArchiveEntry)); err != nil {
		_ = out.Close()
		return fmt.Errorf("%w: %v", ErrInvalidArchive, err)
	}
	return out.Close()
}

// findRoot returns the directory holding index.json: the staging dir itself
// or its single top-level directory.
func findRoot(staging string) (string, error) {
	if _, err := os.Stat(filepath.Join(staging, descriptorName)); err == nil {
		return staging, nil
	}
	entries, err := os.ReadDir(staging)
	if err != nil {
		return "", err
	}
	var dirs []string
	for _, e := range entries {
		if e.IsDir() && !strings.HasPrefix(e.Name(), "__MACOSX") {
			dirs = append(dirs, filepath.Join(staging, e.Name()))
		}
	}
	if len(dirs) == 1 {
		if _, err := os.Stat(filepath.Join(dirs[0], descriptorName)); err == nil {
			return dirs[0], nil
		}
	}
	return "", fmt.Errorf("%w: no %s found", ErrInvalidArchive, descriptorName)
}

// moveDir renames src to dst, copying when they are on different devices.
func moveDir(src, dst string) error {
	if err := os.Rename(src, dst); err == nil {
		return nil
	}
	err := filepath.WalkDir(src, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(src, p)
		if err != nil {
			return err
		}
		target := filepath.Join(dst, rel)
		if d.IsDir() {
			return os.MkdirAll(target, 0750)
		}
		return copyFile(p, target)
	})
	if err != nil {
		_ = os.RemoveAll(dst)
		return fmt.Errorf("moving profile into store: %w", err)
	}
	return nil
}
