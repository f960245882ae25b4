package profile

import (
	"archive/zip"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/zjrosen/keysound/internal/keys"
)

// contentsByKey maps each assigned key to the bytes of its asset.
func contentsByKey(t *testing.T, p *Profile) map[keys.Key]string {
	t.Helper()
	out := make(map[keys.Key]string)
	for _, a := range p.Assignments() {
		out[a.Key] = readContent(t, a.Sound)
	}
	return out
}

func writeZip(t *testing.T, path string, entries map[string]string) {
	t.Helper()
	f, err := os.Create(path)
	require.NoError(t, err)
	zw := zip.NewWriter(f)
	for name, body := range entries {
		w, err := zw.Create(name)
		require.NoError(t, err)
		_, err = w.Write([]byte(body))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	require.NoError(t, f.Close())
}

func TestArchive_RoundTripToAnotherStore(t *testing.T) {
	src := newLoadedStore(t, t.TempDir())
	assets := t.TempDir()

	require.NoError(t, src.SetKeySound(keys.A, writeAsset(t, filepath.Join(assets, "a.wav"), "alpha")))
	require.NoError(t, src.SetKeySound(keys.Space, writeAsset(t, filepath.Join(assets, "space.mp3"), "space")))
	require.NoError(t, src.SetKeyVolume(keys.Space, 0.6))
	require.NoError(t, src.SetDefaultSound(writeAsset(t, filepath.Join(assets, "tick.ogg"), "tick")))

	archive := filepath.Join(t.TempDir(), "out", "default.zip")
	require.NoError(t, src.ExportArchive(DefaultName, archive))
	require.FileExists(t, archive)

	dst := newLoadedStore(t, t.TempDir())
	_, err := dst.Create("Other")
	require.NoError(t, err)
	require.NoError(t, dst.Delete(DefaultName))

	imported, err := dst.ImportArchive(archive)
	require.NoError(t, err)
	require.Equal(t, DefaultName, imported.Name)

	want := src.Current()
	require.Equal(t, contentsByKey(t, want), contentsByKey(t, imported))
	require.Equal(t, 0.6, imported.Volume(keys.Space))
	require.Equal(t, "tick", readContent(t, imported.DefaultSound))
	require.Len(t, dst.List(), 2)
}

func TestArchive_ImportCollisionGetsSuffix(t *testing.T) {
	s := newLoadedStore(t, t.TempDir())
	s.now = func() time.Time { return time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC) }
	require.NoError(t, s.SetKeySound(keys.B, writeAsset(t, filepath.Join(t.TempDir(), "b.wav"), "bravo")))

	archive := filepath.Join(t.TempDir(), "default.zip")
	require.NoError(t, s.ExportArchive(DefaultName, archive))

	imported, err := s.ImportArchive(archive)
	require.NoError(t, err)
	require.Equal(t, DefaultName+"_20250102030405", imported.Name)
	require.Equal(t, contentsByKey(t, s.Current()), contentsByKey(t, imported))

	// The imported descriptor carries the final name.
	d, err := readDescriptor(imported.Dir)
	require.NoError(t, err)
	require.Equal(t, imported.Name, d.Name)
}

func TestArchive_ExportBundlesExternalAssets(t *testing.T) {
	root := t.TempDir()
	external := writeAsset(t, filepath.Join(t.TempDir(), "outside.wav"), "external")
	pdir := filepath.Join(root, "Linked")
	writeIndex(t, pdir, descriptor{Name: "Linked", AssignedSounds: []assignedSound{{Key: "K", Sound: external}}})

	s := newLoadedStore(t, root)
	archive := filepath.Join(t.TempDir(), "linked.zip")
	require.NoError(t, s.ExportArchive("Linked", archive))

	zr, err := zip.OpenReader(archive)
	require.NoError(t, err)
	var names []string
	for _, f := range zr.File {
		names = append(names, f.Name)
	}
	require.NoError(t, zr.Close())
	require.ElementsMatch(t, []string{"index.json", "sounds/external/outside.wav"}, names)

	require.NoError(t, os.Remove(external))
	imported, err := newLoadedStore(t, t.TempDir()).ImportArchive(archive)
	require.NoError(t, err)
	got, ok := imported.Sound(keys.K)
	require.True(t, ok)
	require.Equal(t, "external", readContent(t, got))
}

func TestImportArchive_NestedRootAndNameFromFile(t *testing.T) {
	archive := filepath.Join(t.TempDir(), "Clicky.zip")
	writeZip(t, archive, map[string]string{
		"pack/index.json":    `{"assigned_sounds": [{"key": "D1", "sound": "one.wav"}]}`,
		"pack/sounds/one.wav": "one",
	})

	s := newLoadedStore(t, t.TempDir())
	p, err := s.ImportArchive(archive)
	require.NoError(t, err)
	require.Equal(t, "Clicky", p.Name)
	got, ok := p.Sound(keys.D1)
	require.True(t, ok)
	require.Equal(t, "one", readContent(t, got))
}

func TestImportArchive_RejectsPathTraversal(t *testing.T) {
	base := t.TempDir()
	archive := filepath.Join(base, "evil.zip")
	writeZip(t, archive, map[string]string{
		"index.json":       `{"name": "Evil"}`,
		"../../escaped.wav": "gotcha",
	})

	s := newLoadedStore(t, filepath.Join(base, "profiles"))
	_, err := s.ImportArchive(archive)
	require.ErrorIs(t, err, ErrInvalidArchive)
	require.NoFileExists(t, filepath.Join(base, "escaped.wav"))
	_, err = s.Get("Evil")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestImportArchive_InvalidInputs(t *testing.T) {
	dir := t.TempDir()
	s := newLoadedStore(t, filepath.Join(dir, "profiles"))

	notZip := writeAsset(t, filepath.Join(dir, "bad.zip"), "this is not a zip")
	_, err := s.ImportArchive(notZip)
	require.ErrorIs(t, err, ErrInvalidArchive)

	noIndex := filepath.Join(dir, "noindex.zip")
	writeZip(t, noIndex, map[string]string{"sounds/a.wav": "a"})
	_, err = s.ImportArchive(noIndex)
	require.ErrorIs(t, err, ErrInvalidArchive)

	require.Len(t, s.List(), 1)
}

func TestExportArchive_UnknownProfile(t *testing.T) {
	s := newLoadedStore(t, t.TempDir())
	err := s.ExportArchive("Nope", filepath.Join(t.TempDir(), "x.zip"))
	require.ErrorIs(t, err, ErrNotFound)
}

// Property: no sequence of create, delete and switch operations leaves the
// store without a profile or with a current profile it does not list.
func TestStore_AlwaysHasProfileProperty(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		dir, err := os.MkdirTemp("", "keysound-prop-*")
		if err != nil {
			rt.Fatalf("temp dir: %v", err)
		}
		defer func() { _ = os.RemoveAll(dir) }()

		s := NewStore(Config{Dir: dir})
		s.retryDelay = 0
		if err := s.Load(); err != nil {
			rt.Fatalf("load: %v", err)
		}

		steps := rapid.IntRange(1, 25).Draw(rt, "steps")
		for i := 0; i < steps; i++ {
			list := s.List()
			switch rapid.IntRange(0, 3).Draw(rt, "op") {
			case 0:
				name := fmt.Sprintf("p%d", rapid.IntRange(0, 4).Draw(rt, "name"))
				if _, err := s.Create(name); err != nil {
					rt.Fatalf("create %s: %v", name, err)
				}
			case 1:
				victim := list[rapid.IntRange(0, len(list)-1).Draw(rt, "victim")]
				err := s.Delete(victim.Name)
				if len(list) == 1 && err == nil {
					rt.Fatalf("deleted the last profile")
				}
			case 2:
				target := list[rapid.IntRange(0, len(list)-1).Draw(rt, "target")]
				if err := s.SetCurrent(target.Name); err != nil {
					rt.Fatalf("set current %s: %v", target.Name, err)
				}
			case 3:
				if err := s.Reload(); err != nil {
					rt.Fatalf("reload: %v", err)
				}
			}

			after := s.List()
			if len(after) == 0 {
				rt.Fatalf("store is empty after step %d", i)
			}
			cur := s.Current()
			if cur == nil {
				rt.Fatalf("no current profile after step %d", i)
			}
			found := false
			for _, p := range after {
				if p == cur {
					found = true
				}
			}
			if !found {
				rt.Fatalf("current profile %q is not listed", cur.Name)
			}
		}
	})
}
