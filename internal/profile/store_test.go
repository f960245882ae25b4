package profile

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/zjrosen/keysound/internal/keys"
)

// writeAsset creates a small file standing in for a sound asset.
func writeAsset(t *testing.T, path string, content string) string {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func writeIndex(t *testing.T, dir string, d descriptor) {
	t.Helper()
	require.NoError(t, os.MkdirAll(dir, 0755))
	data, err := json.Marshal(d)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, descriptorName), data, 0644))
}

func readContent(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(data)
}

func newLoadedStore(t *testing.T, dir string) *Store {
	t.Helper()
	s := NewStore(Config{Dir: dir})
	require.NoError(t, s.Load())
	return s
}

func TestLoad_EmptyDirSynthesizesDefault(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "profiles")
	s := newLoadedStore(t, dir)

	profiles := s.List()
	require.Len(t, profiles, 1)
	cur := s.Current()
	require.NotNil(t, cur)
	require.Equal(t, DefaultName, cur.Name)
	require.Equal(t, filepath.Join(dir, DefaultName, "DefaultSound.wav"), cur.DefaultSound)
	require.FileExists(t, cur.DefaultSound)
	require.FileExists(t, filepath.Join(dir, DefaultName, descriptorName))
	require.Zero(t, cur.Len())
}

func TestLoad_ParsesDescriptors(t *testing.T) {
	root := t.TempDir()
	pdir := filepath.Join(root, "Typewriter")
	writeAsset(t, filepath.Join(pdir, "sounds", "five.wav"), "5")
	writeAsset(t, filepath.Join(pdir, "sounds", "shift.wav"), "shift")
	writeAsset(t, filepath.Join(pdir, "DefaultSound.mp3"), "default")
	vol := 0.4
	writeIndex(t, pdir, descriptor{
		Name: "Typewriter",
		AssignedSounds: []assignedSound{
			{Key: "5", Sound: "five.wav"},
			{Key: "L Shift", Sound: "shift.wav", Volume: &vol},
			{Key: "Hyper", Sound: "five.wav"},
			{Key: "Fn", Sound: "five.wav"},
		},
	})

	s := newLoadedStore(t, root)
	p, err := s.Get("Typewriter")
	require.NoError(t, err)

	got, ok := p.Sound(keys.D5)
	require.True(t, ok)
	require.Equal(t, filepath.Join(pdir, "sounds", "five.wav"), got)

	got, ok = p.Sound(keys.LeftShift)
	require.True(t, ok)
	require.Equal(t, filepath.Join(pdir, "sounds", "shift.wav"), got)
	require.Equal(t, 0.4, p.Volume(keys.LeftShift))
	require.Equal(t, 1.0, p.Volume(keys.D5))

	require.Equal(t, 2, p.Len(), "unknown and unbindable keys are ignored")
	require.Equal(t, filepath.Join(pdir, "DefaultSound.mp3"), p.DefaultSound)
}

func TestLoad_CorruptDescriptorDoesNotAbortLoad(t *testing.T) {
	root := t.TempDir()
	bad := filepath.Join(root, "Broken")
	require.NoError(t, os.MkdirAll(bad, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(bad, descriptorName), []byte("{not json"), 0644))

	good := filepath.Join(root, "Good")
	writeAsset(t, filepath.Join(good, "sounds", "a.wav"), "a")
	writeIndex(t, good, descriptor{Name: "Good", AssignedSounds: []assignedSound{{Key: "A", Sound: "a.wav"}}})

	s := newLoadedStore(t, root)
	require.Len(t, s.List(), 2)

	broken, err := s.Get("Broken")
	require.NoError(t, err)
	require.Zero(t, broken.Len())
	require.Equal(t, bad, broken.Dir)

	p, err := s.Get("Good")
	require.NoError(t, err)
	require.Equal(t, 1, p.Len())
}

func TestLoad_ImplicitMappingFromFileNames(t *testing.T) {
	root := t.TempDir()
	pdir := filepath.Join(root, "Pack")
	writeAsset(t, filepath.Join(pdir, "sounds", "A.wav"), "a")
	writeAsset(t, filepath.Join(pdir, "sounds", "Space.ogg"), "space")
	writeAsset(t, filepath.Join(pdir, "sounds", "7.mp3"), "seven")
	writeAsset(t, filepath.Join(pdir, "sounds", "readme.txt"), "not audio")
	writeAsset(t, filepath.Join(pdir, "sounds", "boom.wav"), "no key")

	s := newLoadedStore(t, root)
	p := s.Current()
	require.Equal(t, "Pack", p.Name)
	require.Equal(t, 3, p.Len())
	for _, k := range []keys.Key{keys.A, keys.Space, keys.D7} {
		_, ok := p.Sound(k)
		require.True(t, ok, k.String())
	}
}

func TestLoad_ActiveProfileSelection(t *testing.T) {
	root := t.TempDir()
	writeIndex(t, filepath.Join(root, "Alpha"), descriptor{Name: "Alpha"})
	writeIndex(t, filepath.Join(root, "Beta"), descriptor{Name: "Beta"})

	s := NewStore(Config{Dir: root, ActiveProfile: "Beta"})
	require.NoError(t, s.Load())
	require.Equal(t, "Beta", s.Current().Name)

	missing := NewStore(Config{Dir: root, ActiveProfile: "Gamma"})
	require.NoError(t, missing.Load())
	require.Equal(t, "Alpha", missing.Current().Name, "falls back to the first profile")

	require.NoError(t, s.SetCurrent("Alpha"))
	require.NoError(t, s.Reload())
	require.Equal(t, "Alpha", s.Current().Name, "reload keeps the current profile")
}

func TestLoad_SeedsDefaultFromPreviousCurrent(t *testing.T) {
	root := t.TempDir()
	ext := filepath.Join(t.TempDir(), "tap.wav")
	writeAsset(t, ext, "tap")

	s := newLoadedStore(t, root)
	p, err := s.Create("Custom")
	require.NoError(t, err)
	require.NoError(t, s.SetCurrent(p.Name))
	require.NoError(t, s.SetKeySound(keys.Q, ext))

	// Everything disappears from disk; only the in-memory mapping remains.
	require.NoError(t, os.RemoveAll(root))
	require.NoError(t, s.Reload())

	cur := s.Current()
	require.Equal(t, DefaultName, cur.Name)
	_, ok := cur.Sound(keys.Q)
	require.True(t, ok, "mapping seeded from the previous current profile")
}

func TestCreate(t *testing.T) {
	s := newLoadedStore(t, t.TempDir())
	s.now = func() time.Time { return time.Date(2024, 3, 5, 14, 7, 9, 0, time.UTC) }

	p, err := s.Create("Mechanical")
	require.NoError(t, err)
	require.Equal(t, "Mechanical", p.Name)
	require.DirExists(t, p.SoundsDir())
	require.Equal(t, DefaultName, s.Current().Name, "create does not switch profiles")

	dup, err := s.Create("Mechanical")
	require.NoError(t, err)
	require.Equal(t, "Mechanical_20240305140709", dup.Name)

	third, err := s.Create("Mechanical")
	require.NoError(t, err)
	require.Equal(t, "Mechanical_20240305140709_2", third.Name)

	// Names compare case-insensitively so they stay distinct on every filesystem.
	folded, err := s.Create("mechanical")
	require.NoError(t, err)
	require.Equal(t, "mechanical_20240305140709_3", folded.Name)

	require.Len(t, s.List(), 5)
}

func TestCreate_SanitizesNames(t *testing.T) {
	s := newLoadedStore(t, t.TempDir())
	for _, name := range []string{"", "   ", ".", "..", "..."} {
		_, err := s.Create(name)
		require.ErrorIs(t, err, ErrInvalidName, name)
	}

	for name, want := range map[string]string{
		"a/b":      "a_b",
		`c\d`:      "c_d",
		"e:f":      "e_f",
		"x?":       "x_",
		".hidden":  "_hidden",
		"Tab\tKey": "Tab_Key",
	} {
		p, err := s.Create(name)
		require.NoError(t, err, name)
		require.Equal(t, want, p.Name, name)
		require.Equal(t, filepath.Join(s.Dir(), want), p.Dir)
		require.DirExists(t, p.Dir)
	}
}

func TestCreate_CopiesCurrentProfile(t *testing.T) {
	s := newLoadedStore(t, t.TempDir())
	typing, err := s.Create("Typing")
	require.NoError(t, err)
	require.NoError(t, s.SetCurrent(typing.Name))

	assets := t.TempDir()
	require.NoError(t, s.SetKeySound(keys.A, writeAsset(t, filepath.Join(assets, "click.wav"), "click")))
	require.NoError(t, s.SetKeyVolume(keys.A, 0.5))
	require.NoError(t, s.SetDefaultSound(writeAsset(t, filepath.Join(assets, "tick.wav"), "tick")))

	copied, err := s.Create("Typing2")
	require.NoError(t, err)
	require.Equal(t, 1, copied.Len())
	got, ok := copied.Sound(keys.A)
	require.True(t, ok)
	require.Equal(t, filepath.Join(copied.SoundsDir(), "A.wav"), got)
	require.Equal(t, 0.5, copied.Volume(keys.A))
	require.Equal(t, filepath.Join(copied.Dir, "DefaultSound.wav"), copied.DefaultSound)

	require.NoError(t, s.SetCurrent("Typing2"))
	require.NoError(t, s.Delete("Typing"))

	cur := s.Current()
	require.Equal(t, "Typing2", cur.Name)
	got, ok = cur.Sound(keys.A)
	require.True(t, ok)
	require.Equal(t, "click", readContent(t, got))
	require.Equal(t, "tick", readContent(t, cur.DefaultSound))

	reloaded := newLoadedStore(t, s.Dir())
	p, err := reloaded.Get("Typing2")
	require.NoError(t, err)
	require.Equal(t, 1, p.Len())
	require.Equal(t, 0.5, p.Volume(keys.A))
}

func TestDelete(t *testing.T) {
	s := newLoadedStore(t, t.TempDir())

	err := s.Delete(DefaultName)
	require.ErrorIs(t, err, ErrLastProfile)
	require.Len(t, s.List(), 1)

	p, err := s.Create("Other")
	require.NoError(t, err)
	require.NoError(t, s.SetCurrent("Other"))

	require.NoError(t, s.Delete("Other"))
	require.NoDirExists(t, p.Dir)
	require.Equal(t, DefaultName, s.Current().Name, "deleting the current profile selects another")

	require.ErrorIs(t, s.Delete("Other"), ErrNotFound)
}

func TestDelete_RetriesAndKeepsLogicalDeletion(t *testing.T) {
	s := newLoadedStore(t, t.TempDir())
	_, err := s.Create("Locked")
	require.NoError(t, err)

	calls := 0
	s.retryDelay = time.Millisecond
	s.removeAll = func(string) error {
		calls++
		return errors.New("file in use")
	}

	require.NoError(t, s.Delete("Locked"))
	require.Equal(t, deleteAttempts, calls)
	_, err = s.Get("Locked")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestDelete_SucceedsOnRetry(t *testing.T) {
	s := newLoadedStore(t, t.TempDir())
	p, err := s.Create("Flaky")
	require.NoError(t, err)

	calls := 0
	s.retryDelay = time.Millisecond
	s.removeAll = func(dir string) error {
		calls++
		if calls < 2 {
			return errors.New("busy")
		}
		return os.RemoveAll(dir)
	}

	require.NoError(t, s.Delete("Flaky"))
	require.Equal(t, 2, calls)
	require.NoDirExists(t, p.Dir)
}

func TestSetKeySound_CopiesIntoProfile(t *testing.T) {
	s := newLoadedStore(t, t.TempDir())
	src := writeAsset(t, filepath.Join(t.TempDir(), "clack.WAV"), "clack")

	require.NoError(t, s.SetKeySound(keys.A, src))

	cur := s.Current()
	got, ok := cur.Sound(keys.A)
	require.True(t, ok)
	require.Equal(t, filepath.Join(cur.SoundsDir(), "A.wav"), got)
	require.Equal(t, "clack", readContent(t, got))

	// The change is on disk, not only in memory.
	fresh := newLoadedStore(t, s.Dir())
	reloaded, ok := fresh.Current().Sound(keys.A)
	require.True(t, ok)
	require.Equal(t, got, reloaded)
}

func TestSetKeySound_ReplacesAssetWithDifferentExtension(t *testing.T) {
	s := newLoadedStore(t, t.TempDir())
	wav := writeAsset(t, filepath.Join(t.TempDir(), "one.wav"), "wav")
	mp3 := writeAsset(t, filepath.Join(t.TempDir(), "two.mp3"), "mp3")

	require.NoError(t, s.SetKeySound(keys.Enter, wav))
	require.NoError(t, s.SetKeyVolume(keys.Enter, 0.3))
	require.NoError(t, s.SetKeySound(keys.Enter, mp3))

	cur := s.Current()
	got, _ := cur.Sound(keys.Enter)
	require.Equal(t, filepath.Join(cur.SoundsDir(), "Enter.mp3"), got)
	require.NoFileExists(t, filepath.Join(cur.SoundsDir(), "Enter.wav"))
	require.Equal(t, 0.3, cur.Volume(keys.Enter), "volume survives reassignment")
	require.Equal(t, 1, cur.Len())
}

func TestSetKeySound_ReferencesAssetsInsideProfile(t *testing.T) {
	s := newLoadedStore(t, t.TempDir())
	cur := s.Current()
	inside := writeAsset(t, filepath.Join(cur.SoundsDir(), "shared.wav"), "shared")

	require.NoError(t, s.SetKeySound(keys.B, inside))
	require.NoError(t, s.SetKeySound(keys.C, inside))

	cur = s.Current()
	b, _ := cur.Sound(keys.B)
	c, _ := cur.Sound(keys.C)
	require.Equal(t, inside, b)
	require.Equal(t, inside, c)
	require.NoFileExists(t, filepath.Join(cur.SoundsDir(), "B.wav"))
}

func TestSetKeySound_Validation(t *testing.T) {
	s := newLoadedStore(t, t.TempDir())
	src := writeAsset(t, filepath.Join(t.TempDir(), "note.txt"), "text")

	require.ErrorIs(t, s.SetKeySound(keys.None, src), ErrInvalidKey)
	require.ErrorIs(t, s.SetKeySound(keys.A, src), ErrUnsupportedAsset)
	require.ErrorIs(t, s.SetKeySound(keys.A, filepath.Join(t.TempDir(), "gone.wav")), os.ErrNotExist)
	require.Zero(t, s.Current().Len())
}

func TestSetKeySound_BeforeLoad(t *testing.T) {
	s := NewStore(Config{Dir: t.TempDir()})
	src := writeAsset(t, filepath.Join(t.TempDir(), "a.wav"), "a")
	require.ErrorIs(t, s.SetKeySound(keys.A, src), ErrNotFound)
	require.Nil(t, s.Current())
}

func TestClearKeySound(t *testing.T) {
	s := newLoadedStore(t, t.TempDir())
	src := writeAsset(t, filepath.Join(t.TempDir(), "a.wav"), "a")
	require.NoError(t, s.SetKeySound(keys.A, src))
	copied, _ := s.Current().Sound(keys.A)

	require.NoError(t, s.ClearKeySound(keys.A))
	_, ok := s.Current().Sound(keys.A)
	require.False(t, ok)
	require.NoFileExists(t, copied)

	// A rescan must not bring the key back through its file name.
	require.NoError(t, s.Reload())
	_, ok = s.Current().Sound(keys.A)
	require.False(t, ok)

	var notAssigned *KeyNotAssignedError
	require.ErrorAs(t, s.ClearKeySound(keys.A), &notAssigned)
	require.Equal(t, "A", notAssigned.Key)
}

func TestSetKeyVolume(t *testing.T) {
	s := newLoadedStore(t, t.TempDir())
	src := writeAsset(t, filepath.Join(t.TempDir(), "a.wav"), "a")
	require.NoError(t, s.SetKeySound(keys.A, src))

	require.NoError(t, s.SetKeyVolume(keys.A, 1.7))
	require.Equal(t, 1.0, s.Current().Volume(keys.A))
	require.NoError(t, s.SetKeyVolume(keys.A, -2))
	require.Equal(t, 0.0, s.Current().Volume(keys.A))
	require.NoError(t, s.SetKeyVolume(keys.A, 0.25))

	fresh := newLoadedStore(t, s.Dir())
	require.Equal(t, 0.25, fresh.Current().Volume(keys.A))

	var notAssigned *KeyNotAssignedError
	require.ErrorAs(t, s.SetKeyVolume(keys.Z, 0.5), &notAssigned)
}

func TestSetDefaultSound_ReplacesPreviousDefault(t *testing.T) {
	s := newLoadedStore(t, t.TempDir())
	cur := s.Current()
	require.FileExists(t, filepath.Join(cur.Dir, "DefaultSound.wav"))

	src := writeAsset(t, filepath.Join(t.TempDir(), "thock.flac"), "thock")
	require.NoError(t, s.SetDefaultSound(src))

	cur = s.Current()
	require.Equal(t, filepath.Join(cur.Dir, "DefaultSound.flac"), cur.DefaultSound)
	require.Equal(t, "thock", readContent(t, cur.DefaultSound))
	require.NoFileExists(t, filepath.Join(cur.Dir, "DefaultSound.wav"))

	fresh := newLoadedStore(t, s.Dir())
	require.Equal(t, cur.DefaultSound, fresh.Current().DefaultSound)
}

func TestImportSound_AutoMapsByFileName(t *testing.T) {
	s := newLoadedStore(t, t.TempDir())
	dir := t.TempDir()

	k, err := s.ImportSound(writeAsset(t, filepath.Join(dir, "Space.wav"), "space"))
	require.NoError(t, err)
	require.Equal(t, keys.Space, k)

	k, err = s.ImportSound(writeAsset(t, filepath.Join(dir, "ambient.wav"), "ambient"))
	require.NoError(t, err)
	require.Equal(t, keys.None, k)

	cur := s.Current()
	got, ok := cur.Sound(keys.Space)
	require.True(t, ok)
	require.Equal(t, filepath.Join(cur.SoundsDir(), "Space.wav"), got)
	require.FileExists(t, filepath.Join(cur.SoundsDir(), "ambient.wav"))
	require.Equal(t, 1, cur.Len())
}

func TestSave_PersistsAndReplaces(t *testing.T) {
	s := newLoadedStore(t, t.TempDir())
	cur := s.Current()

	edited := cur.clone()
	edited.Mode = "single"
	edited.set(Assignment{Key: keys.Tab, Sound: filepath.Join(cur.SoundsDir(), "tab.wav")})
	require.NoError(t, s.Save(edited))
	require.Equal(t, "single", s.Current().Mode)

	d, err := readDescriptor(cur.Dir)
	require.NoError(t, err)
	require.Equal(t, "single", d.Mode)
	require.Equal(t, []assignedSound{{Key: "Tab", Sound: "tab.wav"}}, d.AssignedSounds)
	require.Equal(t, "DefaultSound.wav", d.DefaultSound)

	stranger := newProfile("Nope", filepath.Join(s.Dir(), "Nope"))
	require.ErrorIs(t, s.Save(stranger), ErrNotFound)
	require.ErrorIs(t, s.Save(nil), ErrNotFound)
}

func TestSave_WritesImplicitMappingIntoDescriptor(t *testing.T) {
	root := t.TempDir()
	pdir := filepath.Join(root, "Pack")
	writeAsset(t, filepath.Join(pdir, "sounds", "B.wav"), "b")
	writeIndex(t, pdir, descriptor{Name: "Pack"})

	s := newLoadedStore(t, root)
	require.NoError(t, s.Save(s.Current()))

	d, err := readDescriptor(pdir)
	require.NoError(t, err)
	require.Equal(t, []assignedSound{{Key: "B", Sound: "B.wav"}}, d.AssignedSounds)
}

func TestEdits_KeepUnrecognizedDescriptorEntries(t *testing.T) {
	root := t.TempDir()
	pdir := filepath.Join(root, "Pack")
	writeAsset(t, filepath.Join(pdir, "sounds", "A.wav"), "a")
	writeAsset(t, filepath.Join(pdir, "sounds", "fn.wav"), "fn")
	writeIndex(t, pdir, descriptor{
		Name: "Pack",
		AssignedSounds: []assignedSound{
			{Key: "A", Sound: "A.wav"},
			{Key: "Fn", Sound: "fn.wav"},
			{Key: "MouseLeft", Sound: "A.wav"},
		},
	})

	s := newLoadedStore(t, root)
	require.Equal(t, 1, s.Current().Len())
	require.NoError(t, s.SetKeySound(keys.B, writeAsset(t, filepath.Join(t.TempDir(), "b.wav"), "b")))

	d, err := readDescriptor(pdir)
	require.NoError(t, err)
	var got []string
	for _, as := range d.AssignedSounds {
		got = append(got, as.Key+"="+as.Sound)
	}
	require.Equal(t, []string{"A=A.wav", "B=B.wav", "Fn=fn.wav", "MouseLeft=A.wav"}, got)

	copied, err := s.Create("Copy")
	require.NoError(t, err)
	require.FileExists(t, filepath.Join(copied.SoundsDir(), "fn.wav"))
	d, err = readDescriptor(copied.Dir)
	require.NoError(t, err)
	require.Len(t, d.AssignedSounds, 4)
}

func TestOnChange_ReceivesCurrentProfile(t *testing.T) {
	s := NewStore(Config{Dir: t.TempDir()})
	var seen []string
	s.OnChange(func(p *Profile) { seen = append(seen, p.Name) })

	require.NoError(t, s.Load())
	_, err := s.Create("Second")
	require.NoError(t, err)
	require.NoError(t, s.SetCurrent("Second"))

	require.Equal(t, []string{DefaultName, DefaultName, "Second"}, seen)

	require.ErrorIs(t, s.SetCurrent("Missing"), ErrNotFound)
	require.Len(t, seen, 3, "failed edits do not notify")
}

func TestLastWrite_TracksStoreWrites(t *testing.T) {
	s := NewStore(Config{Dir: t.TempDir()})
	require.True(t, s.LastWrite().IsZero())

	require.NoError(t, s.Load())
	require.False(t, s.LastWrite().IsZero(), "synthesizing the default profile writes to disk")
}

func TestReaders_SeeConsistentSnapshots(t *testing.T) {
	s := newLoadedStore(t, t.TempDir())
	src := writeAsset(t, filepath.Join(t.TempDir(), "a.wav"), "a")

	held := s.Current()
	require.NoError(t, s.SetKeySound(keys.A, src))

	_, ok := held.Sound(keys.A)
	require.False(t, ok, "a profile already handed out is never mutated")
	_, ok = s.Current().Sound(keys.A)
	require.True(t, ok)
}
