package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func loadConfigFromYAML(t *testing.T, yaml string) Config {
	t.Helper()

	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")
	err := os.WriteFile(configPath, []byte(yaml), 0644)
	require.NoError(t, err)

	v := viper.New()
	v.SetConfigFile(configPath)
	err = v.ReadInConfig()
	require.NoError(t, err)

	cfg := Defaults()
	err = v.Unmarshal(&cfg)
	require.NoError(t, err)

	return cfg
}

func TestDefaults_AreValid(t *testing.T) {
	cfg := Defaults()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 0.8, cfg.Volume)
	assert.Equal(t, 16, cfg.Playback.MaxSessions)
	assert.Equal(t, BackendAuto, cfg.Playback.Backend)
	assert.Equal(t, SourceHook, cfg.Capture.Source)
	assert.True(t, cfg.Capture.Repeat)
}

func TestDefaultConfigTemplate_MatchesDefaults(t *testing.T) {
	cfg := loadConfigFromYAML(t, DefaultConfigTemplate())
	cfg.ExpandPaths()

	want := Defaults()
	assert.Equal(t, want.Volume, cfg.Volume)
	assert.Equal(t, want.Playback, cfg.Playback)
	assert.Equal(t, want.Capture, cfg.Capture)
	assert.Equal(t, want.Stats.Enabled, cfg.Stats.Enabled)
	assert.Equal(t, want.Tracing.Exporter, cfg.Tracing.Exporter)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.True(t, filepath.IsAbs(cfg.ProfilesDir), "tilde expanded: %s", cfg.ProfilesDir)
	require.NoError(t, cfg.Validate())
}

func TestConfig_OverridesFromYAML(t *testing.T) {
	cfg := loadConfigFromYAML(t, `
volume: 0.25
playback:
  backend: pulse
  max_sessions: 4
  buffer_size: 50ms
capture:
  source: stdin
`)

	assert.Equal(t, 0.25, cfg.Volume)
	assert.Equal(t, BackendPulse, cfg.Playback.Backend)
	assert.Equal(t, 4, cfg.Playback.MaxSessions)
	assert.Equal(t, 50*time.Millisecond, cfg.Playback.BufferSize)
	assert.Equal(t, 44100, cfg.Playback.SampleRate, "unset keys keep defaults")
	assert.Equal(t, SourceStdin, cfg.Capture.Source)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"volume above one", func(c *Config) { c.Volume = 1.5 }, "volume"},
		{"negative volume", func(c *Config) { c.Volume = -0.1 }, "volume"},
		{"unknown backend", func(c *Config) { c.Playback.Backend = "alsa" }, "playback.backend"},
		{"zero sessions", func(c *Config) { c.Playback.MaxSessions = 0 }, "max_sessions"},
		{"bad sample rate", func(c *Config) { c.Playback.SampleRate = 10 }, "sample_rate"},
		{"bad source", func(c *Config) { c.Capture.Source = "x11" }, "capture.source"},
		{"zero queue", func(c *Config) { c.Capture.QueueSize = 0 }, "queue_size"},
		{"missing profiles dir", func(c *Config) { c.ProfilesDir = "" }, "profiles_dir"},
		{"bad exporter", func(c *Config) { c.Tracing.Enabled = true; c.Tracing.Exporter = "zipkin" }, "tracing.exporter"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Defaults()
			tt.mutate(&cfg)
			err := cfg.Validate()
			require.Error(t, err)
			require.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestWriteDefaultConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	require.NoError(t, WriteDefaultConfig(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, DefaultConfigTemplate(), string(data))
}

func TestSaveActiveProfile_CreatesNewFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")

	require.NoError(t, SaveActiveProfile(path, "Typewriter"))

	cfg := loadConfigFromYAML(t, readFile(t, path))
	require.Equal(t, "Typewriter", cfg.ActiveProfile)
}

func TestSaveActiveProfile_PreservesOtherConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	initial := `# my settings
volume: 0.3 # quiet
active_profile: Old
playback:
  backend: oto
`
	require.NoError(t, os.WriteFile(path, []byte(initial), 0644))

	require.NoError(t, SaveActiveProfile(path, "New One"))

	content := readFile(t, path)
	require.Contains(t, content, "# my settings")
	require.Contains(t, content, "# quiet")
	require.Contains(t, content, "backend: oto")
	require.NotContains(t, content, "Old")
	require.Equal(t, 1, strings.Count(content, "active_profile"))

	cfg := loadConfigFromYAML(t, content)
	require.Equal(t, "New One", cfg.ActiveProfile)
	require.Equal(t, 0.3, cfg.Volume)
}

func TestSaveActiveProfile_AppendsMissingKey(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("volume: 0.5\n"), 0644))

	require.NoError(t, SaveActiveProfile(path, "Default"))

	cfg := loadConfigFromYAML(t, readFile(t, path))
	require.Equal(t, "Default", cfg.ActiveProfile)
	require.Equal(t, 0.5, cfg.Volume)
}

func TestSaveActiveProfile_RejectsNonMapping(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("- a\n- b\n"), 0644))

	require.Error(t, SaveActiveProfile(path, "Default"))
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(data)
}
