// Package config provides configuration types and defaults for keysound.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/zjrosen/keysound/internal/paths"
)

// Config holds all configuration options for keysound.
type Config struct {
	ProfilesDir   string         `mapstructure:"profiles_dir"`
	LibraryDir    string         `mapstructure:"library_dir"`
	ActiveProfile string         `mapstructure:"active_profile"`
	Volume        float64        `mapstructure:"volume"` // master volume, 0..1
	WatchProfiles bool           `mapstructure:"watch_profiles"`
	Playback      PlaybackConfig `mapstructure:"playback"`
	Capture       CaptureConfig  `mapstructure:"capture"`
	Stats         StatsConfig    `mapstructure:"stats"`
	Tracing       TracingConfig  `mapstructure:"tracing"`
	Log           LogConfig      `mapstructure:"log"`
}

// PlaybackConfig controls the audio engine.
type PlaybackConfig struct {
	// Backend selects the output. "auto" tries every available backend in
	// order of latency and falls back silently.
	// Valid values: "auto", "oto", "pulse", "command"
	Backend     string        `mapstructure:"backend"`
	MaxSessions int           `mapstructure:"max_sessions"`
	SampleRate  int           `mapstructure:"sample_rate"`
	BufferSize  time.Duration `mapstructure:"buffer_size"`
	CacheTTL    time.Duration `mapstructure:"cache_ttl"`
}

// CaptureConfig controls the keyboard intercept.
type CaptureConfig struct {
	// Source is "hook" for the system-wide intercept or "stdin" for the
	// terminal reader.
	Source    string `mapstructure:"source"`
	QueueSize int    `mapstructure:"queue_size"`
	Repeat    bool   `mapstructure:"repeat"`
}

// StatsConfig controls key-press statistics.
type StatsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	DBPath  string `mapstructure:"db_path"`
}

// TracingConfig controls OpenTelemetry export.
type TracingConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Exporter string `mapstructure:"exporter"` // "stdout" or "otlp"
	Endpoint string `mapstructure:"endpoint"`
	FilePath string `mapstructure:"file_path"` // stdout exporter target, empty means stdout
}

// LogConfig controls the debug log.
type LogConfig struct {
	Path  string `mapstructure:"path"`
	Level string `mapstructure:"level"`
}

// Backend names.
const (
	BackendAuto    = "auto"
	BackendOto     = "oto"
	BackendPulse   = "pulse"
	BackendCommand = "command"
)

// Capture sources.
const (
	SourceHook  = "hook"
	SourceStdin = "stdin"
)

// Defaults returns a Config with sensible default values.
func Defaults() Config {
	dir := paths.ConfigDir()
	return Config{
		ProfilesDir:   filepath.Join(dir, "profiles"),
		LibraryDir:    filepath.Join(dir, "library"),
		Volume:        0.8,
		WatchProfiles: true,
		Playback: PlaybackConfig{
			Backend:     BackendAuto,
			MaxSessions: 16,
			SampleRate:  44100,
			BufferSize:  20 * time.Millisecond,
			CacheTTL:    10 * time.Minute,
		},
		Capture: CaptureConfig{
			Source:    SourceHook,
			QueueSize: 256,
			Repeat:    true,
		},
		Stats: StatsConfig{
			DBPath: filepath.Join(dir, "keysound.db"),
		},
		Tracing: TracingConfig{
			Exporter: "stdout",
			Endpoint: "localhost:4317",
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Validate checks the configuration for values the runtime cannot use.
func (c Config) Validate() error {
	if c.ProfilesDir == "" {
		return fmt.Errorf("profiles_dir is required")
	}
	if c.Volume < 0 || c.Volume > 1 {
		return fmt.Errorf("volume %.2f: must be between 0 and 1", c.Volume)
	}
	switch c.Playback.Backend {
	case "", BackendAuto, BackendOto, BackendPulse, BackendCommand:
	default:
		return fmt.Errorf("playback.backend %q: must be one of auto, oto, pulse, command", c.Playback.Backend)
	}
	if c.Playback.MaxSessions < 1 {
		return fmt.Errorf("playback.max_sessions must be at least 1")
	}
	if c.Playback.SampleRate < 8000 || c.Playback.SampleRate > 192000 {
		return fmt.Errorf("playback.sample_rate %d: out of range", c.Playback.SampleRate)
	}
	switch c.Capture.Source {
	case "", SourceHook, SourceStdin:
	default:
		return fmt.Errorf("capture.source %q: must be hook or stdin", c.Capture.Source)
	}
	if c.Capture.QueueSize < 1 {
		return fmt.Errorf("capture.queue_size must be at least 1")
	}
	if c.Tracing.Enabled {
		switch c.Tracing.Exporter {
		case "stdout", "otlp":
		default:
			return fmt.Errorf("tracing.exporter %q: must be stdout or otlp", c.Tracing.Exporter)
		}
	}
	return nil
}

// ExpandPaths resolves "~" in every path-valued option.
func (c *Config) ExpandPaths() {
	c.ProfilesDir = paths.Expand(c.ProfilesDir)
	c.LibraryDir = paths.Expand(c.LibraryDir)
	c.Stats.DBPath = paths.Expand(c.Stats.DBPath)
	c.Tracing.FilePath = paths.Expand(c.Tracing.FilePath)
	c.Log.Path = paths.Expand(c.Log.Path)
}

// DefaultConfigTemplate returns the default config as a YAML string with comments.
func DefaultConfigTemplate() string {
	return `# keysound configuration

# Where sound profiles live. Each profile is a directory holding index.json,
# a sounds/ folder and an optional DefaultSound file.
profiles_dir: ~/.config/keysound/profiles

# Reusable sound assets that can be assigned to keys
library_dir: ~/.config/keysound/library

# Profile selected at startup (updated by 'keysound profile use')
active_profile: ""

# Master volume, 0.0 - 1.0
volume: 0.8

# Reload profiles when files change on disk
watch_profiles: true

playback:
  backend: auto        # auto | oto | pulse | command
  max_sessions: 16     # sounds allowed to overlap; extra key presses are skipped
  sample_rate: 44100
  buffer_size: 20ms
  cache_ttl: 10m       # how long decoded sounds stay in memory

capture:
  source: hook         # hook (system-wide) | stdin (terminal only)
  queue_size: 256
  repeat: true         # play for auto-repeat while a key is held

# Count key presses per profile ('keysound stats')
stats:
  enabled: false
  db_path: ~/.config/keysound/keysound.db

tracing:
  enabled: false
  exporter: stdout     # stdout | otlp
  endpoint: localhost:4317
  # file_path: /tmp/keysound-traces.json

log:
  # path: /tmp/keysound.log
  level: info          # debug | info | warn | error
`
}

// WriteDefaultConfig creates a config file at the given path with default settings and comments.
// Creates the parent directory if it doesn't exist.
func WriteDefaultConfig(configPath string) error {
	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0750); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	if err := os.WriteFile(configPath, []byte(DefaultConfigTemplate()), 0600); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}

	return nil
}
