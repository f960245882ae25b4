// Package cmd implements the keysound command line.
package cmd

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/zjrosen/keysound/internal/config"
	"github.com/zjrosen/keysound/internal/log"
	"github.com/zjrosen/keysound/internal/paths"
)

var (
	cfg         config.Config
	cfgFile     string
	configPath  string
	profilesDir string
	logFile     string
	debug       bool
	closeLog    func()
)

var rootCmd = &cobra.Command{
	Use:   "keysound",
	Short: "Play a sound for every key you press",
	Long: `keysound listens for key presses and plays the sound mapped to each key
in the active sound profile, falling back to the profile's default sound.`,
	SilenceUsage:      true,
	PersistentPreRunE: setup,
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if closeLog != nil {
			closeLog()
			closeLog = nil
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file (default ~/.config/keysound/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&profilesDir, "profiles-dir", "", "override the profiles directory")
	rootCmd.PersistentFlags().StringVar(&logFile, "log-file", "", "write the log to this file")
	rootCmd.PersistentFlags().BoolVarP(&debug, "debug", "d", false, "enable debug logging")
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func setup(cmd *cobra.Command, args []string) error {
	c, path, err := loadConfig(cfgFile)
	if err != nil {
		return err
	}
	if profilesDir != "" {
		c.ProfilesDir = paths.Expand(profilesDir)
	}
	if logFile != "" {
		c.Log.Path = paths.Expand(logFile)
	}
	if debug {
		c.Log.Level = "debug"
	}
	if err := c.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	cfg, configPath = c, path

	level, ok := log.ParseLevel(cfg.Log.Level)
	if !ok {
		return fmt.Errorf("invalid log level %q", cfg.Log.Level)
	}
	log.SetLevel(level)
	if cfg.Log.Path != "" || debug {
		cleanup, err := log.Init(cfg.Log.Path)
		if err != nil {
			return err
		}
		closeLog = cleanup
	}
	log.Debug(log.CatConfig, "Configuration loaded", "file", configPath, "profiles", cfg.ProfilesDir)
	return nil
}

// loadConfig reads the config file at path, or the default location when
// path is empty. A missing file yields the defaults. KEYSOUND_* environment
// variables override file values, e.g. KEYSOUND_PLAYBACK_BACKEND=command.
func loadConfig(path string) (config.Config, string, error) {
	if path == "" {
		path = paths.ConfigFile()
	}
	path = paths.Expand(path)

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.SetEnvPrefix("KEYSOUND")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v, config.Defaults())

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
			return config.Config{}, "", fmt.Errorf("reading config %s: %w", path, err)
		}
	}

	var c config.Config
	if err := v.Unmarshal(&c); err != nil {
		return config.Config{}, "", fmt.Errorf("parsing config %s: %w", path, err)
	}
	c.ExpandPaths()
	return c, path, nil
}

// setDefaults registers every key so environment overrides apply even when
// the file omits them.
func setDefaults(v *viper.Viper, d config.Config) {
	v.SetDefault("profiles_dir", d.ProfilesDir)
	v.SetDefault("library_dir", d.LibraryDir)
	v.SetDefault("active_profile", d.ActiveProfile)
	v.SetDefault("volume", d.Volume)
	v.SetDefault("watch_profiles", d.WatchProfiles)

	v.SetDefault("playback.backend", d.Playback.Backend)
	v.SetDefault("playback.max_sessions", d.Playback.MaxSessions)
	v.SetDefault("playback.sample_rate", d.Playback.SampleRate)
	v.SetDefault("playback.buffer_size", d.Playback.BufferSize)
	v.SetDefault("playback.cache_ttl", d.Playback.CacheTTL)

	v.SetDefault("capture.source", d.Capture.Source)
	v.SetDefault("capture.queue_size", d.Capture.QueueSize)
	v.SetDefault("capture.repeat", d.Capture.Repeat)

	v.SetDefault("stats.enabled", d.Stats.Enabled)
	v.SetDefault("stats.db_path", d.Stats.DBPath)

	v.SetDefault("tracing.enabled", d.Tracing.Enabled)
	v.SetDefault("tracing.exporter", d.Tracing.Exporter)
	v.SetDefault("tracing.endpoint", d.Tracing.Endpoint)
	v.SetDefault("tracing.file_path", d.Tracing.FilePath)

	v.SetDefault("log.path", d.Log.Path)
	v.SetDefault("log.level", d.Log.Level)
}
