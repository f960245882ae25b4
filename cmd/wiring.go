package cmd

import (
	"fmt"
	"os"
	"runtime"

	"github.com/zjrosen/keysound/internal/capture"
	"github.com/zjrosen/keysound/internal/config"
	"github.com/zjrosen/keysound/internal/infrastructure/sqlite"
	"github.com/zjrosen/keysound/internal/log"
	"github.com/zjrosen/keysound/internal/playback"
	"github.com/zjrosen/keysound/internal/playback/output/command"
	"github.com/zjrosen/keysound/internal/playback/output/otoout"
	"github.com/zjrosen/keysound/internal/playback/output/pulseout"
	"github.com/zjrosen/keysound/internal/profile"
)

// openStore loads the profiles directory and keeps active_profile in the
// config file in step with the current profile.
func openStore() (*profile.Store, error) {
	store := profile.NewStore(profile.Config{Dir: cfg.ProfilesDir, ActiveProfile: cfg.ActiveProfile})
	if err := store.Load(); err != nil {
		return nil, fmt.Errorf("loading profiles: %w", err)
	}
	saved := cfg.ActiveProfile
	store.OnChange(func(p *profile.Profile) {
		if p == nil || p.Name == saved {
			return
		}
		if err := config.SaveActiveProfile(configPath, p.Name); err != nil {
			log.ErrorErr(log.CatConfig, "Saving active profile failed", err, "profile", p.Name)
			return
		}
		saved = p.Name
	})
	return store, nil
}

// buildBackends returns output backends in preference order for name.
func buildBackends(name string) ([]playback.Backend, error) {
	switch name {
	case config.BackendOto:
		return []playback.Backend{otoout.New()}, nil
	case config.BackendPulse:
		if runtime.GOOS != "linux" {
			return nil, fmt.Errorf("pulse backend is only available on linux")
		}
		return []playback.Backend{pulseout.New()}, nil
	case config.BackendCommand:
		return []playback.Backend{command.New()}, nil
	case "", config.BackendAuto:
		backends := []playback.Backend{otoout.New()}
		if runtime.GOOS == "linux" {
			backends = append(backends, pulseout.New())
		}
		return append(backends, command.New()), nil
	default:
		return nil, fmt.Errorf("unknown playback backend %q", name)
	}
}

func newEngine() (*playback.Engine, error) {
	backends, err := buildBackends(cfg.Playback.Backend)
	if err != nil {
		return nil, err
	}
	return playback.New(playback.Config{
		Backends:    backends,
		MaxSessions: cfg.Playback.MaxSessions,
		SampleRate:  cfg.Playback.SampleRate,
		BufferSize:  cfg.Playback.BufferSize,
		CacheTTL:    cfg.Playback.CacheTTL,
	})
}

// newHook picks the keyboard source. The system hook is preferred; when
// stdin is a terminal it backs the system hook up in case that cannot be
// installed.
func newHook(source string, interrupt func()) (capture.Hook, error) {
	var term *capture.TerminalHook
	if capture.IsTerminal(os.Stdin) {
		term = capture.NewTerminalHook(os.Stdin)
		term.Interrupt = interrupt
	}
	if source == config.SourceStdin {
		if term == nil {
			return nil, fmt.Errorf("stdin is not a terminal")
		}
		return term, nil
	}

	system, err := capture.NewSystemHook()
	switch {
	case err != nil && term == nil:
		return nil, err
	case err != nil:
		log.Warn(log.CatCapture, "System keyboard hook unavailable, reading the terminal", "error", err)
		return term, nil
	case term == nil:
		return system, nil
	default:
		return capture.NewChain(system, term), nil
	}
}

// openStats opens the statistics database when enabled.
func openStats() (*sqlite.DB, error) {
	db, err := sqlite.NewDB(cfg.Stats.DBPath)
	if err != nil {
		return nil, fmt.Errorf("opening statistics database: %w", err)
	}
	return db, nil
}
