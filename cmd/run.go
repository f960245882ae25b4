package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/zjrosen/keysound/internal/capture"
	"github.com/zjrosen/keysound/internal/config"
	"github.com/zjrosen/keysound/internal/log"
	"github.com/zjrosen/keysound/internal/orchestrator"
	"github.com/zjrosen/keysound/internal/playback"
	"github.com/zjrosen/keysound/internal/stats"
	"github.com/zjrosen/keysound/internal/tracing"
	"github.com/zjrosen/keysound/internal/watcher"
)

var runStdin bool

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Play sounds for key presses until interrupted",
	Long: `Installs the keyboard hook and plays the active profile's sound for every
key press. Stop with Ctrl+C.

On Linux the system-wide hook reads /dev/input and needs membership in the
input group. Use --stdin to play only for keys typed into this terminal.`,
	RunE: runRun,
}

func init() {
	runCmd.Flags().BoolVar(&runStdin, "stdin", false, "read keys from this terminal instead of the system hook")
	rootCmd.AddCommand(runCmd)
}

const shutdownTimeout = 5 * time.Second

func runRun(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := tracing.Init(ctx, cfg.Tracing)
	if err != nil {
		return err
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := shutdownTracing(sctx); err != nil {
			log.ErrorErr(log.CatConfig, "Flushing traces failed", err)
		}
	}()

	store, err := openStore()
	if err != nil {
		return err
	}
	engine, err := newEngine()
	if err != nil {
		return err
	}

	source := cfg.Capture.Source
	if runStdin {
		source = config.SourceStdin
	}
	hook, err := newHook(source, stop)
	if err != nil {
		_ = engine.Close()
		return err
	}

	var recorder *stats.Recorder
	if cfg.Stats.Enabled {
		db, err := openStats()
		if err != nil {
			_ = engine.Close()
			return err
		}
		defer func() { _ = db.Close() }()
		recorder = stats.NewRecorder(db.Presses(), stats.RecorderOptions{})
	}

	ocfg := orchestrator.Config{
		Store:  store,
		Player: engine,
		Hook:   hook,
		Capture: capture.Options{
			QueueSize: cfg.Capture.QueueSize,
			Repeat:    cfg.Capture.Repeat,
		},
		MasterVolume: cfg.Volume,
	}
	if recorder != nil {
		ocfg.Recorder = recorder
	}
	orch, err := orchestrator.New(ocfg)
	if err != nil {
		_ = engine.Close()
		return err
	}

	if cfg.WatchProfiles {
		w, err := startWatcher(ctx, store.Dir(), store.LastWrite, func() {
			if err := store.Reload(); err != nil {
				log.ErrorErr(log.CatWatch, "Reloading profiles failed", err)
				return
			}
			engine.FlushCache()
		})
		if err != nil {
			log.Warn(log.CatWatch, "Profile watching disabled", "error", err)
		} else {
			defer func() { _ = w.Stop() }()
		}
	}

	log.SafeGo("run-events", func() { reportFailures(ctx, orch) })

	if err := orch.Start(); err != nil {
		_ = orch.Close()
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "keysound is running with profile %q. Press Ctrl+C to stop.\r\n", store.Current().Name)

	<-ctx.Done()

	err = orch.Close()
	if recorder != nil {
		rctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		err = errors.Join(err, recorder.Close(rctx))
		cancel()
	}
	fmt.Fprintln(cmd.OutOrStdout(), "Stopped.")
	return err
}

// startWatcher calls reload after each burst of outside changes to dir.
func startWatcher(ctx context.Context, dir string, lastWrite func() time.Time, reload func()) (*watcher.Watcher, error) {
	w, err := watcher.New(watcher.Config{Dir: dir, LastWrite: lastWrite})
	if err != nil {
		return nil, err
	}
	events := w.Broker().Subscribe(ctx)
	if err := w.Start(); err != nil {
		_ = w.Stop()
		return nil, err
	}
	log.SafeGo("profile-reload", func() {
		for ev := range events {
			if ev.Payload.Type == watcher.ProfilesChanged {
				log.Info(log.CatWatch, "Profiles changed, reloading", "paths", len(ev.Payload.Paths))
				reload()
			}
		}
	})
	return w, nil
}

// reportFailures logs sounds that could not play and echoes them to stderr
// in debug mode.
func reportFailures(ctx context.Context, orch *orchestrator.Orchestrator) {
	for ev := range orch.Subscribe(ctx) {
		if ev.Payload.Type != playback.EventFailed || ev.Payload.Err == nil {
			continue
		}
		if errors.Is(ev.Payload.Err, playback.ErrStopped) {
			continue
		}
		log.Warn(log.CatOrch, "Sound failed", "key", ev.Payload.Key, "profile", ev.Payload.Profile, "error", ev.Payload.Err)
		if debug {
			fmt.Fprintf(os.Stderr, "%v\r\n", ev.Payload.Err)
		}
	}
}
