package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/zjrosen/keysound/internal/orchestrator"
	"github.com/zjrosen/keysound/internal/playback"
)

var playTimeout time.Duration

var playCmd = &cobra.Command{
	Use:   "play <key>",
	Short: "Play the sound mapped to a key in the active profile",
	Example: `  keysound play A
  keysound play "L Shift"
  keysound play Enter`,
	Args: cobra.ExactArgs(1),
	RunE: runPlay,
}

func init() {
	playCmd.Flags().DurationVar(&playTimeout, "timeout", 10*time.Second, "maximum time to wait for the sound to finish")
	rootCmd.AddCommand(playCmd)
}

func runPlay(cmd *cobra.Command, args []string) error {
	k, err := parseKey(args[0])
	if err != nil {
		return err
	}

	store, err := openStore()
	if err != nil {
		return err
	}
	engine, err := newEngine()
	if err != nil {
		return err
	}
	orch, err := orchestrator.New(orchestrator.Config{Store: store, Player: engine, MasterVolume: cfg.Volume})
	if err != nil {
		_ = engine.Close()
		return err
	}
	defer func() { _ = orch.Close() }()

	ctx, cancel := context.WithTimeout(cmd.Context(), playTimeout)
	defer cancel()
	events := engine.Subscribe(ctx)

	if id := orch.PlaySoundForKey(k); id == "" {
		fmt.Fprintf(cmd.OutOrStdout(), "No sound for %s in profile %q\n", k, store.Current().Name)
		return nil
	}
	if err := engine.Wait(ctx); err != nil {
		return fmt.Errorf("waiting for playback: %w", err)
	}

	for {
		select {
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			if ev.Payload.Type == playback.EventFailed && ev.Payload.Err != nil {
				return ev.Payload.Err
			}
			if ev.Payload.Type == playback.EventPlayed {
				fmt.Fprintf(cmd.OutOrStdout(), "Played %s via %s\n", ev.Payload.Path, ev.Payload.Backend)
			}
		default:
			return nil
		}
	}
}
