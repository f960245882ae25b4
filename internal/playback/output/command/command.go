// Package command plays sessions by rendering them to a temporary WAV file
// and handing it to the platform's command-line player.
package command

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"runtime"
	"sync"

	"github.com/gopxl/beep/v2"
	"github.com/gopxl/beep/v2/wav"

	"github.com/zjrosen/keysound/internal/log"
	"github.com/zjrosen/keysound/internal/playback"
)

// Backend runs an external audio player.
type Backend struct {
	cmd  string
	args []string
}

// New detects the player for the current platform. The backend is still
// returned when none is found; Open then fails so the engine moves on.
func New() *Backend {
	cmd, args := detect()
	return &Backend{cmd: cmd, args: args}
}

// NewWithCommand uses cmd and base args instead of detecting a player.
func NewWithCommand(cmd string, args ...string) *Backend {
	return &Backend{cmd: cmd, args: args}
}

// Name implements playback.Backend.
func (b *Backend) Name() string { return "command" }

// Command returns the player in use, empty when none was found.
func (b *Backend) Command() string { return b.cmd }

// Open implements playback.Backend.
func (b *Backend) Open(f playback.Format) (playback.Device, error) {
	if b.cmd == "" {
		return nil, fmt.Errorf("no command-line audio player found on %s", runtime.GOOS)
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &device{backend: b, format: f, ctx: ctx, cancel: cancel}, nil
}

// Close implements playback.Backend.
func (b *Backend) Close() error { return nil }

// buildArgs returns a fresh argument slice for path.
func (b *Backend) buildArgs(path string) []string {
	if runtime.GOOS == "windows" {
		return []string{"-c", fmt.Sprintf("(New-Object System.Media.SoundPlayer '%s').PlaySync()", path)}
	}
	args := make([]string, len(b.args)+1)
	copy(args, b.args)
	args[len(args)-1] = path
	return args
}

type device struct {
	backend *Backend
	format  playback.Format
	ctx     context.Context
	cancel  context.CancelFunc

	mu  sync.Mutex
	tmp string
}

func (d *device) Play(s beep.Streamer) error {
	f, err := os.CreateTemp("", "keysound-*.wav")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	d.mu.Lock()
	d.tmp = f.Name()
	d.mu.Unlock()

	if err := wav.Encode(f, s, d.format.Beep()); err != nil {
		_ = f.Close()
		return fmt.Errorf("rendering temp file: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("closing temp file: %w", err)
	}
	if d.ctx.Err() != nil {
		return nil
	}

	cmd := exec.CommandContext(d.ctx, d.backend.cmd, d.backend.buildArgs(f.Name())...) //nolint:gosec // player comes from detect or the caller
	if err := cmd.Run(); err != nil {
		if d.ctx.Err() != nil {
			return nil
		}
		return fmt.Errorf("%s: %w", d.backend.cmd, err)
	}
	return nil
}

func (d *device) Stop() {
	d.cancel()
}

func (d *device) Close() error {
	d.cancel()
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.tmp == "" {
		return nil
	}
	err := os.Remove(d.tmp)
	if err != nil {
		log.Debug(log.CatAudio, "Failed to remove temp file", "path", d.tmp, "error", err)
	}
	d.tmp = ""
	return err
}

// detect returns the audio player and base arguments for the current
// platform, or an empty command when none is on PATH. Windows arguments
// are built per file in buildArgs.
func detect() (string, []string) {
	switch runtime.GOOS {
	case "darwin":
		if path, err := exec.LookPath("afplay"); err == nil {
			return path, nil
		}
	case "linux", "freebsd", "openbsd", "netbsd":
		if path, err := exec.LookPath("paplay"); err == nil {
			return path, nil
		}
		if path, err := exec.LookPath("aplay"); err == nil {
			return path, []string{"-q"}
		}
	case "windows":
		if path, err := exec.LookPath("powershell.exe"); err == nil {
			return path, nil
		}
	}
	return "", nil
}
