package capture

import (
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"sync/atomic"
	"unicode/utf8"

	"golang.org/x/term"

	"github.com/zjrosen/keysound/internal/keys"
	"github.com/zjrosen/keysound/internal/log"
)

const (
	ctrlC = 0x03
	ctrlD = 0x04
	esc   = 0x1b
	// escapeBase offsets codes for recognised CSI sequences past the rune range.
	escapeBase = 0x110000
)

var csiKeys = map[byte]keys.Key{
	'A': keys.Up,
	'B': keys.Down,
	'C': keys.Right,
	'D': keys.Left,
	'H': keys.Home,
	'F': keys.End,
}

// ReaderHook decodes keystrokes from a byte stream such as a terminal in raw
// mode. It only sees keys typed into that terminal.
type ReaderHook struct {
	r io.Reader
	// Interrupt is called on Ctrl-C or Ctrl-D, which raw mode no longer turns
	// into a signal.
	Interrupt func()

	mu      sync.Mutex
	started bool
	active  atomic.Bool
	sink    Sink
}

// NewReaderHook reads keys from r.
func NewReaderHook(r io.Reader) *ReaderHook {
	return &ReaderHook{r: r}
}

// Install implements Hook. The reader goroutine starts on the first Install
// and later installs only re-enable delivery.
func (h *ReaderHook) Install(sink Sink) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.sink = sink
	h.active.Store(true)
	if !h.started {
		h.started = true
		log.SafeGo("capture-reader", h.read)
	}
	return nil
}

// Uninstall implements Hook. A blocked read cannot be interrupted, so
// input that arrives afterwards is discarded.
func (h *ReaderHook) Uninstall() error {
	h.active.Store(false)
	return nil
}

// Decode implements Decoder.
func (h *ReaderHook) Decode(r Raw) (keys.Key, error) {
	if r.Code >= escapeBase {
		if k, ok := csiKeys[byte(r.Code-escapeBase)]; ok {
			return k, nil
		}
	} else if k := keys.FromRune(rune(r.Code)); k != keys.None {
		return k, nil
	}
	return keys.None, fmt.Errorf("%w: input 0x%x", ErrUnknownCode, r.Code)
}

func (h *ReaderHook) deliver(raw Raw) {
	if !h.active.Load() {
		return
	}
	h.mu.Lock()
	sink := h.sink
	h.mu.Unlock()
	sink(raw)
}

func (h *ReaderHook) read() {
	buf := make([]byte, 256)
	for {
		n, err := h.r.Read(buf)
		h.decodeChunk(buf[:n])
		if err != nil {
			if !errors.Is(err, io.EOF) && !errors.Is(err, os.ErrClosed) {
				log.Debug(log.CatCapture, "Key reader stopped", "error", err)
			}
			return
		}
	}
}

func (h *ReaderHook) decodeChunk(p []byte) {
	for len(p) > 0 {
		switch {
		case p[0] == ctrlC || p[0] == ctrlD:
			if h.active.Load() && h.Interrupt != nil {
				h.Interrupt()
			}
			p = p[1:]
		case p[0] == esc && len(p) >= 3 && p[1] == '[':
			h.deliver(Raw{Code: escapeBase + uint32(p[2])})
			p = p[3:]
		default:
			r, size := utf8.DecodeRune(p)
			h.deliver(Raw{Code: uint32(r)})
			p = p[size:]
		}
	}
}

// TerminalHook is a ReaderHook over a terminal that it switches to raw mode
// while installed.
type TerminalHook struct {
	*ReaderHook
	f     *os.File
	state *term.State
}

// NewTerminalHook reads keys from f, usually os.Stdin.
func NewTerminalHook(f *os.File) *TerminalHook {
	return &TerminalHook{ReaderHook: NewReaderHook(f), f: f}
}

// IsTerminal reports whether f is an interactive terminal.
func IsTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}

// Install implements Hook.
func (h *TerminalHook) Install(sink Sink) error {
	if h.state == nil && IsTerminal(h.f) {
		state, err := term.MakeRaw(int(h.f.Fd()))
		if err != nil {
			return fmt.Errorf("raw terminal mode: %w", err)
		}
		h.state = state
	}
	return h.ReaderHook.Install(sink)
}

// Uninstall implements Hook and restores the terminal.
func (h *TerminalHook) Uninstall() error {
	err := h.ReaderHook.Uninstall()
	if h.state != nil {
		err = errors.Join(err, term.Restore(int(h.f.Fd()), h.state))
		h.state = nil
	}
	return err
}
