//go:build linux

package capture

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"unsafe"

	"golang.org/x/sys/unix"

	"github.com/zjrosen/keysound/internal/keys"
	"github.com/zjrosen/keysound/internal/log"
)

const (
	evKey       = 0x01
	valueDown   = 1
	valueRepeat = 2
)

// eventSize is sizeof(struct input_event): a timeval then type, code, value.
var eventSize = int(unsafe.Sizeof(unix.Timeval{})) + 8

var keyboardGlobs = []string{
	"/dev/input/by-path/*-event-kbd",
	"/dev/input/by-id/*-event-kbd",
}

// EvdevHook reads key events from every keyboard device under /dev/input.
// The user needs read access to the devices, usually through the input
// group.
type EvdevHook struct {
	// Devices overrides device discovery.
	Devices []string

	mu    sync.Mutex
	files []*os.File
	wg    sync.WaitGroup
}

// NewSystemHook returns the platform keyboard hook.
func NewSystemHook() (Hook, error) {
	return &EvdevHook{}, nil
}

// Decode implements Decoder for evdev key codes.
func (h *EvdevHook) Decode(r Raw) (keys.Key, error) {
	if k := keys.FromLinuxCode(uint16(r.Code)); k != keys.None {
		return k, nil
	}
	return keys.None, fmt.Errorf("%w: evdev %d", ErrUnknownCode, r.Code)
}

// Install implements Hook.
func (h *EvdevHook) Install(sink Sink) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.files) > 0 {
		return nil
	}

	devices := h.Devices
	if len(devices) == 0 {
		devices = discoverKeyboards()
	}
	if len(devices) == 0 {
		return fmt.Errorf("%w: no keyboard devices found under /dev/input", ErrUnsupported)
	}

	var errs []error
	for _, dev := range devices {
		f, err := os.Open(dev)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		h.files = append(h.files, f)
		h.wg.Add(1)
		log.SafeGo("evdev-reader", func() {
			defer h.wg.Done()
			readEvents(f, sink)
		})
		log.Debug(log.CatCapture, "Reading keyboard device", "device", dev)
	}
	if len(h.files) == 0 {
		return fmt.Errorf("opening keyboard devices: %w", errors.Join(errs...))
	}
	return nil
}

// Uninstall implements Hook. It returns once every reader has exited.
func (h *EvdevHook) Uninstall() error {
	h.mu.Lock()
	files := h.files
	h.files = nil
	h.mu.Unlock()

	var errs []error
	for _, f := range files {
		if err := f.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	h.wg.Wait()
	return errors.Join(errs...)
}

func discoverKeyboards() []string {
	seen := make(map[string]bool)
	var out []string
	for _, pattern := range keyboardGlobs {
		matches, _ := filepath.Glob(pattern)
		for _, m := range matches {
			real, err := filepath.EvalSymlinks(m)
			if err != nil || seen[real] {
				continue
			}
			seen[real] = true
			out = append(out, real)
		}
	}
	sort.Strings(out)
	return out
}

// readEvents forwards key-down and repeat events until r fails.
func readEvents(r io.Reader, sink Sink) {
	buf := make([]byte, eventSize*64)
	for {
		n, err := io.ReadAtLeast(r, buf, eventSize)
		for off := 0; off+eventSize <= n; off += eventSize {
			if raw, ok := parseEvent(buf[off : off+eventSize]); ok {
				sink(raw)
			}
		}
		if err != nil {
			if !errors.Is(err, os.ErrClosed) && !errors.Is(err, io.EOF) {
				log.Debug(log.CatCapture, "Keyboard device read ended", "error", err)
			}
			return
		}
	}
}

func parseEvent(ev []byte) (Raw, bool) {
	body := ev[len(ev)-8:]
	typ := binary.NativeEndian.Uint16(body[0:])
	code := binary.NativeEndian.Uint16(body[2:])
	value := int32(binary.NativeEndian.Uint32(body[4:]))
	if typ != evKey {
		return Raw{}, false
	}
	switch value {
	case valueDown:
		return Raw{Code: uint32(code)}, true
	case valueRepeat:
		return Raw{Code: uint32(code), Repeat: true}, true
	}
	return Raw{}, false
}
