// Package capture turns global key-down notifications into keys.Key values.
//
// A Hook delivers Raw events on whatever thread the OS uses for its
// callback. The Service decodes them there and hands them to a single
// dispatch worker through a bounded queue, so the callback never waits on
// sound resolution or playback.
package capture

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/zjrosen/keysound/internal/keys"
	"github.com/zjrosen/keysound/internal/log"
)

// ErrUnsupported is returned where no global keyboard hook exists.
var ErrUnsupported = errors.New("global keyboard capture is not supported on this platform")

// ErrUnknownCode is returned by decoders for codes with no key.
var ErrUnknownCode = errors.New("unknown key code")

const defaultQueueSize = 256

// Raw is a key-down as reported by a hook.
type Raw struct {
	Code uint32
	// System marks system key-down variants such as Alt combinations.
	System bool
	// Repeat marks auto-repeat while the key is held.
	Repeat bool
}

// Sink receives raw events. It is called on the hook's thread.
type Sink func(Raw)

// Hook is an OS-level keyboard intercept.
type Hook interface {
	Install(sink Sink) error
	Uninstall() error
}

// Decoder maps raw codes to keys. Hooks that implement it supply the
// decoder for their code space.
type Decoder interface {
	Decode(Raw) (keys.Key, error)
}

// DecodeFunc adapts a function to Decoder.
type DecodeFunc func(Raw) (keys.Key, error)

// Decode implements Decoder.
func (f DecodeFunc) Decode(r Raw) (keys.Key, error) { return f(r) }

// VirtualKeyDecoder decodes Windows virtual-key codes.
var VirtualKeyDecoder = DecodeFunc(func(r Raw) (keys.Key, error) {
	if k := keys.FromVirtualKey(r.Code); k != keys.None {
		return k, nil
	}
	return keys.None, fmt.Errorf("%w: vk 0x%02x", ErrUnknownCode, r.Code)
})

// Handler is called for each captured key, in order, on the dispatch worker.
type Handler func(keys.Key)

// Options configure a Service.
type Options struct {
	// QueueSize bounds pending keys; a full queue drops new ones.
	QueueSize int
	// Repeat forwards auto-repeat key-downs.
	Repeat bool
	// Decode overrides the hook's decoder.
	Decode Decoder
}

// Service owns a hook and the worker that dispatches its keys.
type Service struct {
	hook    Hook
	handler Handler
	decoder Decoder
	repeat  bool
	queue   chan keys.Key

	mu        sync.Mutex
	running   atomic.Bool
	installed bool
	closed    bool
	done      chan struct{}
	worker    chan struct{}

	dropped      atomic.Int64
	decodeErrors atomic.Int64
}

// New builds a stopped Service.
func New(hook Hook, handler Handler, opts Options) *Service {
	if opts.QueueSize <= 0 {
		opts.QueueSize = defaultQueueSize
	}
	dec := opts.Decode
	if dec == nil {
		if d, ok := hook.(Decoder); ok {
			dec = d
		} else {
			dec = VirtualKeyDecoder
		}
	}
	s := &Service{
		hook:    hook,
		handler: handler,
		decoder: dec,
		repeat:  opts.Repeat,
		queue:   make(chan keys.Key, opts.QueueSize),
		done:    make(chan struct{}),
		worker:  make(chan struct{}),
	}
	log.SafeGo("capture-dispatch", s.dispatch)
	return s
}

// Start installs the hook. Calling it while running is a no-op.
func (s *Service) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return errors.New("capture service is closed")
	}
	if s.installed {
		return nil
	}
	s.running.Store(true)
	if err := s.hook.Install(s.intercept); err != nil {
		s.running.Store(false)
		log.ErrorErr(log.CatCapture, "Installing keyboard hook failed", err)
		return fmt.Errorf("installing keyboard hook: %w", err)
	}
	s.installed = true
	log.Info(log.CatCapture, "Keyboard capture started")
	return nil
}

// Stop uninstalls the hook. Calling it while stopped is a no-op.
func (s *Service) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stopLocked()
}

func (s *Service) stopLocked() error {
	s.running.Store(false)
	if !s.installed {
		return nil
	}
	s.installed = false
	if err := s.hook.Uninstall(); err != nil {
		log.ErrorErr(log.CatCapture, "Uninstalling keyboard hook failed", err)
		return fmt.Errorf("uninstalling keyboard hook: %w", err)
	}
	log.Info(log.CatCapture, "Keyboard capture stopped")
	return nil
}

// Running reports whether the hook is installed.
func (s *Service) Running() bool {
	return s.running.Load()
}

// Close uninstalls the hook if needed and stops the worker. Keys still
// queued are discarded.
func (s *Service) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	err := s.stopLocked()
	close(s.done)
	s.mu.Unlock()

	<-s.worker
	return err
}

// Dropped returns keys discarded on a full queue.
func (s *Service) Dropped() int64 { return s.dropped.Load() }

// DecodeErrors returns raw events that did not decode to a key.
func (s *Service) DecodeErrors() int64 { return s.decodeErrors.Load() }

// intercept runs on the hook's thread and must return quickly.
func (s *Service) intercept(raw Raw) {
	defer log.Recover("capture-intercept")
	if !s.running.Load() {
		return
	}
	if raw.Repeat && !s.repeat {
		return
	}
	k, err := s.decoder.Decode(raw)
	if err != nil {
		s.decodeErrors.Add(1)
		log.Debug(log.CatCapture, "Ignoring undecodable key", "code", raw.Code, "error", err)
		return
	}
	select {
	case s.queue <- k:
	default:
		s.dropped.Add(1)
		log.Debug(log.CatCapture, "Key queue full, dropping", "key", k)
	}
}

func (s *Service) dispatch() {
	defer close(s.worker)
	for {
		select {
		case <-s.done:
			return
		case k := <-s.queue:
			s.handle(k)
		}
	}
}

func (s *Service) handle(k keys.Key) {
	defer log.Recover("capture-handler")
	s.handler(k)
}
