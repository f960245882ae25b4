// Package playback renders sound assets to audio output devices. Every Play
// request runs as its own session so rapid keystrokes overlap instead of
// cutting each other off.
package playback

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/zjrosen/keysound/internal/keys"
	"github.com/zjrosen/keysound/internal/log"
	"github.com/zjrosen/keysound/internal/pubsub"
)

// Defaults applied by New for zero config values.
const (
	DefaultMaxSessions = 16
	DefaultSampleRate  = 44100
	DefaultBufferSize  = 50 * time.Millisecond
	DefaultCacheTTL    = 10 * time.Minute
	DefaultCloseGrace  = 2 * time.Second
)

// Config configures an Engine.
type Config struct {
	// Backends in preference order.
	Backends    []Backend
	MaxSessions int
	SampleRate  int
	BufferSize  time.Duration
	// CacheTTL bounds how long decoded buffers stay in memory. Negative
	// disables the cache.
	CacheTTL time.Duration
	// CloseGrace is how long Close lets running sessions finish before
	// stopping them.
	CloseGrace time.Duration
}

// Request asks for one sound to be played.
type Request struct {
	Key    keys.Key
	Path   string
	Volume float64
	// Pitch is passed to the pitch stage, which leaves audio unchanged.
	Pitch float64
}

// Engine plays sounds on concurrent, independent sessions.
type Engine struct {
	backends   []Backend
	format     Format
	max        int
	closeGrace time.Duration
	decoder    *decoder
	broker     *pubsub.Broker[Event]

	mu       sync.Mutex
	sessions map[string]*session
	idle     chan struct{}
	closed   bool

	dropped atomic.Int64
}

// New builds an Engine. It fails with ErrNoDevice when no backend is given.
func New(cfg Config) (*Engine, error) {
	if len(cfg.Backends) == 0 {
		return nil, ErrNoDevice
	}
	if cfg.MaxSessions <= 0 {
		cfg.MaxSessions = DefaultMaxSessions
	}
	if cfg.SampleRate <= 0 {
		cfg.SampleRate = DefaultSampleRate
	}
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = DefaultBufferSize
	}
	if cfg.CacheTTL == 0 {
		cfg.CacheTTL = DefaultCacheTTL
	}
	if cfg.CloseGrace <= 0 {
		cfg.CloseGrace = DefaultCloseGrace
	}

	idle := make(chan struct{})
	close(idle)
	return &Engine{
		backends:   cfg.Backends,
		format:     Format{SampleRate: cfg.SampleRate, Channels: 2, BufferSize: cfg.BufferSize},
		max:        cfg.MaxSessions,
		closeGrace: cfg.CloseGrace,
		decoder:    newDecoder(cfg.SampleRate, cfg.CacheTTL),
		broker:     pubsub.NewBrokerWithBuffer[Event](256),
		sessions:   make(map[string]*session),
		idle:       idle,
	}, nil
}

// Format returns the PCM layout sessions render to.
func (e *Engine) Format() Format {
	return e.format
}

// Subscribe streams playback events until ctx is cancelled.
func (e *Engine) Subscribe(ctx context.Context) <-chan pubsub.Event[Event] {
	return e.broker.Subscribe(ctx)
}

// Play starts a session for req and returns its ID without waiting for the
// sound to finish. An empty ID means the request was not started; invalid
// requests are reported as EventFailed rather than returned.
func (e *Engine) Play(req Request) string {
	if req.Path == "" {
		e.fail(req, "", "", "no sound path", nil)
		return ""
	}
	if _, err := os.Stat(req.Path); err != nil {
		e.fail(req, "", "", "file not found", err)
		return ""
	}
	req.Volume = clamp(req.Volume)

	sess := &session{id: uuid.NewString(), req: req}
	if !e.register(sess) {
		return ""
	}
	log.SafeGo("playback-session", func() {
		defer e.unregister(sess)
		e.run(sess)
	})
	return sess.id
}

func (e *Engine) register(sess *session) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		log.Debug(log.CatAudio, "Dropping play request, engine closed", "key", sess.req.Key)
		return false
	}
	if len(e.sessions) >= e.max {
		e.dropped.Add(1)
		log.Debug(log.CatAudio, "Dropping play request, session limit reached",
			"key", sess.req.Key, "max", e.max)
		return false
	}
	if len(e.sessions) == 0 {
		e.idle = make(chan struct{})
	}
	e.sessions[sess.id] = sess
	return true
}

func (e *Engine) unregister(sess *session) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, ok := e.sessions[sess.id]; !ok {
		return
	}
	delete(e.sessions, sess.id)
	if len(e.sessions) == 0 {
		close(e.idle)
	}
}

// ActiveSessions returns the number of sessions still playing.
func (e *Engine) ActiveSessions() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.sessions)
}

// Dropped returns how many requests were discarded at the session limit.
func (e *Engine) Dropped() int64 {
	return e.dropped.Load()
}

// Wait blocks until no session is active or ctx is done.
func (e *Engine) Wait(ctx context.Context) error {
	e.mu.Lock()
	idle := e.idle
	e.mu.Unlock()
	select {
	case <-idle:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// StopAll stops every active session.
func (e *Engine) StopAll() {
	e.mu.Lock()
	active := make([]*session, 0, len(e.sessions))
	for _, s := range e.sessions {
		active = append(active, s)
	}
	e.mu.Unlock()

	for _, s := range active {
		s.stop()
	}
}

// FlushCache drops decoded buffers so edited assets are decoded again.
func (e *Engine) FlushCache() {
	e.decoder.flush()
}

// Close refuses new requests, gives running sessions the grace period to
// finish, stops the rest, then releases the backends.
func (e *Engine) Close() error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return nil
	}
	e.closed = true
	e.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), e.closeGrace)
	err := e.Wait(ctx)
	cancel()
	if err != nil {
		log.Debug(log.CatAudio, "Stopping sessions still running at close", "active", e.ActiveSessions())
		e.StopAll()
		ctx, cancel = context.WithTimeout(context.Background(), e.closeGrace)
		if err := e.Wait(ctx); err != nil {
			log.Warn(log.CatAudio, "Sessions did not stop in time", "active", e.ActiveSessions())
		}
		cancel()
	}

	var errs []error
	for _, b := range e.backends {
		if err := b.Close(); err != nil {
			errs = append(errs, fmt.Errorf("closing %s backend: %w", b.Name(), err))
		}
	}
	e.broker.Close()
	return errors.Join(errs...)
}

func (e *Engine) publish(ev Event) {
	e.broker.Publish(pubsub.CreatedEvent, ev)
}

func (e *Engine) fail(req Request, id, backend, msg string, err error) {
	serr := &SoundError{Key: req.Key, Path: req.Path, Message: msg, Err: err}
	log.Debug(log.CatAudio, "Sound failed", "key", req.Key, "path", req.Path, "reason", msg, "error", err)
	e.publish(Event{Type: EventFailed, Key: req.Key, Path: req.Path, SessionID: id, Backend: backend, Err: serr})
}

func clamp(v float64) float64 {
	if v != v || v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
