package playback

import (
	"sync"

	"github.com/gopxl/beep/v2"
	"github.com/gopxl/beep/v2/effects"

	"github.com/zjrosen/keysound/internal/log"
)

// session is one in-flight sound. It owns at most one device.
type session struct {
	id  string
	req Request

	mu      sync.Mutex
	device  Device
	stopped bool
}

// attach records the device; it reports false if the session was stopped
// before a device was opened.
func (s *session) attach(d Device) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return false
	}
	s.device = d
	return true
}

func (s *session) stop() {
	s.mu.Lock()
	s.stopped = true
	d := s.device
	s.mu.Unlock()
	if d != nil {
		d.Stop()
	}
}

func (e *Engine) run(sess *session) {
	req := sess.req

	src, err := e.decoder.open(req.Path)
	if err != nil {
		e.fail(req, sess.id, "", "cannot decode sound", err)
		return
	}
	defer func() {
		if err := src.close(); err != nil {
			log.Debug(log.CatAudio, "Closing decoder failed", "session", sess.id, "error", err)
		}
	}()

	dev, backend, err := e.open()
	if err != nil {
		e.fail(req, sess.id, "", "no output device", err)
		return
	}
	defer func() {
		if err := dev.Close(); err != nil {
			log.Debug(log.CatAudio, "Closing device failed", "session", sess.id, "backend", backend, "error", err)
		}
	}()
	if !sess.attach(dev) {
		e.fail(req, sess.id, backend, "stopped", ErrStopped)
		return
	}

	e.publish(Event{Type: EventPlayed, Key: req.Key, Path: req.Path, SessionID: sess.id, Backend: backend})
	if err := dev.Play(chain(src.streamer, req)); err != nil {
		e.fail(req, sess.id, backend, "playback failed", err)
	}
}

// open tries each backend in order and returns the first device that opens.
func (e *Engine) open() (Device, string, error) {
	for _, b := range e.backends {
		dev, err := b.Open(e.format)
		if err == nil {
			return dev, b.Name(), nil
		}
		log.Debug(log.CatAudio, "Backend unavailable, trying next", "backend", b.Name(), "error", err)
	}
	return nil, "", ErrNoDevice
}

// chain applies pitch and gain to s.
func chain(s beep.Streamer, req Request) beep.Streamer {
	s = pitch(s, req.Pitch)
	if req.Volume == 1 {
		return s
	}
	return &effects.Gain{Streamer: s, Gain: req.Volume - 1}
}

// pitch is the pitch-variation stage. It accepts a ratio and currently
// leaves samples unchanged.
func pitch(s beep.Streamer, _ float64) beep.Streamer {
	return s
}
