// Package orchestrator ties keyboard capture, sound resolution and playback
// together and exposes the operations the CLI needs.
package orchestrator

import (
	"context"
	"errors"
	"math"
	"sync"
	"sync/atomic"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/zjrosen/keysound/internal/capture"
	"github.com/zjrosen/keysound/internal/keys"
	"github.com/zjrosen/keysound/internal/log"
	"github.com/zjrosen/keysound/internal/playback"
	"github.com/zjrosen/keysound/internal/profile"
	"github.com/zjrosen/keysound/internal/pubsub"
	"github.com/zjrosen/keysound/internal/resolver"
	"github.com/zjrosen/keysound/internal/stats"
)

// tracerName identifies spans started here.
const tracerName = "github.com/zjrosen/keysound/internal/orchestrator"

// ErrNoCapture is returned by Start when no keyboard hook was configured.
var ErrNoCapture = errors.New("no keyboard hook configured")

// Player is the playback surface the orchestrator drives. *playback.Engine
// satisfies it.
type Player interface {
	Play(req playback.Request) string
	Subscribe(ctx context.Context) <-chan pubsub.Event[playback.Event]
	Close() error
}

// Observer receives presses that produced a sound. *stats.Recorder
// satisfies it.
type Observer interface {
	Observe(p stats.Press)
}

// Config wires an Orchestrator.
type Config struct {
	Store *profile.Store
	// Resolver defaults to one reading Store.
	Resolver *resolver.Resolver
	Player   Player
	// Hook is optional. Without it only PlaySoundForKey produces sound.
	Hook    capture.Hook
	Capture capture.Options
	// MasterVolume scales every per-key volume; clamped to [0,1].
	MasterVolume float64
	Recorder     Observer
	// Tracer defaults to the global provider.
	Tracer trace.Tracer
}

// Event is a playback outcome enriched with what the resolver chose.
type Event struct {
	playback.Event
	Profile  string
	Fallback bool
}

// Orchestrator routes key-down events to the player.
type Orchestrator struct {
	store    *profile.Store
	resolver *resolver.Resolver
	player   Player
	capture  *capture.Service
	recorder Observer
	tracer   trace.Tracer
	broker   *pubsub.Broker[Event]

	volume atomic.Uint64

	// inflight maps session IDs to their resolution until the player
	// reports the outcome. mu is held across Play so the relay cannot see
	// an event before its entry exists.
	mu       sync.Mutex
	inflight map[string]resolver.Resolution

	cancel    context.CancelFunc
	relayDone chan struct{}
	closeOnce sync.Once
}

// New builds a stopped Orchestrator.
func New(cfg Config) (*Orchestrator, error) {
	if cfg.Store == nil {
		return nil, errors.New("orchestrator: store is required")
	}
	if cfg.Player == nil {
		return nil, errors.New("orchestrator: player is required")
	}
	if cfg.Resolver == nil {
		cfg.Resolver = resolver.New(cfg.Store)
	}
	if cfg.Tracer == nil {
		cfg.Tracer = otel.Tracer(tracerName)
	}

	o := &Orchestrator{
		store:     cfg.Store,
		resolver:  cfg.Resolver,
		player:    cfg.Player,
		recorder:  cfg.Recorder,
		tracer:    cfg.Tracer,
		broker:    pubsub.NewBrokerWithBuffer[Event](256),
		inflight:  make(map[string]resolver.Resolution),
		relayDone: make(chan struct{}),
	}
	o.SetMasterVolume(cfg.MasterVolume)
	if cfg.Hook != nil {
		o.capture = capture.New(cfg.Hook, o.onKey, cfg.Capture)
	}

	ctx, cancel := context.WithCancel(context.Background())
	o.cancel = cancel
	events := cfg.Player.Subscribe(ctx)
	log.SafeGo("orchestrator-relay", func() { o.relay(events) })
	return o, nil
}

// Start begins capturing keys.
func (o *Orchestrator) Start() error {
	if o.capture == nil {
		return ErrNoCapture
	}
	return o.capture.Start()
}

// Stop pauses capture. Sounds already playing finish.
func (o *Orchestrator) Stop() error {
	if o.capture == nil {
		return nil
	}
	return o.capture.Stop()
}

// Close tears down capture first so no new keys arrive, then the player,
// then the event stream.
func (o *Orchestrator) Close() error {
	var err error
	o.closeOnce.Do(func() {
		if o.capture != nil {
			err = errors.Join(err, o.capture.Close())
		}
		err = errors.Join(err, o.player.Close())
		o.cancel()
		<-o.relayDone
		o.broker.Close()
		log.Debug(log.CatOrch, "Orchestrator closed")
	})
	return err
}

// Subscribe returns played and failed events until ctx ends or Close.
func (o *Orchestrator) Subscribe(ctx context.Context) <-chan pubsub.Event[Event] {
	return o.broker.Subscribe(ctx)
}

// MasterVolume returns the current master volume.
func (o *Orchestrator) MasterVolume() float64 {
	return math.Float64frombits(o.volume.Load())
}

// SetMasterVolume sets the master volume, clamped to [0,1].
func (o *Orchestrator) SetMasterVolume(v float64) {
	switch {
	case math.IsNaN(v) || v < 0:
		v = 0
	case v > 1:
		v = 1
	}
	o.volume.Store(math.Float64bits(v))
}

// CaptureDropped returns keys dropped by the capture queue.
func (o *Orchestrator) CaptureDropped() int64 {
	if o.capture == nil {
		return 0
	}
	return o.capture.Dropped()
}

func (o *Orchestrator) onKey(k keys.Key) {
	o.PlaySoundForKey(k)
}

// PlaySoundForKey resolves k against the current profile and starts its
// sound. It returns the session ID, or "" when nothing was played. Keys
// with no sound and no default are skipped silently.
func (o *Orchestrator) PlaySoundForKey(k keys.Key) string {
	ctx, span := o.tracer.Start(context.Background(), "keypress",
		trace.WithAttributes(attribute.String("key", k.String())))
	defer span.End()

	res, ok := o.resolve(ctx, k)
	if !ok {
		return ""
	}
	return o.dispatch(ctx, k, res)
}

func (o *Orchestrator) resolve(ctx context.Context, k keys.Key) (resolver.Resolution, bool) {
	_, span := o.tracer.Start(ctx, "resolve")
	defer span.End()

	res, ok := o.resolver.Resolve(k)
	if !ok {
		span.SetAttributes(attribute.Bool("resolved", false))
		log.Debug(log.CatOrch, "No sound for key", "key", k)
		return res, false
	}
	span.SetAttributes(
		attribute.Bool("resolved", true),
		attribute.String("profile", res.Profile),
		attribute.String("path", res.Path),
		attribute.Bool("fallback", res.Fallback),
	)
	return res, true
}

func (o *Orchestrator) dispatch(ctx context.Context, k keys.Key, res resolver.Resolution) string {
	_, span := o.tracer.Start(ctx, "dispatch")
	defer span.End()

	req := playback.Request{
		Key:    k,
		Path:   res.Path,
		Volume: res.Volume * o.MasterVolume(),
		Pitch:  1,
	}

	o.mu.Lock()
	id := o.player.Play(req)
	if id != "" {
		o.inflight[id] = res
	}
	o.mu.Unlock()

	if id == "" {
		span.SetStatus(codes.Error, "not played")
		return ""
	}
	span.SetAttributes(attribute.String("session", id))
	return id
}

// relay forwards player events, attaching the resolution and feeding the
// recorder.
func (o *Orchestrator) relay(events <-chan pubsub.Event[playback.Event]) {
	defer close(o.relayDone)
	for ev := range events {
		pe := ev.Payload
		o.mu.Lock()
		res, ok := o.inflight[pe.SessionID]
		if ok {
			delete(o.inflight, pe.SessionID)
		}
		o.mu.Unlock()

		out := Event{Event: pe}
		if ok {
			out.Profile = res.Profile
			out.Fallback = res.Fallback
		}
		if pe.Type == playback.EventFailed {
			log.Debug(log.CatOrch, "Sound failed", "key", pe.Key, "error", pe.Err)
		}
		if pe.Type == playback.EventPlayed && ok && o.recorder != nil {
			o.recorder.Observe(stats.Press{
				Profile:  res.Profile,
				Key:      pe.Key,
				Sound:    pe.Path,
				Fallback: res.Fallback,
			})
		}
		o.broker.Publish(pubsub.UpdatedEvent, out)
	}
}
