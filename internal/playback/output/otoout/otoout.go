// Package otoout plays sessions through a shared oto context, which talks to
// the platform's native low-latency audio API.
package otoout

import (
	"fmt"
	"sync"
	"time"

	"github.com/ebitengine/oto/v3"
	"github.com/gopxl/beep/v2"

	"github.com/zjrosen/keysound/internal/playback"
)

const pollInterval = 5 * time.Millisecond

// Backend lazily creates the process-wide oto context on first Open. oto
// allows one context per process, so the first format opened fixes the
// sample rate.
type Backend struct {
	once   sync.Once
	ctx    *oto.Context
	format playback.Format
	err    error
}

// New returns an unopened backend.
func New() *Backend {
	return &Backend{}
}

// Name implements playback.Backend.
func (b *Backend) Name() string { return "oto" }

func (b *Backend) init(f playback.Format) {
	ctx, ready, err := oto.NewContext(&oto.NewContextOptions{
		SampleRate:   f.SampleRate,
		ChannelCount: f.Channels,
		Format:       oto.FormatSignedInt16LE,
		BufferSize:   f.BufferSize,
	})
	if err != nil {
		b.err = fmt.Errorf("oto context: %w", err)
		return
	}
	<-ready
	b.ctx = ctx
	b.format = f
}

// Open implements playback.Backend.
func (b *Backend) Open(f playback.Format) (playback.Device, error) {
	b.once.Do(func() { b.init(f) })
	if b.err != nil {
		return nil, b.err
	}
	if f.SampleRate != b.format.SampleRate || f.Channels != b.format.Channels {
		return nil, fmt.Errorf("oto context already running at %d Hz, %d channels", b.format.SampleRate, b.format.Channels)
	}
	return &device{ctx: b.ctx, channels: f.Channels, done: make(chan struct{})}, nil
}

// Close implements playback.Backend. The oto context lives until exit.
func (b *Backend) Close() error {
	if b.ctx != nil {
		return b.ctx.Suspend()
	}
	return nil
}

type device struct {
	ctx      *oto.Context
	channels int
	player   *oto.Player
	done     chan struct{}
	stopOnce sync.Once
}

func (d *device) Play(s beep.Streamer) error {
	d.player = d.ctx.NewPlayer(playback.NewPCMReader(s, d.channels))
	d.player.Play()

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()
	for d.player.IsPlaying() {
		select {
		case <-d.done:
			d.player.Pause()
			return nil
		case <-ticker.C:
		}
	}
	return d.player.Err()
}

func (d *device) Stop() {
	d.stopOnce.Do(func() { close(d.done) })
}

func (d *device) Close() error {
	if d.player == nil {
		return nil
	}
	return d.player.Close()
}
