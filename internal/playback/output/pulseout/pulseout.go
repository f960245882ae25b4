// Package pulseout plays sessions as streams on a PulseAudio or PipeWire
// server, sharing the device with other applications.
package pulseout

import (
	"fmt"
	"sync"

	"github.com/gopxl/beep/v2"
	"github.com/jfreymuth/pulse"
	"github.com/jfreymuth/pulse/proto"

	"github.com/zjrosen/keysound/internal/playback"
)

// Backend holds one client connection; each device is a playback stream on it.
type Backend struct {
	mu     sync.Mutex
	client *pulse.Client
}

// New returns a backend that connects on first Open.
func New() *Backend {
	return &Backend{}
}

// Name implements playback.Backend.
func (b *Backend) Name() string { return "pulse" }

func (b *Backend) connect() (*pulse.Client, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.client != nil {
		return b.client, nil
	}
	c, err := pulse.NewClient(pulse.ClientApplicationName("keysound"))
	if err != nil {
		return nil, fmt.Errorf("connecting to pulse server: %w", err)
	}
	b.client = c
	return c, nil
}

// Open implements playback.Backend.
func (b *Backend) Open(f playback.Format) (playback.Device, error) {
	c, err := b.connect()
	if err != nil {
		return nil, err
	}
	layout := pulse.PlaybackStereo
	if f.Channels == 1 {
		layout = pulse.PlaybackMono
	}
	return &device{client: c, format: f, layout: layout}, nil
}

// Close implements playback.Backend.
func (b *Backend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.client != nil {
		b.client.Close()
		b.client = nil
	}
	return nil
}

type device struct {
	client *pulse.Client
	format playback.Format
	layout pulse.PlaybackOption

	mu      sync.Mutex
	reader  *playback.PCMReader
	stream  *pulse.PlaybackStream
	stopped bool
	err     error
}

func (d *device) Play(s beep.Streamer) error {
	reader := playback.NewPCMReader(s, d.format.Channels)
	d.mu.Lock()
	d.reader = reader
	if d.stopped {
		reader.Stop()
	}
	d.mu.Unlock()

	stream, err := d.client.NewPlayback(
		pulse.Int16Reader(func(buf []int16) (int, error) {
			n, err := reader.ReadInt16(buf)
			if err != nil {
				if !playback.IsEOF(err) {
					d.setErr(err)
				}
				return n, pulse.EndOfData
			}
			return n, nil
		}),
		d.layout,
		pulse.PlaybackSampleRate(d.format.SampleRate),
		pulse.PlaybackLatency(d.format.BufferSize.Seconds()),
		pulse.PlaybackRawOption(func(p *proto.CreatePlaybackStream) {
			vols := make(proto.ChannelVolumes, d.format.Channels)
			for i := range vols {
				vols[i] = uint32(proto.VolumeNorm)
			}
			p.ChannelVolumes = vols
		}),
	)
	if err != nil {
		return fmt.Errorf("creating pulse stream: %w", err)
	}
	d.mu.Lock()
	d.stream = stream
	d.mu.Unlock()

	stream.Start()
	stream.Drain()
	stream.Stop()

	d.mu.Lock()
	defer d.mu.Unlock()
	return d.err
}

func (d *device) setErr(err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.err == nil {
		d.err = err
	}
}

// Stop ends the stream at the next buffer request.
func (d *device) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.stopped = true
	if d.reader != nil {
		d.reader.Stop()
	}
}

func (d *device) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stream != nil {
		d.stream.Close()
		d.stream = nil
	}
	return nil
}
