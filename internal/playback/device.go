package playback

import (
	"errors"
	"io"
	"math"
	"sync/atomic"
	"time"

	"github.com/gopxl/beep/v2"
)

// Format is the PCM layout every session is rendered to.
type Format struct {
	SampleRate int
	Channels   int
	BufferSize time.Duration
}

// Beep returns the equivalent beep format at 16-bit precision.
func (f Format) Beep() beep.Format {
	return beep.Format{SampleRate: beep.SampleRate(f.SampleRate), NumChannels: f.Channels, Precision: 2}
}

// Backend opens output devices. Backends are tried in order; the first one
// that opens wins for that session.
type Backend interface {
	Name() string
	Open(f Format) (Device, error)
	Close() error
}

// Device is one session's handle on an output.
type Device interface {
	// Play blocks until s is drained or Stop is called.
	Play(s beep.Streamer) error
	// Stop makes a running Play return early. Safe to call more than once.
	Stop()
	Close() error
}

// PCMReader adapts a streamer to interleaved signed 16-bit little-endian
// PCM for outputs that pull bytes or samples.
type PCMReader struct {
	s        beep.Streamer
	channels int
	buf      [][2]float64
	stopped  atomic.Bool
	done     bool
}

// NewPCMReader wraps s. channels is 1 or 2; mono output averages both sides.
func NewPCMReader(s beep.Streamer, channels int) *PCMReader {
	if channels != 1 {
		channels = 2
	}
	return &PCMReader{s: s, channels: channels}
}

// Stop makes subsequent reads report end of stream.
func (r *PCMReader) Stop() {
	r.stopped.Store(true)
}

func (r *PCMReader) fill(frames int) (int, error) {
	if r.done || r.stopped.Load() {
		return 0, io.EOF
	}
	if cap(r.buf) < frames {
		r.buf = make([][2]float64, frames)
	}
	r.buf = r.buf[:frames]
	n, ok := r.s.Stream(r.buf)
	if !ok {
		r.done = true
		if err := r.s.Err(); err != nil {
			return n, err
		}
		if n == 0 {
			return 0, io.EOF
		}
	}
	return n, nil
}

// Read implements io.Reader.
func (r *PCMReader) Read(p []byte) (int, error) {
	frameBytes := 2 * r.channels
	frames := len(p) / frameBytes
	if frames == 0 {
		return 0, io.ErrShortBuffer
	}
	n, err := r.fill(frames)
	i := 0
	for _, frame := range r.buf[:n] {
		if r.channels == 1 {
			putInt16(p[i:], (frame[0]+frame[1])/2)
			i += 2
			continue
		}
		putInt16(p[i:], frame[0])
		putInt16(p[i+2:], frame[1])
		i += 4
	}
	return i, err
}

// ReadInt16 fills p with interleaved samples.
func (r *PCMReader) ReadInt16(p []int16) (int, error) {
	frames := len(p) / r.channels
	if frames == 0 {
		return 0, io.ErrShortBuffer
	}
	n, err := r.fill(frames)
	i := 0
	for _, frame := range r.buf[:n] {
		if r.channels == 1 {
			p[i] = toInt16((frame[0] + frame[1]) / 2)
			i++
			continue
		}
		p[i] = toInt16(frame[0])
		p[i+1] = toInt16(frame[1])
		i += 2
	}
	return i, err
}

func toInt16(v float64) int16 {
	v = math.Max(-1, math.Min(1, v))
	return int16(math.Round(v * math.MaxInt16))
}

func putInt16(p []byte, v float64) {
	s := uint16(toInt16(v))
	p[0] = byte(s)
	p[1] = byte(s >> 8)
}

// IsEOF reports whether err marks a normal end of stream.
func IsEOF(err error) bool {
	return errors.Is(err, io.EOF)
}
