package playback

import (
	"fmt"
	"os"
	"time"

	"github.com/gopxl/beep/v2"
	"github.com/gopxl/beep/v2/flac"
	"github.com/gopxl/beep/v2/mp3"
	"github.com/gopxl/beep/v2/vorbis"
	"github.com/gopxl/beep/v2/wav"
	"github.com/patrickmn/go-cache"

	"github.com/zjrosen/keysound/internal/log"
	"github.com/zjrosen/keysound/internal/sound"
)

const (
	resampleQuality = 4
	// Assets longer than this stream from disk instead of being buffered.
	maxBuffered = 30 * time.Second
)

// decodeFile opens path with the decoder matching its extension.
func decodeFile(path string) (beep.StreamSeekCloser, beep.Format, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, beep.Format{}, err
	}

	var (
		s      beep.StreamSeekCloser
		format beep.Format
	)
	switch sound.Ext(path) {
	case ".wav":
		s, format, err = wav.Decode(f)
	case ".mp3":
		s, format, err = mp3.Decode(f)
	case ".flac":
		s, format, err = flac.Decode(f)
	case ".ogg":
		s, format, err = vorbis.Decode(f)
	default:
		err = fmt.Errorf("%w: %s", ErrUnsupportedFormat, sound.Ext(path))
	}
	if err != nil {
		_ = f.Close()
		return nil, beep.Format{}, err
	}
	return s, format, nil
}

// source is a decoded asset ready to render at the engine's sample rate.
type source struct {
	streamer beep.Streamer
	close    func() error
}

// decoder turns asset paths into sources, keeping short assets buffered in
// memory keyed by path, size and modification time.
type decoder struct {
	rate  beep.SampleRate
	cache *cache.Cache
}

func newDecoder(rate int, ttl time.Duration) *decoder {
	var c *cache.Cache
	if ttl > 0 {
		c = cache.New(ttl, 2*ttl)
	}
	return &decoder{rate: beep.SampleRate(rate), cache: c}
}

func (d *decoder) open(path string) (source, error) {
	info, err := os.Stat(path)
	if err != nil {
		return source{}, err
	}
	key := fmt.Sprintf("%s|%d|%d", path, info.Size(), info.ModTime().UnixNano())
	if d.cache != nil {
		if v, ok := d.cache.Get(key); ok {
			buf := v.(*beep.Buffer)
			return source{streamer: buf.Streamer(0, buf.Len()), close: noClose}, nil
		}
	}

	s, format, err := decodeFile(path)
	if err != nil {
		return source{}, err
	}
	streamer := d.resample(s, format)

	if s.Len() > format.SampleRate.N(maxBuffered) {
		log.Debug(log.CatAudio, "Streaming long asset", "path", path, "length", format.SampleRate.D(s.Len()))
		return source{streamer: streamer, close: s.Close}, nil
	}

	buf := beep.NewBuffer(beep.Format{SampleRate: d.rate, NumChannels: 2, Precision: 2})
	buf.Append(streamer)
	err = s.Err()
	if cerr := s.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return source{}, fmt.Errorf("decoding %s: %w", path, err)
	}
	if d.cache != nil {
		d.cache.Set(key, buf, cache.DefaultExpiration)
	}
	return source{streamer: buf.Streamer(0, buf.Len()), close: noClose}, nil
}

func (d *decoder) resample(s beep.Streamer, format beep.Format) beep.Streamer {
	if format.SampleRate == d.rate {
		return s
	}
	return beep.Resample(resampleQuality, format.SampleRate, d.rate, s)
}

// flush drops every cached buffer.
func (d *decoder) flush() {
	if d.cache != nil {
		d.cache.Flush()
	}
}

func (d *decoder) cached() int {
	if d.cache == nil {
		return 0
	}
	return d.cache.ItemCount()
}

func noClose() error { return nil }
