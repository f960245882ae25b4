package stats

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/zjrosen/keysound/internal/log"
)

const (
	defaultQueueSize     = 1024
	defaultBatchSize     = 64
	defaultFlushInterval = 2 * time.Second
)

// RecorderOptions tune batching. Zero values pick defaults.
type RecorderOptions struct {
	QueueSize     int
	BatchSize     int
	FlushInterval time.Duration
}

// Recorder buffers presses and writes them to a Repository in batches from
// a single background worker.
type Recorder struct {
	repo     Repository
	queue    chan Press
	batch    int
	interval time.Duration

	once    sync.Once
	done    chan struct{}
	stopped chan struct{}

	dropped atomic.Int64
	written atomic.Int64
}

// NewRecorder starts the worker.
func NewRecorder(repo Repository, opts RecorderOptions) *Recorder {
	if opts.QueueSize <= 0 {
		opts.QueueSize = defaultQueueSize
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = defaultBatchSize
	}
	if opts.FlushInterval <= 0 {
		opts.FlushInterval = defaultFlushInterval
	}
	r := &Recorder{
		repo:     repo,
		queue:    make(chan Press, opts.QueueSize),
		batch:    opts.BatchSize,
		interval: opts.FlushInterval,
		done:     make(chan struct{}),
		stopped:  make(chan struct{}),
	}
	log.SafeGo("stats-recorder", r.loop)
	return r
}

// Observe queues p. It never blocks; presses arriving while the queue is
// full are counted and discarded.
func (r *Recorder) Observe(p Press) {
	select {
	case <-r.done:
		return
	default:
	}
	if p.At.IsZero() {
		p.At = time.Now()
	}
	select {
	case r.queue <- p:
	default:
		r.dropped.Add(1)
	}
}

// Dropped returns the number of presses discarded on a full queue.
func (r *Recorder) Dropped() int64 { return r.dropped.Load() }

// Written returns the number of presses persisted.
func (r *Recorder) Written() int64 { return r.written.Load() }

func (r *Recorder) loop() {
	defer close(r.stopped)
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	pending := make([]Press, 0, r.batch)
	for {
		select {
		case p := <-r.queue:
			pending = append(pending, p)
			if len(pending) >= r.batch {
				pending = r.flush(pending)
			}
		case <-ticker.C:
			pending = r.flush(pending)
		case <-r.done:
			for {
				select {
				case p := <-r.queue:
					pending = append(pending, p)
				default:
					r.flush(pending)
					return
				}
			}
		}
	}
}

func (r *Recorder) flush(pending []Press) []Press {
	if len(pending) == 0 {
		return pending
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := r.repo.Record(ctx, pending...); err != nil {
		log.ErrorErr(log.CatDB, "Recording key presses failed", err, "count", len(pending))
	} else {
		r.written.Add(int64(len(pending)))
	}
	return make([]Press, 0, r.batch)
}

// Close stops the worker after writing everything queued, or when ctx ends.
func (r *Recorder) Close(ctx context.Context) error {
	r.once.Do(func() { close(r.done) })
	select {
	case <-r.stopped:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
