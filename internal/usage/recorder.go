// Package usage counts resolved calls per endpoint, event type, method and
// day. Counting is best effort: hits are queued and written by a background
// worker, and failures never reach the caller.
package usage

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"healthlink/internal/usage/metrics"
)

// Store persists daily counters. Implementations must apply each increment
// atomically.
type Store interface {
	Increment(ctx context.Context, key Key, matched bool) error
}

const (
	defaultQueueSize    = 1024
	defaultWriteTimeout = 5 * time.Second
)

// MethodAbsent is recorded when no event matched.
const MethodAbsent = "n/a"

// Recorder queues hits and writes them with a single worker.
type Recorder struct {
	store        Store
	queue        chan Hit
	location     *time.Location
	writeTimeout time.Duration
	logger       *slog.Logger
	metrics      *metrics.Metrics

	mu      sync.RWMutex
	closed  bool
	running atomic.Bool
	done    chan struct{}
}

// Option configures a Recorder.
type Option func(*Recorder)

func WithQueueSize(n int) Option {
	return func(r *Recorder) {
		if n > 0 {
			r.queue = make(chan Hit, n)
		}
	}
}

// WithLocation sets the time zone that decides a hit's calendar day.
func WithLocation(loc *time.Location) Option {
	return func(r *Recorder) {
		if loc != nil {
			r.location = loc
		}
	}
}

func WithWriteTimeout(d time.Duration) Option {
	return func(r *Recorder) {
		if d > 0 {
			r.writeTimeout = d
		}
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(r *Recorder) {
		if logger != nil {
			r.logger = logger
		}
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(r *Recorder) {
		r.metrics = m
	}
}

func NewRecorder(store Store, opts ...Option) *Recorder {
	r := &Recorder{
		store:        store,
		queue:        make(chan Hit, defaultQueueSize),
		location:     time.UTC,
		writeTimeout: defaultWriteTimeout,
		logger:       slog.Default(),
		done:         make(chan struct{}),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Record enqueues a hit without blocking. A full or closed queue drops it.
func (r *Recorder) Record(ctx context.Context, hit Hit) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.closed {
		r.drop(ctx, hit, "closed")
		return
	}
	select {
	case r.queue <- hit:
		r.metrics.SetQueueDepth(len(r.queue))
	default:
		r.drop(ctx, hit, "queue_full")
	}
}

func (r *Recorder) drop(ctx context.Context, hit Hit, cause string) {
	r.metrics.IncrementDropped()
	r.logger.WarnContext(ctx, "metric_dropped",
		"endpoint", hit.Endpoint,
		"tipo_evento", hit.EventType,
		"cause", cause,
	)
}

// Run writes queued hits until the queue is closed by Close or ctx ends.
// On ctx end, hits already buffered are still written.
func (r *Recorder) Run(ctx context.Context) {
	r.running.Store(true)
	defer close(r.done)

	for {
		select {
		case hit, ok := <-r.queue:
			if !ok {
				return
			}
			r.write(ctx, hit)
		case <-ctx.Done():
			r.drainBuffered(ctx)
			return
		}
	}
}

func (r *Recorder) drainBuffered(ctx context.Context) {
	for {
		select {
		case hit, ok := <-r.queue:
			if !ok {
				return
			}
			r.write(ctx, hit)
		default:
			return
		}
	}
}

// Close stops intake and waits until every queued hit has been written.
// Without a running worker the queue is drained inline.
func (r *Recorder) Close() {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	r.closed = true
	close(r.queue)
	r.mu.Unlock()

	if r.running.Load() {
		<-r.done
		return
	}
	for hit := range r.queue {
		r.write(context.Background(), hit)
	}
}

func (r *Recorder) write(ctx context.Context, hit Hit) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.writeTimeout)
	defer cancel()
	r.metrics.SetQueueDepth(len(r.queue))

	key := r.keyFor(hit)
	if err := r.store.Increment(ctx, key, hit.Matched); err != nil {
		r.metrics.IncrementWriteFailure()
		r.logger.ErrorContext(ctx, "metric_write_failed",
			"endpoint", key.Endpoint,
			"tipo_evento", key.EventType,
			"metodo_identificacao", key.Method,
			"data", key.DayString(),
			"error", err,
		)
		return
	}
	r.metrics.IncrementWritten()
}

func (r *Recorder) keyFor(hit Hit) Key {
	method := hit.Method
	if method == "" {
		method = MethodAbsent
	}
	at := hit.At
	if at.IsZero() {
		at = time.Now()
	}
	local := at.In(r.location)
	day := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, time.UTC)
	return Key{
		Endpoint:  hit.Endpoint,
		EventType: hit.EventType,
		Method:    method,
		Day:       day,
	}
}
