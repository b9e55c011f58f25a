// Package recorder persists activity events off the request path. Events are queued on a
// bounded channel, enriched with a location, written by a fixed pool of workers and then
// handed to a post-persist hook (the security signal detector). Enqueue never blocks: a
// full queue drops the event.
package recorder

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"reloop/internal/activity/geo"
	"reloop/internal/activity/metrics"
	"reloop/internal/activity/models"
)

const (
	defaultQueueSize    = 1024
	defaultWorkers      = 4
	defaultWriteTimeout = 5 * time.Second
	defaultHookTimeout  = 10 * time.Second
	defaultGeoTimeout   = 2 * time.Second
)

// Writer is the subset of the activity store the recorder needs.
type Writer interface {
	Create(ctx context.Context, event *models.Event) error
}

// Hook runs after an event has been persisted.
type Hook interface {
	OnRecorded(ctx context.Context, event *models.Event)
}

// HookFunc adapts a function to Hook.
type HookFunc func(ctx context.Context, event *models.Event)

func (f HookFunc) OnRecorded(ctx context.Context, event *models.Event) { f(ctx, event) }

type Recorder struct {
	writer       Writer
	hook         Hook
	locator      geo.Locator
	geoTimeout   time.Duration
	queue        chan *models.Event
	workers      int
	writeTimeout time.Duration
	hookTimeout  time.Duration
	logger       *slog.Logger
	metrics      *metrics.Metrics

	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup
}

// Option configures the Recorder.
type Option func(*Recorder)

func WithQueueSize(size int) Option {
	return func(r *Recorder) {
		if size > 0 {
			r.queue = make(chan *models.Event, size)
		}
	}
}

func WithWorkers(n int) Option {
	return func(r *Recorder) {
		if n > 0 {
			r.workers = n
		}
	}
}

// WithWriteTimeout bounds each store write.
func WithWriteTimeout(d time.Duration) Option {
	return func(r *Recorder) {
		if d > 0 {
			r.writeTimeout = d
		}
	}
}

// WithHookTimeout bounds each hook invocation.
func WithHookTimeout(d time.Duration) Option {
	return func(r *Recorder) {
		if d > 0 {
			r.hookTimeout = d
		}
	}
}

// WithLocator resolves Location for events that arrive without one. Each lookup is bounded
// by timeout and degrades to geo.UnknownLocation.
func WithLocator(l geo.Locator, timeout time.Duration) Option {
	return func(r *Recorder) {
		r.locator = l
		if timeout > 0 {
			r.geoTimeout = timeout
		}
	}
}

func WithHook(h Hook) Option {
	return func(r *Recorder) { r.hook = h }
}

func WithLogger(logger *slog.Logger) Option {
	return func(r *Recorder) { r.logger = logger }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(r *Recorder) { r.metrics = m }
}

// New creates a Recorder and starts its workers.
func New(writer Writer, opts ...Option) *Recorder {
	r := &Recorder{
		writer:       writer,
		workers:      defaultWorkers,
		writeTimeout: defaultWriteTimeout,
		hookTimeout:  defaultHookTimeout,
		locator:      geo.StaticLocator{},
		geoTimeout:   defaultGeoTimeout,
		logger:       slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.queue == nil {
		r.queue = make(chan *models.Event, defaultQueueSize)
	}

	for range r.workers {
		r.wg.Add(1)
		go r.run()
	}
	return r
}

// Enqueue hands event to the workers. It reports false when the event was dropped
// because the queue is full or the recorder is closed.
func (r *Recorder) Enqueue(event *models.Event) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.closed {
		r.drop(event, "recorder closed")
		return false
	}

	select {
	case r.queue <- event:
		r.metrics.SetQueueDepth(len(r.queue))
		return true
	default:
		r.drop(event, "activity queue full, event dropped")
		return false
	}
}

// Close stops accepting events and waits for queued events to be written. It returns
// ctx.Err() if ctx ends before the queue drains; workers keep draining in the background.
func (r *Recorder) Close(ctx context.Context) error {
	r.mu.Lock()
	if !r.closed {
		r.closed = true
		close(r.queue)
	}
	r.mu.Unlock()

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (r *Recorder) run() {
	defer r.wg.Done()
	for event := range r.queue {
		r.metrics.SetQueueDepth(len(r.queue))
		r.process(event)
	}
}

func (r *Recorder) process(event *models.Event) {
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error("panic while recording activity",
				"panic", rec,
				"action", event.Action,
				"user_id", event.UserID,
			)
		}
	}()

	r.locate(event)
	if !r.persist(event) {
		return
	}
	if r.hook == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), r.hookTimeout)
	defer cancel()
	r.hook.OnRecorded(ctx, event)
}

func (r *Recorder) locate(event *models.Event) {
	if event.Location != "" {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), r.geoTimeout)
	defer cancel()
	event.Location = r.locator.Locate(ctx, event.IPAddress)
	if event.Location == "" {
		event.Location = geo.UnknownLocation
	}
}

func (r *Recorder) persist(event *models.Event) bool {
	ctx, cancel := context.WithTimeout(context.Background(), r.writeTimeout)
	defer cancel()

	start := time.Now()
	err := r.writer.Create(ctx, event)
	r.metrics.ObserveWriteLatency(time.Since(start).Seconds())
	if err != nil {
		r.metrics.IncWriteFailures()
		r.logger.Error("failed to persist activity event",
			"error", err,
			"action", event.Action,
			"user_id", event.UserID,
			"audit_ref", event.AuditRef,
		)
		return false
	}
	r.metrics.IncRecorded(string(event.Outcome))
	return true
}

func (r *Recorder) drop(event *models.Event, msg string) {
	r.metrics.IncDropped()
	r.logger.Warn(msg,
		"action", event.Action,
		"user_id", event.UserID,
		"audit_ref", event.AuditRef,
	)
}
