package worker

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/payrail/payrail/pkg/logger"
)

// Config holds the dispatcher tuning knobs.
type Config struct {
	// Concurrency is the number of worker goroutines.
	Concurrency int
	// QueueSize bounds the in-memory task channel.
	QueueSize int
	// MaxAttempts caps deliveries per task, first attempt included.
	MaxAttempts int
	// BackoffBase is the delay before the first retry.
	BackoffBase time.Duration
	// BackoffCap bounds the exponential growth.
	BackoffCap time.Duration
}

func (c Config) withDefaults() Config {
	if c.Concurrency <= 0 {
		c.Concurrency = 4
	}
	if c.QueueSize <= 0 {
		c.QueueSize = 1024
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 4
	}
	if c.BackoffBase <= 0 {
		c.BackoffBase = time.Second
	}
	if c.BackoffCap <= 0 {
		c.BackoffCap = time.Minute
	}
	return c
}

// Dispatcher fans tasks out to a fixed pool of worker goroutines over a
// bounded channel. Delivery is at-least-once; ordering across tasks is not
// guaranteed. Durability comes from the database rows the tasks point at,
// not from the queue: a crash loses the channel, and the sweeper re-enqueues
// whatever was in flight.
type Dispatcher struct {
	cfg      Config
	handlers map[string]Handler
	tasks    chan Task
	logger   *logger.Logger

	mu      sync.Mutex
	closed  bool
	wg      sync.WaitGroup
	timers  sync.WaitGroup
	cancel  context.CancelFunc
	started bool
}

// NewDispatcher creates a dispatcher with no handlers registered.
func NewDispatcher(cfg Config, log *logger.Logger) *Dispatcher {
	cfg = cfg.withDefaults()
	return &Dispatcher{
		cfg:      cfg,
		handlers: make(map[string]Handler),
		tasks:    make(chan Task, cfg.QueueSize),
		logger:   log.WithField("component", "dispatcher"),
	}
}

// Register binds a handler to a task kind. Must be called before Start.
func (d *Dispatcher) Register(kind string, h Handler) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.handlers[kind] = h
}

// Start launches the worker pool. Workers run until Stop is called or ctx
// is cancelled.
func (d *Dispatcher) Start(ctx context.Context) {
	d.mu.Lock()
	if d.started {
		d.mu.Unlock()
		return
	}
	d.started = true
	ctx, d.cancel = context.WithCancel(ctx)
	d.mu.Unlock()

	for i := 0; i < d.cfg.Concurrency; i++ {
		d.wg.Add(1)
		go d.work(ctx, i)
	}
	d.logger.Info("dispatcher started", "concurrency", d.cfg.Concurrency, "queue_size", d.cfg.QueueSize)
}

// Enqueue submits a task for processing. Non-blocking: a full queue returns
// ErrQueueFull and the caller relies on the sweeper to pick the row up later.
func (d *Dispatcher) Enqueue(task Task) error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return ErrDispatcherClosed
	}
	d.mu.Unlock()

	if task.Attempt == 0 {
		task.Attempt = 1
	}
	if task.EnqueuedAt.IsZero() {
		task.EnqueuedAt = time.Now().UTC()
	}

	select {
	case d.tasks <- task:
		return nil
	default:
		return ErrQueueFull
	}
}

// Stop shuts the pool down: no new tasks are accepted, workers finish the
// task in hand and exit, pending retry timers are released. Queued tasks are
// dropped; their database rows stay Pending and the sweeper re-enqueues them
// on the next pass.
func (d *Dispatcher) Stop() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	cancel := d.cancel
	d.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	d.timers.Wait()
	d.wg.Wait()
	d.logger.Info("dispatcher stopped")
}

func (d *Dispatcher) work(ctx context.Context, id int) {
	defer d.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case task := <-d.tasks:
			d.dispatch(ctx, task)
		}
	}
}

func (d *Dispatcher) dispatch(ctx context.Context, task Task) {
	d.mu.Lock()
	handler, ok := d.handlers[task.Kind]
	d.mu.Unlock()
	if !ok {
		d.logger.Error("dropping task", "kind", task.Kind, "key", task.Key, "error", ErrUnknownTaskKind)
		return
	}

	start := time.Now()
	err := handler.Handle(ctx, task)
	if err == nil {
		d.logger.Debug("task done",
			"kind", task.Kind,
			"key", task.Key,
			"attempt", task.Attempt,
			"duration_ms", time.Since(start).Milliseconds(),
		)
		return
	}

	if !IsRetryable(err) {
		d.logger.Error("task failed permanently", "kind", task.Kind, "key", task.Key, "attempt", task.Attempt, "error", err)
		return
	}
	if task.Attempt >= d.cfg.MaxAttempts {
		d.logger.Error("task exhausted retries", "kind", task.Kind, "key", task.Key, "attempt", task.Attempt, "error", err)
		return
	}

	delay := d.backoff(task.Attempt)
	d.logger.Warn("task retry scheduled",
		"kind", task.Kind,
		"key", task.Key,
		"attempt", task.Attempt,
		"delay", delay.String(),
		"error", err,
	)

	next := task
	next.Attempt++

	d.timers.Add(1)
	go func() {
		defer d.timers.Done()
		select {
		case <-ctx.Done():
		case <-time.After(delay):
			if err := d.Enqueue(next); err != nil {
				d.logger.Error("failed to requeue task", "kind", next.Kind, "key", next.Key, "error", err)
			}
		}
	}()
}

// backoff returns base * 2^(attempt-1), capped.
func (d *Dispatcher) backoff(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	mult := math.Pow(2, float64(attempt-1))
	delay := time.Duration(float64(d.cfg.BackoffBase) * mult)
	if delay > d.cfg.BackoffCap || delay <= 0 {
		delay = d.cfg.BackoffCap
	}
	return delay
}
