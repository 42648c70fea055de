package jobs

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"crm-sync/core/metrics"
	"crm-sync/core/reconcile"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ErrClosed is returned by Enqueue after Close.
var ErrClosed = errors.New("job runner closed")

// Job is a unit of work. Run must be safe to call again with the same arguments.
type Job struct {
	// ID identifies the job in logs. Generated when empty.
	ID string
	// Name is the job kind, e.g. outbound_update.
	Name string
	// Key serializes jobs touching the same record. Empty means no serialization.
	Key string
	// Args are the explicit arguments, handed to the error handler.
	Args any
	// Run performs the work.
	Run func(ctx context.Context) error
}

// FailurePolicy decides what happens to an error once retries are exhausted.
type FailurePolicy string

const (
	// FailSwallow reports the error to the handler and drops it.
	FailSwallow FailurePolicy = "swallow"
	// FailRaise reports the error to the handler and returns it.
	FailRaise FailurePolicy = "raise"
)

// ErrorHandler receives a job's terminal error. It is called once per failed job.
type ErrorHandler func(err error, job Job, args any)

// Config configures a Runner.
type Config struct {
	Retry RetryConfig `mapstructure:"retry"`
	// Workers bounds concurrently running enqueued jobs.
	Workers int `mapstructure:"workers" default:"4"`
	// QueueSize bounds jobs waiting for a worker. Enqueue blocks when full.
	QueueSize int `mapstructure:"queue_size" default:"1000"`
	// FailurePolicy is swallow or raise.
	FailurePolicy FailurePolicy `mapstructure:"failure_policy" default:"raise"`
}

// Runner executes jobs now or later with bounded retries.
type Runner struct {
	cfg     Config
	handler ErrorHandler
	logger  *zap.Logger
	locks   *KeyedLock
	sleep   func(ctx context.Context, d time.Duration) error

	queue    chan queued
	wg       sync.WaitGroup
	mu       sync.RWMutex
	closed   bool
	startOne sync.Once
}

type queued struct {
	ctx context.Context
	job Job
}

// NewRunner creates a runner. handler and logger may be nil.
func NewRunner(cfg Config, handler ErrorHandler, logger *zap.Logger) *Runner {
	if logger == nil {
		logger = zap.NewNop()
	}
	if handler == nil {
		handler = func(error, Job, any) {}
	}
	cfg.Retry = cfg.Retry.withDefaults()
	if cfg.Workers <= 0 {
		cfg.Workers = 4
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 1000
	}
	if cfg.FailurePolicy != FailSwallow {
		cfg.FailurePolicy = FailRaise
	}
	return &Runner{
		cfg:     cfg,
		handler: handler,
		logger:  logger,
		locks:   NewKeyedLock(),
		sleep:   sleepContext,
		queue:   make(chan queued, cfg.QueueSize),
	}
}

// Run executes the job now. Validation errors are not retried. Once attempts are
// exhausted the error handler is called and the error is returned or swallowed
// according to the failure policy.
func (r *Runner) Run(ctx context.Context, job Job) error {
	if job.ID == "" {
		job.ID = uuid.NewString()
	}
	l := r.logger.With(zap.String("job", job.Name), zap.String("job_id", job.ID))

	if job.Key != "" {
		unlock := r.locks.Lock(job.Key)
		defer unlock()
	}

	var err error
	for attempt := 1; attempt <= r.cfg.Retry.MaxAttempts; attempt++ {
		if attempt > 1 {
			if serr := r.sleep(ctx, r.cfg.Retry.Delay(attempt-1)); serr != nil {
				err = errors.Join(err, serr)
				break
			}
			l.Warn("Retrying job", zap.Int("attempt", attempt), zap.Error(err))
		}

		err = job.Run(ctx)
		if err == nil {
			metrics.ObserveJobAttempt(job.Name, "success")
			return nil
		}
		if reconcile.IsValidation(err) {
			metrics.ObserveJobAttempt(job.Name, "invalid")
			return err
		}
		metrics.ObserveJobAttempt(job.Name, "retry")
	}

	metrics.ObserveJobAttempt(job.Name, "failed")
	l.Error("Job failed, no more retries", zap.Int("attempts", r.cfg.Retry.MaxAttempts), zap.Error(err))
	r.handler(err, job, job.Args)
	if r.cfg.FailurePolicy == FailSwallow {
		return nil
	}
	return fmt.Errorf("job %s failed: %w", job.Name, err)
}

// Enqueue schedules the job on the worker pool. Errors of enqueued jobs reach
// only the error handler.
func (r *Runner) Enqueue(ctx context.Context, job Job) error {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.closed {
		return ErrClosed
	}
	r.startOne.Do(r.start)
	if job.ID == "" {
		job.ID = uuid.NewString()
	}
	// detach from the caller's cancellation; the job outlives the request that enqueued it
	q := queued{ctx: context.WithoutCancel(ctx), job: job}
	select {
	case r.queue <- q:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (r *Runner) start() {
	for i := 0; i < r.cfg.Workers; i++ {
		r.wg.Add(1)
		go func() {
			defer r.wg.Done()
			for q := range r.queue {
				_ = r.Run(q.ctx, q.job)
			}
		}()
	}
}

// Close stops accepting jobs and waits for queued ones to finish.
func (r *Runner) Close() {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	r.closed = true
	close(r.queue)
	r.mu.Unlock()
	r.wg.Wait()
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
