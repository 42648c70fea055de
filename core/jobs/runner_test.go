package jobs

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"crm-sync/core/reconcile"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type handlerCalls struct {
	mu   sync.Mutex
	errs []error
	jobs []Job
	args []any
}

func (h *handlerCalls) handle(err error, job Job, args any) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.errs = append(h.errs, err)
	h.jobs = append(h.jobs, job)
	h.args = append(h.args, args)
}

func (h *handlerCalls) count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.errs)
}

func flaky(failures int, err error) (Job, *int32) {
	var calls int32
	return Job{
		Name: "flaky",
		Args: "args-1",
		Run: func(context.Context) error {
			n := atomic.AddInt32(&calls, 1)
			if int(n) <= failures {
				return err
			}
			return nil
		},
	}, &calls
}

func TestRunner_RetriesThenSucceeds(t *testing.T) {
	h := &handlerCalls{}
	r := NewRunner(Config{Retry: RetryConfig{MaxAttempts: 3}}, h.handle, nil)

	job, calls := flaky(2, errors.New("timeout"))
	require.NoError(t, r.Run(context.Background(), job))
	assert.Equal(t, int32(3), *calls)
	assert.Zero(t, h.count())
}

func TestRunner_ExhaustsAttemptsAndCallsHandlerOnce(t *testing.T) {
	boom := errors.New("rate limited")

	t.Run("raise", func(t *testing.T) {
		h := &handlerCalls{}
		r := NewRunner(Config{Retry: RetryConfig{MaxAttempts: 3}, FailurePolicy: FailRaise}, h.handle, nil)

		job, calls := flaky(10, boom)
		err := r.Run(context.Background(), job)
		assert.ErrorIs(t, err, boom)
		assert.Equal(t, int32(3), *calls)

		require.Equal(t, 1, h.count())
		assert.ErrorIs(t, h.errs[0], boom)
		assert.Equal(t, "flaky", h.jobs[0].Name)
		assert.Equal(t, "args-1", h.args[0])
	})

	t.Run("swallow", func(t *testing.T) {
		h := &handlerCalls{}
		r := NewRunner(Config{Retry: RetryConfig{MaxAttempts: 2}, FailurePolicy: FailSwallow}, h.handle, nil)

		job, calls := flaky(10, boom)
		assert.NoError(t, r.Run(context.Background(), job))
		assert.Equal(t, int32(2), *calls)
		assert.Equal(t, 1, h.count())
	})
}

func TestRunner_ValidationErrorsAreNotRetried(t *testing.T) {
	h := &handlerCalls{}
	r := NewRunner(Config{Retry: RetryConfig{MaxAttempts: 5}}, h.handle, nil)

	invalid := &reconcile.ValidationError{Err: reconcile.ErrMissingOption}
	job, calls := flaky(10, invalid)
	err := r.Run(context.Background(), job)

	assert.True(t, reconcile.IsValidation(err))
	assert.Equal(t, int32(1), *calls)
	assert.Zero(t, h.count())
}

func TestRunner_BacksOffBetweenAttempts(t *testing.T) {
	r := NewRunner(Config{Retry: RetryConfig{MaxAttempts: 3, InitialDelay: time.Second, Multiplier: 3, MaxDelay: time.Hour}}, nil, nil)
	var waits []time.Duration
	r.sleep = func(_ context.Context, d time.Duration) error {
		waits = append(waits, d)
		return nil
	}

	job, _ := flaky(10, errors.New("down"))
	_ = r.Run(context.Background(), job)
	assert.Equal(t, []time.Duration{time.Second, 3 * time.Second}, waits)
}

func TestRunner_CancelledWhileWaiting(t *testing.T) {
	h := &handlerCalls{}
	r := NewRunner(Config{Retry: RetryConfig{MaxAttempts: 3, InitialDelay: time.Hour}}, h.handle, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	job, calls := flaky(10, errors.New("down"))
	err := r.Run(ctx, job)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, int32(1), *calls)
	assert.Equal(t, 1, h.count())
}

func TestRunner_EnqueueAndClose(t *testing.T) {
	h := &handlerCalls{}
	r := NewRunner(Config{Workers: 3, QueueSize: 2, Retry: RetryConfig{MaxAttempts: 1}}, h.handle, nil)

	var done int32
	for i := 0; i < 20; i++ {
		err := r.Enqueue(context.Background(), Job{Name: "count", Run: func(context.Context) error {
			atomic.AddInt32(&done, 1)
			return nil
		}})
		require.NoError(t, err)
	}
	require.NoError(t, r.Enqueue(context.Background(), Job{Name: "fails", Run: func(context.Context) error {
		return errors.New("nope")
	}}))

	r.Close()
	assert.Equal(t, int32(20), atomic.LoadInt32(&done))
	assert.Equal(t, 1, h.count())

	assert.ErrorIs(t, r.Enqueue(context.Background(), Job{Name: "late"}), ErrClosed)
	r.Close()
}

func TestRunner_SerializesJobsWithTheSameKey(t *testing.T) {
	r := NewRunner(Config{Workers: 8}, nil, nil)

	var (
		running int32
		overlap int32
	)
	for i := 0; i < 16; i++ {
		require.NoError(t, r.Enqueue(context.Background(), Job{Name: "keyed", Key: "Contact/remote/A", Run: func(context.Context) error {
			if atomic.AddInt32(&running, 1) > 1 {
				atomic.StoreInt32(&overlap, 1)
			}
			time.Sleep(time.Millisecond)
			atomic.AddInt32(&running, -1)
			return nil
		}}))
	}
	r.Close()
	assert.Zero(t, atomic.LoadInt32(&overlap))
}
