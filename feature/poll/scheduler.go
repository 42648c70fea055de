package poll

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Status is a snapshot of the scheduler.
type Status struct {
	Running        bool      `json:"running"`
	LastRunTime    time.Time `json:"last_run_time"`
	NextRunTime    time.Time `json:"next_run_time"`
	TotalRuns      int       `json:"total_runs"`
	SuccessfulRuns int       `json:"successful_runs"`
	FailedRuns     int       `json:"failed_runs"`
	LastError      string    `json:"last_error,omitempty"`
}

// Scheduler polls every configured record type on a fixed interval.
type Scheduler struct {
	service  *Service
	types    []string
	interval time.Duration
	logger   *zap.Logger

	mu          sync.RWMutex
	running     bool
	stopped     bool
	stopOnce    sync.Once
	closeOnce   sync.Once
	stopChan    chan struct{}
	stoppedChan chan struct{}
	status      Status
}

// NewScheduler creates a scheduler for the given record types.
func NewScheduler(service *Service, types []string, interval time.Duration, logger *zap.Logger) (*Scheduler, error) {
	if interval <= 0 {
		return nil, fmt.Errorf("interval must be positive, got %v", interval)
	}
	if len(types) == 0 {
		return nil, errors.New("no record types to poll")
	}
	return &Scheduler{
		service:     service,
		types:       append([]string{}, types...),
		interval:    interval,
		logger:      logger,
		stopChan:    make(chan struct{}),
		stoppedChan: make(chan struct{}),
	}, nil
}

// Start begins the scheduling loop. A stopped scheduler cannot be restarted.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return errors.New("scheduler is already running")
	}
	if s.stopped {
		return errors.New("scheduler cannot be restarted after stop")
	}

	s.running = true
	s.status.NextRunTime = time.Now().Add(s.interval)
	go s.run(ctx)
	return nil
}

func (s *Scheduler) run(ctx context.Context) {
	defer s.closeOnce.Do(func() {
		s.mu.Lock()
		s.stopped = true
		s.running = false
		s.mu.Unlock()
		close(s.stoppedChan)
	})

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.stopChan:
			return
		case <-ticker.C:
			s.Tick(ctx)
		}
	}
}

// Tick polls every type once. A failing type does not stop the others.
func (s *Scheduler) Tick(ctx context.Context) {
	s.mu.Lock()
	s.status.LastRunTime = time.Now()
	s.status.TotalRuns++
	s.status.NextRunTime = time.Now().Add(s.interval)
	s.mu.Unlock()

	var errs []error
	for _, recordType := range s.types {
		if _, err := s.service.PollNext(ctx, recordType); err != nil && !errors.Is(err, ErrEmptyWindow) {
			s.logger.Error("Scheduled poll failed", zap.String("record_type", recordType), zap.Error(err))
			errs = append(errs, fmt.Errorf("%s: %w", recordType, err))
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := errors.Join(errs...); err != nil {
		s.status.FailedRuns++
		s.status.LastError = err.Error()
		return
	}
	s.status.SuccessfulRuns++
	s.status.LastError = ""
}

// Stop ends the loop and waits for a running tick to finish.
func (s *Scheduler) Stop() error {
	s.mu.RLock()
	if !s.running {
		s.mu.RUnlock()
		return errors.New("scheduler is not running")
	}
	s.mu.RUnlock()

	s.stopOnce.Do(func() { close(s.stopChan) })
	<-s.stoppedChan
	return nil
}

// Status returns the current scheduler status.
func (s *Scheduler) Status() Status {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st := s.status
	st.Running = s.running
	return st
}
