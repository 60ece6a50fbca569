package cron

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"github.com/angelmondragon/bedbroker-backend/pkg/logger"
	"github.com/angelmondragon/bedbroker-backend/pkg/metrics"
)

const (
	defaultInterval   = time.Minute
	defaultJobTimeout = 45 * time.Second
)

// ServiceParams configure the cron service.
type ServiceParams struct {
	Logger   *logger.Logger
	Registry *Registry
	Lock     Lock
	Metrics  *metrics.CronJobMetrics
	Interval time.Duration
	// JobTimeout bounds each job; keep it under the lock lease.
	JobTimeout time.Duration
}

// Service runs the registered jobs under a distributed lock. The next cycle
// is scheduled Interval after the previous one ends, so a slow sweep never
// stacks cycles.
type Service struct {
	logg       *logger.Logger
	registry   *Registry
	lock       Lock
	metrics    *metrics.CronJobMetrics
	interval   time.Duration
	jobTimeout time.Duration

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Logger == nil {
		return nil, errors.New("logger required")
	}
	if params.Lock == nil {
		return nil, errors.New("lock required")
	}
	s := &Service{
		logg:       params.Logger,
		registry:   params.Registry,
		lock:       params.Lock,
		metrics:    params.Metrics,
		interval:   params.Interval,
		jobTimeout: params.JobTimeout,
	}
	if s.registry == nil {
		s.registry = &Registry{}
	}
	if s.interval <= 0 {
		s.interval = defaultInterval
	}
	if s.jobTimeout <= 0 {
		s.jobTimeout = defaultJobTimeout
	}
	return s, nil
}

// Run blocks until ctx is cancelled and returns ctx.Err().
func (s *Service) Run(ctx context.Context) error {
	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logg.Info(ctx, "cron service context canceled")
			return ctx.Err()
		case <-timer.C:
			if err := s.runCycle(ctx); err != nil && ctx.Err() == nil {
				s.logg.Error(ctx, "scheduled run failed", err)
			}
			timer.Reset(s.interval)
		}
	}
}

// Start runs the loop on a background goroutine for binaries that embed the
// sweeper. Stop cancels it and waits for the in-flight cycle.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		return errors.New("cron service already started")
	}
	runCtx, cancel := context.WithCancel(ctx)
	s.cancel, s.done = cancel, make(chan struct{})
	go func(done chan struct{}) {
		defer close(done)
		if err := s.Run(runCtx); err != nil && !errors.Is(err, context.Canceled) {
			s.logg.Error(runCtx, "cron service stopped unexpectedly", err)
		}
	}(s.done)
	return nil
}

// Stop is safe to call more than once and before Start.
func (s *Service) Stop() {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.cancel, s.done = nil, nil
	s.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	<-done
}

// RunOnce executes a single locked cycle. Job failures are logged and
// counted, never returned.
func (s *Service) RunOnce(ctx context.Context) error {
	return s.runCycle(ctx)
}

func (s *Service) runCycle(ctx context.Context) error {
	locked, err := s.lock.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("lock acquire: %w", err)
	}
	if !locked {
		s.logg.Debug(ctx, "another cron instance holds the lock; skipping cycle")
		return nil
	}
	defer func() {
		// ctx may already be cancelled on shutdown
		if relErr := s.lock.Release(context.WithoutCancel(ctx)); relErr != nil {
			s.logg.Error(ctx, "failed to release cron lock", relErr)
		}
	}()

	failed := 0
	for _, job := range s.registry.Jobs() {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if !s.runJob(ctx, job) {
			failed++
		}
	}
	if failed > 0 {
		s.logg.Warn(s.logg.WithField(ctx, "failed_jobs", failed), "cron cycle finished with failures")
	}
	return nil
}

func (s *Service) runJob(ctx context.Context, job Job) bool {
	ctx = s.logg.WithFields(ctx, map[string]any{"job": job.Name(), "event": "cron.job"})
	jobCtx, cancel := context.WithTimeout(ctx, s.jobTimeout)
	defer cancel()

	start := time.Now()
	err := runGuarded(jobCtx, job)
	took := time.Since(start)
	s.metrics.ObserveRun(job.Name(), took, err)

	ctx = s.logg.WithField(ctx, "duration_ms", took.Milliseconds())
	if err != nil {
		s.logg.Error(ctx, "job failed", err)
		return false
	}
	s.logg.Debug(ctx, "job completed")
	return true
}

// runGuarded turns a panicking job into a failed run so the remaining jobs
// in the cycle still execute.
func runGuarded(ctx context.Context, job Job) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("job panicked: %v\n%s", rec, debug.Stack())
		}
	}()
	return job.Run(ctx)
}
