package cron

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/angelmondragon/bedbroker-backend/pkg/logger"
)

type fakeLock struct {
	mu       sync.Mutex
	acquired bool
	releases int
}

func (f *fakeLock) Acquire(context.Context) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.acquired {
		return false, nil
	}
	f.acquired = true
	return true, nil
}

func (f *fakeLock) Release(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.acquired = false
	f.releases++
	return nil
}

type testJob struct {
	name string
	err  error
	runs int
}

func (t *testJob) Name() string { return t.name }

func (t *testJob) Run(context.Context) error {
	t.runs++
	return t.err
}

type countingJob struct {
	runs atomic.Int32
}

func (c *countingJob) Name() string { return "counting" }

func (c *countingJob) Run(context.Context) error {
	c.runs.Add(1)
	return nil
}

func mustRegistry(t *testing.T, jobs ...Job) *Registry {
	t.Helper()
	r, err := NewRegistry(jobs...)
	if err != nil {
		t.Fatalf("registry: %v", err)
	}
	return r
}

func TestServiceRunCycleRunsAllJobsEvenOnFailure(t *testing.T) {
	logg := logger.New(logger.Options{ServiceName: "cron-test"})
	success := &testJob{name: "success"}
	failure := &testJob{name: "fail", err: errors.New("boom")}
	lock := &fakeLock{}
	service, err := NewService(ServiceParams{
		Logger:   logg,
		Registry: mustRegistry(t, failure, success),
		Lock:     lock,
	})
	if err != nil {
		t.Fatalf("construct service: %v", err)
	}
	if err := service.RunOnce(context.Background()); err != nil {
		t.Fatalf("run cycle: %v", err)
	}
	if success.runs != 1 || failure.runs != 1 {
		t.Fatalf("expected each job once, got success=%d failure=%d", success.runs, failure.runs)
	}
	if lock.releases != 1 {
		t.Fatalf("expected lock released once, got %d", lock.releases)
	}
}

func TestServiceSkipsCycleWhenLockHeld(t *testing.T) {
	logg := logger.New(logger.Options{ServiceName: "cron-test"})
	job := &testJob{name: "job"}
	service, err := NewService(ServiceParams{
		Logger:   logg,
		Registry: mustRegistry(t, job),
		Lock:     &fakeLock{acquired: true},
	})
	if err != nil {
		t.Fatalf("construct service: %v", err)
	}
	if err := service.RunOnce(context.Background()); err != nil {
		t.Fatalf("run cycle: %v", err)
	}
	if job.runs != 0 {
		t.Fatalf("expected job skipped when another instance holds the lock, ran %d", job.runs)
	}
}

func TestServiceStartStop(t *testing.T) {
	logg := logger.New(logger.Options{ServiceName: "cron-test"})
	job := &countingJob{}
	service, err := NewService(ServiceParams{
		Logger:   logg,
		Registry: mustRegistry(t, job),
		Lock:     &fakeLock{},
		Interval: 10 * time.Millisecond,
	})
	if err != nil {
		t.Fatalf("construct service: %v", err)
	}

	if err := service.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := service.Start(context.Background()); err == nil {
		t.Fatal("expected second start to fail")
	}

	deadline := time.Now().Add(2 * time.Second)
	for job.runs.Load() < 2 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if job.runs.Load() < 2 {
		t.Fatalf("expected at least two cycles, got %d", job.runs.Load())
	}

	service.Stop()
	after := job.runs.Load()
	time.Sleep(50 * time.Millisecond)
	if job.runs.Load() != after {
		t.Fatalf("job kept running after Stop")
	}
	service.Stop()
}

type panickingJob struct{}

func (panickingJob) Name() string { return "panicky" }

func (panickingJob) Run(context.Context) error { panic("nil map") }

type blockingJob struct{ err error }

func (*blockingJob) Name() string { return "blocking" }

func (b *blockingJob) Run(ctx context.Context) error {
	<-ctx.Done()
	b.err = ctx.Err()
	return b.err
}

func TestServiceSurvivesPanickingJob(t *testing.T) {
	after := &testJob{name: "after"}
	service, err := NewService(ServiceParams{
		Logger:   logger.New(logger.Options{ServiceName: "cron-test"}),
		Registry: mustRegistry(t, panickingJob{}, after),
		Lock:     &fakeLock{},
	})
	if err != nil {
		t.Fatalf("construct service: %v", err)
	}
	if err := service.RunOnce(context.Background()); err != nil {
		t.Fatalf("run cycle: %v", err)
	}
	if after.runs != 1 {
		t.Fatalf("expected job after the panic to run, got %d", after.runs)
	}
}

func TestServiceBoundsEachJob(t *testing.T) {
	job := &blockingJob{}
	service, err := NewService(ServiceParams{
		Logger:     logger.New(logger.Options{ServiceName: "cron-test"}),
		Registry:   mustRegistry(t, job),
		Lock:       &fakeLock{},
		JobTimeout: 20 * time.Millisecond,
	})
	if err != nil {
		t.Fatalf("construct service: %v", err)
	}
	if err := service.RunOnce(context.Background()); err != nil {
		t.Fatalf("run cycle: %v", err)
	}
	if !errors.Is(job.err, context.DeadlineExceeded) {
		t.Fatalf("expected job context to hit its deadline, got %v", job.err)
	}
}

func TestRunGuardedReportsPanic(t *testing.T) {
	err := runGuarded(context.Background(), panickingJob{})
	if err == nil || !strings.Contains(err.Error(), "job panicked: nil map") {
		t.Fatalf("expected panic error, got %v", err)
	}
}

func TestNewServiceValidatesParams(t *testing.T) {
	if _, err := NewService(ServiceParams{Lock: &fakeLock{}}); err == nil {
		t.Fatal("expected missing logger error")
	}
	if _, err := NewService(ServiceParams{Logger: logger.New(logger.Options{})}); err == nil {
		t.Fatal("expected missing lock error")
	}
}
