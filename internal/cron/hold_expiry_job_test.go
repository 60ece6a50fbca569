package cron

import (
	"context"
	"errors"
	"testing"

	"github.com/angelmondragon/bedbroker-backend/pkg/logger"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/multierr"
)

func TestHoldExpiryJobExpiresEachStaleHold(t *testing.T) {
	ids := []uuid.UUID{uuid.New(), uuid.New(), uuid.New()}
	holds := &fakeHoldExpirer{
		stale:   ids,
		results: map[uuid.UUID]bool{ids[0]: true, ids[1]: false, ids[2]: true},
	}
	job := newHoldExpiryJob(t, holds, 0)

	require.NoError(t, job.Run(context.Background()))
	require.Equal(t, defaultHoldExpiryBatch, holds.limit)
	require.Equal(t, ids, holds.expired)
}

func TestHoldExpiryJobContinuesAfterFailure(t *testing.T) {
	ids := []uuid.UUID{uuid.New(), uuid.New(), uuid.New()}
	holds := &fakeHoldExpirer{
		stale:   ids,
		results: map[uuid.UUID]bool{ids[2]: true},
		errs: map[uuid.UUID]error{
			ids[0]: errors.New("deadlock"),
			ids[1]: errors.New("timeout"),
		},
	}
	job := newHoldExpiryJob(t, holds, 25)

	err := job.Run(context.Background())
	require.Error(t, err)
	require.Len(t, multierr.Errors(err), 2)
	require.Equal(t, 25, holds.limit)
	require.Equal(t, ids, holds.expired, "every candidate must be attempted")
}

func TestHoldExpiryJobPropagatesQueryError(t *testing.T) {
	holds := &fakeHoldExpirer{findErr: errors.New("db down")}
	job := newHoldExpiryJob(t, holds, 0)

	if err := job.Run(context.Background()); err == nil {
		t.Fatal("expected error")
	}
	if len(holds.expired) != 0 {
		t.Fatalf("expected no expirations, got %d", len(holds.expired))
	}
}

func TestHoldExpiryJobStopsOnCanceledContext(t *testing.T) {
	holds := &fakeHoldExpirer{stale: []uuid.UUID{uuid.New(), uuid.New()}}
	job := newHoldExpiryJob(t, holds, 0)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := job.Run(ctx)
	require.ErrorIs(t, err, context.Canceled)
	require.Empty(t, holds.expired)
}

func TestNewHoldExpiryJobValidatesParams(t *testing.T) {
	logg := logger.New(logger.Options{ServiceName: "test"})
	if _, err := NewHoldExpiryJob(HoldExpiryJobParams{Holds: &fakeHoldExpirer{}}); err == nil {
		t.Fatal("expected logger error")
	}
	if _, err := NewHoldExpiryJob(HoldExpiryJobParams{Logger: logg}); err == nil {
		t.Fatal("expected expirer error")
	}
}

func newHoldExpiryJob(t *testing.T, holds *fakeHoldExpirer, batch int) *holdExpiryJob {
	t.Helper()
	jobIface, err := NewHoldExpiryJob(HoldExpiryJobParams{
		Logger:    logger.New(logger.Options{ServiceName: "test"}),
		Holds:     holds,
		BatchSize: batch,
	})
	if err != nil {
		t.Fatalf("NewHoldExpiryJob: %v", err)
	}
	job, ok := jobIface.(*holdExpiryJob)
	if !ok {
		t.Fatalf("expected holdExpiryJob, got %T", jobIface)
	}
	if job.Name() != "hold-expiry" {
		t.Fatalf("unexpected job name %q", job.Name())
	}
	return job
}

type fakeHoldExpirer struct {
	stale   []uuid.UUID
	findErr error
	results map[uuid.UUID]bool
	errs    map[uuid.UUID]error
	limit   int
	expired []uuid.UUID
}

func (f *fakeHoldExpirer) FindStaleHolds(ctx context.Context, limit int) ([]uuid.UUID, error) {
	f.limit = limit
	if f.findErr != nil {
		return nil, f.findErr
	}
	return f.stale, nil
}

func (f *fakeHoldExpirer) ExpireHold(ctx context.Context, reservationID uuid.UUID) (bool, error) {
	f.expired = append(f.expired, reservationID)
	if err := f.errs[reservationID]; err != nil {
		return false, err
	}
	return f.results[reservationID], nil
}
