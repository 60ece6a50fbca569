package cron

import (
	"context"
	"fmt"

	"github.com/angelmondragon/bedbroker-backend/pkg/logger"
	"github.com/google/uuid"
	"go.uber.org/multierr"
)

const defaultHoldExpiryBatch = 500

// HoldExpiryJobParams configure the stale hold sweeper.
type HoldExpiryJobParams struct {
	Logger    *logger.Logger
	Holds     holdExpirer
	BatchSize int
}

type holdExpirer interface {
	FindStaleHolds(ctx context.Context, limit int) ([]uuid.UUID, error)
	ExpireHold(ctx context.Context, reservationID uuid.UUID) (bool, error)
}

// NewHoldExpiryJob builds the cron job that expires pending holds past their TTL.
func NewHoldExpiryJob(params HoldExpiryJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Holds == nil {
		return nil, fmt.Errorf("hold expirer required")
	}
	batch := params.BatchSize
	if batch <= 0 {
		batch = defaultHoldExpiryBatch
	}
	return &holdExpiryJob{
		logg:  params.Logger,
		holds: params.Holds,
		batch: batch,
	}, nil
}

type holdExpiryJob struct {
	logg  *logger.Logger
	holds holdExpirer
	batch int
}

func (j *holdExpiryJob) Name() string { return "hold-expiry" }

// Run expires one batch. A failure on one reservation does not stop the rest;
// every failure is returned combined.
func (j *holdExpiryJob) Run(ctx context.Context) error {
	ids, err := j.holds.FindStaleHolds(ctx, j.batch)
	if err != nil {
		return fmt.Errorf("query stale holds: %w", err)
	}

	var (
		errs    error
		expired int
		skipped int
	)
	for _, id := range ids {
		if ctx.Err() != nil {
			errs = multierr.Append(errs, ctx.Err())
			break
		}
		ok, err := j.holds.ExpireHold(ctx, id)
		if err != nil {
			errCtx := j.logg.WithReservationID(ctx, id.String())
			j.logg.Error(errCtx, "expire hold failed", err)
			errs = multierr.Append(errs, fmt.Errorf("expire %s: %w", id, err))
			continue
		}
		if ok {
			expired++
		} else {
			skipped++
		}
	}

	logCtx := j.logg.WithFields(ctx, map[string]any{
		"candidates": len(ids),
		"expired":    expired,
		"skipped":    skipped,
		"failed":     len(multierr.Errors(errs)),
	})
	j.logg.Info(logCtx, "hold expiry sweep complete")
	return errs
}
