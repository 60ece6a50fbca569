package cron

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/angelmondragon/bedbroker-backend/pkg/logger"
	"gorm.io/gorm"
)

const (
	defaultRetention  = 30 * 24 * time.Hour
	outboxMinAttempts = 5
)

// Purger deletes rows created before cutoff and reports how many went.
type Purger func(ctx context.Context, cutoff time.Time) (int64, error)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxRetentionRepo interface {
	PurgeSettled(ctx context.Context, tx *gorm.DB, cutoff time.Time, minAttemptCount int) (int64, error)
}

type notificationRetentionRepo interface {
	DeleteReadBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// OutboxPurger removes published or dead-lettered outbox rows.
func OutboxPurger(db txRunner, repo outboxRetentionRepo, minAttempts int) Purger {
	if minAttempts <= 0 {
		minAttempts = outboxMinAttempts
	}
	return func(ctx context.Context, cutoff time.Time) (int64, error) {
		var deleted int64
		err := db.WithTx(ctx, func(tx *gorm.DB) error {
			rows, err := repo.PurgeSettled(ctx, tx, cutoff, minAttempts)
			deleted = rows
			return err
		})
		return deleted, err
	}
}

// NotificationPurger removes notifications that were already read.
func NotificationPurger(repo notificationRetentionRepo) Purger {
	return repo.DeleteReadBefore
}

// RetentionJobParams configure a retention job.
type RetentionJobParams struct {
	Name      string
	Logger    *logger.Logger
	Purge     Purger
	Retention time.Duration
}

// NewRetentionJob builds a job that purges rows older than the retention window.
func NewRetentionJob(params RetentionJobParams) (Job, error) {
	if params.Name == "" {
		return nil, errors.New("job name required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Purge == nil {
		return nil, fmt.Errorf("purger required")
	}
	retention := params.Retention
	if retention <= 0 {
		retention = defaultRetention
	}
	return &retentionJob{
		name:      params.Name,
		logg:      params.Logger,
		purge:     params.Purge,
		retention: retention,
		now:       time.Now,
	}, nil
}

type retentionJob struct {
	name      string
	logg      *logger.Logger
	purge     Purger
	retention time.Duration
	now       func() time.Time
}

func (j *retentionJob) Name() string { return j.name }

func (j *retentionJob) Run(ctx context.Context) error {
	cutoff := j.now().UTC().Add(-j.retention)
	deleted, err := j.purge(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("%s: %w", j.name, err)
	}
	logCtx := j.logg.WithFields(ctx, map[string]any{
		"cutoff":       cutoff,
		"retention_h":  int(j.retention.Hours()),
		"rows_deleted": deleted,
	})
	j.logg.Info(logCtx, "retention cleanup complete")
	return nil
}
