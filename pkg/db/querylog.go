package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/angelmondragon/bedbroker-backend/pkg/logger"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// queryLogger routes GORM's trace output into the service logger. Only slow
// statements reach Warn; failed statements are Debug because most of them are
// expected (unique violations on contended beds, lock timeouts).
type queryLogger struct {
	logg  *logger.Logger
	slow  time.Duration
	level gormlogger.LogLevel
}

func newQueryLogger(logg *logger.Logger, slow time.Duration) gormlogger.Interface {
	if logg == nil {
		return gormlogger.Discard
	}
	return &queryLogger{logg: logg, slow: slow, level: gormlogger.Warn}
}

func (q *queryLogger) LogMode(level gormlogger.LogLevel) gormlogger.Interface {
	clone := *q
	clone.level = level
	return &clone
}

func (q *queryLogger) Info(ctx context.Context, msg string, args ...any) {
	if q.level >= gormlogger.Info {
		q.logg.Info(ctx, fmt.Sprintf(msg, args...))
	}
}

func (q *queryLogger) Warn(ctx context.Context, msg string, args ...any) {
	if q.level >= gormlogger.Warn {
		q.logg.Warn(ctx, fmt.Sprintf(msg, args...))
	}
}

func (q *queryLogger) Error(ctx context.Context, msg string, args ...any) {
	if q.level >= gormlogger.Error {
		q.logg.Error(ctx, "gorm", errors.New(fmt.Sprintf(msg, args...)))
	}
}

func (q *queryLogger) Trace(ctx context.Context, begin time.Time, fc func() (string, int64), err error) {
	if q.level <= gormlogger.Silent {
		return
	}
	elapsed := time.Since(begin)
	switch {
	case err != nil && !errors.Is(err, gorm.ErrRecordNotFound):
		stmt, rows := fc()
		q.logg.Debug(q.fields(ctx, stmt, rows, elapsed, err), "db.query_failed")
	case q.slow > 0 && elapsed > q.slow && q.level >= gormlogger.Warn:
		stmt, rows := fc()
		q.logg.Warn(q.fields(ctx, stmt, rows, elapsed, nil), "db.slow_query")
	}
}

func (q *queryLogger) fields(ctx context.Context, stmt string, rows int64, elapsed time.Duration, err error) context.Context {
	fields := map[string]any{
		"sql":         stmt,
		"rows":        rows,
		"duration_ms": elapsed.Milliseconds(),
	}
	if err != nil {
		fields["db_error"] = err.Error()
	}
	return q.logg.WithFields(ctx, fields)
}
