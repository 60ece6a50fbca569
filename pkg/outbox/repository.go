package outbox

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/angelmondragon/bedbroker-backend/pkg/db/models"
	"github.com/angelmondragon/bedbroker-backend/pkg/enums"
)

var errTxRequired = errors.New("transaction required")

// Repository owns outbox_events. Every write takes the caller's transaction
// so a row commits or rolls back with the state change it describes.
type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) Insert(tx *gorm.DB, event models.OutboxEvent) error {
	if tx == nil {
		return errTxRequired
	}
	return tx.Create(&event).Error
}

// Exists backs once-only events such as listing_deactivated.
func (r *Repository) Exists(tx *gorm.DB, eventType enums.OutboxEventType, aggregateType enums.OutboxAggregateType, aggregateID uuid.UUID) (bool, error) {
	if tx == nil {
		return false, errTxRequired
	}
	var found []uuid.UUID
	err := tx.Model(&models.OutboxEvent{}).
		Where(&models.OutboxEvent{EventType: eventType, AggregateType: aggregateType, AggregateID: aggregateID}).
		Limit(1).
		Pluck("id", &found).Error
	return len(found) > 0, err
}

// ClaimBatch row-locks the oldest pending events. SKIP LOCKED lets several
// publishers drain the table without sending an event twice; sqlite ignores
// the locking clause.
func (r *Repository) ClaimBatch(tx *gorm.DB, limit, maxAttempts int) ([]models.OutboxEvent, error) {
	if tx == nil {
		return nil, errTxRequired
	}
	var rows []models.OutboxEvent
	err := tx.Clauses(clause.Locking{Strength: clause.LockingStrengthUpdate, Options: clause.LockingOptionsSkipLocked}).
		Where("published_at IS NULL AND attempt_count < ?", maxAttempts).
		Order("created_at, id").
		Limit(limit).
		Find(&rows).Error
	return rows, err
}

func (r *Repository) MarkPublished(tx *gorm.DB, id uuid.UUID) error {
	return r.update(tx, id, map[string]any{"published_at": time.Now().UTC()})
}

// RecordFailure counts one failed attempt.
func (r *Repository) RecordFailure(tx *gorm.DB, id uuid.UUID, cause error) error {
	return r.update(tx, id, map[string]any{
		"last_error":    failureText(cause),
		"attempt_count": gorm.Expr("attempt_count + 1"),
	})
}

// Retire pins attempt_count at the ceiling so ClaimBatch never returns the
// row again; the DLQ keeps the payload.
func (r *Repository) Retire(tx *gorm.DB, id uuid.UUID, cause error, ceiling int) error {
	return r.update(tx, id, map[string]any{
		"last_error":    failureText(cause),
		"attempt_count": ceiling,
	})
}

func (r *Repository) update(tx *gorm.DB, id uuid.UUID, values map[string]any) error {
	if tx == nil {
		return errTxRequired
	}
	return tx.Model(&models.OutboxEvent{}).Where("id = ?", id).Updates(values).Error
}

// PurgeSettled deletes rows created before cutoff that were either published
// or retired.
func (r *Repository) PurgeSettled(ctx context.Context, tx *gorm.DB, cutoff time.Time, ceiling int) (int64, error) {
	if tx == nil {
		return 0, errTxRequired
	}
	res := tx.WithContext(ctx).
		Where("created_at < ?", cutoff).
		Where("published_at IS NOT NULL OR attempt_count >= ?", ceiling).
		Delete(&models.OutboxEvent{})
	return res.RowsAffected, res.Error
}

// ListForAggregate returns an aggregate's events oldest first.
func (r *Repository) ListForAggregate(ctx context.Context, aggregateID uuid.UUID) ([]models.OutboxEvent, error) {
	var rows []models.OutboxEvent
	err := r.db.WithContext(ctx).
		Where("aggregate_id = ?", aggregateID).
		Order("created_at, id").
		Find(&rows).Error
	return rows, err
}

func failureText(err error) string {
	if err == nil {
		return "unknown error"
	}
	msg := err.Error()
	if len(msg) > dlqMessageLimit {
		msg = msg[:dlqMessageLimit]
	}
	return msg
}
