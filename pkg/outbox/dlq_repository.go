package outbox

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/bedbroker-backend/pkg/db/models"
)

const (
	dlqMessageLimit  = 1024
	defaultDLQListed = 50
)

// ErrNotDeadLettered is returned by Replay for an event id with no DLQ entry.
var ErrNotDeadLettered = errors.New("event is not dead-lettered")

// DLQRepository stores events the publisher gave up on. An entry keeps the
// full payload so it can be replayed after the cause is fixed.
type DLQRepository struct {
	db *gorm.DB
}

func NewDLQRepository(db *gorm.DB) *DLQRepository {
	return &DLQRepository{db: db}
}

func (r *DLQRepository) InsertTx(tx *gorm.DB, entry models.OutboxDLQ) error {
	if tx == nil {
		return errTxRequired
	}
	if entry.ErrorMessage != nil && len(*entry.ErrorMessage) > dlqMessageLimit {
		msg := (*entry.ErrorMessage)[:dlqMessageLimit]
		entry.ErrorMessage = &msg
	}
	return tx.Create(&entry).Error
}

// List returns the newest entries first.
func (r *DLQRepository) List(ctx context.Context, limit int) ([]models.OutboxDLQ, error) {
	if limit <= 0 {
		limit = defaultDLQListed
	}
	var rows []models.OutboxDLQ
	err := r.db.WithContext(ctx).
		Order("failed_at DESC").
		Limit(limit).
		Find(&rows).Error
	return rows, err
}

// Replay puts a dead-lettered event back in the publish queue with a fresh
// attempt budget. If retention already purged the outbox row it is recreated
// from the DLQ copy under the same id, so consumers still dedupe on event_id.
func (r *DLQRepository) Replay(ctx context.Context, eventID uuid.UUID) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var entry models.OutboxDLQ
		err := tx.Where("event_id = ?", eventID).First(&entry).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrNotDeadLettered
		}
		if err != nil {
			return fmt.Errorf("load dlq entry: %w", err)
		}

		res := tx.Model(&models.OutboxEvent{}).
			Where("id = ? AND published_at IS NULL", eventID).
			Updates(map[string]any{"attempt_count": 0, "last_error": nil})
		if res.Error != nil {
			return fmt.Errorf("reset outbox event: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			row := entry.Requeued()
			if err := tx.Create(&row).Error; err != nil {
				return fmt.Errorf("recreate outbox event: %w", err)
			}
		}
		return tx.Where("event_id = ?", eventID).Delete(&models.OutboxDLQ{}).Error
	})
}
