package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/bedbroker-backend/pkg/enums"
)

// OutboxDLQ is a dead-lettered outbox event. EventID is the outbox row id
// (and the envelope event_id); at most one entry exists per event.
type OutboxDLQ struct {
	ID            uuid.UUID                  `gorm:"column:id;type:uuid;primaryKey"`
	EventID       uuid.UUID                  `gorm:"column:event_id;type:uuid;not null"`
	EventType     enums.OutboxEventType      `gorm:"column:event_type;type:event_type_enum;not null"`
	AggregateType enums.OutboxAggregateType  `gorm:"column:aggregate_type;type:aggregate_type_enum;not null"`
	AggregateID   uuid.UUID                  `gorm:"column:aggregate_id;type:uuid;not null"`
	Payload       json.RawMessage            `gorm:"column:payload_json;type:jsonb;not null"`
	ErrorReason   enums.OutboxDLQErrorReason `gorm:"column:error_reason;type:outbox_dlq_error_reason_enum;not null"`
	ErrorMessage  *string                    `gorm:"column:error_message"`
	AttemptCount  int                        `gorm:"column:attempt_count;not null;default:0"`
	FailedAt      time.Time                  `gorm:"column:failed_at;autoCreateTime"`
	CreatedAt     time.Time                  `gorm:"column:created_at;autoCreateTime"`
}

func (OutboxDLQ) TableName() string { return "outbox_dlq" }

func (d *OutboxDLQ) BeforeCreate(*gorm.DB) error {
	ensureID(&d.ID)
	return nil
}

// DeadLetter copies event into a DLQ entry. The attempt count includes the
// failure that caused the dead-lettering.
func DeadLetter(event OutboxEvent, reason enums.OutboxDLQErrorReason, cause error, at time.Time) OutboxDLQ {
	entry := OutboxDLQ{
		EventID:       event.ID,
		EventType:     event.EventType,
		AggregateType: event.AggregateType,
		AggregateID:   event.AggregateID,
		Payload:       event.Payload,
		ErrorReason:   reason,
		AttemptCount:  event.AttemptCount + 1,
		FailedAt:      at.UTC(),
	}
	if cause != nil {
		msg := cause.Error()
		entry.ErrorMessage = &msg
	}
	return entry
}

// Requeued rebuilds a pending outbox row under the original event id.
func (d OutboxDLQ) Requeued() OutboxEvent {
	return OutboxEvent{
		ID:            d.EventID,
		EventType:     d.EventType,
		AggregateType: d.AggregateType,
		AggregateID:   d.AggregateID,
		Payload:       d.Payload,
	}
}
