package outbox

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	dbpkg "github.com/angelmondragon/bedbroker-backend/pkg/db"
	"github.com/angelmondragon/bedbroker-backend/pkg/db/models"
	"github.com/angelmondragon/bedbroker-backend/pkg/enums"
	"github.com/angelmondragon/bedbroker-backend/pkg/logger"
)

const envelopeVersion = 1

// Backs EmitIfNotExists under concurrency.
const onceConstraint = "ux_outbox_events_event_aggregate"

var errNoTx = errors.New("outbox: transaction required")

// DomainEvent is what services hand to Emit; Data is marshalled into the
// envelope's data field.
type DomainEvent struct {
	EventType     enums.OutboxEventType
	AggregateType enums.OutboxAggregateType
	AggregateID   uuid.UUID
	Actor         *Actor
	Data          any
	Version       int
	OccurredAt    time.Time
}

// Emitter is the write side consumed by domain services.
type Emitter interface {
	Emit(ctx context.Context, tx *gorm.DB, event DomainEvent) error
}

type Service struct {
	repo *Repository
	logg *logger.Logger
}

func NewService(repo *Repository, logg *logger.Logger) *Service {
	return &Service{repo: repo, logg: logg}
}

// Emit writes the event with tx, so it exists only if the state change that
// produced it commits.
func (s *Service) Emit(ctx context.Context, tx *gorm.DB, event DomainEvent) error {
	if tx == nil {
		return errNoTx
	}
	row, err := buildRow(event)
	if err != nil {
		return err
	}
	if err := s.repo.Insert(tx, row); err != nil {
		return err
	}
	s.logg.Debug(s.logg.WithFields(ctx, map[string]any{
		"event_id":     row.ID.String(),
		"event_type":   row.EventType,
		"aggregate_id": row.AggregateID.String(),
	}), "outbox event queued")
	return nil
}

// EmitIfNotExists emits at most one event of this type per aggregate, e.g.
// listing_deactivated when the last bed is confirmed.
func (s *Service) EmitIfNotExists(ctx context.Context, tx *gorm.DB, event DomainEvent) error {
	if tx == nil {
		return errNoTx
	}
	exists, err := s.repo.Exists(tx, event.EventType, event.AggregateType, event.AggregateID)
	if err != nil || exists {
		return err
	}
	err = s.Emit(ctx, tx, event)
	if dbpkg.IsUniqueViolation(err, onceConstraint) {
		return nil
	}
	return err
}

func buildRow(event DomainEvent) (models.OutboxEvent, error) {
	if !event.EventType.IsValid() {
		return models.OutboxEvent{}, fmt.Errorf("outbox: unknown event type %q", event.EventType)
	}
	data, err := json.Marshal(event.Data)
	if err != nil {
		return models.OutboxEvent{}, fmt.Errorf("outbox: marshal %s: %w", event.EventType, err)
	}
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now().UTC()
	}
	if event.Version == 0 {
		event.Version = envelopeVersion
	}
	id := uuid.New()
	payload, err := json.Marshal(PayloadEnvelope{
		Version:    event.Version,
		EventID:    id.String(),
		OccurredAt: event.OccurredAt,
		Actor:      event.Actor,
		Data:       data,
	})
	if err != nil {
		return models.OutboxEvent{}, fmt.Errorf("outbox: marshal envelope: %w", err)
	}
	return models.OutboxEvent{
		ID:            id,
		EventType:     event.EventType,
		AggregateType: event.AggregateType,
		AggregateID:   event.AggregateID,
		Payload:       payload,
	}, nil
}
