package listings

import (
	"context"
	"fmt"
	"time"

	"github.com/angelmondragon/bedbroker-backend/internal/inventory"
	"github.com/angelmondragon/bedbroker-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/bedbroker-backend/pkg/errors"
	"github.com/angelmondragon/bedbroker-backend/pkg/metrics"
	"github.com/angelmondragon/bedbroker-backend/pkg/outbox"
	"github.com/angelmondragon/bedbroker-backend/pkg/outbox/payloads"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type onceEmitter interface {
	EmitIfNotExists(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// OccupancyTrigger deactivates a listing once none of its beds is free.
type OccupancyTrigger struct {
	repo    inventory.Repository
	outbox  onceEmitter
	metrics *metrics.ReservationMetrics
	now     func() time.Time
}

// TriggerOption customises an OccupancyTrigger.
type TriggerOption func(*OccupancyTrigger)

// WithClock overrides the clock used for deactivated_at.
func WithClock(now func() time.Time) TriggerOption {
	return func(t *OccupancyTrigger) {
		if now != nil {
			t.now = now
		}
	}
}

// WithMetrics records deactivations.
func WithMetrics(m *metrics.ReservationMetrics) TriggerOption {
	return func(t *OccupancyTrigger) {
		t.metrics = m
	}
}

// NewOccupancyTrigger wires the trigger dependencies.
func NewOccupancyTrigger(repo inventory.Repository, emitter onceEmitter, opts ...TriggerOption) (*OccupancyTrigger, error) {
	if repo == nil {
		return nil, fmt.Errorf("inventory repository required")
	}
	if emitter == nil {
		return nil, fmt.Errorf("outbox emitter required")
	}
	t := &OccupancyTrigger{
		repo:   repo,
		outbox: emitter,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t, nil
}

// Evaluate must run inside the transaction that occupied the beds. It
// reports whether this call deactivated the listing.
func (t *OccupancyTrigger) Evaluate(ctx context.Context, tx *gorm.DB, listingID, reservationID uuid.UUID) (bool, error) {
	if tx == nil {
		return false, fmt.Errorf("transaction required")
	}
	repo := t.repo.WithTx(tx)

	free, err := repo.CountFreeBeds(ctx, listingID)
	if err != nil {
		return false, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "count free beds")
	}
	if free > 0 {
		return false, nil
	}

	listing, err := repo.FindListing(ctx, listingID)
	if err != nil {
		return false, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load listing")
	}

	now := t.now().UTC()
	changed, err := repo.DeactivateListing(ctx, listingID, now)
	if err != nil {
		return false, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "deactivate listing")
	}
	if !changed {
		return false, nil
	}

	event := outbox.DomainEvent{
		EventType:     enums.EventListingDeactivated,
		AggregateType: enums.AggregateListing,
		AggregateID:   listingID,
		Actor:         outbox.SystemActor(),
		OccurredAt:    now,
		Data: payloads.ListingDeactivatedEvent{
			ListingID:     listingID,
			OwnerID:       listing.OwnerID,
			ReservationID: reservationID,
			DeactivatedAt: now,
		},
	}
	if err := t.outbox.EmitIfNotExists(ctx, tx, event); err != nil {
		return false, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "emit listing deactivated")
	}
	t.metrics.IncDeactivated()
	return true, nil
}
