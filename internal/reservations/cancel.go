package reservations

import (
	"context"
	"errors"
	"time"

	"github.com/angelmondragon/bedbroker-backend/internal/notifications"
	"github.com/angelmondragon/bedbroker-backend/pkg/db/models"
	"github.com/angelmondragon/bedbroker-backend/pkg/enums"
	"github.com/angelmondragon/bedbroker-backend/pkg/metrics"
	"github.com/angelmondragon/bedbroker-backend/pkg/outbox"
	"github.com/angelmondragon/bedbroker-backend/pkg/outbox/payloads"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

var errNotCancellable = errors.New("reservation not cancellable")

// Cancel voids the requester's own pending hold. Every failure collapses to
// false so callers cannot probe for other users' reservations.
func (s *service) Cancel(ctx context.Context, requesterID, reservationID uuid.UUID) bool {
	if requesterID == uuid.Nil || reservationID == uuid.Nil {
		s.metrics.Observe(opCancel, metrics.OutcomeRejected)
		return false
	}
	ctx = s.logg.WithReservationID(ctx, reservationID.String())

	now := s.now().UTC()
	var (
		listingID uuid.UUID
		released  int64
	)
	err := s.inTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		reservation, err := repo.LockByID(ctx, reservationID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return errNotCancellable
			}
			return err
		}
		if reservation.RequesterID != requesterID || reservation.Status != enums.ReservationStatusPending {
			return errNotCancellable
		}
		listingID = reservation.ListingID

		released, err = s.release(ctx, tx, reservation, enums.ReservationStatusCancelled, now, outbox.UserActor(requesterID, outbox.RoleRenter))
		return err
	})
	if err != nil {
		if errors.Is(err, errNotCancellable) {
			s.metrics.Observe(opCancel, metrics.OutcomeRejected)
			s.logg.Warn(s.logg.WithUserID(ctx, requesterID.String()), "cancellation rejected")
		} else {
			s.metrics.Observe(opCancel, metrics.OutcomeError)
			s.logg.Error(ctx, "cancellation failed", err)
		}
		return false
	}
	s.metrics.Observe(opCancel, metrics.OutcomeSuccess)
	s.logg.Info(s.logg.WithField(ctx, "beds_released", released), "reservation cancelled")

	s.dispatch(ctx, "notify owner of cancellation", func(ctx context.Context) error {
		listing, err := s.inventory.FindListing(ctx, listingID)
		if err != nil {
			return err
		}
		return s.notifier.NotifyOwner(ctx, notifications.Message{
			RecipientID:   listing.OwnerID,
			Type:          enums.NotificationTypeReservationCancelled,
			Title:         "Hold cancelled",
			Body:          "The renter cancelled their hold; the beds are available again.",
			ReservationID: &reservationID,
		})
	})
	return true
}

// release moves a locked pending reservation to a terminal non-occupying
// state, hands its beds back and records the event. Cancellation and expiry
// share it.
func (s *service) release(ctx context.Context, tx *gorm.DB, reservation *models.Reservation, to enums.ReservationStatus, now time.Time, actor *outbox.Actor) (int64, error) {
	updates := map[string]any{
		"status":     to,
		"updated_at": now,
	}
	eventType := enums.EventReservationCancelled
	switch to {
	case enums.ReservationStatusCancelled:
		updates["cancelled_at"] = now
	case enums.ReservationStatusExpired:
		updates["expired_at"] = now
		if !reservation.PaymentStatus.Settled() {
			updates["payment_status"] = enums.PaymentStatusExpired
		}
		eventType = enums.EventReservationExpired
	}

	repo := s.repo.WithTx(tx)
	updated, err := repo.TransitionStatus(ctx, reservation.ID, enums.ReservationStatusPending, updates)
	if err != nil {
		return 0, err
	}
	if !updated {
		return 0, errNotCancellable
	}

	released, err := releaseHold(ctx, tx, reservation.ID, now)
	if err != nil {
		return 0, err
	}

	bedIDs, err := repo.FindBedIDs(ctx, reservation.ID)
	if err != nil {
		return 0, err
	}
	event := outbox.DomainEvent{
		EventType:     eventType,
		AggregateType: enums.AggregateReservation,
		AggregateID:   reservation.ID,
		Actor:         actor,
		OccurredAt:    now,
		Data: payloads.ReservationReleasedEvent{
			ReservationID: reservation.ID,
			ListingID:     reservation.ListingID,
			RequesterID:   reservation.RequesterID,
			BedIDs:        bedIDs,
			Status:        to,
			ReleasedAt:    now,
		},
	}
	if err := s.outbox.Emit(ctx, tx, event); err != nil {
		return 0, err
	}
	return released, nil
}
