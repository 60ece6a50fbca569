package reservations

import (
	"context"
	"errors"

	"github.com/angelmondragon/bedbroker-backend/internal/notifications"
	"github.com/angelmondragon/bedbroker-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/bedbroker-backend/pkg/errors"
	"github.com/angelmondragon/bedbroker-backend/pkg/metrics"
	"github.com/angelmondragon/bedbroker-backend/pkg/outbox"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

const defaultSweepLimit = 500

// FindStaleHolds lists pending reservations older than the hold TTL, oldest first.
func (s *service) FindStaleHolds(ctx context.Context, limit int) ([]uuid.UUID, error) {
	if limit <= 0 {
		limit = defaultSweepLimit
	}
	_, cutoff := s.clock()
	ids, err := s.repo.FindStalePending(ctx, cutoff, limit)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "find stale holds")
	}
	return ids, nil
}

// ExpireHold releases one stale hold in its own transaction. It reports
// false without error when the reservation is gone, no longer pending, or
// not yet stale, so repeated sweeps are no-ops.
func (s *service) ExpireHold(ctx context.Context, reservationID uuid.UUID) (bool, error) {
	if reservationID == uuid.Nil {
		return false, pkgerrors.New(pkgerrors.CodeValidation, "reservation id required")
	}
	ctx = s.logg.WithReservationID(ctx, reservationID.String())

	now, cutoff := s.clock()
	var (
		expired     bool
		requesterID uuid.UUID
		released    int64
	)
	err := s.inTx(ctx, func(tx *gorm.DB) error {
		reservation, err := s.repo.WithTx(tx).LockByID(ctx, reservationID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load reservation")
		}
		if reservation.Status != enums.ReservationStatusPending || !reservation.CreatedAt.Before(cutoff) {
			return nil
		}
		requesterID = reservation.RequesterID

		released, err = s.release(ctx, tx, reservation, enums.ReservationStatusExpired, now, outbox.SystemActor())
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "expire hold")
		}
		expired = true
		return nil
	})
	if err != nil {
		s.metrics.Observe(opExpire, metrics.OutcomeError)
		return false, err
	}
	if !expired {
		return false, nil
	}

	s.metrics.Observe(opExpire, metrics.OutcomeSuccess)
	s.metrics.IncExpired()
	s.logg.Info(s.logg.WithField(ctx, "beds_released", released), "hold expired")

	s.dispatch(ctx, "notify requester of expiry", func(ctx context.Context) error {
		return s.notifier.NotifyUser(ctx, notifications.Message{
			RecipientID:   requesterID,
			Type:          enums.NotificationTypeHoldExpired,
			Title:         "Hold expired",
			Body:          "Your hold expired before it was confirmed and the beds were released.",
			ReservationID: &reservationID,
		})
	})
	return true, nil
}
