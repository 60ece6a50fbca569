package reservations

import (
	"context"
	"errors"

	"github.com/angelmondragon/bedbroker-backend/internal/notifications"
	"github.com/angelmondragon/bedbroker-backend/pkg/db/models"
	"github.com/angelmondragon/bedbroker-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/bedbroker-backend/pkg/errors"
	"github.com/angelmondragon/bedbroker-backend/pkg/metrics"
	"github.com/angelmondragon/bedbroker-backend/pkg/outbox"
	"github.com/angelmondragon/bedbroker-backend/pkg/outbox/payloads"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type confirmRequest struct {
	actorID          uuid.UUID
	reservationID    uuid.UUID
	source           enums.ConfirmationSource
	paymentSucceeded bool
}

func (s *service) ConfirmByOwner(ctx context.Context, input OwnerApprovalInput) (*ReservationDTO, error) {
	return s.confirm(ctx, opConfirmOwner, confirmRequest{
		actorID:       input.ActorID,
		reservationID: input.ReservationID,
		source:        enums.ConfirmationSourceOwnerApproval,
	})
}

func (s *service) ConfirmByPayment(ctx context.Context, input PaymentInput) (*ReservationDTO, error) {
	return s.confirm(ctx, opConfirmPayment, confirmRequest{
		actorID:          input.ActorID,
		reservationID:    input.ReservationID,
		source:           enums.ConfirmationSourceDepositPayment,
		paymentSucceeded: input.PaymentSucceeded,
	})
}

type confirmOutcome struct {
	dto         ReservationDTO
	ownerID     uuid.UUID
	deactivated bool
}

func (s *service) confirm(ctx context.Context, op string, req confirmRequest) (*ReservationDTO, error) {
	if req.actorID == uuid.Nil {
		s.metrics.Observe(op, metrics.OutcomeRejected)
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	if req.reservationID == uuid.Nil {
		s.metrics.Observe(op, metrics.OutcomeRejected)
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "reservation id required")
	}

	now, cutoff := s.clock()
	var out confirmOutcome
	err := s.inTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		inv := s.inventory.WithTx(tx)

		reservation, err := repo.LockByID(ctx, req.reservationID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "reservation not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load reservation")
		}
		listing, err := inv.FindListing(ctx, reservation.ListingID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load listing")
		}
		out.ownerID = listing.OwnerID

		switch req.source {
		case enums.ConfirmationSourceOwnerApproval:
			if listing.OwnerID != req.actorID {
				return pkgerrors.New(pkgerrors.CodeForbidden, "only the listing owner can approve this reservation")
			}
		case enums.ConfirmationSourceDepositPayment:
			if reservation.RequesterID != req.actorID {
				return pkgerrors.New(pkgerrors.CodeForbidden, "only the requester can pay for this reservation")
			}
			if !req.paymentSucceeded {
				return pkgerrors.New(pkgerrors.CodeValidation, "deposit payment did not succeed")
			}
		}
		if reservation.Status.IsTerminal() {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "reservation is "+reservation.Status.String())
		}
		if reservation.CreatedAt.Before(cutoff) {
			return pkgerrors.New(pkgerrors.CodeHoldExpired, "hold expired before confirmation")
		}

		bedIDs, err := repo.FindBedIDs(ctx, reservation.ID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load reservation beds")
		}
		beds, err := inv.LockBeds(ctx, reservation.ListingID, bedIDs)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lock beds")
		}
		if len(bedIDs) == 0 || len(beds) != len(bedIDs) {
			return pkgerrors.New(pkgerrors.CodeNoLongerAvailable, "reserved beds no longer exist")
		}
		for _, bed := range beds {
			if bed.Occupied() {
				return pkgerrors.New(pkgerrors.CodeNoLongerAvailable, "bed already occupied").
					WithDetails(map[string]any{"bed_id": bed.ID})
			}
		}
		conflicts, err := repo.FindConfirmedConflicts(ctx, bedIDs, reservation.ID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check claim conflicts")
		}
		if len(conflicts) > 0 {
			return pkgerrors.New(pkgerrors.CodeNoLongerAvailable, "beds are confirmed under another reservation")
		}

		// a bed held by another live hold fails the claim below

		occupant := reservation.RequesterID
		claimed, err := tryClaim(ctx, tx, bedIDs, reservation.ID, &occupant, TransitionOccupy, cutoff, now)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "occupy beds")
		}
		if !claimed {
			return pkgerrors.New(pkgerrors.CodeNoLongerAvailable, "beds were claimed concurrently")
		}

		total := reservation.TotalPrice
		if total.IsZero() {
			total = periodPrice(beds)
		}
		deposit, remaining := splitDeposit(total)
		source := req.source
		paymentStatus := reservation.PaymentStatus
		if source == enums.ConfirmationSourceDepositPayment {
			paymentStatus = enums.PaymentStatusSucceeded
		}

		updated, err := repo.TransitionStatus(ctx, reservation.ID, enums.ReservationStatusPending, map[string]any{
			"status":              enums.ReservationStatusConfirmed,
			"confirmed_at":        now,
			"confirmation_source": source,
			"payment_status":      paymentStatus,
			"total_price":         total,
			"deposit_amount":      deposit,
			"remaining_amount":    remaining,
			"updated_at":          now,
		})
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "confirm reservation")
		}
		if !updated {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "reservation already finalized")
		}

		reservation.Status = enums.ReservationStatusConfirmed
		reservation.ConfirmedAt = &now
		reservation.ConfirmationSource = &source
		reservation.PaymentStatus = paymentStatus
		reservation.TotalPrice = total
		reservation.DepositAmount = deposit
		reservation.RemainingAmount = remaining
		reservation.UpdatedAt = now

		out.deactivated, err = s.occupancy.Evaluate(ctx, tx, reservation.ListingID, reservation.ID)
		if err != nil {
			return err
		}

		if err := s.outbox.Emit(ctx, tx, confirmedEvent(reservation, bedIDs, req.actorID)); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "emit reservation confirmed")
		}

		out.dto = toDTO(reservation, bedIDs, s.ttl, cutoff)
		return nil
	})
	s.metrics.Observe(op, outcomeFor(err))
	if err != nil {
		return nil, err
	}

	ctx = s.logg.WithFields(ctx, map[string]any{
		"reservation_id": out.dto.ID.String(),
		"listing_id":     out.dto.ListingID.String(),
		"source":         req.source.String(),
	})
	s.logg.Info(ctx, "reservation confirmed")
	s.afterConfirm(ctx, out)
	return &out.dto, nil
}

func confirmedEvent(r *models.Reservation, bedIDs []uuid.UUID, actorID uuid.UUID) outbox.DomainEvent {
	role := outbox.RoleRenter
	if *r.ConfirmationSource == enums.ConfirmationSourceOwnerApproval {
		role = outbox.RoleOwner
	}
	return outbox.DomainEvent{
		EventType:     enums.EventReservationConfirmed,
		AggregateType: enums.AggregateReservation,
		AggregateID:   r.ID,
		Actor:         outbox.UserActor(actorID, role),
		OccurredAt:    *r.ConfirmedAt,
		Data: payloads.ReservationConfirmedEvent{
			ReservationID:   r.ID,
			ListingID:       r.ListingID,
			RequesterID:     r.RequesterID,
			BedIDs:          bedIDs,
			Source:          *r.ConfirmationSource,
			TotalPrice:      r.TotalPrice,
			DepositAmount:   r.DepositAmount,
			RemainingAmount: r.RemainingAmount,
			ConfirmedAt:     *r.ConfirmedAt,
		},
	}
}

func (s *service) afterConfirm(ctx context.Context, out confirmOutcome) {
	reservationID := out.dto.ID
	s.dispatch(ctx, "notify requester of confirmation", func(ctx context.Context) error {
		return s.notifier.NotifyUser(ctx, notifications.Message{
			RecipientID:   out.dto.RequesterID,
			Type:          enums.NotificationTypeReservationConfirmed,
			Title:         "Reservation confirmed",
			Body:          "Your beds are reserved. Remaining balance: " + out.dto.RemainingAmount.StringFixed(2),
			ReservationID: &reservationID,
		})
	})
	if !out.deactivated {
		return
	}
	listingID := out.dto.ListingID
	s.dispatch(ctx, "remove listing from search index", func(ctx context.Context) error {
		return s.search.RemoveListing(ctx, listingID)
	})
	s.dispatch(ctx, "notify owner of full listing", func(ctx context.Context) error {
		return s.notifier.NotifyOwner(ctx, notifications.Message{
			RecipientID:   out.ownerID,
			Type:          enums.NotificationTypeListingFull,
			Title:         "Listing fully booked",
			Body:          "Every bed is occupied; the listing was deactivated.",
			ReservationID: &reservationID,
		})
	})
}
