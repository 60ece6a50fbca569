package reservations

import (
	"context"
	"time"

	"github.com/angelmondragon/bedbroker-backend/pkg/db/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Transition names the bed state a claim moves to.
type Transition int

const (
	// TransitionHold marks beds provisionally unavailable for a pending hold.
	TransitionHold Transition = iota + 1
	// TransitionOccupy records the requester as the permanent occupant.
	TransitionOccupy
)

func (t Transition) String() string {
	switch t {
	case TransitionHold:
		return "hold"
	case TransitionOccupy:
		return "occupy"
	default:
		return "unknown"
	}
}

// tryClaim is the only writer that takes beds away from the free pool. The
// update succeeds for a bed when nobody occupies it and it is either free,
// already held by this reservation, or held by a reservation that no longer
// claims it (stale, cancelled, expired, deleted). The claim wins only if every
// bed matched; callers roll back otherwise. Re-running a successful claim for
// the same reservation matches the same rows again.
func tryClaim(ctx context.Context, tx *gorm.DB, bedIDs []uuid.UUID, reservationID uuid.UUID, occupant *uuid.UUID, transition Transition, cutoff, now time.Time) (bool, error) {
	if len(bedIDs) == 0 {
		return false, nil
	}

	updates := map[string]any{
		"available":              false,
		"held_by_reservation_id": reservationID,
		"updated_at":             now,
	}
	if transition == TransitionOccupy {
		updates["occupant_id"] = *occupant
	}

	effective := tx.Model(&models.Reservation{}).
		Select("id").
		Where(effectiveCondition("", cutoff))

	result := tx.WithContext(ctx).
		Model(&models.Bed{}).
		Where("id IN ?", bedIDs).
		Where("occupant_id IS NULL").
		Where("(held_by_reservation_id IS NULL OR held_by_reservation_id = ? OR held_by_reservation_id NOT IN (?))", reservationID, effective).
		Updates(updates)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == int64(len(bedIDs)), nil
}

// releaseHold returns the beds provisionally held by a reservation to the
// free pool. Occupied beds and beds taken over by another claim are left
// untouched, so releasing twice is harmless.
func releaseHold(ctx context.Context, tx *gorm.DB, reservationID uuid.UUID, now time.Time) (int64, error) {
	result := tx.WithContext(ctx).
		Model(&models.Bed{}).
		Where("held_by_reservation_id = ? AND occupant_id IS NULL", reservationID).
		Updates(map[string]any{
			"available":              true,
			"held_by_reservation_id": nil,
			"updated_at":             now,
		})
	if result.Error != nil {
		return 0, result.Error
	}
	return result.RowsAffected, nil
}
