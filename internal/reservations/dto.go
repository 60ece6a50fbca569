package reservations

import (
	"time"

	"github.com/angelmondragon/bedbroker-backend/pkg/db/models"
	"github.com/angelmondragon/bedbroker-backend/pkg/enums"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// CreateHoldInput carries a renter's request for beds of one listing.
type CreateHoldInput struct {
	RequesterID  uuid.UUID
	ListingID    uuid.UUID
	BedIDs       []uuid.UUID
	DurationDays *int
}

// OwnerApprovalInput confirms a hold on behalf of the listing owner.
type OwnerApprovalInput struct {
	ActorID       uuid.UUID
	ReservationID uuid.UUID
}

// PaymentInput reports the outcome of the renter's deposit payment.
type PaymentInput struct {
	ActorID          uuid.UUID
	ReservationID    uuid.UUID
	PaymentSucceeded bool
}

// ReservationDTO is the single response shape for every reservation state.
type ReservationDTO struct {
	ID                 uuid.UUID                 `json:"id"`
	ListingID          uuid.UUID                 `json:"listing_id"`
	RequesterID        uuid.UUID                 `json:"requester_id"`
	Status             enums.ReservationStatus   `json:"status"`
	BedIDs             []uuid.UUID               `json:"bed_ids"`
	DurationDays       *int                      `json:"duration_days,omitempty"`
	TotalPrice         decimal.Decimal           `json:"total_price"`
	DepositAmount      decimal.Decimal           `json:"deposit_amount"`
	RemainingAmount    decimal.Decimal           `json:"remaining_amount"`
	PaymentStatus      enums.PaymentStatus       `json:"payment_status"`
	ConfirmationSource *enums.ConfirmationSource `json:"confirmation_source,omitempty"`
	Confirmed          bool                      `json:"confirmed"`
	ConfirmedAt        *time.Time                `json:"confirmed_at,omitempty"`
	Cancelled          bool                      `json:"cancelled"`
	CancelledAt        *time.Time                `json:"cancelled_at,omitempty"`
	ExpiredAt          *time.Time                `json:"expired_at,omitempty"`
	HoldExpiresAt      *time.Time                `json:"hold_expires_at,omitempty"`
	// HoldLapsed marks a pending hold past its TTL that the sweeper has not
	// expired yet. It can no longer be confirmed.
	HoldLapsed         bool                      `json:"hold_lapsed"`
	CreatedAt          time.Time                 `json:"created_at"`
}

// ListResult is one page of reservations.
type ListResult struct {
	Items  []ReservationDTO `json:"items"`
	Cursor string           `json:"cursor"`
}

func toDTO(r *models.Reservation, bedIDs []uuid.UUID, ttl time.Duration, cutoff time.Time) ReservationDTO {
	if bedIDs == nil {
		bedIDs = r.BedIDs()
	}
	dto := ReservationDTO{
		ID:                 r.ID,
		ListingID:          r.ListingID,
		RequesterID:        r.RequesterID,
		Status:             r.Status,
		BedIDs:             bedIDs,
		DurationDays:       r.DurationDays,
		TotalPrice:         r.TotalPrice,
		DepositAmount:      r.DepositAmount,
		RemainingAmount:    r.RemainingAmount,
		PaymentStatus:      r.PaymentStatus,
		ConfirmationSource: r.ConfirmationSource,
		Confirmed:          r.Status == enums.ReservationStatusConfirmed,
		ConfirmedAt:        r.ConfirmedAt,
		Cancelled:          r.Status == enums.ReservationStatusCancelled,
		CancelledAt:        r.CancelledAt,
		ExpiredAt:          r.ExpiredAt,
		CreatedAt:          r.CreatedAt,
	}
	if r.Status == enums.ReservationStatusPending {
		expires := r.CreatedAt.Add(ttl)
		dto.HoldExpiresAt = &expires
		dto.HoldLapsed = r.CreatedAt.Before(cutoff)
	}
	return dto
}
