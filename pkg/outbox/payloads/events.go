package payloads

import (
	"time"

	"github.com/angelmondragon/bedbroker-backend/pkg/enums"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ReservationCreatedEvent is emitted when a renter places a hold.
type ReservationCreatedEvent struct {
	ReservationID uuid.UUID       `json:"reservation_id"`
	ListingID     uuid.UUID       `json:"listing_id"`
	RequesterID   uuid.UUID       `json:"requester_id"`
	BedIDs        []uuid.UUID     `json:"bed_ids"`
	DurationDays  *int            `json:"duration_days,omitempty"`
	TotalPrice    decimal.Decimal `json:"total_price"`
	CreatedAt     time.Time       `json:"created_at"`
}

// ReservationConfirmedEvent is emitted once the beds become occupied.
type ReservationConfirmedEvent struct {
	ReservationID   uuid.UUID                `json:"reservation_id"`
	ListingID       uuid.UUID                `json:"listing_id"`
	RequesterID     uuid.UUID                `json:"requester_id"`
	BedIDs          []uuid.UUID              `json:"bed_ids"`
	Source          enums.ConfirmationSource `json:"source"`
	TotalPrice      decimal.Decimal          `json:"total_price"`
	DepositAmount   decimal.Decimal          `json:"deposit_amount"`
	RemainingAmount decimal.Decimal          `json:"remaining_amount"`
	ConfirmedAt     time.Time                `json:"confirmed_at"`
}

// ReservationReleasedEvent covers both cancellation and expiry; the event
// type tells them apart.
type ReservationReleasedEvent struct {
	ReservationID uuid.UUID               `json:"reservation_id"`
	ListingID     uuid.UUID               `json:"listing_id"`
	RequesterID   uuid.UUID               `json:"requester_id"`
	BedIDs        []uuid.UUID             `json:"bed_ids"`
	Status        enums.ReservationStatus `json:"status"`
	ReleasedAt    time.Time               `json:"released_at"`
}

// ListingDeactivatedEvent is emitted when the last free bed of a listing is occupied.
type ListingDeactivatedEvent struct {
	ListingID     uuid.UUID `json:"listing_id"`
	OwnerID       uuid.UUID `json:"owner_id"`
	ReservationID uuid.UUID `json:"reservation_id"`
	DeactivatedAt time.Time `json:"deactivated_at"`
}
