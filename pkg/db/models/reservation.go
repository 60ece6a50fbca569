package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/bedbroker-backend/pkg/enums"
)

// Reservation is a renter's claim on one or more beds of a listing.
type Reservation struct {
	ID                 uuid.UUID                 `gorm:"column:id;type:uuid;primaryKey"`
	ListingID          uuid.UUID                 `gorm:"column:listing_id;type:uuid;not null;index"`
	RequesterID        uuid.UUID                 `gorm:"column:requester_id;type:uuid;not null;index"`
	Status             enums.ReservationStatus   `gorm:"column:status;type:reservation_status;not null;default:'pending'"`
	PaymentStatus      enums.PaymentStatus       `gorm:"column:payment_status;type:reservation_payment_status;not null;default:'pending'"`
	ConfirmationSource *enums.ConfirmationSource `gorm:"column:confirmation_source;type:text"`
	DurationDays       *int                      `gorm:"column:duration_days"`
	TotalPrice         decimal.Decimal           `gorm:"column:total_price;type:numeric(12,2);not null;default:0"`
	DepositAmount      decimal.Decimal           `gorm:"column:deposit_amount;type:numeric(12,2);not null;default:0"`
	RemainingAmount    decimal.Decimal           `gorm:"column:remaining_amount;type:numeric(12,2);not null;default:0"`
	Beds               []ReservationBed          `gorm:"foreignKey:ReservationID;constraint:OnDelete:CASCADE"`
	CreatedAt          time.Time                 `gorm:"column:created_at;not null;index"`
	ConfirmedAt        *time.Time                `gorm:"column:confirmed_at"`
	CancelledAt        *time.Time                `gorm:"column:cancelled_at"`
	ExpiredAt          *time.Time                `gorm:"column:expired_at"`
	UpdatedAt          time.Time                 `gorm:"column:updated_at;autoUpdateTime"`
}

func (r *Reservation) BeforeCreate(*gorm.DB) error {
	ensureID(&r.ID)
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now().UTC()
	}
	return nil
}

// BedIDs returns the ids of the associated beds. Beds must be preloaded.
func (r Reservation) BedIDs() []uuid.UUID {
	ids := make([]uuid.UUID, 0, len(r.Beds))
	for _, link := range r.Beds {
		ids = append(ids, link.BedID)
	}
	return ids
}

// ReservationBed links a reservation to one bed.
type ReservationBed struct {
	ReservationID uuid.UUID `gorm:"column:reservation_id;type:uuid;primaryKey"`
	BedID         uuid.UUID `gorm:"column:bed_id;type:uuid;primaryKey;index"`
	CreatedAt     time.Time `gorm:"column:created_at;autoCreateTime"`
}
