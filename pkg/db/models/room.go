package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Room groups beds inside a listing. PricePerBed is the monthly rate.
type Room struct {
	ID          uuid.UUID       `gorm:"column:id;type:uuid;primaryKey"`
	ListingID   uuid.UUID       `gorm:"column:listing_id;type:uuid;not null;index"`
	Name        string          `gorm:"column:name;type:text;not null"`
	PricePerBed decimal.Decimal `gorm:"column:price_per_bed;type:numeric(12,2);not null"`
	Beds        []Bed           `gorm:"foreignKey:RoomID;constraint:OnDelete:CASCADE"`
	CreatedAt   time.Time       `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time       `gorm:"column:updated_at;autoUpdateTime"`
}

func (r *Room) BeforeCreate(*gorm.DB) error {
	ensureID(&r.ID)
	return nil
}

// Available reports whether any bed of the room can still be claimed. Beds
// must be preloaded.
func (r Room) Available() bool {
	for _, bed := range r.Beds {
		if bed.Available {
			return true
		}
	}
	return false
}
