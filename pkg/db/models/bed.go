package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Bed is the unit of exclusive occupancy. OccupantID is set once a
// reservation is confirmed; HeldByReservationID marks the pending hold that
// provisionally claimed the bed. Either being set implies Available=false.
type Bed struct {
	ID                  uuid.UUID  `gorm:"column:id;type:uuid;primaryKey"`
	RoomID              uuid.UUID  `gorm:"column:room_id;type:uuid;not null;index"`
	Label               string     `gorm:"column:label;type:text;not null"`
	Available           bool       `gorm:"column:available;not null"`
	OccupantID          *uuid.UUID `gorm:"column:occupant_id;type:uuid"`
	HeldByReservationID *uuid.UUID `gorm:"column:held_by_reservation_id;type:uuid;index"`
	CreatedAt           time.Time  `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt           time.Time  `gorm:"column:updated_at;autoUpdateTime"`
}

func (b *Bed) BeforeCreate(*gorm.DB) error {
	ensureID(&b.ID)
	return nil
}

// Occupied reports whether a confirmed renter holds the bed.
func (b Bed) Occupied() bool {
	return b.OccupantID != nil
}
