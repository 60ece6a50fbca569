package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Listing is an apartment offered by an owner. Listing CRUD lives in another
// service; the reservation engine only reads it and flips Active once every
// bed is occupied.
type Listing struct {
	ID            uuid.UUID  `gorm:"column:id;type:uuid;primaryKey"`
	OwnerID       uuid.UUID  `gorm:"column:owner_id;type:uuid;not null;index"`
	Title         string     `gorm:"column:title;type:text;not null"`
	Active        bool       `gorm:"column:active;not null"`
	DeactivatedAt *time.Time `gorm:"column:deactivated_at"`
	Rooms         []Room     `gorm:"foreignKey:ListingID;constraint:OnDelete:CASCADE"`
	CreatedAt     time.Time  `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt     time.Time  `gorm:"column:updated_at;autoUpdateTime"`
}

func (l *Listing) BeforeCreate(*gorm.DB) error {
	ensureID(&l.ID)
	return nil
}
