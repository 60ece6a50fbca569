package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/bedbroker-backend/pkg/enums"
)

// Notification stores in-app notification payloads addressed to a user.
type Notification struct {
	ID            uuid.UUID              `gorm:"column:id;type:uuid;primaryKey"`
	RecipientID   uuid.UUID              `gorm:"column:recipient_id;type:uuid;not null;index"`
	Type          enums.NotificationType `gorm:"column:type;type:notification_type;not null"`
	Title         string                 `gorm:"column:title;type:text;not null"`
	Message       string                 `gorm:"column:message;type:text;not null"`
	ReservationID *uuid.UUID             `gorm:"column:reservation_id;type:uuid"`
	ReadAt        *time.Time             `gorm:"column:read_at"`
	CreatedAt     time.Time              `gorm:"column:created_at;autoCreateTime"`
}

func (n *Notification) BeforeCreate(*gorm.DB) error {
	ensureID(&n.ID)
	return nil
}
