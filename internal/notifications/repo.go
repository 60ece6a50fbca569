package notifications

import (
	"context"
	"errors"
	"time"

	"github.com/angelmondragon/bedbroker-backend/pkg/db/models"
	"github.com/angelmondragon/bedbroker-backend/pkg/pagination"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Repository persists in-app notifications. Every read and write except the
// retention sweep is scoped to a single recipient.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, notification *models.Notification) error
	List(ctx context.Context, filter listFilter) ([]models.Notification, *pagination.Cursor, error)
	CountUnread(ctx context.Context, recipientID uuid.UUID) (int64, error)
	MarkRead(ctx context.Context, recipientID, notificationID uuid.UUID, at time.Time) (markOutcome, error)
	MarkAllRead(ctx context.Context, recipientID uuid.UUID, at time.Time) (int64, error)
	DeleteReadBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

type listFilter struct {
	RecipientID   uuid.UUID
	ReservationID *uuid.UUID
	UnreadOnly    bool
	Cursor        *pagination.Cursor
	Limit         int
}

type markOutcome int

const (
	markMissing markOutcome = iota
	markAlreadyRead
	markApplied
)

type gormRepository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) Repository {
	return &gormRepository{db: db}
}

func (r *gormRepository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &gormRepository{db: tx}
}

func (r *gormRepository) inbox(ctx context.Context, recipientID uuid.UUID) *gorm.DB {
	return r.db.WithContext(ctx).Model(&models.Notification{}).Where("recipient_id = ?", recipientID)
}

func (r *gormRepository) Create(ctx context.Context, notification *models.Notification) error {
	return r.db.WithContext(ctx).Create(notification).Error
}

func (r *gormRepository) List(ctx context.Context, filter listFilter) ([]models.Notification, *pagination.Cursor, error) {
	query := r.inbox(ctx, filter.RecipientID)
	if filter.ReservationID != nil {
		query = query.Where("reservation_id = ?", *filter.ReservationID)
	}
	if filter.UnreadOnly {
		query = query.Where("read_at IS NULL")
	}

	var rows []models.Notification
	if err := pagination.Keyset(query, filter.Cursor, filter.Limit).Find(&rows).Error; err != nil {
		return nil, nil, err
	}
	page, next := pagination.Page(rows, filter.Limit, func(n models.Notification) pagination.Cursor {
		return pagination.Cursor{CreatedAt: n.CreatedAt, ID: n.ID}
	})
	return page, next, nil
}

func (r *gormRepository) CountUnread(ctx context.Context, recipientID uuid.UUID) (int64, error) {
	var unread int64
	err := r.inbox(ctx, recipientID).Where("read_at IS NULL").Count(&unread).Error
	return unread, err
}

func (r *gormRepository) MarkRead(ctx context.Context, recipientID, notificationID uuid.UUID, at time.Time) (markOutcome, error) {
	var row models.Notification
	err := r.inbox(ctx, recipientID).Select("id", "read_at").Where("id = ?", notificationID).Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return markMissing, nil
	}
	if err != nil {
		return markMissing, err
	}
	if row.ReadAt != nil {
		return markAlreadyRead, nil
	}

	res := r.inbox(ctx, recipientID).
		Where("id = ? AND read_at IS NULL", notificationID).
		UpdateColumn("read_at", at)
	if res.Error != nil {
		return markMissing, res.Error
	}
	// a concurrent reader may have won between the lookup and the update
	if res.RowsAffected == 0 {
		return markAlreadyRead, nil
	}
	return markApplied, nil
}

func (r *gormRepository) MarkAllRead(ctx context.Context, recipientID uuid.UUID, at time.Time) (int64, error) {
	res := r.inbox(ctx, recipientID).Where("read_at IS NULL").UpdateColumn("read_at", at)
	return res.RowsAffected, res.Error
}

// DeleteReadBefore backs the retention job; unread rows are never purged.
func (r *gormRepository) DeleteReadBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res := r.db.WithContext(ctx).
		Where("read_at IS NOT NULL AND created_at < ?", cutoff).
		Delete(&models.Notification{})
	return res.RowsAffected, res.Error
}
