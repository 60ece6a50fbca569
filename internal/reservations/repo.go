package reservations

import (
	"context"
	"time"

	"github.com/angelmondragon/bedbroker-backend/pkg/db/models"
	"github.com/angelmondragon/bedbroker-backend/pkg/enums"
	"github.com/angelmondragon/bedbroker-backend/pkg/pagination"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type repository struct {
	db *gorm.DB
}

// NewRepository builds a reservations repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, reservation *models.Reservation) error {
	return r.db.WithContext(ctx).Create(reservation).Error
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Reservation, error) {
	var reservation models.Reservation
	err := r.db.WithContext(ctx).
		Preload("Beds", func(db *gorm.DB) *gorm.DB { return db.Order("bed_id ASC") }).
		Where("id = ?", id).
		First(&reservation).Error
	if err != nil {
		return nil, err
	}
	return &reservation, nil
}

// LockByID reads the reservation row FOR UPDATE without its bed links.
func (r *repository) LockByID(ctx context.Context, id uuid.UUID) (*models.Reservation, error) {
	var reservation models.Reservation
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", id).
		First(&reservation).Error
	if err != nil {
		return nil, err
	}
	return &reservation, nil
}

func (r *repository) FindBedIDs(ctx context.Context, reservationID uuid.UUID) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	err := r.db.WithContext(ctx).
		Model(&models.ReservationBed{}).
		Where("reservation_id = ?", reservationID).
		Order("bed_id ASC").
		Pluck("bed_id", &ids).Error
	return ids, err
}

// FindEffectiveConflicts returns the ids of confirmed or still-fresh pending
// reservations linked to any of the beds.
func (r *repository) FindEffectiveConflicts(ctx context.Context, bedIDs []uuid.UUID, excludeID uuid.UUID, cutoff time.Time) ([]uuid.UUID, error) {
	return r.linkedReservations(ctx, bedIDs, excludeID, effectiveCondition("reservations.", cutoff))
}

// FindConfirmedConflicts returns the ids of confirmed reservations linked to
// any of the beds.
func (r *repository) FindConfirmedConflicts(ctx context.Context, bedIDs []uuid.UUID, excludeID uuid.UUID) ([]uuid.UUID, error) {
	return r.linkedReservations(ctx, bedIDs, excludeID, gorm.Expr("reservations.status = ?", enums.ReservationStatusConfirmed))
}

func (r *repository) linkedReservations(ctx context.Context, bedIDs []uuid.UUID, excludeID uuid.UUID, condition clause.Expr) ([]uuid.UUID, error) {
	if len(bedIDs) == 0 {
		return nil, nil
	}
	query := r.db.WithContext(ctx).
		Table("reservation_beds").
		Joins("JOIN reservations ON reservations.id = reservation_beds.reservation_id").
		Where("reservation_beds.bed_id IN ?", bedIDs).
		Where(condition)
	if excludeID != uuid.Nil {
		query = query.Where("reservation_beds.reservation_id <> ?", excludeID)
	}

	var ids []uuid.UUID
	err := query.Distinct().Pluck("reservation_beds.reservation_id", &ids).Error
	return ids, err
}

// TransitionStatus applies updates only while the reservation is still in
// the from state. It reports whether a row changed.
func (r *repository) TransitionStatus(ctx context.Context, id uuid.UUID, from enums.ReservationStatus, updates map[string]any) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&models.Reservation{}).
		Where("id = ? AND status = ?", id, from).
		Updates(updates)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *repository) ListByRequester(ctx context.Context, requesterID uuid.UUID, page listPage) ([]models.Reservation, *pagination.Cursor, error) {
	return r.list(r.db.WithContext(ctx).Where("requester_id = ?", requesterID), page)
}

func (r *repository) ListByListing(ctx context.Context, listingID uuid.UUID, page listPage) ([]models.Reservation, *pagination.Cursor, error) {
	return r.list(r.db.WithContext(ctx).Where("listing_id = ?", listingID), page)
}

func (r *repository) list(query *gorm.DB, page listPage) ([]models.Reservation, *pagination.Cursor, error) {
	if page.Status != "" {
		query = query.Where("status = ?", page.Status)
	}
	limit := page.Limit
	var rows []models.Reservation
	err := pagination.Keyset(query, page.Cursor, limit).
		Preload("Beds", func(db *gorm.DB) *gorm.DB { return db.Order("bed_id ASC") }).
		Find(&rows).Error
	if err != nil {
		return nil, nil, err
	}
	items, next := pagination.Page(rows, limit, func(row models.Reservation) pagination.Cursor {
		return pagination.Cursor{CreatedAt: row.CreatedAt, ID: row.ID}
	})
	return items, next, nil
}

func (r *repository) FindStalePending(ctx context.Context, cutoff time.Time, limit int) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	err := r.db.WithContext(ctx).
		Model(&models.Reservation{}).
		Where("status = ? AND created_at < ?", enums.ReservationStatusPending, cutoff).
		Order("created_at ASC").
		Limit(limit).
		Pluck("id", &ids).Error
	return ids, err
}

// effectiveCondition matches reservations that still claim their beds: any
// confirmed reservation, or a pending one created at or after cutoff.
func effectiveCondition(prefix string, cutoff time.Time) clause.Expr {
	return gorm.Expr(
		"("+prefix+"status = ? OR ("+prefix+"status = ? AND "+prefix+"created_at >= ?))",
		enums.ReservationStatusConfirmed, enums.ReservationStatusPending, cutoff,
	)
}
