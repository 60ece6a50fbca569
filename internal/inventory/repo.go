package inventory

import (
	"context"
	"time"

	"github.com/angelmondragon/bedbroker-backend/pkg/db/models"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Repository reads listing inventory and locks bed rows for claims.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	FindListing(ctx context.Context, listingID uuid.UUID) (*models.Listing, error)
	FindListingInventory(ctx context.Context, listingID uuid.UUID) (*models.Listing, error)
	LockBeds(ctx context.Context, listingID uuid.UUID, bedIDs []uuid.UUID) ([]LockedBed, error)
	CountFreeBeds(ctx context.Context, listingID uuid.UUID) (int64, error)
	DeactivateListing(ctx context.Context, listingID uuid.UUID, now time.Time) (bool, error)
}

// LockedBed is a bed row read under a row lock together with the room fields
// needed for pricing.
type LockedBed struct {
	models.Bed
	ListingID   uuid.UUID       `gorm:"column:listing_id"`
	PricePerBed decimal.Decimal `gorm:"column:price_per_bed"`
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds an inventory repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) FindListing(ctx context.Context, listingID uuid.UUID) (*models.Listing, error) {
	var listing models.Listing
	if err := r.db.WithContext(ctx).Where("id = ?", listingID).First(&listing).Error; err != nil {
		return nil, err
	}
	return &listing, nil
}

func (r *repository) FindListingInventory(ctx context.Context, listingID uuid.UUID) (*models.Listing, error) {
	var listing models.Listing
	err := r.db.WithContext(ctx).
		Preload("Rooms", func(db *gorm.DB) *gorm.DB { return db.Order("name ASC, id ASC") }).
		Preload("Rooms.Beds", func(db *gorm.DB) *gorm.DB { return db.Order("label ASC, id ASC") }).
		Where("id = ?", listingID).
		First(&listing).Error
	if err != nil {
		return nil, err
	}
	return &listing, nil
}

// LockBeds returns the requested beds that belong to the listing, locked FOR
// UPDATE in id order so concurrent claimants queue on the same sequence. Beds
// outside the listing are silently omitted; callers compare counts.
func (r *repository) LockBeds(ctx context.Context, listingID uuid.UUID, bedIDs []uuid.UUID) ([]LockedBed, error) {
	if len(bedIDs) == 0 {
		return nil, nil
	}
	var rows []LockedBed
	err := r.db.WithContext(ctx).
		Table("beds").
		Select("beds.*, rooms.listing_id, rooms.price_per_bed").
		Joins("JOIN rooms ON rooms.id = beds.room_id").
		Where("rooms.listing_id = ? AND beds.id IN ?", listingID, bedIDs).
		Order("beds.id ASC").
		Clauses(clause.Locking{Strength: "UPDATE", Table: clause.Table{Name: "beds"}}).
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *repository) CountFreeBeds(ctx context.Context, listingID uuid.UUID) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Table("beds").
		Joins("JOIN rooms ON rooms.id = beds.room_id").
		Where("rooms.listing_id = ? AND beds.occupant_id IS NULL", listingID).
		Count(&count).Error
	return count, err
}

// DeactivateListing flips an active listing off. It reports false when the
// listing was already inactive.
func (r *repository) DeactivateListing(ctx context.Context, listingID uuid.UUID, now time.Time) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&models.Listing{}).
		Where("id = ? AND active = ?", listingID, true).
		Updates(map[string]any{
			"active":         false,
			"deactivated_at": now,
			"updated_at":     now,
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}
