package inventory

import (
	"context"
	"errors"
	"fmt"

	"github.com/angelmondragon/bedbroker-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/bedbroker-backend/pkg/errors"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Service exposes read-only inventory views.
type Service interface {
	ListingAvailability(ctx context.Context, listingID uuid.UUID) (*ListingAvailability, error)
}

// ListingAvailability is the public inventory snapshot of a listing.
type ListingAvailability struct {
	ListingID     uuid.UUID          `json:"listing_id"`
	Title         string             `json:"title"`
	Active        bool               `json:"active"`
	TotalBeds     int                `json:"total_beds"`
	AvailableBeds int                `json:"available_beds"`
	Rooms         []RoomAvailability `json:"rooms"`
}

// RoomAvailability lists a room's beds. A room is available when any bed is.
type RoomAvailability struct {
	ID          uuid.UUID         `json:"id"`
	Name        string            `json:"name"`
	PricePerBed decimal.Decimal   `json:"price_per_bed"`
	Available   bool              `json:"available"`
	Beds        []BedAvailability `json:"beds"`
}

type BedAvailability struct {
	ID        uuid.UUID `json:"id"`
	Label     string    `json:"label"`
	Available bool      `json:"available"`
	Occupied  bool      `json:"occupied"`
}

type service struct {
	repo Repository
}

// NewService builds the inventory read service.
func NewService(repo Repository) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("inventory repository required")
	}
	return &service{repo: repo}, nil
}

func (s *service) ListingAvailability(ctx context.Context, listingID uuid.UUID) (*ListingAvailability, error) {
	if listingID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "listing id required")
	}

	listing, err := s.repo.FindListingInventory(ctx, listingID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "listing not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load listing inventory")
	}
	return buildAvailability(listing), nil
}

func buildAvailability(listing *models.Listing) *ListingAvailability {
	out := &ListingAvailability{
		ListingID: listing.ID,
		Title:     listing.Title,
		Active:    listing.Active,
		Rooms:     make([]RoomAvailability, 0, len(listing.Rooms)),
	}
	for _, room := range listing.Rooms {
		view := RoomAvailability{
			ID:          room.ID,
			Name:        room.Name,
			PricePerBed: room.PricePerBed,
			Available:   room.Available(),
			Beds:        make([]BedAvailability, 0, len(room.Beds)),
		}
		for _, bed := range room.Beds {
			view.Beds = append(view.Beds, BedAvailability{
				ID:        bed.ID,
				Label:     bed.Label,
				Available: bed.Available,
				Occupied:  bed.Occupied(),
			})
			out.TotalBeds++
			if bed.Available {
				out.AvailableBeds++
			}
		}
		out.Rooms = append(out.Rooms, view)
	}
	return out
}
