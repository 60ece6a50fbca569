package reservations

import (
	"context"
	"time"

	"github.com/angelmondragon/bedbroker-backend/pkg/db/models"
	"github.com/angelmondragon/bedbroker-backend/pkg/enums"
	"github.com/angelmondragon/bedbroker-backend/pkg/pagination"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Repository defines persistence operations for reservations and their bed links.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, reservation *models.Reservation) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Reservation, error)
	LockByID(ctx context.Context, id uuid.UUID) (*models.Reservation, error)
	FindBedIDs(ctx context.Context, reservationID uuid.UUID) ([]uuid.UUID, error)
	FindEffectiveConflicts(ctx context.Context, bedIDs []uuid.UUID, excludeID uuid.UUID, cutoff time.Time) ([]uuid.UUID, error)
	FindConfirmedConflicts(ctx context.Context, bedIDs []uuid.UUID, excludeID uuid.UUID) ([]uuid.UUID, error)
	TransitionStatus(ctx context.Context, id uuid.UUID, from enums.ReservationStatus, updates map[string]any) (bool, error)
	ListByRequester(ctx context.Context, requesterID uuid.UUID, page listPage) ([]models.Reservation, *pagination.Cursor, error)
	ListByListing(ctx context.Context, listingID uuid.UUID, page listPage) ([]models.Reservation, *pagination.Cursor, error)
	FindStalePending(ctx context.Context, cutoff time.Time, limit int) ([]uuid.UUID, error)
}

type listPage struct {
	Status enums.ReservationStatus
	Limit  int
	Cursor *pagination.Cursor
}
