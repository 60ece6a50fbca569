package reservations

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/angelmondragon/bedbroker-backend/internal/inventory"
	"github.com/angelmondragon/bedbroker-backend/internal/notifications"
	"github.com/angelmondragon/bedbroker-backend/pkg/db/models"
	"github.com/angelmondragon/bedbroker-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/bedbroker-backend/pkg/errors"
	"github.com/angelmondragon/bedbroker-backend/pkg/logger"
	"github.com/angelmondragon/bedbroker-backend/pkg/metrics"
	"github.com/angelmondragon/bedbroker-backend/pkg/outbox"
	"github.com/angelmondragon/bedbroker-backend/pkg/outbox/payloads"
	"github.com/angelmondragon/bedbroker-backend/pkg/pagination"
	"github.com/angelmondragon/bedbroker-backend/pkg/searchindex"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	// DefaultHoldTTL is how long a pending hold claims its beds.
	DefaultHoldTTL = 30 * time.Minute

	defaultIndexTimeout = 10 * time.Second
	maxDurationDays     = 365
)

// Operation names recorded in metrics.
const (
	opCreateHold     = "create_hold"
	opConfirmOwner   = "confirm_owner"
	opConfirmPayment = "confirm_payment"
	opCancel         = "cancel"
	opExpire         = "expire"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type occupancyEvaluator interface {
	Evaluate(ctx context.Context, tx *gorm.DB, listingID, reservationID uuid.UUID) (bool, error)
}

// Service is the bed reservation engine.
type Service interface {
	CreateHold(ctx context.Context, input CreateHoldInput) (*ReservationDTO, error)
	ConfirmByOwner(ctx context.Context, input OwnerApprovalInput) (*ReservationDTO, error)
	ConfirmByPayment(ctx context.Context, input PaymentInput) (*ReservationDTO, error)
	Cancel(ctx context.Context, requesterID, reservationID uuid.UUID) bool
	ExpireHold(ctx context.Context, reservationID uuid.UUID) (bool, error)
	FindStaleHolds(ctx context.Context, limit int) ([]uuid.UUID, error)
	Get(ctx context.Context, actorID, reservationID uuid.UUID) (*ReservationDTO, error)
	ListForRequester(ctx context.Context, requesterID uuid.UUID, params ListParams) (*ListResult, error)
	ListForListing(ctx context.Context, ownerID, listingID uuid.UUID, params ListParams) (*ListResult, error)
}

// ListParams pages a reservation list. A blank Status lists every status.
type ListParams struct {
	pagination.Params
	Status enums.ReservationStatus
}

// ServiceParams wires the reservation engine.
type ServiceParams struct {
	Repo         Repository
	Inventory    inventory.Repository
	Tx           txRunner
	Outbox       outbox.Emitter
	Occupancy    occupancyEvaluator
	Notifier     notifications.Notifier
	Search       searchindex.Remover
	Logger       *logger.Logger
	Metrics      *metrics.ReservationMetrics
	HoldTTL      time.Duration
	IndexTimeout time.Duration
	Now          func() time.Time
}

type service struct {
	repo         Repository
	inventory    inventory.Repository
	tx           txRunner
	outbox       outbox.Emitter
	occupancy    occupancyEvaluator
	notifier     notifications.Notifier
	search       searchindex.Remover
	logg         *logger.Logger
	metrics      *metrics.ReservationMetrics
	ttl          time.Duration
	indexTimeout time.Duration
	now          func() time.Time

	// background tracks post-commit side effects.
	background sync.WaitGroup
}

// NewService validates dependencies and builds the reservation engine.
func NewService(params ServiceParams) (Service, error) {
	return newService(params)
}

func newService(params ServiceParams) (*service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("reservations repository required")
	}
	if params.Inventory == nil {
		return nil, fmt.Errorf("inventory repository required")
	}
	if params.Tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if params.Outbox == nil {
		return nil, fmt.Errorf("outbox emitter required")
	}
	if params.Occupancy == nil {
		return nil, fmt.Errorf("occupancy trigger required")
	}
	if params.Notifier == nil {
		return nil, fmt.Errorf("notifier required")
	}
	if params.Search == nil {
		return nil, fmt.Errorf("search remover required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	ttl := params.HoldTTL
	if ttl <= 0 {
		ttl = DefaultHoldTTL
	}
	indexTimeout := params.IndexTimeout
	if indexTimeout <= 0 {
		indexTimeout = defaultIndexTimeout
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	return &service{
		repo:         params.Repo,
		inventory:    params.Inventory,
		tx:           params.Tx,
		outbox:       params.Outbox,
		occupancy:    params.Occupancy,
		notifier:     params.Notifier,
		search:       params.Search,
		logg:         params.Logger,
		metrics:      params.Metrics,
		ttl:          ttl,
		indexTimeout: indexTimeout,
		now:          now,
	}, nil
}

func (s *service) clock() (now, cutoff time.Time) {
	now = s.now().UTC()
	return now, now.Add(-s.ttl)
}

func (s *service) cutoff() time.Time {
	_, cutoff := s.clock()
	return cutoff
}

func (s *service) CreateHold(ctx context.Context, input CreateHoldInput) (*ReservationDTO, error) {
	if err := validateHoldInput(input); err != nil {
		s.metrics.Observe(opCreateHold, metrics.OutcomeRejected)
		return nil, err
	}

	now, cutoff := s.clock()
	var (
		dto     ReservationDTO
		ownerID uuid.UUID
	)
	err := s.inTx(ctx, func(tx *gorm.DB) error {
		inv := s.inventory.WithTx(tx)
		repo := s.repo.WithTx(tx)

		listing, err := inv.FindListing(ctx, input.ListingID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeInvalidInventory, "listing not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load listing")
		}
		if !listing.Active {
			return pkgerrors.New(pkgerrors.CodeInvalidInventory, "listing is not accepting reservations")
		}
		ownerID = listing.OwnerID

		beds, err := inv.LockBeds(ctx, listing.ID, input.BedIDs)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lock beds")
		}
		if len(beds) != len(input.BedIDs) {
			return pkgerrors.New(pkgerrors.CodeInvalidInventory, "requested beds are not part of this listing")
		}
		for _, bed := range beds {
			if bed.Occupied() {
				return pkgerrors.New(pkgerrors.CodeAlreadyOccupied, "bed already occupied").
					WithDetails(map[string]any{"bed_id": bed.ID})
			}
		}

		conflicts, err := repo.FindEffectiveConflicts(ctx, input.BedIDs, uuid.Nil, cutoff)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check hold conflicts")
		}
		if len(conflicts) > 0 {
			return pkgerrors.New(pkgerrors.CodeHoldConflict, "beds are held by another reservation")
		}

		bedIDs := make([]uuid.UUID, 0, len(beds))
		for _, bed := range beds {
			bedIDs = append(bedIDs, bed.ID)
		}

		reservation := &models.Reservation{
			ID:            uuid.New(),
			ListingID:     listing.ID,
			RequesterID:   input.RequesterID,
			Status:        enums.ReservationStatusPending,
			PaymentStatus: enums.PaymentStatusPending,
			DurationDays:  input.DurationDays,
			CreatedAt:     now,
			UpdatedAt:     now,
		}
		if input.DurationDays != nil {
			reservation.TotalPrice = durationPrice(beds, *input.DurationDays)
		}
		for _, id := range bedIDs {
			reservation.Beds = append(reservation.Beds, models.ReservationBed{
				ReservationID: reservation.ID,
				BedID:         id,
				CreatedAt:     now,
			})
		}
		if err := repo.Create(ctx, reservation); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create reservation")
		}

		claimed, err := tryClaim(ctx, tx, bedIDs, reservation.ID, nil, TransitionHold, cutoff, now)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "claim beds")
		}
		if !claimed {
			return pkgerrors.New(pkgerrors.CodeHoldConflict, "beds were claimed concurrently")
		}

		event := outbox.DomainEvent{
			EventType:     enums.EventReservationCreated,
			AggregateType: enums.AggregateReservation,
			AggregateID:   reservation.ID,
			Actor:         outbox.UserActor(input.RequesterID, outbox.RoleRenter),
			OccurredAt:    now,
			Data: payloads.ReservationCreatedEvent{
				ReservationID: reservation.ID,
				ListingID:     listing.ID,
				RequesterID:   input.RequesterID,
				BedIDs:        bedIDs,
				DurationDays:  input.DurationDays,
				TotalPrice:    reservation.TotalPrice,
				CreatedAt:     now,
			},
		}
		if err := s.outbox.Emit(ctx, tx, event); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "emit reservation created")
		}

		dto = toDTO(reservation, bedIDs, s.ttl, cutoff)
		return nil
	})
	s.metrics.Observe(opCreateHold, outcomeFor(err))
	if err != nil {
		return nil, err
	}

	ctx = s.logg.WithReservationID(ctx, dto.ID.String())
	s.logg.Info(ctx, "hold created")

	reservationID := dto.ID
	s.dispatch(ctx, "notify owner of hold", func(ctx context.Context) error {
		return s.notifier.NotifyOwner(ctx, notifications.Message{
			RecipientID:   ownerID,
			Type:          enums.NotificationTypeHoldRequested,
			Title:         "New hold request",
			Body:          fmt.Sprintf("A renter placed a hold on %d bed(s).", len(dto.BedIDs)),
			ReservationID: &reservationID,
		})
	})
	return &dto, nil
}

func validateHoldInput(input CreateHoldInput) error {
	if input.RequesterID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeUnauthorized, "requester identity missing")
	}
	if input.ListingID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "listing id required")
	}
	if len(input.BedIDs) == 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "at least one bed is required")
	}
	seen := make(map[uuid.UUID]struct{}, len(input.BedIDs))
	for _, id := range input.BedIDs {
		if id == uuid.Nil {
			return pkgerrors.New(pkgerrors.CodeValidation, "bed id required")
		}
		if _, dup := seen[id]; dup {
			return pkgerrors.New(pkgerrors.CodeValidation, "duplicate bed id").
				WithDetails(map[string]any{"bed_id": id})
		}
		seen[id] = struct{}{}
	}
	if input.DurationDays != nil && (*input.DurationDays < 1 || *input.DurationDays > maxDurationDays) {
		return pkgerrors.New(pkgerrors.CodeValidation, "duration_days must be between 1 and 365")
	}
	return nil
}

func (s *service) Get(ctx context.Context, actorID, reservationID uuid.UUID) (*ReservationDTO, error) {
	if actorID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	reservation, err := s.repo.FindByID(ctx, reservationID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "reservation not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load reservation")
	}
	if reservation.RequesterID != actorID {
		listing, err := s.inventory.FindListing(ctx, reservation.ListingID)
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load listing")
		}
		if listing == nil || listing.OwnerID != actorID {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "reservation not found")
		}
	}
	dto := toDTO(reservation, nil, s.ttl, s.cutoff())
	return &dto, nil
}

func (s *service) ListForRequester(ctx context.Context, requesterID uuid.UUID, params ListParams) (*ListResult, error) {
	if requesterID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	page, err := toListPage(params)
	if err != nil {
		return nil, err
	}
	rows, next, err := s.repo.ListByRequester(ctx, requesterID, page)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list reservations")
	}
	return s.page(rows, next), nil
}

func (s *service) ListForListing(ctx context.Context, ownerID, listingID uuid.UUID, params ListParams) (*ListResult, error) {
	if ownerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	listing, err := s.inventory.FindListing(ctx, listingID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "listing not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load listing")
	}
	if listing.OwnerID != ownerID {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "listing does not belong to user")
	}
	page, err := toListPage(params)
	if err != nil {
		return nil, err
	}
	rows, next, err := s.repo.ListByListing(ctx, listingID, page)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list reservations")
	}
	return s.page(rows, next), nil
}

func toListPage(params ListParams) (listPage, error) {
	page := listPage{Status: params.Status, Limit: params.Limit}
	if params.Status != "" && !params.Status.IsValid() {
		return page, pkgerrors.New(pkgerrors.CodeValidation, "unknown reservation status").
			WithDetails(map[string]string{"status": string(params.Status)})
	}
	if params.Cursor != "" {
		cursor, err := pagination.ParseCursor(params.Cursor)
		if err != nil {
			return page, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
		}
		page.Cursor = cursor
	}
	return page, nil
}

func (s *service) page(rows []models.Reservation, next *pagination.Cursor) *ListResult {
	result := &ListResult{Items: make([]ReservationDTO, 0, len(rows))}
	cutoff := s.cutoff()
	for i := range rows {
		result.Items = append(result.Items, toDTO(&rows[i], nil, s.ttl, cutoff))
	}
	if next != nil {
		result.Cursor = pagination.EncodeCursor(*next)
	}
	return result
}

// dispatch runs a post-commit side effect on its own goroutine. Failures are
// logged; the committed state change stands.
func (s *service) dispatch(ctx context.Context, name string, fn func(ctx context.Context) error) {
	detached := context.WithoutCancel(ctx)
	s.background.Add(1)
	go func() {
		defer s.background.Done()
		ctx, cancel := context.WithTimeout(detached, s.indexTimeout)
		defer cancel()
		if err := fn(ctx); err != nil {
			s.logg.Error(s.logg.WithField(ctx, "side_effect", name), "post-commit side effect failed", err)
		}
	}()
}

// wait blocks until dispatched side effects finish.
func (s *service) wait() {
	s.background.Wait()
}

// Drain blocks until post-commit side effects already dispatched by svc have
// finished. Call it after the HTTP server and sweeper have stopped.
func Drain(svc Service) {
	if s, ok := svc.(*service); ok {
		s.wait()
	}
}

// inTx runs fn in a transaction and maps lost row-lock races to hold
// conflicts.
func (s *service) inTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return pkgerrors.FromStore(s.tx.WithTx(ctx, fn))
}

func outcomeFor(err error) string {
	if err == nil {
		return metrics.OutcomeSuccess
	}
	switch pkgerrors.As(err).Code() {
	case pkgerrors.CodeHoldConflict, pkgerrors.CodeAlreadyOccupied, pkgerrors.CodeNoLongerAvailable:
		return metrics.OutcomeConflict
	case pkgerrors.CodeDependency, pkgerrors.CodeInternal:
		return metrics.OutcomeError
	default:
		return metrics.OutcomeRejected
	}
}
