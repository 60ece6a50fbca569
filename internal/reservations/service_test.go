package reservations

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/bedbroker-backend/pkg/db/dbtest"
	"github.com/angelmondragon/bedbroker-backend/pkg/db/models"
	"github.com/angelmondragon/bedbroker-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/bedbroker-backend/pkg/errors"
	"github.com/angelmondragon/bedbroker-backend/pkg/pagination"
)

func TestCreateHoldClaimsBeds(t *testing.T) {
	h := newHarness(t)
	listing, beds := h.seed(dbtest.Room{Name: "A", PricePerBed: "600", Beds: 3})
	renter := uuid.New()

	dto := h.mustHold(renter, listing.ID, beds[0], beds[1])

	assert.Equal(t, enums.ReservationStatusPending, dto.Status)
	assert.Equal(t, enums.PaymentStatusPending, dto.PaymentStatus)
	assert.ElementsMatch(t, []uuid.UUID{beds[0], beds[1]}, dto.BedIDs)
	assert.True(t, dto.TotalPrice.IsZero())
	assert.False(t, dto.Confirmed)
	require.NotNil(t, dto.HoldExpiresAt)
	assert.True(t, dto.HoldExpiresAt.Equal(baseTime.Add(30*time.Minute)))

	for _, id := range beds[:2] {
		bed := h.bed(id)
		assert.False(t, bed.Available)
		assert.Nil(t, bed.OccupantID)
		require.NotNil(t, bed.HeldByReservationID)
		assert.Equal(t, dto.ID, *bed.HeldByReservationID)
	}
	assert.True(t, h.bed(beds[2]).Available)

	stored := h.reservation(dto.ID)
	assert.True(t, stored.CreatedAt.Equal(baseTime))
	assert.Equal(t, []enums.OutboxEventType{enums.EventReservationCreated}, h.eventTypes(dto.ID))

	h.svc.wait()
	assert.Equal(t, []enums.NotificationType{enums.NotificationTypeHoldRequested}, h.notifier.types())
	assert.Equal(t, h.owner, h.notifier.messages[0].RecipientID)
}

func TestCreateHoldPricesDuration(t *testing.T) {
	h := newHarness(t)
	listing, _ := h.seed(
		dbtest.Room{Name: "A", PricePerBed: "600", Beds: 1},
		dbtest.Room{Name: "B", PricePerBed: "300", Beds: 1},
	)
	days := 10
	dto, err := h.svc.CreateHold(context.Background(), CreateHoldInput{
		RequesterID:  uuid.New(),
		ListingID:    listing.ID,
		BedIDs:       dbtest.BedIDs(listing),
		DurationDays: &days,
	})
	require.NoError(t, err)
	assert.Equal(t, "300", dto.TotalPrice.String())
	require.NotNil(t, dto.DurationDays)
	assert.Equal(t, 10, *dto.DurationDays)
}

func TestCreateHoldRejectsInvalidInventory(t *testing.T) {
	h := newHarness(t)
	listing, beds := h.seed(dbtest.Room{Name: "A", PricePerBed: "500", Beds: 1})
	other := dbtest.SeedListing(t, h.client, uuid.New(), dbtest.Room{Name: "Z", PricePerBed: "500", Beds: 1})

	_, err := h.hold(uuid.New(), listing.ID, beds[0], dbtest.BedIDs(other)[0])
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeInvalidInventory), "foreign bed: %v", err)

	_, err = h.hold(uuid.New(), uuid.New(), beds[0])
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeInvalidInventory), "missing listing: %v", err)

	_, err = h.hold(uuid.New(), listing.ID, uuid.New())
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeInvalidInventory), "missing bed: %v", err)

	require.NoError(t, h.client.DB().Model(&models.Listing{}).Where("id = ?", listing.ID).Update("active", false).Error)
	_, err = h.hold(uuid.New(), listing.ID, beds[0])
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeInvalidInventory), "inactive listing: %v", err)

	assert.True(t, h.bed(beds[0]).Available)
}

func TestCreateHoldRejectsOccupiedBed(t *testing.T) {
	h := newHarness(t)
	listing, beds := h.seed(dbtest.Room{Name: "A", PricePerBed: "500", Beds: 2})
	require.NoError(t, h.client.DB().Model(&models.Bed{}).Where("id = ?", beds[0]).
		Updates(map[string]any{"available": false, "occupant_id": uuid.New()}).Error)

	_, err := h.hold(uuid.New(), listing.ID, beds[0], beds[1])
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeAlreadyOccupied), "got %v", err)
	assert.True(t, h.bed(beds[1]).Available, "failed hold must not claim other beds")
}

func TestCreateHoldValidatesInput(t *testing.T) {
	h := newHarness(t)
	listing, beds := h.seed(dbtest.Room{Name: "A", PricePerBed: "500", Beds: 1})
	zero, tooLong := 0, 400

	cases := map[string]CreateHoldInput{
		"no beds":        {RequesterID: uuid.New(), ListingID: listing.ID},
		"duplicate beds": {RequesterID: uuid.New(), ListingID: listing.ID, BedIDs: []uuid.UUID{beds[0], beds[0]}},
		"nil bed":        {RequesterID: uuid.New(), ListingID: listing.ID, BedIDs: []uuid.UUID{uuid.Nil}},
		"zero duration":  {RequesterID: uuid.New(), ListingID: listing.ID, BedIDs: beds, DurationDays: &zero},
		"long duration":  {RequesterID: uuid.New(), ListingID: listing.ID, BedIDs: beds, DurationDays: &tooLong},
		"no listing":     {RequesterID: uuid.New(), BedIDs: beds},
	}
	for name, input := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := h.svc.CreateHold(context.Background(), input)
			assert.True(t, pkgerrors.Is(err, pkgerrors.CodeValidation), "got %v", err)
		})
	}

	_, err := h.svc.CreateHold(context.Background(), CreateHoldInput{ListingID: listing.ID, BedIDs: beds})
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeUnauthorized), "got %v", err)
}

func TestGetVisibleToRequesterAndOwnerOnly(t *testing.T) {
	h := newHarness(t)
	listing, beds := h.seed(dbtest.Room{Name: "A", PricePerBed: "500", Beds: 1})
	renter := uuid.New()
	dto := h.mustHold(renter, listing.ID, beds[0])

	got, err := h.svc.Get(context.Background(), renter, dto.ID)
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{beds[0]}, got.BedIDs)

	_, err = h.svc.Get(context.Background(), h.owner, dto.ID)
	require.NoError(t, err)

	_, err = h.svc.Get(context.Background(), uuid.New(), dto.ID)
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeNotFound), "stranger: %v", err)

	_, err = h.svc.Get(context.Background(), renter, uuid.New())
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeNotFound), "missing: %v", err)
}

func TestListsPaginate(t *testing.T) {
	h := newHarness(t)
	listing, beds := h.seed(dbtest.Room{Name: "A", PricePerBed: "500", Beds: 3})
	renter := uuid.New()
	var created []uuid.UUID
	for _, bed := range beds {
		created = append(created, h.mustHold(renter, listing.ID, bed).ID)
		h.clock.Advance(time.Second)
	}

	first, err := h.svc.ListForRequester(context.Background(), renter, ListParams{Params: pagination.Params{Limit: 2}})
	require.NoError(t, err)
	require.Len(t, first.Items, 2)
	assert.Equal(t, created[2], first.Items[0].ID)
	assert.Equal(t, created[1], first.Items[1].ID)
	require.NotEmpty(t, first.Cursor)

	second, err := h.svc.ListForRequester(context.Background(), renter, ListParams{Params: pagination.Params{Limit: 2, Cursor: first.Cursor}})
	require.NoError(t, err)
	require.Len(t, second.Items, 1)
	assert.Equal(t, created[0], second.Items[0].ID)
	assert.Empty(t, second.Cursor)

	byListing, err := h.svc.ListForListing(context.Background(), h.owner, listing.ID, ListParams{})
	require.NoError(t, err)
	assert.Len(t, byListing.Items, 3)

	_, err = h.svc.ListForListing(context.Background(), renter, listing.ID, ListParams{})
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeForbidden), "got %v", err)

	_, err = h.svc.ListForRequester(context.Background(), renter, ListParams{Params: pagination.Params{Cursor: "%%%"}})
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeValidation), "got %v", err)

	_, err = h.svc.ListForRequester(context.Background(), renter, ListParams{Status: "approved"})
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeValidation), "got %v", err)

	require.True(t, h.svc.Cancel(context.Background(), renter, created[1]))
	cancelled, err := h.svc.ListForRequester(context.Background(), renter, ListParams{Status: enums.ReservationStatusCancelled})
	require.NoError(t, err)
	require.Len(t, cancelled.Items, 1)
	assert.Equal(t, created[1], cancelled.Items[0].ID)

	pending, err := h.svc.ListForListing(context.Background(), h.owner, listing.ID, ListParams{Status: enums.ReservationStatusPending})
	require.NoError(t, err)
	assert.Len(t, pending.Items, 2)
}

func TestNewServiceRequiresDependencies(t *testing.T) {
	_, err := NewService(ServiceParams{})
	assert.Error(t, err)
}
