package reservations

import (
	"context"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/bedbroker-backend/internal/inventory"
	"github.com/angelmondragon/bedbroker-backend/internal/listings"
	"github.com/angelmondragon/bedbroker-backend/internal/notifications"
	"github.com/angelmondragon/bedbroker-backend/pkg/db"
	"github.com/angelmondragon/bedbroker-backend/pkg/db/dbtest"
	"github.com/angelmondragon/bedbroker-backend/pkg/db/models"
	"github.com/angelmondragon/bedbroker-backend/pkg/enums"
	"github.com/angelmondragon/bedbroker-backend/pkg/logger"
	"github.com/angelmondragon/bedbroker-backend/pkg/outbox"
)

var baseTime = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// recordingNotifier records every message and then returns err.
type recordingNotifier struct {
	mu       sync.Mutex
	messages []notifications.Message
	err      error
}

func (n *recordingNotifier) NotifyOwner(_ context.Context, msg notifications.Message) error {
	return n.record(msg)
}

func (n *recordingNotifier) NotifyUser(_ context.Context, msg notifications.Message) error {
	return n.record(msg)
}

func (n *recordingNotifier) record(msg notifications.Message) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.messages = append(n.messages, msg)
	return n.err
}

func (n *recordingNotifier) types() []enums.NotificationType {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]enums.NotificationType, 0, len(n.messages))
	for _, msg := range n.messages {
		out = append(out, msg.Type)
	}
	return out
}

type recordingRemover struct {
	mu      sync.Mutex
	removed []uuid.UUID
	err     error
}

func (r *recordingRemover) RemoveListing(_ context.Context, listingID uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.removed = append(r.removed, listingID)
	return r.err
}

func (r *recordingRemover) ids() []uuid.UUID {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]uuid.UUID(nil), r.removed...)
}

type harness struct {
	t        *testing.T
	client   *db.Client
	svc      *service
	clock    *fakeClock
	notifier *recordingNotifier
	search   *recordingRemover
	outbox   *outbox.Repository
	owner    uuid.UUID
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	client := dbtest.Open(t, "reservations")
	clock := &fakeClock{now: baseTime}
	outboxRepo := outbox.NewRepository(client.DB())
	emitter := outbox.NewService(outboxRepo, nil)
	invRepo := inventory.NewRepository(client.DB())

	trigger, err := listings.NewOccupancyTrigger(invRepo, emitter, listings.WithClock(clock.Now))
	require.NoError(t, err)

	notifier := &recordingNotifier{}
	search := &recordingRemover{}
	svc, err := newService(ServiceParams{
		Repo:      NewRepository(client.DB()),
		Inventory: invRepo,
		Tx:        client,
		Outbox:    emitter,
		Occupancy: trigger,
		Notifier:  notifier,
		Search:    search,
		Logger:    logger.New(logger.Options{ServiceName: "test", Output: io.Discard}),
		HoldTTL:   30 * time.Minute,
		Now:       clock.Now,
	})
	require.NoError(t, err)
	t.Cleanup(svc.wait)

	return &harness{
		t:        t,
		client:   client,
		svc:      svc,
		clock:    clock,
		notifier: notifier,
		search:   search,
		outbox:   outboxRepo,
		owner:    uuid.New(),
	}
}

func (h *harness) seed(rooms ...dbtest.Room) (*models.Listing, []uuid.UUID) {
	h.t.Helper()
	listing := dbtest.SeedListing(h.t, h.client, h.owner, rooms...)
	return listing, dbtest.BedIDs(listing)
}

func (h *harness) hold(requester uuid.UUID, listingID uuid.UUID, beds ...uuid.UUID) (*ReservationDTO, error) {
	return h.svc.CreateHold(context.Background(), CreateHoldInput{
		RequesterID: requester,
		ListingID:   listingID,
		BedIDs:      beds,
	})
}

func (h *harness) mustHold(requester uuid.UUID, listingID uuid.UUID, beds ...uuid.UUID) *ReservationDTO {
	h.t.Helper()
	dto, err := h.hold(requester, listingID, beds...)
	require.NoError(h.t, err)
	return dto
}

func (h *harness) bed(id uuid.UUID) models.Bed {
	h.t.Helper()
	return dbtest.LoadBed(h.t, h.client, id)
}

func (h *harness) reservation(id uuid.UUID) models.Reservation {
	h.t.Helper()
	var r models.Reservation
	require.NoError(h.t, h.client.DB().Where("id = ?", id).First(&r).Error)
	return r
}

func (h *harness) eventTypes(aggregateID uuid.UUID) []enums.OutboxEventType {
	h.t.Helper()
	rows, err := h.outbox.ListForAggregate(context.Background(), aggregateID)
	require.NoError(h.t, err)
	out := make([]enums.OutboxEventType, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.EventType)
	}
	return out
}
