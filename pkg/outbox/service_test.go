package outbox

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/angelmondragon/bedbroker-backend/pkg/db/models"
	"github.com/angelmondragon/bedbroker-backend/pkg/enums"
)

func newOutboxTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	conn, err := gorm.Open(sqlite.Open("file:outbox_"+uuid.NewString()+"?mode=memory&cache=shared"), &gorm.Config{
		NowFunc: func() time.Time { return time.Now().UTC() },
	})
	require.NoError(t, err)
	require.NoError(t, conn.AutoMigrate(&models.OutboxEvent{}, &models.OutboxDLQ{}))
	return conn
}

func TestEmitStoresEnvelope(t *testing.T) {
	conn := newOutboxTestDB(t)
	repo := NewRepository(conn)
	svc := NewService(repo, nil)
	aggregateID := uuid.New()
	occurred := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	err := conn.Transaction(func(tx *gorm.DB) error {
		return svc.Emit(context.Background(), tx, DomainEvent{
			EventType:     enums.EventReservationCreated,
			AggregateType: enums.AggregateReservation,
			AggregateID:   aggregateID,
			Actor:         UserActor(uuid.New(), RoleRenter),
			Data:          map[string]string{"hello": "world"},
			OccurredAt:    occurred,
		})
	})
	require.NoError(t, err)

	rows, err := repo.ListForAggregate(context.Background(), aggregateID)
	require.NoError(t, err)
	require.Len(t, rows, 1)

	var envelope PayloadEnvelope
	require.NoError(t, json.Unmarshal(rows[0].Payload, &envelope))
	assert.Equal(t, 1, envelope.Version)
	assert.True(t, envelope.OccurredAt.Equal(occurred))
	assert.Equal(t, rows[0].ID.String(), envelope.EventID)
	assert.Equal(t, RoleRenter, envelope.Actor.Role)
	assert.JSONEq(t, `{"hello":"world"}`, string(envelope.Data))
}

func TestEmitRequiresTransaction(t *testing.T) {
	svc := NewService(NewRepository(nil), nil)
	err := svc.Emit(context.Background(), nil, DomainEvent{EventType: enums.EventReservationCreated})
	require.Error(t, err)
}

func TestEmitIfNotExistsSkipsDuplicates(t *testing.T) {
	conn := newOutboxTestDB(t)
	repo := NewRepository(conn)
	svc := NewService(repo, nil)
	listingID := uuid.New()
	event := DomainEvent{
		EventType:     enums.EventListingDeactivated,
		AggregateType: enums.AggregateListing,
		AggregateID:   listingID,
		Actor:         SystemActor(),
		Data:          map[string]string{"listing_id": listingID.String()},
	}

	for i := 0; i < 2; i++ {
		require.NoError(t, conn.Transaction(func(tx *gorm.DB) error {
			return svc.EmitIfNotExists(context.Background(), tx, event)
		}))
	}

	rows, err := repo.ListForAggregate(context.Background(), listingID)
	require.NoError(t, err)
	assert.Len(t, rows, 1)
}

func TestRepositoryPublishLifecycle(t *testing.T) {
	conn := newOutboxTestDB(t)
	repo := NewRepository(conn)
	svc := NewService(repo, nil)

	require.NoError(t, conn.Transaction(func(tx *gorm.DB) error {
		for i := 0; i < 3; i++ {
			if err := svc.Emit(context.Background(), tx, DomainEvent{
				EventType:     enums.EventReservationExpired,
				AggregateType: enums.AggregateReservation,
				AggregateID:   uuid.New(),
				Data:          map[string]int{"i": i},
			}); err != nil {
				return err
			}
		}
		return nil
	}))

	var batch []models.OutboxEvent
	require.NoError(t, conn.Transaction(func(tx *gorm.DB) error {
		var err error
		batch, err = repo.ClaimBatch(tx, 10, 3)
		if err != nil {
			return err
		}
		if err := repo.MarkPublished(tx, batch[0].ID); err != nil {
			return err
		}
		if err := repo.RecordFailure(tx, batch[1].ID, assert.AnError); err != nil {
			return err
		}
		return repo.Retire(tx, batch[2].ID, assert.AnError, 3)
	}))
	require.Len(t, batch, 3)

	var remaining []models.OutboxEvent
	require.NoError(t, conn.Transaction(func(tx *gorm.DB) error {
		var err error
		remaining, err = repo.ClaimBatch(tx, 10, 3)
		return err
	}))
	require.Len(t, remaining, 1)
	assert.Equal(t, batch[1].ID, remaining[0].ID)
	assert.Equal(t, 1, remaining[0].AttemptCount)

	var deleted int64
	require.NoError(t, conn.Transaction(func(tx *gorm.DB) error {
		var err error
		deleted, err = repo.PurgeSettled(context.Background(), tx, time.Now().UTC().Add(time.Hour), 3)
		return err
	}))
	assert.Equal(t, int64(2), deleted)
}
