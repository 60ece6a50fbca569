package outbox

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/angelmondragon/bedbroker-backend/pkg/db/models"
	"github.com/angelmondragon/bedbroker-backend/pkg/enums"
)

func deadLetter(t *testing.T, conn *gorm.DB, dlq *DLQRepository, event models.OutboxEvent, msg string) {
	t.Helper()
	require.NoError(t, conn.Transaction(func(tx *gorm.DB) error {
		return dlq.InsertTx(tx, models.DeadLetter(event, enums.OutboxDLQReasonMaxAttempts, errors.New(msg), time.Now()))
	}))
}

func exhaustedEvent(t *testing.T, conn *gorm.DB) models.OutboxEvent {
	t.Helper()
	lastErr := "topic not found"
	event := models.OutboxEvent{
		EventType:     enums.EventReservationExpired,
		AggregateType: enums.AggregateReservation,
		AggregateID:   uuid.New(),
		Payload:       json.RawMessage(`{"version":1}`),
		AttemptCount:  10,
		LastError:     &lastErr,
	}
	require.NoError(t, conn.Create(&event).Error)
	return event
}

func TestDLQInsertTruncatesMessage(t *testing.T) {
	conn := newOutboxTestDB(t)
	dlq := NewDLQRepository(conn)
	event := exhaustedEvent(t, conn)
	deadLetter(t, conn, dlq, event, strings.Repeat("x", 5000))

	rows, err := dlq.List(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	require.Len(t, *rows[0].ErrorMessage, dlqMessageLimit)
	require.Equal(t, event.AttemptCount+1, rows[0].AttemptCount)
	require.Equal(t, event.ID, rows[0].EventID)
}

func TestDLQReplayResetsAttempts(t *testing.T) {
	conn := newOutboxTestDB(t)
	dlq := NewDLQRepository(conn)
	event := exhaustedEvent(t, conn)
	deadLetter(t, conn, dlq, event, "boom")

	require.NoError(t, dlq.Replay(context.Background(), event.ID))

	var got models.OutboxEvent
	require.NoError(t, conn.First(&got, "id = ?", event.ID).Error)
	require.Zero(t, got.AttemptCount)
	require.Nil(t, got.LastError)

	rows, err := dlq.List(context.Background(), 10)
	require.NoError(t, err)
	require.Empty(t, rows)

	require.ErrorIs(t, dlq.Replay(context.Background(), event.ID), ErrNotDeadLettered)
}

func TestDLQReplayRecreatesPurgedEvent(t *testing.T) {
	conn := newOutboxTestDB(t)
	dlq := NewDLQRepository(conn)
	event := exhaustedEvent(t, conn)
	deadLetter(t, conn, dlq, event, "boom")
	require.NoError(t, conn.Delete(&models.OutboxEvent{}, "id = ?", event.ID).Error)

	require.NoError(t, dlq.Replay(context.Background(), event.ID))

	var got models.OutboxEvent
	require.NoError(t, conn.First(&got, "id = ?", event.ID).Error)
	require.Equal(t, event.AggregateID, got.AggregateID)
	require.JSONEq(t, `{"version":1}`, string(got.Payload))
}
