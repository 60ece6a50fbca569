package notifications

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/angelmondragon/bedbroker-backend/pkg/db/models"
	"github.com/angelmondragon/bedbroker-backend/pkg/enums"
	"github.com/angelmondragon/bedbroker-backend/pkg/logger"
)

func newNotificationsTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	conn, err := gorm.Open(sqlite.Open("file:notifications_"+uuid.NewString()+"?mode=memory&cache=shared"), &gorm.Config{
		NowFunc: func() time.Time { return time.Now().UTC() },
	})
	require.NoError(t, err)
	require.NoError(t, conn.AutoMigrate(&models.Notification{}))
	return conn
}

func testLogger() *logger.Logger {
	return logger.New(logger.Options{ServiceName: "test", Output: io.Discard})
}

func TestNotifierPersistsRows(t *testing.T) {
	conn := newNotificationsTestDB(t)
	repo := NewRepository(conn)
	notifier, err := NewNotifier(repo, testLogger())
	require.NoError(t, err)

	owner := uuid.New()
	reservationID := uuid.New()
	require.NoError(t, notifier.NotifyOwner(context.Background(), Message{
		RecipientID:   owner,
		Type:          enums.NotificationTypeHoldRequested,
		Title:         "New hold request",
		Body:          "2 beds requested",
		ReservationID: &reservationID,
	}))

	svc, err := NewService(repo)
	require.NoError(t, err)
	result, err := svc.List(context.Background(), ListParams{RecipientID: owner})
	require.NoError(t, err)
	require.Len(t, result.Items, 1)
	assert.Equal(t, enums.NotificationTypeHoldRequested, result.Items[0].Type)
	assert.Equal(t, "2 beds requested", result.Items[0].Message)
	require.NotNil(t, result.Items[0].ReservationID)
	assert.Equal(t, reservationID, *result.Items[0].ReservationID)
	assert.Empty(t, result.Cursor)
}

func TestNotifierRejectsInvalidMessages(t *testing.T) {
	notifier, err := NewNotifier(NewRepository(newNotificationsTestDB(t)), testLogger())
	require.NoError(t, err)

	assert.Error(t, notifier.NotifyUser(context.Background(), Message{Type: enums.NotificationTypeHoldExpired}))
	assert.Error(t, notifier.NotifyUser(context.Background(), Message{RecipientID: uuid.New(), Type: "bogus"}))
}

func TestRepositoryPaginatesAndMarksRead(t *testing.T) {
	conn := newNotificationsTestDB(t)
	repo := NewRepository(conn)
	recipient := uuid.New()
	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		require.NoError(t, repo.Create(context.Background(), &models.Notification{
			RecipientID: recipient,
			Type:        enums.NotificationTypeReservationConfirmed,
			Title:       "Confirmed",
			Message:     "ok",
			CreatedAt:   base.Add(time.Duration(i) * time.Minute),
		}))
	}

	firstPage, next, err := repo.List(context.Background(), listFilter{RecipientID: recipient, Limit: 2})
	require.NoError(t, err)
	require.Len(t, firstPage, 2)
	require.NotNil(t, next)

	secondPage, next, err := repo.List(context.Background(), listFilter{RecipientID: recipient, Limit: 2, Cursor: next})
	require.NoError(t, err)
	require.Len(t, secondPage, 1)
	assert.Nil(t, next)
	assert.True(t, secondPage[0].CreatedAt.Equal(base))

	now := base.Add(time.Hour)
	mark, err := repo.MarkRead(context.Background(), recipient, firstPage[0].ID, now)
	require.NoError(t, err)
	assert.Equal(t, markApplied, mark)

	again, err := repo.MarkRead(context.Background(), recipient, firstPage[0].ID, now)
	require.NoError(t, err)
	assert.Equal(t, markAlreadyRead, again)

	other, err := repo.MarkRead(context.Background(), uuid.New(), firstPage[0].ID, now)
	require.NoError(t, err)
	assert.Equal(t, markMissing, other)

	unread, err := repo.CountUnread(context.Background(), recipient)
	require.NoError(t, err)
	assert.EqualValues(t, 2, unread)

	count, err := repo.MarkAllRead(context.Background(), recipient, now)
	require.NoError(t, err)
	assert.EqualValues(t, 2, count)

	deleted, err := repo.DeleteReadBefore(context.Background(), base.Add(2*time.Minute))
	require.NoError(t, err)
	assert.EqualValues(t, 2, deleted)
}
