package pagination

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func TestCursorRoundTripIsURLSafe(t *testing.T) {
	c := Cursor{CreatedAt: time.Date(2026, 3, 1, 9, 30, 0, 123, time.FixedZone("X", 3600)), ID: uuid.New()}
	encoded := EncodeCursor(c)
	require.NotContains(t, encoded, "=")
	require.NotContains(t, encoded, "+")
	require.NotContains(t, encoded, "/")

	got, err := ParseCursor(encoded)
	require.NoError(t, err)
	require.True(t, c.CreatedAt.Equal(got.CreatedAt))
	require.Equal(t, c.ID, got.ID)
}

func TestParseCursorRejectsGarbage(t *testing.T) {
	got, err := ParseCursor("  ")
	require.NoError(t, err)
	require.Nil(t, got)

	for _, bad := range []string{"!!", "bm9waXBl", EncodeCursor(Cursor{})[:4]} {
		_, err := ParseCursor(bad)
		require.ErrorIs(t, err, ErrInvalidCursor, bad)
	}
}

func TestPageTrimsAndReturnsNextKey(t *testing.T) {
	rows := []int{5, 4, 3}
	key := func(v int) Cursor { return Cursor{ID: uuid.NewSHA1(uuid.Nil, []byte{byte(v)})} }

	page, next := Page(rows, 2, key)
	require.Equal(t, []int{5, 4}, page)
	require.Equal(t, key(4), *next)

	page, next = Page(rows, 3, key)
	require.Len(t, page, 3)
	require.Nil(t, next)
}

func TestNormalizeLimit(t *testing.T) {
	require.Equal(t, DefaultLimit, NormalizeLimit(0))
	require.Equal(t, MaxLimit, NormalizeLimit(MaxLimit+1))
	require.Equal(t, 7, NormalizeLimit(7))
}
