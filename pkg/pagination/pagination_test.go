package pagination

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeLimit(t *testing.T) {
	assert.Equal(t, DefaultLimit, NormalizeLimit(0))
	assert.Equal(t, DefaultLimit, NormalizeLimit(-3))
	assert.Equal(t, 7, NormalizeLimit(7))
	assert.Equal(t, MaxLimit, NormalizeLimit(MaxLimit+50))
	assert.Equal(t, 8, LimitWithBuffer(7))
}

func TestCursorRoundTrip(t *testing.T) {
	at := time.Date(2026, 3, 14, 9, 26, 53, 589793000, time.FixedZone("BRT", -3*3600))
	id := uuid.New()

	token := EncodeCursor(Cursor{At: at, ID: id})
	assert.NotContains(t, token, "=")

	got, err := ParseCursor(token)
	require.NoError(t, err)
	assert.True(t, got.At.Equal(at))
	assert.Equal(t, id, got.ID)
}

func TestParseCursorRejectsGarbage(t *testing.T) {
	got, err := ParseCursor("  ")
	require.NoError(t, err)
	assert.Nil(t, got)

	for _, token := range []string{"%%%", "bm8tZG90", "enp6Lm5vdC1hLXV1aWQ"} {
		_, err := ParseCursor(token)
		assert.ErrorIs(t, err, errMalformedCursor, token)
	}
}

func TestSplit(t *testing.T) {
	type row struct {
		at time.Time
		id uuid.UUID
	}
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	rows := make([]row, 4)
	for i := range rows {
		rows[i] = row{at: base.Add(-time.Duration(i) * time.Hour), id: uuid.New()}
	}
	key := func(r row) Cursor { return Cursor{At: r.at, ID: r.id} }

	page, next := Split(rows, 3, key)
	require.Len(t, page, 3)
	cursor, err := ParseCursor(next)
	require.NoError(t, err)
	assert.Equal(t, rows[2].id, cursor.ID)

	page, next = Split(rows[:2], 3, key)
	assert.Len(t, page, 2)
	assert.Empty(t, next)
}
