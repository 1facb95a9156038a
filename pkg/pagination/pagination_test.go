package pagination

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCursorRoundTrip(t *testing.T) {
	in := Cursor{CreatedAt: time.Date(2024, 3, 1, 10, 30, 0, 500, time.UTC), ID: uuid.New()}
	out, err := ParseCursor(EncodeCursor(in))
	require.NoError(t, err)
	require.NotNil(t, out)
	assert.True(t, in.CreatedAt.Equal(out.CreatedAt))
	assert.Equal(t, in.ID, out.ID)

	empty, err := ParseCursor("  ")
	require.NoError(t, err)
	assert.Nil(t, empty)

	_, err = ParseCursor("not-base64!")
	assert.Error(t, err)
}

func TestNormalizeLimit(t *testing.T) {
	assert.Equal(t, DefaultLimit, NormalizeLimit(0))
	assert.Equal(t, MaxLimit, NormalizeLimit(1000))
	assert.Equal(t, 7, NormalizeLimit(7))
	assert.Equal(t, 8, LimitWithBuffer(7))
}

func TestBuildTrimsBufferRow(t *testing.T) {
	type row struct {
		id      uuid.UUID
		created time.Time
	}
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	rows := []row{
		{id: uuid.New(), created: base.Add(3 * time.Minute)},
		{id: uuid.New(), created: base.Add(2 * time.Minute)},
		{id: uuid.New(), created: base.Add(time.Minute)},
	}
	key := func(r row) Cursor { return Cursor{CreatedAt: r.created, ID: r.id} }

	page := Build(rows, Params{Limit: 2}, key)
	require.Len(t, page.Items, 2)
	require.NotEmpty(t, page.NextCursor)

	next, err := ParseCursor(page.NextCursor)
	require.NoError(t, err)
	assert.Equal(t, rows[1].id, next.ID)

	last := Build(rows[:1], Params{Limit: 2}, key)
	assert.Len(t, last.Items, 1)
	assert.Empty(t, last.NextCursor)

	none := Build[row](nil, Params{}, key)
	assert.NotNil(t, none.Items)
}
