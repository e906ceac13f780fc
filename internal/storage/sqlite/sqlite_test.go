package sqlite

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/sonroyaalmerol/calendar-engine/internal/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(filepath.Join(t.TempDir(), "db", "test.db"), zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(s.Close)
	return s
}

func newCalendar(t *testing.T, s *Store, uri string) *storage.Calendar {
	t.Helper()
	c := &storage.Calendar{AccountID: "alice", URI: uri}
	require.NoError(t, s.CreateCalendar(context.Background(), c))
	return c
}

func TestCalendars(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	work := newCalendar(t, s, "work")
	assert.NotEmpty(t, work.ID)
	assert.Equal(t, "work", work.DisplayName)
	assert.Equal(t, "#3174ad", work.Color)

	holidays := &storage.Calendar{AccountID: "alice", URI: "holidays", ReadOnly: true}
	require.NoError(t, s.CreateCalendar(ctx, holidays))

	got, err := s.GetCalendar(ctx, holidays.ID)
	require.NoError(t, err)
	assert.True(t, got.ReadOnly)
	assert.Equal(t, "alice", got.AccountID)

	_, err = s.GetCalendar(ctx, "missing")
	assert.ErrorIs(t, err, storage.ErrNotFound)

	all, err := s.ListCalendars(ctx, "alice")
	require.NoError(t, err)
	assert.Len(t, all, 2)

	none, err := s.ListCalendars(ctx, "bob")
	require.NoError(t, err)
	assert.Empty(t, none)

	err = s.CreateCalendar(ctx, &storage.Calendar{AccountID: "alice"})
	assert.Error(t, err)
}

func TestEvents(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	work := newCalendar(t, s, "work")
	home := newCalendar(t, s, "home")

	master := &storage.Event{
		AccountID: "alice", CalendarID: work.ID, ICS: "BEGIN:VCALENDAR", ICSUID: "series",
		RecurrenceStart: 1000, RecurrenceEnd: 5000,
	}
	require.NoError(t, s.PutEvent(ctx, master))
	require.NotEmpty(t, master.ID)

	exception := &storage.Event{
		AccountID: "alice", CalendarID: work.ID, ICS: "BEGIN:VCALENDAR", ICSUID: "series",
		RecurrenceID: "20250106T090000Z", RecurrenceStart: 2000, RecurrenceEnd: 2500,
	}
	require.NoError(t, s.PutEvent(ctx, exception))

	other := &storage.Event{
		AccountID: "alice", CalendarID: home.ID, ICS: "BEGIN:VCALENDAR", ICSUID: "other",
		RecurrenceStart: 8000, RecurrenceEnd: 9000,
	}
	require.NoError(t, s.PutEvent(ctx, other))

	t.Run("Get", func(t *testing.T) {
		got, err := s.GetEvent(ctx, exception.ID)
		require.NoError(t, err)
		assert.True(t, got.IsException())
		assert.Equal(t, "20250106T090000Z", got.RecurrenceID)

		got, err = s.GetEvent(ctx, master.ID)
		require.NoError(t, err)
		assert.False(t, got.IsException())

		_, err = s.GetEvent(ctx, "missing")
		assert.ErrorIs(t, err, storage.ErrNotFound)
	})

	t.Run("Upsert", func(t *testing.T) {
		updated := master.Clone()
		updated.ICS = "changed"
		updated.RecurrenceEnd = 6000
		require.NoError(t, s.PutEvent(ctx, updated))

		got, err := s.GetEvent(ctx, master.ID)
		require.NoError(t, err)
		assert.Equal(t, "changed", got.ICS)
		assert.Equal(t, int64(6000), got.RecurrenceEnd)
	})

	t.Run("Range", func(t *testing.T) {
		evs, err := s.ListEventsInRange(ctx, nil, 0, 10000)
		require.NoError(t, err)
		assert.Len(t, evs, 3)

		evs, err = s.ListEventsInRange(ctx, []string{work.ID}, 0, 10000)
		require.NoError(t, err)
		assert.Len(t, evs, 2)

		evs, err = s.ListEventsInRange(ctx, nil, 7000, 7500)
		require.NoError(t, err)
		assert.Empty(t, evs)

		// Touching bounds count as intersecting.
		evs, err = s.ListEventsInRange(ctx, []string{home.ID, work.ID}, 9000, 9500)
		require.NoError(t, err)
		require.Len(t, evs, 1)
		assert.Equal(t, other.ID, evs[0].ID)
	})

	t.Run("ByICSUID", func(t *testing.T) {
		evs, err := s.ListEventsByICSUID(ctx, work.ID, "series")
		require.NoError(t, err)
		require.Len(t, evs, 2)
		assert.Equal(t, master.ID, evs[0].ID)
		assert.Equal(t, exception.ID, evs[1].ID)
	})

	t.Run("Delete", func(t *testing.T) {
		require.NoError(t, s.DeleteEvent(ctx, other.ID))
		assert.ErrorIs(t, s.DeleteEvent(ctx, other.ID), storage.ErrNotFound)
	})
}

func TestUndoStack(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	_, err := s.PopUndo(ctx)
	assert.ErrorIs(t, err, storage.ErrNotFound)

	require.NoError(t, s.PushUndo(ctx, &storage.UndoEntry{EventID: "a", ICS: "first", Description: "move a"}))
	require.NoError(t, s.PushUndo(ctx, &storage.UndoEntry{EventID: "b", ICS: "second", RecurrenceStart: 10, RecurrenceEnd: 20}))

	top, err := s.PopUndo(ctx)
	require.NoError(t, err)
	assert.Equal(t, "b", top.EventID)
	assert.Equal(t, int64(10), top.RecurrenceStart)

	next, err := s.PopUndo(ctx)
	require.NoError(t, err)
	assert.Equal(t, "a", next.EventID)
	assert.Equal(t, "move a", next.Description)

	_, err = s.PopUndo(ctx)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}
