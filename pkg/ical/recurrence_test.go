package ical

import (
	"strings"
	"testing"
	"time"
	_ "time/tzdata"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func calendar(events ...string) []byte {
	lines := []string{
		"BEGIN:VCALENDAR",
		"VERSION:2.0",
		"PRODID:-//test//calendar-engine//EN",
	}
	for _, ev := range events {
		lines = append(lines, strings.Split(strings.TrimSpace(ev), "\n")...)
	}
	lines = append(lines, "END:VCALENDAR")
	for i, l := range lines {
		lines[i] = strings.TrimSpace(l)
	}
	return []byte(strings.Join(lines, "\r\n") + "\r\n")
}

const weeklyMaster = `
BEGIN:VEVENT
UID:weekly-1
DTSTAMP:20250101T000000Z
SUMMARY:Standup
LOCATION:Room 1
DTSTART:20250106T090000Z
DTEND:20250106T100000Z
RRULE:FREQ=WEEKLY;COUNT=4
ORGANIZER:mailto:alice@example.com
ATTENDEE:mailto:bob@example.com
END:VEVENT`

func utc(s string) time.Time {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		panic(err)
	}
	return t
}

func TestExpandICS_SingleEvent(t *testing.T) {
	re := NewRecurrenceExpander(time.UTC, 0)
	data := calendar(`
BEGIN:VEVENT
UID:single-1
DTSTAMP:20231101T000000Z
SUMMARY:Review
DTSTART:20231114T221320Z
DTEND:20231114T231320Z
END:VEVENT`)

	exp, err := re.ExpandICS(data, time.Unix(1699990000, 0), time.Unix(1700100000, 0))
	require.NoError(t, err)
	require.Len(t, exp.Events, 1)
	ev := exp.Events[0]
	assert.Equal(t, int64(1700000000), ev.Start.Unix())
	assert.Equal(t, int64(1700003600), ev.End.Unix())
	assert.Equal(t, "Review", ev.Summary)
	assert.False(t, ev.IsOverride())
	assert.False(t, exp.Truncated)

	exp, err = re.ExpandICS(data, time.Unix(1600000000, 0), time.Unix(1600100000, 0))
	require.NoError(t, err)
	assert.Empty(t, exp.Events)
}

func TestExpandICS_Recurring(t *testing.T) {
	re := NewRecurrenceExpander(time.UTC, 0)
	start, end := utc("2025-01-01T00:00:00Z"), utc("2025-02-01T00:00:00Z")

	t.Run("AllInstances", func(t *testing.T) {
		exp, err := re.ExpandICS(calendar(weeklyMaster), start, end)
		require.NoError(t, err)
		require.Len(t, exp.Events, 4)
		for i, ev := range exp.Events {
			assert.Equal(t, utc("2025-01-06T09:00:00Z").AddDate(0, 0, 7*i), ev.Start.UTC())
			assert.Equal(t, time.Hour, ev.End.Sub(ev.Start))
			assert.Nil(t, ev.RecurrenceID)
			assert.Equal(t, "alice@example.com", ev.Organizer)
			assert.Equal(t, []string{"bob@example.com"}, ev.Attendees)
			assert.Equal(t, "Room 1", ev.Location)
		}
	})

	t.Run("Exdate", func(t *testing.T) {
		data := calendar(strings.Replace(weeklyMaster, "RRULE:FREQ=WEEKLY;COUNT=4",
			"RRULE:FREQ=WEEKLY;COUNT=4\nEXDATE:20250113T090000Z", 1))
		exp, err := re.ExpandICS(data, start, end)
		require.NoError(t, err)
		require.Len(t, exp.Events, 3)
		for _, ev := range exp.Events {
			assert.NotEqual(t, utc("2025-01-13T09:00:00Z"), ev.Start.UTC())
		}
	})

	t.Run("PartialWindowKeepsRunningInstance", func(t *testing.T) {
		exp, err := re.ExpandICS(calendar(weeklyMaster), utc("2025-01-13T09:30:00Z"), utc("2025-01-14T00:00:00Z"))
		require.NoError(t, err)
		require.Len(t, exp.Events, 1)
		assert.Equal(t, utc("2025-01-13T09:00:00Z"), exp.Events[0].Start.UTC())
	})

	t.Run("EmbeddedOverride", func(t *testing.T) {
		data := calendar(weeklyMaster, `
BEGIN:VEVENT
UID:weekly-1
DTSTAMP:20250101T000000Z
SUMMARY:Standup (moved)
RECURRENCE-ID:20250113T090000Z
DTSTART:20250113T140000Z
DTEND:20250113T150000Z
END:VEVENT`)
		exp, err := re.ExpandICS(data, start, end)
		require.NoError(t, err)
		require.Len(t, exp.Events, 4)

		var overrides int
		for _, ev := range exp.Events {
			assert.NotEqual(t, utc("2025-01-13T09:00:00Z"), ev.Start.UTC())
			if ev.IsOverride() {
				overrides++
				assert.Equal(t, utc("2025-01-13T14:00:00Z"), ev.Start.UTC())
				assert.Equal(t, "Standup (moved)", ev.Summary)
			}
		}
		assert.Equal(t, 1, overrides)
	})

	t.Run("Truncated", func(t *testing.T) {
		small := NewRecurrenceExpander(time.UTC, 2)
		exp, err := small.ExpandICS(calendar(weeklyMaster), start, end)
		require.NoError(t, err)
		assert.Len(t, exp.Events, 2)
		assert.True(t, exp.Truncated)
	})
}

func TestExpandICS_StandaloneOverride(t *testing.T) {
	re := NewRecurrenceExpander(time.UTC, 0)
	data := calendar(`
BEGIN:VEVENT
UID:weekly-1
DTSTAMP:20250101T000000Z
RECURRENCE-ID:20250120T090000Z
DTSTART:20250121T090000Z
DTEND:20250121T100000Z
STATUS:CANCELLED
END:VEVENT`)

	exp, err := re.ExpandICS(data, utc("2025-01-01T00:00:00Z"), utc("2025-02-01T00:00:00Z"))
	require.NoError(t, err)
	require.Len(t, exp.Events, 1)
	assert.True(t, exp.Events[0].IsOverride())
	assert.True(t, exp.Events[0].IsCancelled())
}

func TestExpandICS_AllDayAndTimezone(t *testing.T) {
	berlin, err := time.LoadLocation("Europe/Berlin")
	require.NoError(t, err)
	re := NewRecurrenceExpander(berlin, 0)

	t.Run("AllDay", func(t *testing.T) {
		data := calendar(`
BEGIN:VEVENT
UID:holiday
DTSTAMP:20250101T000000Z
DTSTART;VALUE=DATE:20250110
DTEND;VALUE=DATE:20250111
END:VEVENT`)
		exp, err := re.ExpandICS(data, utc("2025-01-01T00:00:00Z"), utc("2025-02-01T00:00:00Z"))
		require.NoError(t, err)
		require.Len(t, exp.Events, 1)
		ev := exp.Events[0]
		assert.True(t, ev.IsAllDay)
		assert.Equal(t, 24*time.Hour, ev.End.Sub(ev.Start))
		assert.Equal(t, time.Date(2025, 1, 10, 0, 0, 0, 0, berlin).Unix(), ev.Start.Unix())
	})

	t.Run("TZID", func(t *testing.T) {
		data := calendar(`
BEGIN:VEVENT
UID:tz
DTSTAMP:20250101T000000Z
DTSTART;TZID=Europe/Berlin:20250106T090000
DURATION:PT30M
END:VEVENT`)
		exp, err := NewRecurrenceExpander(time.UTC, 0).ExpandICS(data, utc("2025-01-01T00:00:00Z"), utc("2025-02-01T00:00:00Z"))
		require.NoError(t, err)
		require.Len(t, exp.Events, 1)
		assert.Equal(t, utc("2025-01-06T08:00:00Z"), exp.Events[0].Start.UTC())
		assert.Equal(t, 30*time.Minute, exp.Events[0].Duration)
	})
}

func TestExpandICS_Errors(t *testing.T) {
	re := NewRecurrenceExpander(time.UTC, 0)

	_, err := re.ExpandICS([]byte("not a calendar"), time.Unix(0, 0), time.Unix(1, 0))
	assert.Error(t, err)

	todoOnly := calendar(`
BEGIN:VTODO
UID:todo-1
DTSTAMP:20250101T000000Z
SUMMARY:Not an event
END:VTODO`)
	_, err = re.ExpandICS(todoOnly, time.Unix(0, 0), time.Unix(1, 0))
	assert.ErrorIs(t, err, ErrNoEvent)

	_, err = re.ExpandICS(calendar(strings.Replace(weeklyMaster, "FREQ=WEEKLY", "FREQ=SOMETIMES", 1)),
		utc("2025-01-01T00:00:00Z"), utc("2025-02-01T00:00:00Z"))
	assert.Error(t, err)
}

func TestParseDuration(t *testing.T) {
	cases := map[string]time.Duration{
		"PT1H":       time.Hour,
		"PT1H30M":    90 * time.Minute,
		"P1D":        24 * time.Hour,
		"P1W":        7 * 24 * time.Hour,
		"P1DT2H3M4S": 26*time.Hour + 3*time.Minute + 4*time.Second,
		"-PT15M":     -15 * time.Minute,
	}
	for in, want := range cases {
		got, err := parseDuration(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
		back, err := parseDuration(formatDuration(got))
		require.NoError(t, err, in)
		assert.Equal(t, want, back, in)
	}

	for _, bad := range []string{"", "1H", "P", "PTXH"} {
		_, err := parseDuration(bad)
		assert.Error(t, err, bad)
	}
}
