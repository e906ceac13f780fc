package layout

import (
	"testing"
	"time"

	"github.com/sonroyaalmerol/calendar-engine/internal/occurrence"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPartition(t *testing.T) {
	// 2025-01-06T00:00:00Z
	day := int64(1736121600)
	occs := []occurrence.EventOccurrence{
		occ("holiday", day, day+86400),
		occ("trip", day, day+3*86400),
		occ("morning", day+9*3600, day+10*3600),
		occ("overnight", day+23*3600, day+25*3600),
		occ("next", day+86400+8*3600, day+86400+9*3600),
	}

	b := Partition(occs, time.UTC)
	require.Len(t, b.AllDay, 2)
	assert.Equal(t, []string{"2025-01-06", "2025-01-07"}, b.DayKeys)
	assert.Len(t, b.Days["2025-01-06"], 2)
	assert.Len(t, b.Days["2025-01-07"], 2)

	l := ForBuckets(b)
	assert.Equal(t, 2, l.AllDayRows)
	assert.Equal(t, 1, l.Days["2025-01-06"]["morning"].ConcurrentEvents)
	assert.Equal(t, 1, l.Days["2025-01-07"]["next"].ConcurrentEvents)
}

func TestPartition_Location(t *testing.T) {
	loc := time.FixedZone("UTC-5", -5*3600)
	// 2025-01-06T02:00:00Z is still the 5th at UTC-5.
	start := int64(1736121600 + 2*3600)
	b := Partition([]occurrence.EventOccurrence{occ("late", start, start+3600)}, loc)
	assert.Equal(t, []string{"2025-01-05"}, b.DayKeys)

	b = Partition([]occurrence.EventOccurrence{occ("late", start, start+3600)}, nil)
	assert.Equal(t, []string{"2025-01-06"}, b.DayKeys)
}
