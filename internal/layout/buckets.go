package layout

import (
	"sort"
	"time"

	"github.com/sonroyaalmerol/calendar-engine/internal/occurrence"
)

const dayKeyLayout = "2006-01-02"

// Buckets splits a range of occurrences into the all-day band and one list
// per local day.
type Buckets struct {
	AllDay []occurrence.EventOccurrence
	Days   map[string][]occurrence.EventOccurrence
	// DayKeys lists the keys of Days in ascending order.
	DayKeys []string
}

// Layout holds the overlap of every bucket.
type Layout struct {
	AllDay     OverlapByEventID
	AllDayRows int
	Days       map[string]OverlapByEventID
}

// Partition places all-day occurrences in the band and every timed
// occurrence in each local day it touches.
func Partition(occs []occurrence.EventOccurrence, loc *time.Location) Buckets {
	if loc == nil {
		loc = time.UTC
	}
	b := Buckets{Days: make(map[string][]occurrence.EventOccurrence)}
	for _, occ := range occs {
		if occ.IsAllDay() {
			b.AllDay = append(b.AllDay, occ)
			continue
		}
		start := time.Unix(occ.Start, 0).In(loc)
		last := time.Unix(occ.End-1, 0).In(loc)
		day := time.Date(start.Year(), start.Month(), start.Day(), 0, 0, 0, 0, loc)
		for !day.After(last) {
			key := day.Format(dayKeyLayout)
			if _, ok := b.Days[key]; !ok {
				b.DayKeys = append(b.DayKeys, key)
			}
			b.Days[key] = append(b.Days[key], occ)
			day = day.AddDate(0, 0, 1)
		}
	}
	sort.Strings(b.DayKeys)
	return b
}

func ForBuckets(b Buckets) Layout {
	l := Layout{
		AllDay: ForEvents(b.AllDay),
		Days:   make(map[string]OverlapByEventID, len(b.Days)),
	}
	l.AllDayRows = MaxConcurrentEvents(l.AllDay)
	for key, occs := range b.Days {
		l.Days[key] = ForEvents(occs)
	}
	return l
}
