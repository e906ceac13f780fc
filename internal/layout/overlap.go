// Package layout computes side-by-side column placement for occurrences that
// share a time range.
package layout

import (
	"sort"

	"github.com/sonroyaalmerol/calendar-engine/internal/occurrence"
)

// Overlap is the layout metadata of one occurrence. Order is the 1-based
// column; 0 means no column has been assigned.
type Overlap struct {
	ConcurrentEvents int
	Order            int
}

// OverlapByEventID is keyed by occurrence ID.
type OverlapByEventID map[string]Overlap

type edges struct {
	starting []int
	ending   []int
}

// ForEvents sweeps the start and end instants of occs in ascending order.
// ConcurrentEvents is propagated across every occurrence in a cluster and a
// column, once given, is kept for the rest of the sweep.
func ForEvents(occs []occurrence.EventOccurrence) OverlapByEventID {
	byTime := make(map[int64]*edges, 2*len(occs))
	edgesAt := func(ts int64) *edges {
		e, ok := byTime[ts]
		if !ok {
			e = &edges{}
			byTime[ts] = e
		}
		return e
	}
	for i := range occs {
		s := edgesAt(occs[i].Start)
		s.starting = append(s.starting, i)
		e := edgesAt(occs[i].End)
		e.ending = append(e.ending, i)
	}

	timestamps := make([]int64, 0, len(byTime))
	for ts := range byTime {
		timestamps = append(timestamps, ts)
	}
	sort.Slice(timestamps, func(a, b int) bool { return timestamps[a] < timestamps[b] })

	overlap := make(OverlapByEventID, len(occs))
	var ongoing []int
	for _, ts := range timestamps {
		e := byTime[ts]
		for _, i := range e.starting {
			overlap[occs[i].ID] = Overlap{ConcurrentEvents: 1}
			ongoing = append(ongoing, i)
		}
		if len(e.ending) > 0 {
			ongoing = without(ongoing, e.ending)
		}
		if len(ongoing) == 0 {
			continue
		}

		concurrent := len(ongoing)
		for _, i := range ongoing {
			if c := overlap[occs[i].ID].ConcurrentEvents; c > concurrent {
				concurrent = c
			}
		}

		used := make(map[int]bool, len(ongoing))
		for _, i := range ongoing {
			if o := overlap[occs[i].ID].Order; o > 0 {
				used[o] = true
			}
		}
		for _, i := range ongoing {
			o := overlap[occs[i].ID]
			o.ConcurrentEvents = concurrent
			if o.Order == 0 {
				o.Order = lowestFree(used)
				used[o.Order] = true
			}
			overlap[occs[i].ID] = o
		}
	}

	// Zero-length occurrences start and end on the same instant and are never
	// seen as ongoing.
	for id, o := range overlap {
		if o.Order == 0 {
			o.Order = 1
			overlap[id] = o
		}
	}
	return overlap
}

// MaxConcurrentEvents returns the largest ConcurrentEvents value, or 0 when
// overlap is empty.
func MaxConcurrentEvents(overlap OverlapByEventID) int {
	max := 0
	for _, o := range overlap {
		if o.ConcurrentEvents > max {
			max = o.ConcurrentEvents
		}
	}
	return max
}

func lowestFree(used map[int]bool) int {
	n := 1
	for used[n] {
		n++
	}
	return n
}

func without(set []int, remove []int) []int {
	drop := make(map[int]bool, len(remove))
	for _, i := range remove {
		drop[i] = true
	}
	out := set[:0]
	for _, i := range set {
		if !drop[i] {
			out = append(out, i)
		}
	}
	return out
}
