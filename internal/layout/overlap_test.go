package layout

import (
	"fmt"
	"math/rand"
	"testing"

	"github.com/sonroyaalmerol/calendar-engine/internal/occurrence"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func occ(id string, start, end int64) occurrence.EventOccurrence {
	return occurrence.EventOccurrence{ID: id, Start: start, End: end}
}

func TestForEvents_Empty(t *testing.T) {
	overlap := ForEvents(nil)
	assert.Empty(t, overlap)
	assert.Equal(t, 0, MaxConcurrentEvents(overlap))
}

func TestForEvents_Disjoint(t *testing.T) {
	overlap := ForEvents([]occurrence.EventOccurrence{
		occ("a", 0, 100),
		occ("b", 100, 200), // back to back
		occ("c", 300, 400),
	})
	for _, id := range []string{"a", "b", "c"} {
		assert.Equal(t, Overlap{ConcurrentEvents: 1, Order: 1}, overlap[id], id)
	}
	assert.Equal(t, 1, MaxConcurrentEvents(overlap))
}

func TestForEvents_ClusterPropagation(t *testing.T) {
	// a spans the whole cluster; b and c never overlap each other.
	overlap := ForEvents([]occurrence.EventOccurrence{
		occ("a", 0, 300),
		occ("b", 0, 100),
		occ("c", 200, 300),
	})
	assert.Equal(t, Overlap{ConcurrentEvents: 2, Order: 1}, overlap["a"])
	assert.Equal(t, Overlap{ConcurrentEvents: 2, Order: 2}, overlap["b"])
	// c reuses the column b freed.
	assert.Equal(t, Overlap{ConcurrentEvents: 2, Order: 2}, overlap["c"])
}

func TestForEvents_StickyOrder(t *testing.T) {
	overlap := ForEvents([]occurrence.EventOccurrence{
		occ("a", 0, 100),
		occ("b", 10, 300),
		occ("c", 20, 300),
		occ("d", 150, 250),
	})
	assert.Equal(t, 1, overlap["a"].Order)
	assert.Equal(t, 2, overlap["b"].Order)
	assert.Equal(t, 3, overlap["c"].Order)
	// a ended; b and c keep their columns and d takes the free one.
	assert.Equal(t, 1, overlap["d"].Order)
	assert.Equal(t, 3, overlap["d"].ConcurrentEvents)
	assert.Equal(t, 3, MaxConcurrentEvents(overlap))
}

func TestForEvents_ZeroLength(t *testing.T) {
	overlap := ForEvents([]occurrence.EventOccurrence{occ("z", 50, 50)})
	assert.Equal(t, Overlap{ConcurrentEvents: 1, Order: 1}, overlap["z"])
}

func TestForEvents_Properties(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	for round := 0; round < 50; round++ {
		n := 1 + rng.Intn(30)
		occs := make([]occurrence.EventOccurrence, n)
		for i := range occs {
			start := int64(rng.Intn(96)) * 900
			length := int64(1+rng.Intn(12)) * 900
			occs[i] = occ(fmt.Sprintf("r%d-%d", round, i), start, start+length)
		}
		overlap := ForEvents(occs)
		require.Len(t, overlap, n)

		for ts := int64(0); ts < 110*900; ts += 450 {
			var active []occurrence.EventOccurrence
			for _, o := range occs {
				if o.Start <= ts && ts < o.End {
					active = append(active, o)
				}
			}
			orders := make(map[int]string)
			for _, o := range active {
				got := overlap[o.ID]
				assert.GreaterOrEqual(t, got.ConcurrentEvents, len(active), "round %d ts %d id %s", round, ts, o.ID)
				assert.GreaterOrEqual(t, got.Order, 1)
				assert.LessOrEqual(t, got.Order, got.ConcurrentEvents)
				if prev, dup := orders[got.Order]; dup {
					t.Errorf("round %d ts %d: %s and %s share column %d", round, ts, prev, o.ID, got.Order)
				}
				orders[got.Order] = o.ID
			}
		}
	}
}
