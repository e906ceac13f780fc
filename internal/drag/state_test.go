package drag

import (
	"math/rand"
	"testing"

	"github.com/sonroyaalmerol/calendar-engine/internal/occurrence"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func timed(start, end int64) *occurrence.EventOccurrence {
	return &occurrence.EventOccurrence{ID: "ev-e0", EventID: "ev", CalendarID: "work", Start: start, End: end}
}

func weekConfig() Config {
	return DefaultWeekConfig()
}

func TestDefaultConfigs(t *testing.T) {
	assert.Equal(t, Config{DragThreshold: 5, SnapInterval: 900, EdgeZoneSize: 12, MinDuration: 900, Direction: Vertical}, DefaultWeekConfig())
	assert.Equal(t, Config{DragThreshold: 5, SnapInterval: 86400, EdgeZoneSize: 12, MinDuration: 86400, Direction: Horizontal}, DefaultMonthConfig())
}

func TestSnapToInterval(t *testing.T) {
	tests := []struct {
		ts, interval, want int64
	}{
		{1400, 900, 1800},
		{1349, 900, 900},
		{1350, 900, 1800},
		{900, 900, 900},
		{0, 900, 0},
		{-400, 900, 0},
		{-500, 900, -900},
		{1234, 0, 1234},
		{1234, -5, 1234},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, SnapToInterval(tt.ts, tt.interval), "snap(%d, %d)", tt.ts, tt.interval)
	}
}

func TestSnapToInterval_Idempotent(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	for i := 0; i < 1000; i++ {
		x := rng.Int63n(4_000_000_000) - 2_000_000_000
		n := 1 + rng.Int63n(100_000)
		once := SnapToInterval(x, n)
		assert.Equal(t, once, SnapToInterval(once, n), "x=%d n=%d", x, n)
		assert.Zero(t, once%n)
	}
}

func TestNewState(t *testing.T) {
	occ := timed(1000, 2000)

	s := NewState(occ, HitZone{Mode: ModeMove}, 1100, 10, 10)
	assert.Equal(t, int64(100), s.ClickOffset)
	assert.Equal(t, int64(1000), s.PreviewStart)
	assert.Equal(t, int64(2000), s.PreviewEnd)
	assert.False(t, s.IsDragging)
	assert.Equal(t, PhasePending, s.Phase())

	s = NewState(occ, HitZone{Mode: ModeResizeEnd}, 1990, 10, 10)
	assert.Equal(t, int64(-10), s.ClickOffset)

	s = NewState(occ, HitZone{Mode: ModeResizeStart}, 1010, 10, 10)
	assert.Zero(t, s.ClickOffset)

	var idle *State
	assert.Equal(t, PhaseIdle, idle.Phase())
}

func TestUpdate_Threshold(t *testing.T) {
	s := NewState(timed(1000, 2000), HitZone{Mode: ModeMove}, 1100, 0, 0)

	same := Update(s, 5000, 3, 3, weekConfig())
	assert.Same(t, s, same)
	assert.False(t, same.IsDragging)

	moved := Update(s, 1500, 5, 0, weekConfig())
	require.NotSame(t, s, moved)
	assert.True(t, moved.IsDragging)
	assert.Equal(t, PhaseDragging, moved.Phase())
	assert.False(t, s.IsDragging, "input state must not change")

	// Once dragging, small pointer movements still update the preview.
	again := Update(moved, 2500, 1, 0, weekConfig())
	assert.Equal(t, int64(2700), again.PreviewStart)
}

func TestUpdate_Move(t *testing.T) {
	s := NewState(timed(1000, 2000), HitZone{Mode: ModeMove}, 1100, 0, 0)
	require.Equal(t, int64(100), s.ClickOffset)

	s = Update(s, 1500, 0, 10, weekConfig())
	// Snapping rounds to the nearest multiple: 1400 lands on 1800, not 900.
	// A floor-based reading of this case (900/1900) is deliberately rejected.
	assert.Equal(t, SnapToInterval(1400, 900), s.PreviewStart)
	assert.Equal(t, int64(1800), s.PreviewStart)
	assert.Equal(t, int64(2800), s.PreviewEnd)

	// Same snapped position returns the same state.
	same := Update(s, 1550, 0, 12, weekConfig())
	assert.Same(t, s, same)
}

func TestUpdate_ResizeStartClamp(t *testing.T) {
	cfg := weekConfig()
	s := NewState(timed(1000, 2000), HitZone{Mode: ModeResizeStart}, 1000, 0, 0)

	snapped := Update(s, 1950, 0, 10, cfg)
	assert.Equal(t, int64(900), snapped.PreviewStart)
	assert.Equal(t, int64(2000), snapped.PreviewEnd)

	cfg.SnapInterval = 1
	unsnapped := Update(s, 1950, 0, 10, cfg)
	assert.Equal(t, int64(1100), unsnapped.PreviewStart)
	assert.Equal(t, int64(2000), unsnapped.PreviewEnd)
}

func TestUpdate_ResizeStartSnapReclamp(t *testing.T) {
	// The end is off-grid, so snapping the clamped start would break the minimum.
	cfg := weekConfig()
	s := NewState(timed(1000, 2400), HitZone{Mode: ModeResizeStart}, 1000, 0, 0)
	s = Update(s, 5000, 0, 10, cfg)
	assert.Equal(t, int64(1500), s.PreviewStart)
	assert.Equal(t, cfg.MinDuration, s.PreviewEnd-s.PreviewStart)
}

func TestUpdate_ResizeEnd(t *testing.T) {
	cfg := weekConfig()
	s := NewState(timed(900, 1800), HitZone{Mode: ModeResizeEnd}, 1790, 0, 0)
	require.Equal(t, int64(-10), s.ClickOffset)

	longer := Update(s, 3500, 0, 40, cfg)
	assert.Equal(t, int64(900), longer.PreviewStart)
	assert.Equal(t, int64(3600), longer.PreviewEnd)

	shorter := Update(s, 0, 0, -40, cfg)
	assert.Equal(t, int64(1800), shorter.PreviewEnd)

	offGrid := NewState(timed(1000, 2000), HitZone{Mode: ModeResizeEnd}, 2000, 0, 0)
	offGrid = Update(offGrid, 0, 0, -40, cfg)
	assert.Equal(t, int64(1900), offGrid.PreviewEnd)
}

func TestUpdate_AllDayOverridesConfig(t *testing.T) {
	// 2025-01-06T00:00:00Z, two days.
	start := int64(1736121600)
	occ := timed(start, start+2*86400)
	s := NewState(occ, HitZone{Mode: ModeMove}, start+3600, 0, 0)

	s = Update(s, start+86400+5*3600, 20, 0, weekConfig())
	assert.Equal(t, start+86400, s.PreviewStart)
	assert.Equal(t, start+3*86400, s.PreviewEnd)

	r := NewState(occ, HitZone{Mode: ModeResizeEnd}, start+2*86400, 0, 0)
	r = Update(r, start, 20, 0, weekConfig())
	assert.Equal(t, start+86400, r.PreviewEnd)
}

func TestUpdate_AllDayResizeStartStaysOnGrid(t *testing.T) {
	start := int64(1736121600)

	// Ends at 23:59:59 rather than the next midnight.
	short := timed(start, start+86399)
	s := NewState(short, HitZone{Mode: ModeResizeStart}, start, 0, 0)
	s = Update(s, start+5*86400, 20, 0, weekConfig())
	assert.Equal(t, start, s.PreviewStart)
	assert.Equal(t, start+86399, s.PreviewEnd)
	assert.Zero(t, s.PreviewStart%86400)

	long := timed(start, start+2*86400-1)
	s = NewState(long, HitZone{Mode: ModeResizeStart}, start, 0, 0)
	s = Update(s, start+5*86400, 20, 0, weekConfig())
	assert.Equal(t, start+86400, s.PreviewStart)
	assert.Zero(t, s.PreviewStart%86400)
	preview := PreviewOccurrence(s)
	assert.True(t, preview.IsAllDay())
}

func TestUpdate_MinimumDurationProperty(t *testing.T) {
	rng := rand.New(rand.NewSource(99))
	cfg := weekConfig()
	modes := []Mode{ModeMove, ModeResizeStart, ModeResizeEnd}
	for i := 0; i < 500; i++ {
		start := rng.Int63n(100_000)
		occ := timed(start, start+cfg.MinDuration+rng.Int63n(20_000))
		s := NewState(occ, HitZone{Mode: modes[i%3]}, start+rng.Int63n(occ.End-start), 0, 0)
		for step := 0; step < 10; step++ {
			s = Update(s, rng.Int63n(200_000)-50_000, 10, float64(step*10), cfg)
			if s.IsDragging {
				assert.GreaterOrEqual(t, s.PreviewEnd-s.PreviewStart, cfg.MinDuration)
			}
		}
	}
}

func TestCommitAndCancel(t *testing.T) {
	occ := timed(1000, 2000)
	s := NewState(occ, HitZone{Mode: ModeMove}, 1100, 0, 0)

	click := Commit(s)
	assert.True(t, click.Click)
	assert.False(t, click.Changed)
	assert.Equal(t, PhaseCommitted, click.State.Phase())

	dragged := Update(s, 1500, 0, 30, weekConfig())
	r := Commit(dragged)
	assert.False(t, r.Click)
	assert.True(t, r.Changed)
	assert.Equal(t, int64(1800), r.Start)
	assert.Equal(t, int64(2800), r.End)

	// Committed states ignore further pointer movement.
	assert.Same(t, r.State, Update(r.State, 9000, 0, 90, weekConfig()))

	aligned := NewState(timed(900, 1800), HitZone{Mode: ModeMove}, 1000, 0, 0)
	away := Update(aligned, 2000, 0, 30, weekConfig())
	require.Equal(t, int64(1800), away.PreviewStart)
	back := Update(away, 1000, 0, 0, weekConfig())
	noop := Commit(back)
	assert.False(t, noop.Click)
	assert.False(t, noop.Changed)

	cancelled := Cancel(dragged)
	assert.Equal(t, PhaseCancelled, cancelled.Phase())
	assert.Equal(t, int64(1000), cancelled.PreviewStart)
	assert.Equal(t, int64(2000), cancelled.PreviewEnd)
	assert.Equal(t, int64(1800), dragged.PreviewStart)

	assert.Nil(t, Cancel(nil))
	assert.Equal(t, Release{}, Commit(nil))
}
