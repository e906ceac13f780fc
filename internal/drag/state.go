// Package drag implements the pointer state machine for moving and resizing
// occurrences. Every function is pure: updates return either the same *State
// or a new one, never mutating their input.
package drag

import (
	"math"

	"github.com/sonroyaalmerol/calendar-engine/internal/occurrence"
)

type Phase string

const (
	PhaseIdle      Phase = "idle"
	PhasePending   Phase = "pending"
	PhaseDragging  Phase = "dragging"
	PhaseCommitted Phase = "committed"
	PhaseCancelled Phase = "cancelled"
)

// State is the live gesture. Only PreviewStart, PreviewEnd and IsDragging
// change while the pointer moves.
type State struct {
	Mode          Mode
	Event         *occurrence.EventOccurrence
	OriginalStart int64
	OriginalEnd   int64
	ClickOffset   int64
	PreviewStart  int64
	PreviewEnd    int64
	IsDragging    bool

	originX, originY float64
	done             Phase
}

// NewState starts a gesture at the pointer-down position.
func NewState(occ *occurrence.EventOccurrence, zone HitZone, mouseTime int64, mouseX, mouseY float64) *State {
	s := &State{
		Mode:          zone.Mode,
		Event:         occ,
		OriginalStart: occ.Start,
		OriginalEnd:   occ.End,
		PreviewStart:  occ.Start,
		PreviewEnd:    occ.End,
		originX:       mouseX,
		originY:       mouseY,
	}
	switch zone.Mode {
	case ModeMove:
		s.ClickOffset = mouseTime - occ.Start
	case ModeResizeEnd:
		s.ClickOffset = mouseTime - occ.End
	}
	return s
}

// Phase reports where the gesture is. A nil state is idle.
func (s *State) Phase() Phase {
	switch {
	case s == nil:
		return PhaseIdle
	case s.done != "":
		return s.done
	case s.IsDragging:
		return PhaseDragging
	default:
		return PhasePending
	}
}

// SnapToInterval rounds ts to the nearest multiple of interval, halves
// rounding up. A non-positive interval leaves ts unchanged.
func SnapToInterval(ts, interval int64) int64 {
	if interval <= 0 {
		return ts
	}
	return floorDiv(ts+interval/2, interval) * interval
}

func floorDiv(a, b int64) int64 {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}

// Update moves the gesture to a new pointer position. It returns s itself
// when the pointer has not yet passed the drag threshold or when the preview
// would not change.
func Update(s *State, mouseTime int64, mouseX, mouseY float64, cfg Config) *State {
	if s == nil || s.done != "" {
		return s
	}
	if !s.IsDragging {
		if math.Hypot(mouseX-s.originX, mouseY-s.originY) < cfg.DragThreshold {
			return s
		}
	}
	if s.Event.IsAllDay() {
		cfg = cfg.forAllDay()
	}

	start, end := s.PreviewStart, s.PreviewEnd
	switch s.Mode {
	case ModeMove:
		start = SnapToInterval(mouseTime-s.ClickOffset, cfg.SnapInterval)
		end = start + (s.OriginalEnd - s.OriginalStart)
	case ModeResizeStart:
		end = s.OriginalEnd
		start = SnapToInterval(min(mouseTime, s.OriginalEnd-cfg.MinDuration), cfg.SnapInterval)
		if end-start < cfg.MinDuration {
			start = end - cfg.MinDuration
		}
	case ModeResizeEnd:
		start = s.OriginalStart
		end = SnapToInterval(max(mouseTime-s.ClickOffset, s.OriginalStart+cfg.MinDuration), cfg.SnapInterval)
		if end-start < cfg.MinDuration {
			end = start + cfg.MinDuration
		}
	}

	if s.IsDragging && start == s.PreviewStart && end == s.PreviewEnd {
		return s
	}
	next := *s
	next.IsDragging = true
	next.PreviewStart, next.PreviewEnd = start, end
	return &next
}

// Release outcome. Click is set when the pointer never passed the threshold;
// Changed is set when the preview differs from the original times.
type Release struct {
	State   *State
	Click   bool
	Changed bool
	Start   int64
	End     int64
}

// Commit ends the gesture on pointer-up.
func Commit(s *State) Release {
	if s == nil {
		return Release{}
	}
	next := *s
	next.done = PhaseCommitted
	r := Release{State: &next, Start: s.PreviewStart, End: s.PreviewEnd}
	if !s.IsDragging {
		r.Click = true
		return r
	}
	r.Changed = s.PreviewStart != s.OriginalStart || s.PreviewEnd != s.OriginalEnd
	return r
}

// Cancel abandons the gesture and restores the original times.
func Cancel(s *State) *State {
	if s == nil {
		return nil
	}
	next := *s
	next.PreviewStart, next.PreviewEnd = s.OriginalStart, s.OriginalEnd
	next.done = PhaseCancelled
	return &next
}
