package drag

import "github.com/sonroyaalmerol/calendar-engine/internal/occurrence"

// CalendarAccess answers whether a calendar rejects writes.
type CalendarAccess interface {
	IsReadOnly(calendarID string) bool
}

// CanDragEvent rejects cancelled occurrences, previews and occurrences in
// read-only calendars. A nil access allows every calendar.
func CanDragEvent(occ *occurrence.EventOccurrence, access CalendarAccess) bool {
	if occ == nil || occ.IsCancelled || occ.IsPreview {
		return false
	}
	if access != nil && access.IsReadOnly(occ.CalendarID) {
		return false
	}
	return true
}

// PreviewOccurrence is the synthetic occurrence drawn at the preview times.
func PreviewOccurrence(s *State) occurrence.EventOccurrence {
	p := *s.Event
	p.ID = s.Event.ID + "-preview"
	p.Start, p.End = s.PreviewStart, s.PreviewEnd
	p.IsPreview = true
	p.Attendees = append([]string(nil), s.Event.Attendees...)
	return p
}
