// Package occurrence turns stored event records into concrete, renderable
// occurrences for a time window.
package occurrence

// AllDayThreshold is the minimum length, in seconds, of an all-day occurrence.
const AllDayThreshold = 86400 - 1

// EventOccurrence is one concrete instance of an event. Times are unix
// seconds. Occurrences are rebuilt on every materialization and never
// mutated in place.
type EventOccurrence struct {
	// ID is "{recordID}-e{index}", unique within one materialization.
	ID          string
	EventID     string
	ICSUID      string
	AccountID   string
	CalendarID  string
	Start       int64
	End         int64
	Title       string
	Location    string
	Description string
	IsCancelled bool
	IsException bool
	// IsPreview marks the synthetic occurrence shown while dragging.
	IsPreview bool

	Organizer string
	Attendees []string
}

// IsAllDay is derived from the duration only.
func (o *EventOccurrence) IsAllDay() bool {
	return o.End-o.Start >= AllDayThreshold
}

func (o *EventOccurrence) Duration() int64 {
	return o.End - o.Start
}
