package ical

import (
	"strings"
	"time"
)

// Event status values (RFC 5545 §3.8.1.11).
const (
	StatusTentative = "TENTATIVE"
	StatusConfirmed = "CONFIRMED"
	StatusCancelled = "CANCELLED"
)

// Event is one VEVENT as read from a payload, or one generated instance of a
// recurring VEVENT after expansion.
type Event struct {
	UID          string
	Summary      string
	Description  string
	Location     string
	Status       string
	Start        time.Time
	End          time.Time
	Duration     time.Duration
	IsAllDay     bool
	IsRecurring  bool
	RRule        string
	RDates       []time.Time
	ExDates      []time.Time
	RecurrenceID *time.Time

	Organizer string   // Email address of organizer
	Attendees []string // Email addresses of attendees
	Sequence  int
}

// IsCancelled reports whether STATUS is CANCELLED.
func (e *Event) IsCancelled() bool {
	return strings.EqualFold(e.Status, StatusCancelled)
}

// IsOverride reports whether the event carries a RECURRENCE-ID.
func (e *Event) IsOverride() bool {
	return e.RecurrenceID != nil
}

// instance returns a copy of e placed at start, keeping its duration. Generated
// instances carry no RECURRENCE-ID; only overrides do.
func (e *Event) instance(start time.Time) *Event {
	return &Event{
		UID:         e.UID,
		Summary:     e.Summary,
		Description: e.Description,
		Location:    e.Location,
		Status:      e.Status,
		Start:       start,
		End:         start.Add(e.Duration),
		Duration:    e.Duration,
		IsAllDay:    e.IsAllDay,
		Organizer:   e.Organizer,
		Attendees:   e.Attendees,
		Sequence:    e.Sequence,
	}
}
