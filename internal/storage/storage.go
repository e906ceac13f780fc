package storage

import (
	"context"
	"errors"
	"time"
)

var ErrNotFound = errors.New("storage: not found")

type Calendar struct {
	ID          string
	AccountID   string
	URI         string
	DisplayName string
	Color       string
	ReadOnly    bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Event is a stored source record: one ICS payload plus the cached scalar
// bounds used to pre-filter before expansion. Masters and the exceptions of
// one series share ICSUID; RecurrenceID is set only on exception records.
type Event struct {
	ID              string
	AccountID       string
	CalendarID      string
	ICS             string
	ICSUID          string
	RecurrenceID    string
	RecurrenceStart int64
	RecurrenceEnd   int64
	UpdatedAt       time.Time
}

// IsException reports whether the record overrides one occurrence of a series.
func (e *Event) IsException() bool {
	return e.RecurrenceID != ""
}

// Clone returns a copy that can be mutated without touching e.
func (e *Event) Clone() *Event {
	cp := *e
	return &cp
}

// UndoEntry restores an event record to a previous payload.
type UndoEntry struct {
	ID              string
	EventID         string
	ICS             string
	RecurrenceStart int64
	RecurrenceEnd   int64
	Description     string
	CreatedAt       time.Time
}

type Store interface {
	Close()
	// Calendars
	CreateCalendar(ctx context.Context, c *Calendar) error
	GetCalendar(ctx context.Context, id string) (*Calendar, error)
	ListCalendars(ctx context.Context, accountID string) ([]*Calendar, error)

	// Events
	GetEvent(ctx context.Context, id string) (*Event, error)
	PutEvent(ctx context.Context, ev *Event) error
	DeleteEvent(ctx context.Context, id string) error
	// ListEventsInRange returns records whose cached bounds intersect
	// [start, end]. An empty calendarIDs matches every calendar.
	ListEventsInRange(ctx context.Context, calendarIDs []string, start, end int64) ([]*Event, error)
	ListEventsByICSUID(ctx context.Context, calendarID, icsuid string) ([]*Event, error)

	// Undo log
	PushUndo(ctx context.Context, entry *UndoEntry) error
	PopUndo(ctx context.Context) (*UndoEntry, error)
}
