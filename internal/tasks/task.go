// Package tasks applies event mutations to storage in order and keeps the
// undo log.
package tasks

import (
	"context"
	"errors"
	"time"

	"github.com/sonroyaalmerol/calendar-engine/internal/storage"
)

var (
	ErrQueueClosed   = errors.New("tasks: queue closed")
	ErrNothingToUndo = errors.New("tasks: nothing to undo")
)

type Kind string

const (
	KindSaveEvent   Kind = "save-event"
	KindCreateEvent Kind = "create-event"
)

// EventSnapshot is the state of a record captured before it is mutated.
type EventSnapshot struct {
	ICS             string
	RecurrenceStart int64
	RecurrenceEnd   int64
}

// SnapshotOf copies the undo-relevant fields of ev.
func SnapshotOf(ev *storage.Event) *EventSnapshot {
	return &EventSnapshot{
		ICS:             ev.ICS,
		RecurrenceStart: ev.RecurrenceStart,
		RecurrenceEnd:   ev.RecurrenceEnd,
	}
}

// Task persists Event. When Undo is set the snapshot is pushed to the undo
// log once the write succeeds.
type Task struct {
	ID          string
	Kind        Kind
	Event       *storage.Event
	Undo        *EventSnapshot
	Description string
	CreatedAt   time.Time
}

// Queue accepts batches of tasks. A batch is accepted or rejected as a
// whole and its tasks run in order.
type Queue interface {
	Enqueue(ctx context.Context, ts ...*Task) error
}
