// Package edit applies a time change to an event record, asking whether a
// change to a recurring series targets one occurrence or all of them.
package edit

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/sonroyaalmerol/calendar-engine/internal/logging"
	"github.com/sonroyaalmerol/calendar-engine/internal/metrics"
	"github.com/sonroyaalmerol/calendar-engine/internal/storage"
	"github.com/sonroyaalmerol/calendar-engine/internal/tasks"
	"github.com/sonroyaalmerol/calendar-engine/pkg/ical"
)

var (
	ErrInvalidRange = errors.New("edit: end must be after start")
	ErrUnknownScope = errors.New("edit: unknown recurring edit scope")
)

type Scope string

const (
	ScopeThisOccurrence Scope = "this-occurrence"
	ScopeAllOccurrences Scope = "all-occurrences"
	ScopeCancel         Scope = "cancel"
)

// ParseScope accepts the scope names and their short forms.
func ParseScope(s string) (Scope, error) {
	switch s {
	case string(ScopeThisOccurrence), "this", "one":
		return ScopeThisOccurrence, nil
	case string(ScopeAllOccurrences), "all":
		return ScopeAllOccurrences, nil
	case string(ScopeCancel), "":
		return ScopeCancel, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownScope, s)
}

// TimeChangeOptions describes one requested change. Times are unix seconds.
// OriginalStart and OriginalEnd are the displayed bounds of the occurrence
// being changed; a zero OriginalEnd keeps the occurrence length.
type TimeChangeOptions struct {
	Event         *storage.Event
	OriginalStart int64
	OriginalEnd   int64
	NewStart      int64
	NewEnd        int64
	AllDay        bool
	Description   string
}

// Confirmer asks the user which part of a series to change. It may block.
type Confirmer interface {
	ConfirmRecurringEdit(ctx context.Context, opts TimeChangeOptions) (Scope, error)
}

type ConfirmFunc func(ctx context.Context, opts TimeChangeOptions) (Scope, error)

func (f ConfirmFunc) ConfirmRecurringEdit(ctx context.Context, opts TimeChangeOptions) (Scope, error) {
	return f(ctx, opts)
}

// Result of a change. Cancelled is set, with Success false, when the user
// dismissed the recurring edit prompt.
type Result struct {
	Success        bool
	Cancelled      bool
	MasterEvent    *storage.Event
	ExceptionEvent *storage.Event
}

// Coordinator never writes to storage itself: it prepares the new records
// and hands them to the queue once every payload rewrite has succeeded.
type Coordinator struct {
	editor  *ical.Editor
	queue   tasks.Queue
	confirm Confirmer
	logger  zerolog.Logger
}

func NewCoordinator(editor *ical.Editor, queue tasks.Queue, confirm Confirmer, logger zerolog.Logger) *Coordinator {
	return &Coordinator{
		editor:  editor,
		queue:   queue,
		confirm: confirm,
		logger:  logging.Component(logger, "edit"),
	}
}

func (c *Coordinator) at(unix int64) time.Time {
	return time.Unix(unix, 0).In(c.editor.Location)
}

// ChangeEventTime applies opts. Payload errors are returned unchanged and
// leave the queue untouched.
func (c *Coordinator) ChangeEventTime(ctx context.Context, opts TimeChangeOptions) (*Result, error) {
	if opts.Event == nil {
		return nil, fmt.Errorf("edit: no event")
	}
	if opts.NewEnd <= opts.NewStart {
		return nil, ErrInvalidRange
	}

	ev := opts.Event
	recurring := false
	if !ev.IsException() {
		var err error
		recurring, err = c.editor.IsRecurring([]byte(ev.ICS))
		if err != nil {
			return nil, err
		}
	}
	if !recurring {
		return c.changeSingle(ctx, opts)
	}

	if c.confirm == nil {
		return nil, fmt.Errorf("edit: recurring event %s needs a confirmer", ev.ID)
	}
	scope, err := c.confirm.ConfirmRecurringEdit(ctx, opts)
	if err != nil {
		return nil, err
	}
	metrics.RecurringEdits.WithLabelValues(string(scope)).Inc()

	switch scope {
	case ScopeCancel:
		c.logger.Debug().Str("event_id", ev.ID).Msg("recurring edit cancelled")
		return &Result{Cancelled: true}, nil
	case ScopeThisOccurrence:
		return c.changeOccurrence(ctx, opts)
	case ScopeAllOccurrences:
		return c.changeSeries(ctx, opts)
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownScope, scope)
}

func (c *Coordinator) changeSingle(ctx context.Context, opts TimeChangeOptions) (*Result, error) {
	ev := opts.Event
	snapshot := tasks.SnapshotOf(ev)

	data, err := c.editor.SetTimes([]byte(ev.ICS), c.at(opts.NewStart), c.at(opts.NewEnd), opts.AllDay)
	if err != nil {
		return nil, err
	}
	updated := ev.Clone()
	updated.ICS = string(data)
	updated.RecurrenceStart, updated.RecurrenceEnd, err = c.editor.Bounds(data)
	if err != nil {
		return nil, err
	}

	if err := c.save(ctx, updated, snapshot, opts.Description); err != nil {
		return nil, err
	}
	return &Result{Success: true, MasterEvent: updated}, nil
}

// changeOccurrence excludes the occurrence from the master and creates an
// exception record for it. Only the master change is undoable.
func (c *Coordinator) changeOccurrence(ctx context.Context, opts TimeChangeOptions) (*Result, error) {
	ev := opts.Event
	snapshot := tasks.SnapshotOf(ev)

	split, err := c.editor.SplitOccurrence([]byte(ev.ICS), c.at(opts.OriginalStart), c.at(opts.NewStart), c.at(opts.NewEnd), opts.AllDay)
	if err != nil {
		return nil, err
	}

	master := ev.Clone()
	master.ICS = string(split.MasterICS)

	exception := &storage.Event{
		ID:              uuid.New().String(),
		AccountID:       ev.AccountID,
		CalendarID:      ev.CalendarID,
		ICS:             string(split.ExceptionICS),
		ICSUID:          ev.ICSUID,
		RecurrenceID:    split.RecurrenceID,
		RecurrenceStart: opts.NewStart,
		RecurrenceEnd:   opts.NewEnd,
	}

	// One batch: the EXDATE never lands without the exception that
	// replaces it.
	if err := c.queue.Enqueue(ctx,
		&tasks.Task{
			Kind:        tasks.KindSaveEvent,
			Event:       master,
			Undo:        snapshot,
			Description: opts.Description,
		},
		&tasks.Task{
			Kind:        tasks.KindCreateEvent,
			Event:       exception,
			Description: opts.Description,
		},
	); err != nil {
		return nil, err
	}

	c.logger.Info().
		Str("event_id", ev.ID).
		Str("exception_id", exception.ID).
		Str("recurrence_id", split.RecurrenceID).
		Msg("occurrence split from series")
	return &Result{Success: true, MasterEvent: master, ExceptionEvent: exception}, nil
}

// changeSeries shifts the whole series by the change applied to the dragged
// occurrence.
func (c *Coordinator) changeSeries(ctx context.Context, opts TimeChangeOptions) (*Result, error) {
	ev := opts.Event
	snapshot := tasks.SnapshotOf(ev)

	startDelta := time.Duration(opts.NewStart-opts.OriginalStart) * time.Second
	endDelta := startDelta
	if opts.OriginalEnd != 0 {
		endDelta = time.Duration(opts.NewEnd-opts.OriginalEnd) * time.Second
	}

	data, err := c.editor.ShiftSeries([]byte(ev.ICS), startDelta, endDelta)
	if err != nil {
		return nil, err
	}
	updated := ev.Clone()
	updated.ICS = string(data)
	updated.RecurrenceStart, updated.RecurrenceEnd, err = c.editor.Bounds(data)
	if err != nil {
		return nil, err
	}

	if err := c.save(ctx, updated, snapshot, opts.Description); err != nil {
		return nil, err
	}
	return &Result{Success: true, MasterEvent: updated}, nil
}

func (c *Coordinator) save(ctx context.Context, ev *storage.Event, undo *tasks.EventSnapshot, description string) error {
	return c.queue.Enqueue(ctx, &tasks.Task{
		Kind:        tasks.KindSaveEvent,
		Event:       ev,
		Undo:        undo,
		Description: description,
	})
}
