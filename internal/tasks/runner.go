package tasks

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/sonroyaalmerol/calendar-engine/internal/logging"
	"github.com/sonroyaalmerol/calendar-engine/internal/metrics"
	"github.com/sonroyaalmerol/calendar-engine/internal/storage"
)

// Store is the part of storage.Store the runner writes to.
type Store interface {
	GetEvent(ctx context.Context, id string) (*storage.Event, error)
	PutEvent(ctx context.Context, ev *storage.Event) error
	PushUndo(ctx context.Context, entry *storage.UndoEntry) error
	PopUndo(ctx context.Context) (*storage.UndoEntry, error)
}

// Runner is an in-process queue drained by a single worker so tasks are
// applied in submission order. Each Enqueue call is one batch: its tasks are
// accepted or rejected together and applied back to back.
type Runner struct {
	store  Store
	logger zerolog.Logger
	queue  chan []*Task
	halted chan struct{}

	mu      sync.RWMutex
	closed  bool
	started bool
	wg      sync.WaitGroup
}

func NewRunner(store Store, size int, logger zerolog.Logger) *Runner {
	if size <= 0 {
		size = 64
	}
	return &Runner{
		store:  store,
		logger: logging.Component(logger, "tasks"),
		queue:  make(chan []*Task, size),
		halted: make(chan struct{}),
	}
}

// Start launches the worker. Once ctx is cancelled the runner refuses new
// tasks, applies the ones it already accepted and the worker exits.
func (r *Runner) Start(ctx context.Context) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.started || r.closed {
		return
	}
	r.started = true
	r.wg.Add(1)
	go r.loop(ctx)
}

func (r *Runner) loop(ctx context.Context) {
	defer r.wg.Done()
	// Accepted tasks are written even when ctx ends mid-batch.
	applyCtx := context.WithoutCancel(ctx)
	r.logger.Debug().Msg("task worker started")
	for {
		select {
		case <-ctx.Done():
			r.halt(applyCtx)
			return
		case batch, ok := <-r.queue:
			if !ok {
				r.logger.Debug().Msg("task queue drained")
				return
			}
			r.applyBatch(applyCtx, batch)
		}
	}
}

// halt stops accepting tasks and applies whatever is still queued.
func (r *Runner) halt(ctx context.Context) {
	close(r.halted)
	// Wait out Enqueue calls that passed the closed check.
	r.mu.Lock()
	r.mu.Unlock()

	pending := 0
	for {
		select {
		case batch, ok := <-r.queue:
			if !ok {
				r.logger.Info().Int("applied", pending).Msg("task worker stopped")
				return
			}
			pending += len(batch)
			r.applyBatch(ctx, batch)
		default:
			r.logger.Info().Int("applied", pending).Msg("task worker stopped")
			return
		}
	}
}

func (r *Runner) isHalted() bool {
	select {
	case <-r.halted:
		return true
	default:
		return false
	}
}

// applyBatch applies tasks in order and abandons the rest of the batch after
// the first failure.
func (r *Runner) applyBatch(ctx context.Context, batch []*Task) {
	for i, t := range batch {
		if err := r.Apply(ctx, t); err != nil {
			if skipped := len(batch) - i - 1; skipped > 0 {
				r.logger.Warn().Int("skipped", skipped).Msg("rest of batch skipped")
			}
			return
		}
	}
}

// Enqueue submits ts as one batch, blocking while the queue is full. Either
// every task is accepted or none is.
func (r *Runner) Enqueue(ctx context.Context, ts ...*Task) error {
	if len(ts) == 0 {
		return fmt.Errorf("tasks: empty batch")
	}
	now := time.Now().UTC()
	for _, t := range ts {
		if t == nil || t.Event == nil {
			return fmt.Errorf("tasks: task without event")
		}
		if t.ID == "" {
			t.ID = uuid.New().String()
		}
		if t.CreatedAt.IsZero() {
			t.CreatedAt = now
		}
	}

	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.closed || r.isHalted() {
		return ErrQueueClosed
	}
	select {
	case r.queue <- ts:
		return nil
	case <-r.halted:
		return ErrQueueClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Stop refuses new tasks and waits for queued ones to be applied.
func (r *Runner) Stop() {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	r.closed = true
	close(r.queue)
	started := r.started
	r.mu.Unlock()

	if !started {
		// No worker: apply what was queued inline.
		for batch := range r.queue {
			r.applyBatch(context.Background(), batch)
		}
		return
	}
	r.wg.Wait()
}

// Apply writes one task to the store.
func (r *Runner) Apply(ctx context.Context, t *Task) error {
	log := r.logger.With().
		Str("task_id", t.ID).
		Str("kind", string(t.Kind)).
		Str("event_id", t.Event.ID).
		Logger()

	err := r.apply(ctx, t)
	result := "ok"
	if err != nil {
		result = "error"
		log.Error().Err(err).Msg("task failed")
	} else {
		log.Debug().Str("description", t.Description).Msg("task applied")
	}
	metrics.Tasks.WithLabelValues(string(t.Kind), result).Inc()
	return err
}

func (r *Runner) apply(ctx context.Context, t *Task) error {
	switch t.Kind {
	case KindSaveEvent, KindCreateEvent:
	default:
		return fmt.Errorf("unknown task kind %q", t.Kind)
	}

	if err := r.store.PutEvent(ctx, t.Event); err != nil {
		return fmt.Errorf("put event: %w", err)
	}
	if t.Undo == nil {
		return nil
	}
	entry := &storage.UndoEntry{
		EventID:         t.Event.ID,
		ICS:             t.Undo.ICS,
		RecurrenceStart: t.Undo.RecurrenceStart,
		RecurrenceEnd:   t.Undo.RecurrenceEnd,
		Description:     t.Description,
	}
	if err := r.store.PushUndo(ctx, entry); err != nil {
		return fmt.Errorf("push undo: %w", err)
	}
	return nil
}

// Undo restores the record named by the most recent undo entry and returns
// it.
func (r *Runner) Undo(ctx context.Context) (*storage.Event, error) {
	ev, err := r.undo(ctx)
	switch {
	case errors.Is(err, ErrNothingToUndo):
		metrics.Undo.WithLabelValues("empty").Inc()
	case err != nil:
		metrics.Undo.WithLabelValues("error").Inc()
	default:
		metrics.Undo.WithLabelValues("ok").Inc()
	}
	return ev, err
}

func (r *Runner) undo(ctx context.Context) (*storage.Event, error) {
	entry, err := r.store.PopUndo(ctx)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, ErrNothingToUndo
	}
	if err != nil {
		return nil, err
	}

	ev, err := r.store.GetEvent(ctx, entry.EventID)
	if err != nil {
		return nil, fmt.Errorf("undo %q: %w", entry.Description, err)
	}
	restored := ev.Clone()
	restored.ICS = entry.ICS
	restored.RecurrenceStart = entry.RecurrenceStart
	restored.RecurrenceEnd = entry.RecurrenceEnd
	if err := r.store.PutEvent(ctx, restored); err != nil {
		return nil, fmt.Errorf("undo %q: %w", entry.Description, err)
	}

	r.logger.Info().
		Str("event_id", restored.ID).
		Str("description", entry.Description).
		Msg("undo applied")
	return restored, nil
}
