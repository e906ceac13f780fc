package occurrence

import (
	"context"
	"sync"

	"github.com/rs/zerolog"
	"github.com/sonroyaalmerol/calendar-engine/internal/logging"
	"github.com/sonroyaalmerol/calendar-engine/internal/storage"
)

// RecordSource returns the records whose cached bounds intersect a window.
type RecordSource interface {
	ListEventsInRange(ctx context.Context, calendarIDs []string, start, end int64) ([]*storage.Event, error)
}

// Window is a closed interval of unix seconds over a set of calendars.
// Empty CalendarIDs means every calendar.
type Window struct {
	CalendarIDs []string
	Start       int64
	End         int64
}

// Result is delivered once per subscription.
type Result struct {
	Window      Window
	Occurrences []EventOccurrence
	Err         error
}

// Feed runs at most one window query at a time. Subscribing again cancels
// the previous query and its result is never delivered.
type Feed struct {
	source       RecordSource
	materializer *Materializer
	logger       zerolog.Logger

	mu     sync.Mutex
	gen    uint64
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewFeed(source RecordSource, materializer *Materializer, logger zerolog.Logger) *Feed {
	return &Feed{
		source:       source,
		materializer: materializer,
		logger:       logging.Component(logger, "feed"),
	}
}

// Load queries and materializes one window synchronously.
func (f *Feed) Load(ctx context.Context, w Window) ([]EventOccurrence, error) {
	records, err := f.source.ListEventsInRange(ctx, w.CalendarIDs, w.Start, w.End)
	if err != nil {
		return nil, err
	}
	return f.materializer.Materialize(records, w.Start, w.End), nil
}

// Subscribe disposes the current subscription, if any, and starts loading w
// in the background. deliver is called at most once, and only while the
// subscription is still current. It runs with the feed locked and must not
// call back into the Feed.
func (f *Feed) Subscribe(ctx context.Context, w Window, deliver func(Result)) {
	f.mu.Lock()
	if f.cancel != nil {
		f.cancel()
	}
	f.gen++
	gen := f.gen
	subCtx, cancel := context.WithCancel(ctx)
	f.cancel = cancel
	f.wg.Add(1)
	f.mu.Unlock()

	go func() {
		defer f.wg.Done()
		occs, err := f.Load(subCtx, w)

		f.mu.Lock()
		defer f.mu.Unlock()
		if gen != f.gen || subCtx.Err() != nil {
			f.logger.Debug().
				Uint64("generation", gen).
				Msg("dropping superseded result")
			return
		}
		deliver(Result{Window: w, Occurrences: occs, Err: err})
	}()
}

// Close cancels the current subscription and waits for background loads to
// finish.
func (f *Feed) Close() {
	f.mu.Lock()
	if f.cancel != nil {
		f.cancel()
		f.cancel = nil
	}
	f.gen++
	f.mu.Unlock()
	f.wg.Wait()
}
