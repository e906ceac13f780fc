package occurrence

import (
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/sonroyaalmerol/calendar-engine/internal/logging"
	"github.com/sonroyaalmerol/calendar-engine/internal/metrics"
	"github.com/sonroyaalmerol/calendar-engine/internal/storage"
	"github.com/sonroyaalmerol/calendar-engine/pkg/ical"
)

type Materializer struct {
	expander *ical.RecurrenceExpander
	logger   zerolog.Logger
}

func NewMaterializer(expander *ical.RecurrenceExpander, logger zerolog.Logger) *Materializer {
	return &Materializer{
		expander: expander,
		logger:   logging.Component(logger, "materializer"),
	}
}

type series struct {
	master     *storage.Event
	exceptions []*storage.Event
}

// groupByICSUID keeps the first-seen order of series so output is stable.
func groupByICSUID(records []*storage.Event) []*series {
	var order []*series
	byUID := make(map[string]*series)
	for _, rec := range records {
		if rec == nil {
			continue
		}
		s, ok := byUID[rec.ICSUID]
		if !ok {
			s = &series{}
			byUID[rec.ICSUID] = s
			order = append(order, s)
		}
		if rec.IsException() {
			s.exceptions = append(s.exceptions, rec)
			continue
		}
		if s.master != nil {
			// A second master for the same UID is treated as its own series.
			dup := &series{master: rec}
			order = append(order, dup)
			continue
		}
		s.master = rec
	}
	return order
}

// Materialize expands records into the occurrences intersecting
// [start, end]. A record that fails to expand is logged and skipped.
func (m *Materializer) Materialize(records []*storage.Event, start, end int64) []EventOccurrence {
	rangeStart := time.Unix(start, 0).UTC()
	rangeEnd := time.Unix(end, 0).UTC()

	var out []EventOccurrence
	for _, s := range groupByICSUID(records) {
		expandedStartTimes := make(map[int64]struct{})
		if s.master != nil {
			occs, err := m.expand(s.master, rangeStart, rangeEnd, false)
			if err != nil {
				m.fail(s.master, err)
			}
			for _, occ := range occs {
				expandedStartTimes[occ.Start] = struct{}{}
			}
			out = append(out, occs...)
		}

		for _, exc := range s.exceptions {
			if _, ok := expandedStartTimes[exc.RecurrenceStart]; ok {
				continue
			}
			occs, err := m.expand(exc, rangeStart, rangeEnd, true)
			if err != nil {
				m.fail(exc, err)
				continue
			}
			out = append(out, occs...)
		}
	}

	metrics.OccurrencesMaterialized.Add(float64(len(out)))
	return out
}

func (m *Materializer) fail(rec *storage.Event, err error) {
	metrics.ExpansionFailures.Inc()
	m.logger.Warn().
		Err(err).
		Str("record_id", rec.ID).
		Str("icsuid", rec.ICSUID).
		Msg("failed to expand event record")
}

func (m *Materializer) expand(rec *storage.Event, rangeStart, rangeEnd time.Time, forceException bool) ([]EventOccurrence, error) {
	exp, err := m.expander.ExpandICS([]byte(rec.ICS), rangeStart, rangeEnd)
	if err != nil {
		return nil, fmt.Errorf("expand %s: %w", rec.ID, err)
	}
	if exp.Truncated {
		metrics.ExpansionTruncated.Inc()
		m.logger.Warn().
			Str("record_id", rec.ID).
			Str("icsuid", rec.ICSUID).
			Int("kept", len(exp.Events)).
			Msg("expansion truncated by occurrence cap")
	}

	occs := make([]EventOccurrence, 0, len(exp.Events))
	for i, ev := range exp.Events {
		occ := EventOccurrence{
			ID:          fmt.Sprintf("%s-e%d", rec.ID, i),
			EventID:     rec.ID,
			ICSUID:      rec.ICSUID,
			AccountID:   rec.AccountID,
			CalendarID:  rec.CalendarID,
			Start:       ev.Start.Unix(),
			End:         ev.End.Unix(),
			Title:       ev.Summary,
			Location:    ev.Location,
			Description: ev.Description,
			IsCancelled: ev.IsCancelled(),
			IsException: forceException || ev.IsOverride(),
			Organizer:   ev.Organizer,
			Attendees:   append([]string(nil), ev.Attendees...),
		}
		if occ.End <= occ.Start {
			m.logger.Debug().
				Str("record_id", rec.ID).
				Int64("start", occ.Start).
				Msg("skipping zero-length occurrence")
			continue
		}
		occs = append(occs, occ)
	}
	return occs, nil
}
