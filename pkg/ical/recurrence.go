package ical

import (
	"bytes"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/emersion/go-ical"
	"github.com/teambition/rrule-go"
)

const defaultMaxOccurrences = 5000

// ErrNoEvent is returned when a payload holds no usable VEVENT.
var ErrNoEvent = errors.New("ical: no VEVENT component")

type RecurrenceExpander struct {
	timeZone       *time.Location
	maxOccurrences int
}

// NewRecurrenceExpander returns an expander that reads floating times in tz
// and stops after maxOccurrences instances per VEVENT (0 means the default).
func NewRecurrenceExpander(tz *time.Location, maxOccurrences int) *RecurrenceExpander {
	if tz == nil {
		tz = time.UTC
	}
	if maxOccurrences <= 0 {
		maxOccurrences = defaultMaxOccurrences
	}
	return &RecurrenceExpander{timeZone: tz, maxOccurrences: maxOccurrences}
}

// Expansion is the result of expanding one payload over a window.
type Expansion struct {
	Events    []*Event
	Truncated bool
}

func decode(data []byte) (*ical.Calendar, error) {
	cal, err := ical.NewDecoder(bytes.NewReader(data)).Decode()
	if err != nil {
		return nil, fmt.Errorf("failed to parse calendar: %w", err)
	}
	return cal, nil
}

func encode(cal *ical.Calendar) ([]byte, error) {
	var buf bytes.Buffer
	if err := ical.NewEncoder(&buf).Encode(cal); err != nil {
		return nil, fmt.Errorf("failed to encode calendar: %w", err)
	}
	return buf.Bytes(), nil
}

// ParseCalendar returns every VEVENT of data. Malformed VEVENTs are skipped.
func (re *RecurrenceExpander) ParseCalendar(data []byte) ([]*Event, error) {
	cal, err := decode(data)
	if err != nil {
		return nil, err
	}

	var events []*Event
	for _, comp := range cal.Children {
		if comp.Name != ical.CompEvent {
			continue
		}

		event, err := parseEvent(comp, re.timeZone)
		if err != nil {
			continue
		}
		events = append(events, event)
	}

	return events, nil
}

// ExpandICS expands one payload into the instances overlapping
// [rangeStart, rangeEnd]. Overrides (VEVENTs with RECURRENCE-ID) replace the
// generated instance they point at; overrides without a master in the same
// payload are returned as they are. Results are ordered by start.
func (re *RecurrenceExpander) ExpandICS(data []byte, rangeStart, rangeEnd time.Time) (*Expansion, error) {
	events, err := re.ParseCalendar(data)
	if err != nil {
		return nil, err
	}
	if len(events) == 0 {
		return nil, ErrNoEvent
	}

	var masters []*Event
	overrides := make(map[string][]*Event)
	for _, ev := range events {
		if ev.IsOverride() {
			overrides[ev.UID] = append(overrides[ev.UID], ev)
			continue
		}
		masters = append(masters, ev)
	}

	out := &Expansion{}
	seenUID := make(map[string]bool)
	for _, master := range masters {
		seenUID[master.UID] = true
		instances, truncated, err := re.expandEvent(master, overrides[master.UID], rangeStart, rangeEnd)
		if err != nil {
			return nil, err
		}
		out.Events = append(out.Events, instances...)
		out.Truncated = out.Truncated || truncated
	}

	for uid, ovs := range overrides {
		if seenUID[uid] {
			continue
		}
		for _, ov := range ovs {
			if timeRangeOverlaps(ov.Start, ov.End, rangeStart, rangeEnd) {
				out.Events = append(out.Events, ov)
			}
		}
	}

	sort.SliceStable(out.Events, func(i, j int) bool {
		return out.Events[i].Start.Before(out.Events[j].Start)
	})
	return out, nil
}

func parseEvent(comp *ical.Component, loc *time.Location) (*Event, error) {
	event := &Event{}

	if uid := comp.Props.Get(ical.PropUID); uid != nil {
		event.UID = uid.Value
	} else {
		return nil, fmt.Errorf("missing UID")
	}

	if summary := comp.Props.Get(ical.PropSummary); summary != nil {
		event.Summary = summary.Value
	}
	if desc := comp.Props.Get(ical.PropDescription); desc != nil {
		event.Description = desc.Value
	}
	if location := comp.Props.Get(ical.PropLocation); location != nil {
		event.Location = location.Value
	}
	if status := comp.Props.Get(ical.PropStatus); status != nil {
		event.Status = strings.ToUpper(strings.TrimSpace(status.Value))
	}
	if seq := comp.Props.Get(ical.PropSequence); seq != nil {
		fmt.Sscanf(seq.Value, "%d", &event.Sequence)
	}

	dtstart := comp.Props.Get(ical.PropDateTimeStart)
	if dtstart == nil {
		return nil, fmt.Errorf("missing DTSTART")
	}

	start, isAllDay, err := propTime(dtstart, loc)
	if err != nil {
		return nil, fmt.Errorf("invalid DTSTART: %w", err)
	}
	event.Start = start
	event.IsAllDay = isAllDay

	if dtend := comp.Props.Get(ical.PropDateTimeEnd); dtend != nil {
		end, _, err := propTime(dtend, loc)
		if err != nil {
			return nil, fmt.Errorf("invalid DTEND: %w", err)
		}
		event.End = end
		event.Duration = end.Sub(start)
	} else if duration := comp.Props.Get(ical.PropDuration); duration != nil {
		dur, err := parseDuration(duration.Value)
		if err != nil {
			return nil, fmt.Errorf("invalid DURATION: %w", err)
		}
		event.Duration = dur
		event.End = start.Add(dur)
	} else {
		if isAllDay {
			event.Duration = 24 * time.Hour
		}
		event.End = start.Add(event.Duration)
	}
	if event.Duration < 0 {
		return nil, fmt.Errorf("DTEND before DTSTART")
	}

	if rrule := comp.Props.Get(ical.PropRecurrenceRule); rrule != nil {
		event.RRule = rrule.Value
		event.IsRecurring = true
	}

	for _, rdateProp := range comp.Props.Values(ical.PropRecurrenceDates) {
		event.RDates = append(event.RDates, parseMultipleDates(rdateProp, loc)...)
	}
	if len(event.RDates) > 0 {
		event.IsRecurring = true
	}

	for _, exdateProp := range comp.Props.Values(ical.PropExceptionDates) {
		event.ExDates = append(event.ExDates, parseMultipleDates(exdateProp, loc)...)
	}

	if recID := comp.Props.Get(ical.PropRecurrenceID); recID != nil {
		recTime, _, err := propTime(recID, loc)
		if err == nil {
			event.RecurrenceID = &recTime
		}
	}

	if org := comp.Props.Get(ical.PropOrganizer); org != nil {
		event.Organizer = trimMailto(org.Value)
	}
	for _, att := range comp.Props.Values(ical.PropAttendee) {
		event.Attendees = append(event.Attendees, trimMailto(att.Value))
	}

	return event, nil
}

func trimMailto(v string) string {
	v = strings.TrimSpace(v)
	if len(v) >= 7 && strings.EqualFold(v[:7], "mailto:") {
		return v[7:]
	}
	return v
}

// ruleFor builds the RRULE of event anchored at its DTSTART.
func ruleFor(event *Event) (*rrule.RRule, error) {
	opt, err := rrule.StrToROption(event.RRule)
	if err != nil {
		return nil, fmt.Errorf("invalid RRULE: %w", err)
	}
	opt.Dtstart = event.Start
	rule, err := rrule.NewRRule(*opt)
	if err != nil {
		return nil, fmt.Errorf("invalid RRULE: %w", err)
	}
	return rule, nil
}

func (re *RecurrenceExpander) expandEvent(event *Event, overrides []*Event, rangeStart, rangeEnd time.Time) ([]*Event, bool, error) {
	if !event.IsRecurring {
		var out []*Event
		if timeRangeOverlaps(event.Start, event.End, rangeStart, rangeEnd) {
			out = append(out, event)
		}
		return out, false, nil
	}

	var instances []time.Time
	if event.RRule != "" {
		rule, err := ruleFor(event)
		if err != nil {
			return nil, false, err
		}
		// Widen by the duration so instances starting before the window but
		// still running inside it are kept.
		instances = append(instances, rule.Between(rangeStart.Add(-event.Duration), rangeEnd, true)...)
	} else {
		instances = append(instances, event.Start)
	}
	instances = append(instances, event.RDates...)
	instances = filterExcludedDates(instances, event.ExDates)

	replaced := make(map[int64]*Event, len(overrides))
	for _, ov := range overrides {
		replaced[ov.RecurrenceID.Unix()] = ov
	}
	excluded := make(map[int64]bool, len(event.ExDates))
	for _, ex := range event.ExDates {
		excluded[ex.Unix()] = true
	}

	seen := make(map[int64]bool, len(instances))
	var filtered []time.Time
	for _, instance := range instances {
		if seen[instance.Unix()] || replaced[instance.Unix()] != nil {
			continue
		}
		seen[instance.Unix()] = true
		if timeRangeOverlaps(instance, instance.Add(event.Duration), rangeStart, rangeEnd) {
			filtered = append(filtered, instance)
		}
	}

	sort.Slice(filtered, func(i, j int) bool {
		return filtered[i].Before(filtered[j])
	})

	truncated := false
	if len(filtered) > re.maxOccurrences {
		filtered = filtered[:re.maxOccurrences]
		truncated = true
	}

	expanded := make([]*Event, 0, len(filtered)+len(overrides))
	for _, instanceTime := range filtered {
		expanded = append(expanded, event.instance(instanceTime))
	}

	for _, ov := range overrides {
		if excluded[ov.RecurrenceID.Unix()] {
			continue
		}
		if timeRangeOverlaps(ov.Start, ov.End, rangeStart, rangeEnd) {
			expanded = append(expanded, ov)
		}
	}

	return expanded, truncated, nil
}

// timeRangeOverlaps treats the event as [start, end) and the window as
// closed. Zero-length events count when they sit inside the window.
func timeRangeOverlaps(eventStart, eventEnd, rangeStart, rangeEnd time.Time) bool {
	if eventStart.After(rangeEnd) {
		return false
	}
	if eventEnd.Equal(eventStart) {
		return !eventStart.Before(rangeStart)
	}
	return eventEnd.After(rangeStart)
}
