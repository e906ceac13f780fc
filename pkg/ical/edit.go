package ical

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/emersion/go-ical"
	"github.com/teambition/rrule-go"
)

// MaxRecurrenceEnd is the cached upper bound stored for open-ended series
// (9999-12-31T23:59:59Z).
const MaxRecurrenceEnd int64 = 253402300799

var (
	ErrNotRecurring    = errors.New("ical: event is not recurring")
	ErrNotAnOccurrence = errors.New("ical: time is not an occurrence of the series")
)

// Editor rewrites event payloads. Every rewritten payload gets a fresh
// DTSTAMP, an incremented SEQUENCE and, when ProdID is set, a new PRODID.
type Editor struct {
	ProdID   string
	Location *time.Location
}

func NewEditor(prodID string, loc *time.Location) *Editor {
	if loc == nil {
		loc = time.UTC
	}
	return &Editor{ProdID: prodID, Location: loc}
}

// Info summarizes a payload for storage.
type Info struct {
	UID          string
	RecurrenceID string // empty for masters
	Recurring    bool
	Start        int64
	End          int64
}

// primary returns the master VEVENT, or the first VEVENT when the payload
// only holds overrides.
func primary(cal *ical.Calendar) (*ical.Component, error) {
	var first *ical.Component
	for _, comp := range cal.Children {
		if comp.Name != ical.CompEvent {
			continue
		}
		if comp.Props.Get(ical.PropRecurrenceID) == nil {
			return comp, nil
		}
		if first == nil {
			first = comp
		}
	}
	if first == nil {
		return nil, ErrNoEvent
	}
	return first, nil
}

func (ed *Editor) Describe(data []byte) (*Info, error) {
	cal, err := decode(data)
	if err != nil {
		return nil, err
	}
	comp, err := primary(cal)
	if err != nil {
		return nil, err
	}
	ev, err := parseEvent(comp, ed.Location)
	if err != nil {
		return nil, err
	}
	info := &Info{UID: ev.UID, Recurring: ev.IsRecurring}
	if rid := comp.Props.Get(ical.PropRecurrenceID); rid != nil && ev.RecurrenceID != nil {
		info.RecurrenceID = formatLike(rid, *ev.RecurrenceID)
	}
	info.Start, info.End, err = ed.bounds(cal)
	if err != nil {
		return nil, err
	}
	return info, nil
}

// IsRecurring reports whether the master VEVENT carries an RRULE or RDATE.
func (ed *Editor) IsRecurring(data []byte) (bool, error) {
	cal, err := decode(data)
	if err != nil {
		return false, err
	}
	comp, err := primary(cal)
	if err != nil {
		return false, err
	}
	if comp.Props.Get(ical.PropRecurrenceID) != nil {
		return false, nil
	}
	return comp.Props.Get(ical.PropRecurrenceRule) != nil ||
		comp.Props.Get(ical.PropRecurrenceDates) != nil, nil
}

// Bounds returns the cached recurrenceStart/recurrenceEnd of a payload in
// unix seconds. Open-ended series end at MaxRecurrenceEnd.
func (ed *Editor) Bounds(data []byte) (int64, int64, error) {
	cal, err := decode(data)
	if err != nil {
		return 0, 0, err
	}
	return ed.bounds(cal)
}

func (ed *Editor) bounds(cal *ical.Calendar) (int64, int64, error) {
	var start, end time.Time
	found := false
	widen := func(s, e time.Time) {
		if !found || s.Before(start) {
			start = s
		}
		if !found || e.After(end) {
			end = e
		}
		found = true
	}
	openEnded := false

	for _, comp := range cal.Children {
		if comp.Name != ical.CompEvent {
			continue
		}
		ev, err := parseEvent(comp, ed.Location)
		if err != nil {
			return 0, 0, err
		}
		widen(ev.Start, ev.End)
		for _, rd := range ev.RDates {
			widen(rd, rd.Add(ev.Duration))
		}
		if ev.RRule == "" || ev.IsOverride() {
			continue
		}
		opt, err := rrule.StrToROption(ev.RRule)
		if err != nil {
			return 0, 0, fmt.Errorf("invalid RRULE: %w", err)
		}
		if opt.Count == 0 && opt.Until.IsZero() {
			openEnded = true
			continue
		}
		rule, err := ruleFor(ev)
		if err != nil {
			return 0, 0, err
		}
		if all := rule.All(); len(all) > 0 {
			last := all[len(all)-1]
			widen(last, last.Add(ev.Duration))
		}
	}
	if !found {
		return 0, 0, ErrNoEvent
	}
	if openEnded {
		return start.Unix(), MaxRecurrenceEnd, nil
	}
	return start.Unix(), end.Unix(), nil
}

// SetTimes moves the primary VEVENT to [start, end).
func (ed *Editor) SetTimes(data []byte, start, end time.Time, allDay bool) ([]byte, error) {
	cal, err := decode(data)
	if err != nil {
		return nil, err
	}
	comp, err := primary(cal)
	if err != nil {
		return nil, err
	}
	setEventTimes(comp, start, end, allDay)
	touch(comp)
	setProdID(cal, ed.ProdID)
	return encode(cal)
}

func setEventTimes(comp *ical.Component, start, end time.Time, allDay bool) {
	dtstart := comp.Props.Get(ical.PropDateTimeStart)
	if dtstart == nil {
		dtstart = ical.NewProp(ical.PropDateTimeStart)
		comp.Props.Set(dtstart)
		dtstart = comp.Props.Get(ical.PropDateTimeStart)
	}
	setTime(dtstart, start, allDay)

	dtend := ical.NewProp(ical.PropDateTimeEnd)
	if tzid := dtstart.Params.Get(paramTZID); tzid != "" {
		dtend.Params.Set(paramTZID, tzid)
	}
	setTime(dtend, end, allDay)
	comp.Props.Del(ical.PropDuration)
	comp.Props.Set(dtend)
}

// Split is the outcome of pulling one occurrence out of a series.
type Split struct {
	MasterICS    []byte
	ExceptionICS []byte
	RecurrenceID string
}

// SplitOccurrence excludes the occurrence displayed at originalStart from the
// series (EXDATE) and returns a standalone exception payload for it, moved to
// [newStart, newEnd).
func (ed *Editor) SplitOccurrence(data []byte, originalStart, newStart, newEnd time.Time, allDay bool) (*Split, error) {
	cal, err := decode(data)
	if err != nil {
		return nil, err
	}
	master, err := primary(cal)
	if err != nil {
		return nil, err
	}
	if master.Props.Get(ical.PropRecurrenceID) != nil {
		return nil, ErrNotRecurring
	}
	ev, err := parseEvent(master, ed.Location)
	if err != nil {
		return nil, err
	}
	if !ev.IsRecurring {
		return nil, ErrNotRecurring
	}
	dtstart := master.Props.Get(ical.PropDateTimeStart)

	// An occurrence already overridden inside the payload is displayed at
	// the override's DTSTART; its identity is the override's RECURRENCE-ID.
	base := master
	rid := originalStart
	override := findOverride(cal, ev.UID, originalStart, ed.Location)
	if override != nil {
		base = override
		ridProp := override.Props.Get(ical.PropRecurrenceID)
		rid, _, err = propTime(ridProp, ed.Location)
		if err != nil {
			return nil, fmt.Errorf("invalid RECURRENCE-ID: %w", err)
		}
		removeComponent(cal, override)
	} else {
		ok, err := isInstance(ev, originalStart)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrNotAnOccurrence, originalStart.UTC().Format(utcLayout))
		}
	}

	master.Props.Add(newTimeProp(ical.PropExceptionDates, dtstart, rid))
	touch(master)
	setProdID(cal, ed.ProdID)
	masterICS, err := encode(cal)
	if err != nil {
		return nil, err
	}

	exception := &ical.Component{
		Name:  ical.CompEvent,
		Props: cloneProps(base.Props),
	}
	exception.Props.Del(ical.PropRecurrenceRule)
	exception.Props.Del(ical.PropRecurrenceDates)
	exception.Props.Del(ical.PropExceptionDates)
	exception.Props.Set(newTimeProp(ical.PropRecurrenceID, dtstart, rid))
	setEventTimes(exception, newStart, newEnd, allDay)
	touch(exception)

	excCal := &ical.Calendar{
		Component: &ical.Component{
			Name:  ical.CompCalendar,
			Props: cloneProps(cal.Props),
		},
	}
	for _, child := range cal.Children {
		if child.Name == ical.CompTimezone {
			excCal.Children = append(excCal.Children, child)
		}
	}
	excCal.Children = append(excCal.Children, exception)
	exceptionICS, err := encode(excCal)
	if err != nil {
		return nil, err
	}

	return &Split{
		MasterICS:    masterICS,
		ExceptionICS: exceptionICS,
		RecurrenceID: formatLike(dtstart, rid),
	}, nil
}

func findOverride(cal *ical.Calendar, uid string, start time.Time, loc *time.Location) *ical.Component {
	for _, comp := range cal.Children {
		if comp.Name != ical.CompEvent || comp.Props.Get(ical.PropRecurrenceID) == nil {
			continue
		}
		ev, err := parseEvent(comp, loc)
		if err != nil || ev.UID != uid {
			continue
		}
		if ev.Start.Equal(start) {
			return comp
		}
	}
	return nil
}

func removeComponent(cal *ical.Calendar, target *ical.Component) {
	children := cal.Children[:0]
	for _, child := range cal.Children {
		if child != target {
			children = append(children, child)
		}
	}
	cal.Children = children
}

func isInstance(ev *Event, at time.Time) (bool, error) {
	for _, ex := range ev.ExDates {
		if ex.Equal(at) {
			return false, nil
		}
	}
	if ev.Start.Equal(at) {
		return true, nil
	}
	for _, rd := range ev.RDates {
		if rd.Equal(at) {
			return true, nil
		}
	}
	if ev.RRule == "" {
		return false, nil
	}
	rule, err := ruleFor(ev)
	if err != nil {
		return false, err
	}
	return len(rule.Between(at, at, true)) > 0, nil
}

// ShiftSeries moves a whole series: DTSTART by startDelta, DTEND (or
// DURATION) so the end moves by endDelta, and every recurrence reference
// (EXDATE, RDATE, RRULE UNTIL, RECURRENCE-ID of embedded overrides) by
// startDelta. When the start changes calendar day, the RRULE's BYDAY,
// BYMONTHDAY and BYYEARDAY move by the same number of days. Embedded
// overrides keep their offset from the instance they replace.
func (ed *Editor) ShiftSeries(data []byte, startDelta, endDelta time.Duration) ([]byte, error) {
	cal, err := decode(data)
	if err != nil {
		return nil, err
	}
	if _, err := primary(cal); err != nil {
		return nil, err
	}

	for _, comp := range cal.Children {
		if comp.Name != ical.CompEvent {
			continue
		}
		if rid := comp.Props.Get(ical.PropRecurrenceID); rid != nil {
			if err := shiftProp(rid, startDelta, ed.Location); err != nil {
				return nil, fmt.Errorf("invalid RECURRENCE-ID: %w", err)
			}
			if _, err := shiftTimes(comp, startDelta, endDelta, ed.Location); err != nil {
				return nil, err
			}
			touch(comp)
			continue
		}

		days, err := shiftTimes(comp, startDelta, endDelta, ed.Location)
		if err != nil {
			return nil, err
		}
		for _, name := range []string{ical.PropExceptionDates, ical.PropRecurrenceDates} {
			for i, p := range comp.Props[name] {
				comp.Props[name][i] = shiftDates(p, startDelta, ed.Location)
			}
		}
		if rr := comp.Props.Get(ical.PropRecurrenceRule); rr != nil {
			rr.Value = shiftRuleDays(shiftUntil(rr.Value, startDelta), days)
		}
		touch(comp)
	}

	setProdID(cal, ed.ProdID)
	return encode(cal)
}

// shiftTimes moves DTSTART by startDelta and the end by endDelta. It returns
// how many calendar days DTSTART moved in its own time zone.
func shiftTimes(comp *ical.Component, startDelta, endDelta time.Duration, loc *time.Location) (int, error) {
	days := 0
	if dtstart := comp.Props.Get(ical.PropDateTimeStart); dtstart != nil {
		before, _, err := propTime(dtstart, loc)
		if err != nil {
			return 0, fmt.Errorf("invalid DTSTART: %w", err)
		}
		dtstart.Value = formatLike(dtstart, before.Add(startDelta))
		days = civilDays(before, before.Add(startDelta))
	}
	if dtend := comp.Props.Get(ical.PropDateTimeEnd); dtend != nil {
		if err := shiftProp(dtend, endDelta, loc); err != nil {
			return 0, fmt.Errorf("invalid DTEND: %w", err)
		}
	} else if dur := comp.Props.Get(ical.PropDuration); dur != nil {
		d, err := parseDuration(dur.Value)
		if err != nil {
			return 0, fmt.Errorf("invalid DURATION: %w", err)
		}
		dur.Value = formatDuration(d + endDelta - startDelta)
	}
	return days, nil
}

// civilDays counts the calendar days between from and to, both read in
// from's location.
func civilDays(from, to time.Time) int {
	y1, m1, d1 := from.Date()
	y2, m2, d2 := to.In(from.Location()).Date()
	a := time.Date(y1, m1, d1, 0, 0, 0, 0, time.UTC)
	b := time.Date(y2, m2, d2, 0, 0, 0, 0, time.UTC)
	return int(b.Sub(a) / (24 * time.Hour))
}

var ruleWeekdays = []string{"MO", "TU", "WE", "TH", "FR", "SA", "SU"}

// shiftRuleDays moves the day selectors of an RRULE by days. Ordinal
// prefixes of BYDAY ("1MO", "-1FR") are kept. Month and year days wrap
// within 31 and 366 and keep their sign.
func shiftRuleDays(rule string, days int) string {
	if days == 0 {
		return rule
	}
	parts := strings.Split(rule, ";")
	for i, part := range parts {
		key, value, ok := strings.Cut(part, "=")
		if !ok {
			continue
		}
		var shift func(string) string
		switch strings.ToUpper(strings.TrimSpace(key)) {
		case "BYDAY":
			shift = func(v string) string { return rotateWeekday(v, days) }
		case "BYMONTHDAY":
			shift = func(v string) string { return shiftOrdinal(v, days, 31) }
		case "BYYEARDAY":
			shift = func(v string) string { return shiftOrdinal(v, days, 366) }
		default:
			continue
		}
		items := strings.Split(value, ",")
		for j, item := range items {
			items[j] = shift(strings.TrimSpace(item))
		}
		parts[i] = key + "=" + strings.Join(items, ",")
	}
	return strings.Join(parts, ";")
}

func rotateWeekday(v string, days int) string {
	if len(v) < 2 {
		return v
	}
	prefix, day := v[:len(v)-2], strings.ToUpper(v[len(v)-2:])
	for idx, wd := range ruleWeekdays {
		if wd == day {
			return prefix + ruleWeekdays[mod(idx+days, 7)]
		}
	}
	return v
}

func shiftOrdinal(v string, days, span int) string {
	n, err := strconv.Atoi(v)
	if err != nil || n == 0 {
		return v
	}
	if n > 0 {
		return strconv.Itoa(mod(n-1+days, span) + 1)
	}
	// Negative ordinals count back from the end, so a later day is a
	// smaller magnitude.
	return strconv.Itoa(-(mod(-n-1-days, span) + 1))
}

func mod(a, b int) int {
	return ((a % b) + b) % b
}

func shiftProp(prop *ical.Prop, delta time.Duration, loc *time.Location) error {
	t, _, err := propTime(prop, loc)
	if err != nil {
		return err
	}
	prop.Value = formatLike(prop, t.Add(delta))
	return nil
}

func shiftUntil(rule string, delta time.Duration) string {
	parts := strings.Split(rule, ";")
	for i, part := range parts {
		key, value, ok := strings.Cut(part, "=")
		if !ok || !strings.EqualFold(strings.TrimSpace(key), "UNTIL") {
			continue
		}
		t, allDay, err := parseDateTime(value, "", time.UTC)
		if err != nil {
			continue
		}
		t = t.Add(delta)
		switch {
		case allDay:
			value = t.Format(dateLayout)
		case strings.HasSuffix(value, "Z"):
			value = t.UTC().Format(utcLayout)
		default:
			value = t.Format(localLayout)
		}
		parts[i] = key + "=" + value
	}
	return strings.Join(parts, ";")
}

func formatDuration(d time.Duration) string {
	sign := ""
	if d < 0 {
		sign = "-"
		d = -d
	}
	day := 24 * time.Hour
	if d%day == 0 {
		return fmt.Sprintf("%sP%dD", sign, d/day)
	}
	var b strings.Builder
	b.WriteString(sign + "P")
	if days := d / day; days > 0 {
		fmt.Fprintf(&b, "%dD", days)
		d -= days * day
	}
	b.WriteString("T")
	if h := d / time.Hour; h > 0 {
		fmt.Fprintf(&b, "%dH", h)
		d -= h * time.Hour
	}
	if m := d / time.Minute; m > 0 {
		fmt.Fprintf(&b, "%dM", m)
		d -= m * time.Minute
	}
	if s := d / time.Second; s > 0 {
		fmt.Fprintf(&b, "%dS", s)
	}
	return b.String()
}

func cloneProps(props ical.Props) ical.Props {
	out := make(ical.Props, len(props))
	for name, values := range props {
		cp := make([]ical.Prop, len(values))
		for i, v := range values {
			params := make(ical.Params, len(v.Params))
			for k, pv := range v.Params {
				params[k] = append([]string(nil), pv...)
			}
			cp[i] = ical.Prop{Name: v.Name, Params: params, Value: v.Value}
		}
		out[name] = cp
	}
	return out
}
