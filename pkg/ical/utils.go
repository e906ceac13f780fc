package ical

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/emersion/go-ical"
)

const (
	utcLayout   = "20060102T150405Z"
	localLayout = "20060102T150405"
	dateLayout  = "20060102"

	paramTZID  = "TZID"
	paramValue = "VALUE"
	valueDate  = "DATE"
)

// parseDateTime parses a DATE or DATE-TIME value. Floating values are read in
// tzid when given, otherwise in loc.
func parseDateTime(s, tzid string, loc *time.Location) (time.Time, bool, error) {
	s = strings.TrimSpace(s)
	if loc == nil {
		loc = time.UTC
	}
	if tzid != "" {
		if l, err := time.LoadLocation(tzid); err == nil {
			loc = l
		}
	}

	if len(s) == 8 {
		t, err := time.ParseInLocation(dateLayout, s, loc)
		return t, true, err
	}

	if len(s) == 15 {
		t, err := time.ParseInLocation(localLayout, s, loc)
		return t, false, err
	}
	if len(s) == 16 && strings.HasSuffix(s, "Z") {
		t, err := time.Parse(utcLayout, s)
		return t, false, err
	}

	t, err := time.Parse(time.RFC3339, s)
	return t, false, err
}

// propTime reads a date/date-time property honouring its TZID parameter.
func propTime(prop *ical.Prop, loc *time.Location) (time.Time, bool, error) {
	t, allDay, err := parseDateTime(prop.Value, prop.Params.Get(paramTZID), loc)
	if err != nil {
		return t, allDay, err
	}
	if strings.EqualFold(prop.Params.Get(paramValue), valueDate) {
		allDay = true
	}
	return t, allDay, nil
}

func parseMultipleDates(prop ical.Prop, loc *time.Location) []time.Time {
	var dates []time.Time
	tzid := prop.Params.Get(paramTZID)

	for _, part := range strings.Split(prop.Value, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}

		date, _, err := parseDateTime(part, tzid, loc)
		if err != nil {
			continue
		}
		dates = append(dates, date)
	}

	return dates
}

// parseDuration parses an RFC 5545 DURATION value such as "PT1H30M", "P1D"
// or "-P1W".
func parseDuration(durStr string) (time.Duration, error) {
	durStr = strings.TrimSpace(durStr)
	sign := time.Duration(1)
	switch {
	case strings.HasPrefix(durStr, "-"):
		sign = -1
		durStr = durStr[1:]
	case strings.HasPrefix(durStr, "+"):
		durStr = durStr[1:]
	}
	if !strings.HasPrefix(durStr, "P") || len(durStr) < 3 {
		return 0, fmt.Errorf("invalid duration format %q", durStr)
	}

	var weeks, days, hours, minutes, seconds int
	var inTime bool
	var current strings.Builder

	for _, r := range durStr[1:] {
		if r >= '0' && r <= '9' {
			current.WriteRune(r)
			continue
		}
		n, err := strconv.Atoi(current.String())
		if r != 'T' && err != nil {
			return 0, fmt.Errorf("invalid duration format %q", durStr)
		}
		current.Reset()
		switch {
		case r == 'T':
			inTime = true
		case r == 'W' && !inTime:
			weeks = n
		case r == 'D' && !inTime:
			days = n
		case r == 'H' && inTime:
			hours = n
		case r == 'M' && inTime:
			minutes = n
		case r == 'S' && inTime:
			seconds = n
		default:
			return 0, fmt.Errorf("invalid duration format %q", durStr)
		}
	}

	d := time.Duration(weeks)*7*24*time.Hour +
		time.Duration(days)*24*time.Hour +
		time.Duration(hours)*time.Hour +
		time.Duration(minutes)*time.Minute +
		time.Duration(seconds)*time.Second
	return sign * d, nil
}

func filterExcludedDates(instances, exdates []time.Time) []time.Time {
	if len(exdates) == 0 {
		return instances
	}

	excludeMap := make(map[int64]bool, len(exdates))
	for _, exdate := range exdates {
		excludeMap[exdate.Unix()] = true
	}

	var filtered []time.Time
	for _, instance := range instances {
		if !excludeMap[instance.Unix()] {
			filtered = append(filtered, instance)
		}
	}

	return filtered
}

// formatLike renders t the way ref is written: as a DATE for all-day values,
// as local time for TZID values, and in UTC otherwise.
func formatLike(ref *ical.Prop, t time.Time) string {
	if ref != nil && strings.EqualFold(ref.Params.Get(paramValue), valueDate) {
		return t.Format(dateLayout)
	}
	if ref != nil && len(strings.TrimSpace(ref.Value)) == 8 {
		return t.Format(dateLayout)
	}
	if ref != nil {
		if tzid := ref.Params.Get(paramTZID); tzid != "" {
			if loc, err := time.LoadLocation(tzid); err == nil {
				return t.In(loc).Format(localLayout)
			}
		}
	}
	return t.UTC().Format(utcLayout)
}

// newTimeProp builds a property named name holding t, formatted like ref.
func newTimeProp(name string, ref *ical.Prop, t time.Time) *ical.Prop {
	prop := ical.NewProp(name)
	if ref != nil {
		if v := ref.Params.Get(paramValue); v != "" {
			prop.Params.Set(paramValue, v)
		}
		if tzid := ref.Params.Get(paramTZID); tzid != "" {
			prop.Params.Set(paramTZID, tzid)
		}
	}
	prop.Value = formatLike(ref, t)
	return prop
}

// setTime rewrites prop in place. allDay forces a DATE value; otherwise an
// existing TZID is kept and anything else is written in UTC.
func setTime(prop *ical.Prop, t time.Time, allDay bool) {
	if prop.Params == nil {
		prop.Params = make(ical.Params)
	}
	if allDay {
		prop.Params.Del(paramTZID)
		prop.Params.Set(paramValue, valueDate)
		prop.Value = t.Format(dateLayout)
		return
	}
	prop.Params.Del(paramValue)
	if tzid := prop.Params.Get(paramTZID); tzid != "" {
		if loc, err := time.LoadLocation(tzid); err == nil {
			prop.Value = t.In(loc).Format(localLayout)
			return
		}
		prop.Params.Del(paramTZID)
	}
	prop.Value = t.UTC().Format(utcLayout)
}

func shiftDates(prop ical.Prop, delta time.Duration, loc *time.Location) ical.Prop {
	ref := prop
	dates := parseMultipleDates(prop, loc)
	parts := make([]string, 0, len(dates))
	for _, d := range dates {
		parts = append(parts, formatLike(&ref, d.Add(delta)))
	}
	prop.Value = strings.Join(parts, ",")
	return prop
}
