package ical

import (
	"bytes"
	"errors"
	"strconv"
	"time"

	"github.com/emersion/go-ical"
)

// NormalizeICS parses and re-serializes data so stored payloads share one
// formatting.
func NormalizeICS(data []byte) ([]byte, error) {
	cal, err := decode(data)
	if err != nil {
		return nil, err
	}
	return encode(cal)
}

// DetectICSComponent returns the name of the first supported component.
func DetectICSComponent(data []byte) (string, error) {
	dec := ical.NewDecoder(bytes.NewReader(data))
	cal, err := dec.Decode()
	if err != nil {
		return "", err
	}

	for _, child := range cal.Children {
		if child.Name == ical.CompEvent ||
			child.Name == ical.CompToDo ||
			child.Name == ical.CompJournal {
			return child.Name, nil
		}
	}

	return "", errors.New("unsupported component")
}

// EnsureDTStamp adds a DTSTAMP to every VEVENT missing one.
func EnsureDTStamp(data []byte) ([]byte, bool) {
	cal, err := decode(data)
	if err != nil {
		return data, false
	}

	modified := false
	for _, child := range cal.Children {
		if child.Name != ical.CompEvent {
			continue
		}
		if child.Props.Get(ical.PropDateTimeStamp) == nil {
			stamp(child)
			modified = true
		}
	}

	if !modified {
		return data, false
	}

	out, err := encode(cal)
	if err != nil {
		return data, false
	}
	return out, true
}

func stamp(comp *ical.Component) {
	prop := ical.NewProp(ical.PropDateTimeStamp)
	prop.Value = time.Now().UTC().Format(utcLayout)
	comp.Props.Set(prop)
}

// touch marks comp as modified: DTSTAMP is refreshed and SEQUENCE bumped.
func touch(comp *ical.Component) {
	stamp(comp)
	seq := 0
	if p := comp.Props.Get(ical.PropSequence); p != nil {
		seq, _ = strconv.Atoi(p.Value)
	}
	prop := ical.NewProp(ical.PropSequence)
	prop.Value = strconv.Itoa(seq + 1)
	comp.Props.Set(prop)
}

func setProdID(cal *ical.Calendar, prodID string) {
	if prodID == "" {
		return
	}
	prop := ical.NewProp(ical.PropProductID)
	prop.Value = prodID
	cal.Props.Set(prop)
}

// SplitByUID returns one payload per VEVENT UID, in first-seen order. Each
// payload keeps the calendar properties and every VTIMEZONE, so a master and
// its embedded overrides stay together.
func SplitByUID(data []byte) ([][]byte, error) {
	cal, err := decode(data)
	if err != nil {
		return nil, err
	}

	var timezones []*ical.Component
	var order []string
	byUID := make(map[string][]*ical.Component)
	for _, child := range cal.Children {
		switch child.Name {
		case ical.CompTimezone:
			timezones = append(timezones, child)
		case ical.CompEvent:
			uid := ""
			if p := child.Props.Get(ical.PropUID); p != nil {
				uid = p.Value
			}
			if _, ok := byUID[uid]; !ok {
				order = append(order, uid)
			}
			byUID[uid] = append(byUID[uid], child)
		}
	}
	if len(order) == 0 {
		return nil, ErrNoEvent
	}

	out := make([][]byte, 0, len(order))
	for _, uid := range order {
		part := &ical.Calendar{
			Component: &ical.Component{
				Name:  ical.CompCalendar,
				Props: cloneProps(cal.Props),
			},
		}
		part.Children = append(part.Children, timezones...)
		part.Children = append(part.Children, byUID[uid]...)
		data, err := encode(part)
		if err != nil {
			return nil, err
		}
		out = append(out, data)
	}
	return out, nil
}
