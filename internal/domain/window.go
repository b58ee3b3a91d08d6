package domain

import (
	"fmt"
	"time"
)

// DayWindow is the phase of the three-day rule cycle in force at an instant.
type DayWindow int

const (
	WindowNone DayWindow = iota
	WindowDeclaredPending
	WindowDay1
	WindowDay2
	WindowDay3
)

var windowNames = map[DayWindow]string{
	WindowNone:            "NONE",
	WindowDeclaredPending: "DECLARED_PENDING",
	WindowDay1:            "DAY_1",
	WindowDay2:            "DAY_2",
	WindowDay3:            "DAY_3",
}

var windowLabels = map[DayWindow]string{
	WindowNone:            "No rules in effect",
	WindowDeclaredPending: "Declared",
	WindowDay1:            "Day 1",
	WindowDay2:            "Day 2",
	WindowDay3:            "Day 3",
}

func (w DayWindow) String() string {
	if s, ok := windowNames[w]; ok {
		return s
	}
	return fmt.Sprintf("DayWindow(%d)", int(w))
}

// Label is the human-facing name of the window.
func (w DayWindow) Label() string {
	return windowLabels[w]
}

func (w DayWindow) MarshalText() ([]byte, error) {
	return []byte(w.String()), nil
}

func (w *DayWindow) UnmarshalText(b []byte) error {
	parsed, err := ParseDayWindow(string(b))
	if err != nil {
		return err
	}
	*w = parsed
	return nil
}

// ParseDayWindow is the inverse of String.
func ParseDayWindow(s string) (DayWindow, error) {
	for w, name := range windowNames {
		if name == s {
			return w, nil
		}
	}
	return WindowNone, fmt.Errorf("unknown day window %q", s)
}

// Boundaries are the instants that delimit one emergency's rule cycle.
type Boundaries struct {
	Declared  time.Time // D0 00:00
	Day1Start time.Time // D0 21:00
	Day2Start time.Time // D0+1 08:00, also the end of Day 1
	Day2End   time.Time // D0+1 20:00
	Day3Start time.Time // D0+2 08:00
	Day3End   time.Time // D0+2 20:00
}

// Calendar does rule-cycle arithmetic in one civil timezone.
type Calendar struct {
	loc *time.Location
}

// NewCalendar returns a Calendar for loc. A nil loc means UTC.
func NewCalendar(loc *time.Location) Calendar {
	if loc == nil {
		loc = time.UTC
	}
	return Calendar{loc: loc}
}

func (c Calendar) Location() *time.Location { return c.loc }

// Today is the calendar date of now in the calendar's timezone.
func (c Calendar) Today(now time.Time) DeclarationDate {
	return DateOf(now, c.loc)
}

// Boundaries computes the cycle schedule for a declaration date.
func (c Calendar) Boundaries(d DeclarationDate) Boundaries {
	return Boundaries{
		Declared:  d.at(0, 0, c.loc),
		Day1Start: d.at(0, 21, c.loc),
		Day2Start: d.at(1, 8, c.loc),
		Day2End:   d.at(1, 20, c.loc),
		Day3Start: d.at(2, 8, c.loc),
		Day3End:   d.at(2, 20, c.loc),
	}
}

// WindowFor returns the window of d's cycle that contains now.
func (c Calendar) WindowFor(d DeclarationDate, now time.Time) DayWindow {
	if d.IsZero() {
		return WindowNone
	}
	b := c.Boundaries(d)
	switch {
	case within(now, b.Declared, b.Day1Start):
		return WindowDeclaredPending
	case within(now, b.Day1Start, b.Day2Start):
		return WindowDay1
	case within(now, b.Day2Start, b.Day2End):
		return WindowDay2
	case within(now, b.Day3Start, b.Day3End):
		return WindowDay3
	default:
		return WindowNone
	}
}

// Expired reports whether now is at or past the end of d's Day 3.
func (c Calendar) Expired(d DeclarationDate, now time.Time) bool {
	return !now.Before(c.Boundaries(d).Day3End)
}

func within(t, start, end time.Time) bool {
	return !t.Before(start) && t.Before(end)
}
