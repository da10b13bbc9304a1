package helpers

import (
	"strings"
	"time"
)

var clockLayouts = []string{
	"15:04",
	"15.04",
	"1504",
}

// ParseClock parses a wall-clock time entered by a user ("21:30", "9:05",
// "21.30") and returns it normalized to the canonical HH:MM form.
func ParseClock(input string) (string, bool) {
	s := strings.TrimSpace(input)
	if s == "" {
		return "", false
	}
	for _, layout := range clockLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.Format("15:04"), true
		}
	}
	return "", false
}

// ClockNow returns the current wall-clock time in loc as HH:MM.
func ClockNow(loc *time.Location) string {
	if loc == nil {
		loc = time.Local
	}
	return time.Now().In(loc).Format("15:04")
}

// SameDay reports whether both instants fall on the same calendar day in loc.
func SameDay(a, b time.Time, loc *time.Location) bool {
	if loc == nil {
		loc = time.Local
	}
	ay, am, ad := a.In(loc).Date()
	by, bm, bd := b.In(loc).Date()
	return ay == by && am == bm && ad == bd
}

// FormatDayTime renders an instant for user-facing messages, e.g. "02.01 15:04".
func FormatDayTime(t time.Time, loc *time.Location) string {
	if loc == nil {
		loc = time.Local
	}
	return t.In(loc).Format("02.01 15:04")
}
