package helpers

import (
	"testing"
	"time"
)

func TestParseClock(t *testing.T) {
	tests := []struct {
		in   string
		want string
		ok   bool
	}{
		{"21:30", "21:30", true},
		{"9:05", "09:05", true},
		{"21.30", "21:30", true},
		{"0930", "09:30", true},
		{"  21:30 ", "21:30", true},
		{"", "", false},
		{"25:00", "", false},
		{"21:70", "", false},
		{"вечером", "", false},
	}
	for _, tt := range tests {
		got, ok := ParseClock(tt.in)
		if ok != tt.ok {
			t.Fatalf("ParseClock(%q) ok = %v, want %v", tt.in, ok, tt.ok)
		}
		if got != tt.want {
			t.Fatalf("ParseClock(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestSameDay(t *testing.T) {
	loc, err := time.LoadLocation("Europe/Moscow")
	if err != nil {
		t.Fatalf("load location: %v", err)
	}

	morning := time.Date(2026, 8, 30, 8, 0, 0, 0, loc)
	evening := time.Date(2026, 8, 30, 23, 30, 0, 0, loc)
	if !SameDay(morning, evening, loc) {
		t.Fatal("same calendar day expected")
	}

	nextDay := time.Date(2026, 8, 31, 0, 10, 0, 0, loc)
	if SameDay(evening, nextDay, loc) {
		t.Fatal("different calendar days expected")
	}

	// 23:30 in Moscow is already the next day in e.g. Vladivostok.
	east, err := time.LoadLocation("Asia/Vladivostok")
	if err != nil {
		t.Fatalf("load location: %v", err)
	}
	if SameDay(morning, evening, east) {
		t.Fatal("timezone must shift the day boundary")
	}
}

func TestFormatDayTime(t *testing.T) {
	loc := time.UTC
	ts := time.Date(2026, 1, 2, 15, 4, 0, 0, loc)
	if got := FormatDayTime(ts, loc); got != "02.01 15:04" {
		t.Fatalf("FormatDayTime = %q", got)
	}
}
