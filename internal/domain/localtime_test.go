package domain

import (
	"testing"
	"time"
)

func mustLoad(t *testing.T, name string) *time.Location {
	t.Helper()
	loc, err := time.LoadLocation(name)
	if err != nil {
		t.Fatalf("load location %s: %v", name, err)
	}
	return loc
}

func TestLocalDayKey_TruncatesToLocalDay(t *testing.T) {
	ny := mustLoad(t, "America/New_York")

	// 2026-03-05 03:30 UTC is still 2026-03-04 22:30 in New York.
	instant := time.Date(2026, 3, 5, 3, 30, 0, 0, time.UTC)

	if got := LocalDayKey(instant, time.UTC); got != "2026-03-05" {
		t.Fatalf("UTC key: expected 2026-03-05, got %s", got)
	}
	if got := LocalDayKey(instant, ny); got != "2026-03-04" {
		t.Fatalf("New York key: expected 2026-03-04, got %s", got)
	}
}

func TestLocalDayKey_LateEveningDoesNotRoundForward(t *testing.T) {
	ny := mustLoad(t, "America/New_York")

	// 23:59:59 local must stay on the same day key: truncation, not rounding.
	instant := time.Date(2026, 7, 10, 23, 59, 59, 0, ny)
	if got := LocalDayKey(instant, ny); got != "2026-07-10" {
		t.Fatalf("expected 2026-07-10, got %s", got)
	}
}

func TestDueAt(t *testing.T) {
	ny := mustLoad(t, "America/New_York")

	tests := []struct {
		name  string
		mt    MessageType
		local time.Time
		want  bool
	}{
		{"morning before threshold", MessageMorningNudge, time.Date(2026, 3, 2, 6, 14, 59, 0, ny), false},
		{"morning at threshold", MessageMorningNudge, time.Date(2026, 3, 2, 6, 15, 0, 0, ny), true},
		{"morning after threshold", MessageMorningNudge, time.Date(2026, 3, 2, 6, 16, 0, 0, ny), true},
		{"evening before threshold", MessageEveningReminder, time.Date(2026, 3, 2, 20, 59, 0, 0, ny), false},
		{"evening at threshold", MessageEveningReminder, time.Date(2026, 3, 2, 21, 0, 0, 0, ny), true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := DueAt(tc.mt, tc.local); got != tc.want {
				t.Fatalf("DueAt(%s, %s) = %v, want %v", tc.mt, tc.local, got, tc.want)
			}
		})
	}
}

func TestDueAt_DSTTransitionDay(t *testing.T) {
	ny := mustLoad(t, "America/New_York")

	// US spring-forward 2026: clocks jump 02:00 -> 03:00 on March 8.
	// 06:15 local still exists and must be due exactly then, even though
	// the UTC offset changed mid-day.
	springForward := time.Date(2026, 3, 8, 6, 15, 0, 0, ny)
	if !DueAt(MessageMorningNudge, springForward) {
		t.Fatal("expected morning nudge due at 06:15 local on spring-forward day")
	}
	if _, off := springForward.Zone(); off != -4*3600 {
		t.Fatalf("expected EDT offset -4h after transition, got %d", off)
	}

	before := time.Date(2026, 3, 8, 1, 30, 0, 0, ny)
	if DueAt(MessageMorningNudge, before) {
		t.Fatal("01:30 local must not be due")
	}
	if LocalDayKey(before, ny) != LocalDayKey(springForward, ny) {
		t.Fatal("both instants are on the same local calendar day")
	}
}

func TestInQuietHours(t *testing.T) {
	ny := mustLoad(t, "America/New_York")

	tests := []struct {
		hour, minute int
		want         bool
	}{
		{21, 59, false},
		{22, 0, true},
		{23, 30, true},
		{0, 0, true},
		{5, 59, true},
		{6, 0, false},
		{12, 0, false},
	}

	for _, tc := range tests {
		local := time.Date(2026, 4, 1, tc.hour, tc.minute, 0, 0, ny)
		if got := InQuietHours(local); got != tc.want {
			t.Fatalf("InQuietHours(%02d:%02d) = %v, want %v", tc.hour, tc.minute, got, tc.want)
		}
	}
}

func TestNextQuietHoursEnd(t *testing.T) {
	ny := mustLoad(t, "America/New_York")

	// 23:00 on the 1st -> 06:00 on the 2nd.
	late := time.Date(2026, 4, 1, 23, 0, 0, 0, ny)
	next := NextQuietHoursEnd(late)
	want := time.Date(2026, 4, 2, 6, 0, 0, 0, ny)
	if !next.Equal(want) {
		t.Fatalf("expected %s, got %s", want, next)
	}

	// 03:00 -> 06:00 the same day.
	early := time.Date(2026, 4, 2, 3, 0, 0, 0, ny)
	next = NextQuietHoursEnd(early)
	want = time.Date(2026, 4, 2, 6, 0, 0, 0, ny)
	if !next.Equal(want) {
		t.Fatalf("expected %s, got %s", want, next)
	}

	// Spring-forward night: 23:00 March 7 -> 06:00 March 8 EDT, only seven
	// real hours later.
	dstNight := time.Date(2026, 3, 7, 23, 0, 0, 0, ny)
	next = NextQuietHoursEnd(dstNight)
	want = time.Date(2026, 3, 8, 6, 0, 0, 0, ny)
	if !next.Equal(want) {
		t.Fatalf("expected %s, got %s", want, next)
	}
	if d := next.Sub(dstNight); d != 6*time.Hour {
		t.Fatalf("expected 6 real hours across spring-forward, got %s", d)
	}
}

func TestDayWindow_DSTDayIsNot24Hours(t *testing.T) {
	ny := mustLoad(t, "America/New_York")

	noon := time.Date(2026, 3, 8, 12, 0, 0, 0, ny)
	start, end := DayWindow(noon, ny)
	if d := end.Sub(start); d != 23*time.Hour {
		t.Fatalf("spring-forward day should span 23 real hours, got %s", d)
	}
	if LocalDayKey(start, ny) != "2026-03-08" {
		t.Fatalf("window start on wrong day: %s", LocalDayKey(start, ny))
	}
}
