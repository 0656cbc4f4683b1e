package engine

import (
	"testing"
	"time"
)

func TestLocalDaysBetween_MidnightBoundaryNotDuration(t *testing.T) {
	t.Parallel()

	// 20 minutes of wall time, but a midnight boundary was crossed.
	from := time.Date(2026, 3, 13, 23, 50, 0, 0, time.UTC)
	to := time.Date(2026, 3, 14, 0, 10, 0, 0, time.UTC)

	if got := localDaysBetween(from, to); got != 1 {
		t.Fatalf("localDaysBetween = %d, want 1", got)
	}
}

func TestLocalDaysBetween_SameDayIsZero(t *testing.T) {
	t.Parallel()

	from := time.Date(2026, 3, 14, 1, 0, 0, 0, time.UTC)
	to := time.Date(2026, 3, 14, 23, 0, 0, 0, time.UTC)

	if got := localDaysBetween(from, to); got != 0 {
		t.Fatalf("localDaysBetween = %d, want 0", got)
	}
}

func TestLocalDaysBetween_AcrossDSTTransition(t *testing.T) {
	t.Parallel()

	loc, err := time.LoadLocation("America/New_York")
	if err != nil {
		t.Skip("tzdata unavailable")
	}

	// US spring-forward 2026 is March 8: that calendar day is 23 hours
	// long. Truncating hours/24 would undercount.
	from := time.Date(2026, 3, 7, 12, 0, 0, 0, loc)
	to := time.Date(2026, 3, 10, 12, 0, 0, 0, loc)

	if got := localDaysBetween(from, to); got != 3 {
		t.Fatalf("localDaysBetween across DST = %d, want 3", got)
	}
}

func TestDayWindow_TodayEndsNow(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 3, 14, 10, 30, 0, 0, time.UTC)

	start, end := dayWindow(now, now)

	if !start.Equal(time.Date(2026, 3, 14, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("start = %v, want local midnight", start)
	}

	if !end.Equal(now) {
		t.Fatalf("end = %v, want now", end)
	}
}

func TestDayWindow_SpringForwardDayEndsAtLocalMidnight(t *testing.T) {
	t.Parallel()

	loc, err := time.LoadLocation("America/New_York")
	if err != nil {
		t.Skip("tzdata unavailable")
	}

	// March 8 2026 is 23 hours long; a start+24h end would claim the
	// first hour of March 9 for it.
	now := time.Date(2026, 3, 10, 9, 0, 0, 0, loc)
	day := time.Date(2026, 3, 8, 0, 0, 0, 0, loc)

	_, end := dayWindow(day, now)

	want := time.Date(2026, 3, 8, 23, 59, 59, 0, loc)
	if !end.Equal(want) {
		t.Fatalf("end = %v, want %v", end, want)
	}
}

func TestDayWindow_HistoricalDayCoversFullDay(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 3, 14, 10, 30, 0, 0, time.UTC)
	yesterday := now.AddDate(0, 0, -1)

	start, end := dayWindow(yesterday, now)

	if !start.Equal(time.Date(2026, 3, 13, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("start = %v, want previous local midnight", start)
	}

	if !end.Equal(time.Date(2026, 3, 13, 23, 59, 59, 0, time.UTC)) {
		t.Fatalf("end = %v, want last second of the day", end)
	}
}
