package engine

import (
	"context"
	"testing"
	"time"

	"github.com/ringsync/ringsync/internal/provider"
)

// workoutOn returns a 30-minute session starting at 07:00 local on the
// given day offset from now.
func workoutOn(now time.Time, daysAgo int) provider.Workout {
	day := startOfDay(now).AddDate(0, 0, -daysAgo)
	start := day.Add(7 * time.Hour)

	return provider.Workout{
		ID:              start.Format(time.RFC3339),
		Type:            "running",
		Start:           start,
		End:             start.Add(30 * time.Minute),
		DurationMinutes: 30,
		Provider:        "fake",
	}
}

func TestCountStreak_BreaksAtGap(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 3, 14, 15, 0, 0, 0, time.UTC)

	// Sessions today, yesterday, two days ago, five days ago: the gap
	// at day 3 breaks the streak at 3.
	workouts := []provider.Workout{
		workoutOn(now, 0),
		workoutOn(now, 1),
		workoutOn(now, 2),
		workoutOn(now, 5),
	}

	if got := countStreak(workouts, now); got != 3 {
		t.Fatalf("streak = %d, want 3", got)
	}
}

func TestCountStreak_TodayStillOpen(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)

	// No session yet today, but yesterday and the day before: today
	// neither counts nor breaks.
	workouts := []provider.Workout{
		workoutOn(now, 1),
		workoutOn(now, 2),
	}

	if got := countStreak(workouts, now); got != 2 {
		t.Fatalf("streak = %d, want 2", got)
	}
}

func TestCountStreak_NoSessions(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)

	if got := countStreak(nil, now); got != 0 {
		t.Fatalf("streak = %d, want 0", got)
	}
}

func TestCountStreak_MultipleSessionsOneDayCountOnce(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 3, 14, 20, 0, 0, 0, time.UTC)

	morning := workoutOn(now, 0)
	evening := morning
	evening.Start = evening.Start.Add(10 * time.Hour)
	evening.End = evening.End.Add(10 * time.Hour)

	workouts := []provider.Workout{morning, evening, workoutOn(now, 1)}

	if got := countStreak(workouts, now); got != 2 {
		t.Fatalf("streak = %d, want 2", got)
	}
}

func TestNewlyCrossedMilestone(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name     string
		prev     int
		current  int
		want     int
		crossed  bool
	}{
		{"crosses seven", 6, 7, 7, true},
		{"crosses thirty", 29, 30, 30, true},
		{"same value re-evaluated", 7, 7, 0, false},
		{"decrease", 10, 3, 0, false},
		{"non-milestone increase", 7, 8, 0, false},
		{"jump over threshold", 5, 9, 0, false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			got, crossed := newlyCrossedMilestone(tc.prev, tc.current)
			if got != tc.want || crossed != tc.crossed {
				t.Fatalf("newlyCrossedMilestone(%d, %d) = (%d, %v), want (%d, %v)",
					tc.prev, tc.current, got, crossed, tc.want, tc.crossed)
			}
		})
	}
}

func TestStreakCalculator_FetchesTrailingWindow(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)

	f := newFakeAdapter()
	f.workouts = []provider.Workout{workoutOn(now, 0), workoutOn(now, 1)}

	c := NewStreakCalculator(f, quietLogger())

	got, err := c.Current(context.Background(), now)
	if err != nil {
		t.Fatalf("Current: %v", err)
	}

	if got != 2 {
		t.Fatalf("streak = %d, want 2", got)
	}
}
