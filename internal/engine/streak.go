package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/ringsync/ringsync/internal/provider"
)

// streakWindowDays bounds the trailing session window the streak scan
// covers. Streaks longer than the window keep counting across syncs
// because the stored value only ever needs the recent tail to extend.
const streakWindowDays = 60

// milestoneThresholds is the fixed set of streak lengths that trigger
// a one-time celebration.
var milestoneThresholds = [...]int{7, 30, 100, 365}

// milestoneRewards maps a threshold to its reward descriptor.
var milestoneRewards = map[int]string{
	7:   "one-week badge",
	30:  "one-month badge",
	100: "century badge",
	365: "full-year badge",
}

// StreakCalculator computes the current consecutive-activity-day
// streak from true per-session workout data, not from cached daily
// metrics, so a backfilled or re-finalized day is reflected
// immediately.
type StreakCalculator struct {
	adapter provider.Adapter
	logger  *slog.Logger
}

// NewStreakCalculator creates a StreakCalculator.
func NewStreakCalculator(adapter provider.Adapter, logger *slog.Logger) *StreakCalculator {
	if logger == nil {
		logger = slog.Default()
	}

	return &StreakCalculator{adapter: adapter, logger: logger}
}

// Current returns the consecutive-day streak ending at (or just
// before) now. Today is "still open": a missing session today does not
// break the streak, it just isn't counted yet.
func (c *StreakCalculator) Current(ctx context.Context, now time.Time) (int, error) {
	start := startOfDay(now).AddDate(0, 0, -streakWindowDays)

	workouts, err := c.adapter.FetchWorkouts(ctx, start, now)
	if err != nil {
		return 0, fmt.Errorf("engine: fetching streak window: %w", err)
	}

	return countStreak(workouts, now), nil
}

// countStreak builds the set of distinct local calendar days holding
// at least one session and walks backwards from today.
func countStreak(workouts []provider.Workout, now time.Time) int {
	days := make(map[string]bool, len(workouts))
	for _, w := range workouts {
		days[DayKey(w.Start.In(now.Location()))] = true
	}

	var streak int

	for offset := 0; offset <= streakWindowDays; offset++ {
		day := DayKey(startOfDay(now).AddDate(0, 0, -offset))

		if days[day] {
			streak++
			continue
		}

		if offset == 0 {
			continue // today is still open, skip without breaking
		}

		break
	}

	return streak
}

// newlyCrossedMilestone reports the milestone threshold that current
// has just crossed, if any. Only a strict increase over the previous
// stored streak counts: re-evaluating the same streak value can never
// re-emit.
func newlyCrossedMilestone(previous, current int) (int, bool) {
	if current <= previous {
		return 0, false
	}

	for _, m := range milestoneThresholds {
		if current == m {
			return m, true
		}
	}

	return 0, false
}

// milestoneID returns the stable dedup key for a threshold, shared
// with the backend existence check.
func milestoneID(days int) string {
	return fmt.Sprintf("streak_%d", days)
}
