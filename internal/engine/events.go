package engine

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
)

// Detector evaluates today's reconciled metrics against goals and
// historical maxima, emitting dedup-guarded derived events. It runs
// once per sync, after reconciliation, only for today.
//
// Ordering contract: the rings-closed check runs before any
// per-activity streak logging so a single qualifying day is not
// attributed to two different primary activity types.
type Detector struct {
	backend Backend
	store   *Store
	logger  *slog.Logger

	// newID generates event IDs. Defaults to uuid.NewString; tests
	// inject deterministic values.
	newID func() string
}

// NewDetector creates a Detector.
func NewDetector(backend Backend, store *Store, logger *slog.Logger) *Detector {
	if logger == nil {
		logger = slog.Default()
	}

	return &Detector{
		backend: backend,
		store:   store,
		logger:  logger,
		newID:   uuid.NewString,
	}
}

// Run evaluates today's metrics. weeklyWorkouts is the session count
// over the trailing seven days, used for the weekly-workout record.
// Detection failures are returned for the status surface but leave
// already-applied updates in place.
func (d *Detector) Run(ctx context.Context, userID string, m *DailyMetrics, goals GoalSet, weeklyWorkouts int) error {
	if err := d.checkRingsClosed(ctx, userID, m, goals); err != nil {
		return err
	}

	return d.updateRecords(ctx, m, weeklyWorkouts)
}

// checkRingsClosed emits at most one rings-closed event per user-day.
// The backend existence query is the dedup guard: repeated syncs of a
// qualifying day find the event already recorded and do nothing.
func (d *Detector) checkRingsClosed(ctx context.Context, userID string, m *DailyMetrics, goals GoalSet) error {
	if !ringsClosed(m, goals) {
		return nil
	}

	exists, err := d.backend.RingsClosedExists(ctx, userID, m.Date)
	if err != nil {
		return fmt.Errorf("engine: rings-closed existence check: %w", err)
	}

	if exists {
		d.logger.Debug("rings-closed already recorded", slog.String("date", m.Date))
		return nil
	}

	ev := RingsClosedEvent{ID: d.newID(), Date: m.Date}

	if err := d.backend.CreateRingsClosed(ctx, userID, ev); err != nil {
		return fmt.Errorf("engine: creating rings-closed event: %w", err)
	}

	d.logger.Info("rings closed", slog.String("date", m.Date))

	return nil
}

// ringsClosed reports whether all three per-goal progress ratios are
// at least 1. Goals are always positive (defaults apply when unset),
// but a zero guard keeps a corrupt row from dividing by zero.
func ringsClosed(m *DailyMetrics, goals GoalSet) bool {
	if goals.MoveCalories <= 0 || goals.ExerciseMinutes <= 0 || goals.StandHours <= 0 {
		return false
	}

	return m.ActiveCalories/goals.MoveCalories >= 1 &&
		float64(m.ExerciseMinutes)/float64(goals.ExerciseMinutes) >= 1 &&
		float64(m.StandHours)/float64(goals.StandHours) >= 1
}

// updateRecords raises stored personal maxima when today's values
// strictly exceed them. Maxima are monotonic: nothing here ever
// lowers one.
func (d *Detector) updateRecords(ctx context.Context, m *DailyMetrics, weeklyWorkouts int) error {
	records, err := d.store.Records(ctx)
	if err != nil {
		return err
	}

	changed := false

	if m.ActiveCalories > records.MaxDailyCalories {
		records.MaxDailyCalories = m.ActiveCalories
		changed = true
	}

	if m.Steps > records.MaxDailySteps {
		records.MaxDailySteps = m.Steps
		changed = true
	}

	if weeklyWorkouts > records.MaxWeeklyWorkouts {
		records.MaxWeeklyWorkouts = weeklyWorkouts
		changed = true
	}

	if !changed {
		return nil
	}

	d.logger.Info("personal record updated",
		slog.Float64("max_daily_calories", records.MaxDailyCalories),
		slog.Int("max_daily_steps", records.MaxDailySteps),
		slog.Int("max_weekly_workouts", records.MaxWeeklyWorkouts),
	)

	return d.store.SaveRecords(ctx, records)
}
