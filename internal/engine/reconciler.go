package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/ringsync/ringsync/internal/provider"
)

// defaultFetchDeadline bounds each metric sub-fetch. One slow metric
// degrades to its fallback value instead of stalling the sync.
const defaultFetchDeadline = 10 * time.Second

// Reconciler merges a provider's authoritative daily summary with
// fallback raw-sample aggregation into one DailyMetrics record.
type Reconciler struct {
	adapter  provider.Adapter
	deadline time.Duration
	logger   *slog.Logger
}

// NewReconciler creates a Reconciler. A zero deadline selects the
// default.
func NewReconciler(adapter provider.Adapter, deadline time.Duration, logger *slog.Logger) *Reconciler {
	if deadline <= 0 {
		deadline = defaultFetchDeadline
	}

	if logger == nil {
		logger = slog.Default()
	}

	return &Reconciler{adapter: adapter, deadline: deadline, logger: logger}
}

// ReconcileDay builds the canonical metrics record for one local day.
//
// The authoritative summary is preferred because it matches what the
// provider's own app shows. When it is absent, the three ring metrics
// are recomputed from raw samples, each under its own deadline with a
// zero fallback. Steps, distance, heart rate, and workout count are
// always fetched from the sample window, concurrently, regardless of
// the summary outcome.
//
// nil is returned only when the adapter itself cannot be used at all
// (unavailable or permission revoked); every lesser failure degrades
// the affected field to zero so a sync always completes with some
// result.
func (r *Reconciler) ReconcileDay(ctx context.Context, day, now time.Time) (*DailyMetrics, error) {
	start, end := dayWindow(day, now)

	summary, err := r.adapter.FetchMetrics(ctx, day)
	if err != nil {
		if errors.Is(err, provider.ErrUnavailable) || errors.Is(err, provider.ErrPermissionDenied) {
			return nil, fmt.Errorf("reconcile %s: %w", DayKey(day), err)
		}

		// Summary fetch failed for a transient reason: fall back to
		// raw-sample aggregation below.
		r.logger.Warn("daily summary unavailable, using raw-sample fallback",
			slog.String("date", DayKey(day)),
			slog.String("error", err.Error()),
		)

		summary = nil
	}

	m := &DailyMetrics{
		Date:        DayKey(day),
		LastUpdated: now,
		Provider:    r.adapter.ID(),
	}

	src, hasSamples := r.adapter.(provider.SampleSource)

	if summaryPresent(summary) {
		m.ActiveCalories = summary.ActiveCalories
		m.ExerciseMinutes = summary.ExerciseMinutes
		m.StandHours = summary.StandHours
	} else if hasSamples {
		r.fillRingsFromSamples(ctx, m, src, start, end)
	}

	if summary != nil {
		m.Goals = extractGoals(summary)
	}

	if hasSamples {
		r.fillWindowMetrics(ctx, m, src, start, end)
	}

	return m, nil
}

// summaryPresent reports whether the summary carries any ring totals.
// A zero-valued summary is indistinguishable from "nothing recorded
// yet", so it is treated as absent and the fallback path runs; on a
// genuinely inactive day the fallback sums are zero anyway.
func summaryPresent(s *provider.DaySummary) bool {
	return s != nil && (s.ActiveCalories > 0 || s.ExerciseMinutes > 0 || s.StandHours > 0)
}

// extractGoals applies the all-or-nothing rule to the summary's goal
// fields. Returns nil when the set is invalid so the caller's stored
// goals stay untouched.
func extractGoals(s *provider.DaySummary) *GoalSet {
	g := GoalSet{
		MoveCalories:    s.MoveGoal,
		ExerciseMinutes: s.ExerciseGoal,
		StandHours:      s.StandGoal,
		Steps:           s.StepsGoal,
	}

	if !g.Valid() {
		return nil
	}

	return &g
}

// fillRingsFromSamples recomputes the three ring metrics from raw
// samples. All three fetches run concurrently and are joined before
// returning; each degrades independently to zero on timeout or error.
func (r *Reconciler) fillRingsFromSamples(ctx context.Context, m *DailyMetrics, src provider.SampleSource, start, end time.Time) {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		m.ActiveCalories = provider.WithDeadline(gctx, r.deadline, 0.0, r.logger, "active_energy",
			func(c context.Context) (float64, error) { return src.ActiveEnergySum(c, start, end) })
		return nil
	})

	g.Go(func() error {
		m.ExerciseMinutes = provider.WithDeadline(gctx, r.deadline, 0, r.logger, "exercise_minutes",
			func(c context.Context) (int, error) { return src.ExerciseMinutesSum(c, start, end) })
		return nil
	})

	g.Go(func() error {
		m.StandHours = provider.WithDeadline(gctx, r.deadline, 0, r.logger, "stand_hours",
			func(c context.Context) (int, error) { return src.StandHoursSum(c, start, end) })
		return nil
	})

	_ = g.Wait() // closures never return errors; Wait is the join point
}

// fillWindowMetrics fetches the always-queried window metrics. These
// come from the sample window even when the summary is present — the
// summary only covers the three ring totals.
func (r *Reconciler) fillWindowMetrics(ctx context.Context, m *DailyMetrics, src provider.SampleSource, start, end time.Time) {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		m.Steps = provider.WithDeadline(gctx, r.deadline, 0, r.logger, "steps",
			func(c context.Context) (int, error) { return src.StepsSum(c, start, end) })
		return nil
	})

	g.Go(func() error {
		q := provider.WithDeadline(gctx, r.deadline, provider.Quantity{}, r.logger, "distance",
			func(c context.Context) (provider.Quantity, error) { return src.DistanceSum(c, start, end) })
		m.DistanceMeters = toMeters(q)
		return nil
	})

	g.Go(func() error {
		m.HeartRateAvg = provider.WithDeadline(gctx, r.deadline, 0.0, r.logger, "heart_rate",
			func(c context.Context) (float64, error) { return src.HeartRateAvg(c, start, end) })
		return nil
	})

	g.Go(func() error {
		m.WorkoutsCompleted = provider.WithDeadline(gctx, r.deadline, 0, r.logger, "workout_count",
			func(c context.Context) (int, error) { return src.WorkoutCount(c, start, end) })
		return nil
	})

	_ = g.Wait()
}
