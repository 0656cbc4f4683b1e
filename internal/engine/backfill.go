package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// Window sizing constants.
const (
	// bootstrapWindowDays is the one-time larger window used on the
	// first sync after connect (or after an upgrade that resets the
	// bootstrap flag).
	bootstrapWindowDays = 28

	// maxCatchUpDays caps subsequent catch-up windows.
	maxCatchUpDays = 28

	// defaultInterDayDelay spaces sequential day submissions to bound
	// load on the backend.
	defaultInterDayDelay = 200 * time.Millisecond
)

// Backfiller fills the gap between the last successful sync and today.
// Days are processed oldest-first, strictly sequentially; a per-day
// failure is logged and skipped so one bad day cannot abort the rest.
// Submissions are (user, date)-keyed upserts, so re-running over
// already-submitted days is a no-op — the idempotency that makes
// retrying after a partial failure safe.
type Backfiller struct {
	reconciler *Reconciler
	backend    Backend
	store      *Store
	logger     *slog.Logger
	delay      time.Duration

	// sleepFunc is called for the inter-day delay. Tests stub it.
	sleepFunc func(ctx context.Context, d time.Duration) error
}

// NewBackfiller creates a Backfiller. A zero delay selects the
// default.
func NewBackfiller(reconciler *Reconciler, backend Backend, store *Store, delay time.Duration, logger *slog.Logger) *Backfiller {
	if delay <= 0 {
		delay = defaultInterDayDelay
	}

	if logger == nil {
		logger = slog.Default()
	}

	return &Backfiller{
		reconciler: reconciler,
		backend:    backend,
		store:      store,
		logger:     logger,
		delay:      delay,
		sleepFunc:  sleepCtx,
	}
}

// BackfillReport summarizes one backfill run.
type BackfillReport struct {
	WindowDays int
	Submitted  int
	FailedDays []string
	Bootstrap  bool
}

// Run backfills the days before today per the cursor's window. It
// returns an error only when the context is canceled; individual day
// failures are reported in the BackfillReport.
func (b *Backfiller) Run(ctx context.Context, userID string, now time.Time) (*BackfillReport, error) {
	cur, err := b.store.Cursor(ctx, b.reconciler.adapter.ID())
	if err != nil {
		return nil, err
	}

	report := &BackfillReport{
		WindowDays: b.windowDays(cur, now),
		Bootstrap:  !cur.InitialBackfillDone,
	}

	b.logger.Info("backfill starting",
		slog.Int("window_days", report.WindowDays),
		slog.Bool("bootstrap", report.Bootstrap),
	)

	today := startOfDay(now)

	for offset := report.WindowDays; offset >= 1; offset-- {
		if ctx.Err() != nil {
			return report, fmt.Errorf("engine: backfill canceled: %w", ctx.Err())
		}

		day := today.AddDate(0, 0, -offset)

		if err := b.fillDay(ctx, userID, day, now); err != nil {
			report.FailedDays = append(report.FailedDays, DayKey(day))
			b.logger.Warn("backfill day failed, continuing",
				slog.String("date", DayKey(day)),
				slog.String("error", err.Error()),
			)
		} else {
			report.Submitted++
		}

		if offset > 1 {
			if sleepErr := b.sleepFunc(ctx, b.delay); sleepErr != nil {
				return report, fmt.Errorf("engine: backfill canceled: %w", sleepErr)
			}
		}
	}

	// The bootstrap flag is one-shot: set once the bootstrap window
	// has been walked, even with some failed days — the per-day upsert
	// makes the next catch-up re-finalize anything that was missed.
	if report.Bootstrap {
		cur.InitialBackfillDone = true
		if err := b.store.SaveCursor(ctx, cur); err != nil {
			return report, err
		}
	}

	b.logger.Info("backfill complete",
		slog.Int("submitted", report.Submitted),
		slog.Int("failed", len(report.FailedDays)),
	)

	return report, nil
}

// windowDays computes how many days before today to backfill.
func (b *Backfiller) windowDays(cur SyncCursor, now time.Time) int {
	if !cur.InitialBackfillDone {
		return bootstrapWindowDays
	}

	if cur.LastSyncAt.IsZero() {
		// Bootstrap flag set but no successful sync recorded yet
		// (e.g. backend was down for the whole bootstrap run).
		return maxCatchUpDays
	}

	elapsed := localDaysBetween(cur.LastSyncAt, now)

	// Always at least 1 to re-finalize yesterday: a provider's daily
	// summary can keep updating for hours after midnight.
	return clamp(elapsed, 1, maxCatchUpDays)
}

// fillDay reconciles and submits a single historical day.
func (b *Backfiller) fillDay(ctx context.Context, userID string, day, now time.Time) error {
	m, err := b.reconciler.ReconcileDay(ctx, day, now)
	if err != nil {
		return err
	}

	if err := b.store.SaveDailyMetrics(ctx, m); err != nil {
		return err
	}

	return b.backend.SubmitDay(ctx, userID, submissionFor(m))
}

// submissionFor maps a reconciled record to the backend payload.
func submissionFor(m *DailyMetrics) DaySubmission {
	return DaySubmission{
		Date:              m.Date,
		MoveCalories:      int(m.ActiveCalories),
		ExerciseMinutes:   m.ExerciseMinutes,
		StandHours:        m.StandHours,
		Steps:             m.Steps,
		DistanceMeters:    m.DistanceMeters,
		WorkoutsCompleted: m.WorkoutsCompleted,
	}
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}

	if v > hi {
		return hi
	}

	return v
}

// sleepCtx waits for d or until the context is canceled.
func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
