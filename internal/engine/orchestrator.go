package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	gosync "sync"
	"time"

	"github.com/google/uuid"

	"github.com/ringsync/ringsync/internal/provider"
)

// Sentinel errors surfaced to callers of the orchestrator.
var (
	// ErrSyncInFlight means another sync for this provider is already
	// running. Triggers coalesce: the caller's intent is satisfied by
	// the in-flight pass.
	ErrSyncInFlight = errors.New("engine: sync already in flight")

	// ErrNotConnected means the provider has not been connected yet.
	ErrNotConnected = errors.New("engine: provider not connected")
)

// Options holds the inputs for creating an Orchestrator. The CLI
// layer populates this from resolved config and constructed clients.
type Options struct {
	Adapter provider.Adapter
	Backend Backend
	Store   *Store
	Logger  *slog.Logger

	// FetchDeadline bounds each metric sub-fetch (zero = default).
	FetchDeadline time.Duration

	// InterDayDelay spaces backfill day submissions (zero = default).
	InterDayDelay time.Duration

	// NowFunc is the clock. Defaults to time.Now; tests inject fixed
	// times.
	NowFunc func() time.Time
}

// Orchestrator sequences one sync pass — backfill, today's
// reconciliation, backend submission, derived-event detection, streak
// evaluation, body refresh — and exclusively owns all persisted
// state. It is safe for concurrent use; overlapping invocations for
// the same provider coalesce rather than queue.
type Orchestrator struct {
	adapter    provider.Adapter
	backend    Backend
	store      *Store
	reconciler *Reconciler
	backfiller *Backfiller
	streaks    *StreakCalculator
	detector   *Detector
	logger     *slog.Logger
	nowFunc    func() time.Time

	syncMu gosync.Mutex // single active sync per provider
}

// New creates an Orchestrator and its sub-components.
func New(opts Options) *Orchestrator {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	nowFunc := opts.NowFunc
	if nowFunc == nil {
		nowFunc = time.Now
	}

	reconciler := NewReconciler(opts.Adapter, opts.FetchDeadline, logger)

	return &Orchestrator{
		adapter:    opts.Adapter,
		backend:    opts.Backend,
		store:      opts.Store,
		reconciler: reconciler,
		backfiller: NewBackfiller(reconciler, opts.Backend, opts.Store, opts.InterDayDelay, logger),
		streaks:    NewStreakCalculator(opts.Adapter, logger),
		detector:   NewDetector(opts.Backend, opts.Store, logger),
		logger:     logger,
		nowFunc:    nowFunc,
	}
}

// ConnectProvider performs the authorization handshake and records the
// connection. A user denial returns (false, nil); only
// unavailable/hard failures return an error. The first sync (with its
// bootstrap backfill) is the caller's next step, not triggered here.
func (o *Orchestrator) ConnectProvider(ctx context.Context) (bool, error) {
	if !o.adapter.IsAvailable() {
		return false, fmt.Errorf("engine: connect %s: %w", o.adapter.ID(), provider.ErrUnavailable)
	}

	ok, err := o.adapter.Connect(ctx)
	if err != nil {
		return false, fmt.Errorf("engine: connect %s: %w", o.adapter.ID(), err)
	}

	if !ok {
		return false, nil
	}

	conn := ProviderConnection{Provider: o.adapter.ID(), Connected: true}
	if err := o.store.SaveConnection(ctx, conn); err != nil {
		return false, err
	}

	o.logger.Info("provider connected", slog.String("provider", string(o.adapter.ID())))

	return true, nil
}

// DisconnectProvider marks the provider disconnected. Persisted
// metrics and cursors are kept: reconnecting resumes where sync left
// off.
func (o *Orchestrator) DisconnectProvider(ctx context.Context) error {
	if err := o.adapter.Disconnect(ctx); err != nil && !errors.Is(err, provider.ErrUnavailable) {
		return err
	}

	return o.store.SaveConnection(ctx, ProviderConnection{Provider: o.adapter.ID(), Connected: false})
}

// SyncNow runs one full orchestration pass. Ordering within the pass:
// backfill first (so today's figures are never stale relative to a
// just-filled yesterday), then today's reconciliation and submission,
// then the derived-event detector, then streak evaluation — the
// detector always sees a fully reconciled today.
//
// Adapter-level and reconciliation-level failures degrade locally;
// backend failures are recorded on the status surface and retried by
// the next naturally-triggered sync. SyncNow returns an error only
// when the pass could not produce any result at all, or when its
// context was canceled.
func (o *Orchestrator) SyncNow(ctx context.Context, userID string) error {
	if !o.syncMu.TryLock() {
		return ErrSyncInFlight
	}
	defer o.syncMu.Unlock()

	now := o.nowFunc()

	conn, err := o.store.Connection(ctx, o.adapter.ID())
	if err != nil {
		return err
	}

	if !conn.Connected {
		return ErrNotConnected
	}

	o.logger.Info("sync starting",
		slog.String("provider", string(o.adapter.ID())),
		slog.String("user", userID),
	)

	var faults []string

	// 1. Backfill missed days (and re-finalize yesterday).
	report, err := o.backfiller.Run(ctx, userID, now)
	if err != nil {
		return o.abort(ctx, now, err)
	}

	if len(report.FailedDays) > 0 {
		faults = append(faults, fmt.Sprintf("backfill: %d/%d days failed",
			len(report.FailedDays), report.WindowDays))
	}

	// 2. Reconcile today.
	today, err := o.reconciler.ReconcileDay(ctx, now, now)
	if err != nil {
		// Adapter unreachable: nothing further can run.
		return o.abort(ctx, now, err)
	}

	if err := o.store.SaveDailyMetrics(ctx, today); err != nil {
		return o.abort(ctx, now, err)
	}

	// 3. Adopt provider goals when the summary carried a valid set.
	goals, err := o.adoptGoals(ctx, today, now)
	if err != nil {
		return o.abort(ctx, now, err)
	}

	// 4. Submit today. Cursor advances only on success.
	if err := o.backend.SubmitDay(ctx, userID, submissionFor(today)); err != nil {
		faults = append(faults, fmt.Sprintf("submit %s: %v", today.Date, err))
	} else if err := o.advanceCursor(ctx, now); err != nil {
		return o.abort(ctx, now, err)
	}

	// 5. Derived events for today, before any streak logging.
	weekly := o.weeklyWorkoutCount(ctx, now)

	if err := o.detector.Run(ctx, userID, today, goals, weekly); err != nil {
		faults = append(faults, err.Error())
	}

	// 6. Streak and milestones.
	if err := o.evaluateStreak(ctx, userID, now); err != nil {
		faults = append(faults, err.Error())
	}

	// 7. Body refresh.
	if err := o.refreshBody(ctx, now); err != nil {
		faults = append(faults, err.Error())
	}

	conn.LastSyncAt = now
	if err := o.store.SaveConnection(ctx, conn); err != nil {
		faults = append(faults, err.Error())
	}

	return o.finish(ctx, now, strings.Join(faults, "; "))
}

// abort records a hard failure on the status surface and decides what
// the caller sees: a canceled pass propagates the cancellation (the
// caller asked to stop, not to have the stop recorded as a fault),
// while any other hard failure is status-surface-only and retried by
// the next trigger.
func (o *Orchestrator) abort(ctx context.Context, now time.Time, cause error) error {
	_ = o.finish(ctx, now, cause.Error())

	if ctx.Err() != nil {
		return cause
	}

	return nil
}

// finish records the sync outcome on the status surface. A non-empty
// message is informational — the sync still completed with a partial
// result, and the next trigger retries whatever failed.
//
// Recording survives cancellation so an interrupted pass still shows
// up in status output.
func (o *Orchestrator) finish(ctx context.Context, now time.Time, message string) error {
	if err := o.store.SetStatus(context.WithoutCancel(ctx), message, now); err != nil {
		o.logger.Warn("could not record sync status", slog.String("error", err.Error()))
	}

	if message != "" {
		o.logger.Warn("sync finished with faults", slog.String("faults", message))
		return nil
	}

	o.logger.Info("sync finished clean")

	return nil
}

// adoptGoals persists a valid provider goal set and returns the goals
// the detector should evaluate against. An invalid or absent set
// leaves the stored goals untouched.
func (o *Orchestrator) adoptGoals(ctx context.Context, today *DailyMetrics, now time.Time) (GoalSet, error) {
	if today.Goals != nil {
		if err := o.store.SaveGoals(ctx, *today.Goals, now); err != nil {
			return GoalSet{}, err
		}

		return *today.Goals, nil
	}

	return o.store.Goals(ctx)
}

// advanceCursor marks a successful submission of the current day.
func (o *Orchestrator) advanceCursor(ctx context.Context, now time.Time) error {
	cur, err := o.store.Cursor(ctx, o.adapter.ID())
	if err != nil {
		return err
	}

	cur.LastSyncAt = now

	return o.store.SaveCursor(ctx, cur)
}

// weeklyWorkoutCount counts sessions over the trailing seven days,
// degrading to zero on failure — a missing count only means the
// weekly-workout record cannot rise this pass.
func (o *Orchestrator) weeklyWorkoutCount(ctx context.Context, now time.Time) int {
	start := startOfDay(now).AddDate(0, 0, -6)

	workouts, err := o.adapter.FetchWorkouts(ctx, start, now)
	if err != nil {
		o.logger.Warn("weekly workout count unavailable", slog.String("error", err.Error()))
		return 0
	}

	return len(workouts)
}

// evaluateStreak recomputes the streak wholesale, persists it, and
// emits a milestone event when a threshold is newly crossed and the
// backend has no record of it.
func (o *Orchestrator) evaluateStreak(ctx context.Context, userID string, now time.Time) error {
	current, err := o.streaks.Current(ctx, now)
	if err != nil {
		return err
	}

	previous, err := o.store.Streak(ctx)
	if err != nil {
		return err
	}

	if err := o.store.SaveStreak(ctx, current); err != nil {
		return err
	}

	threshold, crossed := newlyCrossedMilestone(previous, current)
	if !crossed {
		return nil
	}

	id := milestoneID(threshold)

	exists, err := o.backend.MilestoneExists(ctx, userID, id)
	if err != nil {
		return fmt.Errorf("engine: milestone existence check: %w", err)
	}

	if exists {
		o.logger.Debug("milestone already recorded", slog.String("milestone", id))
		return nil
	}

	ev := MilestoneEvent{
		ID:          uuid.NewString(),
		MilestoneID: id,
		Days:        threshold,
		Reward:      milestoneRewards[threshold],
		CreatedAt:   now,
	}

	record := MilestoneRecord{ID: ev.ID, MilestoneID: id, Days: threshold, Reward: ev.Reward}
	if err := o.backend.CreateMilestone(ctx, userID, record); err != nil {
		return fmt.Errorf("engine: creating milestone: %w", err)
	}

	if err := o.store.AddPendingMilestone(ctx, ev); err != nil {
		return err
	}

	o.logger.Info("streak milestone reached",
		slog.Int("days", threshold),
		slog.String("reward", ev.Reward),
	)

	return nil
}

// refreshBody fetches and persists the latest weight and BMI.
func (o *Orchestrator) refreshBody(ctx context.Context, now time.Time) error {
	sample, err := o.adapter.FetchWeight(ctx)
	if err != nil {
		return fmt.Errorf("engine: refreshing weight: %w", err)
	}

	if sample != nil {
		if err := o.store.SaveWeight(ctx, toKilograms(sample.Weight), now); err != nil {
			return err
		}
	}

	bmi, err := o.adapter.FetchBMI(ctx)
	if err != nil {
		return fmt.Errorf("engine: refreshing bmi: %w", err)
	}

	if bmi != nil {
		if err := o.store.SaveBMI(ctx, bmi.Value, now); err != nil {
			return err
		}
	}

	return nil
}

// --- Collaborator read surface ---

// CurrentMetrics returns today's cached reconciled snapshot, or nil
// when no sync has produced one yet.
func (o *Orchestrator) CurrentMetrics(ctx context.Context) (*DailyMetrics, error) {
	return o.store.DailyMetrics(ctx, o.adapter.ID(), DayKey(o.nowFunc()))
}

// Goals returns the stored goal set (defaults when never set).
func (o *Orchestrator) Goals(ctx context.Context) (GoalSet, error) {
	return o.store.Goals(ctx)
}

// Streak returns the stored consecutive-day streak.
func (o *Orchestrator) Streak(ctx context.Context) (int, error) {
	return o.store.Streak(ctx)
}

// PersonalRecords returns the stored historical maxima.
func (o *Orchestrator) PersonalRecords(ctx context.Context) (PersonalRecords, error) {
	return o.store.Records(ctx)
}

// PendingMilestones returns milestone events awaiting presentation.
func (o *Orchestrator) PendingMilestones(ctx context.Context) ([]MilestoneEvent, error) {
	return o.store.PendingMilestones(ctx)
}

// ClearPendingMilestones acknowledges presented milestone events.
func (o *Orchestrator) ClearPendingMilestones(ctx context.Context) error {
	return o.store.ClearPendingMilestones(ctx)
}

// LastSyncStatus returns the outcome of the most recent sync attempt.
func (o *Orchestrator) LastSyncStatus(ctx context.Context) (SyncStatus, error) {
	return o.store.Status(ctx)
}

// Body returns the persisted weight/BMI snapshot.
func (o *Orchestrator) Body(ctx context.Context) (BodyState, error) {
	return o.store.Body(ctx)
}

// SetGoals validates and stores a manually-set goal set. The same
// all-or-nothing positivity rule applies as for provider goals.
func (o *Orchestrator) SetGoals(ctx context.Context, g GoalSet) error {
	if !g.Valid() {
		return fmt.Errorf("engine: goal set rejected: move, exercise, and stand must all be positive")
	}

	return o.store.SaveGoals(ctx, g, o.nowFunc())
}

// SetWeightGoal stores the user's target weight in kilograms.
func (o *Orchestrator) SetWeightGoal(ctx context.Context, kg float64) error {
	if kg <= 0 {
		return fmt.Errorf("engine: weight goal must be positive")
	}

	return o.store.SaveWeightGoal(ctx, kg, o.nowFunc())
}
