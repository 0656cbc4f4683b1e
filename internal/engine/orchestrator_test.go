package engine

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ringsync/ringsync/internal/provider"
)

func newTestOrchestrator(t *testing.T, f *fakeAdapter, backend Backend, now time.Time) (*Orchestrator, *Store) {
	t.Helper()

	store := newTestStore(t)

	o := New(Options{
		Adapter:       f,
		Backend:       backend,
		Store:         store,
		Logger:        quietLogger(),
		FetchDeadline: time.Second,
		InterDayDelay: time.Millisecond,
		NowFunc:       func() time.Time { return now },
	})
	o.backfiller.sleepFunc = func(_ context.Context, _ time.Duration) error { return nil }

	return o, store
}

func connect(t *testing.T, o *Orchestrator) {
	t.Helper()

	ok, err := o.ConnectProvider(context.Background())
	require.NoError(t, err)
	require.True(t, ok)
}

func TestSyncNow_RequiresConnection(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)
	o, _ := newTestOrchestrator(t, newFakeAdapter(), newFakeBackend(), now)

	err := o.SyncNow(context.Background(), "user-1")
	require.ErrorIs(t, err, ErrNotConnected)
}

func TestSyncNow_FirstSyncBootstrapsThenCatchesUp(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)

	f := newFakeAdapter()
	f.summary = &provider.DaySummary{ActiveCalories: 420, ExerciseMinutes: 25, StandHours: 9}
	f.steps = 7000

	backend := newFakeBackend()
	o, store := newTestOrchestrator(t, f, backend, now)

	ctx := context.Background()
	connect(t, o)

	// First sync: 28 backfilled days plus today.
	require.NoError(t, o.SyncNow(ctx, "user-1"))
	assert.Len(t, backend.submissions, bootstrapWindowDays+1)

	cur, err := store.Cursor(ctx, "fake")
	require.NoError(t, err)
	assert.True(t, cur.InitialBackfillDone)
	assert.Equal(t, now.Unix(), cur.LastSyncAt.Unix())

	// Second sync the same day: only yesterday re-finalized and today
	// re-submitted. Older days are untouched.
	require.NoError(t, o.SyncNow(ctx, "user-1"))

	yesterday := DayKey(startOfDay(now).AddDate(0, 0, -1))
	twoDaysAgo := DayKey(startOfDay(now).AddDate(0, 0, -2))

	assert.Equal(t, 2, backend.submitCount[yesterday])
	assert.Equal(t, 2, backend.submitCount[DayKey(now)])
	assert.Equal(t, 1, backend.submitCount[twoDaysAgo])

	// The sync surface reflects a clean pass.
	st, err := o.LastSyncStatus(ctx)
	require.NoError(t, err)
	assert.Empty(t, st.LastError)

	// Today's snapshot is readable.
	m, err := o.CurrentMetrics(ctx)
	require.NoError(t, err)
	require.NotNil(t, m)
	assert.InDelta(t, 420.0, m.ActiveCalories, 0.001)
	assert.Equal(t, 7000, m.Steps)
}

func TestSyncNow_CoalescesOverlappingInvocations(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)
	o, _ := newTestOrchestrator(t, newFakeAdapter(), newFakeBackend(), now)

	// Simulate an in-flight sync holding the lock.
	require.True(t, o.syncMu.TryLock())
	defer o.syncMu.Unlock()

	err := o.SyncNow(context.Background(), "user-1")
	require.ErrorIs(t, err, ErrSyncInFlight)
}

func TestSyncNow_CancellationPropagates(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)
	o, store := newTestOrchestrator(t, newFakeAdapter(), newFakeBackend(), now)
	connect(t, o)

	ctx, cancel := context.WithCancel(context.Background())

	// Cancel at the first inter-day backfill delay.
	o.backfiller.sleepFunc = func(c context.Context, _ time.Duration) error {
		cancel()
		return c.Err()
	}

	err := o.SyncNow(ctx, "user-1")
	require.ErrorIs(t, err, context.Canceled)

	// The interruption is still visible on the status surface.
	st, err := store.Status(context.Background())
	require.NoError(t, err)
	assert.Contains(t, st.LastError, "canceled")
}

func TestSyncNow_AdoptsValidProviderGoals(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)

	f := newFakeAdapter()
	f.summary = &provider.DaySummary{
		ActiveCalories: 100, ExerciseMinutes: 10, StandHours: 3,
		MoveGoal: 600, ExerciseGoal: 40, StandGoal: 10, StepsGoal: 9000,
	}

	o, _ := newTestOrchestrator(t, f, newFakeBackend(), now)

	ctx := context.Background()
	connect(t, o)
	require.NoError(t, o.SyncNow(ctx, "user-1"))

	goals, err := o.Goals(ctx)
	require.NoError(t, err)
	assert.Equal(t, GoalSet{MoveCalories: 600, ExerciseMinutes: 40, StandHours: 10, Steps: 9000}, goals)
}

func TestSyncNow_InvalidProviderGoalsLeaveStoredUntouched(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)

	f := newFakeAdapter()
	// Zero move goal fails the all-or-nothing rule.
	f.summary = &provider.DaySummary{
		ActiveCalories: 100, ExerciseMinutes: 10, StandHours: 3,
		MoveGoal: 0, ExerciseGoal: 30, StandGoal: 12,
	}

	o, store := newTestOrchestrator(t, f, newFakeBackend(), now)

	ctx := context.Background()

	stored := GoalSet{MoveCalories: 550, ExerciseMinutes: 35, StandHours: 11, Steps: 8000}
	require.NoError(t, store.SaveGoals(ctx, stored, now))

	connect(t, o)
	require.NoError(t, o.SyncNow(ctx, "user-1"))

	goals, err := o.Goals(ctx)
	require.NoError(t, err)
	assert.Equal(t, stored, goals)
}

func TestSyncNow_BackendFailureIsRecordedNotFatal(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)

	f := newFakeAdapter()
	f.summary = &provider.DaySummary{ActiveCalories: 300, ExerciseMinutes: 20, StandHours: 8}

	backend := newFakeBackend()
	backend.submitErr = errors.New("scoring service unreachable")

	o, store := newTestOrchestrator(t, f, backend, now)

	ctx := context.Background()
	connect(t, o)
	require.NoError(t, o.SyncNow(ctx, "user-1"), "backend failure must not fail the sync")

	st, err := o.LastSyncStatus(ctx)
	require.NoError(t, err)
	assert.NotEmpty(t, st.LastError)

	// Cursor did not advance: the next sync retries the same days.
	cur, err := store.Cursor(ctx, "fake")
	require.NoError(t, err)
	assert.True(t, cur.LastSyncAt.IsZero())

	// Local metrics still updated — the user sees fresh numbers even
	// when the backend is down.
	m, err := o.CurrentMetrics(ctx)
	require.NoError(t, err)
	require.NotNil(t, m)
}

func TestSyncNow_MilestoneEmittedOnceAcrossRepeatedSyncs(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 3, 14, 21, 0, 0, 0, time.UTC)

	f := newFakeAdapter()
	f.summary = &provider.DaySummary{ActiveCalories: 300, ExerciseMinutes: 20, StandHours: 8}

	// Seven consecutive workout days ending today.
	for i := 0; i < 7; i++ {
		f.workouts = append(f.workouts, workoutOn(now, i))
	}

	backend := newFakeBackend()
	o, _ := newTestOrchestrator(t, f, backend, now)

	ctx := context.Background()
	connect(t, o)

	require.NoError(t, o.SyncNow(ctx, "user-1"))

	pending, err := o.PendingMilestones(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, "streak_7", pending[0].MilestoneID)
	assert.Equal(t, 7, pending[0].Days)
	assert.Len(t, backend.milestones, 1)

	// Clearing the queue and re-syncing must not re-celebrate.
	require.NoError(t, o.ClearPendingMilestones(ctx))
	require.NoError(t, o.SyncNow(ctx, "user-1"))

	pending, err = o.PendingMilestones(ctx)
	require.NoError(t, err)
	assert.Empty(t, pending)
	assert.Len(t, backend.milestones, 1)

	streak, err := o.Streak(ctx)
	require.NoError(t, err)
	assert.Equal(t, 7, streak)
}

func TestSyncNow_RingsClosedOnceAcrossRepeatedSyncs(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 3, 14, 21, 0, 0, 0, time.UTC)

	f := newFakeAdapter()
	f.summary = &provider.DaySummary{ActiveCalories: 620, ExerciseMinutes: 45, StandHours: 12}

	backend := newFakeBackend()
	o, _ := newTestOrchestrator(t, f, backend, now)

	ctx := context.Background()
	connect(t, o)

	require.NoError(t, o.SyncNow(ctx, "user-1"))
	require.NoError(t, o.SyncNow(ctx, "user-1"))

	assert.Len(t, backend.ringsEvents, 1)
}

func TestSyncNow_RefreshesBodyState(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)

	f := newFakeAdapter()
	f.summary = &provider.DaySummary{ActiveCalories: 300, ExerciseMinutes: 20, StandHours: 8}
	f.weight = &provider.WeightSample{
		Weight: provider.Quantity{Value: 176.4, Unit: provider.UnitPounds},
		Taken:  now.Add(-2 * time.Hour),
	}

	o, _ := newTestOrchestrator(t, f, newFakeBackend(), now)

	ctx := context.Background()
	connect(t, o)
	require.NoError(t, o.SyncNow(ctx, "user-1"))

	body, err := o.Body(ctx)
	require.NoError(t, err)
	require.NotNil(t, body.WeightKg)
	assert.InDelta(t, 176.4*0.45359237, *body.WeightKg, 0.01)
}

func TestSetGoals_RejectsInvalidSet(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)
	o, _ := newTestOrchestrator(t, newFakeAdapter(), newFakeBackend(), now)

	err := o.SetGoals(context.Background(), GoalSet{MoveCalories: 0, ExerciseMinutes: 30, StandHours: 12})
	require.Error(t, err)

	require.NoError(t, o.SetGoals(context.Background(), GoalSet{
		MoveCalories: 500, ExerciseMinutes: 30, StandHours: 12, Steps: 10000,
	}))
}
