package engine

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func closedDay() *DailyMetrics {
	return &DailyMetrics{
		Date:            "2026-03-14",
		ActiveCalories:  520,
		ExerciseMinutes: 35,
		StandHours:      12,
		Steps:           11000,
		Provider:        "fake",
		LastUpdated:     time.Unix(1770000000, 0),
	}
}

func defaultGoals() GoalSet {
	return GoalSet{MoveCalories: 500, ExerciseMinutes: 30, StandHours: 12, Steps: 10000}
}

func TestDetector_RingsClosedAtMostOncePerDay(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	backend := newFakeBackend()
	d := NewDetector(backend, store, quietLogger())

	ctx := context.Background()

	// Two qualifying evaluations of the same day.
	require.NoError(t, d.Run(ctx, "user-1", closedDay(), defaultGoals(), 0))
	require.NoError(t, d.Run(ctx, "user-1", closedDay(), defaultGoals(), 0))

	assert.Len(t, backend.ringsEvents, 1, "exactly one rings-closed event per user-day")
}

func TestDetector_NoEventWhenAnyRingOpen(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	backend := newFakeBackend()
	d := NewDetector(backend, store, quietLogger())

	m := closedDay()
	m.StandHours = 11 // one ring short

	require.NoError(t, d.Run(context.Background(), "user-1", m, defaultGoals(), 0))

	assert.Empty(t, backend.ringsEvents)
}

func TestDetector_RecordsAreMonotonic(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	backend := newFakeBackend()
	d := NewDetector(backend, store, quietLogger())

	ctx := context.Background()

	big := closedDay()
	big.ActiveCalories = 900
	big.Steps = 20000
	require.NoError(t, d.Run(ctx, "user-1", big, defaultGoals(), 5))

	records, err := store.Records(ctx)
	require.NoError(t, err)
	assert.InDelta(t, 900.0, records.MaxDailyCalories, 0.001)
	assert.Equal(t, 20000, records.MaxDailySteps)
	assert.Equal(t, 5, records.MaxWeeklyWorkouts)

	// A smaller day must not lower any maximum.
	small := closedDay()
	small.ActiveCalories = 100
	small.Steps = 2000
	require.NoError(t, d.Run(ctx, "user-1", small, defaultGoals(), 1))

	records, err = store.Records(ctx)
	require.NoError(t, err)
	assert.InDelta(t, 900.0, records.MaxDailyCalories, 0.001)
	assert.Equal(t, 20000, records.MaxDailySteps)
	assert.Equal(t, 5, records.MaxWeeklyWorkouts)

	// Equal values are not "strictly exceeds" and leave rows alone.
	equal := closedDay()
	equal.ActiveCalories = 900
	equal.Steps = 20000
	require.NoError(t, d.Run(ctx, "user-1", equal, defaultGoals(), 5))

	records, err = store.Records(ctx)
	require.NoError(t, err)
	assert.InDelta(t, 900.0, records.MaxDailyCalories, 0.001)
}

func TestDetector_ExistenceCheckFailureDoesNotCreate(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	backend := newFakeBackend()
	backend.existsErr = assert.AnError
	d := NewDetector(backend, store, quietLogger())

	err := d.Run(context.Background(), "user-1", closedDay(), defaultGoals(), 0)
	require.Error(t, err)
	assert.Empty(t, backend.ringsEvents, "no event may be created when the dedup check fails")
}
