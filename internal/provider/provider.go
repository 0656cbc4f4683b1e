// Package provider defines the capability contract that every metrics
// provider adapter implements, the shared error taxonomy for adapter
// failures, and the deadline wrapper used to race slow provider calls
// against a fallback value.
package provider

import (
	"context"
	"time"
)

// ID identifies a provider ("healthd", "fitbit", ...). IDs are stable
// and appear in persisted state, so they must never be renamed.
type ID string

// Adapter is the capability set every data source implements. One
// adapter instance exists per provider, constructed explicitly and
// owned by the orchestrator — there is no package-level singleton.
//
// All fetch methods take a context and respect its deadline. None of
// them call the scoring backend; adapters talk only to their own
// provider API.
type Adapter interface {
	// ID returns the stable provider identifier.
	ID() ID

	// IsAvailable reports whether this adapter can run at all on the
	// current platform/configuration. It is a pure check and performs
	// no I/O.
	IsAvailable() bool

	// RequestAccess performs the one-time authorization handshake with
	// the provider. It returns false (not an error) when the user
	// denies access.
	RequestAccess(ctx context.Context) (bool, error)

	// Connect is idempotent: if access is already granted it returns
	// true immediately, otherwise it delegates to RequestAccess.
	Connect(ctx context.Context) (bool, error)

	// Disconnect tears down the provider session. It does not revoke
	// the underlying grant.
	Disconnect(ctx context.Context) error

	// FetchMetrics returns the provider's authoritative daily summary
	// for the given local day, including goal targets when the
	// provider reports them. "No data recorded" is a valid result with
	// zero values, not an error; nil is returned only when the
	// provider could not be reached at all.
	FetchMetrics(ctx context.Context, day time.Time) (*DaySummary, error)

	// FetchWorkouts returns all workout sessions whose start time
	// falls within [start, end).
	FetchWorkouts(ctx context.Context, start, end time.Time) ([]Workout, error)

	// FetchWeight returns the most recent body-weight sample, or nil
	// when the provider has none.
	FetchWeight(ctx context.Context) (*WeightSample, error)

	// FetchWeightHistory returns weight samples from the trailing
	// number of days, newest first.
	FetchWeightHistory(ctx context.Context, days int) ([]WeightSample, error)

	// FetchBMI returns the most recent body-mass-index reading, or nil
	// when the provider has none.
	FetchBMI(ctx context.Context) (*BMISample, error)
}

// SampleSource is the optional fine-grained query surface used by the
// reconciler for fallback raw-sample aggregation and for the
// always-fetched window metrics (steps, distance, heart rate, workout
// count). Adapters that only expose pre-aggregated daily feeds don't
// implement it; the reconciler degrades those fields to zero.
//
// All windows are half-open [start, end) in the device's local time.
// Quantities are returned in the provider's native unit; the
// reconciler normalizes, so adapters never convert.
type SampleSource interface {
	ActiveEnergySum(ctx context.Context, start, end time.Time) (float64, error)
	ExerciseMinutesSum(ctx context.Context, start, end time.Time) (int, error)
	StandHoursSum(ctx context.Context, start, end time.Time) (int, error)
	StepsSum(ctx context.Context, start, end time.Time) (int, error)
	DistanceSum(ctx context.Context, start, end time.Time) (Quantity, error)
	HeartRateAvg(ctx context.Context, start, end time.Time) (float64, error)
	WorkoutCount(ctx context.Context, start, end time.Time) (int, error)
}

// Unit labels the measurement unit of a Quantity as reported by a
// provider. Conversion to canonical units (meters, kilograms) is the
// reconciler's job.
type Unit string

const (
	UnitMeters     Unit = "m"
	UnitKilometers Unit = "km"
	UnitMiles      Unit = "mi"
	UnitKilograms  Unit = "kg"
	UnitPounds     Unit = "lb"
)

// Quantity is a value paired with its provider-native unit.
type Quantity struct {
	Value float64
	Unit  Unit
}

// DaySummary is a provider's own pre-aggregated per-day activity
// totals — what that provider's first-party app displays. Goal fields
// are zero when the provider does not report goals.
type DaySummary struct {
	ActiveCalories  float64
	ExerciseMinutes int
	StandHours      int

	// Goal targets as reported by the provider. Subject to the
	// all-or-nothing validity rule enforced by the reconciler.
	MoveGoal     float64
	ExerciseGoal int
	StandGoal    int
	StepsGoal    int
}

// Workout is one activity session as reported by a provider. Immutable
// once fetched. Identity is provider-scoped: Key() falls back to a
// (start, end) composite when the provider has no stable ID.
type Workout struct {
	ID              string
	Type            string
	Start           time.Time
	End             time.Time
	DurationMinutes int
	Calories        float64
	Distance        Quantity // zero Value when not distance-based
	Provider        ID
	Source          string // originating app/device name
}

// Key returns the provider-scoped identity of the workout.
func (w Workout) Key() string {
	if w.ID != "" {
		return string(w.Provider) + "|" + w.ID
	}

	return string(w.Provider) + "|" + w.Start.Format(time.RFC3339) + "|" + w.End.Format(time.RFC3339)
}

// WeightSample is one body-weight reading in the provider's native
// unit.
type WeightSample struct {
	Weight Quantity
	Taken  time.Time
}

// BMISample is one body-mass-index reading.
type BMISample struct {
	Value float64
	Taken time.Time
}
