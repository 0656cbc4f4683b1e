// Package engine implements the health-metrics synchronization engine:
// per-day metrics reconciliation, idempotent multi-day backfill, streak
// calculation, derived-event detection, and the orchestrator that
// sequences them and owns all persisted state.
package engine

import (
	"context"
	"time"

	"github.com/ringsync/ringsync/internal/provider"
)

// DailyMetrics is one user-day's reconciled snapshot. It is created by
// the reconciler and never mutated afterward — a re-sync replaces the
// whole record.
type DailyMetrics struct {
	Date              string // local YYYY-MM-DD
	ActiveCalories    float64
	ExerciseMinutes   int
	StandHours        int
	Steps             int
	DistanceMeters    float64
	HeartRateAvg      float64
	WorkoutsCompleted int
	LastUpdated       time.Time
	Provider          provider.ID

	// Goals extracted from the provider summary, nil when the summary
	// carried no valid goal set. A nil Goals leaves the stored GoalSet
	// untouched.
	Goals *GoalSet
}

// GoalSet holds the user's daily goal targets.
type GoalSet struct {
	MoveCalories    float64
	ExerciseMinutes int
	StandHours      int
	Steps           int
}

// Valid reports whether a provider-derived GoalSet may replace the
// stored one. The rule is all-or-nothing on the three ring goals: all
// of move, exercise, and stand must be strictly positive. Steps is not
// part of the rule — many providers don't report a step goal.
func (g GoalSet) Valid() bool {
	return g.MoveCalories > 0 && g.ExerciseMinutes > 0 && g.StandHours > 0
}

// ProviderConnection is the persisted connect/disconnect state for one
// known provider. Created on first reference with Connected=false,
// never deleted.
type ProviderConnection struct {
	Provider   provider.ID
	Connected  bool
	LastSyncAt time.Time // wall time of the last sync attempt
}

// SyncCursor marks the most recent successful sync for one provider.
// Advanced only after a day's submission succeeds. The bootstrap flag
// is one-shot: once the initial 28-day backfill completes it stays set.
type SyncCursor struct {
	Provider            provider.ID
	LastSyncAt          time.Time
	InitialBackfillDone bool
}

// PersonalRecords holds monotonically non-decreasing historical
// maxima. A field is updated only when a new value strictly exceeds it.
type PersonalRecords struct {
	MaxDailyCalories  float64
	MaxDailySteps     int
	MaxWeeklyWorkouts int
}

// StreakState is the persisted consecutive-activity-day count. It is
// recomputed wholesale on every evaluation, never incremented, so it
// stays correct after backfills and missed days.
type StreakState struct {
	CurrentDays int
}

// MilestoneEvent is a one-time celebration produced when a streak
// crosses a fixed threshold. Events queue as "pending" until the
// presentation layer clears them.
type MilestoneEvent struct {
	ID          string // client-generated UUID
	MilestoneID string // e.g. "streak_7", stable dedup key
	Days        int
	Reward      string
	CreatedAt   time.Time
}

// DaySubmission is the per-day payload sent to the scoring backend.
// Submission is an upsert keyed by (user, date): re-submitting the
// same day is a no-op server-side, which is what makes backfill safe
// to re-run.
type DaySubmission struct {
	Date              string  `json:"date"` // local YYYY-MM-DD
	MoveCalories      int     `json:"moveCalories"`
	ExerciseMinutes   int     `json:"exerciseMinutes"`
	StandHours        int     `json:"standHours"`
	Steps             int     `json:"steps"`
	DistanceMeters    float64 `json:"distanceMeters"`
	WorkoutsCompleted int     `json:"workoutsCompleted"`
}

// RingsClosedEvent records that all three ring goals were met on a
// day. At most one exists per user per day; the backend existence
// check enforces the dedup across repeated syncs.
type RingsClosedEvent struct {
	ID   string `json:"id"`   // client-generated UUID
	Date string `json:"date"` // local YYYY-MM-DD
}

// MilestoneRecord is the backend-side registration of a streak
// milestone, keyed by MilestoneID for dedup.
type MilestoneRecord struct {
	ID          string `json:"id"` // client-generated UUID
	MilestoneID string `json:"milestoneId"`
	Days        int    `json:"days"`
	Reward      string `json:"reward"`
}

// Backend is the scoring-service surface the engine needs. Defined
// here at the consumer per Go convention; internal/scoring provides
// the real implementation.
type Backend interface {
	SubmitDay(ctx context.Context, userID string, day DaySubmission) error
	RingsClosedExists(ctx context.Context, userID, date string) (bool, error)
	CreateRingsClosed(ctx context.Context, userID string, ev RingsClosedEvent) error
	MilestoneExists(ctx context.Context, userID, milestoneID string) (bool, error)
	CreateMilestone(ctx context.Context, userID string, m MilestoneRecord) error
}
