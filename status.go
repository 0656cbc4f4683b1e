package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/ringsync/ringsync/internal/engine"
	"github.com/ringsync/ringsync/internal/provider/healthd"
)

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show today's metrics, streak, records, and sync state",
		Long: `Display today's synced metrics against goals, the current streak,
personal records, pending milestones, and the outcome of the last
sync. Reads local state only — never contacts the daemon or backend.`,
		RunE: runStatus,
	}
}

// statusReport is the JSON shape of the status command output.
type statusReport struct {
	Provider  string `json:"provider"`
	Connected bool   `json:"connected"`
	Date      string `json:"date"`

	Metrics *metricsReport `json:"metrics,omitempty"`
	Goals   goalsReport    `json:"goals"`

	StreakDays int           `json:"streak_days"`
	Records    recordsReport `json:"records"`

	PendingMilestones []milestoneReport `json:"pending_milestones,omitempty"`

	WeightKg     *float64 `json:"weight_kg,omitempty"`
	WeightGoalKg *float64 `json:"weight_goal_kg,omitempty"`
	BMI          *float64 `json:"bmi,omitempty"`

	LastSyncAt    string `json:"last_sync_at,omitempty"`
	LastSyncError string `json:"last_sync_error,omitempty"`
}

type metricsReport struct {
	ActiveCalories    float64 `json:"active_calories"`
	ExerciseMinutes   int     `json:"exercise_minutes"`
	StandHours        int     `json:"stand_hours"`
	Steps             int     `json:"steps"`
	DistanceMeters    float64 `json:"distance_meters"`
	HeartRateAvg      float64 `json:"heart_rate_avg,omitempty"`
	WorkoutsCompleted int     `json:"workouts_completed"`
}

type goalsReport struct {
	MoveCalories    float64 `json:"move_calories"`
	ExerciseMinutes int     `json:"exercise_minutes"`
	StandHours      int     `json:"stand_hours"`
	Steps           int     `json:"steps"`
}

type recordsReport struct {
	MaxDailyCalories  float64 `json:"max_daily_calories"`
	MaxDailySteps     int     `json:"max_daily_steps"`
	MaxWeeklyWorkouts int     `json:"max_weekly_workouts"`
}

type milestoneReport struct {
	Days   int    `json:"days"`
	Reward string `json:"reward"`
}

func runStatus(cmd *cobra.Command, _ []string) error {
	logger := buildLogger()

	store, err := openStore(logger)
	if err != nil {
		return err
	}
	defer store.Close()

	report, err := buildStatusReport(cmd.Context(), store)
	if err != nil {
		return err
	}

	if flagJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")

		return enc.Encode(report)
	}

	printStatusText(report)

	return nil
}

func buildStatusReport(ctx context.Context, store *engine.Store) (*statusReport, error) {
	today := engine.DayKey(time.Now())

	conn, err := store.Connection(ctx, healthd.ProviderID)
	if err != nil {
		return nil, err
	}

	metrics, err := store.DailyMetrics(ctx, healthd.ProviderID, today)
	if err != nil {
		return nil, err
	}

	goals, err := store.Goals(ctx)
	if err != nil {
		return nil, err
	}

	streak, err := store.Streak(ctx)
	if err != nil {
		return nil, err
	}

	records, err := store.Records(ctx)
	if err != nil {
		return nil, err
	}

	pending, err := store.PendingMilestones(ctx)
	if err != nil {
		return nil, err
	}

	body, err := store.Body(ctx)
	if err != nil {
		return nil, err
	}

	st, err := store.Status(ctx)
	if err != nil {
		return nil, err
	}

	report := &statusReport{
		Provider:  string(healthd.ProviderID),
		Connected: conn.Connected,
		Date:      today,
		Goals: goalsReport{
			MoveCalories:    goals.MoveCalories,
			ExerciseMinutes: goals.ExerciseMinutes,
			StandHours:      goals.StandHours,
			Steps:           goals.Steps,
		},
		StreakDays: streak,
		Records: recordsReport{
			MaxDailyCalories:  records.MaxDailyCalories,
			MaxDailySteps:     records.MaxDailySteps,
			MaxWeeklyWorkouts: records.MaxWeeklyWorkouts,
		},
		WeightKg:      body.WeightKg,
		WeightGoalKg:  body.WeightGoalKg,
		BMI:           body.BMI,
		LastSyncError: st.LastError,
	}

	if metrics != nil {
		report.Metrics = &metricsReport{
			ActiveCalories:    metrics.ActiveCalories,
			ExerciseMinutes:   metrics.ExerciseMinutes,
			StandHours:        metrics.StandHours,
			Steps:             metrics.Steps,
			DistanceMeters:    metrics.DistanceMeters,
			HeartRateAvg:      metrics.HeartRateAvg,
			WorkoutsCompleted: metrics.WorkoutsCompleted,
		}
	}

	if !st.LastAttemptAt.IsZero() {
		report.LastSyncAt = formatTime(st.LastAttemptAt)
	}

	for _, m := range pending {
		report.PendingMilestones = append(report.PendingMilestones, milestoneReport{Days: m.Days, Reward: m.Reward})
	}

	return report, nil
}

func printStatusText(r *statusReport) {
	if !r.Connected {
		fmt.Println("No provider connected. Run 'ringsync connect healthd' to get started.")
		return
	}

	fmt.Printf("Today (%s)\n", r.Date)

	if r.Metrics == nil {
		fmt.Println("  no data synced yet — run 'ringsync sync'")
	} else {
		m, g := r.Metrics, r.Goals
		fmt.Printf("  Move      %s\n", ringLine(m.ActiveCalories, g.MoveCalories, "kcal"))
		fmt.Printf("  Exercise  %s\n", ringLine(float64(m.ExerciseMinutes), float64(g.ExerciseMinutes), "min"))
		fmt.Printf("  Stand     %s\n", ringLine(float64(m.StandHours), float64(g.StandHours), "h"))
		fmt.Printf("  Steps     %s", formatCount(m.Steps))

		if g.Steps > 0 {
			fmt.Printf(" / %s", formatCount(g.Steps))
		}

		fmt.Println()

		if m.DistanceMeters > 0 {
			fmt.Printf("  Distance  %.1f km\n", m.DistanceMeters/1000)
		}

		if m.WorkoutsCompleted > 0 {
			fmt.Printf("  Workouts  %d\n", m.WorkoutsCompleted)
		}
	}

	fmt.Printf("\nStreak: %d days\n", r.StreakDays)

	fmt.Printf("Records: %.0f kcal best day, %s steps best day, %d workouts best week\n",
		r.Records.MaxDailyCalories, formatCount(r.Records.MaxDailySteps), r.Records.MaxWeeklyWorkouts)

	for _, m := range r.PendingMilestones {
		fmt.Printf("Milestone earned: %d days (%s)\n", m.Days, m.Reward)
	}

	if r.WeightKg != nil {
		fmt.Printf("Weight: %.1f kg", *r.WeightKg)

		if r.WeightGoalKg != nil {
			fmt.Printf(" (goal %.1f kg)", *r.WeightGoalKg)
		}

		fmt.Println()
	}

	if r.LastSyncAt != "" {
		fmt.Printf("Last sync: %s", r.LastSyncAt)

		if r.LastSyncError != "" {
			fmt.Printf(" — %s", r.LastSyncError)
		}

		fmt.Println()
	}
}
