package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

func newGoalsCmd() *cobra.Command {
	var (
		move     float64
		exercise int
		stand    int
		steps    int
	)

	cmd := &cobra.Command{
		Use:   "goals",
		Short: "Show or set daily goal targets",
		Long: `Show the stored daily goals, or set them with flags.

Setting any ring goal requires all three: move, exercise, and stand
must be positive together. The steps goal may be set independently.
A manually set goal is replaced the next time the provider reports
its own valid goal set.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runGoals(cmd, move, exercise, stand, steps)
		},
	}

	cmd.Flags().Float64Var(&move, "move", 0, "move goal in kcal")
	cmd.Flags().IntVar(&exercise, "exercise", 0, "exercise goal in minutes")
	cmd.Flags().IntVar(&stand, "stand", 0, "stand goal in hours")
	cmd.Flags().IntVar(&steps, "steps", 0, "step goal")

	return cmd
}

func runGoals(cmd *cobra.Command, move float64, exercise, stand, steps int) error {
	logger := buildLogger()

	store, err := openStore(logger)
	if err != nil {
		return err
	}
	defer store.Close()

	ctx := cmd.Context()

	anyRingFlag := cmd.Flags().Changed("move") || cmd.Flags().Changed("exercise") || cmd.Flags().Changed("stand")
	stepsFlag := cmd.Flags().Changed("steps")

	if !anyRingFlag && !stepsFlag {
		goals, err := store.Goals(ctx)
		if err != nil {
			return err
		}

		fmt.Printf("Move      %.0f kcal\n", goals.MoveCalories)
		fmt.Printf("Exercise  %d min\n", goals.ExerciseMinutes)
		fmt.Printf("Stand     %d h\n", goals.StandHours)
		fmt.Printf("Steps     %s\n", formatCount(goals.Steps))

		return nil
	}

	goals, err := store.Goals(ctx)
	if err != nil {
		return err
	}

	if anyRingFlag {
		// Ring goals change as a set, starting from the stored values.
		if cmd.Flags().Changed("move") {
			goals.MoveCalories = move
		}

		if cmd.Flags().Changed("exercise") {
			goals.ExerciseMinutes = exercise
		}

		if cmd.Flags().Changed("stand") {
			goals.StandHours = stand
		}

		if !goals.Valid() {
			return fmt.Errorf("invalid goals: move, exercise, and stand must all be positive")
		}
	}

	if stepsFlag {
		if steps < 0 {
			return fmt.Errorf("invalid goals: steps must not be negative")
		}

		goals.Steps = steps
	}

	if err := store.SaveGoals(ctx, goals, time.Now()); err != nil {
		return err
	}

	statusf(flagQuiet, "Goals updated.\n")

	return nil
}
