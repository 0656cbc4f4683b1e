package main

import (
	"context"
	"errors"
	"time"

	"github.com/spf13/cobra"

	"github.com/ringsync/ringsync/internal/engine"
)

func newSyncCmd() *cobra.Command {
	var (
		watch    bool
		interval time.Duration
	)

	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Sync metrics to the scoring service",
		Long: `Run one sync pass: backfill missed days, reconcile today, submit to
the scoring service, and update streaks and records.

With --watch, keeps running and syncs on a fixed interval until
interrupted.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runSync(cmd, watch, interval)
		},
	}

	cmd.Flags().BoolVar(&watch, "watch", false, "sync continuously on an interval")
	cmd.Flags().DurationVar(&interval, "interval", 0, "watch interval (overrides config)")

	return cmd
}

func runSync(cmd *cobra.Command, watch bool, interval time.Duration) error {
	userID, err := requireUserID()
	if err != nil {
		return err
	}

	logger := buildLogger()

	orch, store, err := buildOrchestrator(logger)
	if err != nil {
		return err
	}
	defer store.Close()

	ctx := shutdownContext(cmd.Context(), logger)

	if !watch {
		return syncOnce(ctx, orch, userID)
	}

	if interval <= 0 {
		interval = resolvedCfg.SyncInterval()
	}

	return watchLoop(ctx, orch, userID, interval)
}

// syncOnce runs a single pass and reports the outcome, including any
// partial faults recorded on the status surface.
func syncOnce(ctx context.Context, orch *engine.Orchestrator, userID string) error {
	if err := orch.SyncNow(ctx, userID); err != nil {
		return err
	}

	reportMilestones(ctx, orch)

	st, err := orch.LastSyncStatus(ctx)
	if err != nil {
		return err
	}

	if st.LastError != "" {
		statusf(flagQuiet, "Sync finished with problems: %s\n", st.LastError)
		return nil
	}

	statusf(flagQuiet, "Sync complete.\n")

	return nil
}

// watchLoop syncs immediately and then on every tick until the context
// is canceled. A failed pass is logged and retried on the next tick
// rather than terminating the loop.
func watchLoop(ctx context.Context, orch *engine.Orchestrator, userID string, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	runPass := func() {
		if err := orch.SyncNow(ctx, userID); err != nil {
			if errors.Is(err, engine.ErrSyncInFlight) || ctx.Err() != nil {
				return
			}

			statusf(flagQuiet, "Sync failed: %v (retrying in %s)\n", err, interval)

			return
		}

		reportMilestones(ctx, orch)
	}

	runPass()

	for {
		select {
		case <-ctx.Done():
			statusf(flagQuiet, "Stopping.\n")
			return nil
		case <-ticker.C:
			runPass()
		}
	}
}

// reportMilestones prints newly earned streak milestones and clears
// the pending queue. Printing counts as presentation.
func reportMilestones(ctx context.Context, orch *engine.Orchestrator) {
	pending, err := orch.PendingMilestones(ctx)
	if err != nil || len(pending) == 0 {
		return
	}

	for _, m := range pending {
		statusf(flagQuiet, "🎉 Streak milestone: %d days! Reward unlocked: %s\n", m.Days, m.Reward)
	}

	if err := orch.ClearPendingMilestones(ctx); err != nil {
		statusf(flagQuiet, "could not clear milestone queue: %v\n", err)
	}
}
