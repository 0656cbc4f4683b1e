package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

// knownProviders maps CLI provider names to support status. Only the
// local health daemon ships today; the adapter contract keeps the door
// open for third-party providers.
var knownProviders = map[string]bool{
	"healthd": true,
}

func newConnectCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "connect <provider>",
		Short: "Connect a metrics provider and run the first sync",
		Long: `Connect a metrics provider.

Checks availability, runs the authorization handshake, and performs
the first sync, which backfills the last 28 days of history.`,
		Args: cobra.ExactArgs(1),
		RunE: runConnect,
	}
}

func runConnect(cmd *cobra.Command, args []string) error {
	if !knownProviders[args[0]] {
		return fmt.Errorf("unknown provider %q (supported: healthd)", args[0])
	}

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

	granted, err := orch.ConnectProvider(ctx)
	if err != nil {
		return fmt.Errorf("connecting %s: %w", args[0], err)
	}

	if !granted {
		statusf(flagQuiet, "Access to %s was denied. Grant access in the daemon settings and retry.\n", args[0])
		return nil
	}

	statusf(flagQuiet, "Connected to %s. Running first sync (this backfills recent history)...\n", args[0])

	if err := orch.SyncNow(ctx, userID); err != nil {
		return fmt.Errorf("first sync: %w", err)
	}

	reportMilestones(ctx, orch)
	statusf(flagQuiet, "Done.\n")

	return nil
}

func newDisconnectCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "disconnect <provider>",
		Short: "Disconnect a metrics provider",
		Long: `Disconnect a metrics provider.

Synced history and the sync cursor are kept: reconnecting later
resumes where sync left off instead of re-bootstrapping.`,
		Args: cobra.ExactArgs(1),
		RunE: runDisconnect,
	}
}

func runDisconnect(cmd *cobra.Command, args []string) error {
	if !knownProviders[args[0]] {
		return fmt.Errorf("unknown provider %q (supported: healthd)", args[0])
	}

	logger := buildLogger()

	orch, store, err := buildOrchestrator(logger)
	if err != nil {
		return err
	}
	defer store.Close()

	if err := orch.DisconnectProvider(cmd.Context()); err != nil {
		return fmt.Errorf("disconnecting %s: %w", args[0], err)
	}

	statusf(flagQuiet, "Disconnected %s.\n", args[0])

	return nil
}
