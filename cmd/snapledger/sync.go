package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/offlinefirst/snapledger/internal/cli"
	"github.com/offlinefirst/snapledger/internal/connectivity"
)

func syncCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Push pending expenses to the backend",
		Long: `Attempt delivery for every expense still awaiting sync.

Each record is attempted independently; a failure on one record never
blocks the rest. With --watch the command keeps running and replays the
backlog every time connectivity comes back.`,
		RunE: runSync,
	}

	cmd.Flags().Bool("watch", false, "keep running and sync on every reconnect")

	_ = viper.BindPFlag("sync.watch", cmd.Flags().Lookup("watch"))

	return cmd
}

func runSync(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	coordinator, store, source, err := newCoordinator(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	report, err := coordinator.SyncBacklog(ctx)
	if err != nil {
		return err
	}

	switch {
	case report.Attempted == 0:
		fmt.Println(cli.FormatSuccess("Nothing pending, ledger is fully synced"))
	case report.Failed == 0:
		fmt.Println(cli.FormatSuccess(fmt.Sprintf("Synced %d expense(s)", report.Synced)))
	default:
		fmt.Println(cli.FormatWarning(fmt.Sprintf("Synced %d of %d expense(s); %d still pending",
			report.Synced, report.Attempted, report.Failed)))
	}

	if !viper.GetBool("sync.watch") {
		return nil
	}

	fmt.Println(cli.SubtleStyle.Render("Watching connectivity; press Ctrl-C to stop."))

	// The probing monitor needs its polling loop for transition events.
	if monitor, ok := source.(*connectivity.Monitor); ok {
		go monitor.Run(ctx)
	}

	if err := coordinator.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
