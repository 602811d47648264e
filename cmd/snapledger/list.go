package main

import (
	"context"
	"fmt"
	"sort"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/offlinefirst/snapledger/internal/cli"
	"github.com/offlinefirst/snapledger/internal/model"
)

func listCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List recorded expenses",
		RunE:  runList,
	}

	cmd.Flags().Bool("pending", false, "only show expenses awaiting sync")
	cmd.Flags().Bool("remote", false, "list the backend's records instead of the local ledger")

	_ = viper.BindPFlag("list.pending", cmd.Flags().Lookup("pending"))
	_ = viper.BindPFlag("list.remote", cmd.Flags().Lookup("remote"))

	return cmd
}

func runList(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	if viper.GetBool("list.remote") {
		return runListRemote(ctx)
	}

	store, err := openStore(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	var expenses []model.Expense
	if viper.GetBool("list.pending") {
		expenses, err = store.GetUnsyncedExpenses(ctx)
	} else {
		expenses, err = store.GetAllExpenses(ctx)
	}
	if err != nil {
		return err
	}

	if len(expenses) == 0 {
		fmt.Println(cli.SubtleStyle.Render("No expenses recorded yet."))
		return nil
	}

	// The store makes no ordering promise; newest first is a display choice.
	sort.Slice(expenses, func(i, j int) bool {
		if expenses[i].Date != expenses[j].Date {
			return expenses[i].Date > expenses[j].Date
		}
		return expenses[i].ID > expenses[j].ID
	})

	fmt.Println(cli.FormatTitle("Expenses"))

	var total float64
	pending := 0
	for _, exp := range expenses {
		total += exp.Amount
		if exp.Pending() {
			pending++
		}
		fmt.Printf("  %4d  %s  %10s  %-24s %s  %s\n",
			exp.ID,
			exp.Date,
			cli.AmountStyle.Render(fmt.Sprintf("%.2f", exp.Amount)),
			exp.Description,
			cli.SubtleStyle.Render(exp.Category),
			cli.FormatSyncStatus(!exp.Pending()))
	}

	fmt.Printf("\n  %d expense(s), total %s",
		len(expenses),
		cli.AmountStyle.Render(fmt.Sprintf("%.2f", total)))
	if pending > 0 {
		fmt.Printf(", %s", cli.WarningStyle.Render(fmt.Sprintf("%d pending sync", pending)))
	}
	fmt.Println()

	return nil
}

// runListRemote shows the backend's view of the ledger, useful for checking
// what actually arrived after a sync.
func runListRemote(ctx context.Context) error {
	client, err := newGateway()
	if err != nil {
		return err
	}

	expenses, err := client.ListExpenses(ctx)
	if err != nil {
		return err
	}

	if len(expenses) == 0 {
		fmt.Println(cli.SubtleStyle.Render("The backend has no expenses."))
		return nil
	}

	sort.Slice(expenses, func(i, j int) bool {
		return expenses[i].Date > expenses[j].Date
	})

	fmt.Println(cli.FormatTitle("Backend expenses"))
	for _, exp := range expenses {
		fmt.Printf("  %s  %s  %10s  %s  %s\n",
			cli.SubtleStyle.Render(exp.RemoteID),
			exp.Date,
			cli.AmountStyle.Render(fmt.Sprintf("%.2f", exp.Amount)),
			exp.Description,
			cli.SubtleStyle.Render(exp.Category))
	}
	fmt.Printf("\n  %d expense(s)\n", len(expenses))

	return nil
}
