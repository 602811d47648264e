package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/offlinefirst/snapledger/internal/cli"
	"github.com/offlinefirst/snapledger/internal/model"
)

func addCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Record a new expense",
		Long: `Save a new expense to the local ledger.

The save always succeeds locally; when the backend is reachable the record
is pushed immediately, otherwise it stays pending until the next sync.`,
		RunE: runAdd,
	}

	cmd.Flags().StringP("description", "d", "", "what the expense was for")
	cmd.Flags().Float64P("amount", "a", 0, "amount spent")
	cmd.Flags().String("date", time.Now().Format(model.DateLayout), "calendar date (YYYY-MM-DD)")
	cmd.Flags().StringP("category", "c", "", "category label (default: General)")
	_ = cmd.MarkFlagRequired("description")
	_ = cmd.MarkFlagRequired("amount")

	_ = viper.BindPFlag("add.description", cmd.Flags().Lookup("description"))
	_ = viper.BindPFlag("add.amount", cmd.Flags().Lookup("amount"))
	_ = viper.BindPFlag("add.date", cmd.Flags().Lookup("date"))
	_ = viper.BindPFlag("add.category", cmd.Flags().Lookup("category"))

	return cmd
}

func runAdd(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	coordinator, store, _, err := newCoordinator(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	exp, err := coordinator.Submit(ctx, model.ExpenseInput{
		Description: viper.GetString("add.description"),
		Amount:      viper.GetFloat64("add.amount"),
		Date:        viper.GetString("add.date"),
		Category:    viper.GetString("add.category"),
	})
	if err != nil {
		return err
	}

	fmt.Println(cli.FormatSuccess(fmt.Sprintf("Saved #%d: %s %s on %s (%s)",
		exp.ID,
		exp.Description,
		cli.AmountStyle.Render(fmt.Sprintf("%.2f", exp.Amount)),
		exp.Date,
		exp.Category)))
	fmt.Println("  " + cli.FormatSyncStatus(!exp.Pending()))

	return nil
}
