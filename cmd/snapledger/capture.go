package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/offlinefirst/snapledger/internal/capture"
	"github.com/offlinefirst/snapledger/internal/cli"
	"github.com/offlinefirst/snapledger/internal/common"
	"github.com/offlinefirst/snapledger/internal/gateway"
	"github.com/offlinefirst/snapledger/internal/model"
)

func captureCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "capture <image>",
		Short: "Turn a receipt photo into a prefilled expense",
		Long: `Extract text from a receipt image locally, hand it to the backend's
parser and print the suggested expense fields.

Nothing is saved unless --save is given; the suggestion is meant to be
reviewed first. If the scan is unusable the command says so and leaves
manual entry to 'snapledger add'.`,
		Args: cobra.ExactArgs(1),
		RunE: runCapture,
	}

	cmd.Flags().Bool("save", false, "submit the suggested expense after capture")
	cmd.Flags().String("languages", "eng", "Tesseract language set, e.g. eng+spa")
	cmd.Flags().Bool("remote", false, "send the raw image to the backend's scanner instead of extracting text locally")

	_ = viper.BindPFlag("capture.save", cmd.Flags().Lookup("save"))
	_ = viper.BindPFlag("capture.languages", cmd.Flags().Lookup("languages"))
	_ = viper.BindPFlag("capture.remote", cmd.Flags().Lookup("remote"))

	return cmd
}

func runCapture(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	imagePath := args[0]

	coordinator, store, _, err := newCoordinator(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	client, err := newGateway()
	if err != nil {
		return err
	}

	var suggestion *model.Suggestion
	if viper.GetBool("capture.remote") {
		suggestion, err = remoteScan(ctx, client, imagePath)
	} else {
		extractor := capture.NewTesseractExtractor(viper.GetString("capture.languages"))
		pipeline := capture.New(extractor, client)

		bar := progressbar.NewOptions(100,
			progressbar.OptionSetDescription("Reading receipt"),
			progressbar.OptionClearOnFinish(),
		)

		suggestion, err = pipeline.Capture(ctx, imagePath, func(frac float64) {
			_ = bar.Set(int(frac * 100))
		})
		_ = bar.Finish()
	}
	if err != nil {
		switch {
		case errors.Is(err, common.ErrInsufficientText):
			fmt.Println(cli.FormatWarning("Could not read enough text from that image; enter the expense manually with 'snapledger add'."))
			return nil
		case errors.Is(err, common.ErrMalformedSuggestion):
			fmt.Println(cli.FormatWarning("The parser could not make sense of the receipt; enter the expense manually with 'snapledger add'."))
			return nil
		default:
			return err
		}
	}

	fmt.Println(cli.FormatTitle("Suggested expense"))
	fmt.Printf("  Description: %s\n", orUnset(suggestion.Description))
	if suggestion.Amount > 0 {
		fmt.Printf("  Amount:      %s\n", cli.AmountStyle.Render(fmt.Sprintf("%.2f", suggestion.Amount)))
	} else {
		fmt.Printf("  Amount:      %s\n", orUnset(""))
	}
	fmt.Printf("  Date:        %s\n", orUnset(suggestion.Date))
	fmt.Printf("  Category:    %s\n", orUnset(suggestion.Category))

	if !viper.GetBool("capture.save") {
		fmt.Println(cli.SubtleStyle.Render("\nRe-run with --save to record it, or adjust via 'snapledger add'."))
		return nil
	}

	input := suggestion.Apply(model.ExpenseInput{
		Description: "Receipt",
		Date:        time.Now().Format(model.DateLayout),
	})

	exp, err := coordinator.Submit(ctx, input)
	if err != nil {
		return err
	}

	fmt.Println(cli.FormatSuccess(fmt.Sprintf("Saved #%d: %s %.2f on %s (%s)",
		exp.ID, exp.Description, exp.Amount, exp.Date, exp.Category)))
	fmt.Println("  " + cli.FormatSyncStatus(!exp.Pending()))

	return nil
}

// remoteScan posts the raw image to the backend's scan endpoint, for setups
// where the backend does its own text extraction.
func remoteScan(ctx context.Context, client *gateway.Client, imagePath string) (*model.Suggestion, error) {
	f, err := os.Open(imagePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open image: %w", err)
	}
	defer func() { _ = f.Close() }()

	suggestion, err := client.ScanImage(ctx, f, filepath.Base(imagePath))
	if err != nil {
		return nil, err
	}
	if suggestion == nil || suggestion.Empty() {
		return nil, common.ErrMalformedSuggestion
	}
	return suggestion, nil
}

func orUnset(value string) string {
	if value == "" {
		return cli.SubtleStyle.Render("(not detected)")
	}
	return value
}
