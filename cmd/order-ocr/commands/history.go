package commands

import (
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/spherical/order-ocr/cmd/order-ocr/ui"
	"github.com/spherical/order-ocr/internal/cost"
	"github.com/spherical/order-ocr/internal/ledger"
)

var historyLimit int

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List recent runs and total recognition spend",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		store, err := ledger.Open(ctx, cfg.Ledger.Driver, cfg.LedgerDSN())
		if err != nil {
			return err
		}
		defer store.Close()

		runs, err := store.List(ctx, historyLimit)
		if err != nil {
			return err
		}
		totals, err := store.Totals(ctx)
		if err != nil {
			return err
		}

		if len(runs) == 0 {
			ui.Info("No runs recorded yet")
			return nil
		}

		format := func(amount float64) string {
			return cost.Format(amount, cfg.Currency.ExchangeRate, cfg.Currency.BaseSymbol, cfg.Currency.LocalSymbol)
		}

		rows := make([][]string, 0, len(runs))
		for _, r := range runs {
			rows = append(rows, []string{
				r.CreatedAt.Local().Format("2006-01-02 15:04"),
				r.Filename,
				strconv.Itoa(r.Pages),
				strconv.Itoa(r.Items),
				string(r.Variant),
				format(r.Cost),
			})
		}
		ui.Table(os.Stdout, []string{"When", "File", "Pages", "Items", "Recognizer", "Cost"}, rows)

		fmt.Println()
		ui.KeyValue("Runs", strconv.Itoa(totals.Runs))
		ui.KeyValue("Pages", strconv.Itoa(totals.Pages))
		ui.KeyValue("Total spend", format(totals.Cost))
		return nil
	},
}

func init() {
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 20, "number of runs to show")
}
