package commands

import (
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/spherical/order-ocr/cmd/order-ocr/ui"
	"github.com/spherical/order-ocr/internal/cost"
	"github.com/spherical/order-ocr/internal/domain"
	"github.com/spherical/order-ocr/internal/export"
)

var showTSV bool

var showCmd = &cobra.Command{
	Use:   "show <result.json>",
	Short: "Display a saved result file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		doc, err := export.LoadResult(args[0])
		if err != nil {
			return err
		}

		if showTSV {
			fmt.Print(export.ItemsTSV(doc.AllItems(), true))
			return nil
		}

		ui.Section(doc.Filename)
		ui.KeyValue("Type", string(doc.DocumentType))
		ui.KeyValue("Pages", strconv.Itoa(doc.TotalPages))
		ui.KeyValue("Items", strconv.Itoa(doc.TotalItems()))
		ui.KeyValue("Cost", cost.Format(doc.ProcessingCost, cfg.Currency.ExchangeRate,
			cfg.Currency.BaseSymbol, cfg.Currency.LocalSymbol))
		fmt.Println()

		ui.Table(os.Stdout, []string{"Page", domain.ProductCodeKey, domain.QuantityKey}, itemRows(doc))
		return nil
	},
}

func init() {
	showCmd.Flags().BoolVar(&showTSV, "tsv", false, "print items as tab-separated rows for spreadsheets")
}

func itemRows(doc *domain.ProcessedDocument) [][]string {
	var rows [][]string
	for _, page := range doc.Pages {
		for _, item := range page.Items {
			rows = append(rows, []string{strconv.Itoa(page.PageNumber), item.ProductCode, strconv.Itoa(item.Quantity)})
		}
	}
	return rows
}
