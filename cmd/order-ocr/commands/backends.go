package commands

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/spherical/order-ocr/cmd/order-ocr/ui"
	"github.com/spherical/order-ocr/internal/pdf"
)

var backendsCmd = &cobra.Command{
	Use:   "backends",
	Short: "Show which PDF rendering backends are available",
	RunE: func(cmd *cobra.Command, args []string) error {
		all, err := pdf.ProvidersFor("auto", cfg.Rasterizer.DPI)
		if err != nil {
			return err
		}

		rows := [][]string{}
		for _, s := range pdf.Probe(all...) {
			state := "available"
			if !s.Available {
				state = "unavailable"
			}
			rows = append(rows, []string{s.Name, state, s.Reason})
		}
		ui.Table(os.Stdout, []string{"Backend", "Status", "Detail"}, rows)

		configured, err := pdf.ProvidersFor(cfg.Rasterizer.Backend, cfg.Rasterizer.DPI)
		if err != nil {
			return err
		}
		conv, err := pdf.NewConverter(logger, configured...)
		if err != nil {
			ui.Error("%v", err)
			return err
		}
		ui.Success("Using %s (rasterizer.backend = %s)", conv.Backend(), cfg.Rasterizer.Backend)
		return nil
	},
}
