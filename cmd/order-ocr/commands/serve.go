package commands

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/spherical/order-ocr/internal/api"
	"github.com/spherical/order-ocr/internal/cache"
	"github.com/spherical/order-ocr/pkg/extractor"
)

var (
	serveHost string
	servePort int
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		if serveHost != "" {
			cfg.Server.Host = serveHost
		}
		if servePort != 0 {
			cfg.Server.Port = servePort
		}

		// Fail at startup rather than on the first request.
		if _, err := extractor.NewClient(cfg, logger); err != nil {
			return err
		}

		var runs api.RunStore
		if store := openLedger(ctx); store != nil {
			defer store.Close()
			runs = store
		}

		var opts []api.HandlerOption
		if cfg.Cache.Enabled {
			client, err := cache.New(cfg.Cache)
			if err != nil {
				logger.Warn().Err(err).Str("driver", cfg.Cache.Driver).Msg("result cache unavailable")
			} else {
				defer client.Close()
				opts = append(opts, api.WithResultCache(cache.NewResults(client, cfg.Cache.TTL)))
			}
		}

		factory := func() (api.Processor, error) {
			return extractor.NewClient(cfg, logger)
		}
		handler := api.NewHandler(logger, factory, runs, cfg.Currency, cfg.Server.MaxUploadMB<<20, opts...)
		router := api.NewRouter(logger, api.RouterConfig{RequestTimeout: cfg.Server.WriteTimeout}, handler)

		logger.Info().
			Str("recognizer", recognizerLabel()).
			Str("ledger", cfg.Ledger.Driver).
			Bool("cache", cfg.Cache.Enabled).
			Msg("starting order-ocr API")

		return api.NewServer(cfg.Server, router, logger).Run(ctx)
	},
}

func init() {
	serveCmd.Flags().StringVar(&serveHost, "host", "", "listen host (default from config)")
	serveCmd.Flags().IntVarP(&servePort, "port", "p", 0, "listen port (default from config)")
}

func recognizerLabel() string {
	if cfg.UseLiveRecognition() {
		return "live"
	}
	return "offline"
}
