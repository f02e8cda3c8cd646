package commands

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/spherical/order-ocr/cmd/order-ocr/ui"
	"github.com/spherical/order-ocr/internal/cost"
	"github.com/spherical/order-ocr/internal/domain"
	"github.com/spherical/order-ocr/internal/export"
	"github.com/spherical/order-ocr/internal/ledger"
	"github.com/spherical/order-ocr/pkg/extractor"
)

var (
	outputDir   string
	jobs        int
	noLedger    bool
	printTSV    bool
	forceMock   bool
	backendFlag string
)

var processCmd = &cobra.Command{
	Use:   "process <file> [file...]",
	Short: "Recognize order lines in PDFs or images",
	Long: `Process one or more order documents. Each file is rasterized (PDFs), every
page is recognized in order, and the result is written to
{name}_ocr_{YYYYMMDD_HHMMSS}.json in the output directory.

Supported inputs: .pdf .jpg .jpeg .png .bmp .tiff .gif`,
	Args: cobra.MinimumNArgs(1),
	RunE: runProcess,
}

func init() {
	processCmd.Flags().StringVarP(&outputDir, "output-dir", "o", "", "directory for result files (default from config)")
	processCmd.Flags().IntVarP(&jobs, "jobs", "j", 1, "documents processed at once")
	processCmd.Flags().BoolVar(&noLedger, "no-ledger", false, "do not record runs in the ledger")
	processCmd.Flags().BoolVar(&printTSV, "tsv", false, "print extracted items as tab-separated rows")
	processCmd.Flags().BoolVar(&forceMock, "mock", false, "force offline recognition")
	processCmd.Flags().StringVar(&backendFlag, "backend", "", "PDF backend: auto, mupdf or poppler")
}

func runProcess(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if forceMock {
		cfg.Recognition.MockMode = true
	}
	if backendFlag != "" {
		cfg.Rasterizer.Backend = backendFlag
	}
	if outputDir == "" {
		outputDir = cfg.Output.Dir
	}

	var store *ledger.Store
	if !noLedger {
		store = openLedger(ctx)
	}
	if store != nil {
		defer store.Close()
	}

	start := time.Now()
	defer func() { ui.Info("Finished in %s", ui.FormatDuration(time.Since(start))) }()

	if jobs <= 1 || len(args) == 1 {
		var failed []error
		for _, path := range args {
			doc, client, err := processOne(ctx, path)
			if err != nil {
				ui.Error("%s: %v", filepath.Base(path), err)
				failed = append(failed, err)
				continue
			}
			finishDocument(ctx, path, doc, client, store)
		}
		return summarizeFailures(len(args), failed)
	}
	return processConcurrently(ctx, args, store)
}

// processOne runs a single document with a spinner until the first page
// completes and a progress bar after that.
func processOne(ctx context.Context, path string) (*domain.ProcessedDocument, *extractor.Client, error) {
	client, err := extractor.NewClient(cfg, logger)
	if err != nil {
		return nil, nil, err
	}

	name := filepath.Base(path)
	spin := ui.NewSpinner(fmt.Sprintf("Processing %s (%s)", name, client.Variant()))
	spin.Start()
	defer spin.Stop()

	var (
		bar *ui.ProgressBar
		doc *domain.ProcessedDocument
	)
	for ev := range client.Process(ctx, path) {
		switch ev.Type {
		case extractor.EventPageComplete:
			if bar == nil {
				spin.Stop()
				bar = ui.NewProgressBar(int64(ev.TotalPages), name)
			}
			bar.Set(int64(ev.PageNumber))
		case extractor.EventError:
			return nil, nil, ev.Err
		case extractor.EventComplete:
			doc = ev.Document
		}
	}
	if bar != nil {
		bar.Finish()
	}
	if doc == nil {
		if err := ctx.Err(); err != nil {
			return nil, nil, err
		}
		return nil, nil, errors.New("processing ended without a result")
	}
	return doc, client, nil
}

type outcome struct {
	doc    *domain.ProcessedDocument
	client *extractor.Client
	err    error
}

// processConcurrently runs up to jobs documents at once. Each document gets
// its own pipeline; one failure does not stop the others.
func processConcurrently(ctx context.Context, paths []string, store *ledger.Store) error {
	ui.Step("Processing %d documents, %d at a time", len(paths), jobs)
	progress := ui.NewMultiProgress()
	outcomes := make([]outcome, len(paths))

	var g errgroup.Group
	g.SetLimit(jobs)
	for i, path := range paths {
		bar := progress.AddDocument(filepath.Base(path))
		g.Go(func() error {
			client, err := extractor.NewClient(cfg, logger)
			if err != nil {
				bar.Done(true)
				outcomes[i] = outcome{err: err}
				return nil
			}
			doc, err := client.Extract(ctx, path, bar.Set)
			bar.Done(err != nil)
			outcomes[i] = outcome{doc: doc, client: client, err: err}
			return nil
		})
	}
	_ = g.Wait()
	progress.Wait()

	var failed []error
	for i, o := range outcomes {
		if o.err != nil {
			ui.Error("%s: %v", filepath.Base(paths[i]), o.err)
			failed = append(failed, o.err)
			continue
		}
		finishDocument(ctx, paths[i], o.doc, o.client, store)
	}
	return summarizeFailures(len(paths), failed)
}

// finishDocument exports the result, records the run and prints a summary.
func finishDocument(ctx context.Context, path string, doc *domain.ProcessedDocument, client *extractor.Client, store *ledger.Store) {
	outPath, err := export.WriteResult(doc, path, outputDir, time.Now())
	if err != nil {
		ui.Error("%s: %v", filepath.Base(path), err)
		return
	}

	if store != nil {
		run := ledger.NewRun(doc, client.Variant(), client.Backend(), outPath, time.Now())
		if err := store.Record(ctx, run); err != nil {
			ui.Warning("run not recorded in ledger: %v", err)
		}
	}

	ui.Success("%s → %s", doc.Filename, outPath)
	ui.KeyValue("Type", string(doc.DocumentType))
	ui.KeyValue("Pages", fmt.Sprintf("%d", doc.TotalPages))
	ui.KeyValue("Items", fmt.Sprintf("%d", doc.TotalItems()))
	ui.KeyValue("Cost", cost.Format(doc.ProcessingCost, cfg.Currency.ExchangeRate,
		cfg.Currency.BaseSymbol, cfg.Currency.LocalSymbol))
	if ui.Verbose() {
		ui.KeyValue("Recognizer", string(client.Variant()))
		ui.KeyValue("Backend", client.Backend())
	}

	if printTSV {
		fmt.Print(export.ItemsTSV(doc.AllItems(), true))
	}
}

func summarizeFailures(total int, failed []error) error {
	if len(failed) == 0 {
		return nil
	}
	if total == 1 {
		return failed[0]
	}
	return fmt.Errorf("%d of %d documents failed: %w", len(failed), total, errors.Join(failed...))
}
