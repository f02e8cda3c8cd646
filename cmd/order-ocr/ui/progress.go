// Package ui provides terminal output for the order-ocr CLI.
package ui

import (
	"fmt"
	"os"
	"time"

	"github.com/briandowns/spinner"
	"github.com/schollz/progressbar/v3"
	"github.com/vbauerster/mpb/v8"
	"github.com/vbauerster/mpb/v8/decor"
)

// ProgressBar shows page progress for a single document.
type ProgressBar struct {
	bar *progressbar.ProgressBar
}

// NewProgressBar creates a new progress bar with the given total and description.
func NewProgressBar(total int64, description string) *ProgressBar {
	bar := progressbar.NewOptions64(
		total,
		progressbar.OptionSetWidth(40),
		progressbar.OptionSetDescription(description),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "█",
			SaucerHead:    "█",
			SaucerPadding: "░",
			BarStart:      "│",
			BarEnd:        "│",
		}),
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionShowCount(),
		progressbar.OptionSetItsString("pages"),
		progressbar.OptionOnCompletion(func() {
			fmt.Fprint(os.Stderr, "\n")
		}),
		progressbar.OptionSetRenderBlankState(true),
	)
	return &ProgressBar{bar: bar}
}

// Set moves the bar to current.
func (p *ProgressBar) Set(current int64) {
	_ = p.bar.Set64(current)
}

// Finish completes the progress bar.
func (p *ProgressBar) Finish() {
	_ = p.bar.Finish()
}

// Spinner wraps a spinner instance for indeterminate progress display.
type Spinner struct {
	spinner *spinner.Spinner
}

// NewSpinner creates a new spinner with the given message.
func NewSpinner(message string) *Spinner {
	s := spinner.New(spinner.CharSets[14], 100*time.Millisecond)
	s.Suffix = " " + message
	s.Writer = os.Stderr
	return &Spinner{spinner: s}
}

// Start starts the spinner animation.
func (s *Spinner) Start() {
	if IsTerminal() {
		s.spinner.Start()
	}
}

// Stop stops the spinner animation and clears the line.
func (s *Spinner) Stop() {
	s.spinner.Stop()
}

// MultiProgress draws one bar per document when several run at once.
type MultiProgress struct {
	progress *mpb.Progress
}

// NewMultiProgress creates a container for concurrent document bars.
func NewMultiProgress() *MultiProgress {
	return &MultiProgress{progress: mpb.New(mpb.WithWidth(40), mpb.WithOutput(os.Stderr))}
}

// DocumentBar tracks one document inside a MultiProgress.
type DocumentBar struct {
	bar *mpb.Bar
}

// AddDocument adds a bar labelled name. The total is set once known.
func (m *MultiProgress) AddDocument(name string) *DocumentBar {
	bar := m.progress.AddBar(0,
		mpb.PrependDecorators(
			decor.Name(name, decor.WC{C: decor.DindentRight | decor.DextraSpace}),
			decor.CountersNoUnit("%d/%d pages", decor.WCSyncWidth),
		),
		mpb.AppendDecorators(
			decor.OnComplete(decor.Elapsed(decor.ET_STYLE_GO), "done"),
		),
	)
	return &DocumentBar{bar: bar}
}

// Set records current of total pages.
func (d *DocumentBar) Set(current, total int) {
	d.bar.SetTotal(int64(total), false)
	d.bar.SetCurrent(int64(current))
}

// Done marks the bar finished, or aborted when failed is true.
func (d *DocumentBar) Done(failed bool) {
	if failed {
		d.bar.Abort(false)
		return
	}
	d.bar.SetTotal(-1, true)
}

// Wait blocks until every bar has finished rendering.
func (m *MultiProgress) Wait() {
	m.progress.Wait()
}
