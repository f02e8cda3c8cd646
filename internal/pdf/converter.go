package pdf

import (
	"context"
	"fmt"
	"strings"

	"github.com/spherical/order-ocr/internal/domain"
	"github.com/spherical/order-ocr/internal/observability"
)

// DefaultDPI is the rendering resolution used for recognition.
const DefaultDPI = 300

// Provider is one PDF rendering strategy.
type Provider interface {
	// Name identifies the provider in config and diagnostics.
	Name() string

	// Available returns nil when the provider can run in this process, or
	// an error naming the missing dependency and how to install it.
	Available() error

	// Render writes one image per page into outputDir, in page order.
	Render(ctx context.Context, pdfPath, outputDir string) ([]string, int, error)
}

// Converter renders PDFs with the provider chosen at construction.
type Converter struct {
	provider Provider
	logger   *observability.Logger
}

// NewConverter selects the first available provider from the ranked list.
// The choice is fixed for the lifetime of the Converter.
func NewConverter(logger *observability.Logger, ranked ...Provider) (*Converter, error) {
	if logger == nil {
		logger = observability.Nop()
	}
	if len(ranked) == 0 {
		return nil, domain.ConfigError("no PDF rendering backend configured", nil)
	}

	var reasons []string
	for _, p := range ranked {
		if err := p.Available(); err != nil {
			logger.Debug().Str("backend", p.Name()).Err(err).Msg("rendering backend unavailable")
			reasons = append(reasons, fmt.Sprintf("- %s: %v", p.Name(), err))
			continue
		}
		logger.Debug().Str("backend", p.Name()).Msg("rendering backend selected")
		return &Converter{provider: p, logger: logger}, nil
	}

	return nil, domain.ConfigError(
		"no PDF rendering backend is available:\n"+strings.Join(reasons, "\n"), nil)
}

// ProvidersFor returns the ranked providers for a backend setting:
// "auto" tries mupdf then poppler, anything else names a single provider.
func ProvidersFor(backend string, dpi int) ([]Provider, error) {
	if dpi <= 0 {
		dpi = DefaultDPI
	}
	switch backend {
	case "", "auto":
		return []Provider{NewMuPDFProvider(dpi), NewPopplerProvider(dpi)}, nil
	case "mupdf":
		return []Provider{NewMuPDFProvider(dpi)}, nil
	case "poppler":
		return []Provider{NewPopplerProvider(dpi)}, nil
	default:
		return nil, domain.ConfigError(fmt.Sprintf("unknown rasterizer backend %q", backend), nil)
	}
}

// Backend names the selected provider.
func (c *Converter) Backend() string {
	return c.provider.Name()
}

// Rasterize renders every page of pdfPath into outputDir.
func (c *Converter) Rasterize(ctx context.Context, pdfPath, outputDir string) ([]string, int, error) {
	paths, count, err := c.provider.Render(ctx, pdfPath, outputDir)
	if err != nil {
		return nil, 0, err
	}
	if len(paths) != count {
		return nil, 0, domain.ConversionError(
			fmt.Sprintf("%s produced %d page images for %d pages", c.provider.Name(), len(paths), count), nil)
	}
	if count == 0 {
		return nil, 0, domain.ConversionError("PDF has no pages", nil)
	}

	c.logger.Info().Str("backend", c.provider.Name()).Int("pages", count).Msg("PDF rasterized")
	return paths, count, nil
}

// Status describes one provider's availability.
type Status struct {
	Name      string
	Available bool
	Reason    string
}

// Probe reports availability for every provider without selecting one.
func Probe(ranked ...Provider) []Status {
	out := make([]Status, 0, len(ranked))
	for _, p := range ranked {
		s := Status{Name: p.Name(), Available: true}
		if err := p.Available(); err != nil {
			s.Available = false
			s.Reason = err.Error()
		}
		out = append(out, s)
	}
	return out
}
