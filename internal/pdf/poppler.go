package pdf

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/pdfcpu/pdfcpu/pkg/api"

	"github.com/spherical/order-ocr/internal/domain"
)

const popplerRemedy = `pdftoppm (poppler) was not found on PATH. Install poppler:
  macOS:          brew install poppler
  Debian/Ubuntu:  sudo apt-get install poppler-utils
  Windows:        conda install -c conda-forge poppler
or use the built-in renderer with "rasterizer.backend: mupdf"`

// PopplerProvider renders pages by running poppler's pdftoppm. The page
// count comes from pdfcpu so a short render is detected.
type PopplerProvider struct {
	dpi        int
	lookPath   func(string) (string, error)
	command    func(ctx context.Context, name string, args ...string) *exec.Cmd
	countPages func(path string) (int, error)
}

// NewPopplerProvider creates a poppler provider rendering at dpi.
func NewPopplerProvider(dpi int) *PopplerProvider {
	return &PopplerProvider{
		dpi:        dpi,
		lookPath:   exec.LookPath,
		command:    exec.CommandContext,
		countPages: api.PageCountFile,
	}
}

func (p *PopplerProvider) Name() string { return "poppler" }

func (p *PopplerProvider) Available() error {
	if _, err := p.lookPath("pdftoppm"); err != nil {
		return domain.EnvironmentError(popplerRemedy, err)
	}
	return nil
}

func (p *PopplerProvider) Render(ctx context.Context, pdfPath, outputDir string) ([]string, int, error) {
	bin, err := p.lookPath("pdftoppm")
	if err != nil {
		return nil, 0, domain.EnvironmentError(popplerRemedy, err)
	}

	count, err := p.countPages(pdfPath)
	if err != nil {
		return nil, 0, domain.ConversionError("failed to read PDF page count", err)
	}

	var stderr bytes.Buffer
	cmd := p.command(ctx, bin, "-r", strconv.Itoa(p.dpi), "-png", pdfPath, filepath.Join(outputDir, "page"))
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg == "" {
			msg = "pdftoppm failed"
		}
		return nil, 0, domain.EnvironmentError(msg, err)
	}

	paths, err := collectPages(outputDir)
	if err != nil {
		return nil, 0, err
	}
	if len(paths) != count {
		return nil, 0, domain.ConversionError(
			fmt.Sprintf("pdftoppm produced %d images for %d pages", len(paths), count), nil)
	}
	return paths, count, nil
}

// collectPages finds pdftoppm's page-N.png / page-0N.png outputs, orders
// them numerically and renames them to page_N.png.
func collectPages(dir string) ([]string, error) {
	matches, err := filepath.Glob(filepath.Join(dir, "page-*.png"))
	if err != nil {
		return nil, domain.IOError("failed to list rendered pages", err)
	}

	type page struct {
		n    int
		path string
	}
	pages := make([]page, 0, len(matches))
	for _, m := range matches {
		num := strings.TrimSuffix(strings.TrimPrefix(filepath.Base(m), "page-"), ".png")
		n, err := strconv.Atoi(num)
		if err != nil {
			continue
		}
		pages = append(pages, page{n: n, path: m})
	}
	sort.Slice(pages, func(i, j int) bool { return pages[i].n < pages[j].n })

	out := make([]string, 0, len(pages))
	for _, pg := range pages {
		target := filepath.Join(dir, fmt.Sprintf("page_%d.png", pg.n))
		if err := os.Rename(pg.path, target); err != nil {
			return nil, domain.IOError("failed to rename rendered page", err)
		}
		out = append(out, target)
	}
	return out, nil
}
