package pdf

import (
	"context"
	"fmt"
	"image/png"
	"os"
	"path/filepath"

	"github.com/gen2brain/go-fitz"

	"github.com/spherical/order-ocr/internal/domain"
)

// MuPDFProvider renders pages in-process with MuPDF through go-fitz.
type MuPDFProvider struct {
	dpi int
}

// NewMuPDFProvider creates a MuPDF provider rendering at dpi.
func NewMuPDFProvider(dpi int) *MuPDFProvider {
	return &MuPDFProvider{dpi: dpi}
}

func (p *MuPDFProvider) Name() string { return "mupdf" }

// Available always succeeds: MuPDF is linked into the binary.
func (p *MuPDFProvider) Available() error { return nil }

func (p *MuPDFProvider) Render(ctx context.Context, pdfPath, outputDir string) ([]string, int, error) {
	doc, err := fitz.New(pdfPath)
	if err != nil {
		return nil, 0, domain.ConversionError("failed to open PDF", err)
	}
	defer doc.Close()

	pageCount := doc.NumPage()
	paths := make([]string, 0, pageCount)

	for i := 0; i < pageCount; i++ {
		if err := ctx.Err(); err != nil {
			return nil, 0, err
		}

		img, err := doc.ImageDPI(i, float64(p.dpi))
		if err != nil {
			return nil, 0, domain.ConversionError(fmt.Sprintf("failed to render page %d", i+1), err)
		}

		outputPath := filepath.Join(outputDir, fmt.Sprintf("page_%d.png", i+1))
		f, err := os.Create(outputPath)
		if err != nil {
			return nil, 0, domain.IOError(fmt.Sprintf("failed to create image for page %d", i+1), err)
		}
		err = png.Encode(f, img)
		if cerr := f.Close(); err == nil {
			err = cerr
		}
		if err != nil {
			return nil, 0, domain.ConversionError(fmt.Sprintf("failed to encode page %d as PNG", i+1), err)
		}

		paths = append(paths, outputPath)
	}

	return paths, pageCount, nil
}
