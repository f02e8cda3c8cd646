package domain

import "context"

// Rasterizer turns a multi-page PDF into one image file per page.
type Rasterizer interface {
	// Rasterize writes the page images into outputDir and returns their
	// paths in page order along with the page count. len(paths) == count.
	Rasterize(ctx context.Context, pdfPath, outputDir string) ([]string, int, error)

	// Backend names the rendering provider in use.
	Backend() string
}

// Recognizer extracts order lines from a single page image.
type Recognizer interface {
	// Recognize returns the extracted items in recognition order and the
	// non-negative cost estimate of this single call.
	Recognize(ctx context.Context, imagePath string) ([]OrderItem, float64, error)

	// Variant reports which recognizer is in use.
	Variant() RecognizerVariant
}

// RecognizerVariant tags the two recognizer implementations.
type RecognizerVariant string

const (
	VariantOffline RecognizerVariant = "offline"
	VariantLive    RecognizerVariant = "live"
)

// ProgressFunc is called after each page completes with (current, total).
type ProgressFunc func(current, total int)
