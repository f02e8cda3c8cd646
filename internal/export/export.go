// Package export writes processed documents to disk and reads them back.
package export

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/spherical/order-ocr/internal/domain"
)

const timestampLayout = "20060102_150405"

// ResultFilename returns "{base}_ocr_{YYYYMMDD_HHMMSS}.json" where base is
// the source file name up to its first dot.
func ResultFilename(sourcePath string, now time.Time) string {
	base := filepath.Base(sourcePath)
	if i := strings.Index(base, "."); i >= 0 {
		base = base[:i]
	}
	if base == "" {
		base = "document"
	}
	return fmt.Sprintf("%s_ocr_%s.json", base, now.Format(timestampLayout))
}

// WriteResult writes doc as JSON into dir and returns the file path.
func WriteResult(doc *domain.ProcessedDocument, sourcePath, dir string, now time.Time) (string, error) {
	if doc == nil {
		return "", domain.ValidationError("no document to export", nil)
	}
	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", domain.IOError(fmt.Sprintf("failed to create output directory %s", dir), err)
	}

	data, err := doc.MarshalIndentJSON()
	if err != nil {
		return "", domain.IOError("failed to encode result", err)
	}

	path := filepath.Join(dir, ResultFilename(sourcePath, now))
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", domain.IOError(fmt.Sprintf("failed to write %s", path), err)
	}
	return path, nil
}

// LoadResult reads a result file written by WriteResult.
func LoadResult(path string) (*domain.ProcessedDocument, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, domain.IOError(fmt.Sprintf("failed to read %s", path), err)
	}
	tree, err := domain.UnmarshalTreeJSON(data)
	if err != nil {
		return nil, domain.ValidationError(fmt.Sprintf("%s is not a result file", path), err)
	}
	return domain.FromTree(tree), nil
}

// ItemsTSV renders items as tab-separated product code and quantity rows,
// ready to paste into a spreadsheet.
func ItemsTSV(items []domain.OrderItem, header bool) string {
	var b strings.Builder
	if header {
		b.WriteString(domain.ProductCodeKey + "\t" + domain.QuantityKey + "\n")
	}
	for _, it := range items {
		b.WriteString(it.ProductCode)
		b.WriteByte('\t')
		b.WriteString(strconv.Itoa(it.Quantity))
		b.WriteByte('\n')
	}
	return b.String()
}
