package export

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spherical/order-ocr/internal/domain"
)

func sampleDocument() *domain.ProcessedDocument {
	return &domain.ProcessedDocument{
		Filename:     "주문서.v2.pdf",
		DocumentType: domain.DocumentTypePDF,
		TotalPages:   2,
		Pages: []domain.DocumentPage{
			domain.NewDocumentPage(1, []domain.OrderItem{{ProductCode: "DMCA-4N-SA", Quantity: 22}}),
			domain.NewDocumentPage(2, []domain.OrderItem{{ProductCode: "PART-001", Quantity: 10}, {ProductCode: "PART-002", Quantity: 5}}),
		},
		ProcessingCost: 0.0123,
	}
}

func TestResultFilename(t *testing.T) {
	now := time.Date(2024, 3, 9, 14, 5, 7, 0, time.UTC)
	tests := []struct {
		source string
		want   string
	}{
		{"/in/order.pdf", "order_ocr_20240309_140507.json"},
		{"scan.final.PNG", "scan_ocr_20240309_140507.json"},
		{"주문서.pdf", "주문서_ocr_20240309_140507.json"},
		{".hidden.pdf", "document_ocr_20240309_140507.json"},
	}
	for _, tt := range tests {
		t.Run(tt.source, func(t *testing.T) {
			assert.Equal(t, tt.want, ResultFilename(tt.source, now))
		})
	}
}

func TestWriteAndLoadResult(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "out")
	doc := sampleDocument()
	now := time.Date(2024, 1, 2, 3, 4, 5, 0, time.Local)

	path, err := WriteResult(doc, "/scans/주문서.v2.pdf", dir, now)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "주문서_ocr_20240102_030405.json"), path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	text := string(data)
	assert.Contains(t, text, `"품번": "DMCA-4N-SA"`)
	assert.Contains(t, text, "\n  \"total_pages\": 2,")
	assert.Less(t, strings.Index(text, `"document_type"`), strings.Index(text, `"processing_cost"`))

	loaded, err := LoadResult(path)
	require.NoError(t, err)
	assert.Equal(t, doc, loaded)
}

func TestLoadResultErrors(t *testing.T) {
	_, err := LoadResult(filepath.Join(t.TempDir(), "missing.json"))
	assert.True(t, domain.IsType(err, domain.ErrorTypeIO))

	bad := filepath.Join(t.TempDir(), "bad.json")
	require.NoError(t, os.WriteFile(bad, []byte("[1,2]"), 0o644))
	_, err = LoadResult(bad)
	assert.True(t, domain.IsType(err, domain.ErrorTypeValidation))
}

func TestWriteResultRejectsNil(t *testing.T) {
	_, err := WriteResult(nil, "a.pdf", t.TempDir(), time.Now())
	assert.True(t, domain.IsType(err, domain.ErrorTypeValidation))
}

func TestItemsTSV(t *testing.T) {
	items := sampleDocument().AllItems()
	assert.Equal(t, "DMCA-4N-SA\t22\nPART-001\t10\nPART-002\t5\n", ItemsTSV(items, false))
	assert.True(t, strings.HasPrefix(ItemsTSV(items, true), "품번\t수량\n"))
	assert.Empty(t, ItemsTSV(nil, false))
}
