package domain

import (
	"encoding/json"
	"math"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// Field labels used for order items in result files. Existing stored
// results depend on these exact keys.
const (
	ProductCodeKey = "품번"
	QuantityKey    = "수량"
)

// DocumentType is the classification of an input file.
type DocumentType string

const (
	DocumentTypePDF   DocumentType = "PDF"
	DocumentTypeImage DocumentType = "Image"
)

// ImageExtensions lists the supported single-image extensions (lower case).
var ImageExtensions = []string{".jpg", ".jpeg", ".png", ".bmp", ".tiff", ".gif"}

// IsPDF reports whether path has a .pdf extension, case-insensitively.
func IsPDF(path string) bool {
	return strings.HasSuffix(strings.ToLower(path), ".pdf")
}

// IsImage reports whether path has one of the supported image extensions.
func IsImage(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, e := range ImageExtensions {
		if ext == e {
			return true
		}
	}
	return false
}

// Classify determines the document type from the file extension alone.
func Classify(path string) (DocumentType, error) {
	switch {
	case IsPDF(path):
		return DocumentTypePDF, nil
	case IsImage(path):
		return DocumentTypeImage, nil
	default:
		return "", ValidationError("unsupported file extension "+filepath.Ext(path)+
			" (expected .pdf, "+strings.Join(ImageExtensions, ", ")+")", nil)
	}
}

// OrderItem is one recognized order line.
type OrderItem struct {
	ProductCode string
	Quantity    int
}

// NewOrderItem builds an item from an untyped quantity. Numeric strings are
// parsed; anything that is not a whole number becomes zero.
func NewOrderItem(productCode string, quantity any) OrderItem {
	return OrderItem{ProductCode: productCode, Quantity: CoerceQuantity(quantity)}
}

// CoerceQuantity converts v to a non-negative int, falling back to 0.
func CoerceQuantity(v any) int {
	var n int
	switch q := v.(type) {
	case int:
		n = q
	case int32:
		n = int(q)
	case int64:
		n = int(q)
	case float64:
		if q != math.Trunc(q) || math.IsInf(q, 0) || math.IsNaN(q) {
			return 0
		}
		n = int(q)
	case json.Number:
		i, err := strconv.Atoi(q.String())
		if err != nil {
			return 0
		}
		n = i
	case string:
		i, err := strconv.Atoi(strings.TrimSpace(q))
		if err != nil {
			return 0
		}
		n = i
	default:
		return 0
	}
	if n < 0 {
		return 0
	}
	return n
}

// DocumentPage holds the extraction result of one page.
type DocumentPage struct {
	PageNumber int
	Items      []OrderItem
	RawContent map[string]any
}

// NewDocumentPage wraps a page's recognized items with page metadata.
func NewDocumentPage(pageNumber int, items []OrderItem) DocumentPage {
	if items == nil {
		items = []OrderItem{}
	}
	return DocumentPage{
		PageNumber: pageNumber,
		Items:      items,
		RawContent: map[string]any{"processed_items": len(items)},
	}
}

// ProcessedDocument is the result of one processing run.
type ProcessedDocument struct {
	Filename       string
	DocumentType   DocumentType
	TotalPages     int
	Pages          []DocumentPage
	ProcessingCost float64
}

// TotalItems counts the items across all pages.
func (d *ProcessedDocument) TotalItems() int {
	n := 0
	for _, p := range d.Pages {
		n += len(p.Items)
	}
	return n
}

// AllItems flattens the items in page order, then recognition order.
func (d *ProcessedDocument) AllItems() []OrderItem {
	items := make([]OrderItem, 0, d.TotalItems())
	for _, p := range d.Pages {
		items = append(items, p.Items...)
	}
	return items
}

// EventType represents the type of stream event
type EventType string

const (
	EventStart        EventType = "start"
	EventPageComplete EventType = "page_complete"
	EventError        EventType = "error"
	EventComplete     EventType = "complete"
)

// StreamEvent represents an event emitted during processing
type StreamEvent struct {
	Type       EventType          `json:"type"`
	PageNumber int                `json:"page_number,omitempty"`
	TotalPages int                `json:"total_pages,omitempty"`
	Payload    string             `json:"payload,omitempty"`
	Document   *ProcessedDocument `json:"-"`
	Err        error              `json:"-"`
	Timestamp  time.Time          `json:"timestamp"`
}
