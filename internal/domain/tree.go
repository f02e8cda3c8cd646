package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
)

// Tree keys of the serialized result.
const (
	keyDocumentType   = "document_type"
	keyTotalPages     = "total_pages"
	keyFilename       = "filename"
	keyPages          = "pages"
	keyProcessingCost = "processing_cost"
	keyPage           = "page"
	keyContent        = "content"
	keyRawContent     = "raw_content"
)

// ToTree converts an item to its key-value form.
func (i OrderItem) ToTree() map[string]any {
	return map[string]any{
		ProductCodeKey: i.ProductCode,
		QuantityKey:    i.Quantity,
	}
}

// OrderItemFromTree reads an item. A missing code becomes "" and the
// quantity is coerced.
func OrderItemFromTree(t map[string]any) OrderItem {
	return NewOrderItem(stringValue(t[ProductCodeKey]), t[QuantityKey])
}

// ItemsFromRecords converts untyped item records, skipping anything that
// is not an object or lacks the product code key.
func ItemsFromRecords(records []any) []OrderItem {
	items := []OrderItem{}
	for _, r := range records {
		rec, ok := r.(map[string]any)
		if !ok {
			continue
		}
		if _, has := rec[ProductCodeKey]; !has {
			continue
		}
		items = append(items, OrderItemFromTree(rec))
	}
	return items
}

// ToTree converts a page to its key-value form.
func (p DocumentPage) ToTree() map[string]any {
	content := make([]any, 0, len(p.Items))
	for _, it := range p.Items {
		content = append(content, it.ToTree())
	}
	raw := p.RawContent
	if raw == nil {
		raw = map[string]any{}
	}
	return map[string]any{
		keyPage:       p.PageNumber,
		keyContent:    content,
		keyRawContent: raw,
	}
}

// DocumentPageFromTree reads a page. Item records without a product code
// key are dropped.
func DocumentPageFromTree(t map[string]any) DocumentPage {
	content, _ := t[keyContent].([]any)
	items := ItemsFromRecords(content)
	raw, ok := t[keyRawContent].(map[string]any)
	if !ok {
		raw = map[string]any{}
	}
	return DocumentPage{
		PageNumber: intValue(t[keyPage], 1),
		Items:      items,
		RawContent: raw,
	}
}

// ToTree converts the document to a nested key-value structure.
func (d *ProcessedDocument) ToTree() map[string]any {
	pages := make([]any, 0, len(d.Pages))
	for _, p := range d.Pages {
		pages = append(pages, p.ToTree())
	}
	return map[string]any{
		keyDocumentType:   string(d.DocumentType),
		keyTotalPages:     d.TotalPages,
		keyFilename:       d.Filename,
		keyPages:          pages,
		keyProcessingCost: d.ProcessingCost,
	}
}

// FromTree rebuilds a document, defaulting missing fields.
func FromTree(t map[string]any) *ProcessedDocument {
	pages := []DocumentPage{}
	if raw, ok := t[keyPages].([]any); ok {
		for _, p := range raw {
			if pt, ok := p.(map[string]any); ok {
				pages = append(pages, DocumentPageFromTree(pt))
			}
		}
	}
	docType := DocumentTypeImage
	if s, ok := t[keyDocumentType].(string); ok && s != "" {
		docType = DocumentType(s)
	}
	return &ProcessedDocument{
		Filename:       stringValue(t[keyFilename]),
		DocumentType:   docType,
		TotalPages:     intValue(t[keyTotalPages], 1),
		Pages:          pages,
		ProcessingCost: floatValue(t[keyProcessingCost]),
	}
}

// The JSON shapes below fix key order in the written file.

type itemJSON struct {
	ProductCode string `json:"품번"`
	Quantity    int    `json:"수량"`
}

type pageJSON struct {
	Page       int            `json:"page"`
	Content    []itemJSON     `json:"content"`
	RawContent map[string]any `json:"raw_content"`
}

type documentJSON struct {
	DocumentType   string     `json:"document_type"`
	TotalPages     int        `json:"total_pages"`
	Filename       string     `json:"filename"`
	Pages          []pageJSON `json:"pages"`
	ProcessingCost float64    `json:"processing_cost"`
}

// MarshalIndentJSON renders the document as UTF-8 JSON with 2-space
// indentation and without HTML or non-ASCII escaping.
func (d *ProcessedDocument) MarshalIndentJSON() ([]byte, error) {
	out := documentJSON{
		DocumentType:   string(d.DocumentType),
		TotalPages:     d.TotalPages,
		Filename:       d.Filename,
		Pages:          make([]pageJSON, 0, len(d.Pages)),
		ProcessingCost: d.ProcessingCost,
	}
	for _, p := range d.Pages {
		pj := pageJSON{Page: p.PageNumber, Content: make([]itemJSON, 0, len(p.Items)), RawContent: p.RawContent}
		if pj.RawContent == nil {
			pj.RawContent = map[string]any{}
		}
		for _, it := range p.Items {
			pj.Content = append(pj.Content, itemJSON{ProductCode: it.ProductCode, Quantity: it.Quantity})
		}
		out.Pages = append(out.Pages, pj)
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(out); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// UnmarshalTreeJSON decodes JSON into a tree. Integral numbers become int
// and the rest float64, so trees read back from disk compare equal to the
// ones produced in memory.
func UnmarshalTreeJSON(data []byte) (map[string]any, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	t, ok := normalizeNumbers(v).(map[string]any)
	if !ok {
		return nil, fmt.Errorf("result root is %T, want object", v)
	}
	return t, nil
}

func normalizeNumbers(v any) any {
	switch x := v.(type) {
	case map[string]any:
		for k, e := range x {
			x[k] = normalizeNumbers(e)
		}
		return x
	case []any:
		for i, e := range x {
			x[i] = normalizeNumbers(e)
		}
		return x
	case json.Number:
		if i, err := strconv.Atoi(x.String()); err == nil {
			return i
		}
		f, err := x.Float64()
		if err != nil {
			return x.String()
		}
		return f
	default:
		return v
	}
}

func stringValue(v any) string {
	switch s := v.(type) {
	case nil:
		return ""
	case string:
		return s
	default:
		return fmt.Sprint(s)
	}
}

func intValue(v any, def int) int {
	switch n := v.(type) {
	case int:
		return n
	case int64:
		return int(n)
	case float64:
		if n == math.Trunc(n) {
			return int(n)
		}
	case json.Number:
		if i, err := strconv.Atoi(n.String()); err == nil {
			return i
		}
	}
	return def
}

func floatValue(v any) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case int:
		return float64(n)
	case int64:
		return float64(n)
	case json.Number:
		if f, err := n.Float64(); err == nil {
			return f
		}
	}
	return 0
}
