package domain

import (
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewOrderItem_QuantityCoercion(t *testing.T) {
	tests := []struct {
		name     string
		quantity any
		want     int
	}{
		{name: "int", quantity: 10, want: 10},
		{name: "numeric string", quantity: "15", want: 15},
		{name: "padded numeric string", quantity: " 7 ", want: 7},
		{name: "non-numeric string", quantity: "abc", want: 0},
		{name: "decimal string", quantity: "15.0", want: 0},
		{name: "whole float", quantity: float64(12), want: 12},
		{name: "fractional float", quantity: 2.5, want: 0},
		{name: "json number", quantity: json.Number("30"), want: 30},
		{name: "negative", quantity: -4, want: 0},
		{name: "nil", quantity: nil, want: 0},
		{name: "bool", quantity: true, want: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			item := NewOrderItem("ABC-123", tt.quantity)
			assert.Equal(t, "ABC-123", item.ProductCode)
			assert.Equal(t, tt.want, item.Quantity)
		})
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		path    string
		want    DocumentType
		wantErr bool
	}{
		{path: "order.pdf", want: DocumentTypePDF},
		{path: "/tmp/ORDER.PDF", want: DocumentTypePDF},
		{path: "scan.JPG", want: DocumentTypeImage},
		{path: "scan.jpeg", want: DocumentTypeImage},
		{path: "scan.png", want: DocumentTypeImage},
		{path: "scan.bmp", want: DocumentTypeImage},
		{path: "scan.Tiff", want: DocumentTypeImage},
		{path: "scan.gif", want: DocumentTypeImage},
		{path: "notes.txt", wantErr: true},
		{path: "noext", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			got, err := Classify(tt.path)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, IsType(err, ErrorTypeValidation))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestProcessedDocument_Totals(t *testing.T) {
	doc := &ProcessedDocument{
		Filename:     "test.pdf",
		DocumentType: DocumentTypePDF,
		TotalPages:   2,
		Pages: []DocumentPage{
			NewDocumentPage(1, []OrderItem{NewOrderItem("PART-A", 10), NewOrderItem("PART-B", 5)}),
			NewDocumentPage(2, []OrderItem{NewOrderItem("PART-C", 1)}),
		},
		ProcessingCost: 0.01,
	}

	assert.Equal(t, 3, doc.TotalItems())
	all := doc.AllItems()
	require.Len(t, all, 3)
	assert.Equal(t, []string{"PART-A", "PART-B", "PART-C"},
		[]string{all[0].ProductCode, all[1].ProductCode, all[2].ProductCode})
	assert.Equal(t, 2, doc.Pages[0].RawContent["processed_items"])
}

func TestNewDocumentPage_NilItems(t *testing.T) {
	page := NewDocumentPage(3, nil)
	assert.NotNil(t, page.Items)
	assert.Empty(t, page.Items)
	assert.Equal(t, 0, page.RawContent["processed_items"])
}

func TestIsType(t *testing.T) {
	inner := APIError("status 500", nil)
	err := fmt.Errorf("page 2: %w", RecognitionError("recognition failed", inner))

	assert.True(t, IsType(err, ErrorTypeRecognition))
	assert.True(t, IsType(err, ErrorTypeAPI))
	assert.False(t, IsType(err, ErrorTypeConfig))
	assert.False(t, IsType(errors.New("plain"), ErrorTypeAPI))
	assert.Equal(t, ErrorTypeRecognition, TypeOf(err))
	assert.Contains(t, err.Error(), "[recognition] recognition failed: [api] status 500")
}
