package ledger

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spherical/order-ocr/internal/domain"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(context.Background(), "sqlite", filepath.Join(t.TempDir(), "nested", "ledger.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestRecordAndList(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	base := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)

	doc := &domain.ProcessedDocument{
		Filename:     "order.pdf",
		DocumentType: domain.DocumentTypePDF,
		TotalPages:   2,
		Pages: []domain.DocumentPage{
			domain.NewDocumentPage(1, []domain.OrderItem{{ProductCode: "A", Quantity: 1}}),
			domain.NewDocumentPage(2, []domain.OrderItem{{ProductCode: "B", Quantity: 2}, {ProductCode: "C", Quantity: 3}}),
		},
		ProcessingCost: 0.0042,
	}
	first := NewRun(doc, domain.VariantOffline, "mupdf", "/out/order_ocr.json", base)
	second := NewRun(doc, domain.VariantLive, "poppler", "", base.Add(time.Hour))
	require.NoError(t, store.Record(ctx, first))
	require.NoError(t, store.Record(ctx, second))

	runs, err := store.List(ctx, 10)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, second.ID, runs[0].ID)
	assert.Equal(t, first.ID, runs[1].ID)
	assert.Equal(t, 3, runs[1].Items)
	assert.Equal(t, domain.DocumentTypePDF, runs[1].DocumentType)
	assert.Equal(t, domain.VariantOffline, runs[1].Variant)
	assert.True(t, base.Equal(runs[1].CreatedAt))

	limited, err := store.List(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)

	totals, err := store.Totals(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, totals.Runs)
	assert.Equal(t, 4, totals.Pages)
	assert.Equal(t, 6, totals.Items)
	assert.InDelta(t, 0.0084, totals.Cost, 1e-9)
}

func TestEmptyLedger(t *testing.T) {
	store := openTestStore(t)
	runs, err := store.List(context.Background(), 0)
	require.NoError(t, err)
	assert.Empty(t, runs)

	totals, err := store.Totals(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Totals{}, totals)
}

func TestOpenRejectsBadConfig(t *testing.T) {
	_, err := Open(context.Background(), "mysql", "x")
	assert.True(t, domain.IsType(err, domain.ErrorTypeConfig))

	_, err = Open(context.Background(), "postgres", "")
	assert.True(t, domain.IsType(err, domain.ErrorTypeConfig))
}

func TestRebind(t *testing.T) {
	pg := &Store{driver: "postgres"}
	assert.Equal(t, "SELECT $1, $2", pg.rebind("SELECT ?, ?"))
	lite := &Store{driver: "sqlite"}
	assert.Equal(t, "SELECT ?, ?", lite.rebind("SELECT ?, ?"))
}

func TestListOrdersSubSecondRuns(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	base := time.Date(2024, 5, 1, 9, 0, 5, 0, time.UTC)
	doc := &domain.ProcessedDocument{Filename: "a.png", DocumentType: domain.DocumentTypeImage, TotalPages: 1}

	whole := NewRun(doc, domain.VariantOffline, "", "", base)
	tenth := NewRun(doc, domain.VariantOffline, "", "", base.Add(100*time.Millisecond))
	later := NewRun(doc, domain.VariantOffline, "", "", base.Add(120*time.Millisecond))
	for _, r := range []Run{later, whole, tenth} {
		require.NoError(t, store.Record(ctx, r))
	}

	runs, err := store.List(ctx, 0)
	require.NoError(t, err)
	require.Len(t, runs, 3)
	assert.Equal(t, []string{later.ID, tenth.ID, whole.ID}, []string{runs[0].ID, runs[1].ID, runs[2].ID})
}
