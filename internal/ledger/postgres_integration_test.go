package ledger

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/spherical/order-ocr/internal/domain"
)

func isDockerAvailable() bool {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	provider, err := testcontainers.NewDockerProvider()
	if err != nil {
		return false
	}
	defer provider.Close()

	_, err = provider.Client().Ping(ctx)
	return err == nil
}

func TestPostgresLedger(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}
	if os.Getenv("CI") == "" && !isDockerAvailable() {
		t.Skip("Docker not available")
	}

	ctx := context.Background()
	container, err := postgres.Run(ctx,
		"postgres:17-alpine",
		postgres.WithDatabase("order_ocr_test"),
		postgres.WithUsername("test"),
		postgres.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	require.NoError(t, err)
	t.Cleanup(func() {
		if err := container.Terminate(ctx); err != nil {
			t.Logf("Failed to terminate postgres container: %v", err)
		}
	})

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	store, err := Open(ctx, "postgres", dsn)
	require.NoError(t, err)
	defer store.Close()

	doc := &domain.ProcessedDocument{
		Filename:       "order.pdf",
		DocumentType:   domain.DocumentTypePDF,
		TotalPages:     1,
		Pages:          []domain.DocumentPage{domain.NewDocumentPage(1, []domain.OrderItem{{ProductCode: "A", Quantity: 2}})},
		ProcessingCost: 0.002,
	}
	require.NoError(t, store.Record(ctx, NewRun(doc, domain.VariantLive, "mupdf", "", time.Now())))

	runs, err := store.List(ctx, 5)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, "order.pdf", runs[0].Filename)

	totals, err := store.Totals(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, totals.Runs)
	assert.InDelta(t, 0.002, totals.Cost, 1e-9)
}
