package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spherical/order-ocr/internal/cache"
	"github.com/spherical/order-ocr/internal/config"
	"github.com/spherical/order-ocr/internal/domain"
	"github.com/spherical/order-ocr/internal/ledger"
	"github.com/spherical/order-ocr/internal/observability"
)

type fakeProcessor struct {
	err      error
	seenPath string
	calls    int
}

func (f *fakeProcessor) Variant() domain.RecognizerVariant { return domain.VariantOffline }
func (f *fakeProcessor) Backend() string                   { return "fake" }

func (f *fakeProcessor) Extract(_ context.Context, path string, _ domain.ProgressFunc) (*domain.ProcessedDocument, error) {
	f.seenPath = path
	f.calls++
	if _, err := os.Stat(path); err != nil {
		return nil, err
	}
	if f.err != nil {
		return nil, f.err
	}
	return &domain.ProcessedDocument{
		Filename:       filepath.Base(path),
		DocumentType:   domain.DocumentTypeImage,
		TotalPages:     1,
		Pages:          []domain.DocumentPage{domain.NewDocumentPage(1, []domain.OrderItem{{ProductCode: "ABC-123", Quantity: 30}})},
		ProcessingCost: 0.0123,
	}, nil
}

type memoryRuns struct {
	runs []ledger.Run
}

func (m *memoryRuns) Record(_ context.Context, run ledger.Run) error {
	m.runs = append(m.runs, run)
	return nil
}

func (m *memoryRuns) List(_ context.Context, limit int) ([]ledger.Run, error) {
	if limit < len(m.runs) {
		return m.runs[:limit], nil
	}
	return m.runs, nil
}

func (m *memoryRuns) Totals(context.Context) (ledger.Totals, error) {
	var t ledger.Totals
	for _, r := range m.runs {
		t.Runs++
		t.Cost += r.Cost
	}
	return t, nil
}

var testCurrency = config.CurrencyConfig{ExchangeRate: 1399, BaseSymbol: "$", LocalSymbol: "₩"}

func newTestRouter(proc *fakeProcessor, factoryErr error, runs RunStore) http.Handler {
	factory := func() (Processor, error) {
		if factoryErr != nil {
			return nil, factoryErr
		}
		return proc, nil
	}
	h := NewHandler(nil, factory, runs, testCurrency, 1<<20)
	return NewRouter(observability.Nop(), RouterConfig{RequestTimeout: time.Minute}, h)
}

func uploadRequest(t *testing.T, field, filename string) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, err := mw.CreateFormFile(field, filename)
	require.NoError(t, err)
	_, err = fw.Write([]byte("image bytes"))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/v1/documents", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func TestHealth(t *testing.T) {
	rec := httptest.NewRecorder()
	newTestRouter(&fakeProcessor{}, nil, nil).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"healthy"`)
}

func TestProcessDocument(t *testing.T) {
	proc := &fakeProcessor{}
	runs := &memoryRuns{}
	rec := httptest.NewRecorder()
	newTestRouter(proc, nil, runs).ServeHTTP(rec, uploadRequest(t, "file", "scan.png"))

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp ProcessResponseDTO
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp.RunID)
	assert.Equal(t, "$0.0123 (₩17)", resp.ProcessingCostDisplay)

	tree, err := domain.UnmarshalTreeJSON(resp.Document)
	require.NoError(t, err)
	doc := domain.FromTree(tree)
	assert.Equal(t, "scan.png", doc.Filename)
	assert.Equal(t, 1, doc.TotalItems())

	require.Len(t, runs.runs, 1)
	assert.Equal(t, resp.RunID, runs.runs[0].ID)
	assert.NoFileExists(t, proc.seenPath, "uploads are removed after processing")
}

func TestProcessDocumentErrors(t *testing.T) {
	tests := []struct {
		name       string
		req        func(t *testing.T) *http.Request
		procErr    error
		factoryErr error
		wantStatus int
	}{
		{
			name:       "missing file field",
			req:        func(t *testing.T) *http.Request { return uploadRequest(t, "other", "scan.png") },
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "unsupported extension",
			req:        func(t *testing.T) *http.Request { return uploadRequest(t, "file", "notes.txt") },
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "missing credential",
			req:        func(t *testing.T) *http.Request { return uploadRequest(t, "file", "scan.png") },
			factoryErr: domain.ConfigError("OpenAI API key is not configured", nil),
			wantStatus: http.StatusServiceUnavailable,
		},
		{
			name:       "recognition failure",
			req:        func(t *testing.T) *http.Request { return uploadRequest(t, "file", "scan.png") },
			procErr:    domain.APIError("API returned status 500", nil),
			wantStatus: http.StatusBadGateway,
		},
		{
			name:       "unexpected failure",
			req:        func(t *testing.T) *http.Request { return uploadRequest(t, "file", "scan.png") },
			procErr:    errors.New("boom"),
			wantStatus: http.StatusInternalServerError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			runs := &memoryRuns{}
			rec := httptest.NewRecorder()
			newTestRouter(&fakeProcessor{err: tt.procErr}, tt.factoryErr, runs).ServeHTTP(rec, tt.req(t))
			assert.Equal(t, tt.wantStatus, rec.Code, rec.Body.String())
			assert.Contains(t, rec.Body.String(), `"error"`)
			assert.Empty(t, runs.runs)
		})
	}
}

func TestListRuns(t *testing.T) {
	runs := &memoryRuns{runs: []ledger.Run{
		{ID: "a", Filename: "a.pdf", Cost: 0.5, CreatedAt: time.Now()},
		{ID: "b", Filename: "b.png", Cost: 0.25, CreatedAt: time.Now()},
	}}
	router := newTestRouter(&fakeProcessor{}, nil, runs)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/runs?limit=1", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp RunsResponseDTO
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Len(t, resp.Runs, 1)
	assert.Equal(t, 2, resp.TotalRuns)
	assert.InDelta(t, 0.75, resp.TotalCost, 1e-9)
	assert.Equal(t, "$0.7500 (₩1,049)", resp.TotalCostDisplay)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/runs?limit=zero", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestListRunsWithoutLedger(t *testing.T) {
	rec := httptest.NewRecorder()
	newTestRouter(&fakeProcessor{}, nil, nil).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/runs", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestStatusFor(t *testing.T) {
	assert.Equal(t, http.StatusBadRequest, StatusFor(domain.ValidationError("x", nil)))
	assert.Equal(t, http.StatusServiceUnavailable, StatusFor(domain.EnvironmentError("x", nil)))
	assert.Equal(t, http.StatusBadGateway, StatusFor(domain.RecognitionError("x", nil)))
	assert.Equal(t, http.StatusInternalServerError, StatusFor(domain.ConversionError("x", nil)))
}

func TestProcessDocumentServesCachedResult(t *testing.T) {
	proc := &fakeProcessor{}
	runs := &memoryRuns{}
	factory := func() (Processor, error) { return proc, nil }
	h := NewHandler(nil, factory, runs, testCurrency, 1<<20,
		WithResultCache(cache.NewResults(cache.NewMemoryClient(10), time.Hour)),
		WithScratchRoot(t.TempDir()))
	router := NewRouter(observability.Nop(), RouterConfig{}, h)

	first := httptest.NewRecorder()
	router.ServeHTTP(first, uploadRequest(t, "file", "scan.png"))
	require.Equal(t, http.StatusOK, first.Code)

	second := httptest.NewRecorder()
	router.ServeHTTP(second, uploadRequest(t, "file", "again.png"))
	require.Equal(t, http.StatusOK, second.Code)

	var resp ProcessResponseDTO
	require.NoError(t, json.Unmarshal(second.Body.Bytes(), &resp))
	assert.True(t, resp.Cached)
	assert.Equal(t, 1, proc.calls)
	assert.Len(t, runs.runs, 1, "cache hits are not billed runs")

	tree, err := domain.UnmarshalTreeJSON(resp.Document)
	require.NoError(t, err)
	assert.Equal(t, "again.png", domain.FromTree(tree).Filename)
}
