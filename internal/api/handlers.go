package api

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/spherical/order-ocr/internal/cache"
	"github.com/spherical/order-ocr/internal/config"
	"github.com/spherical/order-ocr/internal/cost"
	"github.com/spherical/order-ocr/internal/domain"
	"github.com/spherical/order-ocr/internal/ledger"
	"github.com/spherical/order-ocr/internal/observability"
)

// Processor runs one document through the pipeline.
type Processor interface {
	Extract(ctx context.Context, path string, progress domain.ProgressFunc) (*domain.ProcessedDocument, error)
	Variant() domain.RecognizerVariant
	Backend() string
}

// ProcessorFactory builds a fresh Processor for one request.
type ProcessorFactory func() (Processor, error)

// RunStore is the subset of the ledger the API needs.
type RunStore interface {
	Record(ctx context.Context, run ledger.Run) error
	List(ctx context.Context, limit int) ([]ledger.Run, error)
	Totals(ctx context.Context) (ledger.Totals, error)
}

// Handler serves document processing requests.
type Handler struct {
	logger         *observability.Logger
	newProcessor   ProcessorFactory
	runs           RunStore
	currency       config.CurrencyConfig
	maxUploadBytes int64
	scratchRoot    string
	results        *cache.Results
}

// HandlerOption customizes a Handler.
type HandlerOption func(*Handler)

// WithResultCache serves repeated uploads of identical content from results.
func WithResultCache(results *cache.Results) HandlerOption {
	return func(h *Handler) { h.results = results }
}

// WithScratchRoot sets where uploads are staged.
func WithScratchRoot(dir string) HandlerOption {
	return func(h *Handler) { h.scratchRoot = dir }
}

// NewHandler creates a handler. runs may be nil when the ledger is disabled.
func NewHandler(logger *observability.Logger, factory ProcessorFactory, runs RunStore,
	currency config.CurrencyConfig, maxUploadBytes int64, opts ...HandlerOption) *Handler {
	if logger == nil {
		logger = observability.Nop()
	}
	h := &Handler{
		logger:         logger.WithOperation("api"),
		newProcessor:   factory,
		runs:           runs,
		currency:       currency,
		maxUploadBytes: maxUploadBytes,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// ProcessResponseDTO is the response of POST /v1/documents.
type ProcessResponseDTO struct {
	RunID                 string          `json:"run_id"`
	Document              json.RawMessage `json:"document"`
	ProcessingCostDisplay string          `json:"processing_cost_display"`
	Cached                bool            `json:"cached"`
}

// RunDTO is one ledger entry.
type RunDTO struct {
	ID           string    `json:"id"`
	Filename     string    `json:"filename"`
	DocumentType string    `json:"document_type"`
	Pages        int       `json:"pages"`
	Items        int       `json:"items"`
	Cost         float64   `json:"cost"`
	Variant      string    `json:"variant"`
	Backend      string    `json:"backend"`
	CreatedAt    time.Time `json:"created_at"`
}

// RunsResponseDTO is the response of GET /v1/runs.
type RunsResponseDTO struct {
	Runs             []RunDTO `json:"runs"`
	TotalRuns        int      `json:"total_runs"`
	TotalCost        float64  `json:"total_cost"`
	TotalCostDisplay string   `json:"total_cost_display"`
}

// Health handles GET /health.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy", "service": "order-ocr"})
}

// ProcessDocument handles POST /v1/documents with a multipart "file" field.
func (h *Handler) ProcessDocument(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.maxUploadBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes)
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			h.writeError(w, http.StatusRequestEntityTooLarge, "upload too large",
				fmt.Sprintf("limit is %d bytes", h.maxUploadBytes))
			return
		}
		h.writeError(w, http.StatusBadRequest, "multipart field \"file\" is required", err.Error())
		return
	}
	defer file.Close()

	name := filepath.Base(header.Filename)
	if _, err := domain.Classify(name); err != nil {
		h.writeDomainError(w, err)
		return
	}

	dir, err := os.MkdirTemp(h.scratchRoot, "order-ocr-upload-*")
	if err != nil {
		h.writeDomainError(w, domain.IOError("failed to create upload directory", err))
		return
	}
	defer os.RemoveAll(dir)

	path := filepath.Join(dir, name)
	sum, err := saveUpload(file, path)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	proc, err := h.newProcessor()
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	runID := uuid.NewString()
	log := h.logger.WithRun(runID)

	var cacheKey string
	if h.results != nil {
		cacheKey = cache.Key(sum, proc.Variant())
		cached, err := h.results.Get(ctx, cacheKey)
		switch {
		case err == nil:
			log.Info().Str("file", name).Msg("serving cached result")
			cached.Filename = name
			h.writeDocument(w, runID, cached, true)
			return
		case !errors.Is(err, cache.ErrCacheMiss):
			log.Warn().Err(err).Msg("result cache lookup failed")
		}
	}

	log.Info().Str("file", name).Str("variant", string(proc.Variant())).Msg("processing upload")

	doc, err := proc.Extract(ctx, path, nil)
	if err != nil {
		log.Error().Err(err).Msg("processing failed")
		h.writeDomainError(w, err)
		return
	}

	if h.runs != nil {
		run := ledger.NewRun(doc, proc.Variant(), proc.Backend(), "", time.Now())
		run.ID = runID
		if err := h.runs.Record(ctx, run); err != nil {
			log.Warn().Err(err).Msg("failed to record run")
		}
	}
	if h.results != nil {
		if err := h.results.Put(ctx, cacheKey, doc); err != nil {
			log.Warn().Err(err).Msg("failed to cache result")
		}
	}

	h.writeDocument(w, runID, doc, false)
}

func (h *Handler) writeDocument(w http.ResponseWriter, runID string, doc *domain.ProcessedDocument, cached bool) {
	data, err := doc.MarshalIndentJSON()
	if err != nil {
		h.writeDomainError(w, domain.IOError("failed to encode document", err))
		return
	}
	writeJSON(w, http.StatusOK, ProcessResponseDTO{
		RunID:                 runID,
		Document:              json.RawMessage(data),
		ProcessingCostDisplay: h.formatCost(doc.ProcessingCost),
		Cached:                cached,
	})
}

// ListRuns handles GET /v1/runs.
func (h *Handler) ListRuns(w http.ResponseWriter, r *http.Request) {
	if h.runs == nil {
		h.writeError(w, http.StatusServiceUnavailable, "run ledger is disabled", "")
		return
	}

	limit := 20
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			h.writeError(w, http.StatusBadRequest, "limit must be a positive integer", v)
			return
		}
		limit = n
	}

	runs, err := h.runs.List(r.Context(), limit)
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, "failed to list runs", err.Error())
		return
	}
	totals, err := h.runs.Totals(r.Context())
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, "failed to sum runs", err.Error())
		return
	}

	resp := RunsResponseDTO{
		Runs:             make([]RunDTO, 0, len(runs)),
		TotalRuns:        totals.Runs,
		TotalCost:        totals.Cost,
		TotalCostDisplay: h.formatCost(totals.Cost),
	}
	for _, run := range runs {
		resp.Runs = append(resp.Runs, RunDTO{
			ID:           run.ID,
			Filename:     run.Filename,
			DocumentType: string(run.DocumentType),
			Pages:        run.Pages,
			Items:        run.Items,
			Cost:         run.Cost,
			Variant:      string(run.Variant),
			Backend:      run.Backend,
			CreatedAt:    run.CreatedAt,
		})
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) formatCost(amount float64) string {
	return cost.Format(amount, h.currency.ExchangeRate, h.currency.BaseSymbol, h.currency.LocalSymbol)
}

// saveUpload copies src to path and returns the SHA-256 of its content.
func saveUpload(src io.Reader, path string) ([]byte, error) {
	dst, err := os.Create(path)
	if err != nil {
		return nil, domain.IOError("failed to store upload", err)
	}
	hash := sha256.New()
	if _, err := io.Copy(io.MultiWriter(dst, hash), src); err != nil {
		dst.Close()
		return nil, domain.IOError("failed to store upload", err)
	}
	if err := dst.Close(); err != nil {
		return nil, domain.IOError("failed to store upload", err)
	}
	return hash.Sum(nil), nil
}

// StatusFor maps a pipeline error to an HTTP status.
func StatusFor(err error) int {
	switch domain.TypeOf(err) {
	case domain.ErrorTypeValidation:
		return http.StatusBadRequest
	case domain.ErrorTypeConfig, domain.ErrorTypeEnvironment:
		return http.StatusServiceUnavailable
	case domain.ErrorTypeRecognition, domain.ErrorTypeAPI:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func (h *Handler) writeDomainError(w http.ResponseWriter, err error) {
	kind := string(domain.TypeOf(err))
	if kind == "" {
		kind = "internal"
	}
	h.writeError(w, StatusFor(err), kind, err.Error())
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message, detail string) {
	resp := map[string]string{
		"error": message,
	}
	if detail != "" {
		resp["detail"] = detail
	}
	writeJSON(w, status, resp)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(v)
}
