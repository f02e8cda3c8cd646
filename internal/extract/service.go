package extract

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spherical/order-ocr/internal/domain"
	"github.com/spherical/order-ocr/internal/observability"
)

// InputValidator checks an input path and classifies it.
type InputValidator interface {
	ValidateInputPath(path string) (domain.DocumentType, error)
}

// Service orchestrates one document through rasterization and recognition.
// A Service is not safe for concurrent Process calls; build one per run.
type Service struct {
	rasterizer domain.Rasterizer
	recognizer domain.Recognizer
	validator  InputValidator
	logger     *observability.Logger
	tempRoot   string
}

// Option customizes a Service.
type Option func(*Service)

// WithValidator sets the input validator. Without one, inputs are only
// classified by extension.
func WithValidator(v InputValidator) Option {
	return func(s *Service) { s.validator = v }
}

// WithLogger sets the service logger.
func WithLogger(l *observability.Logger) Option {
	return func(s *Service) { s.logger = l }
}

// WithTempRoot sets the parent directory for per-run scratch directories.
func WithTempRoot(dir string) Option {
	return func(s *Service) { s.tempRoot = dir }
}

// NewService creates a new extraction service
func NewService(rasterizer domain.Rasterizer, recognizer domain.Recognizer, opts ...Option) *Service {
	s := &Service{
		rasterizer: rasterizer,
		recognizer: recognizer,
		logger:     observability.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.WithOperation("extract")
	return s
}

// Process turns one file into a ProcessedDocument. progress, when non-nil,
// is called after each completed page. On failure no document is returned
// and the scratch directory is already gone.
func (s *Service) Process(ctx context.Context, path string, progress domain.ProgressFunc) (*domain.ProcessedDocument, error) {
	docType, err := s.classify(path)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	var doc *domain.ProcessedDocument
	if docType == domain.DocumentTypePDF {
		doc, err = s.processPDF(ctx, path, progress)
	} else {
		doc, err = s.processImage(ctx, path, progress)
	}
	if err != nil {
		s.logger.Error().Err(err).Str("file", path).Msg("processing failed")
		return nil, err
	}

	s.logger.Info().
		Str("file", doc.Filename).
		Str("type", string(doc.DocumentType)).
		Int("pages", doc.TotalPages).
		Int("items", doc.TotalItems()).
		Float64("cost", doc.ProcessingCost).
		Dur("duration", time.Since(start)).
		Msg("processing complete")
	return doc, nil
}

func (s *Service) classify(path string) (domain.DocumentType, error) {
	if s.validator != nil {
		return s.validator.ValidateInputPath(path)
	}
	return domain.Classify(path)
}

func (s *Service) processPDF(ctx context.Context, path string, progress domain.ProgressFunc) (*domain.ProcessedDocument, error) {
	scratch, err := os.MkdirTemp(s.tempRoot, "order-ocr-*")
	if err != nil {
		return nil, domain.IOError("failed to create scratch directory", err)
	}
	defer func() {
		if rmErr := os.RemoveAll(scratch); rmErr != nil {
			s.logger.Warn().Err(rmErr).Str("dir", scratch).Msg("failed to remove scratch directory")
		}
	}()

	s.logger.Info().Str("file", path).Str("backend", s.rasterizer.Backend()).Msg("rasterizing PDF")
	images, count, err := s.rasterizer.Rasterize(ctx, path, scratch)
	if err != nil {
		return nil, err
	}
	if len(images) != count {
		return nil, domain.ConversionError(
			fmt.Sprintf("rasterizer returned %d images for %d pages", len(images), count), nil)
	}

	pages := make([]domain.DocumentPage, 0, count)
	var total float64
	for i, image := range images {
		pageNumber := i + 1
		items, callCost, err := s.recognizer.Recognize(ctx, image)
		if err != nil {
			return nil, fmt.Errorf("page %d: %w", pageNumber, err)
		}
		if rmErr := os.Remove(image); rmErr != nil && !os.IsNotExist(rmErr) {
			s.logger.Warn().Err(rmErr).Str("image", image).Msg("failed to remove page image")
		}

		pages = append(pages, domain.NewDocumentPage(pageNumber, items))
		total += callCost
		s.logger.Debug().Int("page", pageNumber).Int("total", count).Int("items", len(items)).Msg("page complete")

		if progress != nil {
			progress(pageNumber, count)
		}
	}

	return &domain.ProcessedDocument{
		Filename:       filepath.Base(path),
		DocumentType:   domain.DocumentTypePDF,
		TotalPages:     count,
		Pages:          pages,
		ProcessingCost: total,
	}, nil
}

func (s *Service) processImage(ctx context.Context, path string, progress domain.ProgressFunc) (*domain.ProcessedDocument, error) {
	items, callCost, err := s.recognizer.Recognize(ctx, path)
	if err != nil {
		return nil, err
	}
	if progress != nil {
		progress(1, 1)
	}

	return &domain.ProcessedDocument{
		Filename:       filepath.Base(path),
		DocumentType:   domain.DocumentTypeImage,
		TotalPages:     1,
		Pages:          []domain.DocumentPage{domain.NewDocumentPage(1, items)},
		ProcessingCost: callCost,
	}, nil
}
