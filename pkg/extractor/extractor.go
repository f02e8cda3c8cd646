// Package extractor is the public entry point for order-document OCR.
package extractor

import (
	"context"

	"github.com/spherical/order-ocr/internal/config"
	"github.com/spherical/order-ocr/internal/domain"
	"github.com/spherical/order-ocr/internal/extract"
	"github.com/spherical/order-ocr/internal/llm"
	"github.com/spherical/order-ocr/internal/observability"
	"github.com/spherical/order-ocr/internal/pdf"
)

// Re-export the result model and event types for the public API.
type (
	Config            = config.Config
	ProcessedDocument = domain.ProcessedDocument
	DocumentPage      = domain.DocumentPage
	OrderItem         = domain.OrderItem
	StreamEvent       = domain.StreamEvent
	EventType         = domain.EventType
	ProgressFunc      = domain.ProgressFunc
	RecognizerVariant = domain.RecognizerVariant
)

// Event type constants
const (
	EventStart        = domain.EventStart
	EventPageComplete = domain.EventPageComplete
	EventError        = domain.EventError
	EventComplete     = domain.EventComplete
)

// Client is one pipeline instance. Use a separate Client per concurrent run.
type Client struct {
	service    *extract.Service
	rasterizer domain.Rasterizer
	recognizer domain.Recognizer
}

// Option customizes a Client.
type Option func(*options)

type options struct {
	rasterizer domain.Rasterizer
	recognizer domain.Recognizer
	tempRoot   string
}

// WithRasterizer replaces the configured rendering backend.
func WithRasterizer(r domain.Rasterizer) Option {
	return func(o *options) { o.rasterizer = r }
}

// WithRecognizer replaces the configured recognizer.
func WithRecognizer(r domain.Recognizer) Option {
	return func(o *options) { o.recognizer = r }
}

// WithTempRoot sets where per-run scratch directories are created.
func WithTempRoot(dir string) Option {
	return func(o *options) { o.tempRoot = dir }
}

// DefaultConfig returns the built-in configuration.
func DefaultConfig() *Config { return config.DefaultConfig() }

// LoadConfig loads configuration from path, .env and the environment.
func LoadConfig(path string) (*Config, error) { return config.Load(path) }

// NewClientFromEnv loads the default configuration and builds a client.
func NewClientFromEnv() (*Client, error) {
	cfg, err := config.Load("")
	if err != nil {
		return nil, domain.ConfigError("failed to load configuration", err)
	}
	return NewClient(cfg, nil)
}

// NewClient builds the pipeline from cfg. Recognition runs live only when
// mock mode is off and an API key is set; otherwise it runs offline.
func NewClient(cfg *Config, logger *observability.Logger, opts ...Option) (*Client, error) {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	if logger == nil {
		logger = observability.Nop()
	}
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	if o.recognizer == nil {
		rec, err := llm.NewRecognizer(cfg.Recognition, logger)
		if err != nil {
			return nil, err
		}
		o.recognizer = rec
	}

	if o.rasterizer == nil {
		providers, err := pdf.ProvidersFor(cfg.Rasterizer.Backend, cfg.Rasterizer.DPI)
		if err != nil {
			return nil, err
		}
		conv, err := pdf.NewConverter(logger, providers...)
		if err != nil {
			return nil, err
		}
		o.rasterizer = conv
	}

	service := extract.NewService(o.rasterizer, o.recognizer,
		extract.WithValidator(pdf.NewValidator(logger)),
		extract.WithLogger(logger),
		extract.WithTempRoot(o.tempRoot),
	)

	return &Client{
		service:    service,
		rasterizer: o.rasterizer,
		recognizer: o.recognizer,
	}, nil
}

// Process starts extraction in the background and returns its event
// stream: start, page_complete per page, then complete or error.
func (c *Client) Process(ctx context.Context, path string) <-chan StreamEvent {
	return c.service.Stream(ctx, path)
}

// Extract runs the pipeline synchronously.
func (c *Client) Extract(ctx context.Context, path string, progress ProgressFunc) (*ProcessedDocument, error) {
	return c.service.Process(ctx, path, progress)
}

// Variant reports the recognizer chosen at construction.
func (c *Client) Variant() RecognizerVariant { return c.recognizer.Variant() }

// Backend names the PDF rendering backend.
func (c *Client) Backend() string { return c.rasterizer.Backend() }
