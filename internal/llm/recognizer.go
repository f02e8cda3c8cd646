package llm

import (
	"github.com/spherical/order-ocr/internal/config"
	"github.com/spherical/order-ocr/internal/cost"
	"github.com/spherical/order-ocr/internal/domain"
	"github.com/spherical/order-ocr/internal/observability"
)

// NewRecognizer picks the recognizer variant once from cfg. The live client
// is used only when mock mode is off and an API key is set; otherwise the
// offline client is returned.
func NewRecognizer(cfg config.RecognitionConfig, logger *observability.Logger) (domain.Recognizer, error) {
	if logger == nil {
		logger = observability.Nop()
	}

	if cfg.MockMode || cfg.APIKey == "" {
		logger.Info().Bool("mock_mode", cfg.MockMode).Msg("recognition running offline")
		return NewMockClient(nil, cfg.MockLatency, logger), nil
	}

	client, err := NewClient(ClientConfig{
		APIKey:   cfg.APIKey,
		Model:    cfg.Model,
		Endpoint: cfg.Endpoint,
		Pricing: cost.Pricing{
			InputPerMillion:  cfg.InputCostPerMillion,
			OutputPerMillion: cfg.OutputCostPerMillion,
		},
		Timeout:    cfg.Timeout,
		MaxRetries: cfg.MaxRetries,
	}, logger)
	if err != nil {
		return nil, err
	}
	logger.Info().Str("model", client.model).Msg("recognition running live")
	return client, nil
}
