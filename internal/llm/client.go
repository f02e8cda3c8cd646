package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/spherical/order-ocr/internal/cost"
	"github.com/spherical/order-ocr/internal/domain"
	"github.com/spherical/order-ocr/internal/observability"
)

const (
	defaultEndpoint = "https://api.openai.com/v1"
	defaultModel    = "gpt-4o-mini"
	maxErrorBody    = 512
)

// ClientConfig configures the live recognizer.
type ClientConfig struct {
	APIKey     string
	Model      string
	Endpoint   string
	Pricing    cost.Pricing
	Timeout    time.Duration
	MaxRetries int
}

// Client recognizes order lines through an OpenAI-compatible vision
// chat-completions endpoint.
type Client struct {
	apiKey     string
	model      string
	endpoint   string
	pricing    cost.Pricing
	httpClient *http.Client
	retry      *RetryConfig
	logger     *observability.Logger
}

// Message represents a chat message
type Message struct {
	Role    string        `json:"role"`
	Content []ContentPart `json:"content"`
}

// ContentPart represents a part of message content (text or image)
type ContentPart struct {
	Type     string    `json:"type"`
	Text     string    `json:"text,omitempty"`
	ImageURL *ImageURL `json:"image_url,omitempty"`
}

// ImageURL represents an image URL in the message
type ImageURL struct {
	URL string `json:"url"`
}

// ResponseFormat asks the model for a JSON object reply.
type ResponseFormat struct {
	Type string `json:"type"`
}

// Request represents the API request structure
type Request struct {
	Model          string          `json:"model"`
	Messages       []Message       `json:"messages"`
	ResponseFormat *ResponseFormat `json:"response_format,omitempty"`
	Temperature    float64         `json:"temperature"`
}

// Response represents the API response structure
type Response struct {
	ID      string   `json:"id"`
	Choices []Choice `json:"choices"`
	Usage   Usage    `json:"usage"`
}

// Choice represents a single completion choice
type Choice struct {
	Message      ChoiceMessage `json:"message"`
	FinishReason string        `json:"finish_reason"`
}

// ChoiceMessage is the assistant reply.
type ChoiceMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Usage reports token consumption of one call.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
}

// NewClient creates the live recognizer. A credential is required.
func NewClient(cfg ClientConfig, logger *observability.Logger) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, missingKeyError()
	}
	if cfg.Model == "" {
		cfg.Model = defaultModel
	}
	if cfg.Endpoint == "" {
		cfg.Endpoint = defaultEndpoint
	}
	if logger == nil {
		logger = observability.Nop()
	}

	return &Client{
		apiKey:     cfg.APIKey,
		model:      cfg.Model,
		endpoint:   strings.TrimRight(cfg.Endpoint, "/"),
		pricing:    cfg.Pricing,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		retry:      DefaultRetryConfig(cfg.MaxRetries),
		logger:     logger.WithOperation("recognize"),
	}, nil
}

func missingKeyError() error {
	return domain.ConfigError("OpenAI API key is not configured; set recognition.api_key or "+
		"OPENAI_API_KEY, or enable recognition.mock_mode", nil)
}

// Variant reports the live variant.
func (c *Client) Variant() domain.RecognizerVariant { return domain.VariantLive }

// Recognize sends one page image and parses the extracted items.
func (c *Client) Recognize(ctx context.Context, imagePath string) ([]domain.OrderItem, float64, error) {
	if c.apiKey == "" {
		return nil, 0, missingKeyError()
	}

	req, err := c.buildRequest(imagePath)
	if err != nil {
		return nil, 0, domain.IOError("failed to prepare page image", err)
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, 0, domain.APIError("failed to marshal request", err)
	}

	resp, err := c.retryWithBackoff(ctx, func() (*http.Response, error) {
		httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint+"/chat/completions", bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		httpReq.Header.Set("Content-Type", "application/json")
		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
		return c.httpClient.Do(httpReq)
	})
	if err != nil {
		return nil, 0, domain.APIError("recognition request failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		excerpt, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, 0, domain.APIError(
			fmt.Sprintf("API returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(excerpt))), nil)
	}

	var parsed Response
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, 0, domain.APIError("failed to decode response", err)
	}
	if len(parsed.Choices) == 0 {
		return nil, 0, domain.RecognitionError("response contained no choices", nil)
	}

	items, err := parseItems(parsed.Choices[0].Message.Content)
	if err != nil {
		return nil, 0, err
	}

	callCost := c.pricing.Estimate(parsed.Usage.PromptTokens, parsed.Usage.CompletionTokens)
	c.logger.Debug().
		Int("items", len(items)).
		Int("prompt_tokens", parsed.Usage.PromptTokens).
		Int("completion_tokens", parsed.Usage.CompletionTokens).
		Float64("cost", callCost).
		Msg("page recognized")

	return items, callCost, nil
}

// buildRequest constructs the API request with the image
func (c *Client) buildRequest(imagePath string) (*Request, error) {
	imageURL, err := encodeImage(imagePath)
	if err != nil {
		return nil, err
	}

	msg := Message{
		Role: "user",
		Content: []ContentPart{
			{Type: "text", Text: buildPrompt()},
			{Type: "image_url", ImageURL: &ImageURL{URL: imageURL}},
		},
	}

	return &Request{
		Model:          c.model,
		Messages:       []Message{msg},
		ResponseFormat: &ResponseFormat{Type: "json_object"},
	}, nil
}

// buildPrompt creates the extraction prompt
func buildPrompt() string {
	return `You are reading a scanned purchase order. Extract every order line that has a product code and an ordered quantity.

Return ONLY a JSON object of this exact shape:
{"items": [{"품번": "<product code>", "수량": <quantity>}]}

RULES:
- "품번" is the product code / part number exactly as printed (keep hyphens, letters and digits, no spaces added)
- "수량" is the ordered quantity as an integer
- Keep the order in which lines appear on the page
- Skip header rows, totals, prices, addresses and notes
- If the page has no order lines, return {"items": []}`
}

// parseItems reads the model reply. Both {"items": [...]} and a bare
// array are accepted; records without a product code are dropped.
func parseItems(content string) ([]domain.OrderItem, error) {
	content = strings.TrimSpace(content)
	content = strings.TrimPrefix(content, "```json")
	content = strings.TrimPrefix(content, "```")
	content = strings.TrimSuffix(content, "```")
	content = strings.TrimSpace(content)
	if content == "" {
		return []domain.OrderItem{}, nil
	}

	var v any
	if err := json.Unmarshal([]byte(content), &v); err != nil {
		return nil, domain.RecognitionError("model reply is not valid JSON", err)
	}

	switch x := v.(type) {
	case []any:
		return domain.ItemsFromRecords(x), nil
	case map[string]any:
		records, _ := x["items"].([]any)
		return domain.ItemsFromRecords(records), nil
	default:
		return nil, domain.RecognitionError(fmt.Sprintf("unexpected model reply of type %T", v), nil)
	}
}
