package providers

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	openai "github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/openai/openai-go/v3/shared"
)

// OpenAIVLMName identifies OpenAIVLMClient in ChatResult.Provider.
const OpenAIVLMName = "openai-vlm"

// OpenAIVLMConfig holds configuration for the OpenAI-compatible
// multimodal chat client used as the VLM transport (spec.md §6:
// vlm.endpoint, vlm.api_key, vlm.model).
type OpenAIVLMConfig struct {
	APIKey     string
	BaseURL    string // optional, for OpenAI-compatible third-party endpoints
	Model      string
	Timeout    time.Duration
	MaxRetries int
	RateLimit  float64
	HTTPClient *http.Client // optional (tests)
}

// OpenAIVLMClient implements VLMClient using the official OpenAI SDK's
// chat completion API with vision content parts.
type OpenAIVLMClient struct {
	model     string
	rateLimit float64
	client    openai.Client
}

// NewOpenAIVLMClient creates a new OpenAI-compatible VLM client.
func NewOpenAIVLMClient(cfg OpenAIVLMConfig) *OpenAIVLMClient {
	if cfg.Model == "" {
		cfg.Model = "gpt-4o"
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 180 * time.Second
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 1
	}
	if cfg.RateLimit <= 0 {
		cfg.RateLimit = 5.0
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}

	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithHTTPClient(httpClient),
		option.WithMaxRetries(cfg.MaxRetries),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}

	return &OpenAIVLMClient{
		model:     cfg.Model,
		rateLimit: cfg.RateLimit,
		client:    openai.NewClient(opts...),
	}
}

// Name returns the provider identifier.
func (c *OpenAIVLMClient) Name() string { return OpenAIVLMName }

// RequestsPerSecond returns the configured rate limit.
func (c *OpenAIVLMClient) RequestsPerSecond() float64 { return c.rateLimit }

// Chat sends one multi-image chat completion request. req.Messages may
// carry inline page images (req.Messages[i].Images); each becomes an
// additional image content part alongside that message's text.
func (c *OpenAIVLMClient) Chat(ctx context.Context, req *ChatRequest) (*ChatResult, error) {
	start := time.Now()
	model := req.Model
	if model == "" {
		model = c.model
	}

	messages := make([]openai.ChatCompletionMessageParamUnion, 0, len(req.Messages))
	for _, m := range req.Messages {
		parts := []openai.ChatCompletionContentPartUnionParam{
			openai.TextContentPart(m.Content),
		}
		for _, img := range m.Images {
			parts = append(parts, openai.ImageContentPart(openai.ChatCompletionContentPartImageImageURLParam{
				URL: "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString(img),
			}))
		}

		switch m.Role {
		case "system":
			messages = append(messages, openai.SystemMessage(m.Content))
		default:
			messages = append(messages, openai.UserMessage(parts))
		}
	}

	params := openai.ChatCompletionNewParams{
		Model:    model,
		Messages: messages,
	}
	if req.Temperature > 0 {
		params.Temperature = openai.Float(req.Temperature)
	}
	if req.MaxTokens > 0 {
		params.MaxTokens = openai.Int(int64(req.MaxTokens))
	}
	if req.ResponseFormat != nil && req.ResponseFormat.Type == "json_schema" {
		schema, err := decodeJSONSchemaParam(req.ResponseFormat.JSONSchema)
		if err != nil {
			return nil, fmt.Errorf("invalid response_format schema: %w", err)
		}
		params.ResponseFormat = openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONSchema: schema,
		}
	}

	resp, err := c.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return &ChatResult{
			Provider:      OpenAIVLMName,
			ModelUsed:     model,
			RequestID:     req.RequestID,
			Success:       false,
			ErrorMessage:  err.Error(),
			ExecutionTime: time.Since(start),
		}, mapOpenAIVLMError(err)
	}

	if len(resp.Choices) == 0 {
		return &ChatResult{
			Provider:      OpenAIVLMName,
			ModelUsed:     model,
			RequestID:     req.RequestID,
			Success:       false,
			ErrorMessage:  "no response choices from model",
			ExecutionTime: time.Since(start),
		}, fmt.Errorf("no response choices from model")
	}

	return &ChatResult{
		Content:          resp.Choices[0].Message.Content,
		PromptTokens:     int(resp.Usage.PromptTokens),
		CompletionTokens: int(resp.Usage.CompletionTokens),
		TotalTokens:      int(resp.Usage.TotalTokens),
		Provider:         OpenAIVLMName,
		ModelUsed:        string(resp.Model),
		RequestID:        req.RequestID,
		Attempts:         1,
		Success:          true,
		ExecutionTime:    time.Since(start),
	}, nil
}

// decodeJSONSchemaParam turns the wire json_schema payload ({"name",
// "strict", "schema"}) carried on ChatRequest.ResponseFormat into the
// SDK's strongly-typed param.
func decodeJSONSchemaParam(raw json.RawMessage) (*shared.ResponseFormatJSONSchemaParam, error) {
	var wire struct {
		Name   string         `json:"name"`
		Strict bool           `json:"strict"`
		Schema map[string]any `json:"schema"`
	}
	if err := json.Unmarshal(raw, &wire); err != nil {
		return nil, err
	}
	return &shared.ResponseFormatJSONSchemaParam{
		JSONSchema: shared.ResponseFormatJSONSchemaJSONSchemaParam{
			Name:   wire.Name,
			Schema: wire.Schema,
			Strict: openai.Bool(wire.Strict),
		},
	}, nil
}

func mapOpenAIVLMError(err error) error {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		if apiErr.StatusCode == http.StatusTooManyRequests {
			retryAfter := time.Duration(0)
			if apiErr.Response != nil {
				retryAfter = parseRetryAfter(apiErr.Response.Header.Get("Retry-After"))
			}
			return &RateLimitError{
				Message:    fmt.Sprintf("VLM rate limited: %s", apiErr.Message),
				RetryAfter: retryAfter,
				StatusCode: apiErr.StatusCode,
			}
		}
		if apiErr.Message != "" {
			return fmt.Errorf("VLM error (status %d): %s", apiErr.StatusCode, apiErr.Message)
		}
		return fmt.Errorf("VLM error (status %d)", apiErr.StatusCode)
	}
	return err
}

var _ VLMClient = (*OpenAIVLMClient)(nil)
