// Package providers defines the external capability interfaces the
// grading core consumes (VLM and OCR), plus shared plumbing (structured
// output parsing/validation). The concrete VLM transport,
// OpenAIVLMClient, lives in this package; internal/vlmclient builds on it,
// and the concrete OCR provider lives in internal/ocrclient.
package providers

import (
	"context"
	"encoding/json"
	"time"
)

// VLMClient issues a single multi-image prompt to an external
// vision-language model and returns its raw text reply. Schema
// enforcement and the retry-with-larger-budget pass live in
// internal/vlmclient; this interface stays at the transport level so it
// can be faked in tests.
type VLMClient interface {
	// Chat sends one chat completion request, optionally carrying inline
	// images for vision.
	Chat(ctx context.Context, req *ChatRequest) (*ChatResult, error)

	// Name returns the client identifier (e.g. "openai-vlm").
	Name() string
}

// OCRProvider handles word-level image-to-text extraction, tagged
// printed vs handwritten with absolute pixel bounding boxes.
type OCRProvider interface {
	// Name returns the provider identifier.
	Name() string

	// ProcessImage extracts word-level records from one page image.
	ProcessImage(ctx context.Context, image []byte, pageIndex int) (*OCRResult, error)

	// Rate limiting/retry properties the provider reports; the grading
	// pipeline does not read them.
	RequestsPerSecond() float64
	MaxRetries() int
	RetryDelayBase() time.Duration
}

// Message represents a chat message.
type Message struct {
	Role    string   `json:"role"` // "system", "user", "assistant"
	Content string   `json:"content"`
	Images  [][]byte `json:"-"` // For vision models (base64 encoded in request)
}

// ResponseFormat specifies structured output format.
type ResponseFormat struct {
	Type       string          `json:"type"` // "json_schema"
	JSONSchema json.RawMessage `json:"json_schema,omitempty"`
}

// ChatRequest is a request to an LLM.
type ChatRequest struct {
	// Required
	Messages []Message `json:"messages"`

	// Model selection (uses client default if empty)
	Model string `json:"model,omitempty"`

	// Generation parameters
	Temperature float64 `json:"temperature,omitempty"`
	MaxTokens   int     `json:"max_tokens,omitempty"`
	Timeout     time.Duration

	// Structured output
	ResponseFormat *ResponseFormat `json:"response_format,omitempty"`

	// Request tracking
	RequestID string `json:"-"`
}

// ChatResult is the complete response from a VLM call.
type ChatResult struct {
	Content    string          `json:"content"`
	ParsedJSON json.RawMessage `json:"parsed_json,omitempty"` // set if ResponseFormat was requested and parsing succeeded

	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`

	CostUSD       float64       `json:"cost_usd"`
	ExecutionTime time.Duration `json:"execution_time"`

	Provider  string `json:"provider"`
	ModelUsed string `json:"model_used"`

	RequestID string `json:"request_id"`
	Attempts  int    `json:"attempts"`

	Success      bool   `json:"success"`
	ErrorType    string `json:"error_type,omitempty"`
	ErrorMessage string `json:"error_message,omitempty"`
	RetryAfter   time.Duration
}

// OCRWireWord is one word-level record in an OCRResult, the novel
// document-analysis OCR wire contract defined by spec.md §4.3.
type OCRWireWord struct {
	Text       string  `json:"text"`
	X1         float64 `json:"x1"`
	Y1         float64 `json:"y1"`
	X2         float64 `json:"x2"`
	Y2         float64 `json:"y2"`
	Type       string  `json:"type"` // "printed" or "handwritten"
	Confidence float64 `json:"confidence"`
}

// OCRResult is the response from an OCR provider for one page.
type OCRResult struct {
	Success bool          `json:"success"`
	Words   []OCRWireWord `json:"words"`

	CostUSD       float64       `json:"cost_usd"`
	ExecutionTime time.Duration `json:"execution_time"`

	ErrorMessage string `json:"error_message,omitempty"`
	RetryCount   int    `json:"retry_count"`
}
