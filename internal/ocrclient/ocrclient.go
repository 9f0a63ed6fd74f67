// Package ocrclient issues per-page word-level recognition requests
// against a document-analysis OCR endpoint and tags each word printed
// or handwritten — spec.md §4.3.
package ocrclient

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/avast/retry-go/v4"

	"github.com/parentgrade/gradecore/internal/providers"
)

// HTTPOCRName identifies HTTPOCRClient in results.
const HTTPOCRName = "document-ocr"

// HTTPOCRConfig holds configuration for the hand-rolled document-analysis
// OCR transport (spec.md §6: ocr.endpoint, ocr.api_key, ocr.secret_key,
// ocr.params).
type HTTPOCRConfig struct {
	Endpoint   string
	APIKey     string
	SecretKey  string
	Params     map[string]any
	Timeout    time.Duration // per-page timeout
	RateLimit  float64
	MaxRetries int
	RetryDelay time.Duration
	HTTPClient *http.Client // optional (tests)
}

// HTTPOCRClient implements providers.OCRProvider over a JSON-over-HTTP
// document-analysis endpoint returning printed/handwritten word records.
type HTTPOCRClient struct {
	cfg    HTTPOCRConfig
	client *http.Client
}

// NewHTTPOCRClient creates a new document-analysis OCR client.
func NewHTTPOCRClient(cfg HTTPOCRConfig) *HTTPOCRClient {
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.RateLimit <= 0 {
		cfg.RateLimit = 10.0
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 1 // spec.md §5: "one jittered backoff and then surface the failure"
	}
	if cfg.RetryDelay == 0 {
		cfg.RetryDelay = 2 * time.Second
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}
	return &HTTPOCRClient{cfg: cfg, client: httpClient}
}

// Name returns the provider identifier.
func (c *HTTPOCRClient) Name() string { return HTTPOCRName }

// RequestsPerSecond returns the configured rate limit.
func (c *HTTPOCRClient) RequestsPerSecond() float64 { return c.cfg.RateLimit }

// MaxRetries returns the maximum retry attempts.
func (c *HTTPOCRClient) MaxRetries() int { return c.cfg.MaxRetries }

// RetryDelayBase returns the base delay for jittered backoff.
func (c *HTTPOCRClient) RetryDelayBase() time.Duration { return c.cfg.RetryDelay }

// ProcessImage extracts word-level records from one page image, tagged
// printed vs handwritten with absolute pixel bounding boxes.
func (c *HTTPOCRClient) ProcessImage(ctx context.Context, image []byte, pageIndex int) (*providers.OCRResult, error) {
	start := time.Now()

	reqBody := ocrWireRequest{
		Image:  base64.StdEncoding.EncodeToString(image),
		Params: c.cfg.Params,
	}

	var resp *ocrWireResponse
	retries := 0
	err := retry.Do(
		func() error {
			r, doErr := c.doRequest(ctx, reqBody)
			if doErr != nil {
				return doErr
			}
			resp = r
			return nil
		},
		retry.OnRetry(func(n uint, err error) { retries = int(n) + 1 }),
		retry.Context(ctx),
		retry.Attempts(uint(c.cfg.MaxRetries+1)),
		retry.Delay(c.cfg.RetryDelay),
		retry.DelayType(retry.BackOffDelay),
		retry.MaxJitter(500*time.Millisecond),
		retry.RetryIf(isRetryable),
		retry.LastErrorOnly(true),
	)
	if err != nil {
		return &providers.OCRResult{
			Success:       false,
			ErrorMessage:  err.Error(),
			ExecutionTime: time.Since(start),
			RetryCount:    retries,
		}, err
	}

	words := make([]providers.OCRWireWord, 0, len(resp.Words))
	for _, w := range resp.Words {
		words = append(words, providers.OCRWireWord{
			Text:       w.Text,
			X1:         w.Box[0],
			Y1:         w.Box[1],
			X2:         w.Box[2],
			Y2:         w.Box[3],
			Type:       w.Type,
			Confidence: w.Confidence,
		})
	}

	return &providers.OCRResult{
		Success:       true,
		Words:         words,
		ExecutionTime: time.Since(start),
		RetryCount:    retries,
	}, nil
}

func (c *HTTPOCRClient) doRequest(ctx context.Context, body ocrWireRequest) (*ocrWireResponse, error) {
	bodyBytes, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal OCR request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.Endpoint, bytes.NewReader(bodyBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to create OCR request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	if c.cfg.SecretKey != "" {
		req.Header.Set("X-Secret-Key", c.cfg.SecretKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("OCR request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read OCR response: %w", err)
	}

	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, &providers.RateLimitError{
			Message:    string(respBody),
			StatusCode: resp.StatusCode,
		}
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("OCR error (status %d): %s", resp.StatusCode, string(respBody))
	}

	var wireResp ocrWireResponse
	if err := json.Unmarshal(respBody, &wireResp); err != nil {
		return nil, fmt.Errorf("failed to unmarshal OCR response: %w", err)
	}
	return &wireResp, nil
}

// isRetryable treats only rate limiting (HTTP 429) as retryable; transport
// errors, malformed requests and decode failures are not.
func isRetryable(err error) bool {
	if _, ok := providers.IsRateLimitError(err); ok {
		return true
	}
	return false
}

type ocrWireRequest struct {
	Image  string         `json:"image"`
	Params map[string]any `json:"params,omitempty"`
}

type ocrWireWord struct {
	Text       string    `json:"text"`
	Box        []float64 `json:"box"` // [x1,y1,x2,y2] absolute pixels
	Type       string    `json:"type"`
	Confidence float64   `json:"confidence"`
}

type ocrWireResponse struct {
	Words []ocrWireWord `json:"words"`
}

var _ providers.OCRProvider = (*HTTPOCRClient)(nil)
