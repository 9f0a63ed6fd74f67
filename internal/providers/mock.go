package providers

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"
)

// MockVLMClientName identifies MockVLMClient in ChatResult.Provider.
const MockVLMClientName = "mock-vlm"

// MockVLMClient is a VLMClient for tests: it returns a canned reply (or
// a queue of replies, one per call) without making any network call.
type MockVLMClient struct {
	Replies      []string // consumed in order, last one repeats once exhausted
	ShouldFail   bool
	FailureError string

	requestCount atomic.Int64
}

// NewMockVLMClient returns a MockVLMClient that always replies with text.
func NewMockVLMClient(text string) *MockVLMClient {
	return &MockVLMClient{Replies: []string{text}}
}

func (c *MockVLMClient) Name() string { return MockVLMClientName }

func (c *MockVLMClient) Chat(ctx context.Context, req *ChatRequest) (*ChatResult, error) {
	n := c.requestCount.Add(1)

	if c.ShouldFail {
		msg := c.FailureError
		if msg == "" {
			msg = "mock VLM failure"
		}
		return &ChatResult{
			Provider:     MockVLMClientName,
			RequestID:    fmt.Sprintf("mock-vlm-%d", n),
			Success:      false,
			ErrorMessage: msg,
		}, fmt.Errorf("%s", msg)
	}

	idx := int(n) - 1
	if idx >= len(c.Replies) {
		idx = len(c.Replies) - 1
	}
	content := ""
	if idx >= 0 {
		content = c.Replies[idx]
	}

	return &ChatResult{
		Content:       content,
		Provider:      MockVLMClientName,
		ModelUsed:     req.Model,
		RequestID:     fmt.Sprintf("mock-vlm-%d", n),
		Attempts:      1,
		Success:       true,
		ExecutionTime: time.Millisecond,
	}, nil
}

// MockOCRProviderName identifies MockOCRProvider in results.
const MockOCRProviderName = "mock-ocr"

// MockOCRProvider is an OCRProvider for tests. Words are keyed by
// page index; pages with no entry return a successful, empty result.
type MockOCRProvider struct {
	WordsByPage map[int][]OCRWireWord
	ShouldFail  bool
	FailureError string
}

func (c *MockOCRProvider) Name() string { return MockOCRProviderName }

func (c *MockOCRProvider) RequestsPerSecond() float64    { return 100 }
func (c *MockOCRProvider) MaxRetries() int               { return 1 }
func (c *MockOCRProvider) RetryDelayBase() time.Duration { return time.Millisecond }

func (c *MockOCRProvider) ProcessImage(ctx context.Context, image []byte, pageIndex int) (*OCRResult, error) {
	if c.ShouldFail {
		msg := c.FailureError
		if msg == "" {
			msg = "mock OCR failure"
		}
		return &OCRResult{Success: false, ErrorMessage: msg}, fmt.Errorf("%s", msg)
	}
	return &OCRResult{Success: true, Words: c.WordsByPage[pageIndex]}, nil
}
