// Package llmrecord records every VLM and OCR call's cost, latency, and
// outcome for traceability, adapted from the teacher's internal/llmcall
// to the grading core's VLM/OCR call shapes instead of general-purpose
// tool-calling LLM calls.
package llmrecord

import (
	"encoding/json"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/parentgrade/gradecore/internal/providers"
)

// Kind distinguishes a VLM call from an OCR call in the recorded log.
type Kind string

const (
	KindVLM Kind = "vlm"
	KindOCR Kind = "ocr"
)

// Call is one recorded external call.
type Call struct {
	ID        string    `json:"id"`
	Kind      Kind      `json:"kind"`
	Timestamp time.Time `json:"timestamp"`
	LatencyMs int       `json:"latency_ms"`

	RequestID string `json:"request_id,omitempty"`
	PageIndex int     `json:"page_index"`

	Provider string `json:"provider"`
	Model    string `json:"model,omitempty"`

	InputTokens  int     `json:"input_tokens,omitempty"`
	OutputTokens int     `json:"output_tokens,omitempty"`
	CostUSD      float64 `json:"cost_usd,omitempty"`
	RetryCount   int     `json:"retry_count,omitempty"`

	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

// FromVLMResult builds a Call from a VLM ChatResult. Returns nil if
// result is nil, mirroring the teacher's FromChatResult guard.
func FromVLMResult(result *providers.ChatResult, pageIndex int) *Call {
	if result == nil {
		return nil
	}
	c := &Call{
		ID:           uuid.New().String(),
		Kind:         KindVLM,
		Timestamp:    time.Now(),
		LatencyMs:    int(result.ExecutionTime.Milliseconds()),
		RequestID:    result.RequestID,
		PageIndex:    pageIndex,
		Provider:     result.Provider,
		Model:        result.ModelUsed,
		InputTokens:  result.PromptTokens,
		OutputTokens: result.CompletionTokens,
		CostUSD:      result.CostUSD,
		Success:      result.Success,
	}
	if !result.Success {
		c.Error = result.ErrorMessage
	}
	return c
}

// FromOCRResult builds a Call from an OCR result.
func FromOCRResult(result *providers.OCRResult, provider string, pageIndex int) *Call {
	if result == nil {
		return nil
	}
	c := &Call{
		ID:         uuid.New().String(),
		Kind:       KindOCR,
		Timestamp:  time.Now(),
		LatencyMs:  int(result.ExecutionTime.Milliseconds()),
		PageIndex:  pageIndex,
		Provider:   provider,
		CostUSD:    result.CostUSD,
		RetryCount: result.RetryCount,
		Success:    result.Success,
	}
	if !result.Success {
		c.Error = result.ErrorMessage
	}
	return c
}

// ToJSON serializes the call for artifact persistence, logging a warning
// (rather than failing the request) if marshaling somehow fails — the
// same non-fatal posture the teacher's FromChatResult takes for its
// ToolCalls serialization step.
func (c *Call) ToJSON(logger *slog.Logger) string {
	data, err := json.Marshal(c)
	if err != nil {
		if logger == nil {
			logger = slog.Default()
		}
		logger.Warn("failed to serialize call record", "error", err, "call_id", c.ID)
		return ""
	}
	return string(data)
}
