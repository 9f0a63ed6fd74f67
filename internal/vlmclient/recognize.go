package vlmclient

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/parentgrade/gradecore/internal/config"
	"github.com/parentgrade/gradecore/internal/graderr"
	"github.com/parentgrade/gradecore/internal/model"
	"github.com/parentgrade/gradecore/internal/providers"
)

// schemaName and schema describe the nested reply shape requested via
// the chat completion's response_format — spec.md §4.2.
const schemaName = "worksheet_grading"

var jsonSchema = json.RawMessage(`{
	"type": "object",
	"properties": {
		"sections": {
			"type": "array",
			"items": {
				"type": "object",
				"properties": {
					"title": {"type": "string"},
					"type": {"type": "string", "enum": ["WORD", "PHRASE", "SENTENCE", ""]},
					"items": {
						"type": "array",
						"items": {
							"type": "object",
							"properties": {
								"q": {"type": "integer"},
								"hint": {"type": "string"},
								"ans": {"type": "string"},
								"ok": {"type": "boolean"},
								"conf": {"type": "number", "minimum": 0, "maximum": 1},
								"pg": {"type": "integer"},
								"note": {"type": "string"},
								"bbox": {"type": "array", "items": {"type": "number"}, "minItems": 4, "maxItems": 4}
							},
							"required": ["hint", "ans", "ok"]
						}
					}
				},
				"required": ["items"]
			}
		}
	},
	"required": ["sections"]
}`)

// BuildPrompt joins the configured prompt lines with newlines — spec.md
// §6: "llm.freeform_prompt: sequence of strings, joined by newlines."
func BuildPrompt(lines []string) string {
	return strings.Join(lines, "\n")
}

// Result is the VLM Client's public output: the flattened item tree
// plus the raw reply text (useful for debug.save_raw persistence).
type Result struct {
	Items         []model.RawVLMItem
	Sections      []model.Section
	RawText       string
	ExtractedDate string // spec.md §6, passed through verbatim, never validated

	// ChatResult is the final successful call's raw result, kept for
	// cost/latency recording by internal/llmrecord.
	ChatResult *providers.ChatResult
}

// Recognize issues one multi-image chat completion carrying every page,
// parses the constrained JSON reply, and flattens it. On a truncated or
// unparsable reply it retries once with a doubled max-output-tokens
// budget (spec.md §4.2); a second failure returns ErrVLMParseFailure.
func Recognize(ctx context.Context, client providers.VLMClient, pages []model.Page, cfg config.VLMConfig, prompt string) (*Result, error) {
	images := make([][]byte, len(pages))
	for i, p := range pages {
		images[i] = p.Preprocessed
	}

	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 4096
	}
	retryTokens := cfg.MaxTokensRetry
	if retryTokens <= 0 {
		retryTokens = maxTokens * 2
	}

	schemaPayload, err := json.Marshal(struct {
		Name   string          `json:"name"`
		Strict bool            `json:"strict"`
		Schema json.RawMessage `json:"schema"`
	}{Name: schemaName, Strict: true, Schema: jsonSchema})
	if err != nil {
		return nil, fmt.Errorf("failed to build response schema: %w", err)
	}

	var lastErr error
	var rawText string
	for attempt, budget := range []int{maxTokens, retryTokens} {
		req := &providers.ChatRequest{
			Messages: []providers.Message{
				{Role: "system", Content: prompt},
				{Role: "user", Content: "Grade this worksheet.", Images: images},
			},
			MaxTokens: budget,
			ResponseFormat: &providers.ResponseFormat{
				Type:       "json_schema",
				JSONSchema: schemaPayload,
			},
		}

		resp, callErr := client.Chat(ctx, req)
		if callErr != nil {
			return nil, classifyTransportError(callErr)
		}
		if !resp.Success {
			return nil, fmt.Errorf("%w: %s", graderr.ErrVLMFailure, resp.ErrorMessage)
		}

		rawText = resp.Content
		parsed, parseErr := providers.ParseStructuredJSON(resp.Content)
		if parseErr != nil {
			lastErr = parseErr
			if attempt == 0 {
				continue
			}
			return nil, fmt.Errorf("%w: %v", graderr.ErrVLMParseFailure, parseErr)
		}

		if valErr := providers.ValidateStructuredJSON(schemaPayload, parsed); valErr != nil {
			lastErr = valErr
			if attempt == 0 {
				continue
			}
			return nil, fmt.Errorf("%w: %v", graderr.ErrVLMParseFailure, valErr)
		}

		var reply wireReply
		if err := json.Unmarshal(parsed, &reply); err != nil {
			lastErr = err
			if attempt == 0 {
				continue
			}
			return nil, fmt.Errorf("%w: %v", graderr.ErrVLMParseFailure, err)
		}

		items, sections := flatten(reply)
		return &Result{Items: items, Sections: sections, RawText: rawText, ExtractedDate: reply.Date, ChatResult: resp}, nil
	}

	return nil, fmt.Errorf("%w: %v", graderr.ErrVLMParseFailure, lastErr)
}

func classifyTransportError(err error) error {
	if rle, ok := providers.IsRateLimitError(err); ok {
		return fmt.Errorf("%w: %v", graderr.ErrVLMFailure, rle)
	}
	msg := strings.ToLower(err.Error())
	if strings.Contains(msg, "deadline exceeded") || strings.Contains(msg, "context canceled") || strings.Contains(msg, "timeout") {
		return fmt.Errorf("%w: %v", graderr.ErrVLMTimeout, err)
	}
	return fmt.Errorf("%w: %v", graderr.ErrVLMFailure, err)
}
