// Package grading implements the orchestrator tying every grading
// component together: preprocess -> concurrent VLM+OCR fan-out -> line
// building, identifier extraction, fusion -> annotation -> persistence,
// spec.md §5.
package grading

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/parentgrade/gradecore/internal/annotate"
	"github.com/parentgrade/gradecore/internal/config"
	"github.com/parentgrade/gradecore/internal/fusion"
	"github.com/parentgrade/gradecore/internal/graderr"
	"github.com/parentgrade/gradecore/internal/identifier"
	"github.com/parentgrade/gradecore/internal/lines"
	"github.com/parentgrade/gradecore/internal/llmrecord"
	"github.com/parentgrade/gradecore/internal/model"
	"github.com/parentgrade/gradecore/internal/preprocess"
	"github.com/parentgrade/gradecore/internal/providers"
	"github.com/parentgrade/gradecore/internal/store"
	"github.com/parentgrade/gradecore/internal/vlmclient"
)

// Providers bundles the two external capabilities a Grader needs. Both
// are interfaces so tests can substitute providers.MockVLMClient and
// providers.MockOCRProvider (spec.md §8's integration-test fakes).
type Providers struct {
	VLM providers.VLMClient
	OCR providers.OCRProvider
}

// Grader runs grading requests against one fixed set of collaborators.
// Constructed once and reused across requests, mirroring the teacher's
// long-lived ProviderWorker/Scheduler lifecycle rather than one-shot
// per-call wiring.
type Grader struct {
	cfg       config.Config
	providers Providers
	store     store.Delegate
	logger    *slog.Logger
}

// NewGrader builds a Grader from its explicit collaborators. cfg is a
// value, not a pointer, and is never read from a package-level global
// (Design Notes: "restate global config read at import time").
func NewGrader(cfg config.Config, prov Providers, delegate store.Delegate, logger *slog.Logger) *Grader {
	if logger == nil {
		logger = slog.Default()
	}
	return &Grader{cfg: cfg, providers: prov, store: delegate, logger: logger}
}

// maxOCRConcurrency bounds parallel per-page OCR calls, the same bounded
// goroutine-pool shape as the teacher's process_book/job/structure.go
// concurrent upserts (a semaphore-gated sync.WaitGroup).
const maxOCRConcurrency = 4

// Grade runs one grading request over blobs (one per uploaded page) and
// returns the fused GradingResult. A fatal classification of any
// component error (graderr.Fatal) aborts the request; a recoverable one
// (graderr.Recoverable) degrades the result and is recorded in Warnings.
func (g *Grader) Grade(ctx context.Context, blobs []preprocess.Blob) (*model.GradingResult, error) {
	requestID := uuid.NewString()
	logger := g.logger.With("request_id", requestID)

	pages, err := preprocess.ProcessAll(blobs, g.cfg.Image)
	if err != nil {
		return nil, err
	}

	recorder := llmrecord.NewRecorder(g.store, logger)

	var vlmResult *vlmclient.Result
	var vlmErr error
	ocrWords := make([][]model.OCRWord, len(pages))
	ocrErrs := make([]error, len(pages))

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		prompt := vlmclient.BuildPrompt(g.cfg.LLM.FreeformPrompt)
		vlmResult, vlmErr = vlmclient.Recognize(ctx, g.providers.VLM, pages, g.cfg.VLM, prompt)
		if vlmResult != nil {
			recorder.Record(ctx, llmrecord.FromVLMResult(vlmResult.ChatResult, -1))
		}
	}()

	sem := make(chan struct{}, maxOCRConcurrency)
	for i := range pages {
		wg.Add(1)
		go func(pageIndex int) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			result, err := g.providers.OCR.ProcessImage(ctx, pages[pageIndex].Preprocessed, pageIndex)
			recorder.Record(ctx, llmrecord.FromOCRResult(result, g.providers.OCR.Name(), pageIndex))
			if err != nil {
				ocrErrs[pageIndex] = err
				return
			}
			ocrWords[pageIndex] = toOCRWords(result.Words, pageIndex)
		}(i)
	}

	wg.Wait()

	if vlmErr != nil {
		return nil, vlmErr
	}

	var warnings []string
	for i, err := range ocrErrs {
		if err != nil {
			warnings = append(warnings, fmt.Sprintf("page %d: %v", i, err))
			logger.Warn("OCR call failed, degrading to VLM-only for this page", "page", i, "error", err)
		}
	}

	pagesByIndex, pageDims, uuidCandidates := buildPageOCR(vlmResult.Sections, vlmResult.Items, ocrWords, pages, g.cfg.Merge)

	graded := fusion.Match(vlmResult.Items, vlmResult.Sections, pagesByIndex, pageDims, g.cfg.Match)

	worksheetUUID, uuidWarnings := identifier.Consensus(uuidCandidates)
	warnings = append(warnings, uuidWarnings...)

	originalURLs, annotatedURLs, persistWarnings := g.persistPages(ctx, pages, graded)
	warnings = append(warnings, persistWarnings...)

	return &model.GradingResult{
		RequestID:          requestID,
		Items:              graded,
		OriginalImageURLs:  originalURLs,
		GradedImageURLs:    annotatedURLs,
		ImageCount:         len(pages),
		ExtractedDate:      vlmResult.ExtractedDate,
		WorksheetUUID:      worksheetUUID,
		PageUUIDDiagnostic: uuidCandidates,
		Warnings:           warnings,
	}, nil
}

// buildPageOCR groups per-page handwritten OCR words into lines (using
// the merge threshold of the section type most items on that page
// belong to, falling back to MergeConfig.WordThreshold when no VLM item
// maps to the page — an Open Question resolution recorded in
// DESIGN.md), extracts printed question positions and UUID candidates,
// and records each page's (width, height) for bbox denormalization.
func buildPageOCR(sections []model.Section, items []model.RawVLMItem, ocrWords [][]model.OCRWord, pages []model.Page, cfg config.MergeConfig) (map[int]fusion.PageOCR, map[int][2]float64, []model.UUIDCandidate) {
	pagesByIndex := make(map[int]fusion.PageOCR, len(pages))
	pageDims := make(map[int][2]float64, len(pages))
	var uuidCandidates []model.UUIDCandidate

	for i, page := range pages {
		words := ocrWords[i]
		pageDims[i] = [2]float64{float64(page.Width), float64(page.Height)}

		threshold := lines.Threshold(dominantSectionType(items, sections, i), cfg)
		built := lines.BuildLines(words, threshold)
		linePtrs := make([]*model.OCRLine, len(built))
		for j := range built {
			linePtrs[j] = &built[j]
		}

		positions := lines.ExtractQuestionPositions(words, i)
		pagesByIndex[i] = fusion.PageOCR{Lines: linePtrs, Positions: positions}

		if cand, ok := identifier.ExtractPage(words, i); ok {
			uuidCandidates = append(uuidCandidates, cand)
		}
	}

	return pagesByIndex, pageDims, uuidCandidates
}

// dominantSectionType returns the SectionType of the majority of VLM
// items reporting PageIndex == pageIndex, or model.SectionUnknown (which
// lines.Threshold maps to the word threshold) if none do.
func dominantSectionType(items []model.RawVLMItem, sections []model.Section, pageIndex int) model.SectionType {
	counts := make(map[model.SectionType]int)
	for _, item := range items {
		if item.PageIndex != pageIndex || item.Section >= len(sections) {
			continue
		}
		counts[sections[item.Section].Type]++
	}
	var best model.SectionType
	bestCount := -1
	for t, n := range counts {
		if n > bestCount {
			best, bestCount = t, n
		}
	}
	return best
}

func toOCRWords(words []providers.OCRWireWord, pageIndex int) []model.OCRWord {
	out := make([]model.OCRWord, len(words))
	for i, w := range words {
		wordType := model.WordPrinted
		if w.Type == string(model.WordHandwritten) {
			wordType = model.WordHandwritten
		}
		out[i] = model.OCRWord{
			Text:       w.Text,
			BBox:       model.Box{X1: w.X1, Y1: w.Y1, X2: w.X2, Y2: w.Y2},
			Type:       wordType,
			Confidence: w.Confidence,
			PageIndex:  pageIndex,
		}
	}
	return out
}

// persistPages re-encodes each page with its grading marks and writes
// both the original and annotated bytes through the store delegate. A
// persistence failure is recoverable (graderr.ErrDelegatePersistFailure):
// the corresponding GradedImageURLs entry is left nil and a warning is
// recorded, but the request still succeeds.
func (g *Grader) persistPages(ctx context.Context, pages []model.Page, graded []model.GradedItem) ([]string, []*string, []string) {
	originalURLs := make([]string, len(pages))
	annotatedURLs := make([]*string, len(pages))
	var warnings []string

	for i, page := range pages {
		if url, err := g.store.Put(ctx, store.KindOriginalImage, page.Original); err != nil {
			warnings = append(warnings, fmt.Sprintf("%v: page %d original", graderr.ErrDelegatePersistFailure, i))
			g.logger.Warn("failed to persist original page", "page", i, "error", err)
		} else {
			originalURLs[i] = url
		}

		annotated, err := annotate.Page(page.Decoded, graded, i, g.cfg.Image.JPEGQuality)
		if err != nil {
			warnings = append(warnings, fmt.Sprintf("%v: page %d annotation render: %v", graderr.ErrDelegatePersistFailure, i, err))
			g.logger.Warn("failed to render annotated page", "page", i, "error", err)
			continue
		}

		url, err := g.store.Put(ctx, store.KindAnnotatedImage, annotated)
		if err != nil {
			warnings = append(warnings, fmt.Sprintf("%v: page %d annotated", graderr.ErrDelegatePersistFailure, i))
			g.logger.Warn("failed to persist annotated page", "page", i, "error", err)
			continue
		}
		annotatedURLs[i] = &url
	}

	return originalURLs, annotatedURLs, warnings
}
