// Package fusion assigns each VLM item zero or one OCR line via a
// four-strategy cascade, then produces the fused GradedItem — spec.md
// §4.5.
package fusion

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/adrg/strutil"
	"github.com/adrg/strutil/metrics"

	"github.com/parentgrade/gradecore/internal/config"
	"github.com/parentgrade/gradecore/internal/model"
)

// bboxPadding is added on every side of a chosen bbox before it reaches
// the Annotator, so strokes never crop the handwriting itself.
const bboxPadding = 6.0

var similarityMetric = metrics.NewJaroWinkler()

// Match assigns OCR lines to VLM items, page by page, and returns the
// fused GradedItems. Items are processed in their given order (the
// VLM's own emission order, per spec.md §9: "position is assigned by
// the Fusion Matcher in a single pass over all VLM items"); the caller
// must already have VLM items ordered the way they should be numbered.
//
// pagesByIndex maps OCR page index to that page's lines and extracted
// question positions, and pageDims maps page index to (width, height)
// for denormalizing VLM bboxes.
func Match(items []model.RawVLMItem, sections []model.Section, pagesByIndex map[int]PageOCR, pageDims map[int][2]float64, cfg config.MatchConfig) []model.GradedItem {
	graded := make([]model.GradedItem, 0, len(items))

	var sectionTitle string
	var sectionType model.SectionType

	for i, item := range items {
		if item.Section < len(sections) {
			if isFirstInSection(items, i) {
				sectionTitle = sections[item.Section].Title
			}
			sectionType = sections[item.Section].Type
		}

		page := pagesByIndex[item.PageIndex]
		g := matchOne(item, page, cfg)
		g.Position = i + 1
		g.SectionTitle = sectionTitle
		g.SectionType = sectionType

		if dims, ok := pageDims[item.PageIndex]; ok {
			applyBBox(&g, item, page, dims)
		}

		computeConsistency(&g, cfg.ConsistencyThreshold)
		graded = append(graded, g)
	}

	return graded
}

func isFirstInSection(items []model.RawVLMItem, i int) bool {
	return i == 0 || items[i-1].Section != items[i].Section
}

// PageOCR bundles one page's fusion inputs: its OCR lines (mutated in
// place as lines are consumed) and its extracted printed question
// positions.
type PageOCR struct {
	Lines     []*model.OCRLine
	Positions []model.QuestionPosition
}

func matchOne(item model.RawVLMItem, page PageOCR, cfg config.MatchConfig) model.GradedItem {
	g := model.GradedItem{
		ZhHint:       item.ZhHint,
		LLMText:      item.StudentText,
		IsCorrect:    item.IsCorrect,
		Confidence:   item.Confidence,
		Note:         item.Note,
		PageIndex:    item.PageIndex,
		VLMPageIndex: item.PageIndex,
	}

	// Strategy 1: empty answer.
	if strings.TrimSpace(item.StudentText) == "" {
		g.OCRText = ""
		g.MatchMethod = string(model.MatchEmptyAnswer)
		g.ConsistencyOK = model.ConsistencyUnknown
		return g
	}

	// Strategy 2: text similarity against every unconsumed line on this page.
	if line, ratio, ok := bestTextMatch(item.StudentText, page.Lines, cfg.TextThreshold); ok {
		line.MarkConsumed()
		g.OCRText = line.Text
		g.PageIndex = line.PageIndex
		g.MatchMethod = fmt.Sprintf("%s_%.2f", model.MatchTextSimilarity, ratio)
		g.MatchRatio = ratio
		g.BBox = line.BBox
		return g
	}

	// Strategy 3: positional, anchored on the printed question number
	// within the page (spec.md §9 open question i: within-page
	// convention; "implementers must fix one convention").
	if line, _, ok := bestPositionalMatch(item.Q, page.Lines, page.Positions, cfg.PositionMaxDistance); ok {
		line.MarkConsumed()
		g.OCRText = line.Text
		g.PageIndex = line.PageIndex
		g.MatchMethod = string(model.MatchPosition)
		g.BBox = line.BBox
		return g
	}

	// Strategy 4: sequential fallback — next unconsumed line in reading order.
	if line, ok := nextUnconsumed(page.Lines); ok {
		line.MarkConsumed()
		g.OCRText = line.Text
		g.PageIndex = line.PageIndex
		g.MatchMethod = string(model.MatchSequential)
		g.BBox = line.BBox
		return g
	}

	// Strategy 5: no match.
	g.OCRText = ""
	g.MatchMethod = string(model.MatchNone)
	return g
}

func bestTextMatch(studentText string, lines []*model.OCRLine, threshold float64) (*model.OCRLine, float64, bool) {
	target := alphanumericLower(studentText)
	var best *model.OCRLine
	bestRatio := -1.0
	for _, line := range lines {
		if line.Consumed() {
			continue
		}
		ratio := strutil.Similarity(target, alphanumericLower(line.Text), similarityMetric)
		if ratio > bestRatio {
			bestRatio = ratio
			best = line
		}
	}
	if best != nil && bestRatio >= threshold {
		return best, bestRatio, true
	}
	return nil, 0, false
}

func bestPositionalMatch(qNum int, lines []*model.OCRLine, positions []model.QuestionPosition, maxDistance float64) (*model.OCRLine, *model.QuestionPosition, bool) {
	var anchor *model.QuestionPosition
	for i := range positions {
		if positions[i].QNum == qNum {
			anchor = &positions[i]
			break
		}
	}
	if anchor == nil {
		return nil, nil, false
	}

	var best *model.OCRLine
	bestDist := math.MaxFloat64
	for _, line := range lines {
		if line.Consumed() {
			continue
		}
		dist := math.Abs(line.Top() - anchor.Top)
		if dist < bestDist {
			bestDist = dist
			best = line
		}
	}
	if best != nil && bestDist <= maxDistance {
		return best, anchor, true
	}
	return nil, nil, false
}

func nextUnconsumed(lines []*model.OCRLine) (*model.OCRLine, bool) {
	sorted := make([]*model.OCRLine, len(lines))
	copy(sorted, lines)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Top() < sorted[j].Top() })
	for _, line := range sorted {
		if !line.Consumed() {
			return line, true
		}
	}
	return nil, false
}

// applyBBox implements spec.md §4.5's bbox selection precedence: VLM
// normalized bbox scaled to page dimensions, else the OCR line's bbox
// (already set by matchOne), else a degenerate box at the printed
// question position. The result is padded by bboxPadding on every side.
func applyBBox(g *model.GradedItem, item model.RawVLMItem, page PageOCR, dims [2]float64) {
	switch {
	case item.HasBBox:
		g.BBox = item.HandwritingBBox.Scale(dims[0], dims[1])
	case g.BBox != (model.Box{}):
		// already set from the matched OCR line
	default:
		for _, pos := range page.Positions {
			if pos.QNum == item.Q {
				g.BBox = model.Box{X1: 0, Y1: pos.Top, X2: 1, Y2: pos.Top + 1}
				break
			}
		}
	}
	g.BBox = g.BBox.Pad(bboxPadding)
}

// computeConsistency sets GradedItem.ConsistencyOK once both texts are
// known: true iff the normalized forms match at or above threshold,
// false otherwise, unchanged (ConsistencyUnknown) when either side is
// empty — spec.md §4.5.
func computeConsistency(g *model.GradedItem, threshold float64) {
	if g.MatchMethod == string(model.MatchEmptyAnswer) {
		return
	}
	llm := normalizeForConsistency(g.LLMText)
	ocr := normalizeForConsistency(g.OCRText)
	if llm == "" || ocr == "" {
		g.ConsistencyOK = model.ConsistencyUnknown
		return
	}
	ratio := strutil.Similarity(llm, ocr, similarityMetric)
	if ratio >= threshold {
		g.ConsistencyOK = model.ConsistencyOK
	} else {
		g.ConsistencyOK = model.ConsistencyMismatch
	}
}
