// Package identifier recovers the worksheet's printed business
// identifier (ES-NNNN-XXXXXX) from OCR text and reconciles candidates
// across pages — spec.md §4.6.
package identifier

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/parentgrade/gradecore/internal/model"
)

var (
	fullPattern    = regexp.MustCompile(`ES-(\d{4})-([A-Z0-9]{6})`)
	numericPattern = regexp.MustCompile(`ES-(\d{4})`)
	alphaPattern   = regexp.MustCompile(`\b([A-Z0-9]{6})\b`)
)

// maxPartDistance bounds how many reading-order words may separate the
// numeric and alphanumeric segments for the two-part fallback to
// consider them "near each other" (spec.md §4.6).
const maxPartDistance = 3

// printedWord is one reading-order-sorted printed OCR word.
type printedWord struct {
	Text       string
	Confidence float64
}

// ExtractPage runs the per-page, first-to-succeed extraction: a full
// ES-NNNN-XXXXXX match, else a two-part numeric+alphanumeric composite,
// else no candidate.
func ExtractPage(words []model.OCRWord, pageIndex int) (model.UUIDCandidate, bool) {
	printed := readingOrderPrinted(words)
	if len(printed) == 0 {
		return model.UUIDCandidate{}, false
	}

	stream, offsets := concatenate(printed)

	if loc := fullPattern.FindStringIndex(stream); loc != nil {
		conf := averageConfidence(printed, offsets, loc[0], loc[1])
		return model.UUIDCandidate{
			PageIndex:  pageIndex,
			Value:      stream[loc[0]:loc[1]],
			Confidence: conf,
		}, true
	}

	numLoc, numIdx := findWithWordIndex(numericPattern, printed, offsets, stream)
	alphaLoc, alphaIdx := findWithWordIndex(alphaPattern, printed, offsets, stream)
	if numLoc != nil && alphaLoc != nil && abs(numIdx-alphaIdx) <= maxPartDistance {
		numConf := averageConfidence(printed, offsets, numLoc[0], numLoc[1])
		alphaConf := averageConfidence(printed, offsets, alphaLoc[0], alphaLoc[1])
		value := fmt.Sprintf("%s-%s", stream[numLoc[0]:numLoc[1]], stream[alphaLoc[0]:alphaLoc[1]])
		return model.UUIDCandidate{
			PageIndex:  pageIndex,
			Value:      value,
			Confidence: 0.8*numConf + 0.2*alphaConf,
		}, true
	}

	return model.UUIDCandidate{}, false
}

// Consensus reconciles per-page candidates into the final WorksheetUUID:
// if every candidate agrees, it is consistent; otherwise the
// highest-confidence candidate wins and a warning enumerates the
// divergence (spec.md §4.6).
func Consensus(candidates []model.UUIDCandidate) (*model.WorksheetUUID, []string) {
	if len(candidates) == 0 {
		return nil, nil
	}

	allEqual := true
	for _, c := range candidates[1:] {
		if c.Value != candidates[0].Value {
			allEqual = false
			break
		}
	}

	if allEqual {
		best := candidates[0]
		for _, c := range candidates[1:] {
			if c.Confidence > best.Confidence {
				best = c
			}
		}
		return &model.WorksheetUUID{
			Value:      best.Value,
			Confidence: best.Confidence,
			Candidates: candidates,
			Consistent: true,
		}, nil
	}

	best := candidates[0]
	for _, c := range candidates[1:] {
		if c.Confidence > best.Confidence {
			best = c
		}
	}

	values := make([]string, len(candidates))
	for i, c := range candidates {
		values[i] = fmt.Sprintf("page %d: %s (%.2f)", c.PageIndex, c.Value, c.Confidence)
	}
	warning := "worksheet identifier candidates disagree across pages: " + strings.Join(values, "; ")

	return &model.WorksheetUUID{
		Value:      best.Value,
		Confidence: best.Confidence,
		Candidates: candidates,
		Consistent: false,
	}, []string{warning}
}

func readingOrderPrinted(words []model.OCRWord) []printedWord {
	filtered := make([]model.OCRWord, 0, len(words))
	for _, w := range words {
		if w.Type == model.WordPrinted {
			filtered = append(filtered, w)
		}
	}
	sort.SliceStable(filtered, func(i, j int) bool {
		a, b := filtered[i], filtered[j]
		if a.BBox.Y1 != b.BBox.Y1 {
			return a.BBox.Y1 < b.BBox.Y1
		}
		return a.BBox.X1 < b.BBox.X1
	})

	out := make([]printedWord, len(filtered))
	for i, w := range filtered {
		out[i] = printedWord{Text: w.Text, Confidence: w.Confidence}
	}
	return out
}

// concatenate joins printed words with a single space, preserving the
// page's reading order, and records each word's byte-offset span in the
// joined stream. A single-token identifier (the common case) survives
// intact inside one word's span; the two-part fallback instead expects
// its numeric and alphanumeric segments to land in distinct,
// space-separated tokens.
func concatenate(words []printedWord) (string, []int) {
	var b strings.Builder
	offsets := make([]int, len(words)+1)
	for i, w := range words {
		if i > 0 {
			b.WriteByte(' ')
		}
		offsets[i] = b.Len()
		b.WriteString(w.Text)
	}
	offsets[len(words)] = b.Len()
	return b.String(), offsets
}

// findWithWordIndex locates the first match of pattern in stream and
// returns the word index owning the match's start offset.
func findWithWordIndex(pattern *regexp.Regexp, words []printedWord, offsets []int, stream string) ([]int, int) {
	loc := pattern.FindStringIndex(stream)
	if loc == nil {
		return nil, -1
	}
	for i := 0; i < len(words); i++ {
		if loc[0] >= offsets[i] && loc[0] < offsets[i+1] {
			return loc, i
		}
	}
	return loc, len(words) - 1
}

// averageConfidence averages the confidence of every word whose span
// overlaps [start,end) in the concatenated stream.
func averageConfidence(words []printedWord, offsets []int, start, end int) float64 {
	var sum float64
	var n int
	for i, w := range words {
		if offsets[i] < end && offsets[i+1] > start {
			sum += w.Confidence
			n++
		}
	}
	if n == 0 {
		return 0
	}
	return sum / float64(n)
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
