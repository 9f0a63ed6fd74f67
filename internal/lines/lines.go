// Package lines groups OCR handwriting words into answer lines and
// extracts printed question positions — spec.md §4.4.
package lines

import (
	"regexp"
	"sort"

	"github.com/parentgrade/gradecore/internal/config"
	"github.com/parentgrade/gradecore/internal/model"
)

// questionNumberPattern matches a printed token's leading numeral
// followed by Western or Chinese punctuation: "13.", "7、", "2．".
var questionNumberPattern = regexp.MustCompile(`^(\d+)[\s.．。:、]`)

// Threshold selects the section-type-aware merge threshold spec.md
// §4.4 requires: WORD sections resist merging (single-word answers
// stay on separate lines even when stacked closely — "pig"/"horse" must
// not fuse); PHRASE and SENTENCE sections merge consecutive words of
// the same answer. An unlabeled section uses the stricter WORD
// threshold.
func Threshold(sectionType model.SectionType, cfg config.MergeConfig) float64 {
	switch sectionType {
	case model.SectionPhrase, model.SectionSentence:
		return cfg.PhraseThreshold
	default:
		return cfg.WordThreshold
	}
}

// BuildLines groups handwritten words on one page into OCRLines. Two
// words belong to the same line iff the absolute difference of their
// top-y coordinates is less than threshold × that word's own height.
// Within a line, words are ordered left-to-right; the merged text is
// space-joined; the bbox is the union; confidence is the arithmetic
// mean of the contributing words.
func BuildLines(words []model.OCRWord, threshold float64) []model.OCRLine {
	handwritten := make([]model.OCRWord, 0, len(words))
	for _, w := range words {
		if w.Type == model.WordHandwritten {
			handwritten = append(handwritten, w)
		}
	}
	if len(handwritten) == 0 {
		return nil
	}

	sort.SliceStable(handwritten, func(i, j int) bool {
		return handwritten[i].Top() < handwritten[j].Top()
	})

	var lines [][]model.OCRWord
	for _, w := range handwritten {
		placed := false
		for i, line := range lines {
			anchor := line[0]
			if absFloat(w.Top()-anchor.Top()) < threshold*w.Height() {
				lines[i] = append(lines[i], w)
				placed = true
				break
			}
		}
		if !placed {
			lines = append(lines, []model.OCRWord{w})
		}
	}

	result := make([]model.OCRLine, 0, len(lines))
	for _, group := range lines {
		result = append(result, mergeLine(group))
	}
	return result
}

func mergeLine(words []model.OCRWord) model.OCRLine {
	sort.SliceStable(words, func(i, j int) bool {
		return words[i].BBox.X1 < words[j].BBox.X1
	})

	text := words[0].Text
	union := words[0].BBox
	confSum := words[0].Confidence
	for _, w := range words[1:] {
		text += " " + w.Text
		union = union.Union(w.BBox)
		confSum += w.Confidence
	}

	return model.OCRLine{
		Text:       text,
		BBox:       union,
		Confidence: confSum / float64(len(words)),
		PageIndex:  words[0].PageIndex,
		Words:      words,
	}
}

// ExtractQuestionPositions scans printed-text words on one page for
// leading question numerals, keeping only the first occurrence of each
// number (spec.md §4.4: "duplicate numbers on the same page keep the
// first").
func ExtractQuestionPositions(words []model.OCRWord, pageIndex int) []model.QuestionPosition {
	seen := make(map[int]bool)
	var out []model.QuestionPosition
	for _, w := range words {
		if w.Type != model.WordPrinted {
			continue
		}
		m := questionNumberPattern.FindStringSubmatch(w.Text)
		if m == nil {
			continue
		}
		qNum := atoiSafe(m[1])
		if seen[qNum] {
			continue
		}
		seen[qNum] = true
		out = append(out, model.QuestionPosition{QNum: qNum, Top: w.Top(), PageIndex: pageIndex})
	}
	return out
}

func absFloat(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}

func atoiSafe(s string) int {
	n := 0
	for _, r := range s {
		n = n*10 + int(r-'0')
	}
	return n
}
