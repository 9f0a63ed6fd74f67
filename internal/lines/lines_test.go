package lines

import (
	"testing"

	"github.com/parentgrade/gradecore/internal/config"
	"github.com/parentgrade/gradecore/internal/model"
)

func word(text string, x1, y1, x2, y2 float64, typ model.WordType) model.OCRWord {
	return model.OCRWord{Text: text, BBox: model.Box{X1: x1, Y1: y1, X2: x2, Y2: y2}, Type: typ, Confidence: 0.9}
}

func TestThreshold_UnlabeledSectionUsesWordThreshold(t *testing.T) {
	cfg := config.Defaults().Merge
	if got := Threshold(model.SectionUnknown, cfg); got != cfg.WordThreshold {
		t.Fatalf("expected WordThreshold for unlabeled section, got %v", got)
	}
	if got := Threshold(model.SectionPhrase, cfg); got != cfg.PhraseThreshold {
		t.Fatalf("expected PhraseThreshold for PHRASE section, got %v", got)
	}
}

// Scenario 4 from spec.md §8: PHRASE section, three words "walk the dog"
// with 30px top-y deltas on an 80px word height (ratio 0.375 < 0.5) merge
// into one line.
func TestBuildLines_PhraseSectionMerges(t *testing.T) {
	words := []model.OCRWord{
		word("walk", 100, 400, 180, 480, model.WordHandwritten),
		word("the", 190, 430, 230, 510, model.WordHandwritten),
		word("dog", 240, 400, 300, 480, model.WordHandwritten),
	}
	threshold := Threshold(model.SectionPhrase, config.Defaults().Merge)

	got := BuildLines(words, threshold)
	if len(got) != 1 {
		t.Fatalf("expected one merged line, got %d: %+v", len(got), got)
	}
	if got[0].Text != "walk the dog" {
		t.Fatalf("expected left-to-right merged text, got %q", got[0].Text)
	}
}

// Scenario 5 from spec.md §8: WORD section, "Pig" (height 79) and
// "horse" at a y-delta of 46 (ratio 0.58 > 0.1) stay on separate lines.
func TestBuildLines_WordSectionDoesNotMerge(t *testing.T) {
	words := []model.OCRWord{
		word("Pig", 100, 732, 160, 811, model.WordHandwritten),
		word("horse", 100, 778, 180, 857, model.WordHandwritten),
	}
	threshold := Threshold(model.SectionWord, config.Defaults().Merge)

	got := BuildLines(words, threshold)
	if len(got) != 2 {
		t.Fatalf("expected two separate lines for WORD section, got %d: %+v", len(got), got)
	}
}

func TestBuildLines_IgnoresPrintedWords(t *testing.T) {
	words := []model.OCRWord{
		word("13.", 10, 700, 40, 730, model.WordPrinted),
		word("pig", 100, 705, 160, 780, model.WordHandwritten),
	}
	got := BuildLines(words, 0.1)
	if len(got) != 1 {
		t.Fatalf("expected only the handwritten word to form a line, got %d", len(got))
	}
	if got[0].Text != "pig" {
		t.Fatalf("unexpected line text %q", got[0].Text)
	}
}

func TestExtractQuestionPositions_KeepsFirstDuplicate(t *testing.T) {
	words := []model.OCRWord{
		word("13.", 10, 700, 40, 730, model.WordPrinted),
		word("13.", 10, 900, 40, 930, model.WordPrinted), // duplicate, later
		word("14、", 10, 780, 45, 810, model.WordPrinted),
		word("pig", 100, 705, 160, 780, model.WordHandwritten), // not printed, ignored
	}
	got := ExtractQuestionPositions(words, 0)
	if len(got) != 2 {
		t.Fatalf("expected 2 question positions, got %d: %+v", len(got), got)
	}
	if got[0].QNum != 13 || got[0].Top != 700 {
		t.Fatalf("expected first occurrence of 13 kept, got %+v", got[0])
	}
	if got[1].QNum != 14 {
		t.Fatalf("expected second position to be 14, got %+v", got[1])
	}
}
