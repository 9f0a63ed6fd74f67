package identifier

import (
	"strings"
	"testing"

	"github.com/parentgrade/gradecore/internal/model"
)

func printedWordFixture(text string, conf, top float64) model.OCRWord {
	return model.OCRWord{Text: text, Type: model.WordPrinted, Confidence: conf, BBox: model.Box{X1: 0, Y1: top, X2: 10, Y2: top + 10}}
}

func TestExtractPage_FullMatch(t *testing.T) {
	words := []model.OCRWord{
		printedWordFixture("ES-0055-CF12D2", 0.9, 10),
	}
	cand, ok := ExtractPage(words, 0)
	if !ok {
		t.Fatal("expected a candidate")
	}
	if cand.Value != "ES-0055-CF12D2" {
		t.Fatalf("unexpected value %q", cand.Value)
	}
}

func TestExtractPage_TwoPartFallback(t *testing.T) {
	// spec.md §8 scenario 3, page 0.
	words := []model.OCRWord{
		printedWordFixture("ES-0055", 0.95, 10),
		printedWordFixture("CF12D2", 0.70, 10),
	}
	cand, ok := ExtractPage(words, 0)
	if !ok {
		t.Fatal("expected a two-part candidate")
	}
	if cand.Value != "ES-0055-CF12D2" {
		t.Fatalf("unexpected composed value %q", cand.Value)
	}
	wantConf := 0.8*0.95 + 0.2*0.70
	if diff := cand.Confidence - wantConf; diff > 1e-9 || diff < -1e-9 {
		t.Fatalf("expected confidence %.4f, got %.4f", wantConf, cand.Confidence)
	}
}

func TestExtractPage_NoCandidateWhenNoPrintedUUIDText(t *testing.T) {
	words := []model.OCRWord{
		{Text: "apple", Type: model.WordHandwritten, Confidence: 0.9},
	}
	_, ok := ExtractPage(words, 0)
	if ok {
		t.Fatal("expected no candidate")
	}
}

func TestConsensus_FullUUIDAgreement(t *testing.T) {
	// spec.md §8 scenario 2.
	candidates := []model.UUIDCandidate{
		{PageIndex: 0, Value: "ES-0055-CF12D2", Confidence: 0.9},
		{PageIndex: 1, Value: "ES-0055-CF12D2", Confidence: 0.88},
	}
	uuid, warnings := Consensus(candidates)
	if uuid.Value != "ES-0055-CF12D2" || !uuid.Consistent {
		t.Fatalf("unexpected uuid: %+v", uuid)
	}
	if len(warnings) != 0 {
		t.Fatalf("expected no warnings, got %v", warnings)
	}
}

func TestConsensus_SplitUUIDWithInconsistency(t *testing.T) {
	// spec.md §8 scenario 3.
	candidates := []model.UUIDCandidate{
		{PageIndex: 0, Value: "ES-0055-CF12D2", Confidence: 0.90},
		{PageIndex: 1, Value: "ES-0056-AB12CD", Confidence: 0.88},
	}
	uuid, warnings := Consensus(candidates)
	if uuid.Value != "ES-0055-CF12D2" || uuid.Consistent {
		t.Fatalf("expected higher-confidence candidate and inconsistent flag, got %+v", uuid)
	}
	if len(warnings) != 1 || !strings.Contains(warnings[0], "ES-0055-CF12D2") || !strings.Contains(warnings[0], "ES-0056-AB12CD") {
		t.Fatalf("expected warning enumerating both candidates, got %v", warnings)
	}
}

func TestConsensus_EmptyCandidatesYieldsNoUUID(t *testing.T) {
	uuid, warnings := Consensus(nil)
	if uuid != nil || warnings != nil {
		t.Fatalf("expected nil uuid and no warnings, got %+v %v", uuid, warnings)
	}
}
