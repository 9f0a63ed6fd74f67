// Package model defines the tagged records exchanged between the grading
// core's components. Every phase of the pipeline (preprocess, VLM, OCR,
// line building, fusion, identifier extraction, annotation) produces and
// consumes one or more of these explicit structs rather than passing
// dynamic maps between stages.
package model

import "image"

// SectionType classifies the answer style a Section expects.
type SectionType string

const (
	SectionWord     SectionType = "WORD"
	SectionPhrase   SectionType = "PHRASE"
	SectionSentence SectionType = "SENTENCE"
	SectionUnknown  SectionType = ""
)

// WordType classifies an OCR word as machine-printed or handwritten.
type WordType string

const (
	WordPrinted     WordType = "printed"
	WordHandwritten WordType = "handwritten"
)

// Box is an axis-aligned bounding box. Interpretation of the coordinate
// space (normalized [0,1] vs absolute pixels) depends on where the Box
// lives; each field below documents which.
type Box struct {
	X1, Y1, X2, Y2 float64
}

// Width returns X2-X1.
func (b Box) Width() float64 { return b.X2 - b.X1 }

// Height returns Y2-Y1.
func (b Box) Height() float64 { return b.Y2 - b.Y1 }

// CenterX returns the horizontal midpoint.
func (b Box) CenterX() float64 { return (b.X1 + b.X2) / 2 }

// CenterY returns the vertical midpoint.
func (b Box) CenterY() float64 { return (b.Y1 + b.Y2) / 2 }

// Pad returns a new Box expanded by n pixels on every side.
func (b Box) Pad(n float64) Box {
	return Box{X1: b.X1 - n, Y1: b.Y1 - n, X2: b.X2 + n, Y2: b.Y2 + n}
}

// Union returns the smallest Box containing both b and o.
func (b Box) Union(o Box) Box {
	return Box{
		X1: min(b.X1, o.X1),
		Y1: min(b.Y1, o.Y1),
		X2: max(b.X2, o.X2),
		Y2: max(b.Y2, o.Y2),
	}
}

// Scale maps a Box normalized to [0,1] onto a page of the given pixel
// dimensions.
func (b Box) Scale(width, height float64) Box {
	return Box{
		X1: b.X1 * width,
		Y1: b.Y1 * height,
		X2: b.X2 * width,
		Y2: b.Y2 * height,
	}
}

// Page is one uploaded worksheet image, decoded and white-balanced by the
// preprocessor. Lifecycle: created on upload, discarded once the grading
// response is serialized.
type Page struct {
	PageIndex int // 0-based
	Width     int
	Height    int

	Original     []byte      // bytes as uploaded
	Preprocessed []byte      // white-balanced, re-encoded JPEG fed to VLM/OCR/Annotator
	Decoded      image.Image // decoded pixels of Preprocessed, kept for annotation
}

// WorksheetUUID is the printed business identifier, pattern
// ES-NNNN-XXXXXX.
type WorksheetUUID struct {
	Value      string
	Confidence float64
	Candidates []UUIDCandidate // one per page that yielded a candidate
	Consistent bool
}

// UUIDCandidate is a single page's extracted identifier guess.
type UUIDCandidate struct {
	PageIndex  int
	Value      string
	Confidence float64
}

// Section groups a run of RawVLMItems under one answer-style heading.
type Section struct {
	Title string
	Type  SectionType
}

// RawVLMItem is one question as returned by the VLM, after short-field
// normalization (hint->ZhHint, ans->StudentText, ok->IsCorrect,
// conf->Confidence, pg->PageIndex, bbox->HandwritingBBox).
type RawVLMItem struct {
	Q        int  // VLM's own per-section question order; metadata, not an index
	Section  int  // index into the owning slice of Section
	ZhHint       string
	StudentText  string
	IsCorrect    bool
	Confidence   float64
	PageIndex    int
	Note         string
	HandwritingBBox Box // normalized [0,1]
	HasBBox         bool
}

// OCRWord is one word-level OCR record.
type OCRWord struct {
	Text       string
	BBox       Box // absolute pixels
	Type       WordType
	Confidence float64
	PageIndex  int
}

// Top returns the word's bounding box top-y, used for line merging.
func (w OCRWord) Top() float64 { return w.BBox.Y1 }

// Height returns the word's bounding box height.
func (w OCRWord) Height() float64 { return w.BBox.Height() }

// OCRLine is a horizontal group of handwritten words treated as one
// answer.
type OCRLine struct {
	Text       string
	BBox       Box
	Confidence float64
	PageIndex  int
	Words      []OCRWord

	consumed bool // set by the fusion matcher once assigned
}

// Consumed reports whether a fusion pass has already assigned this line.
func (l *OCRLine) Consumed() bool { return l.consumed }

// MarkConsumed flags the line as assigned so later items cannot reuse it.
func (l *OCRLine) MarkConsumed() { l.consumed = true }

// Top returns the line's bounding box top-y.
func (l OCRLine) Top() float64 { return l.BBox.Y1 }

// QuestionPosition anchors a printed question number to a vertical
// position, used only for geometric matching.
type QuestionPosition struct {
	QNum      int
	Top       float64
	PageIndex int
}

// MatchMethod names the fusion strategy that produced an assignment.
type MatchMethod string

const (
	MatchTextSimilarity MatchMethod = "text_similarity"
	MatchPosition       MatchMethod = "position"
	MatchSequential     MatchMethod = "sequential"
	MatchEmptyAnswer    MatchMethod = "empty_answer"
	MatchNone           MatchMethod = "none"
)

// Consistency is a tri-state flag: both sides present and compared (Yes
// or No), or one side absent (Unknown).
type Consistency int

const (
	ConsistencyUnknown Consistency = iota
	ConsistencyOK
	ConsistencyMismatch
)

// GradedItem is the fused per-question record consumed by the Annotator
// and downstream collaborators.
type GradedItem struct {
	Position int // monotonic order across all sections and pages, starting at 1

	SectionTitle string
	SectionType  SectionType

	ZhHint     string
	LLMText    string
	OCRText    string
	IsCorrect  bool
	Confidence float64
	Note       string

	PageIndex int // page used for annotation (see Design Notes open question ii)
	VLMPageIndex int // the VLM's own reported page, kept for diagnostics
	BBox      Box // absolute pixels, padded by fusion's bboxPadding when page dimensions are known

	MatchMethod       string // e.g. "text_similarity_0.93", "position", "sequential", "empty_answer", "none"
	MatchRatio        float64
	ConsistencyOK     Consistency
}

// GradingResult is the top-level record returned by the grading
// orchestrator.
type GradingResult struct {
	RequestID string

	Items []GradedItem

	OriginalImageURLs []string
	GradedImageURLs   []*string // nil entry = DelegatePersistFailure for that page

	ImageCount int

	ExtractedDate string // passed through verbatim from the VLM, never validated

	WorksheetUUID *WorksheetUUID
	PageUUIDDiagnostic []UUIDCandidate

	Warnings []string
}

func min(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}

func max(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}
