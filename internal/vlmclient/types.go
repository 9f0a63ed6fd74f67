// Package vlmclient converts page images into a normalized tree of
// sections and items by prompting a vision-language model for strict
// JSON and flattening its reply — spec.md §4.2.
package vlmclient

import "github.com/parentgrade/gradecore/internal/model"

// wireItem is one question in the VLM's short-field-name reply shape.
type wireItem struct {
	Q    int       `json:"q"`
	Hint string    `json:"hint"`
	Ans  string    `json:"ans"`
	OK   bool      `json:"ok"`
	Conf float64   `json:"conf"`
	Pg   int       `json:"pg"`
	Note string    `json:"note"`
	Bbox []float64 `json:"bbox,omitempty"`
}

// wireSection groups wireItems under a title and answer-style type.
type wireSection struct {
	Title string          `json:"title"`
	Type  model.SectionType `json:"type"`
	Items []wireItem      `json:"items"`
}

// wireReply is the nested shape the VLM is prompted to emit. The legacy
// flat shape (a bare item array, no sections) is also accepted.
type wireReply struct {
	Sections []wireSection `json:"sections"`
	Items    []wireItem    `json:"items"` // legacy flat shape
	Date     string        `json:"date,omitempty"`
}

// flatten walks a wireReply (nested or legacy-flat) into ordered
// RawVLMItems and their owning Sections, applying the short->canonical
// field mapping spec.md §4.2 requires (hint->zh_hint, ans->student_text,
// ok->is_correct, conf->confidence, pg->page_index,
// bbox->handwriting_bbox).
func flatten(reply wireReply) ([]model.RawVLMItem, []model.Section) {
	if len(reply.Sections) == 0 && len(reply.Items) > 0 {
		reply.Sections = []wireSection{{Items: reply.Items}}
	}

	var items []model.RawVLMItem
	sections := make([]model.Section, 0, len(reply.Sections))

	for secIdx, sec := range reply.Sections {
		sections = append(sections, model.Section{Title: sec.Title, Type: sec.Type})
		for _, w := range sec.Items {
			item := model.RawVLMItem{
				Q:           w.Q,
				Section:     secIdx,
				ZhHint:      w.Hint,
				StudentText: w.Ans,
				IsCorrect:   w.OK,
				Confidence:  w.Conf,
				PageIndex:   w.Pg,
				Note:        w.Note,
			}
			if len(w.Bbox) == 4 {
				item.HasBBox = true
				item.HandwritingBBox = model.Box{X1: w.Bbox[0], Y1: w.Bbox[1], X2: w.Bbox[2], Y2: w.Bbox[3]}
			}
			items = append(items, item)
		}
	}
	return items, sections
}
