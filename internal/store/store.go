// Package store defines the persistence delegate the grading core writes
// through — image bytes and text artifacts leave the core only via this
// narrow interface, spec.md §6.
package store

import "context"

// ArtifactKind labels what PutArtifact is persisting, so a delegate can
// route it (a different collection, a different file extension) without
// the core knowing its storage details.
type ArtifactKind string

const (
	KindOriginalImage  ArtifactKind = "original_image"
	KindAnnotatedImage ArtifactKind = "annotated_image"
	KindVLMRawReply    ArtifactKind = "vlm_raw_reply"
	KindOCRRawReply    ArtifactKind = "ocr_raw_reply"
)

// Delegate is the persistence boundary spec.md §6 requires: the core
// hands it bytes or text and gets back an opaque reference, never a
// storage-specific handle.
type Delegate interface {
	// Put persists bytes (an original or annotated page image) and
	// returns a URL the caller can later dereference.
	Put(ctx context.Context, kind ArtifactKind, data []byte) (url string, err error)

	// PutArtifact persists a text blob (llmrecord.Recorder writes each
	// VLM/OCR call record here, whatever config.DebugConfig.SaveRaw says)
	// and returns an opaque id.
	PutArtifact(ctx context.Context, kind ArtifactKind, text string) (id string, err error)
}
