package store

import (
	"context"
	"encoding/base64"
	"fmt"

	"github.com/parentgrade/gradecore/internal/defra"
)

// gradingAssetCollection is the DefraDB collection DefraDelegate writes
// to. DefraDB is a document store, not a blob store, so image bytes are
// embedded base64-encoded in the document rather than referenced
// externally — the same approach the teacher takes for any binary-ish
// field it needs to round-trip through GraphQL.
const gradingAssetCollection = "GradingAsset"

// DefraDelegate adapts the teacher's DefraDB client into a
// store.Delegate: every Put/PutArtifact becomes a document create, and
// the returned reference is a "defra://" URL carrying the collection and
// document id so a caller can dereference it with a plain GraphQL query.
type DefraDelegate struct {
	client *defra.Client
}

// NewDefraDelegate wraps an already-connected DefraDB client.
func NewDefraDelegate(client *defra.Client) *DefraDelegate {
	return &DefraDelegate{client: client}
}

func (d *DefraDelegate) Put(ctx context.Context, kind ArtifactKind, data []byte) (string, error) {
	docID, err := d.client.Create(ctx, gradingAssetCollection, map[string]any{
		"kind": string(kind),
		"data": base64.StdEncoding.EncodeToString(data),
	})
	if err != nil {
		return "", fmt.Errorf("persist %s via defra: %w", kind, err)
	}
	return fmt.Sprintf("defra://%s/%s", gradingAssetCollection, docID), nil
}

func (d *DefraDelegate) PutArtifact(ctx context.Context, kind ArtifactKind, text string) (string, error) {
	docID, err := d.client.Create(ctx, gradingAssetCollection, map[string]any{
		"kind": string(kind),
		"text": text,
	})
	if err != nil {
		return "", fmt.Errorf("persist artifact %s via defra: %w", kind, err)
	}
	return docID, nil
}

var _ Delegate = (*DefraDelegate)(nil)
