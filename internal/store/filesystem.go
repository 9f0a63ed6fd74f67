package store

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
)

// FilesystemDelegate persists artifacts under a base directory and hands
// back file:// URLs — used by cmd/gradecli and by tests, grounded on the
// teacher's internal/home.Dir data-directory layout (a fixed base path
// with a dedicated data subdirectory, created on demand).
type FilesystemDelegate struct {
	baseDir string
}

// NewFilesystemDelegate returns a delegate rooted at baseDir, creating it
// (and the data/ subdirectory) if it does not yet exist.
func NewFilesystemDelegate(baseDir string) (*FilesystemDelegate, error) {
	dataDir := filepath.Join(baseDir, "data")
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("create store data directory: %w", err)
	}
	return &FilesystemDelegate{baseDir: baseDir}, nil
}

func (d *FilesystemDelegate) Put(_ context.Context, kind ArtifactKind, data []byte) (string, error) {
	name := fmt.Sprintf("%s-%s.jpg", kind, uuid.NewString())
	path := filepath.Join(d.baseDir, "data", name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("write %s: %w", kind, err)
	}
	return "file://" + path, nil
}

func (d *FilesystemDelegate) PutArtifact(_ context.Context, kind ArtifactKind, text string) (string, error) {
	id := uuid.NewString()
	name := fmt.Sprintf("%s-%s.txt", kind, id)
	path := filepath.Join(d.baseDir, "data", name)
	if err := os.WriteFile(path, []byte(text), 0o644); err != nil {
		return "", fmt.Errorf("write artifact %s: %w", kind, err)
	}
	return id, nil
}

var _ Delegate = (*FilesystemDelegate)(nil)
