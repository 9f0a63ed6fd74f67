package store

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestFilesystemDelegate_PutWritesUnderDataSubdir(t *testing.T) {
	base := t.TempDir()
	delegate, err := NewFilesystemDelegate(base)
	if err != nil {
		t.Fatalf("NewFilesystemDelegate() error = %v", err)
	}

	url, err := delegate.Put(context.Background(), KindOriginalImage, []byte("jpeg-bytes"))
	if err != nil {
		t.Fatalf("Put() error = %v", err)
	}
	if !strings.HasPrefix(url, "file://"+filepath.Join(base, "data")) {
		t.Fatalf("expected a file:// URL under the data subdir, got %s", url)
	}

	path := strings.TrimPrefix(url, "file://")
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("expected the written file to exist: %v", err)
	}
	if string(data) != "jpeg-bytes" {
		t.Fatalf("expected written bytes to round-trip, got %q", data)
	}
}

func TestFilesystemDelegate_PutArtifactReturnsReadableID(t *testing.T) {
	base := t.TempDir()
	delegate, err := NewFilesystemDelegate(base)
	if err != nil {
		t.Fatalf("NewFilesystemDelegate() error = %v", err)
	}

	id, err := delegate.PutArtifact(context.Background(), KindVLMRawReply, `{"kind":"vlm"}`)
	if err != nil {
		t.Fatalf("PutArtifact() error = %v", err)
	}
	if id == "" {
		t.Fatal("expected a non-empty artifact id")
	}

	matches, err := filepath.Glob(filepath.Join(base, "data", string(KindVLMRawReply)+"-"+id+".txt"))
	if err != nil || len(matches) != 1 {
		t.Fatalf("expected exactly one artifact file named by id, got %v (err=%v)", matches, err)
	}
}

func TestNewFilesystemDelegate_CreatesMissingBaseDir(t *testing.T) {
	base := filepath.Join(t.TempDir(), "nested", "does-not-exist-yet")
	if _, err := NewFilesystemDelegate(base); err != nil {
		t.Fatalf("expected base dir to be created, got error: %v", err)
	}
	if info, err := os.Stat(filepath.Join(base, "data")); err != nil || !info.IsDir() {
		t.Fatalf("expected data subdir to exist: err=%v", err)
	}
}
