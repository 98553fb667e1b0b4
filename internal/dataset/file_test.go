package dataset

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"fonreal/internal/backoff"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
}

func TestFileSourceFetch(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data.csv")
	writeFile(t, path, sampleCSV)

	tbl, err := NewFileSource(path, nil).Fetch(context.Background())
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if tbl.Len() != 3 {
		t.Errorf("rows = %d", tbl.Len())
	}
}

func TestFileSourceMissingIsPermanent(t *testing.T) {
	_, err := NewFileSource(filepath.Join(t.TempDir(), "absent.csv"), nil).Fetch(context.Background())
	if !backoff.IsPermanent(err) {
		t.Fatalf("err = %v, want permanent", err)
	}
}

func TestFileSourceWatch(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "data.csv")
	writeFile(t, path, sampleCSV)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	changed := make(chan struct{}, 8)
	src := NewFileSource(path, nil)
	if err := src.Watch(ctx, func() { changed <- struct{}{} }); err != nil {
		t.Fatalf("Watch: %v", err)
	}

	// Unrelated files in the same directory are ignored.
	writeFile(t, filepath.Join(dir, "other.csv"), "x")
	writeFile(t, path, sampleCSV+"\n")

	select {
	case <-changed:
	case <-time.After(5 * time.Second):
		t.Fatal("no change notification")
	}
}
