package watcher

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"zproposal/internal/documents"
	"zproposal/internal/logging"
)

type upload struct {
	name     string
	category documents.Category
	content  string
}

// mockUploader records uploads
type mockUploader struct {
	mu      sync.Mutex
	uploads []upload
}

func (m *mockUploader) Upload(ctx context.Context, name string, category documents.Category, content []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.uploads = append(m.uploads, upload{name, category, string(content)})
	return nil
}

func (m *mockUploader) snapshot() []upload {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]upload(nil), m.uploads...)
}

type plainReader struct{ limit int64 }

func (p plainReader) ReadFile(name string, size int64, src io.Reader) ([]byte, error) {
	if p.limit > 0 && size > p.limit {
		return nil, os.ErrInvalid
	}
	var buf bytes.Buffer
	_, err := buf.ReadFrom(src)
	return buf.Bytes(), err
}

func startWatcher(t *testing.T, limit int64) (*Watcher, *mockUploader) {
	t.Helper()
	up := &mockUploader{}
	w, err := NewWatcher(t.TempDir(), up, plainReader{limit: limit}, logging.Discard())
	if err != nil {
		t.Fatalf("NewWatcher failed: %v", err)
	}
	w.debounce = 50 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	if err := w.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	return w, up
}

func waitFor(t *testing.T, up *mockUploader, n int) []upload {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if got := up.snapshot(); len(got) >= n {
			return got
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatalf("expected %d uploads, got %d", n, len(up.snapshot()))
	return nil
}

// TestStartCreatesCategoryFolders tests folder layout
func TestStartCreatesCategoryFolders(t *testing.T) {
	w, _ := startWatcher(t, 0)
	for _, c := range documents.Categories {
		info, err := os.Stat(w.CategoryDir(c))
		if err != nil || !info.IsDir() {
			t.Errorf("Expected folder for %s, got err %v", c, err)
		}
	}
}

// TestDroppedFileIsUploaded tests the happy path
func TestDroppedFileIsUploaded(t *testing.T) {
	w, up := startWatcher(t, 0)

	path := filepath.Join(w.CategoryDir(documents.RfiRfp), "rfp.txt")
	if err := os.WriteFile(path, []byte("Requirement 1"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	got := waitFor(t, up, 1)
	if got[0].name != "rfp.txt" || got[0].category != documents.RfiRfp || got[0].content != "Requirement 1" {
		t.Errorf("Unexpected upload %+v", got[0])
	}

	// Give a stray second event time to fire; the debounce should coalesce it.
	time.Sleep(200 * time.Millisecond)
	if n := len(up.snapshot()); n != 1 {
		t.Errorf("Expected exactly one upload, got %d", n)
	}
}

// TestResavedFileIsNotDuplicated tests that only changed content is uploaded again
func TestResavedFileIsNotDuplicated(t *testing.T) {
	w, up := startWatcher(t, 0)
	path := filepath.Join(w.CategoryDir(documents.ProposalTemplate), "template.txt")

	if err := os.WriteFile(path, []byte("v1"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	waitFor(t, up, 1)

	// Same bytes again, after the debounce window.
	time.Sleep(150 * time.Millisecond)
	if err := os.WriteFile(path, []byte("v1"), 0o644); err != nil {
		t.Fatalf("rewrite: %v", err)
	}
	time.Sleep(300 * time.Millisecond)
	if n := len(up.snapshot()); n != 1 {
		t.Fatalf("Expected unchanged re-save to be skipped, got %d uploads", n)
	}

	if err := os.WriteFile(path, []byte("v2"), 0o644); err != nil {
		t.Fatalf("rewrite: %v", err)
	}
	got := waitFor(t, up, 2)
	if got[1].content != "v2" {
		t.Errorf("Expected changed content to be uploaded, got %+v", got[1])
	}
}

// TestIgnoredFiles tests hidden and temp files are skipped
func TestIgnoredFiles(t *testing.T) {
	w, up := startWatcher(t, 4)
	dir := w.CategoryDir(documents.BusinessCapability)

	for name, content := range map[string]string{
		".hidden":     "x",
		"draft.tmp":   "x",
		"~lock.docx":  "x",
		"too-big.txt": "more than four bytes",
		"empty.txt":   "",
	} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}
	if err := os.WriteFile(filepath.Join(dir, "ok.md"), []byte("ok"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	waitFor(t, up, 1)
	time.Sleep(200 * time.Millisecond)
	got := up.snapshot()
	if len(got) != 1 || got[0].name != "ok.md" {
		t.Errorf("Expected only ok.md, got %+v", got)
	}
}

func TestIgnored(t *testing.T) {
	cases := map[string]bool{
		"/in/RfiRfp/.DS_Store":     true,
		"/in/RfiRfp/file.swp":      true,
		"/in/RfiRfp/file.txt~":     true,
		"/in/RfiRfp/file.part":     true,
		"/in/RfiRfp/proposal.docx": false,
	}
	for path, want := range cases {
		if got := ignored(path); got != want {
			t.Errorf("ignored(%q) = %v, want %v", path, got, want)
		}
	}
}

func TestCategoryOf(t *testing.T) {
	w := &Watcher{root: "/inbox"}
	if c, ok := w.categoryOf("/inbox/ProposalTemplate/t.docx"); !ok || c != documents.ProposalTemplate {
		t.Errorf("Expected ProposalTemplate, got %q %v", c, ok)
	}
	if _, ok := w.categoryOf("/inbox/Other/t.docx"); ok {
		t.Error("Expected unknown folder to be rejected")
	}
	if _, ok := w.categoryOf("/elsewhere/RfiRfp/t.docx"); ok {
		t.Error("Expected path outside root to be rejected")
	}
}
