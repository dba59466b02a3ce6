// Package watcher uploads files dropped into per-category inbox folders.
package watcher

import (
	"context"
	"crypto/sha256"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"zproposal/internal/documents"
	"zproposal/internal/logging"
)

// DefaultDebounce is how long a path must stay quiet before it is uploaded.
const DefaultDebounce = 500 * time.Millisecond

// Uploader stores a file under a category.
type Uploader interface {
	Upload(ctx context.Context, name string, category documents.Category, content []byte) error
}

// FileReader applies upload guardrails while reading.
type FileReader interface {
	ReadFile(name string, size int64, src io.Reader) ([]byte, error)
}

// Watcher monitors <root>/<Category>/ folders for new files
type Watcher struct {
	root      string
	fsWatcher *fsnotify.Watcher
	uploader  Uploader
	reader    FileReader
	logger    *logging.Logger
	debounce  time.Duration

	mu      sync.Mutex
	pending map[string]*time.Timer
	seen    map[string][sha256.Size]byte // last uploaded content per path
	wg      sync.WaitGroup
}

// NewWatcher creates a folder watcher with fsnotify initialization
func NewWatcher(root string, uploader Uploader, reader FileReader, logger *logging.Logger) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		logger.Error("failed to create fsnotify watcher: %v", err)
		return nil, fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}
	return &Watcher{
		root:      root,
		fsWatcher: fsw,
		uploader:  uploader,
		reader:    reader,
		logger:    logger,
		debounce:  DefaultDebounce,
		pending:   make(map[string]*time.Timer),
		seen:      make(map[string][sha256.Size]byte),
	}, nil
}

// CategoryDir returns the inbox folder for a category.
func (w *Watcher) CategoryDir(c documents.Category) string {
	return filepath.Join(w.root, string(c))
}

// Start creates the category folders, watches them and runs the event loop
// until ctx is done.
func (w *Watcher) Start(ctx context.Context) error {
	for _, c := range documents.Categories {
		dir := w.CategoryDir(c)
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create inbox folder %s: %w", dir, err)
		}
		if err := w.fsWatcher.Add(dir); err != nil {
			return fmt.Errorf("failed to watch %s: %w", dir, err)
		}
		w.logger.WithContext("folder_path", dir).Debug("watching folder")
	}

	go w.eventLoop(ctx)

	w.logger.WithContext("root", w.root).Info("inbox watcher started")
	return nil
}

// eventLoop processes filesystem events
func (w *Watcher) eventLoop(ctx context.Context) {
	defer w.shutdown()
	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-w.fsWatcher.Events:
			if !ok {
				return
			}
			w.handleEvent(ctx, event)

		case err, ok := <-w.fsWatcher.Errors:
			if !ok {
				return
			}
			w.logger.Error("watcher error: %v", err)
		}
	}
}

func (w *Watcher) shutdown() {
	w.fsWatcher.Close()
	w.mu.Lock()
	for path, t := range w.pending {
		if t.Stop() {
			w.wg.Done()
		}
		delete(w.pending, path)
	}
	w.mu.Unlock()
	w.wg.Wait()
}

// handleEvent schedules an upload after the path has been quiet for the
// debounce interval.
func (w *Watcher) handleEvent(ctx context.Context, event fsnotify.Event) {
	if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) {
		return
	}
	if ignored(event.Name) {
		return
	}
	if _, ok := w.categoryOf(event.Name); !ok {
		return
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if t, ok := w.pending[event.Name]; ok && t.Stop() {
		w.wg.Done()
	}
	path := event.Name
	w.wg.Add(1)
	var timer *time.Timer
	timer = time.AfterFunc(w.debounce, func() {
		defer w.wg.Done()
		w.mu.Lock()
		if w.pending[path] == timer {
			delete(w.pending, path)
		}
		w.mu.Unlock()
		w.uploadFile(ctx, path)
	})
	w.pending[path] = timer
}

// categoryOf maps <root>/<Category>/<file> to its category.
func (w *Watcher) categoryOf(path string) (documents.Category, bool) {
	dir := filepath.Base(filepath.Dir(path))
	if filepath.Dir(filepath.Dir(path)) != filepath.Clean(w.root) {
		return "", false
	}
	c := documents.Category(dir)
	return c, c.Valid()
}

// ignored skips hidden files and common editor or download temp files.
func ignored(path string) bool {
	name := filepath.Base(path)
	if strings.HasPrefix(name, ".") || strings.HasPrefix(name, "~") || strings.HasSuffix(name, "~") {
		return true
	}
	switch strings.ToLower(filepath.Ext(name)) {
	case ".tmp", ".swp", ".part", ".crdownload":
		return true
	}
	return false
}

func (w *Watcher) uploadFile(ctx context.Context, path string) {
	logger := w.logger.WithContext("file_path", path)
	if ctx.Err() != nil {
		return
	}

	category, _ := w.categoryOf(path)
	f, err := os.Open(path)
	if err != nil {
		// Renamed or deleted before the debounce fired.
		logger.Debug("skipping file: %v", err)
		return
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil || info.IsDir() {
		return
	}

	name := filepath.Base(path)
	content, err := w.reader.ReadFile(name, info.Size(), f)
	if err != nil {
		logger.Warn("file rejected: %v", err)
		return
	}
	if len(content) == 0 {
		logger.Debug("skipping empty file")
		return
	}

	// Saving a file again without changing it must not add a second record.
	sum := sha256.Sum256(content)
	w.mu.Lock()
	prev, ok := w.seen[path]
	w.mu.Unlock()
	if ok && prev == sum {
		logger.Debug("content unchanged since last upload, skipping")
		return
	}

	if err := w.uploader.Upload(ctx, name, category, content); err != nil {
		logger.Error("failed to upload file: %v", err)
		return
	}
	w.mu.Lock()
	w.seen[path] = sum
	w.mu.Unlock()
	logger.WithContext("category", string(category)).Info("file uploaded from inbox")
}
