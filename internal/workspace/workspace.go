// Package workspace is the action facade behind every user-facing operation:
// upload, select, delete, reset, generate, and the result and credential actions.
package workspace

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/patrickmn/go-cache"

	"zproposal/internal/codec"
	"zproposal/internal/credentials"
	"zproposal/internal/documents"
	"zproposal/internal/generation"
	"zproposal/internal/ingest"
	"zproposal/internal/llm"
	"zproposal/internal/logging"
	"zproposal/internal/prompt"
	"zproposal/internal/result"
	"zproposal/internal/selection"
	"zproposal/internal/store"
)

// ErrEmptySelection is returned by Generate when nothing is selected.
var ErrEmptySelection = errors.New("select at least one document")

// UploadRequest is one file to add to the repository.
type UploadRequest struct {
	Name     string `validate:"required,notblank,max=255"`
	Category string `validate:"required,doccategory"`
	Content  []byte `validate:"required,min=1"`
}

// Workspace wires the document repository, selection, generator and result
// manager together. It is safe for concurrent use.
type Workspace struct {
	docs      *documents.Repository
	selection *selection.Set
	creds     *credentials.Store
	generator *generation.Generator
	results   *result.Manager
	reader    *ingest.Reader
	display   *cache.Cache
	validate  *validator.Validate
	logger    *logging.Logger

	// selMu makes the existence check in Toggle atomic with removals, so the
	// selection never holds a deleted id.
	selMu sync.Mutex

	notifyMu sync.RWMutex
	notifier Notifier
}

// New creates a workspace. docs should already be loaded.
func New(docs *documents.Repository, creds *credentials.Store, completer llm.Completer, reader *ingest.Reader, logger *logging.Logger) *Workspace {
	w := &Workspace{
		docs:      docs,
		selection: selection.New(),
		creds:     creds,
		results:   result.NewManager(),
		reader:    reader,
		display:   cache.New(30*time.Minute, 10*time.Minute),
		validate:  newValidator(),
		logger:    logger,
	}
	w.generator = generation.NewGenerator(completer, logger.Named("generation"), w.onGeneration)
	return w
}

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	_ = v.RegisterValidation("doccategory", func(fl validator.FieldLevel) bool {
		_, err := documents.ParseCategory(fl.Field().String())
		return err == nil
	})
	_ = v.RegisterValidation("notblank", func(fl validator.FieldLevel) bool {
		return strings.TrimSpace(fl.Field().String()) != ""
	})
	return v
}

// SetNotifier installs the event sink. Passing nil disables events.
func (w *Workspace) SetNotifier(n Notifier) {
	w.notifyMu.Lock()
	defer w.notifyMu.Unlock()
	w.notifier = n
}

func (w *Workspace) emit(eventType string, data interface{}) {
	w.notifyMu.RLock()
	n := w.notifier
	w.notifyMu.RUnlock()
	if n != nil {
		n.Notify(Event{Type: eventType, Data: data})
	}
}

// onGeneration runs on every session transition. The artifact is stored
// before the success event goes out so listeners can fetch it immediately.
func (w *Workspace) onGeneration(s generation.Session) {
	if s.State == generation.Succeeded {
		w.results.Set(s.Artifact)
	}
	e := generationEvent(s)
	w.emit(e.Type, e.Data)
}

// Upload encodes and stores a file.
func (w *Workspace) Upload(ctx context.Context, req UploadRequest) (documents.Record, error) {
	const op = "upload"

	if err := w.validate.Struct(req); err != nil {
		return documents.Record{}, newError(KindInput, op, describeValidation(err))
	}
	category, err := documents.ParseCategory(req.Category)
	if err != nil {
		return documents.Record{}, newError(KindInput, op, err)
	}

	rec, err := w.docs.Add(ctx, req.Name, category, codec.EncodeNamed(req.Name, req.Content))
	if err != nil {
		if errors.Is(err, store.ErrQuotaExceeded) {
			w.logger.WithContext("file", req.Name).Warn("upload rejected: %v", err)
			return documents.Record{}, newError(KindStorage, op, store.ErrQuotaExceeded)
		}
		if errors.Is(err, documents.ErrInvalidRecord) || errors.Is(err, documents.ErrInvalidCategory) {
			return documents.Record{}, newError(KindInput, op, err)
		}
		return documents.Record{}, newError(KindStorage, op, err)
	}

	w.emit(EventDocumentsChanged, nil)
	return rec, nil
}

// ImportURL fetches a web page and stores its readable text as a document.
func (w *Workspace) ImportURL(ctx context.Context, rawURL, category string) (documents.Record, error) {
	const op = "import"

	if err := w.validate.Var(category, "required,doccategory"); err != nil {
		return documents.Record{}, newError(KindInput, op, fmt.Errorf("%w: %q", documents.ErrInvalidCategory, category))
	}
	if w.reader == nil {
		return documents.Record{}, newError(KindService, op, errors.New("web import is not available"))
	}

	name, text, err := w.reader.FetchPage(ctx, rawURL)
	if err != nil {
		if errors.Is(err, ingest.ErrInvalidURL) || errors.Is(err, ingest.ErrTooLarge) {
			return documents.Record{}, newError(KindInput, op, err)
		}
		return documents.Record{}, newError(KindService, op, err)
	}
	return w.Upload(ctx, UploadRequest{Name: name, Category: category, Content: []byte(text)})
}

// Documents lists every record in insertion order.
func (w *Workspace) Documents() []documents.Record {
	return w.docs.List()
}

// Document returns one record.
func (w *Workspace) Document(id int64) (documents.Record, error) {
	rec, ok := w.docs.Get(id)
	if !ok {
		return documents.Record{}, newError(KindNotFound, "document", fmt.Errorf("document %d not found", id))
	}
	return rec, nil
}

// DisplayText returns the best-effort text of a record's content.
func (w *Workspace) DisplayText(id int64) (string, error) {
	key := strconv.FormatInt(id, 10)
	if text, ok := w.display.Get(key); ok {
		return text.(string), nil
	}
	rec, err := w.Document(id)
	if err != nil {
		return "", err
	}
	text := codec.DecodeToDisplayText(rec.Data)
	w.display.Set(key, text, cache.DefaultExpiration)
	return text, nil
}

// Toggle flips selection of an existing document.
func (w *Workspace) Toggle(id int64) (bool, error) {
	w.selMu.Lock()
	if _, ok := w.docs.Get(id); !ok {
		w.selMu.Unlock()
		return false, newError(KindNotFound, "select", fmt.Errorf("document %d not found", id))
	}
	selected := w.selection.Toggle(id)
	w.selMu.Unlock()
	w.emit(EventSelectionChanged, w.selection.IDs())
	return selected, nil
}

// Selected returns the selected ids in the order they were selected.
func (w *Workspace) Selected() []int64 {
	return w.selection.IDs()
}

// IsSelected reports whether id is selected.
func (w *Workspace) IsSelected(id int64) bool {
	return w.selection.IsSelected(id)
}

// Delete removes a document. Deleting a missing id is a no-op.
func (w *Workspace) Delete(ctx context.Context, id int64) error {
	w.selMu.Lock()
	if err := w.docs.Remove(ctx, id); err != nil {
		w.selMu.Unlock()
		return newError(KindStorage, "delete", err)
	}
	dropped := w.selection.Reconcile(w.docs.IDs())
	w.selMu.Unlock()

	w.display.Delete(strconv.FormatInt(id, 10))
	if len(dropped) > 0 {
		w.logger.WithContext("dropped", dropped).Debug("selection reconciled")
		w.emit(EventSelectionChanged, w.selection.IDs())
	}
	w.emit(EventDocumentsChanged, nil)
	return nil
}

// ResetAll removes every document and empties the selection.
func (w *Workspace) ResetAll(ctx context.Context) error {
	w.selMu.Lock()
	if err := w.docs.Clear(ctx); err != nil {
		w.selMu.Unlock()
		return newError(KindStorage, "reset", err)
	}
	w.selection.Clear()
	w.selMu.Unlock()
	w.display.Flush()
	w.emit(EventDocumentsChanged, nil)
	w.emit(EventSelectionChanged, w.selection.IDs())
	w.logger.Info("workspace reset")
	return nil
}

// selectedRecords returns the selected records in store insertion order.
func (w *Workspace) selectedRecords() []documents.Record {
	var out []documents.Record
	for _, rec := range w.docs.List() {
		if w.selection.IsSelected(rec.ID) {
			out = append(out, rec)
		}
	}
	return out
}

// Generate assembles the prompt from the selection and calls the service.
// It blocks until the service answers. The request is detached from ctx's
// cancellation so a dropped client does not abort it.
func (w *Workspace) Generate(ctx context.Context) (generation.Session, error) {
	const op = "generate"

	if w.generator.Busy() {
		return w.generator.Current(), newError(KindBusy, op, generation.ErrBusy)
	}

	records := w.selectedRecords()
	if len(records) == 0 {
		return w.generator.Current(), newError(KindInput, op, ErrEmptySelection)
	}

	key, ok, err := w.creds.Get(ctx)
	if err != nil {
		return w.generator.Current(), newError(KindStorage, op, err)
	}
	if !ok {
		return w.generator.Current(), newError(KindInput, op, llm.ErrNoCredential)
	}

	w.logger.WithContext("documents", len(records)).Info("generating proposal")
	session, err := w.generator.Generate(context.WithoutCancel(ctx), prompt.Assemble(records), key)
	switch {
	case err == nil:
		return session, nil
	case errors.Is(err, generation.ErrBusy):
		return session, newError(KindBusy, op, err)
	case errors.Is(err, llm.ErrNoCredential):
		return session, newError(KindInput, op, err)
	default:
		return session, newError(KindService, op, err)
	}
}

// Generation returns the latest session snapshot.
func (w *Workspace) Generation() generation.Session {
	return w.generator.Current()
}

// SaveCredential stores the API key.
func (w *Workspace) SaveCredential(ctx context.Context, key string) error {
	if err := w.creds.Save(ctx, key); err != nil {
		if errors.Is(err, credentials.ErrEmptyCredential) {
			return newError(KindInput, "save credential", err)
		}
		return newError(KindStorage, "save credential", err)
	}
	w.logger.Info("API key saved")
	return nil
}

// ClearCredential forgets the API key.
func (w *Workspace) ClearCredential(ctx context.Context) error {
	if err := w.creds.Clear(ctx); err != nil {
		return newError(KindStorage, "clear credential", err)
	}
	w.logger.Info("API key cleared")
	return nil
}

// Credential returns the masked API key and whether one is configured.
func (w *Workspace) Credential(ctx context.Context) (string, bool, error) {
	key, ok, err := w.creds.Get(ctx)
	if err != nil {
		return "", false, newError(KindStorage, "credential", err)
	}
	return credentials.Mask(key), ok, nil
}

// Result returns the latest artifact.
func (w *Workspace) Result() (string, bool) {
	return w.results.Artifact()
}

// CopyResult places the artifact on the clipboard.
func (w *Workspace) CopyResult() error {
	const op = "copy"
	err := w.results.CopyToClipboard()
	var ce *result.ClipboardError
	switch {
	case err == nil:
		return nil
	case errors.Is(err, result.ErrNoArtifact):
		return newError(KindNotFound, op, err)
	case errors.As(err, &ce):
		w.logger.Warn("clipboard write failed: %v", ce.Err)
		return newError(KindClipboard, op, err)
	default:
		return newError(KindClipboard, op, err)
	}
}

// DownloadResult returns the artifact as a dated text file.
func (w *Workspace) DownloadResult(now time.Time) (string, []byte, string, error) {
	name, content, mimeType, err := w.results.ExportAsFile(now)
	if err != nil {
		return "", nil, "", newError(KindNotFound, "download", err)
	}
	return name, content, mimeType, nil
}

// ClearResult drops the artifact.
func (w *Workspace) ClearResult() {
	w.results.Clear()
	w.emit(EventResultCleared, nil)
}

// describeValidation turns validator output into one readable error.
func describeValidation(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return err
	}
	fe := verrs[0]
	switch fe.Field() {
	case "Name":
		if fe.Tag() == "max" {
			return errors.New("file name is too long")
		}
		return errors.New("a file is required")
	case "Content":
		return errors.New("file is empty")
	case "Category":
		if fe.Tag() == "required" {
			return errors.New("a document type is required")
		}
		return documents.ErrInvalidCategory
	}
	return err
}
