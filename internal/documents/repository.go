package documents

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"zproposal/internal/logging"
	"zproposal/internal/store"
)

// StorageKey is where the collection is persisted.
const StorageKey = "proposalFiles"

// Repository is the single writer of the persisted document collection.
// Every mutation persists before it becomes visible.
type Repository struct {
	mu      sync.RWMutex
	storage store.Storage
	logger  *logging.Logger
	records []Record
	lastID  int64
	now     func() time.Time
}

// NewRepository creates an empty repository. Call Load to read persisted records.
func NewRepository(storage store.Storage, logger *logging.Logger) *Repository {
	return &Repository{
		storage: storage,
		logger:  logger,
		now:     time.Now,
	}
}

// Load replaces the in-memory collection with the persisted one. An absent
// or corrupt value yields an empty collection; only storage I/O errors are
// returned.
func (r *Repository) Load(ctx context.Context) error {
	raw, ok, err := r.storage.Get(ctx, StorageKey)
	if err != nil {
		return fmt.Errorf("failed to read document collection: %w", err)
	}

	var loaded []Record
	if ok && raw != "" {
		if err := json.Unmarshal([]byte(raw), &loaded); err != nil {
			r.logger.Warn("persisted document collection is corrupt, starting empty: %v", err)
			loaded = nil
		}
	}

	records := make([]Record, 0, len(loaded))
	seen := make(map[int64]bool, len(loaded))
	var lastID int64
	for _, rec := range loaded {
		if err := rec.validate(); err != nil {
			r.logger.WithContext("id", rec.ID).Warn("dropping invalid document record: %v", err)
			continue
		}
		if seen[rec.ID] {
			r.logger.WithContext("id", rec.ID).Warn("dropping document record with duplicate id")
			continue
		}
		seen[rec.ID] = true
		records = append(records, rec)
		if rec.ID > lastID {
			lastID = rec.ID
		}
	}

	r.mu.Lock()
	r.records = records
	r.lastID = lastID
	r.mu.Unlock()

	r.logger.Info("loaded %d documents", len(records))
	return nil
}

// Add appends a new record and persists the collection. On any failure,
// including store.ErrQuotaExceeded, the collection is unchanged.
func (r *Repository) Add(ctx context.Context, name string, category Category, data string) (Record, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	id := now.UnixMilli()
	if id <= r.lastID {
		id = r.lastID + 1
	}
	rec := Record{
		ID:         id,
		Name:       name,
		Category:   category,
		UploadedAt: now,
		Data:       data,
	}
	if err := rec.validate(); err != nil {
		return Record{}, err
	}

	next := make([]Record, len(r.records), len(r.records)+1)
	copy(next, r.records)
	next = append(next, rec)

	if err := r.persist(ctx, next); err != nil {
		return Record{}, err
	}
	r.records = next
	r.lastID = id

	r.logger.WithFields(map[string]interface{}{
		"id":       id,
		"category": string(category),
		"bytes":    len(data),
	}).Info("added document %s", name)
	return rec, nil
}

// Remove deletes the record with id. A missing id is a no-op and writes nothing.
func (r *Repository) Remove(ctx context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	idx := -1
	for i, rec := range r.records {
		if rec.ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		return nil
	}

	next := make([]Record, 0, len(r.records)-1)
	next = append(next, r.records[:idx]...)
	next = append(next, r.records[idx+1:]...)

	if err := r.persist(ctx, next); err != nil {
		return err
	}
	r.records = next
	r.logger.WithContext("id", id).Info("removed document")
	return nil
}

// Clear removes every record and persists an empty collection.
func (r *Repository) Clear(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.persist(ctx, []Record{}); err != nil {
		return err
	}
	n := len(r.records)
	r.records = nil
	r.logger.Info("cleared %d documents", n)
	return nil
}

// List returns a copy of all records in insertion order.
func (r *Repository) List() []Record {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Record, len(r.records))
	copy(out, r.records)
	return out
}

// Get returns the record with id.
func (r *Repository) Get(id int64) (Record, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, rec := range r.records {
		if rec.ID == id {
			return rec, true
		}
	}
	return Record{}, false
}

// IDs returns the set of current record ids.
func (r *Repository) IDs() map[int64]struct{} {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make(map[int64]struct{}, len(r.records))
	for _, rec := range r.records {
		ids[rec.ID] = struct{}{}
	}
	return ids
}

// Len returns the number of records.
func (r *Repository) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.records)
}

// persist must be called with mu held.
func (r *Repository) persist(ctx context.Context, records []Record) error {
	if records == nil {
		records = []Record{}
	}
	b, err := json.Marshal(records)
	if err != nil {
		return fmt.Errorf("failed to encode document collection: %w", err)
	}
	if err := r.storage.Set(ctx, StorageKey, string(b)); err != nil {
		return fmt.Errorf("failed to persist document collection: %w", err)
	}
	return nil
}
