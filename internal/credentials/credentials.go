// Package credentials persists the generation service API key.
package credentials

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"zproposal/internal/store"
)

// StorageKey holds the API key as a plain string.
const StorageKey = "anthropicApiKey"

// ErrEmptyCredential is returned when saving a blank key.
var ErrEmptyCredential = errors.New("API key must not be empty")

// Store reads and writes the single credential.
type Store struct {
	storage store.Storage
}

func NewStore(storage store.Storage) *Store {
	return &Store{storage: storage}
}

// Get returns the key and whether one is configured. A stored blank value
// counts as not configured.
func (s *Store) Get(ctx context.Context) (string, bool, error) {
	v, ok, err := s.storage.Get(ctx, StorageKey)
	if err != nil {
		return "", false, fmt.Errorf("failed to read credential: %w", err)
	}
	if !ok || strings.TrimSpace(v) == "" {
		return "", false, nil
	}
	return v, true, nil
}

// Save trims and stores key.
func (s *Store) Save(ctx context.Context, key string) error {
	key = strings.TrimSpace(key)
	if key == "" {
		return ErrEmptyCredential
	}
	if err := s.storage.Set(ctx, StorageKey, key); err != nil {
		return fmt.Errorf("failed to save credential: %w", err)
	}
	return nil
}

// Clear removes the stored key.
func (s *Store) Clear(ctx context.Context) error {
	if err := s.storage.Remove(ctx, StorageKey); err != nil {
		return fmt.Errorf("failed to clear credential: %w", err)
	}
	return nil
}

// Mask returns key with all but the last four characters hidden.
func Mask(key string) string {
	if len(key) <= 4 {
		return strings.Repeat("*", len(key))
	}
	return strings.Repeat("*", len(key)-4) + key[len(key)-4:]
}
