// Package store provides the device-local key/value storage port used for all
// persisted state, with an SQLite backend and an in-memory backend.
package store

import (
	"context"
	"errors"
)

// ErrQuotaExceeded is returned by Set when the write would push the total
// stored size over the configured quota. The previous value is kept.
var ErrQuotaExceeded = errors.New("storage quota exceeded")

// Storage is a string key/value store. Every call is durable once it returns.
type Storage interface {
	// Get returns the value for key and whether it was present.
	Get(ctx context.Context, key string) (string, bool, error)

	// Set stores value under key, replacing any previous value.
	Set(ctx context.Context, key, value string) error

	// Remove deletes key. Removing a missing key is not an error.
	Remove(ctx context.Context, key string) error
}

// Meter reports how many bytes currently count against the quota.
type Meter interface {
	Usage(ctx context.Context) (int64, error)
}

// entrySize is what a key/value pair counts against the quota.
func entrySize(key, value string) int64 {
	return int64(len(key) + len(value))
}

// withinQuota reports whether usedByOthers plus the new entry fits. A quota of
// zero or less means unlimited.
func withinQuota(quota, usedByOthers int64, key, value string) bool {
	if quota <= 0 {
		return true
	}
	return usedByOthers+entrySize(key, value) <= quota
}
