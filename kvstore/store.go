// Package kvstore provides the expiring key-value store backing the
// authorization service: short-lived callback-state entries and longer-lived
// session records both live here, keyed by prefix.
package kvstore

import (
	"context"
	"time"

	"github.com/puku-sh/puku-auth/internal/errors"
)

// ErrNotFound is returned by Get when a key is absent or expired.
var ErrNotFound = errors.ErrNotFound

// Store is a key-value store with per-entry expiration. Keys are never
// scanned, only addressed directly.
type Store interface {
	// Put stores value under key. A zero ttl means no expiry.
	Put(ctx context.Context, key, value string, ttl time.Duration) error
	// Get returns the value for key, or ErrNotFound.
	Get(ctx context.Context, key string) (string, error)
	// Delete removes key. Deleting an absent key is not an error.
	Delete(ctx context.Context, key string) error
}
