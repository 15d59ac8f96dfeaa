// Package callbackstate correlates an OAuth redirect back to the return URI
// the original caller asked for. Entries are keyed by the opaque state value
// threaded through the Google redirect and are strictly single-use.
package callbackstate

import (
	"context"
	"errors"
	"time"

	"github.com/puku-sh/puku-auth/kvstore"
)

const keyPrefix = "callback:"

// Repo stores pending redirect return URIs keyed by OAuth state.
type Repo interface {
	Save(ctx context.Context, state, returnURI string) error
	// Take returns the return URI for state and deletes the entry, so a
	// replayed callback with the same state finds nothing.
	Take(ctx context.Context, state string) (string, error)
}

type repo struct {
	store kvstore.Store
	ttl   time.Duration
}

// New creates a callback-state repo over the given store.
func New(store kvstore.Store, ttl time.Duration) Repo {
	return &repo{store: store, ttl: ttl}
}

func (r *repo) Save(ctx context.Context, state, returnURI string) error {
	if state == "" {
		return errors.New("state cannot be empty")
	}
	return r.store.Put(ctx, keyPrefix+state, returnURI, r.ttl)
}

func (r *repo) Take(ctx context.Context, state string) (string, error) {
	if state == "" {
		return "", errors.New("state cannot be empty")
	}

	returnURI, err := r.store.Get(ctx, keyPrefix+state)
	if err != nil {
		return "", err
	}

	// Delete before the value is acted on: single-use is load-bearing here
	if err := r.store.Delete(ctx, keyPrefix+state); err != nil {
		return "", err
	}

	return returnURI, nil
}
