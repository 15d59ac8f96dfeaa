// Package sessionstore persists server-minted login sessions. The session id
// is the only credential a desktop client ever holds; the upstream Google
// tokens stay inside the record and never cross the API boundary.
package sessionstore

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/puku-sh/puku-auth/internal/errors"
	"github.com/puku-sh/puku-auth/kvstore"
)

const keyPrefix = "session:"

// SessionRecord is the server-side view of an authenticated session.
type SessionRecord struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	Name         string    `json:"name"`
	Picture      string    `json:"picture"`
	AccessToken  string    `json:"accessToken"`
	RefreshToken string    `json:"refreshToken,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
}

// PublicUser is the subset of a SessionRecord that may be returned to
// clients.
type PublicUser struct {
	ID      string `json:"id"`
	Email   string `json:"email"`
	Name    string `json:"name"`
	Picture string `json:"picture"`
}

// Public returns the client-visible view of the record.
func (r SessionRecord) Public() PublicUser {
	return PublicUser{ID: r.ID, Email: r.Email, Name: r.Name, Picture: r.Picture}
}

// Repo stores session records keyed by the opaque session id.
type Repo interface {
	Upsert(ctx context.Context, sessionID string, record SessionRecord) error
	Get(ctx context.Context, sessionID string) (SessionRecord, error)
	Delete(ctx context.Context, sessionID string) error
}

type repo struct {
	store kvstore.Store
	ttl   time.Duration
}

// New creates a session repo over the given store.
func New(store kvstore.Store, ttl time.Duration) Repo {
	return &repo{store: store, ttl: ttl}
}

func (r *repo) Upsert(ctx context.Context, sessionID string, record SessionRecord) error {
	if sessionID == "" {
		return fmt.Errorf("sessionID is required")
	}

	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}

	return r.store.Put(ctx, keyPrefix+sessionID, string(data), r.ttl)
}

func (r *repo) Get(ctx context.Context, sessionID string) (SessionRecord, error) {
	if sessionID == "" {
		return SessionRecord{}, fmt.Errorf("sessionID is required")
	}

	data, err := r.store.Get(ctx, keyPrefix+sessionID)
	if err != nil {
		return SessionRecord{}, err
	}

	var record SessionRecord
	if err := json.Unmarshal([]byte(data), &record); err != nil {
		// A corrupt record is a distinct failure mode from an absent one
		return SessionRecord{}, errors.Wrapf(errors.ErrParse, "session %q", sessionID)
	}

	return record, nil
}

func (r *repo) Delete(ctx context.Context, sessionID string) error {
	if sessionID == "" {
		return fmt.Errorf("sessionID is required")
	}
	return r.store.Delete(ctx, keyPrefix+sessionID)
}
