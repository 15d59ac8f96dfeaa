package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/puku-sh/puku-auth/server/sessionstore"
)

const mirrorTimeout = 10 * time.Second

// subscriptionMirror upserts the signed-in user's profile into the external
// subscription service. The call is strictly best-effort: user creation is
// idempotent downstream, a duplicate is expected, and no outcome here may
// influence the authentication flow.
type subscriptionMirror struct {
	url        string
	httpClient *http.Client
	logger     zerolog.Logger
}

func newSubscriptionMirror(url string) *subscriptionMirror {
	return &subscriptionMirror{
		url:        url,
		httpClient: &http.Client{Timeout: mirrorTimeout},
		logger:     log.With().Str("component", "subscription-mirror").Logger(),
	}
}

// MirrorProfile posts the public profile to the subscription service.
// Intended to run on its own goroutine; all failures are logged and dropped.
func (m *subscriptionMirror) MirrorProfile(user sessionstore.PublicUser) {
	if m.url == "" {
		return
	}

	body, err := json.Marshal(user)
	if err != nil {
		m.logger.Warn().Err(err).Msg("failed to marshal profile")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), mirrorTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.url, bytes.NewReader(body))
	if err != nil {
		m.logger.Warn().Err(err).Msg("failed to build mirror request")
		return
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := m.httpClient.Do(req)
	if err != nil {
		m.logger.Warn().Err(err).Str("email", user.Email).Msg("profile mirror failed")
		return
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode < 300:
		m.logger.Debug().Str("email", user.Email).Msg("profile mirrored")
	case resp.StatusCode == http.StatusConflict:
		// Already exists, nothing to do
	default:
		m.logger.Warn().Int("status", resp.StatusCode).Str("email", user.Email).Msg("profile mirror rejected")
	}
}
