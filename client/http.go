package client

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/puku-sh/puku-auth/internal/errors"
)

// remoteSession is the strict schema of a /auth/session response. A body
// that does not decode into it is a parse failure, distinct from a network
// failure or a 401.
type remoteSession struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	Picture   string    `json:"picture"`
	CreatedAt time.Time `json:"createdAt"`
}

func (r remoteSession) user() User {
	return User{ID: r.ID, Email: r.Email, Name: r.Name, Picture: r.Picture}
}

// fetchSession validates token against the authorization service and returns
// the user profile it maps to.
func (c *AuthClient) fetchSession(ctx context.Context, token string) (remoteSession, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/auth/session", nil)
	if err != nil {
		return remoteSession{}, errors.Wrapf(err, "failed to build session request")
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return remoteSession{}, errors.Wrapf(err, "session validation request failed")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return remoteSession{}, fmt.Errorf("%w (status %d)", errors.ErrInvalidSession, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return remoteSession{}, errors.Wrapf(err, "failed to read session response")
	}

	var remote remoteSession
	if err := json.Unmarshal(body, &remote); err != nil {
		return remoteSession{}, errors.Wrapf(errors.ErrParse, "session response")
	}

	return remote, nil
}

// logout revokes token server-side. Callers treat failure as advisory.
func (c *AuthClient) logout(ctx context.Context, token string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/auth/logout", nil)
	if err != nil {
		return errors.Wrapf(err, "failed to build logout request")
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return errors.Wrapf(err, "logout request failed")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("logout returned status %d", resp.StatusCode)
	}
	return nil
}
