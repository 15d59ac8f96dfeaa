// Package client implements the desktop side of Puku sign-in: it drives the
// browser-based OAuth flow, correlates the custom-URI callback back to the
// waiting caller, and owns the persisted login session across restarts.
package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/puku-sh/puku-auth/internal/errors"
)

const (
	// Storage keys. Both are always written and cleared together.
	storageKeyToken = "pukuSessionToken"
	storageKeyUser  = "pukuUser"

	// CallbackPath is the path component of the custom URI the service
	// redirects the browser to.
	CallbackPath = "/auth/callback"

	signInTimeout  = 5 * time.Minute
	requestTimeout = 30 * time.Second
)

// User is the profile subset persisted locally so that display does not
// require a network call.
type User struct {
	ID      string `json:"id"`
	Email   string `json:"email"`
	Name    string `json:"name"`
	Picture string `json:"picture"`
}

// Session is the locally held login session. SessionToken is the opaque
// server-minted credential that authorizes API calls.
type Session struct {
	User         User      `json:"user"`
	SessionToken string    `json:"sessionToken"`
	CreatedAt    time.Time `json:"createdAt"`
}

type signInResult struct {
	session *Session
	err     error
}

// pendingSignIn correlates the single in-flight SignInWithGoogle call with
// the eventual URI callback. The buffered channel lets whichever settlement
// path runs first deposit its result without blocking.
type pendingSignIn struct {
	done chan signInResult
}

// Config carries the host-provided primitives the client depends on.
type Config struct {
	// BaseURL of the authorization service, e.g. "https://auth.puku.sh".
	BaseURL string
	// Scheme and Authority of the custom callback URI registered with the
	// OS, e.g. "puku" and "puku.puku-editor".
	Scheme    string
	Authority string
	// Storage persists the session across restarts.
	Storage SecretStorage
	// OpenBrowser opens a URL in the user's external browser.
	// Defaults to the system browser.
	OpenBrowser func(url string) error
	// HTTPClient used for service calls. Defaults to a 30s-timeout client.
	HTTPClient *http.Client
	// SignInTimeout bounds how long SignInWithGoogle waits for the
	// callback. Defaults to five minutes.
	SignInTimeout time.Duration
}

// AuthClient is the process-lifetime owner of the authenticated session.
// Construct one per process with New; tests may build as many as they like.
type AuthClient struct {
	baseURL     string
	scheme      string
	authority   string
	storage     SecretStorage
	openBrowser func(url string) error
	httpClient  *http.Client
	timeout     time.Duration
	logger      zerolog.Logger

	mu        sync.Mutex
	session   *Session
	pending   *pendingSignIn
	listeners []func(*Session)
}

// New creates an AuthClient. It performs no I/O; call Initialize to restore
// a persisted session.
func New(cfg Config) (*AuthClient, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("[client New] BaseURL is required")
	}
	if cfg.Scheme == "" || cfg.Authority == "" {
		return nil, fmt.Errorf("[client New] Scheme and Authority are required")
	}
	if cfg.Storage == nil {
		return nil, fmt.Errorf("[client New] Storage is required")
	}

	openBrowser := cfg.OpenBrowser
	if openBrowser == nil {
		openBrowser = DefaultBrowserOpener
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: requestTimeout}
	}
	timeout := cfg.SignInTimeout
	if timeout == 0 {
		timeout = signInTimeout
	}

	return &AuthClient{
		baseURL:     strings.TrimRight(cfg.BaseURL, "/"),
		scheme:      cfg.Scheme,
		authority:   cfg.Authority,
		storage:     cfg.Storage,
		openBrowser: openBrowser,
		httpClient:  httpClient,
		timeout:     timeout,
		logger:      log.With().Str("component", "authclient").Logger(),
	}, nil
}

// OnSessionChange registers a listener invoked with the new session after
// sign-in and restore, and with nil after sign-out.
func (c *AuthClient) OnSessionChange(fn func(*Session)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.listeners = append(c.listeners, fn)
}

// IsAuthenticated reports whether an in-memory session exists. No network or
// storage access.
func (c *AuthClient) IsAuthenticated() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session != nil
}

// Session returns a copy of the current session, or nil when signed out.
func (c *AuthClient) Session() *Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.session == nil {
		return nil
	}
	session := *c.session
	return &session
}

// SessionToken returns the current bearer token, or "" when signed out.
func (c *AuthClient) SessionToken() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.session == nil {
		return ""
	}
	return c.session.SessionToken
}

// SignInWithGoogle opens the external browser at the authorization service
// and blocks until the OS dispatches the callback URI to HandleURL, the
// five-minute timeout fires, or ctx is cancelled. Only one sign-in may be in
// flight; a concurrent call fails fast with ErrSignInInProgress.
func (c *AuthClient) SignInWithGoogle(ctx context.Context) (*Session, error) {
	pending := &pendingSignIn{done: make(chan signInResult, 1)}

	c.mu.Lock()
	if c.pending != nil {
		c.mu.Unlock()
		return nil, errors.ErrSignInInProgress
	}
	c.pending = pending
	c.mu.Unlock()

	signInURL := c.baseURL + "/auth/google?callback=" + url.QueryEscape(c.callbackURI())
	if err := c.openBrowser(signInURL); err != nil {
		c.abandonPending(pending)
		return nil, errors.Wrapf(err, "failed to open browser")
	}

	timer := time.NewTimer(c.timeout)
	defer timer.Stop()

	select {
	case res := <-pending.done:
		return res.session, res.err
	case <-timer.C:
		if c.abandonPending(pending) {
			return nil, errors.ErrSignInTimeout
		}
		// The callback won the race against the timeout
		res := <-pending.done
		return res.session, res.err
	case <-ctx.Done():
		if c.abandonPending(pending) {
			return nil, ctx.Err()
		}
		res := <-pending.done
		return res.session, res.err
	}
}

// HandleURL is invoked by the host's URI-scheme dispatcher for every URI on
// our scheme. It returns false for URIs that are not the sign-in callback,
// true for ones it claimed, even malformed ones.
func (c *AuthClient) HandleURL(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	if !strings.EqualFold(u.Scheme, c.scheme) || !strings.EqualFold(u.Host, c.authority) || u.Path != CallbackPath {
		return false
	}

	token := tokenFromQuery(u.RawQuery)
	if token == "" {
		c.logger.Warn().Str("uri", u.Path).Msg("callback carried no token")
		c.settlePending(signInResult{err: errors.ErrNoTokenInCallback})
		return true
	}

	ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	defer cancel()

	session, err := c.completeSignIn(ctx, token)
	if err != nil {
		c.logger.Warn().Err(err).Msg("callback validation failed")
		c.settlePending(signInResult{err: err})
		return true
	}

	c.settlePending(signInResult{session: session})
	return true
}

// Initialize restores a previously persisted session, re-validating it with
// the authorization service. Any inconsistency degrades to signed-out; the
// caller never sees an error.
func (c *AuthClient) Initialize(ctx context.Context) {
	token, err := c.storage.Get(storageKeyToken)
	if err != nil || token == "" {
		return
	}
	userJSON, err := c.storage.Get(storageKeyUser)
	if err != nil || userJSON == "" {
		return
	}

	remote, err := c.fetchSession(ctx, token)
	if err != nil {
		c.logger.Debug().Err(err).Msg("persisted session no longer valid")
		c.clearStorage()
		return
	}

	session := &Session{
		User:         remote.user(),
		SessionToken: token,
		CreatedAt:    remote.CreatedAt,
	}
	// Refresh the persisted profile copy with what the server returned
	c.persistSession(session)

	c.mu.Lock()
	c.session = session
	c.mu.Unlock()
	c.notifySessionChange(session)
}

// SignOut revokes the session server-side on a best-effort basis, then
// always clears local state. It succeeds even when the network call fails.
func (c *AuthClient) SignOut(ctx context.Context) {
	token := c.SessionToken()
	if token == "" {
		// Fall back to the persisted token so a pre-Initialize sign-out
		// still revokes server-side
		token, _ = c.storage.Get(storageKeyToken)
	}

	if token != "" {
		if err := c.logout(ctx, token); err != nil {
			c.logger.Debug().Err(err).Msg("server-side logout failed")
		}
	}

	c.mu.Lock()
	c.session = nil
	c.mu.Unlock()
	c.clearStorage()
	c.notifySessionChange(nil)
}

func (c *AuthClient) callbackURI() string {
	return c.scheme + "://" + c.authority + CallbackPath
}

// completeSignIn validates the token, persists the resulting session, and
// publishes the change.
func (c *AuthClient) completeSignIn(ctx context.Context, token string) (*Session, error) {
	remote, err := c.fetchSession(ctx, token)
	if err != nil {
		return nil, err
	}

	session := &Session{
		User:         remote.user(),
		SessionToken: token,
		CreatedAt:    remote.CreatedAt,
	}
	c.persistSession(session)

	c.mu.Lock()
	c.session = session
	c.mu.Unlock()
	c.notifySessionChange(session)

	return session, nil
}

// settlePending delivers a terminal outcome to the waiting sign-in, if any.
// Settling with no pending slot is a no-op: the timeout may already have
// claimed it.
func (c *AuthClient) settlePending(res signInResult) {
	c.mu.Lock()
	pending := c.pending
	c.pending = nil
	c.mu.Unlock()

	if pending != nil {
		pending.done <- res
	}
}

// abandonPending clears the pending slot if it is still ours, reporting
// whether we won the race against a concurrent settlement.
func (c *AuthClient) abandonPending(pending *pendingSignIn) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.pending == pending {
		c.pending = nil
		return true
	}
	return false
}

func (c *AuthClient) persistSession(session *Session) {
	userJSON, err := json.Marshal(session.User)
	if err != nil {
		c.logger.Warn().Err(err).Msg("failed to marshal user profile")
		return
	}
	if err := c.storage.Set(storageKeyToken, session.SessionToken); err != nil {
		c.logger.Warn().Err(err).Msg("failed to persist session token")
	}
	if err := c.storage.Set(storageKeyUser, string(userJSON)); err != nil {
		c.logger.Warn().Err(err).Msg("failed to persist user profile")
	}
}

func (c *AuthClient) clearStorage() {
	if err := c.storage.Delete(storageKeyToken); err != nil {
		c.logger.Warn().Err(err).Msg("failed to clear session token")
	}
	if err := c.storage.Delete(storageKeyUser); err != nil {
		c.logger.Warn().Err(err).Msg("failed to clear user profile")
	}
}

func (c *AuthClient) notifySessionChange(session *Session) {
	c.mu.Lock()
	listeners := make([]func(*Session), len(c.listeners))
	copy(listeners, c.listeners)
	c.mu.Unlock()

	for _, fn := range listeners {
		fn(session)
	}
}

// tokenFromQuery extracts the token parameter, retrying after unescaping to
// cover dispatchers that deliver the whole query string percent-encoded.
func tokenFromQuery(rawQuery string) string {
	if params, err := url.ParseQuery(rawQuery); err == nil {
		if token := params.Get("token"); token != "" {
			return token
		}
	}

	decoded, err := url.QueryUnescape(rawQuery)
	if err != nil || decoded == rawQuery {
		return ""
	}
	if params, err := url.ParseQuery(decoded); err == nil {
		return params.Get("token")
	}
	return ""
}
