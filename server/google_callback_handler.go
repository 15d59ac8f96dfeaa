package server

import (
	"fmt"
	"html/template"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/oauth2"

	"github.com/puku-sh/puku-auth/internal/errors"
	"github.com/puku-sh/puku-auth/server/sessionstore"
)

// successPage is the browser-facing landing page after a completed exchange.
// The clickable link hands control back to the desktop app; the raw token is
// shown as a manual fallback for environments where the custom URI scheme
// cannot be dispatched automatically.
var successPage = template.Must(template.New("success").Parse(`<!DOCTYPE html>
<html>
<head><title>Signed in</title></head>
<body>
<h1>You're signed in</h1>
<p><a href="{{.RedirectURI}}">Return to Puku Editor</a></p>
<p>If the editor does not open automatically, copy this token into the editor:</p>
<p><code id="token">{{.Token}}</code>
<button onclick="navigator.clipboard.writeText(document.getElementById('token').textContent)">Copy</button></p>
</body>
</html>
`))

type googleUserClaims struct {
	Sub     string `json:"sub"`
	Email   string `json:"email"`
	Name    string `json:"name"`
	Picture string `json:"picture"`
}

// GoogleCallbackHandler completes the flow Google redirects back into:
// recover the caller's return URI from state, exchange the code, fetch the
// user profile, mint an opaque session, and hand the browser a page linking
// back into the desktop app with the new token.
func (s *Server) GoogleCallbackHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		code := r.URL.Query().Get("code")
		state := r.URL.Query().Get("state")
		errorParam := r.URL.Query().Get("error")

		if errorParam != "" {
			writeJSONError(w, fmt.Sprintf("%s: %s", errors.ErrOAuthProvider, errorParam), http.StatusBadRequest)
			return
		}

		if code == "" {
			writeJSONError(w, errors.ErrMissingCode.Error(), http.StatusBadRequest)
			return
		}

		// Recover and consume the caller's return URI. A miss means the
		// caller expressed no preference, not a failure.
		var returnURI string
		if state != "" {
			uri, err := s.callbackStates.Take(r.Context(), state)
			if err != nil && !errors.Is(err, errors.ErrNotFound) {
				s.logger.Error().Err(err).Msg("callback state lookup failed")
				writeJSONError(w, "failed to complete sign-in", http.StatusInternalServerError)
				return
			}
			returnURI = uri
		}

		token, err := s.oauthConfig.Exchange(r.Context(), code)
		if err != nil {
			s.logger.Warn().Err(err).Msg("code exchange failed")
			writeJSONError(w, errors.ErrTokenExchange.Error(), http.StatusBadRequest)
			return
		}

		userInfo, err := s.provider.UserInfo(r.Context(), oauth2.StaticTokenSource(token))
		if err != nil {
			s.logger.Warn().Err(err).Msg("userinfo fetch failed")
			writeJSONError(w, errors.ErrUserInfo.Error(), http.StatusBadRequest)
			return
		}

		var claims googleUserClaims
		if err := userInfo.Claims(&claims); err != nil {
			s.logger.Warn().Err(err).Msg("userinfo claims malformed")
			writeJSONError(w, errors.ErrUserInfo.Error(), http.StatusBadRequest)
			return
		}
		if claims.Sub == "" {
			claims.Sub = userInfo.Subject
		}

		sessionID := generateRandomHex(s.config.GetTokenLength())
		record := sessionstore.SessionRecord{
			ID:           claims.Sub,
			Email:        claims.Email,
			Name:         claims.Name,
			Picture:      claims.Picture,
			AccessToken:  token.AccessToken,
			RefreshToken: token.RefreshToken,
			CreatedAt:    time.Now().UTC(),
		}
		if err := s.sessions.Upsert(r.Context(), sessionID, record); err != nil {
			s.logger.Error().Err(err).Msg("failed to store session")
			writeJSONError(w, "failed to create session", http.StatusInternalServerError)
			return
		}

		// Profile mirroring must never block or fail the sign-in
		go s.subscriptions.MirrorProfile(record.Public())

		redirectURI := appendTokenParams(s.defaultedReturnURI(returnURI), sessionID, state)

		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		if err := successPage.Execute(w, map[string]string{
			"RedirectURI": redirectURI,
			"Token":       sessionID,
		}); err != nil {
			s.logger.Error().Err(err).Msg("failed to render success page")
		}
	}
}

func (s *Server) defaultedReturnURI(returnURI string) string {
	if returnURI == "" {
		return s.config.GetDefaultRedirectURI()
	}
	return returnURI
}

// appendTokenParams attaches token and state to the return URI, respecting
// any query string it already carries.
func appendTokenParams(redirectURI, token, state string) string {
	params := url.Values{}
	params.Set("token", token)
	if state != "" {
		params.Set("state", state)
	}

	separator := "?"
	if strings.Contains(redirectURI, "?") {
		separator = "&"
	}
	return redirectURI + separator + params.Encode()
}
