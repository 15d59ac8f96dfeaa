package server

import (
	"net/http"

	"golang.org/x/oauth2"
)

// GoogleLoginHandler starts the authorization-code flow by redirecting the
// browser to Google. When the caller supplies a callback URI it is parked in
// the correlation store under a fresh state value so the callback handler can
// route control back; without a callback no state is threaded through.
func (s *Server) GoogleLoginHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		opts := []oauth2.AuthCodeOption{
			oauth2.AccessTypeOffline,
			oauth2.SetAuthURLParam("prompt", "consent"),
		}

		var state string
		if callback := r.URL.Query().Get("callback"); callback != "" {
			state = generateRandomHex(s.config.GetTokenLength())
			if err := s.callbackStates.Save(r.Context(), state, callback); err != nil {
				s.logger.Error().Err(err).Msg("failed to save callback state")
				writeJSONError(w, "failed to start sign-in", http.StatusInternalServerError)
				return
			}
		}

		// No session state is created here; AuthCodeURL omits the state
		// parameter when it is empty
		http.Redirect(w, r, s.oauthConfig.AuthCodeURL(state, opts...), http.StatusFound)
	}
}
