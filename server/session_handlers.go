package server

import (
	"net/http"
	"time"

	"github.com/puku-sh/puku-auth/internal/errors"
)

type sessionResponse struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	Picture   string    `json:"picture"`
	CreatedAt time.Time `json:"createdAt"`
}

// SessionHandler validates a bearer session token and returns the public
// profile subset. The upstream Google tokens never leave the server.
func (s *Server) SessionHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token, ok := bearerToken(r)
		if !ok {
			writeJSONError(w, "Invalid or expired session", http.StatusUnauthorized)
			return
		}

		record, err := s.sessions.Get(r.Context(), token)
		if err != nil {
			if !errors.Is(err, errors.ErrNotFound) {
				s.logger.Warn().Err(err).Msg("session lookup failed")
			}
			writeJSONError(w, "Invalid or expired session", http.StatusUnauthorized)
			return
		}

		writeJSON(w, http.StatusOK, sessionResponse{
			ID:        record.ID,
			Email:     record.Email,
			Name:      record.Name,
			Picture:   record.Picture,
			CreatedAt: record.CreatedAt,
		})
	}
}

// LogoutHandler deletes the bearer session unconditionally. An absent or
// already-deleted session is not an error: logging out twice succeeds.
func (s *Server) LogoutHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if token, ok := bearerToken(r); ok {
			if err := s.sessions.Delete(r.Context(), token); err != nil {
				s.logger.Warn().Err(err).Msg("session delete failed")
			}
		}

		writeJSON(w, http.StatusOK, map[string]bool{"success": true})
	}
}

type statusResponse struct {
	Authenticated bool `json:"authenticated"`
	User          any  `json:"user,omitempty"`
}

// StatusHandler is the cheap polling endpoint: it never errors, it only
// reports whether the presented token maps to a live session.
func (s *Server) StatusHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token, ok := bearerToken(r)
		if !ok {
			writeJSON(w, http.StatusOK, statusResponse{Authenticated: false})
			return
		}

		record, err := s.sessions.Get(r.Context(), token)
		if err != nil {
			writeJSON(w, http.StatusOK, statusResponse{Authenticated: false})
			return
		}

		writeJSON(w, http.StatusOK, statusResponse{
			Authenticated: true,
			User:          record.Public(),
		})
	}
}
