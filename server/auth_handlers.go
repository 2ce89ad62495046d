package server

import (
	"net/http"

	"github.com/jrsteele09/go-login-broker/auth"
	apperrors "github.com/jrsteele09/go-login-broker/internal/errors"
	"github.com/jrsteele09/go-login-broker/internal/utils"
	"github.com/jrsteele09/go-login-broker/oauthmodel"
	"github.com/jrsteele09/go-login-broker/popup"
	"github.com/jrsteele09/go-login-broker/users"
)

// verifyResponse is the body of RouteVerify.
type verifyResponse struct {
	Valid bool        `json:"valid"`
	User  *users.User `json:"user,omitempty"`
	Error string      `json:"error,omitempty"`
}

// GoogleLoginHandler stores the login transaction and redirects the popup to Google.
func (s *Server) GoogleLoginHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		params := oauthmodel.LoginParametersFromQuery(r.URL.Query())

		redirectURL, err := s.auth.Initiate(r.Context(), params)
		if apperrors.Is(err, apperrors.ErrInvalidRequest) {
			writeJSONError(w, "invalid_request", err.Error(), http.StatusBadRequest)
			return
		}
		if err != nil {
			s.logger.Error().Err(err).Msg("failed to initiate login")
			writeJSONError(w, "server_error", "failed to start login", http.StatusInternalServerError)
			return
		}

		w.Header().Set("Cache-Control", "no-store")
		http.Redirect(w, r, redirectURL, http.StatusFound)
	}
}

// GoogleCallbackHandler completes the login and always answers with the completion page.
func (s *Server) GoogleCallbackHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		params := oauthmodel.CallbackParametersFromQuery(r.URL.Query())

		var outcome popup.Outcome
		result, err := s.auth.Callback(r.Context(), params)
		if err != nil {
			outcome = auth.AsRejection(err).Failure()
		} else {
			s.setSessionCookies(w, result.Session.ID, result.Token, result.Session.AccessExpiresAt, result.Session.RefreshExpiresAt)
			outcome = popup.Success{User: result.Identity(), SessionID: result.Session.ID}
		}

		if err := s.page.Render(w, outcome); err != nil {
			s.logger.Error().Err(err).Msg("failed to render completion page")
		}
	}
}

// VerifyHandler reports whether the presented credentials belong to a live session.
func (s *Server) VerifyHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		creds := readCredentials(r)

		result, err := s.auth.Verify(r.Context(), creds.SessionID, creds.Token)
		switch {
		case err == nil:
		case apperrors.Is(err, apperrors.ErrMissingCredentials):
			writeJSON(w, http.StatusUnauthorized, verifyResponse{Error: "missing credentials"})
			return
		case apperrors.Is(err, apperrors.ErrSessionNotFound):
			writeJSON(w, http.StatusNotFound, verifyResponse{Error: "session not found"})
			return
		case apperrors.Is(err, apperrors.ErrTokenMismatch):
			writeJSON(w, http.StatusUnauthorized, verifyResponse{Error: "invalid token"})
			return
		case apperrors.Is(err, apperrors.ErrSessionExpired):
			clearSessionCookies(w)
			writeJSON(w, http.StatusUnauthorized, verifyResponse{Error: "session expired"})
			return
		default:
			s.logger.Error().Err(err).Msg("failed to verify session")
			writeJSON(w, http.StatusInternalServerError, verifyResponse{Error: "internal error"})
			return
		}

		if result.Refreshed {
			s.setSessionCookies(w, result.Session.ID, result.Token, result.Session.AccessExpiresAt, result.Session.RefreshExpiresAt)
		}
		writeJSON(w, http.StatusOK, verifyResponse{Valid: true, User: utils.Ptr(result.User)})
	}
}

// LogoutHandler deletes the session if there is one. It always succeeds.
func (s *Server) LogoutHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		creds := readCredentials(r)
		sessionID := creds.SessionID
		if sessionID == "" && creds.Token != "" {
			if id, err := s.auth.SessionIDFromToken(creds.Token); err == nil {
				sessionID = id
			}
		}

		s.auth.Logout(r.Context(), sessionID)
		clearSessionCookies(w)
		writeJSON(w, http.StatusOK, map[string]bool{"success": true})
	}
}

func (s *Server) HealthHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}
