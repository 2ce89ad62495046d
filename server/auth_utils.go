package server

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"
)

const (
	// authTokenCookieName holds the bearer token
	authTokenCookieName = "auth_token"
	// sessionIDCookieName holds the session id
	sessionIDCookieName = "session_id"

	sessionIDHeader = "X-Session-ID"
	contentTypeJSON = "application/json; charset=utf-8"
)

// credentials are what a client presents to prove it holds a session.
type credentials struct {
	SessionID string
	Token     string
}

// readCredentials reads the session cookies, falling back to the Authorization and X-Session-ID headers.
func readCredentials(r *http.Request) credentials {
	var c credentials
	if cookie, err := r.Cookie(authTokenCookieName); err == nil {
		c.Token = cookie.Value
	}
	if cookie, err := r.Cookie(sessionIDCookieName); err == nil {
		c.SessionID = cookie.Value
	}
	if c.Token == "" {
		c.Token = bearerToken(r)
	}
	if c.SessionID == "" {
		c.SessionID = strings.TrimSpace(r.Header.Get(sessionIDHeader))
	}
	return c
}

func bearerToken(r *http.Request) string {
	parts := strings.SplitN(r.Header.Get("Authorization"), " ", 2)
	if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

func setCookie(w http.ResponseWriter, name, value string, maxAge time.Duration) {
	seconds := int(maxAge / time.Second)
	if seconds <= 0 {
		seconds = 1
	}
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		HttpOnly: true,
		Secure:   true,
		SameSite: http.SameSiteStrictMode,
		MaxAge:   seconds,
	})
}

func (s *Server) setSessionCookies(w http.ResponseWriter, sessionID, token string, accessExpiry, refreshExpiry time.Time) {
	now := s.nowTime()
	setCookie(w, authTokenCookieName, token, accessExpiry.Sub(now))
	setCookie(w, sessionIDCookieName, sessionID, refreshExpiry.Sub(now))
}

func clearSessionCookies(w http.ResponseWriter) {
	for _, name := range []string{authTokenCookieName, sessionIDCookieName} {
		http.SetCookie(w, &http.Cookie{
			Name:     name,
			Value:    "",
			Path:     "/",
			HttpOnly: true,
			Secure:   true,
			SameSite: http.SameSiteStrictMode,
			MaxAge:   -1,
		})
	}
}

func writeJSON(w http.ResponseWriter, statusCode int, body any) {
	w.Header().Set("Content-Type", contentTypeJSON)
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(body)
}

func writeJSONError(w http.ResponseWriter, errorCode, description string, statusCode int) {
	writeJSON(w, statusCode, map[string]string{
		"error":             errorCode,
		"error_description": description,
	})
}
