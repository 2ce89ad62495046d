package loginsession

import (
	"context"
	"errors"
	"time"

	"github.com/jrsteele09/go-login-broker/users"
)

var ErrNotFound = errors.New("session not found")

// Session is an authenticated browser session. Only the digest of the bearer token is kept.
type Session struct {
	ID               string     `json:"id"`
	User             users.User `json:"user"`
	TokenDigest      string     `json:"token_digest"`
	RefreshToken     string     `json:"refresh_token,omitempty"` // Provider refresh token, empty if none was issued
	CreatedAt        time.Time  `json:"created_at"`
	AccessExpiresAt  time.Time  `json:"access_expires_at"`
	RefreshExpiresAt time.Time  `json:"refresh_expires_at"`
}

// AccessExpired reports whether the bearer token is past its access expiry.
func (s Session) AccessExpired(now time.Time) bool {
	return now.After(s.AccessExpiresAt)
}

// Refreshable reports whether an expired session may be renewed in place.
func (s Session) Refreshable(now time.Time) bool {
	return s.RefreshToken != "" && now.Before(s.RefreshExpiresAt)
}

type Repo interface {
	// Upsert stores the session until its refresh expiry.
	Upsert(ctx context.Context, session Session) error
	Get(ctx context.Context, sessionID string) (Session, error)
	// Delete removes the session. Deleting an absent session is not an error.
	Delete(ctx context.Context, sessionID string) error
}
