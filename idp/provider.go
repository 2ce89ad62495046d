package idp

import (
	"context"
	"errors"
	"time"
)

var ErrNoAccessToken = errors.New("provider returned no access token")

// Tokens is what the provider's token endpoint returned for an authorization code.
type Tokens struct {
	AccessToken  string
	RefreshToken string
	IDToken      string
	Expiry       time.Time
}

// Profile is the subset of the provider's userinfo the broker needs.
type Profile struct {
	Subject       string
	Email         string
	EmailVerified bool
	Name          string
	Picture       string
}

// IdentityProvider is the upstream authorization server the broker logs users in with.
type IdentityProvider interface {
	Name() string
	// AuthCodeURL builds the provider authorization URL for a PKCE S256 login.
	AuthCodeURL(state, codeChallenge string) string
	// Exchange trades an authorization code for tokens. It is attempted at most once per code.
	Exchange(ctx context.Context, code, codeVerifier string) (*Tokens, error)
	UserInfo(ctx context.Context, tokens *Tokens) (*Profile, error)
}

// ExchangeError is returned by Exchange. Code holds the provider's OAuth error code
// (e.g. "invalid_grant") when the token endpoint returned one.
type ExchangeError struct {
	Code string
	Err  error
}

func (e *ExchangeError) Error() string {
	if e.Code == "" {
		return "token exchange: " + e.Err.Error()
	}
	return "token exchange: " + e.Code + ": " + e.Err.Error()
}

func (e *ExchangeError) Unwrap() error {
	return e.Err
}

// ExchangeErrorCode returns the provider error code carried by err, or "".
func ExchangeErrorCode(err error) string {
	var exErr *ExchangeError
	if errors.As(err, &exErr) {
		return exErr.Code
	}
	return ""
}
