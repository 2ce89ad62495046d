package oauthmodel

import "errors"

var (
	ErrMissingState               = errors.New("missing state")
	ErrMissingCodeChallenge       = errors.New("missing code challenge")
	ErrInvalidCodeChallengeMethod = errors.New("invalid code challenge method")
	ErrMissingSessionID           = errors.New("missing session id")
	ErrMissingCodeVerifier        = errors.New("missing code verifier")
	ErrInvalidCodeVerifier        = errors.New("invalid code verifier")
	ErrCodeChallengeMismatch      = errors.New("code challenge does not match verifier")
	ErrMissingCode                = errors.New("missing authorization code")
	ErrMalformedState             = errors.New("state does not carry an issue time")
)
