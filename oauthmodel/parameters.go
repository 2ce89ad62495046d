package oauthmodel

import (
	"net/url"
	"strings"
)

type CodeMethodType string

const (
	CodeMethodTypeS256 CodeMethodType = "S256"
)

const (
	minVerifierLength = 43
	maxVerifierLength = 128
)

// LoginParameters holds the security parameters the initiator sends when it opens the login popup.
// These are received as query parameters at the /auth/google endpoint.
type LoginParameters struct {
	// State is the anti-CSRF correlation value. The provider echoes it back on the callback
	// and it keys the stored login transaction.
	State string

	// CodeChallenge is BASE64URL(SHA256(code_verifier)), forwarded to the provider.
	CodeChallenge string

	// CodeChallengeMethod must be "S256".
	CodeChallengeMethod CodeMethodType

	// SessionID is the initiator's local correlation id for this login attempt.
	SessionID string

	// CodeVerifier travels with the transaction, not with the client, across the provider redirect.
	// Length: 43-128 characters from the unreserved set (RFC 7636 section 4.1)
	CodeVerifier string
}

// LoginParametersFromQuery reads the login parameters from a request query.
func LoginParametersFromQuery(q url.Values) LoginParameters {
	return LoginParameters{
		State:               q.Get("state"),
		CodeChallenge:       q.Get("code_challenge"),
		CodeChallengeMethod: CodeMethodType(q.Get("code_challenge_method")),
		SessionID:           q.Get("session_id"),
		CodeVerifier:        q.Get("code_verifier"),
	}
}

// Query encodes the parameters the way the /auth/google endpoint expects them.
func (p LoginParameters) Query() url.Values {
	q := url.Values{}
	q.Set("state", p.State)
	q.Set("code_challenge", p.CodeChallenge)
	q.Set("code_challenge_method", string(p.CodeChallengeMethod))
	q.Set("session_id", p.SessionID)
	q.Set("code_verifier", p.CodeVerifier)
	return q
}

// Validate checks that every parameter is present and that the challenge was derived from the verifier.
func (p LoginParameters) Validate() error {
	switch {
	case strings.TrimSpace(p.State) == "":
		return ErrMissingState
	case strings.TrimSpace(p.CodeChallenge) == "":
		return ErrMissingCodeChallenge
	case strings.TrimSpace(p.SessionID) == "":
		return ErrMissingSessionID
	case strings.TrimSpace(p.CodeVerifier) == "":
		return ErrMissingCodeVerifier
	}

	if p.CodeChallengeMethod != CodeMethodTypeS256 {
		return ErrInvalidCodeChallengeMethod
	}
	if !verifierValid(p.CodeVerifier) {
		return ErrInvalidCodeVerifier
	}
	if CodeChallengeS256(p.CodeVerifier) != p.CodeChallenge {
		return ErrCodeChallengeMismatch
	}
	return nil
}

// CallbackParameters holds what the identity provider sends back to /auth/google/callback.
type CallbackParameters struct {
	Code             string
	State            string
	Error            string // e.g. "access_denied" when the user cancels at the provider
	ErrorDescription string
}

func CallbackParametersFromQuery(q url.Values) CallbackParameters {
	return CallbackParameters{
		Code:             q.Get("code"),
		State:            q.Get("state"),
		Error:            q.Get("error"),
		ErrorDescription: q.Get("error_description"),
	}
}

// Validate only checks presence; the state itself is checked against the stored transaction.
func (p CallbackParameters) Validate() error {
	if strings.TrimSpace(p.State) == "" {
		return ErrMissingState
	}
	if strings.TrimSpace(p.Code) == "" {
		return ErrMissingCode
	}
	return nil
}

func verifierValid(verifier string) bool {
	if len(verifier) < minVerifierLength || len(verifier) > maxVerifierLength {
		return false
	}
	for _, c := range verifier {
		switch {
		case c >= 'A' && c <= 'Z', c >= 'a' && c <= 'z', c >= '0' && c <= '9':
		case c == '-', c == '.', c == '_', c == '~':
		default:
			return false
		}
	}
	return true
}
