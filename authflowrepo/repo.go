package authflowrepo

import (
	"context"
	"errors"
	"time"
)

var ErrNotFound = errors.New("auth flow state not found")

// AuthFlowState is the login transaction stored between /auth/google and its callback.
// It is written once and consumed once.
type AuthFlowState struct {
	State               string    `json:"state"`
	CodeVerifier        string    `json:"code_verifier"`
	CodeChallenge       string    `json:"code_challenge"`
	CodeChallengeMethod string    `json:"code_challenge_method"`
	ClientSessionID     string    `json:"client_session_id"`
	CreatedAt           time.Time `json:"created_at"`
}

type Repo interface {
	// Upsert stores the transaction under its state for at most ttl.
	Upsert(ctx context.Context, authState *AuthFlowState, ttl time.Duration) error
	// Consume removes and returns the transaction in one step. A state can be consumed once;
	// absent or expired states return ErrNotFound.
	Consume(ctx context.Context, state string) (*AuthFlowState, error)
}
