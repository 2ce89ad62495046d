package auth

import (
	"context"

	apperrors "github.com/jrsteele09/go-login-broker/internal/errors"
	"github.com/jrsteele09/go-login-broker/loginsession"
	"github.com/jrsteele09/go-login-broker/metrics"
	"github.com/jrsteele09/go-login-broker/users"
	"github.com/pkg/errors"
)

// VerifyResult describes a verified session. Token is set only when the session was
// refreshed and the client must replace its bearer token.
type VerifyResult struct {
	User      users.User
	Session   loginsession.Session
	Token     string
	Refreshed bool
}

// Verify checks a bearer token against its session, refreshing the session in place
// when the access expiry has passed but the refresh window is still open.
//
// Errors: ErrMissingCredentials, ErrSessionNotFound, ErrTokenMismatch and ErrSessionExpired
// from internal/errors.
func (as *AuthorizationService) Verify(ctx context.Context, sessionID, bearer string) (*VerifyResult, error) {
	if sessionID == "" || bearer == "" {
		as.metrics.Verified(metrics.VerifyMissing)
		return nil, apperrors.ErrMissingCredentials
	}

	session, err := as.repos.Sessions.Get(ctx, sessionID)
	if errors.Is(err, loginsession.ErrNotFound) {
		as.metrics.Verified(metrics.VerifyNotFound)
		return nil, apperrors.ErrSessionNotFound
	}
	if err != nil {
		as.metrics.Verified(metrics.VerifyError)
		return nil, errors.Wrap(err, "[Verify] get session")
	}

	// A mismatch may be a stale client; the session is kept.
	if !as.tokens.Matches(bearer, session.TokenDigest) {
		as.metrics.Verified(metrics.VerifyMismatch)
		return nil, apperrors.ErrTokenMismatch
	}

	now := as.nowTime()
	if !session.AccessExpired(now) {
		as.metrics.Verified(metrics.VerifyValid)
		return &VerifyResult{User: session.User, Session: session}, nil
	}

	if !session.Refreshable(now) {
		if err := as.repos.Sessions.Delete(ctx, session.ID); err != nil {
			as.logger.Warn().Err(err).Str("session_id", session.ID).Msg("failed to delete expired session")
		}
		as.metrics.Verified(metrics.VerifyExpired)
		return nil, apperrors.ErrSessionExpired
	}

	result, err := as.refresh(ctx, session)
	if err != nil {
		as.metrics.Verified(metrics.VerifyError)
		return nil, err
	}
	as.metrics.Verified(metrics.VerifyRefreshed)
	return result, nil
}

// refresh rotates the bearer token and resets the access expiry, keeping the session id.
func (as *AuthorizationService) refresh(ctx context.Context, session loginsession.Session) (*VerifyResult, error) {
	now := as.nowTime()
	accessExpiry := now.Add(as.settings.AccessTTL)
	if accessExpiry.After(session.RefreshExpiresAt) {
		accessExpiry = session.RefreshExpiresAt
	}

	bearer, err := as.tokens.Mint(session.ID, session.User.ID, accessExpiry)
	if err != nil {
		return nil, errors.Wrap(err, "[refresh] mint token")
	}
	session.TokenDigest = as.tokens.Digest(bearer)
	session.AccessExpiresAt = accessExpiry

	if err := as.repos.Sessions.Upsert(ctx, session); err != nil {
		return nil, errors.Wrap(err, "[refresh] store session")
	}

	as.logger.Info().Str("session_id", session.ID).Msg("session refreshed")
	return &VerifyResult{User: session.User, Session: session, Token: bearer, Refreshed: true}, nil
}

// Logout deletes the session. It is best effort: storage failures are logged, not returned.
func (as *AuthorizationService) Logout(ctx context.Context, sessionID string) {
	as.metrics.LoggedOut()
	if sessionID == "" {
		return
	}
	if err := as.repos.Sessions.Delete(ctx, sessionID); err != nil {
		as.logger.Warn().Err(err).Str("session_id", sessionID).Msg("failed to delete session on logout")
	}
}

// SessionIDFromToken recovers the session id a bearer token was issued for.
func (as *AuthorizationService) SessionIDFromToken(bearer string) (string, error) {
	return as.tokens.SessionID(bearer)
}
