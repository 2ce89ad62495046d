package auth

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jrsteele09/go-login-broker/authflowrepo"
	"github.com/jrsteele09/go-login-broker/idp"
	apperrors "github.com/jrsteele09/go-login-broker/internal/errors"
	"github.com/jrsteele09/go-login-broker/loginsession"
	"github.com/jrsteele09/go-login-broker/oauthmodel"
	"github.com/jrsteele09/go-login-broker/popup"
	"github.com/jrsteele09/go-login-broker/users"
	"github.com/pkg/errors"
)

// CallbackResult is a newly created session and the bearer token issued for it.
type CallbackResult struct {
	Session loginsession.Session
	Token   string
}

// Identity is the user information sent to the opener window.
func (r *CallbackResult) Identity() popup.Identity {
	u := r.Session.User
	return popup.Identity{ID: u.ID, Email: u.Email, Name: u.Name, Picture: u.Picture}
}

// Callback completes a login. Every failure is returned as a *Rejection.
//
// The transaction is consumed before it is validated and before the provider is called,
// so a state can reach the token exchange at most once.
func (as *AuthorizationService) Callback(ctx context.Context, params oauthmodel.CallbackParameters) (*CallbackResult, error) {
	stage := StageCallbackReceived

	if params.Error != "" {
		return nil, as.reject(stage, popup.ProviderErrorCode(params.Error),
			errors.Errorf("provider returned error %q: %s", params.Error, params.ErrorDescription))
	}
	if err := params.Validate(); err != nil {
		return nil, as.reject(stage, popup.CodeInvalidRequest, fmt.Errorf("%w: %w", apperrors.ErrInvalidRequest, err))
	}

	flow, err := as.repos.AuthFlows.Consume(ctx, params.State)
	if errors.Is(err, authflowrepo.ErrNotFound) {
		return nil, as.reject(stage, popup.CodeSessionExpired, apperrors.ErrStateNotFound)
	}
	if err != nil {
		return nil, as.reject(stage, popup.CodeAuthFailed, errors.Wrap(err, "consume auth flow state"))
	}
	if flow.State != params.State {
		return nil, as.reject(stage, popup.CodeInvalidState, apperrors.ErrStateMismatch)
	}
	if age := as.nowTime().Sub(flow.CreatedAt); age > as.settings.AuthFlowTTL {
		return nil, as.reject(stage, popup.CodeSessionExpired, errors.Wrapf(apperrors.ErrStateExpired, "age %s", age))
	}
	stage = StageValidated

	exchangeCtx, cancel := context.WithTimeout(ctx, as.settings.ProviderTimeout)
	tokens, err := as.provider.Exchange(exchangeCtx, params.Code, flow.CodeVerifier)
	cancel()
	if err != nil {
		code := popup.ExchangeErrorCode(idp.ExchangeErrorCode(err))
		return nil, as.reject(stage, code, fmt.Errorf("%w: %w", apperrors.ErrTokenExchange, err))
	}
	stage = StageTokenExchanged

	profileCtx, cancel := context.WithTimeout(ctx, as.settings.ProviderTimeout)
	profile, err := as.provider.UserInfo(profileCtx, tokens)
	cancel()
	if err != nil {
		return nil, as.reject(stage, popup.CodeAuthFailed, fmt.Errorf("%w: %w", apperrors.ErrProfileFetch, err))
	}
	stage = StageUserFetched

	entry, allowed := as.allowlist.Lookup(profile.Email)
	if !allowed || !profile.EmailVerified {
		return nil, as.reject(stage, popup.CodeNotAuthorized,
			errors.Wrapf(apperrors.ErrNotAuthorized, "email %q verified=%t", profile.Email, profile.EmailVerified))
	}
	stage = StageAllowlistChecked

	user := users.User{
		ID:          profile.Subject,
		Email:       entry.Email,
		Name:        profile.Name,
		Picture:     profile.Picture,
		Permissions: entry.Permissions,
	}
	result, err := as.createSession(ctx, user, tokens.RefreshToken)
	if err != nil {
		return nil, as.reject(stage, popup.CodeAuthFailed, err)
	}

	as.metrics.CallbackCompleted(string(StageSessionCreated), "")
	as.logger.Info().
		Str("stage", string(StageSessionCreated)).
		Str("session_id", result.Session.ID).
		Str("client_session_id", flow.ClientSessionID).
		Str("email", user.Email).
		Msg("login completed")
	return result, nil
}

func (as *AuthorizationService) createSession(ctx context.Context, user users.User, refreshToken string) (*CallbackResult, error) {
	now := as.nowTime()
	session := loginsession.Session{
		ID:               uuid.NewString(),
		User:             user,
		RefreshToken:     refreshToken,
		CreatedAt:        now,
		AccessExpiresAt:  now.Add(as.settings.AccessTTL),
		RefreshExpiresAt: now.Add(as.settings.RefreshTTL),
	}

	bearer, err := as.tokens.Mint(session.ID, user.ID, session.AccessExpiresAt)
	if err != nil {
		return nil, errors.Wrap(err, "[createSession] mint token")
	}
	session.TokenDigest = as.tokens.Digest(bearer)

	if err := as.repos.Sessions.Upsert(ctx, session); err != nil {
		return nil, errors.Wrap(err, "[createSession] store session")
	}
	return &CallbackResult{Session: session, Token: bearer}, nil
}

func (as *AuthorizationService) reject(stage Stage, code popup.ErrorCode, err error) *Rejection {
	as.metrics.CallbackCompleted(string(stage), string(code))
	as.logger.Warn().
		Err(err).
		Str("stage", string(StageRejected)).
		Str("failed_after", string(stage)).
		Str("code", string(code)).
		Msg("login rejected")
	return &Rejection{Stage: stage, Code: code, Err: err}
}
