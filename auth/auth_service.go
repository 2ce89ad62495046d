package auth

import (
	"context"
	"fmt"
	"time"

	"github.com/jrsteele09/go-login-broker/authflowrepo"
	"github.com/jrsteele09/go-login-broker/idp"
	apperrors "github.com/jrsteele09/go-login-broker/internal/errors"
	"github.com/jrsteele09/go-login-broker/loginsession"
	"github.com/jrsteele09/go-login-broker/metrics"
	"github.com/jrsteele09/go-login-broker/oauthmodel"
	"github.com/jrsteele09/go-login-broker/token"
	"github.com/jrsteele09/go-login-broker/users"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Repos holds the stores the AuthorizationService is the sole writer of
type Repos struct {
	AuthFlows authflowrepo.Repo // Login transactions keyed by state
	Sessions  loginsession.Repo // Authenticated sessions keyed by session id
}

// Settings holds the lifetimes used by the service.
type Settings struct {
	AuthFlowTTL     time.Duration // How long a login transaction waits for its callback
	AccessTTL       time.Duration // Bearer token lifetime
	RefreshTTL      time.Duration // Session lifetime, the window for in-place refresh
	ProviderTimeout time.Duration // Per call limit for the token exchange and profile fetch
}

func DefaultSettings() Settings {
	return Settings{
		AuthFlowTTL:     5 * time.Minute,
		AccessTTL:       24 * time.Hour,
		RefreshTTL:      7 * 24 * time.Hour,
		ProviderTimeout: 10 * time.Second,
	}
}

// AuthorizationService brokers the authorization-code-with-PKCE flow against a single
// identity provider and mints application sessions.
type AuthorizationService struct {
	repos     Repos
	provider  idp.IdentityProvider
	allowlist users.Allowlist
	tokens    *token.Manager
	settings  Settings
	metrics   *metrics.Metrics
	logger    zerolog.Logger
	nowTime   func() time.Time // injectable for testing
}

// AuthorizationServiceOption defines a function type to modify the AuthorizationService instance.
type AuthorizationServiceOption func(*AuthorizationService)

// WithNowTime sets the now time function (primarily for testing)
func WithNowTime(nowFunc func() time.Time) AuthorizationServiceOption {
	return func(as *AuthorizationService) {
		as.nowTime = nowFunc
	}
}

func WithSettings(settings Settings) AuthorizationServiceOption {
	return func(as *AuthorizationService) {
		as.settings = settings
	}
}

func WithMetrics(m *metrics.Metrics) AuthorizationServiceOption {
	return func(as *AuthorizationService) {
		as.metrics = m
	}
}

func WithLogger(logger zerolog.Logger) AuthorizationServiceOption {
	return func(as *AuthorizationService) {
		as.logger = logger
	}
}

// NewAuthorizationService initializes a new AuthorizationService with required dependencies.
func NewAuthorizationService(
	repos Repos,
	provider idp.IdentityProvider,
	allowlist users.Allowlist,
	tokens *token.Manager,
	options ...AuthorizationServiceOption,
) (*AuthorizationService, error) {
	if repos.AuthFlows == nil {
		return nil, errors.New("[NewAuthorizationService] AuthFlows repo is required")
	}
	if repos.Sessions == nil {
		return nil, errors.New("[NewAuthorizationService] Sessions repo is required")
	}
	if provider == nil {
		return nil, errors.New("[NewAuthorizationService] identity provider is required")
	}
	if allowlist == nil {
		return nil, errors.New("[NewAuthorizationService] allowlist is required")
	}
	if tokens == nil {
		return nil, errors.New("[NewAuthorizationService] token manager is required")
	}

	as := &AuthorizationService{
		repos:     repos,
		provider:  provider,
		allowlist: allowlist,
		tokens:    tokens,
		settings:  DefaultSettings(),
		logger:    log.Logger,
		nowTime:   time.Now,
	}
	for _, opt := range options {
		opt(as)
	}

	s := as.settings
	if s.AuthFlowTTL <= 0 || s.AccessTTL <= 0 || s.RefreshTTL < s.AccessTTL || s.ProviderTimeout <= 0 {
		return nil, errors.Errorf("[NewAuthorizationService] invalid settings %+v", s)
	}
	return as, nil
}

// Initiate stores the login transaction under its state and returns the provider
// authorization URL to redirect the popup to.
func (as *AuthorizationService) Initiate(ctx context.Context, params oauthmodel.LoginParameters) (string, error) {
	if err := params.Validate(); err != nil {
		as.metrics.LoginInitiated(false)
		return "", fmt.Errorf("%w: %w", apperrors.ErrInvalidRequest, err)
	}

	flow := &authflowrepo.AuthFlowState{
		State:               params.State,
		CodeVerifier:        params.CodeVerifier,
		CodeChallenge:       params.CodeChallenge,
		CodeChallengeMethod: string(params.CodeChallengeMethod),
		ClientSessionID:     params.SessionID,
		CreatedAt:           as.nowTime(),
	}
	if err := as.repos.AuthFlows.Upsert(ctx, flow, as.settings.AuthFlowTTL); err != nil {
		as.metrics.LoginInitiated(false)
		return "", errors.Wrap(err, "[Initiate] store auth flow state")
	}

	as.metrics.LoginInitiated(true)
	as.logger.Debug().
		Str("stage", string(StageInitiated)).
		Str("client_session_id", params.SessionID).
		Str("provider", as.provider.Name()).
		Msg("login initiated")

	return as.provider.AuthCodeURL(params.State, params.CodeChallenge), nil
}
