package idp

import (
	"context"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/oauth2"
)

const (
	GoogleIssuer = "https://accounts.google.com"
	googleName   = "google"

	defaultUserInfoAttempts = 3
	defaultUserInfoBackoff  = 200 * time.Millisecond
	defaultHTTPTimeout      = 10 * time.Second
)

// GoogleConfig holds the OAuth client registration for Google.
type GoogleConfig struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
	Issuer       string // defaults to GoogleIssuer
	Scopes       []string
}

// GoogleProvider logs users in with Google using OIDC discovery and the userinfo endpoint.
type GoogleProvider struct {
	provider         *oidc.Provider
	oauthConfig      *oauth2.Config
	httpClient       *http.Client
	userInfoAttempts uint
	userInfoBackoff  time.Duration
	logger           zerolog.Logger
}

var _ IdentityProvider = (*GoogleProvider)(nil)

type GoogleOption func(*GoogleProvider)

func WithHTTPClient(client *http.Client) GoogleOption {
	return func(p *GoogleProvider) {
		p.httpClient = client
	}
}

// WithUserInfoRetry bounds the retries of the userinfo fetch.
func WithUserInfoRetry(attempts uint, initialInterval time.Duration) GoogleOption {
	return func(p *GoogleProvider) {
		p.userInfoAttempts = attempts
		p.userInfoBackoff = initialInterval
	}
}

func WithLogger(logger zerolog.Logger) GoogleOption {
	return func(p *GoogleProvider) {
		p.logger = logger
	}
}

// NewGoogleProvider discovers the provider endpoints from the issuer.
func NewGoogleProvider(ctx context.Context, cfg GoogleConfig, opts ...GoogleOption) (*GoogleProvider, error) {
	if cfg.ClientID == "" || cfg.ClientSecret == "" {
		return nil, errors.New("[NewGoogleProvider] client id and secret are required")
	}
	if cfg.RedirectURL == "" {
		return nil, errors.New("[NewGoogleProvider] redirect url is required")
	}
	if cfg.Issuer == "" {
		cfg.Issuer = GoogleIssuer
	}
	if len(cfg.Scopes) == 0 {
		cfg.Scopes = []string{oidc.ScopeOpenID, "email", "profile"}
	}

	p := &GoogleProvider{
		httpClient:       &http.Client{Timeout: defaultHTTPTimeout},
		userInfoAttempts: defaultUserInfoAttempts,
		userInfoBackoff:  defaultUserInfoBackoff,
		logger:           log.Logger,
	}
	for _, opt := range opts {
		opt(p)
	}

	provider, err := oidc.NewProvider(oidc.ClientContext(ctx, p.httpClient), cfg.Issuer)
	if err != nil {
		return nil, errors.Wrapf(err, "[NewGoogleProvider] discover %s", cfg.Issuer)
	}
	p.provider = provider
	p.oauthConfig = &oauth2.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		RedirectURL:  cfg.RedirectURL,
		Endpoint:     provider.Endpoint(),
		Scopes:       cfg.Scopes,
	}
	return p, nil
}

func (p *GoogleProvider) Name() string {
	return googleName
}

// AuthCodeURL asks for offline access with prompt=consent; Google only issues a refresh
// token when the user is shown the consent screen.
func (p *GoogleProvider) AuthCodeURL(state, codeChallenge string) string {
	return p.oauthConfig.AuthCodeURL(state,
		oauth2.AccessTypeOffline,
		oauth2.SetAuthURLParam("prompt", "consent"),
		oauth2.SetAuthURLParam("code_challenge", codeChallenge),
		oauth2.SetAuthURLParam("code_challenge_method", "S256"),
	)
}

// Exchange is not retried: an authorization code is single use at the provider.
func (p *GoogleProvider) Exchange(ctx context.Context, code, codeVerifier string) (*Tokens, error) {
	tok, err := p.oauthConfig.Exchange(oidc.ClientContext(ctx, p.httpClient), code, oauth2.VerifierOption(codeVerifier))
	if err != nil {
		var retrieveErr *oauth2.RetrieveError
		if errors.As(err, &retrieveErr) {
			return nil, &ExchangeError{Code: retrieveErr.ErrorCode, Err: err}
		}
		return nil, &ExchangeError{Err: err}
	}
	if tok.AccessToken == "" {
		return nil, &ExchangeError{Err: ErrNoAccessToken}
	}

	tokens := &Tokens{
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		Expiry:       tok.Expiry,
	}
	if idToken, ok := tok.Extra("id_token").(string); ok {
		tokens.IDToken = idToken
	}
	return tokens, nil
}

// UserInfo fetches the profile with a bounded exponential backoff; the call is idempotent.
func (p *GoogleProvider) UserInfo(ctx context.Context, tokens *Tokens) (*Profile, error) {
	if tokens == nil || tokens.AccessToken == "" {
		return nil, ErrNoAccessToken
	}
	src := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: tokens.AccessToken, TokenType: "Bearer"})

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = p.userInfoBackoff

	info, err := backoff.Retry(ctx, func() (*oidc.UserInfo, error) {
		return p.provider.UserInfo(oidc.ClientContext(ctx, p.httpClient), src)
	},
		backoff.WithBackOff(b),
		backoff.WithMaxTries(p.userInfoAttempts),
		backoff.WithNotify(func(err error, next time.Duration) {
			p.logger.Warn().Err(err).Dur("retry_in", next).Msg("userinfo fetch failed")
		}),
	)
	if err != nil {
		return nil, errors.Wrap(err, "[GoogleProvider.UserInfo]")
	}

	var extra struct {
		Name    string `json:"name"`
		Picture string `json:"picture"`
	}
	if err := info.Claims(&extra); err != nil {
		return nil, errors.Wrap(err, "[GoogleProvider.UserInfo] claims")
	}

	return &Profile{
		Subject:       info.Subject,
		Email:         info.Email,
		EmailVerified: info.EmailVerified,
		Name:          extra.Name,
		Picture:       extra.Picture,
	}, nil
}
