package idpfake

import (
	"context"
	"net/url"
	"strings"
	"sync"

	"github.com/jrsteele09/go-login-broker/idp"
)

const AuthEndpoint = "https://idp.example.com/authorize"

// Provider is an in-memory identity provider. Codes map to profiles; any other code
// fails the exchange with ErrorCode.
type Provider struct {
	mu            sync.Mutex
	profiles      map[string]idp.Profile
	refreshTokens bool
	ErrorCode     string
	UserInfoErr   error
	exchanges     []Exchange
}

// Exchange records one call to the token endpoint.
type Exchange struct {
	Code         string
	CodeVerifier string
}

var _ idp.IdentityProvider = (*Provider)(nil)

func NewProvider() *Provider {
	return &Provider{
		profiles:      make(map[string]idp.Profile),
		refreshTokens: true,
		ErrorCode:     "invalid_grant",
	}
}

// AddCode makes code exchangeable for the given profile.
func (p *Provider) AddCode(code string, profile idp.Profile) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.profiles[code] = profile
}

// WithoutRefreshTokens makes exchanges return no refresh token.
func (p *Provider) WithoutRefreshTokens() *Provider {
	p.refreshTokens = false
	return p
}

func (p *Provider) Exchanges() []Exchange {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]Exchange(nil), p.exchanges...)
}

func (p *Provider) Name() string {
	return "fake"
}

func (p *Provider) AuthCodeURL(state, codeChallenge string) string {
	q := url.Values{}
	q.Set("state", state)
	q.Set("code_challenge", codeChallenge)
	q.Set("code_challenge_method", "S256")
	q.Set("access_type", "offline")
	q.Set("prompt", "consent")
	return AuthEndpoint + "?" + q.Encode()
}

func (p *Provider) Exchange(_ context.Context, code, codeVerifier string) (*idp.Tokens, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.exchanges = append(p.exchanges, Exchange{Code: code, CodeVerifier: codeVerifier})

	if _, ok := p.profiles[code]; !ok {
		return nil, &idp.ExchangeError{Code: p.ErrorCode, Err: idp.ErrNoAccessToken}
	}
	tokens := &idp.Tokens{AccessToken: "access:" + code}
	if p.refreshTokens {
		tokens.RefreshToken = "refresh:" + code
	}
	return tokens, nil
}

func (p *Provider) UserInfo(_ context.Context, tokens *idp.Tokens) (*idp.Profile, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.UserInfoErr != nil {
		return nil, p.UserInfoErr
	}
	profile, ok := p.profiles[strings.TrimPrefix(tokens.AccessToken, "access:")]
	if !ok {
		return nil, idp.ErrNoAccessToken
	}
	return &profile, nil
}
