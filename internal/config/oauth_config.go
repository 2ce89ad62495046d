package config

import "time"

type OAuthConfig interface {
	GetAuthFlowTTL() time.Duration
	GetAccessTokenTTL() time.Duration
	GetRefreshTokenTTL() time.Duration
}

type OAuth struct {
	AuthFlowTTL time.Duration `env:"AUTH_FLOW_TTL" envDefault:"5m"`
	AccessTTL   time.Duration `env:"ACCESS_TTL" envDefault:"24h"`
	RefreshTTL  time.Duration `env:"REFRESH_TTL" envDefault:"168h"`
}

var _ OAuthConfig = OAuth{}

// GetAuthFlowTTL is how long a login transaction may wait for its callback.
func (o OAuth) GetAuthFlowTTL() time.Duration {
	return o.AuthFlowTTL
}

func (o OAuth) GetAccessTokenTTL() time.Duration {
	return o.AccessTTL
}

func (o OAuth) GetRefreshTokenTTL() time.Duration {
	return o.RefreshTTL // 7 days by default
}
