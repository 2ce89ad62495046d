package config

import (
	"crypto/rand"
	"net/url"
	"strings"

	"github.com/caarlos0/env/v11"
	"github.com/pkg/errors"
)

const (
	EnvDev  = "DEV"
	EnvProd = "PROD"

	StoreBackendMemory = "memory"
	StoreBackendRedis  = "redis"

	minTokenSecretLength = 32
)

type Config interface {
	EnvConfig
	GoogleConfig
	CorsConfig
	OAuthConfig
	SecurityConfig
	StoreConfig
}

type EnvConfig interface {
	GetPort() string
	GetAppName() string
	GetEnv() string
	GetLogLevel() string
	GetPublicURL() string
	GetFrontendOrigin() string
}

type CorsConfig interface {
	GetAllowedOrigins() AllowedOrigins
	GetAllowedMethods() string
	GetAllowedHeaders() string
}

type mainConfig struct {
	EnvVars
	Google
	Cors
	OAuth
	Security
	Store
}

// New reads the configuration from the process environment.
func New() (Config, error) {
	var c mainConfig
	if err := env.Parse(&c); err != nil {
		return nil, errors.Wrap(err, "[config.New] parse environment")
	}
	return c.validate()
}

// Load reads the configuration from the supplied variables only.
func Load(environment map[string]string) (Config, error) {
	var c mainConfig
	if err := env.ParseWithOptions(&c, env.Options{Environment: environment}); err != nil {
		return nil, errors.Wrap(err, "[config.Load] parse environment")
	}
	return c.validate()
}

func (c mainConfig) validate() (Config, error) {
	c.PublicURL = strings.TrimRight(c.PublicURL, "/")
	if _, err := url.ParseRequestURI(c.PublicURL); err != nil {
		return nil, errors.Wrapf(err, "[config] invalid PUBLIC_URL %q", c.PublicURL)
	}
	origin, err := url.Parse(c.FrontendOrigin)
	if err != nil || origin.Scheme == "" || origin.Host == "" || (origin.Path != "" && origin.Path != "/") {
		return nil, errors.Errorf("[config] FRONTEND_ORIGIN must be scheme://host[:port], got %q", c.FrontendOrigin)
	}
	c.FrontendOrigin = origin.Scheme + "://" + origin.Host

	if c.AuthFlowTTL <= 0 || c.AccessTTL <= 0 || c.RefreshTTL <= 0 {
		return nil, errors.New("[config] AUTH_FLOW_TTL, ACCESS_TTL and REFRESH_TTL must be positive")
	}
	if c.RefreshTTL < c.AccessTTL {
		return nil, errors.New("[config] REFRESH_TTL must not be shorter than ACCESS_TTL")
	}

	switch c.Backend {
	case StoreBackendMemory:
	case StoreBackendRedis:
		if c.RedisAddr == "" {
			return nil, errors.New("[config] REDIS_ADDR is required when STORE_BACKEND=redis")
		}
	default:
		return nil, errors.Errorf("[config] unknown STORE_BACKEND %q", c.Backend)
	}

	if len(c.TokenSecret) < minTokenSecretLength {
		if c.GetEnv() != EnvDev {
			return nil, errors.Errorf("[config] TOKEN_SECRET must be at least %d bytes", minTokenSecretLength)
		}
		// Sessions will not survive a restart in DEV without a configured secret.
		secret := make([]byte, minTokenSecretLength)
		if _, err := rand.Read(secret); err != nil {
			return nil, errors.Wrap(err, "[config] generate dev token secret")
		}
		c.TokenSecret = string(secret)
	}

	c.Origins = append(c.Origins, c.FrontendOrigin)
	return c, nil
}
