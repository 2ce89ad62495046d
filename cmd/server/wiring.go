package main

import (
	"context"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/jrsteele09/go-login-broker/auth"
	"github.com/jrsteele09/go-login-broker/authflowrepo"
	"github.com/jrsteele09/go-login-broker/idp"
	"github.com/jrsteele09/go-login-broker/internal/config"
	"github.com/jrsteele09/go-login-broker/loginsession"
	"github.com/jrsteele09/go-login-broker/metrics"
	"github.com/jrsteele09/go-login-broker/popup"
	"github.com/jrsteele09/go-login-broker/server"
	"github.com/jrsteele09/go-login-broker/token"
	"github.com/jrsteele09/go-login-broker/users"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

const redisConnectAttempts = 5

// application is the wired HTTP handler plus whatever must be released on exit.
type application struct {
	handler http.Handler
	closers []func() error
}

func (a *application) Close() {
	for _, c := range a.closers {
		if err := c(); err != nil {
			log.Warn().Err(err).Msg("close failed")
		}
	}
}

// build wires the application. Anything opened before a failing step is closed again.
func build(ctx context.Context, c config.Config) (_ *application, err error) {
	app := &application{}
	defer func() {
		if err != nil {
			app.Close()
		}
	}()

	repos, err := buildRepos(ctx, c, app)
	if err != nil {
		return nil, err
	}

	allowlist, err := buildAllowlist(c)
	if err != nil {
		return nil, err
	}

	tokens, err := token.New(c.GetTokenSecret())
	if err != nil {
		return nil, errors.Wrap(err, "token manager")
	}

	provider, err := idp.NewGoogleProvider(ctx, idp.GoogleConfig{
		ClientID:     c.GetGoogleClientID(),
		ClientSecret: c.GetGoogleClientSecret(),
		RedirectURL:  c.GetPublicURL() + server.RouteGoogleCallback,
		Issuer:       c.GetGoogleIssuer(),
		Scopes:       c.GetGoogleScopes(),
	}, idp.WithLogger(log.Logger))
	if err != nil {
		return nil, errors.Wrap(err, "google provider")
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	authService, err := auth.NewAuthorizationService(repos, provider, allowlist, tokens,
		auth.WithSettings(auth.Settings{
			AuthFlowTTL:     c.GetAuthFlowTTL(),
			AccessTTL:       c.GetAccessTokenTTL(),
			RefreshTTL:      c.GetRefreshTokenTTL(),
			ProviderTimeout: 10 * time.Second,
		}),
		auth.WithMetrics(metrics.New(registry)),
		auth.WithLogger(log.Logger),
	)
	if err != nil {
		return nil, err
	}

	page, err := popup.NewPage(c.GetFrontendOrigin())
	if err != nil {
		return nil, errors.Wrap(err, "completion page")
	}

	s, err := server.New(c, authService, page, server.WithMetricsGatherer(registry), server.WithLogger(log.Logger))
	if err != nil {
		return nil, err
	}
	app.handler = s
	return app, nil
}

func buildRepos(ctx context.Context, c config.StoreConfig, app *application) (auth.Repos, error) {
	if c.GetStoreBackend() != config.StoreBackendRedis {
		log.Warn().Msg("Using in-memory stores; sessions are lost on restart")
		return auth.Repos{
			AuthFlows: authflowrepo.NewInMemoryRepo(),
			Sessions:  loginsession.NewInMemoryRepo(),
		}, nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     c.GetRedisAddr(),
		Password: c.GetRedisPassword(),
		DB:       c.GetRedisDB(),
	})
	app.closers = append(app.closers, client.Close)

	_, err := backoff.Retry(ctx, func() (string, error) {
		return client.Ping(ctx).Result()
	},
		backoff.WithBackOff(backoff.NewExponentialBackOff()),
		backoff.WithMaxTries(redisConnectAttempts),
		backoff.WithNotify(func(err error, next time.Duration) {
			log.Warn().Err(err).Dur("retry_in", next).Msg("redis not reachable")
		}),
	)
	if err != nil {
		return auth.Repos{}, errors.Wrapf(err, "connect to redis at %s", c.GetRedisAddr())
	}
	log.Info().Str("addr", c.GetRedisAddr()).Msg("Using redis stores")

	return auth.Repos{
		AuthFlows: authflowrepo.NewRedisRepo(client, c.GetRedisKeyPrefix()),
		Sessions:  loginsession.NewRedisRepo(client, c.GetRedisKeyPrefix()),
	}, nil
}

func buildAllowlist(c config.SecurityConfig) (*users.StaticAllowlist, error) {
	allowlist := users.NewAllowlist(c.GetAllowedEmails(), c.GetDefaultPermissions())
	if path := c.GetAllowlistFile(); path != "" {
		fromFile, err := users.LoadAllowlistFile(path)
		if err != nil {
			return nil, errors.Wrap(err, "allowlist file")
		}
		allowlist = allowlist.Merge(fromFile)
	}
	if allowlist.Len() == 0 {
		log.Warn().Msg("Allowlist is empty; every login will be rejected")
	}
	return allowlist, nil
}
