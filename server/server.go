package server

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/jrsteele09/go-login-broker/auth"
	"github.com/jrsteele09/go-login-broker/internal/config"
	"github.com/jrsteele09/go-login-broker/metrics"
	"github.com/jrsteele09/go-login-broker/popup"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

type Server struct {
	env            string // Environment (e.g., "DEV", "PROD")
	router         chi.Router
	routes         []string
	config         config.Config
	auth           *auth.AuthorizationService
	page           *popup.Page
	metricsHandler http.Handler
	logger         zerolog.Logger
	nowTime        func() time.Time
}

type Option func(*Server)

// WithMetricsGatherer exposes the gathered metrics on RouteMetrics.
func WithMetricsGatherer(g prometheus.Gatherer) Option {
	return func(s *Server) {
		s.metricsHandler = metrics.Handler(g)
	}
}

func WithLogger(logger zerolog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// WithNowTime sets the now time function (primarily for testing)
func WithNowTime(nowFunc func() time.Time) Option {
	return func(s *Server) {
		s.nowTime = nowFunc
	}
}

func New(config config.Config, authService *auth.AuthorizationService, page *popup.Page, opts ...Option) (*Server, error) {
	if authService == nil {
		return nil, errors.New("[Server New] authorization service is required")
	}
	if page == nil {
		return nil, errors.New("[Server New] completion page is required")
	}

	s := &Server{
		env:     config.GetEnv(),
		router:  chi.NewRouter(),
		config:  config,
		auth:    authService,
		page:    page,
		logger:  log.Logger,
		nowTime: time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}

	s.router.Use(middleware.RequestID, s.LoggingMiddleware, s.RecoverMiddleware)
	s.initRoutes()
	s.logRoutes()

	return s, nil
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// RegisterRouteHandler registers handler for a "METHOD /path" pattern.
func (s *Server) RegisterRouteHandler(pattern string, handler http.Handler) {
	s.routes = append(s.routes, pattern)
	method, path := splitPattern(pattern)
	if method == "" {
		s.router.Handle(path, handler)
		return
	}
	s.router.Method(method, path, handler)
}

func (s *Server) RegisterRouteFunc(pattern string, handler func(http.ResponseWriter, *http.Request)) {
	s.RegisterRouteHandler(pattern, http.HandlerFunc(handler))
}

func splitPattern(pattern string) (method, path string) {
	parts := strings.SplitN(pattern, " ", 2)
	if len(parts) == 1 {
		return "", parts[0]
	}
	return parts[0], parts[1]
}

func (s *Server) logRoutes() {
	if s.env != config.EnvDev {
		return // Skip logging in non-development environments
	}
	for _, route := range s.routes {
		method, path := splitPattern(route)
		s.logger.Debug().Msgf("[%-19s] %s", colourMethod(method), path)
	}
}
