package server

func (s *Server) initRoutes() {
	// LOGIN (runs in the popup)
	s.RegisterRouteFunc("GET "+RouteGoogleLogin, ChainMiddleware(s.GoogleLoginHandler(), s.HTMLMiddleWare()...))
	s.RegisterRouteFunc("GET "+RouteGoogleCallback, s.GoogleCallbackHandler())

	// Session API (called by the frontend with credentials)
	s.RegisterRouteFunc("GET "+RouteVerify, ChainMiddleware(s.VerifyHandler(), s.APIMiddleware()...))
	s.RegisterRouteFunc("GET "+RouteLogout, ChainMiddleware(s.LogoutHandler(), s.APIMiddleware()...))
	s.RegisterRouteFunc("POST "+RouteLogout, ChainMiddleware(s.LogoutHandler(), s.APIMiddleware()...))
	s.RegisterRouteFunc("OPTIONS "+RouteVerify, ChainMiddleware(noContent, s.APIMiddleware()...))
	s.RegisterRouteFunc("OPTIONS "+RouteLogout, ChainMiddleware(noContent, s.APIMiddleware()...))

	s.RegisterRouteFunc("GET "+RouteHealth, s.HealthHandler())
	if s.metricsHandler != nil {
		s.RegisterRouteHandler("GET "+RouteMetrics, s.metricsHandler)
	}
}
