package server

// Route path constants
// All application routes are defined here to ensure consistency and prevent typos
const (
	// Login popup
	RouteGoogleLogin    = "/auth/google"
	RouteGoogleCallback = "/auth/google/callback"

	// Session API
	RouteVerify = "/auth/verify"
	RouteLogout = "/auth/logout"

	// Operations
	RouteHealth  = "/healthz"
	RouteMetrics = "/metrics"
)
