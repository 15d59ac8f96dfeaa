package server

// Route path constants
// All service routes are defined here to ensure consistency and prevent typos
const (
	RouteGoogleLogin    = "/auth/google"
	RouteGoogleCallback = "/auth/google/callback"
	RouteSession        = "/auth/session"
	RouteLogout         = "/auth/logout"
	RouteStatus         = "/auth/status"
)
