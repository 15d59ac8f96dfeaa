package server

func (s *Server) initRoutes() {
	// OAuth redirect dance
	s.RegisterRouteFunc("GET "+RouteGoogleLogin, ChainMiddleware(s.GoogleLoginHandler(), s.APIMiddleware()...))
	s.RegisterRouteFunc("GET "+RouteGoogleCallback, ChainMiddleware(s.GoogleCallbackHandler(), s.APIMiddleware()...))

	// Session API
	s.RegisterRouteFunc("GET "+RouteSession, ChainMiddleware(s.SessionHandler(), s.APIMiddleware()...))
	s.RegisterRouteFunc("POST "+RouteLogout, ChainMiddleware(s.LogoutHandler(), s.APIMiddleware()...))
	s.RegisterRouteFunc("GET "+RouteStatus, ChainMiddleware(s.StatusHandler(), s.APIMiddleware()...))
}
