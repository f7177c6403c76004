package server

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func (s *Server) initRoutes() {
	// Broker commands
	s.RegisterRouteHandler("POST "+RouteLogin, ChainMiddleware(s.LoginCommand(), s.CommandMiddleware()...))
	s.RegisterRouteHandler("POST "+RouteLogout, ChainMiddleware(s.LogoutCommand(), s.CommandMiddleware()...))
	s.RegisterRouteHandler("GET "+RouteAttach, ChainMiddleware(s.AttachCommand(), s.CommandMiddleware()...))
	s.RegisterRouteHandler("GET "+RouteUserInfo, ChainMiddleware(s.UserInfoCommand(), s.CommandMiddleware()...))
	s.RegisterRouteHandler("OPTIONS "+RouteAPIPrefix+"{command...}", ChainMiddleware(notFound, s.APIMiddleware()...))

	// Browser login reached through a redirect from a broker
	s.RegisterRouteHandler("GET "+RouteBrokerLogin, ChainMiddleware(s.BrokerLoginPage(), s.BrokerLoginMiddleware()...))
	s.RegisterRouteHandler("POST "+RouteBrokerLogin, ChainMiddleware(s.BrokerLoginSubmission(), s.BrokerLoginMiddleware()...))

	s.RegisterRouteFunc("GET "+RouteHealth, s.HealthHandler())
	s.RegisterRouteHandler("GET "+RouteMetrics, promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{}))
}

// CommandMiddleware is the chain in front of every broker command.
func (s *Server) CommandMiddleware() []func(http.HandlerFunc) http.HandlerFunc {
	return append(s.APIMiddleware(), s.RequireBrokerSession)
}

// BrokerLoginMiddleware moves the session id from the URL into the
// Authorization header, then authenticates it like any other command.
func (s *Server) BrokerLoginMiddleware() []func(http.HandlerFunc) http.HandlerFunc {
	return []func(http.HandlerFunc) http.HandlerFunc{
		s.LoggingMiddleware,
		s.RecoverMiddleware,
		s.FrameSecurityMiddleware,
		s.RelayMiddleware,
		s.RequireBrokerSession,
	}
}

func (s *Server) HealthHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}

func notFound(w http.ResponseWriter, r *http.Request) {
	writeError(w, http.StatusNotFound, "not found")
}
