package server

import (
	"context"
	"fmt"
	"html/template"
	"net/http"
	"strings"

	"github.com/jrsteele09/go-sso/attachments"
	"github.com/jrsteele09/go-sso/brokers"
	"github.com/jrsteele09/go-sso/internal/config"
	"github.com/jrsteele09/go-sso/localsession"
	"github.com/jrsteele09/go-sso/server/loginflow"
	"github.com/jrsteele09/go-sso/sessionid"
	"github.com/jrsteele09/go-sso/users"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog/log"
)

// sessionCookieName is the server's own browser login session.
const sessionCookieName = "sso_server_session"

// Repos are the stores the server reads and writes.
type Repos struct {
	Brokers     brokers.Repo
	Users       users.UserRepo
	Attachments attachments.Repo
	Sessions    localsession.Repo
	LoginFlows  loginflow.Repo
}

type Server struct {
	env        string // Environment (e.g., "DEV", "PROD")
	mux        *http.ServeMux
	routes     []string
	config     config.Config
	repos      Repos
	identity   sessionid.Identity
	sessions   *localsession.Manager
	limiter    *loginLimiter
	userFields map[string]string
	loginTmpl  *template.Template
	registry   *prometheus.Registry
	metrics    *Metrics
}

func New(config config.Config, repos Repos) (*Server, error) {
	if repos.Brokers == nil || repos.Users == nil || repos.Attachments == nil {
		return nil, fmt.Errorf("[Server New] brokers, users and attachments repositories are required")
	}
	if repos.Sessions == nil {
		repos.Sessions = localsession.NewInMemoryRepo()
	}
	if repos.LoginFlows == nil {
		repos.LoginFlows = loginflow.NewInMemoryRepo(0, loginflow.DefaultTTL)
	}

	identity, err := sessionid.New(sessionid.Format(config.GetSessionIDFormat()))
	if err != nil {
		return nil, fmt.Errorf("[Server New] %w", err)
	}

	loginTmpl, err := ParseTemplate("login.html")
	if err != nil {
		return nil, fmt.Errorf("[Server New] failed to parse login template: %w", err)
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	s := &Server{
		env:        config.GetEnv(),
		mux:        http.NewServeMux(),
		config:     config,
		repos:      repos,
		identity:   identity,
		sessions:   localsession.NewManager(repos.Sessions, sessionCookieName, config.GetMaxSessionAge(), config.GetSecureCookies()),
		limiter:    newLoginLimiter(config.GetLoginRateLimit()),
		userFields: config.GetUserFields(),
		loginTmpl:  loginTmpl,
		registry:   registry,
		metrics:    NewMetrics(registry),
	}

	// Bootstrap: register configured brokers and make sure an administrator exists
	if err := s.InitialiseSystem(context.Background()); err != nil {
		return nil, fmt.Errorf("[Server New] Failed to initialise the system: %w", err)
	}

	s.initRoutes()
	s.logRoutes()

	return s, nil
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

func (s *Server) RegisterRouteHandler(pattern string, handler http.Handler) {
	s.routes = append(s.routes, pattern)
	s.mux.Handle(pattern, handler)
}

func (s *Server) RegisterRouteFunc(pattern string, handler func(http.ResponseWriter, *http.Request)) {
	s.routes = append(s.routes, pattern)
	s.mux.HandleFunc(pattern, handler)
}

func (s *Server) logRoutes() {
	if s.env != "DEV" {
		return // Skip logging in non-development environments
	}
	for _, route := range s.routes {
		parts := strings.SplitN(route, " ", 2)

		if len(parts) > 1 {
			logRoute(parts[0], parts[1])
		} else {
			logRoute("", parts[0])
		}
	}
}

func logRoute(method, path string) {
	var displayMethod string
	paddedMethod := fmt.Sprintf(" %-7s", method)
	if color, ok := methodColors[method]; ok {
		displayMethod = color + paddedMethod + ResetColor
	} else {
		displayMethod = Gray + paddedMethod + ResetColor
	}
	log.Info().Msgf("[%-19s] %s", displayMethod, path)
}
