// Package brokerapp is a small host application that uses the broker to log
// browsers in through the SSO server.
package brokerapp

import (
	"encoding/json"
	"net/http"
	"net/url"
	"time"

	"github.com/jrsteele09/go-sso/broker"
	ssoerrors "github.com/jrsteele09/go-sso/internal/errors"
	"github.com/jrsteele09/go-sso/localsession"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

const (
	RouteIndex    = "/"
	RouteLogin    = "/login"
	RouteLogout   = "/logout"
	RouteSSOLogin = "/sso/login"
	RouteHealth   = "/healthz"
	RouteMetrics  = "/metrics"
)

// SessionCookieName is the host application's own login session.
const SessionCookieName = "sso_broker_session"

type App struct {
	broker   *broker.Broker
	sessions *localsession.Manager
	secure   bool
	logger   zerolog.Logger
	mux      *http.ServeMux
}

type Option func(*App)

func WithLogger(logger zerolog.Logger) Option {
	return func(a *App) { a.logger = logger }
}

// WithSecureCookies marks the token cookie Secure.
func WithSecureCookies(secure bool) Option {
	return func(a *App) { a.secure = secure }
}

// New wires the routes. registry is served on /metrics; a nil registry
// serves the default Prometheus gatherer.
func New(b *broker.Broker, sessions *localsession.Manager, registry prometheus.Gatherer, opts ...Option) *App {
	a := &App{
		broker:   b,
		sessions: sessions,
		logger:   zerolog.Nop(),
		mux:      http.NewServeMux(),
	}
	for _, opt := range opts {
		opt(a)
	}
	if registry == nil {
		registry = prometheus.DefaultGatherer
	}

	a.mux.HandleFunc("GET "+RouteIndex+"{$}", a.logged(a.index))
	a.mux.HandleFunc("POST "+RouteLogin, a.logged(a.login))
	a.mux.HandleFunc("POST "+RouteLogout, a.logged(a.logout))
	a.mux.HandleFunc("GET "+RouteSSOLogin, a.logged(a.ssoLogin))
	a.mux.HandleFunc("GET "+RouteHealth, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	a.mux.Handle("GET "+RouteMetrics, promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	return a
}

func (a *App) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	a.mux.ServeHTTP(w, r)
}

func (a *App) request(w http.ResponseWriter, r *http.Request) (*broker.Request, *localsession.Auth) {
	auth := a.sessions.ForRequest(w, r)
	return broker.NewRequest(broker.NewHTTPCookies(w, r, a.secure), auth), auth
}

// index shows who the SSO server says is logged in.
func (a *App) index(w http.ResponseWriter, r *http.Request) {
	req, auth := a.request(w, r)
	user, err := a.broker.UserInfo(r.Context(), req)
	if err != nil {
		a.unavailable(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"data":       user,
		"state":      req.State().String(),
		"local_user": auth.UserID(r.Context()),
	})
}

func (a *App) login(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid form data"})
		return
	}
	req, auth := a.request(w, r)
	ok, err := a.broker.Login(r.Context(), req, r.PostForm.Get("username"), r.PostForm.Get("password"))
	if err != nil {
		a.unavailable(w, err)
		return
	}
	if !ok {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": ssoerrors.ErrInvalidCredentials.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"success": "logged in", "local_user": auth.UserID(r.Context())})
}

func (a *App) logout(w http.ResponseWriter, r *http.Request) {
	req, _ := a.request(w, r)
	if err := a.broker.Logout(r.Context(), req); err != nil {
		a.unavailable(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"success": "logged out"})
}

// ssoLogin sends the browser to the server's login page. Without a
// return_url the browser comes back to this app's index.
func (a *App) ssoLogin(w http.ResponseWriter, r *http.Request) {
	returnURL := r.URL.Query().Get("return_url")
	if returnURL == "" {
		returnURL = selfURL(r)
	}
	req, _ := a.request(w, r)
	if err := a.broker.RedirectToSSOServer(r.Context(), req, w, r, returnURL); err != nil {
		a.unavailable(w, err)
	}
}

// unavailable hides transport and protocol failures behind a generic 503.
func (a *App) unavailable(w http.ResponseWriter, err error) {
	if !ssoerrors.IsTransport(err) && !ssoerrors.IsProtocol(err) {
		a.logger.Error().Err(err).Msg("broker request failed")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
		return
	}
	a.logger.Warn().Err(err).Msg("sso server unavailable")
	writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "SSO unavailable"})
}

func (a *App) logged(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next(w, r)
		a.logger.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Dur("duration", time.Since(start)).
			Msg("request")
	}
}

func selfURL(r *http.Request) string {
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	return (&url.URL{Scheme: scheme, Host: r.Host, Path: RouteIndex}).String()
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
