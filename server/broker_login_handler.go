package server

import (
	"errors"
	"net/http"
	"net/url"
	"time"

	"github.com/google/uuid"
	"github.com/jrsteele09/go-sso/brokers"
	ssoerrors "github.com/jrsteele09/go-sso/internal/errors"
	"github.com/jrsteele09/go-sso/server/loginflow"
	"github.com/jrsteele09/go-sso/users"
	"github.com/rs/zerolog/log"
)

// LoginPageData contains data for rendering the login page
type LoginPageData struct {
	AppName    string
	Broker     string
	Action     string
	FlowID     string
	LoginLabel string
	Username   string // Preserve username on error
	Error      string
}

// BrokerLoginPage is where a broker sends the browser to log in. A browser
// already logged in to the server is sent straight back; otherwise the login
// form is shown.
func (s *Server) BrokerLoginPage() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		sessionID, broker := brokerSession(ctx)

		returnURL, ok := s.returnURL(w, r, broker)
		if !ok {
			return
		}
		if _, err := s.repos.Attachments.Attach(ctx, sessionID, broker.Name); err != nil {
			s.writeAttachmentError(w, err)
			return
		}

		auth := s.sessions.ForRequest(w, r)
		if userID := auth.UserID(ctx); userID != "" {
			if err := s.repos.Attachments.Authenticate(ctx, sessionID, userID); err != nil {
				s.writeAttachmentError(w, err)
				return
			}
			log.Info().Str("broker", broker.Name).Str("userId", userID).Msg("browser already logged in")
			http.Redirect(w, r, returnURL, http.StatusFound)
			return
		}

		flowID := uuid.New().String()
		if err := s.repos.LoginFlows.Upsert(flowID, &loginflow.State{
			SessionID: sessionID,
			Broker:    broker.Name,
			ReturnURL: returnURL,
			CreatedAt: time.Now(),
		}); err != nil {
			log.Err(err).Msg("failed to store login flow")
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}

		s.renderLogin(w, r, http.StatusOK, broker.Name, flowID, "", "")
	}
}

// BrokerLoginSubmission handles the login form. On success the server's own
// browser session and the broker's session id are both logged in and the
// browser is sent back to the broker.
func (s *Server) BrokerLoginSubmission() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		sessionID, broker := brokerSession(ctx)

		if err := r.ParseForm(); err != nil {
			writeError(w, http.StatusBadRequest, "invalid form data")
			return
		}
		flowID := r.PostForm.Get("flow_id")
		username := r.PostForm.Get("username")

		flow, err := s.repos.LoginFlows.Get(flowID)
		if err != nil || flow.SessionID != sessionID {
			writeError(w, http.StatusBadRequest, "login expired, start again from the application")
			return
		}

		if !s.limiter.Allow(sessionID) {
			s.metrics.login(broker.Name, "rate_limited")
			s.renderLogin(w, r, http.StatusTooManyRequests, broker.Name, flowID, username, "Too many attempts, try again later")
			return
		}

		user, err := users.Authenticate(s.repos.Users, s.config.GetLoginField(), username, r.PostForm.Get("password"))
		if errors.Is(err, ssoerrors.ErrInvalidCredentials) || errors.Is(err, ssoerrors.ErrUserBlocked) {
			s.metrics.login(broker.Name, "rejected")
			s.renderLogin(w, r, http.StatusUnauthorized, broker.Name, flowID, username, "Invalid username or password")
			return
		}
		if err != nil {
			log.Err(err).Msg("browser login failed")
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}

		auth := s.sessions.ForRequest(w, r)
		if err := auth.LoginUser(ctx, user.ID); err != nil {
			log.Err(err).Msg("failed to start server session")
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}
		if err := s.repos.Attachments.Authenticate(ctx, sessionID, user.ID); err != nil {
			s.writeAttachmentError(w, err)
			return
		}
		_ = s.repos.LoginFlows.Delete(flowID)

		s.metrics.login(broker.Name, "success")
		log.Info().Str("broker", broker.Name).Str("userId", user.ID).Msg("browser login")
		http.Redirect(w, r, flow.ReturnURL, http.StatusSeeOther)
	}
}

// returnURL validates the return_url query parameter against the broker's
// registered origin. On failure it writes the response and returns false.
func (s *Server) returnURL(w http.ResponseWriter, r *http.Request, broker *brokers.Broker) (string, bool) {
	raw := r.URL.Query().Get("return_url")
	if raw == "" {
		writeError(w, http.StatusBadRequest, "return_url is required")
		return "", false
	}
	u, err := url.Parse(raw)
	if err != nil || !broker.AllowsReturnURL(u) {
		log.Warn().Str("broker", broker.Name).Str("returnUrl", raw).Msg("rejected return_url")
		writeError(w, http.StatusBadRequest, "return_url is not allowed for this broker")
		return "", false
	}
	return u.String(), true
}

func (s *Server) renderLogin(w http.ResponseWriter, r *http.Request, status int, brokerName, flowID, username, errMsg string) {
	label := "Email"
	if s.config.GetLoginField() == "username" {
		label = "Username"
	}
	data := LoginPageData{
		AppName:    s.config.GetAppName(),
		Broker:     brokerName,
		Action:     r.URL.RequestURI(),
		FlowID:     flowID,
		LoginLabel: label,
		Username:   username,
		Error:      errMsg,
	}

	w.Header().Set("Content-Type", contentTypeHTML)
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	if err := s.loginTmpl.Execute(w, data); err != nil {
		log.Err(err).Msg("Failed to render login template")
	}
}
