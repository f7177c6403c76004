package server

import (
	"errors"
	"net/http"

	ssoerrors "github.com/jrsteele09/go-sso/internal/errors"
	"github.com/jrsteele09/go-sso/users"
	"github.com/rs/zerolog/log"
)

// AttachCommand registers the session id, or refreshes its expiry when it is
// already known. Calling it again never creates a second record.
func (s *Server) AttachCommand() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sessionID, broker := brokerSession(r.Context())

		if _, err := s.repos.Attachments.Attach(r.Context(), sessionID, broker.Name); err != nil {
			log.Err(err).Str("broker", broker.Name).Msg("attach failed")
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}
		s.metrics.AttachesTotal.WithLabelValues(broker.Name).Inc()
		writeSuccess(w, "attached")
	}
}

// LoginCommand checks the posted credentials and, when they are valid, ties
// the user to the session id.
func (s *Server) LoginCommand() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		sessionID, broker := brokerSession(ctx)

		if _, err := s.repos.Attachments.Get(ctx, sessionID); err != nil {
			s.writeAttachmentError(w, err)
			return
		}

		if !s.limiter.Allow(sessionID) {
			s.metrics.login(broker.Name, "rate_limited")
			writeError(w, http.StatusTooManyRequests, ssoerrors.ErrRateLimited.Error())
			return
		}

		if err := r.ParseForm(); err != nil {
			writeError(w, http.StatusBadRequest, "invalid form data")
			return
		}
		username := r.PostForm.Get("username")

		user, err := users.Authenticate(s.repos.Users, s.config.GetLoginField(), username, r.PostForm.Get("password"))
		if errors.Is(err, ssoerrors.ErrInvalidCredentials) || errors.Is(err, ssoerrors.ErrUserBlocked) {
			s.metrics.login(broker.Name, "rejected")
			log.Info().Str("broker", broker.Name).Str("username", username).Msg("login rejected")
			writeError(w, http.StatusUnauthorized, ssoerrors.ErrInvalidCredentials.Error())
			return
		}
		if err != nil {
			log.Err(err).Str("broker", broker.Name).Msg("login failed")
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}

		if err := s.repos.Attachments.Authenticate(ctx, sessionID, user.ID); err != nil {
			s.writeAttachmentError(w, err)
			return
		}

		s.metrics.login(broker.Name, "success")
		log.Info().Str("broker", broker.Name).Str("userId", user.ID).Msg("login")
		writeData(w, user.Project(s.userFields))
	}
}

// LogoutCommand drops the user from the session id. The attachment itself
// stays so the broker can log in again without re-attaching.
func (s *Server) LogoutCommand() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sessionID, broker := brokerSession(r.Context())

		if err := s.repos.Attachments.Logout(r.Context(), sessionID); err != nil {
			s.writeAttachmentError(w, err)
			return
		}
		log.Info().Str("broker", broker.Name).Msg("logout")
		writeSuccess(w, "logged out")
	}
}

// UserInfoCommand returns the user logged in through the session id, or
// {"data": null} for an anonymous session.
func (s *Server) UserInfoCommand() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		sessionID, _ := brokerSession(ctx)

		record, err := s.repos.Attachments.Get(ctx, sessionID)
		if err != nil {
			s.writeAttachmentError(w, err)
			return
		}
		if !record.Authenticated() {
			writeData(w, nil)
			return
		}

		user, err := s.repos.Users.GetByID(record.UserID)
		if errors.Is(err, ssoerrors.ErrUserNotFound) {
			// The account was removed after login.
			_ = s.repos.Attachments.Logout(ctx, sessionID)
			writeData(w, nil)
			return
		}
		if err != nil {
			log.Err(err).Msg("userInfo lookup failed")
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}
		writeData(w, user.Project(s.userFields))
	}
}

func (s *Server) writeAttachmentError(w http.ResponseWriter, err error) {
	if errors.Is(err, ssoerrors.ErrNotAttached) {
		writeError(w, http.StatusForbidden, ssoerrors.ErrNotAttached.Error())
		return
	}
	log.Err(err).Msg("attachment store failed")
	writeError(w, http.StatusInternalServerError, "internal error")
}
