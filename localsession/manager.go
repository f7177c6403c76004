package localsession

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	ssoerrors "github.com/jrsteele09/go-sso/internal/errors"
)

// Manager binds sessions in a Repo to a browser cookie.
type Manager struct {
	repo       Repo
	cookieName string
	maxAge     time.Duration
	secure     bool
	now        func() time.Time
}

func NewManager(repo Repo, cookieName string, maxAge time.Duration, secure bool) *Manager {
	return &Manager{
		repo:       repo,
		cookieName: cookieName,
		maxAge:     maxAge,
		secure:     secure,
		now:        time.Now,
	}
}

// ForRequest returns the login state of the browser that sent r. Changes are
// written to w as cookies, so it must be used before the response is sent.
func (m *Manager) ForRequest(w http.ResponseWriter, r *http.Request) *Auth {
	return &Auth{m: m, w: w, r: r}
}

// Auth is the login state of one request.
type Auth struct {
	m *Manager
	w http.ResponseWriter
	r *http.Request

	loaded    bool
	sessionID string
	session   *Session
}

func (a *Auth) load() {
	if a.loaded {
		return
	}
	a.loaded = true

	cookie, err := a.r.Cookie(a.m.cookieName)
	if err != nil || cookie.Value == "" {
		return
	}
	session, err := a.m.repo.Get(cookie.Value)
	if err != nil {
		return
	}
	if session.Expired(a.m.now()) {
		_ = a.m.repo.Delete(cookie.Value)
		return
	}
	a.sessionID = cookie.Value
	a.session = &session
}

func (a *Auth) Guest(context.Context) bool {
	a.load()
	return a.session == nil
}

// UserID returns the logged in user, or "" for a guest.
func (a *Auth) UserID(context.Context) string {
	a.load()
	if a.session == nil {
		return ""
	}
	return a.session.UserID
}

// LoginUser starts a new session for userID. Any previous session is
// discarded so the session ID changes on login.
func (a *Auth) LoginUser(_ context.Context, userID string) error {
	if userID == "" {
		return errors.New("[localsession LoginUser] userID is required")
	}
	a.load()
	if a.sessionID != "" {
		_ = a.m.repo.Delete(a.sessionID)
	}

	now := a.m.now()
	session := Session{
		UserID:    userID,
		CreatedAt: now,
		ExpiresAt: now.Add(a.m.maxAge),
	}
	sessionID := uuid.New().String()
	if err := a.m.repo.Upsert(sessionID, session); err != nil {
		return fmt.Errorf("[localsession LoginUser] %w", err)
	}

	a.sessionID = sessionID
	a.session = &session
	a.setCookie(sessionID, int(a.m.maxAge.Seconds()))
	return nil
}

func (a *Auth) Logout(context.Context) error {
	a.load()
	if a.sessionID != "" {
		if err := a.m.repo.Delete(a.sessionID); err != nil && !errors.Is(err, ssoerrors.ErrSessionNotFound) {
			return fmt.Errorf("[localsession Logout] %w", err)
		}
	}
	a.sessionID = ""
	a.session = nil
	a.setCookie("", -1)
	return nil
}

func (a *Auth) setCookie(value string, maxAge int) {
	http.SetCookie(a.w, &http.Cookie{
		Name:     a.m.cookieName,
		Value:    value,
		Path:     "/",
		HttpOnly: true,
		Secure:   a.m.secure,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   maxAge,
	})
}
