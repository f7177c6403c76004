// Package localsession holds cookie backed login sessions for a single
// application. The SSO server uses it for its own browser session and the
// broker application uses it as its local login state.
package localsession

import "time"

type Session struct {
	UserID    string
	CreatedAt time.Time
	ExpiresAt time.Time
}

func (s Session) Expired(now time.Time) bool {
	return !s.ExpiresAt.IsZero() && now.After(s.ExpiresAt)
}

type Repo interface {
	Upsert(sessionID string, session Session) error
	Get(sessionID string) (Session, error)
	Delete(sessionID string) error
}
