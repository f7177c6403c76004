// Package attachments records which broker SessionIds have completed the
// attach handshake and whether a user is logged in through them.
package attachments

import (
	"context"
	"time"
)

type State string

const (
	StateAnonymous     State = "anonymous"
	StateAuthenticated State = "authenticated"
)

// DefaultTTL is how long an attachment survives without activity. It is
// longer than the broker's default token lifetime.
const DefaultTTL = 2 * time.Hour

// Record links one broker SessionId to a server side login state.
type Record struct {
	SessionID  string    `json:"session_id"`
	Broker     string    `json:"broker"`
	State      State     `json:"state"`
	UserID     string    `json:"user_id,omitempty"`
	AttachedAt time.Time `json:"attached_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

func (r *Record) Authenticated() bool {
	return r.State == StateAuthenticated && r.UserID != ""
}

// Repo stores attachment records. Every method that does not find a live
// record returns errors.ErrNotAttached.
type Repo interface {
	// Attach creates an anonymous record for sessionID or refreshes the
	// expiry of an existing one, leaving its state untouched.
	Attach(ctx context.Context, sessionID, broker string) (*Record, error)
	Get(ctx context.Context, sessionID string) (*Record, error)
	Authenticate(ctx context.Context, sessionID, userID string) error
	Logout(ctx context.Context, sessionID string) error
}
