package broker

import (
	"context"
	"time"
)

// State is where a browser is in the attach and login handshake.
type State int

const (
	StateNoToken State = iota
	StateTokenIssued
	StateAttached
	StateAuthenticated
)

func (s State) String() string {
	switch s {
	case StateTokenIssued:
		return "token_issued"
	case StateAttached:
		return "attached"
	case StateAuthenticated:
		return "authenticated"
	default:
		return "no_token"
	}
}

// CookieStore reads and writes the browser's cookies for one request.
type CookieStore interface {
	Get(name string) (string, bool)
	Set(name, value string, maxAge time.Duration)
	Delete(name string)
}

// LocalAuth is the host application's own login state for one request.
type LocalAuth interface {
	Guest(ctx context.Context) bool
	LoginUser(ctx context.Context, userID string) error
	Logout(ctx context.Context) error
}

// Request carries the per-request collaborators through every broker call.
// A Request must not be shared between HTTP requests.
type Request struct {
	Cookies CookieStore
	Auth    LocalAuth

	token string
	state State
}

func NewRequest(cookies CookieStore, auth LocalAuth) *Request {
	return &Request{Cookies: cookies, Auth: auth}
}

// State reports how far the handshake has progressed during this request.
func (r *Request) State() State {
	return r.state
}
