// Package loginflow keeps the state of a browser login on the server between
// rendering the login form and its submission.
package loginflow

import "time"

// DefaultTTL is how long a rendered login form stays valid.
const DefaultTTL = 10 * time.Minute

type State struct {
	SessionID string
	Broker    string
	ReturnURL string
	CreatedAt time.Time
}

type Repo interface {
	Upsert(id string, state *State) error
	Get(id string) (*State, error)
	Delete(id string) error
}
