package loginflow

import (
	"errors"
	"time"

	lru "github.com/hashicorp/golang-lru/v2/expirable"
	ssoerrors "github.com/jrsteele09/go-sso/internal/errors"
)

var _ Repo = (*InMemoryRepo)(nil)

// InMemoryRepo holds login states in a bounded, expiring cache. Abandoned
// forms age out on their own.
type InMemoryRepo struct {
	states *lru.LRU[string, State]
}

func NewInMemoryRepo(size int, ttl time.Duration) *InMemoryRepo {
	if size <= 0 {
		size = 10000
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &InMemoryRepo{states: lru.NewLRU[string, State](size, nil, ttl)}
}

// Upsert stores or updates a login state
func (r *InMemoryRepo) Upsert(id string, state *State) error {
	if id == "" {
		return errors.New("id cannot be empty")
	}
	if state == nil {
		return errors.New("state cannot be nil")
	}
	r.states.Add(id, *state)
	return nil
}

// Get retrieves a copy of a login state
func (r *InMemoryRepo) Get(id string) (*State, error) {
	if id == "" {
		return nil, errors.New("id cannot be empty")
	}
	state, ok := r.states.Get(id)
	if !ok {
		return nil, ssoerrors.ErrNotFound
	}
	return &state, nil
}

// Delete removes a login state
func (r *InMemoryRepo) Delete(id string) error {
	if id == "" {
		return errors.New("id cannot be empty")
	}
	r.states.Remove(id)
	return nil
}
