package broker

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

var _ UserRepository = (*MemoryUserRepository)(nil)

type MemoryUserRepository struct {
	mu    sync.RWMutex
	users map[string]LocalUser
}

func NewMemoryUserRepository() *MemoryUserRepository {
	return &MemoryUserRepository{users: make(map[string]LocalUser)}
}

func (r *MemoryUserRepository) FindBy(_ context.Context, value string) (*LocalUser, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	u, ok := r.users[value]
	if !ok {
		return nil, ErrUserNotFound
	}
	return &u, nil
}

func (r *MemoryUserRepository) Create(_ context.Context, value string) (*LocalUser, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.users[value]
	if !ok {
		u = LocalUser{ID: uuid.New().String(), Username: value}
		r.users[value] = u
	}
	return &u, nil
}

// Len returns the number of stored users.
func (r *MemoryUserRepository) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.users)
}
