package fakeuserrepo

import (
	"sync"
	"time"

	"github.com/google/uuid"
	ssoerrors "github.com/jrsteele09/go-sso/internal/errors"
	"github.com/jrsteele09/go-sso/users"
)

var _ users.UserRepo = (*FakeUserRepo)(nil)

type FakeUserRepo struct {
	users       map[string]users.User
	emailIds    map[string]string // email to user id
	usernameIds map[string]string // username to user id
	lock        sync.RWMutex
}

func NewFakeUserRepo() users.UserRepo {
	return &FakeUserRepo{
		users:       make(map[string]users.User),
		emailIds:    make(map[string]string),
		usernameIds: make(map[string]string),
	}
}

func (ur *FakeUserRepo) Upsert(user *users.User) error {
	ur.lock.Lock()
	defer ur.lock.Unlock()

	if user.ID == "" {
		user.ID = uuid.New().String()
	}
	if user.DateJoined.IsZero() {
		user.DateJoined = time.Now()
	}
	if old, ok := ur.users[user.ID]; ok {
		delete(ur.emailIds, old.Email)
		delete(ur.usernameIds, old.Username)
	}
	ur.users[user.ID] = *user
	if user.Email != "" {
		ur.emailIds[user.Email] = user.ID
	}
	if user.Username != "" {
		ur.usernameIds[user.Username] = user.ID
	}
	return nil
}

func (ur *FakeUserRepo) GetByEmail(email string) (*users.User, error) {
	ur.lock.RLock()
	defer ur.lock.RUnlock()

	return ur.lookup(ur.emailIds[email])
}

func (ur *FakeUserRepo) GetByUsername(username string) (*users.User, error) {
	ur.lock.RLock()
	defer ur.lock.RUnlock()

	return ur.lookup(ur.usernameIds[username])
}

func (ur *FakeUserRepo) GetByID(id string) (*users.User, error) {
	ur.lock.RLock()
	defer ur.lock.RUnlock()

	return ur.lookup(id)
}

func (ur *FakeUserRepo) lookup(id string) (*users.User, error) {
	u, ok := ur.users[id]
	if !ok {
		return nil, ssoerrors.ErrUserNotFound
	}
	return &u, nil
}

func (ur *FakeUserRepo) SetBlocked(email string, blocked bool) error {
	ur.lock.Lock()
	defer ur.lock.Unlock()

	id, ok := ur.emailIds[email]
	if !ok {
		return ssoerrors.ErrUserNotFound
	}
	u := ur.users[id]
	u.Blocked = blocked
	ur.users[id] = u
	return nil
}

func (ur *FakeUserRepo) SetLastLogin(id string, at time.Time) error {
	ur.lock.Lock()
	defer ur.lock.Unlock()

	u, ok := ur.users[id]
	if !ok {
		return ssoerrors.ErrUserNotFound
	}
	u.LastLogin = at
	ur.users[id] = u
	return nil
}
