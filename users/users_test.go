package users_test

import (
	"testing"

	ssoerrors "github.com/jrsteele09/go-sso/internal/errors"
	"github.com/jrsteele09/go-sso/users"
	fakeuserrepo "github.com/jrsteele09/go-sso/users/repofake"
	"github.com/stretchr/testify/require"
)

const (
	testUserEmail    = "alice@example.com"
	testUserPassword = "Password123"
)

func setupUsers(t *testing.T) users.UserRepo {
	t.Helper()
	repo := fakeuserrepo.NewFakeUserRepo()
	hash, err := users.HashPassword(testUserPassword)
	require.NoError(t, err)
	require.NoError(t, repo.Upsert(&users.User{
		ID:           "user-1",
		Email:        testUserEmail,
		Username:     "alice",
		PasswordHash: hash,
		FirstName:    "Alice",
		LastName:     "Liddell",
	}))
	return repo
}

func TestAuthenticate(t *testing.T) {
	repo := setupUsers(t)

	t.Run("by email", func(t *testing.T) {
		u, err := users.Authenticate(repo, "email", testUserEmail, testUserPassword)
		require.NoError(t, err)
		require.Equal(t, "user-1", u.ID)

		stored, err := repo.GetByID("user-1")
		require.NoError(t, err)
		require.False(t, stored.LastLogin.IsZero())
	})

	t.Run("by username", func(t *testing.T) {
		u, err := users.Authenticate(repo, "username", "alice", testUserPassword)
		require.NoError(t, err)
		require.Equal(t, testUserEmail, u.Email)
	})

	t.Run("wrong password", func(t *testing.T) {
		_, err := users.Authenticate(repo, "email", testUserEmail, "wrong-password")
		require.ErrorIs(t, err, ssoerrors.ErrInvalidCredentials)
	})

	t.Run("unknown user", func(t *testing.T) {
		_, err := users.Authenticate(repo, "email", "bob@example.com", testUserPassword)
		require.ErrorIs(t, err, ssoerrors.ErrInvalidCredentials)
	})

	t.Run("blocked", func(t *testing.T) {
		require.NoError(t, repo.SetBlocked(testUserEmail, true))
		defer repo.SetBlocked(testUserEmail, false)
		_, err := users.Authenticate(repo, "email", testUserEmail, testUserPassword)
		require.ErrorIs(t, err, ssoerrors.ErrUserBlocked)
	})
}

func TestUser_Project(t *testing.T) {
	u := &users.User{ID: "user-1", Email: testUserEmail, FirstName: "Alice", LastName: "Liddell", PasswordHash: "secret"}

	out := u.Project(map[string]string{"email": "email", "name": "name", "hash": "password_hash"})
	require.Equal(t, map[string]any{
		"id":    "user-1",
		"email": testUserEmail,
		"name":  "Alice Liddell",
	}, out)
}

func TestValidatePasswordStrength(t *testing.T) {
	require.NoError(t, users.ValidatePasswordStrength("Password123"))
	require.Error(t, users.ValidatePasswordStrength("short"))
	require.Error(t, users.ValidatePasswordStrength("alllowercase1"))
}

func TestFakeUserRepo_EmailChange(t *testing.T) {
	repo := setupUsers(t)
	u, err := repo.GetByID("user-1")
	require.NoError(t, err)

	u.Email = "alice@new.example.com"
	require.NoError(t, repo.Upsert(u))

	_, err = repo.GetByEmail(testUserEmail)
	require.ErrorIs(t, err, ssoerrors.ErrUserNotFound)
	_, err = repo.GetByEmail("alice@new.example.com")
	require.NoError(t, err)
}
