package users_test

import (
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jrsteele09/go-sso/internal/database"
	ssoerrors "github.com/jrsteele09/go-sso/internal/errors"
	"github.com/jrsteele09/go-sso/users"
	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/require"
)

func setupSQLiteUsers(t *testing.T) *users.SQLRepo {
	t.Helper()
	db, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })

	repo, err := users.NewSQLRepo(db, database.DriverSQLite, "accounts")
	require.NoError(t, err)
	require.NoError(t, repo.Migrate(t.Context()))
	return repo
}

func TestSQLRepo_SQLite(t *testing.T) {
	repo := setupSQLiteUsers(t)
	hash, err := users.HashPassword(testUserPassword)
	require.NoError(t, err)

	u := &users.User{Email: testUserEmail, Username: "alice", PasswordHash: hash, FirstName: "Alice"}
	require.NoError(t, repo.Upsert(u))
	require.NotEmpty(t, u.ID)

	byEmail, err := repo.GetByEmail(testUserEmail)
	require.NoError(t, err)
	require.Equal(t, u.ID, byEmail.ID)
	require.Equal(t, "Alice", byEmail.FirstName)
	require.True(t, byEmail.LastLogin.IsZero())

	byName, err := repo.GetByUsername("alice")
	require.NoError(t, err)
	require.Equal(t, u.ID, byName.ID)

	authed, err := users.Authenticate(repo, "email", testUserEmail, testUserPassword)
	require.NoError(t, err)
	require.Equal(t, u.ID, authed.ID)

	stored, err := repo.GetByID(u.ID)
	require.NoError(t, err)
	require.WithinDuration(t, time.Now(), stored.LastLogin, time.Minute)

	require.NoError(t, repo.SetBlocked(testUserEmail, true))
	_, err = users.Authenticate(repo, "email", testUserEmail, testUserPassword)
	require.ErrorIs(t, err, ssoerrors.ErrUserBlocked)

	_, err = repo.GetByEmail("nobody@example.com")
	require.ErrorIs(t, err, ssoerrors.ErrUserNotFound)
	require.ErrorIs(t, repo.SetLastLogin("missing", time.Now()), ssoerrors.ErrUserNotFound)
}

func TestSQLRepo_PostgresPlaceholders(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo, err := users.NewSQLRepo(db, database.DriverPostgres, "accounts")
	require.NoError(t, err)

	mock.ExpectExec(`UPDATE accounts SET blocked = \$1 WHERE email = \$2`).
		WithArgs(true, testUserEmail).
		WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, repo.SetBlocked(testUserEmail, true))
	require.NoError(t, mock.ExpectationsWereMet())

	_, err = users.NewSQLRepo(db, database.DriverPostgres, "accounts where 1=1")
	require.True(t, ssoerrors.IsConfiguration(err))
}
