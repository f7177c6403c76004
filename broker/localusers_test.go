package broker_test

import (
	"context"
	"database/sql"
	"sync"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jrsteele09/go-sso/broker"
	"github.com/jrsteele09/go-sso/internal/database"
	ssoerrors "github.com/jrsteele09/go-sso/internal/errors"
	"github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupSQLiteUsers(t *testing.T) (*broker.SQLUserRepository, *sql.DB) {
	t.Helper()
	db, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })

	repo, err := broker.NewSQLUserRepository(db, database.DriverSQLite, "users", "email")
	require.NoError(t, err)
	require.NoError(t, repo.Migrate(context.Background()))
	return repo, db
}

func TestUserRepositories(t *testing.T) {
	sqlRepo, _ := setupSQLiteUsers(t)
	repos := map[string]broker.UserRepository{
		"memory": broker.NewMemoryUserRepository(),
		"sqlite": sqlRepo,
	}

	for name, repo := range repos {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			_, err := repo.FindBy(ctx, "alice@example.com")
			require.ErrorIs(t, err, broker.ErrUserNotFound)

			var wg sync.WaitGroup
			ids := make([]string, 8)
			for i := range ids {
				wg.Add(1)
				go func(i int) {
					defer wg.Done()
					u, err := repo.Create(ctx, "alice@example.com")
					if assert.NoError(t, err) {
						ids[i] = u.ID
					}
				}(i)
			}
			wg.Wait()
			for _, id := range ids {
				require.Equal(t, ids[0], id)
			}

			u, err := repo.FindBy(ctx, "alice@example.com")
			require.NoError(t, err)
			require.Equal(t, ids[0], u.ID)
			require.Equal(t, "alice@example.com", u.Username)
		})
	}
}

func TestSQLUserRepository_RowCount(t *testing.T) {
	repo, db := setupSQLiteUsers(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := repo.Create(ctx, "bob@example.com")
		require.NoError(t, err)
	}

	var n int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM users`).Scan(&n))
	require.Equal(t, 1, n)
}

func TestSQLUserRepository_InvalidIdentifiers(t *testing.T) {
	db, _, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	_, err = broker.NewSQLUserRepository(db, database.DriverPostgres, "users; DROP TABLE x", "email")
	require.True(t, ssoerrors.IsConfiguration(err))
	_, err = broker.NewSQLUserRepository(db, database.DriverPostgres, "users", "id")
	require.True(t, ssoerrors.IsConfiguration(err))
}

func TestSQLUserRepository_Postgres(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo, err := broker.NewSQLUserRepository(db, database.DriverPostgres, "members", "login")
	require.NoError(t, err)

	mock.ExpectExec(`INSERT INTO members \(id, login, created_at\) VALUES \(\$1, \$2, \$3\)`).
		WithArgs(sqlmock.AnyArg(), "carol", sqlmock.AnyArg()).
		WillReturnError(&pq.Error{Code: "23505", Message: "duplicate key value violates unique constraint \"members_login_key\""})
	mock.ExpectQuery(`SELECT id, login FROM members WHERE login = \$1`).
		WithArgs("carol").
		WillReturnRows(sqlmock.NewRows([]string{"id", "login"}).AddRow("existing-id", "carol"))

	u, err := repo.Create(context.Background(), "carol")
	require.NoError(t, err)
	require.Equal(t, "existing-id", u.ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

