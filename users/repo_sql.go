package users

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jrsteele09/go-sso/internal/database"
	ssoerrors "github.com/jrsteele09/go-sso/internal/errors"
)

var _ UserRepo = (*SQLRepo)(nil)

// SQLRepo stores server accounts in a single table.
type SQLRepo struct {
	db     *sql.DB
	driver string
	table  string
}

func NewSQLRepo(db *sql.DB, driver, table string) (*SQLRepo, error) {
	if !database.ValidIdentifier(table) {
		return nil, &ssoerrors.ConfigurationError{Field: "accountsTable", Reason: fmt.Sprintf("invalid table name %q", table)}
	}
	return &SQLRepo{db: db, driver: driver, table: table}, nil
}

// Migrate creates the accounts table when it does not exist.
func (r *SQLRepo) Migrate(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx, fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			id VARCHAR(36) PRIMARY KEY,
			email VARCHAR(255) NOT NULL UNIQUE,
			username VARCHAR(255),
			password_hash VARCHAR(255) NOT NULL,
			first_name VARCHAR(255),
			last_name VARCHAR(255),
			date_joined TIMESTAMP NOT NULL,
			last_login TIMESTAMP,
			blocked BOOLEAN NOT NULL DEFAULT FALSE
		)`, r.table))
	if err != nil {
		return fmt.Errorf("[users SQLRepo] failed to create table: %w", err)
	}
	return nil
}

func (r *SQLRepo) Upsert(user *User) error {
	if user == nil || user.Email == "" {
		return errors.New("[users SQLRepo] email is required")
	}
	if user.ID == "" {
		user.ID = uuid.New().String()
	}
	if user.DateJoined.IsZero() {
		user.DateJoined = time.Now().UTC()
	}
	query := database.Rebind(r.driver, fmt.Sprintf(`
		INSERT INTO %s (id, email, username, password_hash, first_name, last_name, date_joined, blocked)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			email = excluded.email,
			username = excluded.username,
			password_hash = excluded.password_hash,
			first_name = excluded.first_name,
			last_name = excluded.last_name,
			blocked = excluded.blocked
	`, r.table))
	_, err := r.db.Exec(query, user.ID, user.Email, nullString(user.Username), user.PasswordHash,
		nullString(user.FirstName), nullString(user.LastName), user.DateJoined, user.Blocked)
	if err != nil {
		return fmt.Errorf("[users SQLRepo] failed to upsert %q: %w", user.Email, err)
	}
	return nil
}

func (r *SQLRepo) GetByEmail(email string) (*User, error) {
	return r.getBy("email", email)
}

func (r *SQLRepo) GetByUsername(username string) (*User, error) {
	return r.getBy("username", username)
}

func (r *SQLRepo) GetByID(id string) (*User, error) {
	return r.getBy("id", id)
}

func (r *SQLRepo) getBy(column, value string) (*User, error) {
	query := database.Rebind(r.driver, fmt.Sprintf(`
		SELECT id, email, username, password_hash, first_name, last_name, date_joined, last_login, blocked
		FROM %s WHERE %s = ?`, r.table, column))

	var (
		u                             User
		username, firstName, lastName sql.NullString
		lastLogin                     sql.NullTime
	)
	err := r.db.QueryRow(query, value).Scan(&u.ID, &u.Email, &username, &u.PasswordHash,
		&firstName, &lastName, &u.DateJoined, &lastLogin, &u.Blocked)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ssoerrors.ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("[users SQLRepo] failed to get user by %s: %w", column, err)
	}
	u.Username = username.String
	u.FirstName = firstName.String
	u.LastName = lastName.String
	u.LastLogin = lastLogin.Time
	return &u, nil
}

func (r *SQLRepo) SetBlocked(email string, blocked bool) error {
	query := database.Rebind(r.driver, fmt.Sprintf(`UPDATE %s SET blocked = ? WHERE email = ?`, r.table))
	return r.updateOne(query, blocked, email)
}

func (r *SQLRepo) SetLastLogin(id string, at time.Time) error {
	query := database.Rebind(r.driver, fmt.Sprintf(`UPDATE %s SET last_login = ? WHERE id = ?`, r.table))
	return r.updateOne(query, at.UTC(), id)
}

func (r *SQLRepo) updateOne(query string, args ...any) error {
	res, err := r.db.Exec(query, args...)
	if err != nil {
		return fmt.Errorf("[users SQLRepo] update failed: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("[users SQLRepo] update failed: %w", err)
	}
	if n == 0 {
		return ssoerrors.ErrUserNotFound
	}
	return nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
