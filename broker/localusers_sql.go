package broker

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

var _ UserRepository = (*SQLUserRepository)(nil)

// SQLUserRepository keeps local users in a table with id, <field> and
// created_at columns. The lookup field carries a unique constraint.
type SQLUserRepository struct {
	db     *sql.DB
	driver string
	table  string
	field  string
}

func NewSQLUserRepository(db *sql.DB, driver, table, field string) (*SQLUserRepository, error) {
	if !database.ValidIdentifier(table) {
		return nil, &ssoerrors.ConfigurationError{Field: "usersTable", Reason: fmt.Sprintf("invalid table name %q", table)}
	}
	if !database.ValidIdentifier(field) || field == "id" || field == "created_at" {
		return nil, &ssoerrors.ConfigurationError{Field: "usernameField", Reason: fmt.Sprintf("invalid field name %q", field)}
	}
	return &SQLUserRepository{db: db, driver: driver, table: table, field: field}, nil
}

// Migrate creates the users table when it does not exist.
func (r *SQLUserRepository) Migrate(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx, fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			id VARCHAR(36) PRIMARY KEY,
			%s VARCHAR(255) NOT NULL UNIQUE,
			created_at TIMESTAMP NOT NULL
		)`, r.table, r.field))
	if err != nil {
		return fmt.Errorf("[broker SQLUserRepository] failed to create table: %w", err)
	}
	return nil
}

func (r *SQLUserRepository) FindBy(ctx context.Context, value string) (*LocalUser, error) {
	query := database.Rebind(r.driver, fmt.Sprintf(`SELECT id, %s FROM %s WHERE %s = ?`, r.field, r.table, r.field))

	var u LocalUser
	err := r.db.QueryRowContext(ctx, query, value).Scan(&u.ID, &u.Username)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("[broker SQLUserRepository] find failed: %w", err)
	}
	return &u, nil
}

// Create inserts a user. When a concurrent login inserted the same value
// first, the existing row is returned.
func (r *SQLUserRepository) Create(ctx context.Context, value string) (*LocalUser, error) {
	u := LocalUser{ID: uuid.New().String(), Username: value}
	query := database.Rebind(r.driver, fmt.Sprintf(`INSERT INTO %s (id, %s, created_at) VALUES (?, ?, ?)`, r.table, r.field))

	_, err := r.db.ExecContext(ctx, query, u.ID, value, time.Now().UTC())
	if database.IsUniqueViolation(err) {
		return r.FindBy(ctx, value)
	}
	if err != nil {
		return nil, fmt.Errorf("[broker SQLUserRepository] create failed: %w", err)
	}
	return &u, nil
}
