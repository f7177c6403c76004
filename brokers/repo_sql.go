package brokers

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jrsteele09/go-sso/internal/database"
	ssoerrors "github.com/jrsteele09/go-sso/internal/errors"
)

var _ Repo = (*SQLRepo)(nil)

// SQLRepo stores brokers in a table with name, secret, origin and created_at
// columns. The table name is configurable.
type SQLRepo struct {
	db     *sql.DB
	driver string
	table  string
}

func NewSQLRepo(db *sql.DB, driver, table string) (*SQLRepo, error) {
	if !database.ValidIdentifier(table) {
		return nil, &ssoerrors.ConfigurationError{Field: "brokersTable", Reason: fmt.Sprintf("invalid table name %q", table)}
	}
	return &SQLRepo{db: db, driver: driver, table: table}, nil
}

// Migrate creates the brokers table when it does not exist.
func (r *SQLRepo) Migrate(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx, fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			name VARCHAR(255) PRIMARY KEY,
			secret VARCHAR(255) NOT NULL,
			origin VARCHAR(255),
			created_at TIMESTAMP NOT NULL
		)`, r.table))
	if err != nil {
		return fmt.Errorf("[brokers SQLRepo] failed to create table: %w", err)
	}
	return nil
}

func (r *SQLRepo) Upsert(ctx context.Context, broker *Broker) error {
	if broker == nil || broker.Name == "" {
		return errors.New("[brokers SQLRepo] broker name is required")
	}
	if broker.CreatedAt.IsZero() {
		broker.CreatedAt = time.Now().UTC()
	}
	query := database.Rebind(r.driver, fmt.Sprintf(`
		INSERT INTO %s (name, secret, origin, created_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (name) DO UPDATE SET secret = excluded.secret, origin = excluded.origin
	`, r.table))
	if _, err := r.db.ExecContext(ctx, query, broker.Name, broker.Secret, nullString(broker.Origin), broker.CreatedAt); err != nil {
		return fmt.Errorf("[brokers SQLRepo] failed to upsert %q: %w", broker.Name, err)
	}
	return nil
}

func (r *SQLRepo) Get(ctx context.Context, name string) (*Broker, error) {
	query := database.Rebind(r.driver, fmt.Sprintf(`SELECT name, secret, origin, created_at FROM %s WHERE name = ?`, r.table))

	var (
		b      Broker
		origin sql.NullString
	)
	err := r.db.QueryRowContext(ctx, query, name).Scan(&b.Name, &b.Secret, &origin, &b.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%q: %w", name, ssoerrors.ErrBrokerNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("[brokers SQLRepo] failed to get %q: %w", name, err)
	}
	b.Origin = origin.String
	return &b, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
