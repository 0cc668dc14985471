package credentials

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
)

const defaultNamespace = "default"

// PostgresStore keeps credentials in a shared table, one row per
// (namespace, key). The namespace separates local profiles.
type PostgresStore struct {
	db        *sqlx.DB
	namespace string
}

// OpenPostgres connects and applies migrations.
func OpenPostgres(ctx context.Context, dsn, namespace string) (*PostgresStore, error) {
	if dsn == "" {
		return nil, fmt.Errorf("credentials: postgres driver requires a dsn")
	}
	db, err := sqlx.ConnectContext(ctx, "postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("connect db: %w", err)
	}
	if err := runMigrations(ctx, db); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return NewPostgresStore(db, namespace), nil
}

func NewPostgresStore(db *sqlx.DB, namespace string) *PostgresStore {
	if namespace == "" {
		namespace = defaultNamespace
	}
	return &PostgresStore{db: db, namespace: namespace}
}

func runMigrations(ctx context.Context, db *sqlx.DB) error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS client_credentials (
            namespace TEXT NOT NULL,
            key TEXT NOT NULL,
            value BYTEA NOT NULL,
            updated_at TIMESTAMPTZ DEFAULT NOW(),
            PRIMARY KEY(namespace, key)
        );`,
	}

	for _, m := range migrations {
		if _, err := db.ExecContext(ctx, m); err != nil {
			return err
		}
	}
	slog.Debug("credential store migrations applied")
	return nil
}

func (p *PostgresStore) Get(ctx context.Context, key string) ([]byte, error) {
	var value []byte
	query := `SELECT value FROM client_credentials WHERE namespace=$1 AND key=$2`
	if err := p.db.GetContext(ctx, &value, query, p.namespace, key); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return value, nil
}

func (p *PostgresStore) Put(ctx context.Context, key string, value []byte) error {
	_, err := p.db.ExecContext(ctx, `INSERT INTO client_credentials (namespace, key, value, updated_at)
        VALUES ($1, $2, $3, NOW())
        ON CONFLICT (namespace, key) DO UPDATE SET value = EXCLUDED.value, updated_at = NOW()`,
		p.namespace, key, value)
	return err
}

func (p *PostgresStore) Delete(ctx context.Context, key string) error {
	_, err := p.db.ExecContext(ctx, `DELETE FROM client_credentials WHERE namespace=$1 AND key=$2`, p.namespace, key)
	return err
}

func (p *PostgresStore) Close() error {
	return p.db.Close()
}
