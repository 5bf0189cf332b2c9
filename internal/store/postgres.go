// Package store wraps the pgx connection pool shared by the version
// resolver (C6), the SQL query builder (C8), and the authorization
// gate's role-permission lookup (C9 step 4), and owns the bootstrap
// schema for the tables they all read and write.
package store

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore owns the pooled connection to the catalog database.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore opens a pool against dsn, pings it, and ensures the
// catalog schema exists.
func NewPostgresStore(ctx context.Context, dsn string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("create postgres pool: %w", err)
	}
	s := &PostgresStore{pool: pool}
	if err := s.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	if err := s.ensureSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	if err := s.pool.Ping(ctx); err != nil {
		return fmt.Errorf("ping postgres: %w", err)
	}
	return nil
}

func (s *PostgresStore) Close() { s.pool.Close() }

// Pool exposes the underlying connection pool to the SQL builder and
// version resolver, which issue their own parameterized statements
// against it.
func (s *PostgresStore) Pool() *pgxpool.Pool { return s.pool }

func (s *PostgresStore) ensureSchema(ctx context.Context) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS collections (
			id   TEXT PRIMARY KEY,
			name TEXT NOT NULL UNIQUE
		)`,
		`CREATE TABLE IF NOT EXISTS datasets (
			id            TEXT PRIMARY KEY,
			collection_id TEXT NOT NULL REFERENCES collections(id),
			name          TEXT NOT NULL,
			UNIQUE (collection_id, name)
		)`,
		`CREATE TABLE IF NOT EXISTS tables (
			id            TEXT PRIMARY KEY,
			collection_id TEXT NOT NULL REFERENCES collections(id),
			dataset_id    TEXT NOT NULL REFERENCES datasets(id),
			name          TEXT NOT NULL,
			private       BOOLEAN NOT NULL DEFAULT FALSE,
			UNIQUE (collection_id, name)
		)`,
		`CREATE TABLE IF NOT EXISTS data_versions (
			id           TEXT PRIMARY KEY,
			table_id     TEXT NOT NULL REFERENCES tables(id),
			triggered_on TIMESTAMPTZ NOT NULL,
			status       TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_data_versions_table_time
			ON data_versions (table_id, triggered_on DESC) WHERE status = 'active'`,
		`CREATE TABLE IF NOT EXISTS role_permissions (
			role_id         TEXT NOT NULL,
			permission_kind INTEGER NOT NULL,
			collection_id   TEXT NOT NULL DEFAULT '',
			all_collections BOOLEAN NOT NULL DEFAULT FALSE,
			user_id         TEXT NOT NULL DEFAULT '',
			PRIMARY KEY (role_id, permission_kind, collection_id, all_collections, user_id)
		)`,
	}
	for _, stmt := range statements {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}
