package progress

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore is a Store backed by a PostgreSQL table. All operations are
// safe for concurrent use.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// Compile-time interface check.
var _ Store = (*PostgresStore)(nil)

// NewPostgresStore establishes a connection pool to the database at dsn and
// ensures the bookmarks table exists.
func NewPostgresStore(ctx context.Context, dsn string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("progress: create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("progress: ping: %w", err)
	}
	if err := migrate(ctx, pool); err != nil {
		pool.Close()
		return nil, fmt.Errorf("progress: migrate: %w", err)
	}
	return &PostgresStore{pool: pool}, nil
}

// migrate ensures the schema exists. Idempotent.
func migrate(ctx context.Context, pool *pgxpool.Pool) error {
	_, err := pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS bookmarks (
			document   TEXT PRIMARY KEY,
			last_page  INTEGER NOT NULL CHECK (last_page > 0),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`)
	return err
}

// Save implements Store.
func (s *PostgresStore) Save(ctx context.Context, document string, lastPage int) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO bookmarks (document, last_page, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (document)
		DO UPDATE SET last_page = EXCLUDED.last_page, updated_at = now()`,
		document, lastPage)
	if err != nil {
		return fmt.Errorf("progress: save bookmark for %q: %w", document, err)
	}
	return nil
}

// Load implements Store.
func (s *PostgresStore) Load(ctx context.Context, document string) (Bookmark, error) {
	var b Bookmark
	err := s.pool.QueryRow(ctx, `
		SELECT document, last_page, updated_at FROM bookmarks WHERE document = $1`,
		document).Scan(&b.Document, &b.LastPage, &b.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Bookmark{}, ErrNotFound
	}
	if err != nil {
		return Bookmark{}, fmt.Errorf("progress: load bookmark for %q: %w", document, err)
	}
	return b, nil
}

// Close implements Store.
func (s *PostgresStore) Close() {
	s.pool.Close()
}

// Ping reports whether the database is reachable. Used by readiness checks.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}
