package notes

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

const postgresSchema = `CREATE TABLE IF NOT EXISTS notes (
	id    BIGSERIAL PRIMARY KEY,
	title TEXT NOT NULL DEFAULT '',
	body  TEXT NOT NULL DEFAULT ''
)`

// PostgresStore keeps notes in PostgreSQL through a connection pool.
type PostgresStore struct {
	pool *pgxpool.Pool
}

var _ Store = (*PostgresStore)(nil)

// OpenPostgres connects to dsn and ensures the notes table exists.
func OpenPostgres(ctx context.Context, dsn string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("notes: connect postgres: %w", err)
	}
	if _, err := pool.Exec(ctx, postgresSchema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("notes: create schema: %w", err)
	}
	return &PostgresStore{pool: pool}, nil
}

func (s *PostgresStore) Create(ctx context.Context, title, body string) (Note, error) {
	n := Note{Title: title, Body: body}
	err := s.pool.QueryRow(ctx,
		`INSERT INTO notes (title, body) VALUES ($1, $2) RETURNING id`, title, body,
	).Scan(&n.ID)
	if err != nil {
		return Note{}, fmt.Errorf("notes: create: %w", err)
	}
	return n, nil
}

func (s *PostgresStore) List(ctx context.Context) ([]Note, error) {
	rows, err := s.pool.Query(ctx, `SELECT id, title, body FROM notes ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("notes: list: %w", err)
	}
	defer rows.Close()

	out := []Note{}
	for rows.Next() {
		var n Note
		if err := rows.Scan(&n.ID, &n.Title, &n.Body); err != nil {
			return nil, fmt.Errorf("notes: scan: %w", err)
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}
