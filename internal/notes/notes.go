// Package notes persists the notes exposed by the sample schema.
package notes

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Note is a stored note. The json tags are the GraphQL field names.
type Note struct {
	ID    int64  `json:"id"`
	Title string `json:"title"`
	Body  string `json:"body"`
}

// Store creates and lists notes.
type Store interface {
	Create(ctx context.Context, title, body string) (Note, error)
	List(ctx context.Context) ([]Note, error)
	Close() error
}

// ErrUnsupportedDSN is returned by Open for DSN schemes it has no driver for.
var ErrUnsupportedDSN = errors.New("notes: unsupported dsn")

// Open opens the store named by dsn. postgres:// and postgresql:// DSNs use
// PostgreSQL; sqlite:// DSNs, file: URIs, :memory: and plain paths use SQLite.
func Open(ctx context.Context, dsn string) (Store, error) {
	scheme, _, hasScheme := strings.Cut(dsn, "://")
	switch {
	case dsn == "":
		return nil, fmt.Errorf("%w: empty", ErrUnsupportedDSN)
	case hasScheme && (scheme == "postgres" || scheme == "postgresql"):
		s, err := OpenPostgres(ctx, dsn)
		if err != nil {
			return nil, err
		}
		return s, nil
	case hasScheme && scheme != "sqlite":
		return nil, fmt.Errorf("%w: scheme %q", ErrUnsupportedDSN, scheme)
	}
	s, err := OpenSQLite(ctx, strings.TrimPrefix(dsn, "sqlite://"))
	if err != nil {
		return nil, err
	}
	return s, nil
}
