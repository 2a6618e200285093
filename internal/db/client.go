package db

import (
	"context"

	"github.com/jackc/pgx/v4/pgxpool"
)

// Connect opens a pgx pool for the given DSN. Connection lifecycle is owned
// by the caller; this package holds no global client state.
func Connect(ctx context.Context, dsn string) (*Database, error) {
	pool, err := pgxpool.Connect(ctx, dsn)
	if err != nil {
		return nil, err
	}
	return NewDatabase(pool), nil
}
