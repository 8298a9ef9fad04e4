package db

import (
	"context"
	"embed"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

//go:embed db_init.sql
var sqlFS embed.FS

// OpenDatabase connects to Postgres and bootstraps the schema. A pool rather
// than a single connection: transcript appends from concurrent sessions land
// here simultaneously.
func OpenDatabase(ctx context.Context, databaseURL string) (*pgxpool.Pool, *Store, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, nil, fmt.Errorf("unable to connect to database: %w", err)
	}

	sqlFile, err := sqlFS.ReadFile("db_init.sql")
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read embedded db_init.sql: %w", err)
	}
	if _, err := pool.Exec(ctx, string(sqlFile)); err != nil {
		return nil, nil, fmt.Errorf("failed to execute embedded db_init.sql: %w", err)
	}

	return pool, NewStore(pool), nil
}
