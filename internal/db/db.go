package db

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"github.com/atp2osm/atp2osm-import/internal/config"
)

// Connection holds the database handle for one run. Both the atp_fr catalog
// table and the mv_places view live behind it; the core only ever reads.
type Connection struct {
	DB *sqlx.DB
}

// Connect opens the Postgres connection described by cfg and verifies it with
// a bounded ping. An unreachable database is an infrastructure failure and
// aborts the run at the caller.
func Connect(ctx context.Context, cfg config.DatabaseConfig) (*Connection, error) {
	db, err := sqlx.Open("postgres", cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(time.Hour)

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &Connection{DB: db}, nil
}

// Close closes the database connection.
func (c *Connection) Close() error {
	return c.DB.Close()
}
