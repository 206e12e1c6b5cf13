// Package database persists alert records and their delivery outcome in
// Postgres, so raised alerts remain auditable after the process exits.
package database

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/lib/pq" // PostgreSQL driver
)

// Database обёртка над подключением к Postgres
type Database struct {
	DB *sql.DB
}

// New opens the connection and verifies it with a ping.
func New(ctx context.Context, dsn string) (*Database, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}

	if err = db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	return &Database{DB: db}, nil
}

// Init создаёт таблицу алертов, если её ещё нет.
// delivery_status tracks the notifier outcome: pending until the dispatcher
// reports back, then delivered or undelivered.
func (d *Database) Init(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS alerts (
		id TEXT PRIMARY KEY,
		instance_id TEXT NOT NULL,
		stream_id TEXT NOT NULL,
		hazard_kind TEXT NOT NULL,
		severity TEXT NOT NULL,
		renewal BOOLEAN NOT NULL DEFAULT FALSE,
		snapshot TEXT,
		frame_seq BIGINT NOT NULL,
		created_at TIMESTAMP NOT NULL,
		delivery_status TEXT NOT NULL DEFAULT 'pending',
		delivery_error TEXT
	);
	CREATE INDEX IF NOT EXISTS alerts_stream_idx ON alerts (stream_id, created_at);
	`

	if _, err := d.DB.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("init alerts schema: %w", err)
	}
	return nil
}

// Close closes the database connection
func (d *Database) Close() error {
	return d.DB.Close()
}
