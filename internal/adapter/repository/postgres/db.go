package postgres

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/lib/pq" // PostgreSQL driver
)

// DB wraps the database connection
type DB struct {
	*sql.DB
}

// NewDB creates a new database connection
// connectionString should be in the format: "host=localhost port=5432 user=postgres password=postgres dbname=settlement sslmode=disable"
func NewDB(connectionString string) (*DB, error) {
	db, err := sql.Open("postgres", connectionString)
	if err != nil {
		return nil, fmt.Errorf("failed to open database connection: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &DB{DB: db}, nil
}

// Close closes the database connection
func (db *DB) Close() error {
	return db.DB.Close()
}

const schema = `
CREATE TABLE IF NOT EXISTS settlement_outcomes (
	id          UUID PRIMARY KEY,
	request_id  UUID NOT NULL,
	state       TEXT NOT NULL,
	cancelled   BOOLEAN NOT NULL,
	reported_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS settlement_outcomes_request_id_idx
	ON settlement_outcomes (request_id, reported_at);

CREATE TABLE IF NOT EXISTS settlement_outcome_transfers (
	outcome_id   UUID NOT NULL REFERENCES settlement_outcomes (id) ON DELETE CASCADE,
	position     INT NOT NULL,
	from_account CHAR(26) NOT NULL,
	to_account   CHAR(26) NOT NULL,
	amount       NUMERIC NOT NULL,
	held         NUMERIC NOT NULL,
	completed    BOOLEAN NOT NULL,
	PRIMARY KEY (outcome_id, position)
);
`

// Migrate creates the outcome tables if they do not exist
func (db *DB) Migrate(ctx context.Context) error {
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to migrate schema: %w", err)
	}
	return nil
}
