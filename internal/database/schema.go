package database

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Schema creates the journal tables. Statements are idempotent.
var Schema = []string{
	`CREATE TABLE IF NOT EXISTS connection_transitions (
		id          UUID PRIMARY KEY,
		user_id     TEXT NOT NULL,
		session_id  UUID,
		from_state  TEXT NOT NULL,
		to_state    TEXT NOT NULL,
		attempt     INTEGER NOT NULL DEFAULT 0,
		reason      TEXT,
		occurred_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS connection_transitions_user_time
		ON connection_transitions (user_id, occurred_at)`,
	`CREATE TABLE IF NOT EXISTS presence_observations (
		id          UUID PRIMARY KEY,
		observer_id TEXT NOT NULL,
		user_id     TEXT NOT NULL,
		is_online   BOOLEAN NOT NULL,
		observed_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS presence_observations_user_time
		ON presence_observations (user_id, observed_at)`,
}

// EnsureSchema applies Schema.
func EnsureSchema(ctx context.Context, pool *pgxpool.Pool) error {
	for _, stmt := range Schema {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("apply schema: %w", err)
		}
	}
	return nil
}
