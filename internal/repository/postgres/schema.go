package postgres

import (
	"context"
	"database/sql"
	"fmt"
)

// Schema creates the record tables. Milk records carry the (cow_id, date,
// shift) uniqueness the service also checks before inserting.
const Schema = `
CREATE TABLE IF NOT EXISTS cows (
	id            TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	tag_number    TEXT NOT NULL UNIQUE,
	name          TEXT NOT NULL,
	breed         TEXT,
	is_calf       BOOLEAN NOT NULL DEFAULT FALSE,
	date_of_birth DATE,
	notes         TEXT,
	created_at    TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS milk_production (
	id                 TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	cow_id             TEXT NOT NULL REFERENCES cows(id) ON DELETE CASCADE,
	date               DATE NOT NULL,
	shift              TEXT NOT NULL CHECK (shift IN ('Morning', 'Evening')),
	amount             DOUBLE PRECISION NOT NULL CHECK (amount > 0),
	quality            TEXT NOT NULL DEFAULT 'Good',
	quality_grade      TEXT NOT NULL DEFAULT 'Good',
	fat                DOUBLE PRECISION,
	protein            DOUBLE PRECISION,
	lactose            DOUBLE PRECISION,
	somatic_cell_count BIGINT,
	bacteria_count     BIGINT,
	notes              TEXT NOT NULL DEFAULT '',
	created_at         TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at         TIMESTAMPTZ,
	CONSTRAINT milk_production_cow_date_shift_key UNIQUE (cow_id, date, shift)
);

CREATE INDEX IF NOT EXISTS milk_production_created_at_idx ON milk_production (created_at DESC);

CREATE TABLE IF NOT EXISTS health_events (
	id           TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	cow_id       TEXT NOT NULL REFERENCES cows(id) ON DELETE CASCADE,
	event_type   TEXT NOT NULL,
	event_date   DATE NOT NULL,
	status       TEXT NOT NULL DEFAULT 'pending',
	description  TEXT NOT NULL,
	medications  JSONB NOT NULL DEFAULT '[]'::jsonb,
	performed_by TEXT NOT NULL DEFAULT '',
	notes        TEXT NOT NULL DEFAULT '',
	created_at   TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at   TIMESTAMPTZ
);

CREATE INDEX IF NOT EXISTS health_events_created_at_idx ON health_events (created_at DESC);

CREATE TABLE IF NOT EXISTS profiles (
	id           TEXT PRIMARY KEY,
	first_name   TEXT NOT NULL DEFAULT '',
	last_name    TEXT NOT NULL DEFAULT '',
	display_name TEXT NOT NULL DEFAULT '',
	email        TEXT NOT NULL DEFAULT '',
	role         TEXT NOT NULL DEFAULT 'worker',
	updated_at   TIMESTAMPTZ
);
`

// Migrate applies Schema. Every statement is idempotent.
func Migrate(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, Schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}
