package pgfares

import (
	"context"
)

func (s *Storage) initSchema(ctx context.Context) error {
	stmts := []string{
		`
CREATE TABLE IF NOT EXISTS destinations (
  id BIGSERIAL PRIMARY KEY,
  airport_code VARCHAR(3) NOT NULL,
  name TEXT NOT NULL,
  created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
  updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`,
		`CREATE UNIQUE INDEX IF NOT EXISTS uq_destinations_airport_code ON destinations(airport_code)`,
		`
CREATE TABLE IF NOT EXISTS target_dates (
  id BIGSERIAL PRIMARY KEY,
  name TEXT NOT NULL,
  outbound_date DATE NOT NULL,
  return_date DATE NOT NULL,
  created_at TIMESTAMPTZ NOT NULL,
  updated_at TIMESTAMPTZ NULL,
  CONSTRAINT ck_target_dates_return_after_outbound CHECK (return_date > outbound_date)
)`,
		// Soft delete arrived after the first release.
		`ALTER TABLE target_dates ADD COLUMN IF NOT EXISTS is_deleted BOOLEAN NOT NULL DEFAULT FALSE`,
		`ALTER TABLE target_dates ADD COLUMN IF NOT EXISTS deleted_at TIMESTAMPTZ NULL`,
		`DROP INDEX IF EXISTS uq_target_dates_dates`,
		`CREATE UNIQUE INDEX IF NOT EXISTS uq_target_dates_active_dates ON target_dates(outbound_date, return_date) WHERE NOT is_deleted`,
		`CREATE INDEX IF NOT EXISTS idx_target_dates_outbound_date ON target_dates(outbound_date)`,
		`
CREATE TABLE IF NOT EXISTS target_date_destinations (
  id BIGSERIAL PRIMARY KEY,
  target_date_id BIGINT NOT NULL REFERENCES target_dates(id) ON DELETE CASCADE,
  destination_id BIGINT NOT NULL REFERENCES destinations(id) ON DELETE CASCADE,
  created_at TIMESTAMPTZ NOT NULL,
  UNIQUE (target_date_id, destination_id)
)`,
		`CREATE INDEX IF NOT EXISTS idx_target_date_destinations_destination_id ON target_date_destinations(destination_id)`,
		`
CREATE TABLE IF NOT EXISTS price_checks (
  id BIGSERIAL PRIMARY KEY,
  target_date_id BIGINT NOT NULL REFERENCES target_dates(id) ON DELETE CASCADE,
  destination_id BIGINT NOT NULL REFERENCES destinations(id) ON DELETE CASCADE,
  check_timestamp TIMESTAMPTZ NOT NULL,
  price NUMERIC(10,2) NOT NULL,
  currency VARCHAR(3) NOT NULL,
  departure_time TIME NOT NULL,
  arrival_time TIME NOT NULL,
  airline TEXT NOT NULL,
  stops INT NOT NULL,
  booking_url TEXT NULL
)`,
		`CREATE INDEX IF NOT EXISTS idx_price_checks_pair_ts ON price_checks(target_date_id, destination_id, check_timestamp DESC)`,
		`CREATE INDEX IF NOT EXISTS idx_price_checks_check_timestamp ON price_checks(check_timestamp)`,
	}

	for _, q := range stmts {
		if _, err := s.db.Exec(ctx, q); err != nil {
			return classify(err, "init schema")
		}
	}
	return nil
}
