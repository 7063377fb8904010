package pgfares

import (
	"context"
	"fmt"
	"time"

	"github.com/BearBump/FareBox/internal/models"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

const priceCheckColumns = `id, target_date_id, destination_id, check_timestamp, price::text, currency,
  departure_time, arrival_time, airline, stops, booking_url`

// InsertPriceCheck appends a check and fills in its id. Rows are never updated.
func (s *Storage) InsertPriceCheck(ctx context.Context, pc *models.PriceCheck) error {
	err := s.db.QueryRow(ctx, `
INSERT INTO price_checks (target_date_id, destination_id, check_timestamp, price, currency,
  departure_time, arrival_time, airline, stops, booking_url)
VALUES ($1, $2, $3, $4::numeric, $5, $6, $7, $8, $9, $10)
RETURNING id
`,
		pc.TargetDateID, pc.DestinationID, pc.CheckTimestamp.UTC(), models.RoundPrice(pc.Price).StringFixed(2), pc.Currency,
		pgtype.Time{Microseconds: pc.DepartureTime.Micros(), Valid: true},
		pgtype.Time{Microseconds: pc.ArrivalTime.Micros(), Valid: true},
		pc.Airline, pc.Stops, pc.BookingURL,
	).Scan(&pc.ID)
	if err != nil {
		return classify(err, "insert price check")
	}
	return nil
}

// LatestPriceChecks returns the newest check per destination of a target
// date. Ties on timestamp go to the highest id.
func (s *Storage) LatestPriceChecks(ctx context.Context, targetDateID int64) ([]*models.PriceCheck, error) {
	rows, err := s.db.Query(ctx, `
SELECT DISTINCT ON (destination_id) `+priceCheckColumns+`
FROM price_checks
WHERE target_date_id = $1
ORDER BY destination_id, check_timestamp DESC, id DESC
`, targetDateID)
	if err != nil {
		return nil, classify(err, "select latest price checks")
	}
	return scanPriceChecks(rows)
}

// LatestPriceCheck returns nil when the pair has never been checked.
func (s *Storage) LatestPriceCheck(ctx context.Context, targetDateID, destinationID int64) (*models.PriceCheck, error) {
	return s.newestSince(ctx, targetDateID, destinationID, time.Time{})
}

// RecentPriceCheck returns the newest check taken at or after since, or nil.
func (s *Storage) RecentPriceCheck(ctx context.Context, targetDateID, destinationID int64, since time.Time) (*models.PriceCheck, error) {
	return s.newestSince(ctx, targetDateID, destinationID, since)
}

// NewestPriceCheckBetween returns the newest check in [from, to], or nil.
func (s *Storage) NewestPriceCheckBetween(ctx context.Context, targetDateID, destinationID int64, from, to time.Time) (*models.PriceCheck, error) {
	row := s.db.QueryRow(ctx, `
SELECT `+priceCheckColumns+`
FROM price_checks
WHERE target_date_id = $1 AND destination_id = $2 AND check_timestamp >= $3 AND check_timestamp <= $4
ORDER BY check_timestamp DESC, id DESC
LIMIT 1
`, targetDateID, destinationID, from.UTC(), to.UTC())
	return optionalPriceCheck(row)
}

func (s *Storage) newestSince(ctx context.Context, targetDateID, destinationID int64, since time.Time) (*models.PriceCheck, error) {
	row := s.db.QueryRow(ctx, `
SELECT `+priceCheckColumns+`
FROM price_checks
WHERE target_date_id = $1 AND destination_id = $2 AND check_timestamp >= $3
ORDER BY check_timestamp DESC, id DESC
LIMIT 1
`, targetDateID, destinationID, since.UTC())
	return optionalPriceCheck(row)
}

// PriceCheckHistory returns checks at or after since, oldest first.
func (s *Storage) PriceCheckHistory(ctx context.Context, targetDateID, destinationID int64, since time.Time) ([]*models.PriceCheck, error) {
	rows, err := s.db.Query(ctx, `
SELECT `+priceCheckColumns+`
FROM price_checks
WHERE target_date_id = $1 AND destination_id = $2 AND check_timestamp >= $3
ORDER BY check_timestamp ASC, id ASC
`, targetDateID, destinationID, since.UTC())
	if err != nil {
		return nil, classify(err, "select price history")
	}
	return scanPriceChecks(rows)
}

// DeletePriceChecksOlderThan removes checks strictly older than cutoff and
// reports the target dates that lost rows.
func (s *Storage) DeletePriceChecksOlderThan(ctx context.Context, cutoff time.Time) (int64, []int64, error) {
	rows, err := s.db.Query(ctx, `
WITH gone AS (
  DELETE FROM price_checks WHERE check_timestamp < $1 RETURNING target_date_id
)
SELECT target_date_id, count(*) FROM gone GROUP BY target_date_id ORDER BY target_date_id`, cutoff.UTC())
	if err != nil {
		return 0, nil, classify(err, "delete old price checks")
	}
	defer rows.Close()

	var (
		total int64
		ids   []int64
	)
	for rows.Next() {
		var id, n int64
		if err := rows.Scan(&id, &n); err != nil {
			return 0, nil, classify(err, "scan deleted price checks")
		}
		total += n
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return 0, nil, classify(err, "delete old price checks")
	}
	return total, ids, nil
}

// DeleteOrphanedPriceChecks removes checks of a target date whose
// destination is not in keep.
func (s *Storage) DeleteOrphanedPriceChecks(ctx context.Context, targetDateID int64, keep []int64) (int64, error) {
	return deleteOrphanedPriceChecks(ctx, s.db, targetDateID, keep)
}

func deleteOrphanedPriceChecks(ctx context.Context, q querier, targetDateID int64, keep []int64) (int64, error) {
	if keep == nil {
		keep = []int64{}
	}
	tag, err := q.Exec(ctx, `
DELETE FROM price_checks WHERE target_date_id = $1 AND NOT (destination_id = ANY($2))
`, targetDateID, keep)
	if err != nil {
		return 0, classify(err, fmt.Sprintf("purge orphaned price checks of target date %d", targetDateID))
	}
	return tag.RowsAffected(), nil
}

func optionalPriceCheck(row pgx.Row) (*models.PriceCheck, error) {
	pc, err := scanPriceCheck(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, classify(err, "select price check")
	}
	return pc, nil
}

func scanPriceCheck(row pgx.Row) (*models.PriceCheck, error) {
	var (
		pc        models.PriceCheck
		price     string
		departure pgtype.Time
		arrival   pgtype.Time
	)
	if err := row.Scan(
		&pc.ID, &pc.TargetDateID, &pc.DestinationID, &pc.CheckTimestamp, &price, &pc.Currency,
		&departure, &arrival, &pc.Airline, &pc.Stops, &pc.BookingURL,
	); err != nil {
		return nil, err
	}

	d, err := decimal.NewFromString(price)
	if err != nil {
		return nil, errors.Wrapf(err, "parse price %q", price)
	}
	pc.Price = d
	pc.CheckTimestamp = pc.CheckTimestamp.UTC()
	pc.DepartureTime = models.ClockFromMicros(departure.Microseconds)
	pc.ArrivalTime = models.ClockFromMicros(arrival.Microseconds)
	return &pc, nil
}

func scanPriceChecks(rows pgx.Rows) ([]*models.PriceCheck, error) {
	defer rows.Close()

	out := []*models.PriceCheck{}
	for rows.Next() {
		pc, err := scanPriceCheck(rows)
		if err != nil {
			return nil, classify(err, "scan price check")
		}
		out = append(out, pc)
	}
	if rows.Err() != nil {
		return nil, classify(rows.Err(), "rows")
	}
	return out, nil
}
