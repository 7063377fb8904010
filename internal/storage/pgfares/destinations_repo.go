package pgfares

import (
	"context"

	"github.com/BearBump/FareBox/internal/models"
	"github.com/jackc/pgx/v5"
)

func (s *Storage) CreateDestination(ctx context.Context, code, name string) (*models.Destination, error) {
	d := models.Destination{AirportCode: code, Name: name}
	err := s.db.QueryRow(ctx, `
INSERT INTO destinations (airport_code, name, created_at, updated_at)
VALUES ($1, $2, now(), now())
RETURNING id
`, code, name).Scan(&d.ID)
	if err != nil {
		return nil, classify(err, "insert destination")
	}
	return &d, nil
}

func (s *Storage) UpdateDestinationName(ctx context.Context, id int64, name string) error {
	tag, err := s.db.Exec(ctx, `UPDATE destinations SET name = $2, updated_at = now() WHERE id = $1`, id, name)
	if err != nil {
		return classify(err, "update destination")
	}
	if tag.RowsAffected() == 0 {
		return models.NotFoundf("destination %d", id)
	}
	return nil
}

// GetDestinationByCode returns ErrNotFound when the code is unknown.
func (s *Storage) GetDestinationByCode(ctx context.Context, code string) (*models.Destination, error) {
	var d models.Destination
	err := s.db.QueryRow(ctx, `
SELECT id, airport_code, name FROM destinations WHERE airport_code = $1
`, code).Scan(&d.ID, &d.AirportCode, &d.Name)
	if err != nil {
		return nil, classify(err, "destination "+code)
	}
	return &d, nil
}

func (s *Storage) ListDestinations(ctx context.Context) ([]*models.Destination, error) {
	rows, err := s.db.Query(ctx, `SELECT id, airport_code, name FROM destinations ORDER BY name, airport_code`)
	if err != nil {
		return nil, classify(err, "select destinations")
	}
	return scanDestinations(rows)
}

func (s *Storage) ListTargetDateDestinations(ctx context.Context, targetDateID int64) ([]*models.Destination, error) {
	rows, err := s.db.Query(ctx, `
SELECT d.id, d.airport_code, d.name
FROM target_date_destinations tdd
JOIN destinations d ON d.id = tdd.destination_id
WHERE tdd.target_date_id = $1
ORDER BY d.airport_code
`, targetDateID)
	if err != nil {
		return nil, classify(err, "select target date destinations")
	}
	return scanDestinations(rows)
}

func scanDestinations(rows pgx.Rows) ([]*models.Destination, error) {
	defer rows.Close()

	out := []*models.Destination{}
	for rows.Next() {
		var d models.Destination
		if err := rows.Scan(&d.ID, &d.AirportCode, &d.Name); err != nil {
			return nil, classify(err, "scan destination")
		}
		out = append(out, &d)
	}
	if rows.Err() != nil {
		return nil, classify(rows.Err(), "rows")
	}
	return out, nil
}
