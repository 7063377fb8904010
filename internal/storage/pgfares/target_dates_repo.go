package pgfares

import (
	"context"
	"fmt"
	"time"

	"github.com/BearBump/FareBox/internal/models"
	"github.com/jackc/pgx/v5"
	"github.com/pkg/errors"
)

const targetDateColumns = `id, name, outbound_date, return_date, is_deleted, deleted_at, created_at, updated_at`

// CreateTargetDate inserts an active target date together with its
// destination associations.
func (s *Storage) CreateTargetDate(ctx context.Context, in models.TargetDateInput, destinationIDs []int64) (*models.TargetDate, error) {
	var td *models.TargetDate
	err := s.inTx(ctx, func(tx pgx.Tx) error {
		row := tx.QueryRow(ctx, `
INSERT INTO target_dates (name, outbound_date, return_date, is_deleted, created_at)
VALUES ($1, $2, $3, FALSE, $4)
RETURNING `+targetDateColumns,
			in.Name, models.DateOnly(in.OutboundDate), models.DateOnly(in.ReturnDate), time.Now().UTC())
		var err error
		td, err = scanTargetDate(row)
		if err != nil {
			return classify(err, "insert target date")
		}
		_, err = replaceDestinations(ctx, tx, td.ID, destinationIDs)
		return err
	})
	if err != nil {
		return nil, err
	}
	return td, nil
}

// UpdateTargetDate rewrites an active target date and replaces its
// association set. Price checks for dropped destinations are purged in the
// same transaction.
func (s *Storage) UpdateTargetDate(ctx context.Context, id int64, in models.TargetDateInput, destinationIDs []int64) (*models.TargetDate, models.AssociationChange, error) {
	var (
		td     *models.TargetDate
		change models.AssociationChange
	)
	err := s.inTx(ctx, func(tx pgx.Tx) error {
		row := tx.QueryRow(ctx, `
UPDATE target_dates
SET name = $2, outbound_date = $3, return_date = $4, updated_at = $5
WHERE id = $1 AND NOT is_deleted
RETURNING `+targetDateColumns,
			id, in.Name, models.DateOnly(in.OutboundDate), models.DateOnly(in.ReturnDate), time.Now().UTC())
		var err error
		td, err = scanTargetDate(row)
		if err != nil {
			return classify(err, fmt.Sprintf("target date %d", id))
		}
		change, err = replaceDestinations(ctx, tx, id, destinationIDs)
		return err
	})
	if err != nil {
		return nil, models.AssociationChange{}, err
	}
	return td, change, nil
}

func replaceDestinations(ctx context.Context, tx pgx.Tx, targetDateID int64, destinationIDs []int64) (models.AssociationChange, error) {
	next := models.UniqueIDs(destinationIDs)

	rows, err := tx.Query(ctx, `
SELECT destination_id FROM target_date_destinations WHERE target_date_id = $1 FOR UPDATE
`, targetDateID)
	if err != nil {
		return models.AssociationChange{}, classify(err, "select associations")
	}
	current, err := pgx.CollectRows(rows, pgx.RowTo[int64])
	if err != nil {
		return models.AssociationChange{}, classify(err, "scan associations")
	}

	added, removed := models.DiffDestinations(current, next)
	change := models.AssociationChange{Added: added, Removed: removed}

	if len(removed) > 0 {
		if _, err := tx.Exec(ctx, `
DELETE FROM target_date_destinations WHERE target_date_id = $1 AND destination_id = ANY($2)
`, targetDateID, removed); err != nil {
			return change, classify(err, "delete associations")
		}
	}

	now := time.Now().UTC()
	for _, destID := range added {
		if _, err := tx.Exec(ctx, `
INSERT INTO target_date_destinations (target_date_id, destination_id, created_at)
VALUES ($1, $2, $3)
`, targetDateID, destID, now); err != nil {
			return change, classify(err, fmt.Sprintf("associate destination %d", destID))
		}
	}

	// Проверки цен по отвязанным направлениям больше не нужны: удаляем в той же транзакции.
	purged, err := deleteOrphanedPriceChecks(ctx, tx, targetDateID, next)
	if err != nil {
		return change, err
	}
	change.PurgedChecks = purged
	return change, nil
}

// GetTargetDate returns the row regardless of lifecycle state.
func (s *Storage) GetTargetDate(ctx context.Context, id int64) (*models.TargetDate, error) {
	row := s.db.QueryRow(ctx, `SELECT `+targetDateColumns+` FROM target_dates WHERE id = $1`, id)
	td, err := scanTargetDate(row)
	if err != nil {
		return nil, classify(err, fmt.Sprintf("target date %d", id))
	}
	return td, nil
}

// FindActiveTargetDate looks up a non-deleted target date by its calendar
// days. Returns nil when there is none.
func (s *Storage) FindActiveTargetDate(ctx context.Context, outbound, ret time.Time) (*models.TargetDate, error) {
	row := s.db.QueryRow(ctx, `
SELECT `+targetDateColumns+`
FROM target_dates
WHERE outbound_date = $1 AND return_date = $2 AND NOT is_deleted
`, models.DateOnly(outbound), models.DateOnly(ret))
	td, err := scanTargetDate(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, classify(err, "find target date")
	}
	return td, nil
}

func (s *Storage) ListTargetDates(ctx context.Context, filter models.TargetDateFilter) ([]*models.TargetDate, error) {
	var q string
	switch filter {
	case models.FilterDeleted:
		q = `SELECT ` + targetDateColumns + ` FROM target_dates WHERE is_deleted ORDER BY deleted_at DESC, id DESC`
	case models.FilterAll:
		q = `SELECT ` + targetDateColumns + ` FROM target_dates ORDER BY outbound_date, id`
	default:
		q = `SELECT ` + targetDateColumns + ` FROM target_dates WHERE NOT is_deleted ORDER BY outbound_date, id`
	}

	rows, err := s.db.Query(ctx, q)
	if err != nil {
		return nil, classify(err, "select target dates")
	}
	return scanTargetDates(rows)
}

// ListUpcomingTargetDates returns active target dates departing on or after today.
func (s *Storage) ListUpcomingTargetDates(ctx context.Context, today time.Time) ([]*models.TargetDate, error) {
	rows, err := s.db.Query(ctx, `
SELECT `+targetDateColumns+`
FROM target_dates
WHERE NOT is_deleted AND outbound_date >= $1
ORDER BY outbound_date, id
`, models.DateOnly(today))
	if err != nil {
		return nil, classify(err, "select upcoming target dates")
	}
	return scanTargetDates(rows)
}

func (s *Storage) RenameTargetDate(ctx context.Context, id int64, name string) error {
	tag, err := s.db.Exec(ctx, `
UPDATE target_dates SET name = $2, updated_at = $3 WHERE id = $1 AND NOT is_deleted
`, id, name, time.Now().UTC())
	if err != nil {
		return classify(err, "rename target date")
	}
	if tag.RowsAffected() == 0 {
		return models.NotFoundf("target date %d", id)
	}
	return nil
}

// SetTargetDateLifecycle moves a row from one lifecycle state to another.
// The write only lands when the row is still in from; otherwise ErrNotFound.
func (s *Storage) SetTargetDateLifecycle(ctx context.Context, id int64, from, to models.Lifecycle) (*models.TargetDate, error) {
	row := s.db.QueryRow(ctx, `
UPDATE target_dates
SET is_deleted = $3, deleted_at = $4, updated_at = $5
WHERE id = $1 AND is_deleted = $2
RETURNING `+targetDateColumns,
		id, from.IsDeleted(), to.IsDeleted(), to.DeletedAtPtr(), time.Now().UTC())
	td, err := scanTargetDate(row)
	if err != nil {
		return nil, classify(err, fmt.Sprintf("target date %d in state %s", id, from.State))
	}
	return td, nil
}

func scanTargetDate(row pgx.Row) (*models.TargetDate, error) {
	var (
		td        models.TargetDate
		isDeleted bool
		deletedAt *time.Time
	)
	if err := row.Scan(
		&td.ID, &td.Name, &td.OutboundDate, &td.ReturnDate,
		&isDeleted, &deletedAt, &td.CreatedAt, &td.UpdatedAt,
	); err != nil {
		return nil, err
	}
	td.OutboundDate = models.DateOnly(td.OutboundDate)
	td.ReturnDate = models.DateOnly(td.ReturnDate)
	td.Lifecycle = models.LifecycleFromColumns(isDeleted, deletedAt)
	return &td, nil
}

func scanTargetDates(rows pgx.Rows) ([]*models.TargetDate, error) {
	defer rows.Close()

	out := []*models.TargetDate{}
	for rows.Next() {
		td, err := scanTargetDate(rows)
		if err != nil {
			return nil, classify(err, "scan target date")
		}
		out = append(out, td)
	}
	if rows.Err() != nil {
		return nil, classify(rows.Err(), "rows")
	}
	return out, nil
}
