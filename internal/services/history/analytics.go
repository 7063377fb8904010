package history

import (
	"context"
	"log/slog"
	"time"

	"github.com/BearBump/FareBox/internal/models"
	"github.com/shopspring/decimal"
)

const (
	DefaultDaysBack   = 30
	DefaultDaysToKeep = 90

	changeLookback = 7 * 24 * time.Hour
	changeBaseline = 24 * time.Hour
)

var hundred = decimal.NewFromInt(100)

// HistoryForDays is History over the last daysBack days (default 30).
func (s *Service) HistoryForDays(ctx context.Context, targetDateID, destinationID int64, daysBack int) ([]*models.PriceCheck, error) {
	if daysBack <= 0 {
		daysBack = DefaultDaysBack
	}
	since := s.now().UTC().AddDate(0, 0, -daysBack)
	return s.History(ctx, targetDateID, destinationID, since)
}

// PriceChange is the percentage move of the newest check in the last week
// against the newest check at least a day old. Nil when there is no baseline
// or the baseline price is zero.
func (s *Service) PriceChange(ctx context.Context, targetDateID, destinationID int64) (*decimal.Decimal, error) {
	now := s.now().UTC()
	from := now.Add(-changeLookback)

	latest, err := s.repo.RecentPriceCheck(ctx, targetDateID, destinationID, from)
	if err != nil || latest == nil {
		return nil, err
	}

	base, err := s.repo.NewestPriceCheckBetween(ctx, targetDateID, destinationID, from, now.Add(-changeBaseline))
	if err != nil || base == nil {
		return nil, err
	}
	if base.Price.IsZero() {
		return nil, nil
	}

	pct := latest.Price.Sub(base.Price).Div(base.Price).Mul(hundred).Round(2)
	return &pct, nil
}

// Lowest returns the cheapest check in the window; the earliest one wins ties.
func (s *Service) Lowest(ctx context.Context, targetDateID, destinationID int64, daysBack int) (*models.PriceCheck, error) {
	hist, err := s.HistoryForDays(ctx, targetDateID, destinationID, daysBack)
	if err != nil {
		return nil, err
	}

	var lowest *models.PriceCheck
	for _, pc := range hist {
		if lowest == nil || pc.Price.LessThan(lowest.Price) {
			lowest = pc
		}
	}
	return lowest, nil
}

func (s *Service) Average(ctx context.Context, targetDateID, destinationID int64, daysBack int) (*decimal.Decimal, error) {
	hist, err := s.HistoryForDays(ctx, targetDateID, destinationID, daysBack)
	if err != nil || len(hist) == 0 {
		return nil, err
	}

	sum := decimal.Zero
	for _, pc := range hist {
		sum = sum.Add(pc.Price)
	}
	avg := sum.Div(decimal.NewFromInt(int64(len(hist)))).Round(2)
	return &avg, nil
}

// CleanupOldRecords deletes checks older than daysToKeep days (default 90).
func (s *Service) CleanupOldRecords(ctx context.Context, daysToKeep int) (int64, error) {
	if daysToKeep <= 0 {
		daysToKeep = DefaultDaysToKeep
	}
	cutoff := s.now().UTC().AddDate(0, 0, -daysToKeep)

	slog.Info("cleaning up price checks", "older_than", cutoff.Format(models.DateLayout))
	n, err := s.PurgeOlderThan(ctx, cutoff)
	if err != nil {
		return 0, err
	}
	slog.Info("old price checks deleted", "count", n)
	return n, nil
}
