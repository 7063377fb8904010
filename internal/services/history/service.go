package history

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/BearBump/FareBox/internal/cache"
	"github.com/BearBump/FareBox/internal/models"
)

type Repository interface {
	InsertPriceCheck(ctx context.Context, pc *models.PriceCheck) error
	LatestPriceChecks(ctx context.Context, targetDateID int64) ([]*models.PriceCheck, error)
	LatestPriceCheck(ctx context.Context, targetDateID, destinationID int64) (*models.PriceCheck, error)
	RecentPriceCheck(ctx context.Context, targetDateID, destinationID int64, since time.Time) (*models.PriceCheck, error)
	NewestPriceCheckBetween(ctx context.Context, targetDateID, destinationID int64, from, to time.Time) (*models.PriceCheck, error)
	PriceCheckHistory(ctx context.Context, targetDateID, destinationID int64, since time.Time) ([]*models.PriceCheck, error)
	DeletePriceChecksOlderThan(ctx context.Context, cutoff time.Time) (int64, []int64, error)
	DeleteOrphanedPriceChecks(ctx context.Context, targetDateID int64, keep []int64) (int64, error)
}

type Service struct {
	repo      Repository
	cache     cache.BytesCache
	latestTTL time.Duration
	now       func() time.Time
}

func New(repo Repository, c cache.BytesCache, latestTTL time.Duration) *Service {
	return &Service{repo: repo, cache: c, latestTTL: latestTTL, now: time.Now}
}

// Append stores an immutable check. CheckTimestamp is set by the caller.
func (s *Service) Append(ctx context.Context, pc *models.PriceCheck) error {
	if pc.TargetDateID <= 0 || pc.DestinationID <= 0 {
		return models.Validationf("price check needs target date and destination")
	}
	if pc.CheckTimestamp.IsZero() {
		return models.Validationf("price check timestamp is required")
	}
	pc.CheckTimestamp = pc.CheckTimestamp.UTC()
	pc.Price = models.RoundPrice(pc.Price)

	if err := s.repo.InsertPriceCheck(ctx, pc); err != nil {
		return err
	}
	_ = s.InvalidateLatest(ctx, pc.TargetDateID)
	return nil
}

// LatestPerDestination returns one row per destination that has been checked
// at least once for the date range.
func (s *Service) LatestPerDestination(ctx context.Context, targetDateID int64) ([]*models.PriceCheck, error) {
	if s.cacheOn() {
		b, ok, err := s.cache.Get(ctx, latestKey(targetDateID))
		if err == nil && ok {
			var cached []*models.PriceCheck
			if json.Unmarshal(b, &cached) == nil {
				return cached, nil
			}
		}
	}

	out, err := s.repo.LatestPriceChecks(ctx, targetDateID)
	if err != nil {
		return nil, err
	}

	if s.cacheOn() {
		if b, err := json.Marshal(out); err == nil {
			_ = s.cache.Set(ctx, latestKey(targetDateID), b, s.latestTTL)
		}
	}
	return out, nil
}

// Latest returns nil when the pair has no checks.
func (s *Service) Latest(ctx context.Context, targetDateID, destinationID int64) (*models.PriceCheck, error) {
	return s.repo.LatestPriceCheck(ctx, targetDateID, destinationID)
}

// RecentWithin returns the newest check no older than maxAgeHours, or nil.
// A zero window never matches.
func (s *Service) RecentWithin(ctx context.Context, targetDateID, destinationID int64, maxAgeHours int) (*models.PriceCheck, error) {
	if maxAgeHours < 0 {
		return nil, models.Validationf("maxAgeHours must not be negative, got %d", maxAgeHours)
	}
	if maxAgeHours == 0 {
		return nil, nil
	}
	since := s.now().UTC().Add(-time.Duration(maxAgeHours) * time.Hour)
	return s.repo.RecentPriceCheck(ctx, targetDateID, destinationID, since)
}

// History returns checks at or after since, oldest first.
func (s *Service) History(ctx context.Context, targetDateID, destinationID int64, since time.Time) ([]*models.PriceCheck, error) {
	return s.repo.PriceCheckHistory(ctx, targetDateID, destinationID, since)
}

// PurgeOlderThan deletes checks strictly older than cutoff and drops the cached
// latest lists of the date ranges that lost rows.
func (s *Service) PurgeOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	n, targetDateIDs, err := s.repo.DeletePriceChecksOlderThan(ctx, cutoff)
	if err != nil {
		return 0, err
	}
	for _, id := range targetDateIDs {
		_ = s.InvalidateLatest(ctx, id)
	}
	return n, nil
}

func (s *Service) PurgeOrphaned(ctx context.Context, targetDateID int64, keepDestinationIDs []int64) (int64, error) {
	n, err := s.repo.DeleteOrphanedPriceChecks(ctx, targetDateID, keepDestinationIDs)
	if err != nil {
		return 0, err
	}
	if n > 0 {
		_ = s.InvalidateLatest(ctx, targetDateID)
	}
	return n, nil
}

// InvalidateLatest drops the cached latest list of a date range.
func (s *Service) InvalidateLatest(ctx context.Context, targetDateID int64) error {
	if s.cache == nil {
		return nil
	}
	if err := s.cache.Del(ctx, latestKey(targetDateID)); err != nil {
		slog.Warn("latest prices cache del failed", "target_date_id", targetDateID, "err", err)
		return err
	}
	return nil
}

func (s *Service) cacheOn() bool {
	return s.cache != nil && s.latestTTL > 0
}

func latestKey(targetDateID int64) string {
	return fmt.Sprintf("fares:target_date:%d:latest", targetDateID)
}
