package catalog

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/BearBump/FareBox/internal/cache"
	"github.com/BearBump/FareBox/internal/models"
)

type Repository interface {
	CreateTargetDate(ctx context.Context, in models.TargetDateInput, destinationIDs []int64) (*models.TargetDate, error)
	UpdateTargetDate(ctx context.Context, id int64, in models.TargetDateInput, destinationIDs []int64) (*models.TargetDate, models.AssociationChange, error)
	GetTargetDate(ctx context.Context, id int64) (*models.TargetDate, error)
	FindActiveTargetDate(ctx context.Context, outbound, ret time.Time) (*models.TargetDate, error)
	ListTargetDates(ctx context.Context, filter models.TargetDateFilter) ([]*models.TargetDate, error)
	ListUpcomingTargetDates(ctx context.Context, today time.Time) ([]*models.TargetDate, error)
	RenameTargetDate(ctx context.Context, id int64, name string) error
	SetTargetDateLifecycle(ctx context.Context, id int64, from, to models.Lifecycle) (*models.TargetDate, error)
	ListTargetDateDestinations(ctx context.Context, targetDateID int64) ([]*models.Destination, error)

	CreateDestination(ctx context.Context, code, name string) (*models.Destination, error)
	UpdateDestinationName(ctx context.Context, id int64, name string) error
	GetDestinationByCode(ctx context.Context, code string) (*models.Destination, error)
	ListDestinations(ctx context.Context) ([]*models.Destination, error)
}

// LatestInvalidator drops cached latest prices of a date range.
type LatestInvalidator interface {
	InvalidateLatest(ctx context.Context, targetDateID int64) error
}

type Service struct {
	repo            Repository
	cache           cache.BytesCache
	destinationsTTL time.Duration
	latest          LatestInvalidator
	loc             *time.Location
	now             func() time.Time
}

func New(repo Repository, c cache.BytesCache, destinationsTTL time.Duration) *Service {
	return &Service{
		repo:            repo,
		cache:           c,
		destinationsTTL: destinationsTTL,
		loc:             time.UTC,
		now:             time.Now,
	}
}

// WithLocation sets the zone used to decide what "today" is for upcoming ranges.
func (s *Service) WithLocation(loc *time.Location) *Service {
	if loc != nil {
		s.loc = loc
	}
	return s
}

func (s *Service) WithLatestInvalidator(inv LatestInvalidator) *Service {
	s.latest = inv
	return s
}

func (s *Service) CreateDateRange(ctx context.Context, name string, outbound, ret time.Time, destinationIDs []int64) (*models.TargetDate, error) {
	in, ids, err := validateDateRange(name, outbound, ret, destinationIDs)
	if err != nil {
		return nil, err
	}

	td, err := s.repo.CreateTargetDate(ctx, in, ids)
	if err != nil {
		slog.Error("create date range failed", "name", in.Name, "err", err)
		return nil, err
	}

	slog.Info("date range created",
		"id", td.ID,
		"name", td.Name,
		"outbound", td.OutboundDate.Format(models.DateLayout),
		"return", td.ReturnDate.Format(models.DateLayout),
		"destinations", len(ids),
	)
	return td, nil
}

func (s *Service) UpdateDateRange(ctx context.Context, id int64, name string, outbound, ret time.Time, destinationIDs []int64) (*models.TargetDate, error) {
	in, ids, err := validateDateRange(name, outbound, ret, destinationIDs)
	if err != nil {
		return nil, err
	}

	td, change, err := s.repo.UpdateTargetDate(ctx, id, in, ids)
	if err != nil {
		return nil, err
	}

	if change.PurgedChecks > 0 {
		slog.Info("purged price checks for removed destinations",
			"target_date_id", id,
			"removed", change.Removed,
			"purged", change.PurgedChecks,
		)
	}
	slog.Info("date range updated", "id", id, "added", change.Added, "removed", change.Removed)

	s.invalidateLatest(ctx, id)
	return td, nil
}

func (s *Service) SoftDelete(ctx context.Context, id int64) error {
	td, err := s.repo.GetTargetDate(ctx, id)
	if err != nil {
		return err
	}
	next, err := td.Lifecycle.SoftDelete(s.now())
	if err != nil {
		return err
	}
	if _, err := s.repo.SetTargetDateLifecycle(ctx, id, td.Lifecycle, next); err != nil {
		return err
	}
	slog.Info("date range soft deleted", "id", id)
	return nil
}

func (s *Service) Restore(ctx context.Context, id int64) error {
	td, err := s.repo.GetTargetDate(ctx, id)
	if err != nil {
		return err
	}
	next, err := td.Lifecycle.Restore()
	if err != nil {
		return err
	}
	if _, err := s.repo.SetTargetDateLifecycle(ctx, id, td.Lifecycle, next); err != nil {
		return err
	}
	slog.Info("date range restored", "id", id)
	return nil
}

func (s *Service) GetDateRange(ctx context.Context, id int64) (*models.TargetDate, error) {
	return s.repo.GetTargetDate(ctx, id)
}

// GetActiveDateRange is GetDateRange that treats soft-deleted rows as missing.
func (s *Service) GetActiveDateRange(ctx context.Context, id int64) (*models.TargetDate, error) {
	td, err := s.repo.GetTargetDate(ctx, id)
	if err != nil {
		return nil, err
	}
	if td.Lifecycle.IsDeleted() {
		return nil, models.NotFoundf("target date %d is deleted", id)
	}
	return td, nil
}

// FindActiveByDates returns nil when no active range has these dates.
func (s *Service) FindActiveByDates(ctx context.Context, outbound, ret time.Time) (*models.TargetDate, error) {
	return s.repo.FindActiveTargetDate(ctx, outbound, ret)
}

func (s *Service) ListActive(ctx context.Context) ([]*models.TargetDate, error) {
	return s.repo.ListTargetDates(ctx, models.FilterActive)
}

func (s *Service) ListDeleted(ctx context.Context) ([]*models.TargetDate, error) {
	return s.repo.ListTargetDates(ctx, models.FilterDeleted)
}

func (s *Service) ListAll(ctx context.Context) ([]*models.TargetDate, error) {
	return s.repo.ListTargetDates(ctx, models.FilterAll)
}

// ListUpcoming returns active ranges whose outbound day is today or later.
func (s *Service) ListUpcoming(ctx context.Context) ([]*models.TargetDate, error) {
	return s.repo.ListUpcomingTargetDates(ctx, s.today())
}

func (s *Service) GetAssociatedDestinations(ctx context.Context, targetDateID int64) ([]*models.Destination, error) {
	if _, err := s.repo.GetTargetDate(ctx, targetDateID); err != nil {
		return nil, err
	}
	return s.repo.ListTargetDateDestinations(ctx, targetDateID)
}

func (s *Service) today() time.Time {
	return models.DateOnly(s.now().In(s.loc))
}

func (s *Service) invalidateLatest(ctx context.Context, targetDateID int64) {
	if s.latest == nil {
		return
	}
	if err := s.latest.InvalidateLatest(ctx, targetDateID); err != nil {
		slog.Warn("latest prices cache invalidation failed", "target_date_id", targetDateID, "err", err)
	}
}

func (s *Service) cacheGetJSON(ctx context.Context, key string, dst any) bool {
	if s.cache == nil || s.destinationsTTL <= 0 {
		return false
	}
	b, ok, err := s.cache.Get(ctx, key)
	if err != nil || !ok {
		return false
	}
	return json.Unmarshal(b, dst) == nil
}

func (s *Service) cacheSetJSON(ctx context.Context, key string, v any) {
	if s.cache == nil || s.destinationsTTL <= 0 {
		return
	}
	b, err := json.Marshal(v)
	if err != nil {
		return
	}
	_ = s.cache.Set(ctx, key, b, s.destinationsTTL)
}
