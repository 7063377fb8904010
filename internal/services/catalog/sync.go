package catalog

import (
	"context"
	"log/slog"

	"github.com/BearBump/FareBox/config"
	"github.com/BearBump/FareBox/internal/models"
	"github.com/pkg/errors"
)

// SyncFromConfig upserts configured destinations and date ranges. Date ranges
// created here are associated with every configured destination; existing
// ranges keep their associations and only get renamed.
func (s *Service) SyncFromConfig(ctx context.Context, cfg config.FareBoxConfig) error {
	slog.Info("syncing catalog from config", "destinations", len(cfg.Destinations), "target_dates", len(cfg.TargetDates))

	destIDs := make([]int64, 0, len(cfg.Destinations))
	for _, dc := range cfg.Destinations {
		d, err := s.syncDestination(ctx, dc)
		if err != nil {
			return err
		}
		if d != nil {
			destIDs = append(destIDs, d.ID)
		}
	}
	s.invalidateDestinations(ctx)

	for _, tc := range cfg.TargetDates {
		if err := s.syncTargetDate(ctx, tc, destIDs); err != nil {
			return err
		}
	}

	slog.Info("catalog sync done")
	return nil
}

func (s *Service) syncDestination(ctx context.Context, dc config.DestinationConfig) (*models.Destination, error) {
	code := models.NormalizeAirportCode(dc.Code)
	if !models.ValidAirportCode(code) {
		slog.Warn("skipping destination with invalid code", "code", dc.Code)
		return nil, nil
	}

	existing, err := s.repo.GetDestinationByCode(ctx, code)
	if err != nil && !errors.Is(err, models.ErrNotFound) {
		return nil, err
	}

	if existing == nil {
		d, err := s.repo.CreateDestination(ctx, code, dc.Name)
		if err != nil {
			return nil, err
		}
		slog.Info("destination created", "code", code, "name", dc.Name)
		return d, nil
	}

	if existing.Name != dc.Name {
		if err := s.repo.UpdateDestinationName(ctx, existing.ID, dc.Name); err != nil {
			return nil, err
		}
		existing.Name = dc.Name
		slog.Info("destination renamed", "code", code, "name", dc.Name)
	}
	return existing, nil
}

func (s *Service) syncTargetDate(ctx context.Context, tc config.TargetDateConfig, destIDs []int64) error {
	outbound, err := models.ParseDate(tc.Outbound)
	if err != nil {
		slog.Warn("invalid outbound date format", "date", tc.Outbound, "name", tc.Name)
		return nil
	}
	ret, err := models.ParseDate(tc.Return)
	if err != nil {
		slog.Warn("invalid return date format", "date", tc.Return, "name", tc.Name)
		return nil
	}

	existing, err := s.repo.FindActiveTargetDate(ctx, outbound, ret)
	if err != nil {
		return err
	}

	if existing == nil {
		in, ids, err := validateDateRange(tc.Name, outbound, ret, destIDs)
		if err != nil {
			slog.Warn("skipping configured date range", "name", tc.Name, "err", err)
			return nil
		}
		td, err := s.repo.CreateTargetDate(ctx, in, ids)
		if err != nil {
			return err
		}
		slog.Info("date range created from config", "id", td.ID, "name", td.Name,
			"outbound", tc.Outbound, "return", tc.Return)
		return nil
	}

	if existing.Name != tc.Name {
		if err := s.repo.RenameTargetDate(ctx, existing.ID, tc.Name); err != nil {
			return err
		}
		slog.Info("date range renamed from config", "id", existing.ID, "name", tc.Name)
	}
	return nil
}
