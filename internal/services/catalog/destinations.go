package catalog

import (
	"context"
	"log/slog"
	"strings"

	"github.com/BearBump/FareBox/internal/models"
)

const (
	destinationsKey          = "destinations:all"
	defaultSearchResultLimit = 10
)

// ListDestinations reads through the destinations cache.
func (s *Service) ListDestinations(ctx context.Context) ([]*models.Destination, error) {
	var cached []*models.Destination
	if s.cacheGetJSON(ctx, destinationsKey, &cached) {
		return cached, nil
	}

	out, err := s.repo.ListDestinations(ctx)
	if err != nil {
		return nil, err
	}
	s.cacheSetJSON(ctx, destinationsKey, out)
	return out, nil
}

func (s *Service) FindDestinationByCode(ctx context.Context, code string) (*models.Destination, error) {
	code = models.NormalizeAirportCode(code)
	if !models.ValidAirportCode(code) {
		return nil, models.Validationf("invalid airport code %q", code)
	}
	return s.repo.GetDestinationByCode(ctx, code)
}

// SearchDestinations matches a code prefix or a name substring, case-insensitively.
// Code matches come first.
func (s *Service) SearchDestinations(ctx context.Context, query string, limit int) ([]*models.Destination, error) {
	if limit <= 0 {
		limit = defaultSearchResultLimit
	}

	all, err := s.ListDestinations(ctx)
	if err != nil {
		return nil, err
	}

	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		if len(all) > limit {
			all = all[:limit]
		}
		return all, nil
	}

	var byCode, byName []*models.Destination
	for _, d := range all {
		switch {
		case strings.HasPrefix(strings.ToLower(d.AirportCode), q):
			byCode = append(byCode, d)
		case strings.Contains(strings.ToLower(d.Name), q):
			byName = append(byName, d)
		}
	}

	out := append(byCode, byName...)
	if len(out) > limit {
		out = out[:limit]
	}
	if out == nil {
		out = []*models.Destination{}
	}
	return out, nil
}

func (s *Service) invalidateDestinations(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Del(ctx, destinationsKey); err != nil {
		slog.Warn("destinations cache invalidation failed", "err", err)
	}
}
