package pricecheck

import (
	"context"
	"log/slog"
	"time"

	"github.com/BearBump/FareBox/internal/models"
)

// CheckAllRoutes checks every destination associated with an upcoming date
// range and returns how many checks were saved. Per-route failures are logged
// and skipped; only cancellation stops the sweep early.
func (s *Service) CheckAllRoutes(ctx context.Context, origin string) (int, error) {
	s.totalSweeps.Add(1)
	s.lastSweepNano.Store(s.now().UTC().UnixNano())

	tds, err := s.catalog.ListUpcoming(ctx)
	if err != nil {
		s.recordFailure(err)
		return 0, err
	}

	slog.Info("checking all routes", "origin", origin, "date_ranges", len(tds))

	saved, live := 0, 0
	for _, td := range tds {
		dests, err := s.catalog.GetAssociatedDestinations(ctx, td.ID)
		if err != nil {
			if ctx.Err() != nil {
				return saved, ctx.Err()
			}
			s.recordFailure(err)
			slog.Error("list destinations of date range", "target_date_id", td.ID, "err", err)
			continue
		}
		if len(dests) == 0 {
			slog.Warn("date range has no destinations, skipping", "target_date_id", td.ID, "name", td.Name)
			continue
		}

		for _, dest := range dests {
			if live > 0 {
				if err := s.sleep(ctx, s.interCallDelay); err != nil {
					return saved, err
				}
			}
			live++

			pc, err := s.fetchAndSave(ctx, origin, dest, td)
			if err != nil {
				if ctx.Err() != nil {
					return saved, ctx.Err()
				}
				s.recordFailure(err)
				slog.Error("check route", "origin", origin, "destination", dest.AirportCode,
					"target_date_id", td.ID, "err", err)
				continue
			}
			if pc != nil {
				saved++
			}
		}
	}

	slog.Info("all routes checked", "origin", origin, "saved", saved, "fetched", live)
	return saved, nil
}

type RouteResult struct {
	Destination *models.Destination `json:"destination"`
	PriceCheck  *models.PriceCheck  `json:"priceCheck,omitempty"`
	FromCache   bool                `json:"fromCache"`
	Error       string              `json:"error,omitempty"`
}

type OnDemandResult struct {
	TargetDateID int64         `json:"targetDateId"`
	Cached       int           `json:"cached"`
	Fetched      int           `json:"fetched"`
	Failed       int           `json:"failed"`
	Results      []RouteResult `json:"results"`
}

// CheckDateRangeOnDemand reuses checks younger than maxAgeHours and fetches
// the rest. A zero maxAgeHours means the default window.
func (s *Service) CheckDateRangeOnDemand(ctx context.Context, origin string, targetDateID int64, maxAgeHours int) (OnDemandResult, error) {
	if maxAgeHours < 0 {
		return OnDemandResult{}, models.Validationf("maxAgeHours must not be negative, got %d", maxAgeHours)
	}
	if maxAgeHours == 0 {
		maxAgeHours = DefaultMaxAgeHours
	}

	td, err := s.catalog.GetActiveDateRange(ctx, targetDateID)
	if err != nil {
		return OnDemandResult{}, err
	}
	dests, err := s.catalog.GetAssociatedDestinations(ctx, targetDateID)
	if err != nil {
		return OnDemandResult{}, err
	}

	out := OnDemandResult{TargetDateID: targetDateID, Results: make([]RouteResult, 0, len(dests))}
	live := 0
	for _, dest := range dests {
		rr := RouteResult{Destination: dest}

		recent, err := s.history.RecentWithin(ctx, td.ID, dest.ID, maxAgeHours)
		if err != nil {
			slog.Warn("recent price lookup failed, fetching", "target_date_id", td.ID, "destination", dest.AirportCode, "err", err)
		}
		if recent != nil {
			s.totalCached.Add(1)
			rr.PriceCheck = recent
			rr.FromCache = true
			out.Cached++
			out.Results = append(out.Results, rr)
			continue
		}

		if live > 0 {
			if err := s.sleep(ctx, s.interCallDelay); err != nil {
				return out, err
			}
		}
		live++

		pc, err := s.fetchAndSave(ctx, origin, dest, td)
		switch {
		case err != nil:
			if ctx.Err() != nil {
				return out, ctx.Err()
			}
			s.recordFailure(err)
			rr.Error = err.Error()
			out.Failed++
		case pc == nil:
			rr.Error = "no flights found"
			out.Failed++
		default:
			rr.PriceCheck = pc
			out.Fetched++
		}
		out.Results = append(out.Results, rr)
	}

	slog.Info("on-demand check done", "target_date_id", targetDateID,
		"cached", out.Cached, "fetched", out.Fetched, "failed", out.Failed)
	return out, nil
}

type Stats struct {
	LastSweepAt   *time.Time `json:"lastSweepAt,omitempty"`
	TotalSweeps   int64      `json:"totalSweeps"`
	TotalFetched  int64      `json:"totalFetched"`
	TotalSaved    int64      `json:"totalSaved"`
	TotalCached   int64      `json:"totalCached"`
	TotalFailures int64      `json:"totalFailures"`
	LastError     string     `json:"lastError,omitempty"`
}

func (s *Service) Stats() Stats {
	st := Stats{
		TotalSweeps:   s.totalSweeps.Load(),
		TotalFetched:  s.totalFetched.Load(),
		TotalSaved:    s.totalSaved.Load(),
		TotalCached:   s.totalCached.Load(),
		TotalFailures: s.totalFailures.Load(),
	}
	if n := s.lastSweepNano.Load(); n > 0 {
		t := time.Unix(0, n).UTC()
		st.LastSweepAt = &t
	}
	s.lastErrorMu.Lock()
	st.LastError = s.lastError
	s.lastErrorMu.Unlock()
	return st
}
