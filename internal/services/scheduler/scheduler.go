package scheduler

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

const DefaultRetentionDays = 90

type Sweeper interface {
	CheckAllRoutes(ctx context.Context, origin string) (int, error)
}

type Cleaner interface {
	CleanupOldRecords(ctx context.Context, daysToKeep int) (int64, error)
}

// Scheduler runs a sweep over all routes at the planner's wall-clock slots,
// followed by retention cleanup.
type Scheduler struct {
	sweeper Sweeper
	cleaner Cleaner
	planner *Planner
	origin  string

	retentionDays int

	now func() time.Time

	triggerCh chan struct{}

	startedAtUnixNano   int64
	nextRunUnixNano     atomic.Int64
	lastRunUnixNano     atomic.Int64
	lastTriggerUnixNano atomic.Int64
	totalRuns           atomic.Int64
	totalTriggered      atomic.Int64
	totalFailures       atomic.Int64
	lastSaved           atomic.Int64
	lastPurged          atomic.Int64
	lastErrorMu         sync.Mutex
	lastError           string
}

func New(sweeper Sweeper, cleaner Cleaner, planner *Planner, origin string) *Scheduler {
	return &Scheduler{
		sweeper:           sweeper,
		cleaner:           cleaner,
		planner:           planner,
		origin:            origin,
		retentionDays:     DefaultRetentionDays,
		now:               time.Now,
		triggerCh:         make(chan struct{}, 1),
		startedAtUnixNano: time.Now().UTC().UnixNano(),
	}
}

// WithRetention sets how many days of price checks survive each cleanup.
// Zero disables cleanup.
func (s *Scheduler) WithRetention(days int) *Scheduler {
	if days >= 0 {
		s.retentionDays = days
	}
	return s
}

// Trigger requests an out-of-band sweep (best-effort, non-blocking). The
// regular schedule is not moved.
func (s *Scheduler) Trigger() {
	s.lastTriggerUnixNano.Store(time.Now().UTC().UnixNano())
	select {
	case s.triggerCh <- struct{}{}:
	default:
	}
}

func (s *Scheduler) Run(ctx context.Context) error {
	deadline := s.planner.Next(s.now())
	slog.Info("scheduler started",
		"origin", s.origin,
		"slots", s.planner.Slots(),
		"time_zone", s.planner.Location().String(),
		"first_run", deadline,
	)

	for {
		s.nextRunUnixNano.Store(deadline.UnixNano())
		if err := s.waitUntil(ctx, deadline); err != nil {
			slog.Info("scheduler stopped", "reason", err)
			return err
		}

		s.runCycle(ctx, "schedule")
		if ctx.Err() != nil {
			slog.Info("scheduler stopped", "reason", ctx.Err())
			return ctx.Err()
		}

		deadline = s.nextDeadline()
	}
}

// nextDeadline counts the fixed interval from the end of the run. Uneven slots
// have no single interval, so they realign to the next slot instead.
func (s *Scheduler) nextDeadline() time.Time {
	now := s.now()
	if s.planner.FixedInterval() {
		return now.Add(s.planner.Interval())
	}
	return s.planner.Next(now)
}

// waitUntil sleeps until deadline, serving triggers meanwhile.
func (s *Scheduler) waitUntil(ctx context.Context, deadline time.Time) error {
	for {
		d := deadline.Sub(s.now())
		if d <= 0 {
			return ctx.Err()
		}

		t := time.NewTimer(d)
		select {
		case <-ctx.Done():
			t.Stop()
			return ctx.Err()
		case <-t.C:
			return nil
		case <-s.triggerCh:
			t.Stop()
			s.totalTriggered.Add(1)
			s.runCycle(ctx, "trigger")
			if ctx.Err() != nil {
				return ctx.Err()
			}
		}
	}
}

func (s *Scheduler) runCycle(ctx context.Context, reason string) {
	started := s.now()
	s.lastRunUnixNano.Store(started.UTC().UnixNano())
	s.totalRuns.Add(1)

	slog.Info("price check run started", "reason", reason, "origin", s.origin)

	saved, err := s.sweeper.CheckAllRoutes(ctx, s.origin)
	s.lastSaved.Store(int64(saved))
	if err != nil {
		if ctx.Err() != nil {
			slog.Warn("price check run interrupted", "saved", saved)
			return
		}
		s.fail(err)
		slog.Error("price check run failed", "err", err)
	} else {
		slog.Info("price check run finished", "saved", saved, "took", s.now().Sub(started))
	}

	if s.cleaner == nil || s.retentionDays == 0 {
		return
	}
	purged, err := s.cleaner.CleanupOldRecords(ctx, s.retentionDays)
	if err != nil {
		if ctx.Err() == nil {
			s.fail(err)
			slog.Error("retention cleanup failed", "err", err)
		}
		return
	}
	s.lastPurged.Store(purged)
}

func (s *Scheduler) fail(err error) {
	s.totalFailures.Add(1)
	s.lastErrorMu.Lock()
	s.lastError = err.Error()
	s.lastErrorMu.Unlock()
}

type Stats struct {
	StartedAt      time.Time  `json:"startedAt"`
	NextRunAt      *time.Time `json:"nextRunAt,omitempty"`
	LastRunAt      *time.Time `json:"lastRunAt,omitempty"`
	LastTriggerAt  *time.Time `json:"lastTriggerAt,omitempty"`
	TotalRuns      int64      `json:"totalRuns"`
	TotalTriggered int64      `json:"totalTriggered"`
	TotalFailures  int64      `json:"totalFailures"`
	LastSaved      int64      `json:"lastSaved"`
	LastPurged     int64      `json:"lastPurged"`
	LastError      string     `json:"lastError,omitempty"`
}

func (s *Scheduler) Stats() Stats {
	st := Stats{
		StartedAt:      time.Unix(0, s.startedAtUnixNano).UTC(),
		TotalRuns:      s.totalRuns.Load(),
		TotalTriggered: s.totalTriggered.Load(),
		TotalFailures:  s.totalFailures.Load(),
		LastSaved:      s.lastSaved.Load(),
		LastPurged:     s.lastPurged.Load(),
	}
	for _, p := range []struct {
		n   int64
		dst **time.Time
	}{
		{s.nextRunUnixNano.Load(), &st.NextRunAt},
		{s.lastRunUnixNano.Load(), &st.LastRunAt},
		{s.lastTriggerUnixNano.Load(), &st.LastTriggerAt},
	} {
		if p.n > 0 {
			t := time.Unix(0, p.n).UTC()
			*p.dst = &t
		}
	}
	s.lastErrorMu.Lock()
	st.LastError = s.lastError
	s.lastErrorMu.Unlock()
	return st
}
