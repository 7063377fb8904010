package scheduler

import (
	"sort"
	"time"
	_ "time/tzdata"

	"github.com/BearBump/FareBox/internal/models"
)

const day = 24 * time.Hour

type PlannerConfig struct {
	Times    []string      // "HH:MM", default: 08:00 and 20:00
	TimeZone string        // IANA name, default: Europe/Berlin
	Interval time.Duration // overrides the spacing derived from Times
}

func DefaultPlannerConfig() PlannerConfig {
	return PlannerConfig{
		Times:    []string{"08:00", "20:00"},
		TimeZone: "Europe/Berlin",
	}
}

// Planner turns wall-clock slots into run times.
type Planner struct {
	slots    []models.ClockTime
	loc      *time.Location
	interval time.Duration
}

func NewPlanner(cfg PlannerConfig) (*Planner, error) {
	def := DefaultPlannerConfig()
	if len(cfg.Times) == 0 {
		cfg.Times = def.Times
	}
	if cfg.TimeZone == "" {
		cfg.TimeZone = def.TimeZone
	}

	loc, err := time.LoadLocation(cfg.TimeZone)
	if err != nil {
		return nil, models.Validationf("unknown time zone %q", cfg.TimeZone)
	}

	seen := make(map[models.ClockTime]struct{}, len(cfg.Times))
	slots := make([]models.ClockTime, 0, len(cfg.Times))
	for _, raw := range cfg.Times {
		var c models.ClockTime
		if err := c.UnmarshalText([]byte(raw)); err != nil {
			return nil, models.Validationf("invalid schedule time %q", raw)
		}
		if _, ok := seen[c]; ok {
			continue
		}
		seen[c] = struct{}{}
		slots = append(slots, c)
	}
	sort.Slice(slots, func(i, j int) bool { return slots[i].Micros() < slots[j].Micros() })

	return &Planner{slots: slots, loc: loc, interval: cfg.Interval}, nil
}

func (p *Planner) Location() *time.Location { return p.loc }

// Next returns the first slot strictly after now, looking into tomorrow when
// today's slots are used up.
func (p *Planner) Next(now time.Time) time.Time {
	local := now.In(p.loc)
	y, m, d := local.Date()
	for _, s := range p.slots {
		t := time.Date(y, m, d, s.Hour, s.Minute, 0, 0, p.loc)
		if t.After(now) {
			return t
		}
	}
	first := p.slots[0]
	return time.Date(y, m, d+1, first.Hour, first.Minute, 0, 0, p.loc)
}

// Interval is the spacing between consecutive runs: the override when set,
// a day for a single slot, the gap between the first two slots otherwise.
func (p *Planner) Interval() time.Duration {
	if p.interval > 0 {
		return p.interval
	}
	if len(p.slots) < 2 {
		return day
	}
	return gap(p.slots[0], p.slots[1])
}

// Even reports whether all slots, including the wrap to the next day, are
// equally spaced.
func (p *Planner) Even() bool {
	if len(p.slots) < 2 {
		return true
	}
	want := gap(p.slots[0], p.slots[1])
	for i := 1; i < len(p.slots); i++ {
		next := p.slots[(i+1)%len(p.slots)]
		g := gap(p.slots[i], next)
		if i == len(p.slots)-1 {
			g += day
		}
		if g != want {
			return false
		}
	}
	return true
}

// FixedInterval reports whether runs after the first are spaced by Interval
// instead of being realigned to the next slot.
func (p *Planner) FixedInterval() bool {
	return p.interval > 0 || p.Even()
}

func (p *Planner) Slots() []string {
	out := make([]string, 0, len(p.slots))
	for _, s := range p.slots {
		out = append(out, s.String())
	}
	return out
}

func gap(a, b models.ClockTime) time.Duration {
	return time.Duration(b.Micros()-a.Micros()) * time.Microsecond
}
