package mock

import (
	"context"
	"fmt"
	"hash/fnv"
	"math/rand"
	"sort"
	"time"

	"github.com/BearBump/FareBox/internal/integrations/flights"
	"github.com/shopspring/decimal"
)

// Client generates plausible fares without calling anything. Results are
// deterministic per (origin, destination, outbound, return) so repeated
// sweeps during development stay readable.
type Client struct {
	latency time.Duration
}

func New() *Client { return &Client{} }

// WithLatency simulates provider round-trip time.
func (c *Client) WithLatency(d time.Duration) *Client {
	c.latency = d
	return c
}

var airlines = []string{
	"Lufthansa",
	"Ryanair",
	"Eurowings",
	"easyJet",
	"Vueling",
	"Air Europa",
	"Condor",
}

func (c *Client) SearchFlights(ctx context.Context, origin, destination string, outbound, ret time.Time) (flights.SearchResult, error) {
	if c.latency > 0 {
		t := time.NewTimer(c.latency)
		defer t.Stop()
		select {
		case <-ctx.Done():
			return flights.SearchResult{}, ctx.Err()
		case <-t.C:
		}
	}

	h := fnv.New64a()
	_, _ = h.Write([]byte(origin))
	_, _ = h.Write([]byte("|"))
	_, _ = h.Write([]byte(destination))
	_, _ = h.Write([]byte("|"))
	_, _ = h.Write([]byte(outbound.Format("2006-01-02")))
	_, _ = h.Write([]byte(ret.Format("2006-01-02")))
	r := rand.New(rand.NewSource(int64(h.Sum64())))

	count := 3 + r.Intn(3)
	base := basePrice(destination)
	duration := flightDuration(destination)
	day := time.Date(outbound.Year(), outbound.Month(), outbound.Day(), 0, 0, 0, 0, time.UTC)

	opts := make([]flights.Option, 0, count)
	for i := 0; i < count; i++ {
		price := base + r.Intn(80) - 30
		dep := day.Add(time.Duration(6+r.Intn(15))*time.Hour + time.Duration(r.Intn(60))*time.Minute)
		url := fmt.Sprintf("https://www.skyscanner.com/transport/flights/%s/%s/%s/%s/",
			origin, destination, outbound.Format("2006-01-02"), ret.Format("2006-01-02"))
		opts = append(opts, flights.Option{
			Price:         decimal.NewFromInt(int64(price)).Add(decimal.New(int64(r.Intn(100)), -2)),
			Currency:      "EUR",
			DepartureTime: dep,
			ArrivalTime:   dep.Add(duration),
			Airline:       airlines[r.Intn(len(airlines))],
			Stops:         stops(i, count, r),
			BookingURL:    &url,
		})
	}
	sort.SliceStable(opts, func(i, j int) bool { return opts[i].Price.LessThan(opts[j].Price) })

	return flights.SearchResult{Success: true, Options: opts}, nil
}

func basePrice(destination string) int {
	switch destination {
	case "PMI":
		return 89
	case "ARN":
		return 142
	case "TFS":
		return 156
	case "LPA":
		return 149
	default:
		return 120
	}
}

func flightDuration(destination string) time.Duration {
	switch destination {
	case "PMI":
		return 135 * time.Minute
	case "ARN":
		return 150 * time.Minute
	case "TFS", "LPA":
		return 270 * time.Minute
	default:
		return 180 * time.Minute
	}
}

// First two options fly direct, the rest mostly connect.
func stops(i, total int, r *rand.Rand) int {
	if i < 2 {
		return 0
	}
	if i < total-1 {
		return 1
	}
	return r.Intn(2)
}
